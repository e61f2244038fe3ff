package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/nonprofit-tech/casevault/internal"
)

// DiskStore keeps export files under one private root directory. Every
// operation resolves its target and rejects anything that lands outside
// the root.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create export storage root: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// resolve joins name onto the root and verifies containment. A path that
// escapes is a security violation regardless of whether anything exists
// there.
func (s *DiskStore) resolve(name string) (string, error) {
	path := filepath.Clean(filepath.Join(s.root, name))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", internal.ErrPathEscape
	}
	return path, nil
}

func (s *DiskStore) Write(name string, content []byte) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	return os.WriteFile(path, content, 0o600)
}

func (s *DiskStore) Read(name string) ([]byte, error) {
	path, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, internal.ErrFileMissing
		}
		return nil, err
	}
	return content, nil
}

// Remove deletes the named file. A file that is already gone is not an
// error: revocation and cleanup must stay idempotent.
func (s *DiskStore) Remove(name string) error {
	path, err := s.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *DiskStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
