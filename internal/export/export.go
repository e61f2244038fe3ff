package export

import (
	"context"
	"time"

	exportDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/export"
)

// Repository defines the broker's database operations. Download recording
// must be an atomic SQL increment, never read-then-write.
type Repository interface {
	Create(ctx context.Context, link *exportDatamodel.ExportLink) error
	GetByID(ctx context.Context, id string) (*exportDatamodel.ExportLink, error)
	MarkRevoked(ctx context.Context, id string, revokedBy int64, revokedAt time.Time) error
	RecordDownload(ctx context.Context, id string, downloadedBy int64, downloadedAt time.Time) error
	MarkAdminNotified(ctx context.Context, id string, notifiedAt time.Time) error

	// ExpiredBefore returns links whose expires_at is before cutoff.
	ExpiredBefore(ctx context.Context, cutoff time.Time) ([]exportDatamodel.ExportLink, error)
	Delete(ctx context.Context, id string) error

	// KnownFileNames returns the file name of every broker record still on
	// the books. Files on disk outside this set are orphans.
	KnownFileNames(ctx context.Context) (map[string]struct{}, error)
}

// FileStore is the private export storage root. Implementations must
// confine every resolved path to the root and report escapes as security
// violations, not missing files.
type FileStore interface {
	Write(name string, content []byte) error
	Read(name string) ([]byte, error)
	Remove(name string) error
	List() ([]string, error)
}

// Notifier tells active admins about a newly created elevated export.
// Failures are best-effort: they are logged and never fail the create.
type Notifier interface {
	NotifyElevatedExport(ctx context.Context, link *exportDatamodel.ExportLink) error
}

const (
	// ElevatedClientCount marks an export high-risk by sheer size.
	ElevatedClientCount = 100
)
