package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/export"

	exportDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/export"
)

// ExportRepository implements export.Repository using GORM
type ExportRepository struct {
	db *gorm.DB
}

func NewExportRepository(db *gorm.DB) export.Repository {
	return &ExportRepository{db: db}
}

func (r *ExportRepository) Create(ctx context.Context, link *exportDatamodel.ExportLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *ExportRepository) GetByID(ctx context.Context, id string) (*exportDatamodel.ExportLink, error) {
	var link exportDatamodel.ExportLink
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *ExportRepository) MarkRevoked(ctx context.Context, id string, revokedBy int64, revokedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&exportDatamodel.ExportLink{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"revoked":    true,
			"revoked_at": revokedAt,
			"revoked_by": revokedBy,
		}).Error
}

// RecordDownload bumps the counter inside the UPDATE itself so concurrent
// downloads of the same link never lose an increment.
func (r *ExportRepository) RecordDownload(ctx context.Context, id string, downloadedBy int64, downloadedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&exportDatamodel.ExportLink{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"download_count":     gorm.Expr("download_count + 1"),
			"last_downloaded_at": downloadedAt,
			"last_downloaded_by": downloadedBy,
		}).Error
}

func (r *ExportRepository) MarkAdminNotified(ctx context.Context, id string, notifiedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&exportDatamodel.ExportLink{}).
		Where("id = ?", id).
		Update("admin_notified_at", notifiedAt).Error
}

func (r *ExportRepository) ExpiredBefore(ctx context.Context, cutoff time.Time) ([]exportDatamodel.ExportLink, error) {
	var links []exportDatamodel.ExportLink
	err := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Find(&links).Error
	return links, err
}

func (r *ExportRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&exportDatamodel.ExportLink{}).Error
}

func (r *ExportRepository) KnownFileNames(ctx context.Context) (map[string]struct{}, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&exportDatamodel.ExportLink{}).
		Pluck("file_name", &names).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set, nil
}
