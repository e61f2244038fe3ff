package export

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	exportDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/export"
	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

// BrokerConfig carries the broker's timing knobs. Now is injectable for
// tests and defaults to time.Now.
type BrokerConfig struct {
	LinkTTL       time.Duration
	ElevatedDelay time.Duration
	GracePeriod   time.Duration
	Now           func() time.Time
}

// Broker issues time-limited, revocable references to generated export
// artifacts and owns their whole lifecycle: create, download, revoke,
// garbage collection.
type Broker struct {
	repo      Repository
	files     FileStore
	evaluator *access.Evaluator
	notifier  Notifier
	logger    *slog.Logger

	ttl           time.Duration
	elevatedDelay time.Duration
	gracePeriod   time.Duration
	now           func() time.Time
}

func NewBroker(repo Repository, files FileStore, evaluator *access.Evaluator, notifier Notifier, cfg BrokerConfig, logger *slog.Logger) *Broker {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Broker{
		repo:          repo,
		files:         files,
		evaluator:     evaluator,
		notifier:      notifier,
		logger:        logger,
		ttl:           cfg.LinkTTL,
		elevatedDelay: cfg.ElevatedDelay,
		gracePeriod:   cfg.GracePeriod,
		now:           now,
	}
}

type CreateParams struct {
	Content          []byte
	Kind             access.ExportKind
	ClientCount      int
	IncludesRawNotes bool
	// ContainsPII defaults to true when unset: deny-by-default.
	ContainsPII *bool
}

// Create persists the content under a uuid-derived filename and opens the
// broker record. Elevated links get an admin notification before anyone
// can download them; a notification failure is logged, never propagated.
func (b *Broker) Create(ctx context.Context, creator *userDatamodel.User, params CreateParams) (*exportDatamodel.ExportLink, error) {
	containsPII := true
	if params.ContainsPII != nil {
		containsPII = *params.ContainsPII
	}

	creatorIsPM, err := b.evaluator.HasActiveRole(ctx, creator, access.RoleProgramManager)
	if err != nil {
		return nil, err
	}

	elevated := params.ClientCount >= ElevatedClientCount ||
		params.IncludesRawNotes ||
		(containsPII && creatorIsPM)

	now := b.now()
	id := uuid.NewString()
	link := &exportDatamodel.ExportLink{
		ID:               id,
		CreatorID:        creator.ID,
		Kind:             string(params.Kind),
		FileName:         id + ".json",
		ContainsPII:      containsPII,
		IsElevated:       elevated,
		ClientCount:      params.ClientCount,
		IncludesRawNotes: params.IncludesRawNotes,
		CreatedAt:        now,
		ExpiresAt:        now.Add(b.ttl),
	}

	if err := b.files.Write(link.FileName, params.Content); err != nil {
		return nil, err
	}

	if err := b.repo.Create(ctx, link); err != nil {
		// keep storage consistent with the record set
		if removeErr := b.files.Remove(link.FileName); removeErr != nil {
			b.logger.Error("failed to remove file after create failure",
				"file", link.FileName, "error", removeErr)
		}
		return nil, err
	}

	b.logger.Info("export link created",
		"link_id", link.ID,
		"kind", link.Kind,
		"creator_id", creator.ID,
		"elevated", elevated,
		"expires_at", link.ExpiresAt)

	if elevated {
		if err := b.notifier.NotifyElevatedExport(ctx, link); err != nil {
			b.logger.Error("elevated export notification failed",
				"link_id", link.ID, "error", err)
		} else {
			notifiedAt := b.now()
			link.AdminNotifiedAt = &notifiedAt
			if err := b.repo.MarkAdminNotified(ctx, link.ID, notifiedAt); err != nil {
				b.logger.Error("failed to record notification timestamp",
					"link_id", link.ID, "error", err)
			}
		}
	}

	return link, nil
}

// IsValid reports whether the link can still be used at all.
func (b *Broker) IsValid(link *exportDatamodel.ExportLink) bool {
	if link.Revoked {
		return false
	}
	return !b.now().After(link.ExpiresAt)
}

// IsAvailable reports whether the link has cleared its review window.
// Non-elevated links are available immediately; elevated links only after
// the delay, giving admins time to revoke before the first download.
func (b *Broker) IsAvailable(link *exportDatamodel.ExportLink) bool {
	if !link.IsElevated {
		return true
	}
	return !b.now().Before(link.CreatedAt.Add(b.elevatedDelay))
}

// AvailableAt returns the moment the link clears its review window.
func (b *Broker) AvailableAt(link *exportDatamodel.ExportLink) time.Time {
	if !link.IsElevated {
		return link.CreatedAt
	}
	return link.CreatedAt.Add(b.elevatedDelay)
}

// Download runs the full release pipeline: requester permission, PII
// re-validation, validity, availability, then the file itself. Order
// matters; each gate is checked against current state, not creation-time
// state.
func (b *Broker) Download(ctx context.Context, requester *userDatamodel.User, id string) ([]byte, *exportDatamodel.ExportLink, error) {
	link, err := b.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if requester == nil || (!requester.IsAdmin && requester.ID != link.CreatorID) {
		return nil, nil, internal.ErrAccessDenied
	}

	if link.ContainsPII {
		allowed, err := b.evaluator.CanDownloadPII(ctx, requester)
		if err != nil {
			return nil, nil, err
		}
		if !allowed {
			b.logger.Warn("pii download refused",
				"link_id", link.ID, "requester_id", requester.ID)
			return nil, nil, internal.ErrAccessDenied
		}
	}

	if link.Revoked {
		return nil, nil, internal.ErrLinkRevoked
	}
	if b.now().After(link.ExpiresAt) {
		return nil, nil, internal.ErrLinkExpired
	}
	if !b.IsAvailable(link) {
		return nil, nil, internal.ErrLinkPending
	}

	content, err := b.files.Read(link.FileName)
	if err != nil {
		return nil, nil, err
	}

	downloadedAt := b.now()
	if err := b.repo.RecordDownload(ctx, link.ID, requester.ID, downloadedAt); err != nil {
		return nil, nil, err
	}

	b.logger.Info("export downloaded",
		"link_id", link.ID,
		"requester_id", requester.ID)

	return content, link, nil
}

// Revoke kills the link and deletes its file immediately. Admin only.
// Revoking an already-revoked link is a reported no-op, not an error; the
// broker record is kept for audit either way.
func (b *Broker) Revoke(ctx context.Context, revoker *userDatamodel.User, id string) (alreadyRevoked bool, err error) {
	if revoker == nil || !revoker.IsAdmin {
		return false, internal.ErrAccessDenied
	}

	link, err := b.repo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	if link.Revoked {
		return true, nil
	}

	if err := b.repo.MarkRevoked(ctx, link.ID, revoker.ID, b.now()); err != nil {
		return false, err
	}

	if err := b.files.Remove(link.FileName); err != nil {
		b.logger.Error("failed to delete revoked export file",
			"link_id", link.ID, "file", link.FileName, "error", err)
	}

	b.logger.Info("export link revoked",
		"link_id", link.ID, "revoked_by", revoker.ID)

	return false, nil
}

type CleanupReport struct {
	ExpiredRemoved int
	OrphansRemoved int
	DryRun         bool
}

// Cleanup removes broker records past expiry plus grace, then removes any
// file on disk with no remaining broker record. With dryRun the report is
// computed but nothing is deleted.
func (b *Broker) Cleanup(ctx context.Context, dryRun bool) (*CleanupReport, error) {
	report := &CleanupReport{DryRun: dryRun}

	cutoff := b.now().Add(-b.gracePeriod)
	expired, err := b.repo.ExpiredBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	for _, link := range expired {
		if !dryRun {
			if err := b.files.Remove(link.FileName); err != nil {
				b.logger.Error("failed to delete expired export file",
					"link_id", link.ID, "error", err)
				continue
			}
			if err := b.repo.Delete(ctx, link.ID); err != nil {
				b.logger.Error("failed to delete expired link record",
					"link_id", link.ID, "error", err)
				continue
			}
		}
		report.ExpiredRemoved++
	}

	known, err := b.repo.KnownFileNames(ctx)
	if err != nil {
		return nil, err
	}

	files, err := b.files.List()
	if err != nil {
		return nil, err
	}
	for _, name := range files {
		if _, ok := known[name]; ok {
			continue
		}
		if !dryRun {
			if err := b.files.Remove(name); err != nil {
				b.logger.Error("failed to delete orphan export file",
					"file", name, "error", err)
				continue
			}
		}
		report.OrphansRemoved++
	}

	b.logger.Info("export cleanup finished",
		"expired_removed", report.ExpiredRemoved,
		"orphans_removed", report.OrphansRemoved,
		"dry_run", dryRun)

	return report, nil
}
