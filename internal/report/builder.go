package report

import (
	"context"
	"log/slog"
	"time"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	programDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/program"
	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

// StatsRepository supplies the pre-aggregated counts reports are built
// from. Only counts cross this boundary; per-record rows come through
// ClientRowRepository and are admin-gated by the builder.
type StatsRepository interface {
	EnrolledCount(ctx context.Context, programID int64) (int, error)
	EnrollmentCountsByStatus(ctx context.Context, programID int64) (map[string]int, error)
}

type ProgramGetter interface {
	GetByID(ctx context.Context, programID int64) (*programDatamodel.Program, error)
}

// ClientRow is one individual-level line of a client-data export. Only
// admin reports ever contain these.
type ClientRow struct {
	ClientID  int64  `json:"client_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date"`
}

type ClientRowRepository interface {
	RowsForProgram(ctx context.Context, programID int64) ([]ClientRow, error)
}

type Metric struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

type AggregateReport struct {
	ProgramID   int64     `json:"program_id"`
	Kind        string    `json:"kind"`
	GeneratedAt time.Time `json:"generated_at"`
	Metrics     []Metric  `json:"metrics"`
}

type ClientDataReport struct {
	ProgramID   int64       `json:"program_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Rows        []ClientRow `json:"rows"`
}

// Builder assembles report content. It enforces the aggregate-only rule at
// build time; the export broker enforces it again at download time.
type Builder struct {
	stats      StatsRepository
	rows       ClientRowRepository
	programs   ProgramGetter
	evaluator  *access.Evaluator
	suppressor *Suppressor
	logger     *slog.Logger
}

func NewBuilder(stats StatsRepository, rows ClientRowRepository, programs ProgramGetter, evaluator *access.Evaluator, suppressor *Suppressor, logger *slog.Logger) *Builder {
	return &Builder{
		stats:      stats,
		rows:       rows,
		programs:   programs,
		evaluator:  evaluator,
		suppressor: suppressor,
		logger:     logger,
	}
}

// BuildAggregate produces the metrics or funder-report content for one
// program. Every cell passes through the suppressor; the total inherits
// censoring from any suppressed cell.
func (b *Builder) BuildAggregate(ctx context.Context, user *userDatamodel.User, kind access.ExportKind, programID int64) (*AggregateReport, error) {
	allowed, err := b.evaluator.CanCreateExport(ctx, user, kind, &programID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, internal.ErrAccessDenied
	}

	program, err := b.programs.GetByID(ctx, programID)
	if err != nil {
		return nil, err
	}

	byStatus, err := b.stats.EnrollmentCountsByStatus(ctx, programID)
	if err != nil {
		return nil, err
	}

	report := &AggregateReport{
		ProgramID:   programID,
		Kind:        string(kind),
		GeneratedAt: time.Now().UTC(),
	}

	cells := make([]Value, 0, len(byStatus))
	for status, count := range byStatus {
		cell := b.suppressor.Suppress(count, program.IsConfidential)
		cells = append(cells, cell)
		report.Metrics = append(report.Metrics, Metric{
			Name:  "enrollments_" + status,
			Value: cell,
		})
	}
	report.Metrics = append(report.Metrics, Metric{
		Name:  "enrollments_total",
		Value: b.suppressor.Total(cells...),
	})

	b.logger.Info("aggregate report built",
		"program_id", programID,
		"kind", string(kind),
		"user_id", user.ID)

	return report, nil
}

// BuildClientData produces individual-level rows. Refused outright for any
// aggregate-only user: record IDs must never be generated for them, not
// merely hidden later.
func (b *Builder) BuildClientData(ctx context.Context, user *userDatamodel.User, programID int64) (*ClientDataReport, error) {
	if b.evaluator.IsAggregateOnly(user) {
		b.logger.Warn("client-data report refused for aggregate-only user",
			"user_id", user.ID, "program_id", programID)
		return nil, internal.ErrAccessDenied
	}

	allowed, err := b.evaluator.CanCreateExport(ctx, user, access.ExportKindClientData, &programID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, internal.ErrAccessDenied
	}

	rows, err := b.rows.RowsForProgram(ctx, programID)
	if err != nil {
		return nil, err
	}

	return &ClientDataReport{
		ProgramID:   programID,
		GeneratedAt: time.Now().UTC(),
		Rows:        rows,
	}, nil
}
