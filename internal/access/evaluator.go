package access

import (
	"context"
	"log/slog"

	clientDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/client"
	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

// Evaluator is the single authority on who may see what. Handlers, report
// builders and batch jobs all delegate here instead of re-deriving the
// program-intersection logic at call sites.
type Evaluator struct {
	repo   Repository
	logger *slog.Logger
}

func NewEvaluator(repo Repository, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		repo:   repo,
		logger: logger,
	}
}

// CanAccessClient decides whether user may read client's case file. Checks
// run in order and short-circuit on the first applicable rule:
//
//  1. an active explicit block denies unconditionally;
//  2. demo and real users never share data, with no override;
//  3. otherwise, access requires a shared program between the user's
//     active roles and the client's current enrollments.
//
// A global admin flag grants nothing here. Admins hold explicit program
// roles like everyone else; there is deliberately no bypass.
func (e *Evaluator) CanAccessClient(ctx context.Context, user *userDatamodel.User, client *clientDatamodel.ClientRecord) (bool, error) {
	if user == nil || client == nil {
		return false, nil
	}

	blocked, err := e.repo.HasActiveBlock(ctx, user.ID, client.ID)
	if err != nil {
		return false, err
	}
	if blocked {
		e.logger.Warn("client access denied by explicit block",
			"user_id", user.ID, "client_id", client.ID)
		return false, nil
	}

	if user.IsDemo != client.IsDemo {
		return false, nil
	}

	userPrograms, err := e.repo.ProgramsWithRole(ctx, user.ID, StatusActive)
	if err != nil {
		return false, err
	}
	clientPrograms, err := e.repo.EnrolledPrograms(ctx, client.ID)
	if err != nil {
		return false, err
	}

	return userPrograms.Intersects(clientPrograms), nil
}

// CanCreateExport applies the fixed capability table. Individual-level
// exports are admin only. Program managers and executives may run aggregate
// exports, scoped to programs where they hold that active role. Staff and
// receptionists may not export at all.
func (e *Evaluator) CanCreateExport(ctx context.Context, user *userDatamodel.User, kind ExportKind, programID *int64) (bool, error) {
	if user == nil {
		return false, nil
	}

	if user.IsAdmin {
		return true, nil
	}

	if kind == ExportKindClientData {
		return false, nil
	}

	// Aggregate kinds require an explicit program scope for non-admins.
	if programID == nil {
		return false, nil
	}

	assignments, err := e.repo.RolesFor(ctx, user.ID)
	if err != nil {
		return false, err
	}

	for _, a := range assignments {
		if !a.IsActive() || a.ProgramID != *programID {
			continue
		}
		if a.Role == RoleProgramManager || a.Role == RoleExecutive {
			return true, nil
		}
	}
	return false, nil
}

// IsAggregateOnly reports whether reports built for the user must contain
// only pre-aggregated statistics. True for every non-admin: record IDs and
// author names never appear in their output, even when they are otherwise
// authorized to run the export. The export broker re-checks this at
// download time as well.
func (e *Evaluator) IsAggregateOnly(user *userDatamodel.User) bool {
	return user == nil || !user.IsAdmin
}

// VisiblePrograms returns the programs the user currently holds an active
// role in. This is the viewer-side set used to filter confidential
// enrollments out of client views.
func (e *Evaluator) VisiblePrograms(ctx context.Context, user *userDatamodel.User) (ProgramSet, error) {
	if user == nil {
		return ProgramSet{}, nil
	}
	return e.repo.ProgramsWithRole(ctx, user.ID, StatusActive)
}

// HasActiveRole reports whether the user currently holds an active
// assignment with the given role in any program.
func (e *Evaluator) HasActiveRole(ctx context.Context, user *userDatamodel.User, role Role) (bool, error) {
	if user == nil {
		return false, nil
	}
	assignments, err := e.repo.RolesFor(ctx, user.ID)
	if err != nil {
		return false, err
	}
	for _, a := range assignments {
		if a.IsActive() && a.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// CanDownloadPII is the download-time re-validation for artifacts flagged
// as containing individual-level data: admin only, regardless of who
// created the artifact. The check runs against current state so a role
// change between export creation and download binds.
func (e *Evaluator) CanDownloadPII(ctx context.Context, user *userDatamodel.User) (bool, error) {
	if user == nil {
		return false, nil
	}
	return user.IsAdmin, nil
}
