package access

import (
	"context"
	"errors"
	"fmt"
)

// Role is one of the fixed set a user can hold within a program.
type Role string

const (
	RoleReceptionist   Role = "receptionist"
	RoleStaff          Role = "staff"
	RoleProgramManager Role = "program_manager"
	RoleExecutive      Role = "executive"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ErrInvalidRole flags a role value outside the fixed set. Assignments with
// unknown roles are a data-integrity violation to detect, never to accept.
var ErrInvalidRole = errors.New("invalid role value")

func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleReceptionist, RoleStaff, RoleProgramManager, RoleExecutive:
		return Role(value), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, value)
}

// RoleAssignment is the domain view of one (user, program, role) row.
type RoleAssignment struct {
	ProgramID int64
	Role      Role
	Status    string
}

func (a RoleAssignment) IsActive() bool {
	return a.Status == StatusActive
}

// ExportKind classifies what an export may contain.
type ExportKind string

const (
	// ExportKindClientData carries individual-level rows; admin only.
	ExportKindClientData ExportKind = "client_data"
	// ExportKindMetrics carries pre-aggregated program statistics.
	ExportKindMetrics ExportKind = "metrics"
	// ExportKindFunderReport is the aggregate report sent to funders.
	ExportKindFunderReport ExportKind = "funder_report"
)

func ParseExportKind(value string) (ExportKind, error) {
	switch ExportKind(value) {
	case ExportKindClientData, ExportKindMetrics, ExportKindFunderReport:
		return ExportKind(value), nil
	}
	return "", fmt.Errorf("unknown export kind %q", value)
}

// ProgramSet is a set of program IDs.
type ProgramSet map[int64]struct{}

func (s ProgramSet) Contains(programID int64) bool {
	_, ok := s[programID]
	return ok
}

func (s ProgramSet) Intersects(other ProgramSet) bool {
	for id := range s {
		if other.Contains(id) {
			return true
		}
	}
	return false
}

// Repository is the role-assignment store plus the block and enrollment
// reads the evaluator needs. Every call is a fresh read of committed state:
// no caching anywhere means a role change binds on the very next check.
type Repository interface {
	// RolesFor returns every assignment for the user, any status. Rows
	// with a role outside the fixed set surface ErrInvalidRole.
	RolesFor(ctx context.Context, userID int64) ([]RoleAssignment, error)

	// ProgramsWithRole returns the programs where the user holds an
	// assignment with the given status.
	ProgramsWithRole(ctx context.Context, userID int64, status string) (ProgramSet, error)

	// HasActiveBlock reports whether an active explicit denial exists for
	// the (user, client) pair.
	HasActiveBlock(ctx context.Context, userID, clientID int64) (bool, error)

	// EnrolledPrograms returns the programs the client is currently
	// enrolled in (status "enrolled" only).
	EnrolledPrograms(ctx context.Context, clientID int64) (ProgramSet, error)
}
