package report_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	programDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/program"
	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
	"github.com/nonprofit-tech/casevault/internal/report"
)

// Mock dependencies for testing
type mockStatsRepository struct {
	byStatus map[int64]map[string]int
}

func (m *mockStatsRepository) EnrolledCount(ctx context.Context, programID int64) (int, error) {
	return m.byStatus[programID]["enrolled"], nil
}

func (m *mockStatsRepository) EnrollmentCountsByStatus(ctx context.Context, programID int64) (map[string]int, error) {
	return m.byStatus[programID], nil
}

type mockProgramGetter struct {
	programs map[int64]*programDatamodel.Program
}

func (m *mockProgramGetter) GetByID(ctx context.Context, programID int64) (*programDatamodel.Program, error) {
	if p, ok := m.programs[programID]; ok {
		return p, nil
	}
	return nil, internal.ErrProgramNotFound
}

type mockClientRowRepository struct {
	rows map[int64][]report.ClientRow
}

func (m *mockClientRowRepository) RowsForProgram(ctx context.Context, programID int64) ([]report.ClientRow, error) {
	return m.rows[programID], nil
}

type mockRoleStore struct {
	assignments map[int64][]access.RoleAssignment
}

func (m *mockRoleStore) RolesFor(ctx context.Context, userID int64) ([]access.RoleAssignment, error) {
	return m.assignments[userID], nil
}

func (m *mockRoleStore) ProgramsWithRole(ctx context.Context, userID int64, status string) (access.ProgramSet, error) {
	set := make(access.ProgramSet)
	for _, a := range m.assignments[userID] {
		if a.Status == status {
			set[a.ProgramID] = struct{}{}
		}
	}
	return set, nil
}

func (m *mockRoleStore) HasActiveBlock(ctx context.Context, userID, clientID int64) (bool, error) {
	return false, nil
}

func (m *mockRoleStore) EnrolledPrograms(ctx context.Context, clientID int64) (access.ProgramSet, error) {
	return access.ProgramSet{}, nil
}

var _ = Describe("Builder", func() {
	var (
		builder   *report.Builder
		stats     *mockStatsRepository
		programs  *mockProgramGetter
		rows      *mockClientRowRepository
		roleStore *mockRoleStore
		ctx       context.Context
	)

	BeforeEach(func() {
		stats = &mockStatsRepository{byStatus: map[int64]map[string]int{
			100: {"enrolled": 25, "unenrolled": 4},
		}}
		programs = &mockProgramGetter{programs: map[int64]*programDatamodel.Program{
			100: {ID: 100, Name: "Housing Support", IsConfidential: true, Status: "active"},
			200: {ID: 200, Name: "Food Pantry", IsConfidential: false, Status: "active"},
		}}
		stats.byStatus[200] = map[string]int{"enrolled": 3}
		rows = &mockClientRowRepository{rows: map[int64][]report.ClientRow{
			100: {{ClientID: 1, FirstName: "Ana", LastName: "Silva", BirthDate: "1990-01-01"}},
		}}
		roleStore = &mockRoleStore{assignments: make(map[int64][]access.RoleAssignment)}

		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		evaluator := access.NewEvaluator(roleStore, logger)
		builder = report.NewBuilder(stats, rows, programs, evaluator, report.NewSuppressor(10), logger)
		ctx = context.Background()
	})

	Describe("BuildAggregate", func() {
		It("should suppress small cells and their total for confidential programs", func() {
			admin := &userDatamodel.User{ID: 1, IsAdmin: true}

			result, err := builder.BuildAggregate(ctx, admin, access.ExportKindMetrics, 100)
			Expect(err).NotTo(HaveOccurred())

			metrics := make(map[string]report.Value)
			for _, m := range result.Metrics {
				metrics[m.Name] = m.Value
			}
			Expect(metrics["enrollments_enrolled"].Censored).To(BeFalse())
			Expect(metrics["enrollments_unenrolled"].Censored).To(BeTrue())
			Expect(metrics["enrollments_total"].Censored).To(BeTrue())
		})

		It("should never suppress non-confidential programs", func() {
			admin := &userDatamodel.User{ID: 1, IsAdmin: true}

			result, err := builder.BuildAggregate(ctx, admin, access.ExportKindMetrics, 200)
			Expect(err).NotTo(HaveOccurred())
			for _, m := range result.Metrics {
				Expect(m.Value.Censored).To(BeFalse())
			}
		})

		It("should contain no record identifiers for aggregate-only users", func() {
			roleStore.assignments[2] = []access.RoleAssignment{
				{ProgramID: 100, Role: access.RoleProgramManager, Status: access.StatusActive},
			}
			manager := &userDatamodel.User{ID: 2}

			result, err := builder.BuildAggregate(ctx, manager, access.ExportKindFunderReport, 100)
			Expect(err).NotTo(HaveOccurred())

			payload, err := json.Marshal(result)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(payload)).NotTo(ContainSubstring("client_id"))
			Expect(string(payload)).NotTo(ContainSubstring("first_name"))
			Expect(string(payload)).NotTo(ContainSubstring("Silva"))
		})

		It("should deny users outside the capability table", func() {
			roleStore.assignments[3] = []access.RoleAssignment{
				{ProgramID: 100, Role: access.RoleStaff, Status: access.StatusActive},
			}
			staff := &userDatamodel.User{ID: 3}

			_, err := builder.BuildAggregate(ctx, staff, access.ExportKindMetrics, 100)
			Expect(err).To(Equal(internal.ErrAccessDenied))
		})
	})

	Describe("BuildClientData", func() {
		It("should refuse aggregate-only users before touching any rows", func() {
			roleStore.assignments[2] = []access.RoleAssignment{
				{ProgramID: 100, Role: access.RoleProgramManager, Status: access.StatusActive},
			}
			manager := &userDatamodel.User{ID: 2}

			_, err := builder.BuildClientData(ctx, manager, 100)
			Expect(err).To(Equal(internal.ErrAccessDenied))
		})

		It("should return individual rows for admins", func() {
			admin := &userDatamodel.User{ID: 1, IsAdmin: true}

			result, err := builder.BuildClientData(ctx, admin, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Rows).To(HaveLen(1))
			Expect(result.Rows[0].FirstName).To(Equal("Ana"))
		})
	})
})
