package client_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fernet/fernet-go"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	"github.com/nonprofit-tech/casevault/internal/client"
	"github.com/nonprofit-tech/casevault/internal/crypto"

	clientDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/client"
	programDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/program"
	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

func TestClient(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Client Suite")
}

func newCipher() *crypto.FieldCipher {
	var key fernet.Key
	Expect(key.Generate()).To(Succeed())
	cipher, err := crypto.NewFieldCipher(&key)
	Expect(err).NotTo(HaveOccurred())
	return cipher
}

type mockClientRepository struct {
	records     map[int64]*clientDatamodel.ClientRecord
	enrollments map[int64][]clientDatamodel.Enrollment
	defs        map[int64]clientDatamodel.CustomFieldDef
	values      map[[2]int64]*clientDatamodel.CustomFieldValue
	nextID      int64
}

func newMockClientRepository() *mockClientRepository {
	return &mockClientRepository{
		records:     make(map[int64]*clientDatamodel.ClientRecord),
		enrollments: make(map[int64][]clientDatamodel.Enrollment),
		defs:        make(map[int64]clientDatamodel.CustomFieldDef),
		values:      make(map[[2]int64]*clientDatamodel.CustomFieldValue),
		nextID:      1,
	}
}

func (m *mockClientRepository) GetByID(ctx context.Context, id int64) (*clientDatamodel.ClientRecord, error) {
	record, ok := m.records[id]
	if !ok {
		return nil, internal.ErrClientNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *mockClientRepository) Create(ctx context.Context, record *clientDatamodel.ClientRecord, enrollProgramIDs []int64) error {
	record.ID = m.nextID
	m.nextID++
	copied := *record
	m.records[record.ID] = &copied
	for _, programID := range enrollProgramIDs {
		m.enrollments[record.ID] = append(m.enrollments[record.ID], clientDatamodel.Enrollment{
			ClientID:  record.ID,
			ProgramID: programID,
			Status:    client.EnrollmentStatusEnrolled,
		})
	}
	return nil
}

func (m *mockClientRepository) Update(ctx context.Context, record *clientDatamodel.ClientRecord) error {
	copied := *record
	m.records[record.ID] = &copied
	return nil
}

func (m *mockClientRepository) EnrollmentsFor(ctx context.Context, clientID int64) ([]clientDatamodel.Enrollment, error) {
	return append([]clientDatamodel.Enrollment(nil), m.enrollments[clientID]...), nil
}

func (m *mockClientRepository) ApplyEnrollments(ctx context.Context, clientID int64, enroll []int64, unenroll []int64) error {
	current := m.enrollments[clientID]
	statusFor := func(programID int64) string {
		for _, e := range current {
			if e.ProgramID == programID {
				return e.Status
			}
		}
		return ""
	}
	for _, programID := range enroll {
		if statusFor(programID) == "" {
			current = append(current, clientDatamodel.Enrollment{
				ClientID:  clientID,
				ProgramID: programID,
				Status:    client.EnrollmentStatusEnrolled,
			})
			continue
		}
		for i := range current {
			if current[i].ProgramID == programID {
				current[i].Status = client.EnrollmentStatusEnrolled
			}
		}
	}
	for _, programID := range unenroll {
		for i := range current {
			if current[i].ProgramID == programID {
				current[i].Status = client.EnrollmentStatusUnenrolled
			}
		}
	}
	m.enrollments[clientID] = current
	return nil
}

func (m *mockClientRepository) FieldDefByID(ctx context.Context, fieldID int64) (*clientDatamodel.CustomFieldDef, error) {
	def, ok := m.defs[fieldID]
	if !ok {
		return nil, internal.NewNotFoundError("Field definition not found", internal.ErrCodeFieldNotFound)
	}
	return &def, nil
}

func (m *mockClientRepository) FieldValuesFor(ctx context.Context, clientID int64) ([]clientDatamodel.CustomFieldValue, error) {
	var out []clientDatamodel.CustomFieldValue
	for key, value := range m.values {
		if key[1] == clientID {
			out = append(out, *value)
		}
	}
	return out, nil
}

func (m *mockClientRepository) FieldDefsByIDs(ctx context.Context, ids []int64) (map[int64]clientDatamodel.CustomFieldDef, error) {
	out := make(map[int64]clientDatamodel.CustomFieldDef)
	for _, id := range ids {
		if def, ok := m.defs[id]; ok {
			out[id] = def
		}
	}
	return out, nil
}

func (m *mockClientRepository) UpsertFieldValue(ctx context.Context, value *clientDatamodel.CustomFieldValue) error {
	copied := *value
	m.values[[2]int64{value.FieldID, value.ClientID}] = &copied
	return nil
}

type mockProgramDirectory struct {
	programs map[int64]*programDatamodel.Program
}

func (m *mockProgramDirectory) GetByIDs(ctx context.Context, ids []int64) ([]*programDatamodel.Program, error) {
	var out []*programDatamodel.Program
	for _, id := range ids {
		if p, ok := m.programs[id]; ok {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

type mockRoleStore struct {
	assignments map[int64][]access.RoleAssignment
	blocks      map[[2]int64]bool
	enrollments *mockClientRepository
}

func (m *mockRoleStore) assign(userID, programID int64, role access.Role) {
	m.assignments[userID] = append(m.assignments[userID], access.RoleAssignment{
		ProgramID: programID,
		Role:      role,
		Status:    access.StatusActive,
	})
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
	return m.blocks[[2]int64{userID, clientID}], nil
}

func (m *mockRoleStore) EnrolledPrograms(ctx context.Context, clientID int64) (access.ProgramSet, error) {
	set := make(access.ProgramSet)
	for _, e := range m.enrollments.enrollments[clientID] {
		if e.Status == client.EnrollmentStatusEnrolled {
			set[e.ProgramID] = struct{}{}
		}
	}
	return set, nil
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		repo      *mockClientRepository
		programs  *mockProgramDirectory
		roles     *mockRoleStore
		cipher    *crypto.FieldCipher
		service   *client.Service

		receptionist *userDatamodel.User
		counselor    *userDatamodel.User
		demoUser     *userDatamodel.User

		housing    *programDatamodel.Program
		counseling *programDatamodel.Program
	)

	const (
		housingID    int64 = 1
		counselingID int64 = 2
	)

	seedClient := func(firstName, lastName string, isDemo bool, programIDs ...int64) int64 {
		record := &clientDatamodel.ClientRecord{IsDemo: isDemo, CreatedAt: time.Now()}
		var err error
		record.EncryptedFirstName, err = cipher.Encrypt(firstName)
		Expect(err).NotTo(HaveOccurred())
		record.EncryptedLastName, err = cipher.Encrypt(lastName)
		Expect(err).NotTo(HaveOccurred())
		record.EncryptedBirthDate, err = cipher.Encrypt("1990-01-01")
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(ctx, record, programIDs)).To(Succeed())
		return record.ID
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockClientRepository()
		cipher = newCipher()

		housing = &programDatamodel.Program{ID: housingID, Name: "Housing", Status: "active"}
		counseling = &programDatamodel.Program{ID: counselingID, Name: "Counseling", Status: "active", IsConfidential: true}
		programs = &mockProgramDirectory{programs: map[int64]*programDatamodel.Program{
			housingID:    housing,
			counselingID: counseling,
		}}

		roles = &mockRoleStore{
			assignments: make(map[int64][]access.RoleAssignment),
			blocks:      make(map[[2]int64]bool),
			enrollments: repo,
		}

		receptionist = &userDatamodel.User{ID: 1, Email: "reception@example.org"}
		counselor = &userDatamodel.User{ID: 2, Email: "counselor@example.org"}
		demoUser = &userDatamodel.User{ID: 3, Email: "demo@example.org", IsDemo: true}

		roles.assign(receptionist.ID, housingID, access.RoleReceptionist)
		roles.assign(counselor.ID, housingID, access.RoleStaff)
		roles.assign(counselor.ID, counselingID, access.RoleStaff)

		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		evaluator := access.NewEvaluator(roles, logger)
		service = client.NewService(repo, programs, evaluator, cipher, logger)
	})

	Describe("Create", func() {
		It("stores PII only in encrypted form and inherits the creator's partition", func() {
			response, err := service.Create(ctx, receptionist, client.CreateClientDTO{
				FirstName:  "Amina",
				LastName:   "Diallo",
				BirthDate:  "1985-03-12",
				ProgramIDs: []int64{housingID},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(response.FirstName).To(Equal("Amina"))
			Expect(response.IsDemo).To(BeFalse())

			stored := repo.records[response.ID]
			Expect(string(stored.EncryptedFirstName)).NotTo(ContainSubstring("Amina"))
			Expect(string(stored.EncryptedLastName)).NotTo(ContainSubstring("Diallo"))
		})

		It("marks records created by demo users as demo", func() {
			roles.assign(demoUser.ID, housingID, access.RoleStaff)

			response, err := service.Create(ctx, demoUser, client.CreateClientDTO{
				FirstName:  "Test",
				LastName:   "Person",
				ProgramIDs: []int64{housingID},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(response.IsDemo).To(BeTrue())
		})

		It("refuses enrollment into a program the creator holds no active role in", func() {
			_, err := service.Create(ctx, receptionist, client.CreateClientDTO{
				FirstName:  "Amina",
				LastName:   "Diallo",
				ProgramIDs: []int64{counselingID},
			})
			Expect(err).To(MatchError(internal.ErrAccessDenied))
		})
	})

	Describe("Get", func() {
		It("denies a user whose only role is in a program the client is not enrolled in", func() {
			id := seedClient("Joan", "Baez", false, counselingID)

			_, err := service.Get(ctx, receptionist, id)
			Expect(err).To(MatchError(internal.ErrAccessDenied))
		})

		It("never leaks a confidential program name in the denial", func() {
			id := seedClient("Joan", "Baez", false, counselingID)

			_, err := service.Get(ctx, receptionist, id)
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Message).NotTo(ContainSubstring("Counseling"))
			Expect(appErr.Message).To(Equal("access denied"))
		})

		It("decrypts PII for an authorized viewer", func() {
			id := seedClient("Joan", "Baez", false, housingID)

			response, err := service.Get(ctx, receptionist, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(response.FirstName).To(Equal("Joan"))
			Expect(response.LastName).To(Equal("Baez"))
			Expect(response.BirthDate).To(Equal("1990-01-01"))
		})

		It("hides confidential enrollments from viewers without a role in that program", func() {
			id := seedClient("Joan", "Baez", false, housingID, counselingID)

			response, err := service.Get(ctx, receptionist, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(response.Enrollments).To(HaveLen(1))
			Expect(response.Enrollments[0].ProgramName).To(Equal("Housing"))
		})

		It("shows confidential enrollments to a member of that program", func() {
			id := seedClient("Joan", "Baez", false, housingID, counselingID)

			response, err := service.Get(ctx, counselor, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(response.Enrollments).To(HaveLen(2))
		})

		It("denies across the demo partition", func() {
			id := seedClient("Test", "Person", true, housingID)

			_, err := service.Get(ctx, receptionist, id)
			Expect(err).To(MatchError(internal.ErrAccessDenied))
		})
	})

	Describe("Update", func() {
		It("preserves an invisible confidential enrollment when the editor submits only visible programs", func() {
			id := seedClient("Joan", "Baez", false, housingID, counselingID)

			submitted := []int64{housingID}
			_, err := service.Update(ctx, receptionist, id, client.UpdateClientDTO{
				ProgramIDs: &submitted,
			})
			Expect(err).NotTo(HaveOccurred())

			var counselingStatus string
			for _, e := range repo.enrollments[id] {
				if e.ProgramID == counselingID {
					counselingStatus = e.Status
				}
			}
			Expect(counselingStatus).To(Equal(client.EnrollmentStatusEnrolled))
		})

		It("unenrolls a visible program the editor dropped", func() {
			id := seedClient("Joan", "Baez", false, housingID, counselingID)

			submitted := []int64{counselingID}
			_, err := service.Update(ctx, counselor, id, client.UpdateClientDTO{
				ProgramIDs: &submitted,
			})
			Expect(err).NotTo(HaveOccurred())

			var housingStatus string
			for _, e := range repo.enrollments[id] {
				if e.ProgramID == housingID {
					housingStatus = e.Status
				}
			}
			Expect(housingStatus).To(Equal(client.EnrollmentStatusUnenrolled))
		})

		It("refuses a submitted program outside the editor's view", func() {
			id := seedClient("Joan", "Baez", false, housingID)

			submitted := []int64{housingID, counselingID}
			_, err := service.Update(ctx, receptionist, id, client.UpdateClientDTO{
				ProgramIDs: &submitted,
			})
			Expect(err).To(MatchError(internal.ErrAccessDenied))
		})

		It("re-encrypts edited PII", func() {
			id := seedClient("Joan", "Baez", false, housingID)

			newName := "Joanne"
			response, err := service.Update(ctx, receptionist, id, client.UpdateClientDTO{
				FirstName: &newName,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(response.FirstName).To(Equal("Joanne"))
			Expect(string(repo.records[id].EncryptedFirstName)).NotTo(ContainSubstring("Joanne"))
		})
	})

	Describe("SetFieldValue", func() {
		It("encrypts sensitive field values and leaves the plaintext column empty", func() {
			id := seedClient("Joan", "Baez", false, counselingID)
			repo.defs[7] = clientDatamodel.CustomFieldDef{ID: 7, ProgramID: counselingID, Name: "diagnosis", IsSensitive: true}

			err := service.SetFieldValue(ctx, counselor, id, client.SetFieldValueDTO{FieldID: 7, Value: "confidential note"})
			Expect(err).NotTo(HaveOccurred())

			stored := repo.values[[2]int64{7, id}]
			Expect(stored.PlainValue).To(BeNil())
			Expect(stored.EncryptedValue).NotTo(BeEmpty())
			Expect(string(stored.EncryptedValue)).NotTo(ContainSubstring("confidential"))

			response, getErr := service.Get(ctx, counselor, id)
			Expect(getErr).NotTo(HaveOccurred())
			Expect(response.Fields).To(HaveLen(1))
			Expect(response.Fields[0].Value).To(Equal("confidential note"))
		})

		It("stores non-sensitive field values in plaintext", func() {
			id := seedClient("Joan", "Baez", false, housingID)
			repo.defs[8] = clientDatamodel.CustomFieldDef{ID: 8, ProgramID: housingID, Name: "bed_preference", IsSensitive: false}

			err := service.SetFieldValue(ctx, receptionist, id, client.SetFieldValueDTO{FieldID: 8, Value: "lower bunk"})
			Expect(err).NotTo(HaveOccurred())

			stored := repo.values[[2]int64{8, id}]
			Expect(stored.EncryptedValue).To(BeEmpty())
			Expect(stored.PlainValue).To(HaveValue(Equal("lower bunk")))
		})

		It("refuses a field belonging to a program outside the editor's view", func() {
			id := seedClient("Joan", "Baez", false, housingID, counselingID)
			repo.defs[7] = clientDatamodel.CustomFieldDef{ID: 7, ProgramID: counselingID, Name: "diagnosis", IsSensitive: true}

			err := service.SetFieldValue(ctx, receptionist, id, client.SetFieldValueDTO{FieldID: 7, Value: "x"})
			Expect(err).To(MatchError(internal.ErrAccessDenied))
		})
	})
})
