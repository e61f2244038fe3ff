package program_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	accessPostgres "github.com/nonprofit-tech/casevault/internal/access/postgres"
	"github.com/nonprofit-tech/casevault/internal/program"
	programPostgres "github.com/nonprofit-tech/casevault/internal/program/postgres"
	"github.com/nonprofit-tech/casevault/internal/transport"

	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

type handlerSQLiteProgram struct {
	ID             int64 `gorm:"primaryKey"`
	Name           string
	Description    string
	IsConfidential bool
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (handlerSQLiteProgram) TableName() string {
	return "programs"
}

type handlerSQLiteRoleAssignment struct {
	ID        int64 `gorm:"primaryKey"`
	UserID    int64
	ProgramID int64
	Role      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (handlerSQLiteRoleAssignment) TableName() string {
	return "role_assignments"
}

var _ = Describe("Program Handler Integration", func() {
	var (
		db      *gorm.DB
		handler *program.Handler

		admin *userDatamodel.User
		staff *userDatamodel.User
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&handlerSQLiteProgram{}, &handlerSQLiteRoleAssignment{})
		Expect(err).NotTo(HaveOccurred())

		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))
		evaluator := access.NewEvaluator(accessPostgres.NewAccessRepository(db), slogger)
		repo := programPostgres.NewProgramRepository(db)
		service := program.NewService(repo, evaluator, slogger)
		baseHandler := transport.NewBaseHandler(slogger)
		handler = program.NewHandler(baseHandler, service)

		admin = &userDatamodel.User{ID: 1, Email: "admin@example.org", IsAdmin: true, IsActive: true}
		staff = &userDatamodel.User{ID: 2, Email: "staff@example.org", IsActive: true}

		seed := []handlerSQLiteProgram{
			{ID: 100, Name: "Housing Support", Status: "active"},
			{ID: 200, Name: "Counseling", IsConfidential: true, Status: "active"},
		}
		for i := range seed {
			Expect(db.Create(&seed[i]).Error).NotTo(HaveOccurred())
		}
		Expect(db.Create(&handlerSQLiteRoleAssignment{UserID: staff.ID, ProgramID: 100, Role: "staff", Status: "active"}).Error).NotTo(HaveOccurred())
	})

	requestAs := func(user *userDatamodel.User, method, target, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req = req.WithContext(internal.ContextWithUser(req.Context(), user))
		w := httptest.NewRecorder()

		switch {
		case method == http.MethodGet:
			handler.ListPrograms(w, req)
		case method == http.MethodPost:
			handler.CreateProgram(w, req)
		}
		return w
	}

	Describe("GET /programs", func() {
		It("should return the full catalog for admins", func() {
			w := requestAs(admin, http.MethodGet, "/programs", "")

			Expect(w.Code).To(Equal(http.StatusOK))

			var response program.ProgramsResponse
			Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
			Expect(response.Programs).To(HaveLen(2))
		})

		It("should hide programs the caller holds no role in", func() {
			w := requestAs(staff, http.MethodGet, "/programs", "")

			Expect(w.Code).To(Equal(http.StatusOK))

			var response program.ProgramsResponse
			Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
			Expect(response.Programs).To(HaveLen(1))
			Expect(response.Programs[0].Name).To(Equal("Housing Support"))
		})
	})

	Describe("POST /programs", func() {
		It("should create a program for admins", func() {
			w := requestAs(admin, http.MethodPost, "/programs", `{"name":"Food Assistance","description":"weekly groceries"}`)

			Expect(w.Code).To(Equal(http.StatusCreated))

			var response program.ProgramResponse
			Expect(json.NewDecoder(w.Body).Decode(&response)).To(Succeed())
			Expect(response.Name).To(Equal("Food Assistance"))
			Expect(response.Status).To(Equal("active"))
		})

		It("should refuse non-admin callers with a generic denial", func() {
			w := requestAs(staff, http.MethodPost, "/programs", `{"name":"Food Assistance"}`)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).To(ContainSubstring("access denied"))
			Expect(w.Body.String()).NotTo(ContainSubstring("admin"))
		})

		It("should reject a missing name before touching the service", func() {
			w := requestAs(admin, http.MethodPost, "/programs", `{"description":"no name"}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})
})
