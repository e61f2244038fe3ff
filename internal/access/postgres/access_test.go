package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nonprofit-tech/casevault/internal/access"
	accessPostgres "github.com/nonprofit-tech/casevault/internal/access/postgres"
)

func TestAccessPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Access Postgres Suite")
}

// SQLite-compatible models for testing
type SQLiteRoleAssignment struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null"`
	ProgramID int64     `gorm:"column:program_id;not null"`
	Role      string    `gorm:"column:role;not null"`
	Status    string    `gorm:"column:status"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SQLiteRoleAssignment) TableName() string {
	return "role_assignments"
}

type SQLiteAccessBlock struct {
	ID        int64     `gorm:"primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null"`
	ClientID  int64     `gorm:"column:client_id;not null"`
	IsActive  bool      `gorm:"column:is_active"`
	CreatedBy int64     `gorm:"column:created_by"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SQLiteAccessBlock) TableName() string {
	return "access_blocks"
}

type SQLiteEnrollment struct {
	ID        int64     `gorm:"primaryKey"`
	ClientID  int64     `gorm:"column:client_id;not null"`
	ProgramID int64     `gorm:"column:program_id;not null"`
	Status    string    `gorm:"column:status"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SQLiteEnrollment) TableName() string {
	return "enrollments"
}

var _ = Describe("Access PostgreSQL Repository", func() {
	var (
		db   *gorm.DB
		repo access.Repository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteRoleAssignment{}, &SQLiteAccessBlock{}, &SQLiteEnrollment{})
		Expect(err).NotTo(HaveOccurred())

		repo = accessPostgres.NewAccessRepository(db)
		ctx = context.Background()
	})

	Describe("RolesFor", func() {
		It("should return every assignment with its parsed role", func() {
			Expect(db.Create(&SQLiteRoleAssignment{UserID: 1, ProgramID: 100, Role: "staff", Status: "active"}).Error).NotTo(HaveOccurred())
			Expect(db.Create(&SQLiteRoleAssignment{UserID: 1, ProgramID: 200, Role: "program_manager", Status: "inactive"}).Error).NotTo(HaveOccurred())

			assignments, err := repo.RolesFor(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(assignments).To(HaveLen(2))
		})

		It("should surface unknown role values as integrity violations", func() {
			Expect(db.Create(&SQLiteRoleAssignment{UserID: 1, ProgramID: 100, Role: "superuser", Status: "active"}).Error).NotTo(HaveOccurred())

			_, err := repo.RolesFor(ctx, 1)
			Expect(errors.Is(err, access.ErrInvalidRole)).To(BeTrue())
		})
	})

	Describe("ProgramsWithRole", func() {
		It("should filter by status", func() {
			Expect(db.Create(&SQLiteRoleAssignment{UserID: 1, ProgramID: 100, Role: "staff", Status: "active"}).Error).NotTo(HaveOccurred())
			Expect(db.Create(&SQLiteRoleAssignment{UserID: 1, ProgramID: 200, Role: "staff", Status: "inactive"}).Error).NotTo(HaveOccurred())

			set, err := repo.ProgramsWithRole(ctx, 1, "active")
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Contains(100)).To(BeTrue())
			Expect(set.Contains(200)).To(BeFalse())
		})

		It("should reflect a status flip on the very next read", func() {
			row := SQLiteRoleAssignment{UserID: 1, ProgramID: 100, Role: "staff", Status: "active"}
			Expect(db.Create(&row).Error).NotTo(HaveOccurred())

			set, err := repo.ProgramsWithRole(ctx, 1, "active")
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Contains(100)).To(BeTrue())

			Expect(db.Model(&SQLiteRoleAssignment{}).Where("id = ?", row.ID).Update("status", "inactive").Error).NotTo(HaveOccurred())

			set, err = repo.ProgramsWithRole(ctx, 1, "active")
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Contains(100)).To(BeFalse())
		})
	})

	Describe("HasActiveBlock", func() {
		It("should only report active blocks", func() {
			Expect(db.Create(&SQLiteAccessBlock{UserID: 1, ClientID: 10, IsActive: true, CreatedBy: 99}).Error).NotTo(HaveOccurred())
			Expect(db.Create(&SQLiteAccessBlock{UserID: 2, ClientID: 10, IsActive: false, CreatedBy: 99}).Error).NotTo(HaveOccurred())

			blocked, err := repo.HasActiveBlock(ctx, 1, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(BeTrue())

			blocked, err = repo.HasActiveBlock(ctx, 2, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(blocked).To(BeFalse())
		})
	})

	Describe("EnrolledPrograms", func() {
		It("should only count current enrollments", func() {
			Expect(db.Create(&SQLiteEnrollment{ClientID: 10, ProgramID: 100, Status: "enrolled"}).Error).NotTo(HaveOccurred())
			Expect(db.Create(&SQLiteEnrollment{ClientID: 10, ProgramID: 200, Status: "unenrolled"}).Error).NotTo(HaveOccurred())

			set, err := repo.EnrolledPrograms(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(set.Contains(100)).To(BeTrue())
			Expect(set.Contains(200)).To(BeFalse())
		})
	})
})
