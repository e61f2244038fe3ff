package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/client"
	"github.com/nonprofit-tech/casevault/internal/crypto"
	"github.com/nonprofit-tech/casevault/internal/report"

	clientDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/client"
)

// ClientRepository persists encrypted case files. It also backs the report
// builder: raw enrollment counts through the stats methods and decrypted
// per-client rows through RowsForProgram, which is why it holds the cipher.
type ClientRepository struct {
	db     *gorm.DB
	cipher *crypto.FieldCipher
}

func NewClientRepository(db *gorm.DB, cipher *crypto.FieldCipher) *ClientRepository {
	return &ClientRepository{db: db, cipher: cipher}
}

var (
	_ client.RepositoryAPI       = (*ClientRepository)(nil)
	_ report.StatsRepository     = (*ClientRepository)(nil)
	_ report.ClientRowRepository = (*ClientRepository)(nil)
)

func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*clientDatamodel.ClientRecord, error) {
	var record clientDatamodel.ClientRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.ErrClientNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *ClientRepository) Create(ctx context.Context, record *clientDatamodel.ClientRecord, enrollProgramIDs []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		for _, programID := range enrollProgramIDs {
			enrollment := clientDatamodel.Enrollment{
				ClientID:  record.ID,
				ProgramID: programID,
				Status:    client.EnrollmentStatusEnrolled,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			if err := tx.Create(&enrollment).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ClientRepository) Update(ctx context.Context, record *clientDatamodel.ClientRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *ClientRepository) EnrollmentsFor(ctx context.Context, clientID int64) ([]clientDatamodel.Enrollment, error) {
	var enrollments []clientDatamodel.Enrollment
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Find(&enrollments).Error
	return enrollments, err
}

func (r *ClientRepository) ApplyEnrollments(ctx context.Context, clientID int64, enroll []int64, unenroll []int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, programID := range enroll {
			enrollment := clientDatamodel.Enrollment{
				ClientID:  clientID,
				ProgramID: programID,
				Status:    client.EnrollmentStatusEnrolled,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "client_id"}, {Name: "program_id"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"status":     client.EnrollmentStatusEnrolled,
					"updated_at": time.Now(),
				}),
			}).Create(&enrollment).Error
			if err != nil {
				return err
			}
		}
		if len(unenroll) > 0 {
			err := tx.Model(&clientDatamodel.Enrollment{}).
				Where("client_id = ? AND program_id IN ?", clientID, unenroll).
				Updates(map[string]interface{}{
					"status":     client.EnrollmentStatusUnenrolled,
					"updated_at": time.Now(),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ClientRepository) FieldDefByID(ctx context.Context, fieldID int64) (*clientDatamodel.CustomFieldDef, error) {
	var def clientDatamodel.CustomFieldDef
	err := r.db.WithContext(ctx).Where("id = ?", fieldID).First(&def).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, internal.NewNotFoundError("Field definition not found", internal.ErrCodeFieldNotFound)
		}
		return nil, err
	}
	return &def, nil
}

func (r *ClientRepository) FieldValuesFor(ctx context.Context, clientID int64) ([]clientDatamodel.CustomFieldValue, error) {
	var values []clientDatamodel.CustomFieldValue
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Find(&values).Error
	return values, err
}

func (r *ClientRepository) FieldDefsByIDs(ctx context.Context, ids []int64) (map[int64]clientDatamodel.CustomFieldDef, error) {
	if len(ids) == 0 {
		return map[int64]clientDatamodel.CustomFieldDef{}, nil
	}
	var defs []clientDatamodel.CustomFieldDef
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&defs).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]clientDatamodel.CustomFieldDef, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}
	return byID, nil
}

func (r *ClientRepository) UpsertFieldValue(ctx context.Context, value *clientDatamodel.CustomFieldValue) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "field_id"}, {Name: "client_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"plain_value":     value.PlainValue,
			"encrypted_value": value.EncryptedValue,
			"updated_at":      value.UpdatedAt,
		}),
	}).Create(value).Error
}

func (r *ClientRepository) EnrolledCount(ctx context.Context, programID int64) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&clientDatamodel.Enrollment{}).
		Where("program_id = ? AND status = ?", programID, client.EnrollmentStatusEnrolled).
		Count(&count).Error
	return int(count), err
}

func (r *ClientRepository) EnrollmentCountsByStatus(ctx context.Context, programID int64) (map[string]int, error) {
	type row struct {
		Status string
		N      int
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&clientDatamodel.Enrollment{}).
		Select("status, count(*) as n").
		Where("program_id = ?", programID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

// RowsForProgram returns decrypted individual-level rows. The report
// builder only calls this for admin-built client-data exports; a decrypt
// failure aborts the whole export rather than emitting a partial row.
func (r *ClientRepository) RowsForProgram(ctx context.Context, programID int64) ([]report.ClientRow, error) {
	var records []clientDatamodel.ClientRecord
	err := r.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.client_id = client_records.id").
		Where("enrollments.program_id = ? AND enrollments.status = ?", programID, client.EnrollmentStatusEnrolled).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	rows := make([]report.ClientRow, 0, len(records))
	for _, record := range records {
		firstName, err := r.cipher.Decrypt(record.EncryptedFirstName)
		if err != nil {
			return nil, err
		}
		lastName, err := r.cipher.Decrypt(record.EncryptedLastName)
		if err != nil {
			return nil, err
		}
		birthDate, err := r.cipher.Decrypt(record.EncryptedBirthDate)
		if err != nil {
			return nil, err
		}
		rows = append(rows, report.ClientRow{
			ClientID:  record.ID,
			FirstName: firstName,
			LastName:  lastName,
			BirthDate: birthDate,
		})
	}
	return rows, nil
}
