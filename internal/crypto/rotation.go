package crypto

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	clientDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/client"
)

// ModelReport counts the outcome of one model's rotation pass. A row is
// skipped when every encrypted column is empty, failed when any column
// refuses to decrypt under the old key, and re-encrypted otherwise.
type ModelReport struct {
	Model       string
	Reencrypted int
	Skipped     int
	Failed      int
}

type RotationReport struct {
	Models []ModelReport
	DryRun bool
}

// Rotator re-encrypts every encrypted column from oldCipher to newCipher,
// one transaction per model. Failed rows are counted and left untouched so
// a handful of undecryptable legacy rows never abort the batch. Rotation is
// an exclusive offline operation; no concurrent traffic is assumed safe.
type Rotator struct {
	db        *gorm.DB
	oldCipher *FieldCipher
	newCipher *FieldCipher
	logger    *slog.Logger
}

func NewRotator(db *gorm.DB, oldCipher, newCipher *FieldCipher, logger *slog.Logger) *Rotator {
	return &Rotator{
		db:        db,
		oldCipher: oldCipher,
		newCipher: newCipher,
		logger:    logger,
	}
}

// Run walks every model with encrypted columns. With dryRun the full
// decrypt pass still happens, so the report is identical to a real run, but
// nothing is persisted.
func (r *Rotator) Run(dryRun bool) (*RotationReport, error) {
	report := &RotationReport{DryRun: dryRun}

	clientReport, err := r.rotateClientRecords(dryRun)
	if err != nil {
		return nil, fmt.Errorf("rotate client_records: %w", err)
	}
	report.Models = append(report.Models, clientReport)

	fieldReport, err := r.rotateCustomFieldValues(dryRun)
	if err != nil {
		return nil, fmt.Errorf("rotate custom_field_values: %w", err)
	}
	report.Models = append(report.Models, fieldReport)

	return report, nil
}

func (r *Rotator) rotateClientRecords(dryRun bool) (ModelReport, error) {
	report := ModelReport{Model: "client_records"}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var records []clientDatamodel.ClientRecord
		if err := tx.Find(&records).Error; err != nil {
			return err
		}

		for _, rec := range records {
			cols := map[string][]byte{
				"encrypted_first_name": rec.EncryptedFirstName,
				"encrypted_last_name":  rec.EncryptedLastName,
				"encrypted_birth_date": rec.EncryptedBirthDate,
			}

			updates, outcome := r.reencryptColumns(cols)
			switch outcome {
			case outcomeSkipped:
				report.Skipped++
				continue
			case outcomeFailed:
				report.Failed++
				r.logger.Warn("undecryptable row left untouched",
					"model", report.Model, "id", rec.ID)
				continue
			}

			if !dryRun {
				if err := tx.Model(&clientDatamodel.ClientRecord{}).
					Where("id = ?", rec.ID).
					Updates(updates).Error; err != nil {
					return err
				}
			}
			report.Reencrypted++
		}
		return nil
	})

	return report, err
}

func (r *Rotator) rotateCustomFieldValues(dryRun bool) (ModelReport, error) {
	report := ModelReport{Model: "custom_field_values"}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var values []clientDatamodel.CustomFieldValue
		if err := tx.Where("encrypted_value IS NOT NULL").Find(&values).Error; err != nil {
			return err
		}

		for _, val := range values {
			cols := map[string][]byte{
				"encrypted_value": val.EncryptedValue,
			}

			updates, outcome := r.reencryptColumns(cols)
			switch outcome {
			case outcomeSkipped:
				report.Skipped++
				continue
			case outcomeFailed:
				report.Failed++
				r.logger.Warn("undecryptable row left untouched",
					"model", report.Model, "id", val.ID)
				continue
			}

			if !dryRun {
				if err := tx.Model(&clientDatamodel.CustomFieldValue{}).
					Where("id = ?", val.ID).
					Updates(updates).Error; err != nil {
					return err
				}
			}
			report.Reencrypted++
		}
		return nil
	})

	return report, err
}

type rowOutcome int

const (
	outcomeReencrypted rowOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// reencryptColumns decrypts each non-empty column with the old key and
// re-encrypts with the new one. One bad column fails the whole row: a
// partially rotated row would be worse than an untouched one.
func (r *Rotator) reencryptColumns(cols map[string][]byte) (map[string]interface{}, rowOutcome) {
	updates := make(map[string]interface{}, len(cols))
	nonEmpty := 0

	for col, ciphertext := range cols {
		if len(ciphertext) == 0 {
			continue
		}
		nonEmpty++

		plaintext, err := r.oldCipher.Decrypt(ciphertext)
		if err != nil {
			return nil, outcomeFailed
		}

		rotated, err := r.newCipher.Encrypt(plaintext)
		if err != nil {
			return nil, outcomeFailed
		}
		updates[col] = rotated
	}

	if nonEmpty == 0 {
		return nil, outcomeSkipped
	}
	return updates, outcomeReencrypted
}
