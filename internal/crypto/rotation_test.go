package crypto_test

import (
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	clientDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/client"
	"github.com/nonprofit-tech/casevault/internal/crypto"
)

// SQLite-compatible shadow models for testing
type SQLiteClientRecord struct {
	ID                 int64     `gorm:"primaryKey"`
	EncryptedFirstName []byte    `gorm:"column:encrypted_first_name"`
	EncryptedLastName  []byte    `gorm:"column:encrypted_last_name"`
	EncryptedBirthDate []byte    `gorm:"column:encrypted_birth_date"`
	IsDemo             bool      `gorm:"column:is_demo"`
	CreatedAt          time.Time `gorm:"column:created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at"`
}

func (SQLiteClientRecord) TableName() string {
	return "client_records"
}

type SQLiteCustomFieldValue struct {
	ID             int64     `gorm:"primaryKey"`
	FieldID        int64     `gorm:"column:field_id"`
	ClientID       int64     `gorm:"column:client_id"`
	PlainValue     *string   `gorm:"column:plain_value"`
	EncryptedValue []byte    `gorm:"column:encrypted_value"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (SQLiteCustomFieldValue) TableName() string {
	return "custom_field_values"
}

var _ = Describe("Rotator", func() {
	var (
		db        *gorm.DB
		oldCipher *crypto.FieldCipher
		newCipher *crypto.FieldCipher
		rotator   *crypto.Rotator
		logger    *slog.Logger
	)

	mustEncrypt := func(c *crypto.FieldCipher, plaintext string) []byte {
		ciphertext, err := c.Encrypt(plaintext)
		Expect(err).NotTo(HaveOccurred())
		return ciphertext
	}

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteClientRecord{}, &SQLiteCustomFieldValue{})
		Expect(err).NotTo(HaveOccurred())

		oldCipher, err = crypto.NewFieldCipher(generateKey())
		Expect(err).NotTo(HaveOccurred())
		newCipher, err = crypto.NewFieldCipher(generateKey())
		Expect(err).NotTo(HaveOccurred())

		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		rotator = crypto.NewRotator(db, oldCipher, newCipher, logger)
	})

	seedClient := func(first, last string) int64 {
		rec := SQLiteClientRecord{
			EncryptedFirstName: mustEncrypt(oldCipher, first),
			EncryptedLastName:  mustEncrypt(oldCipher, last),
		}
		Expect(db.Create(&rec).Error).NotTo(HaveOccurred())
		return rec.ID
	}

	Describe("Run", func() {
		It("should re-encrypt every row under the new key", func() {
			seedClient("Ana", "Silva")
			seedClient("Ben", "Okafor")

			report, err := rotator.Run(false)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Models[0].Model).To(Equal("client_records"))
			Expect(report.Models[0].Reencrypted).To(Equal(2))
			Expect(report.Models[0].Failed).To(Equal(0))

			var records []SQLiteClientRecord
			Expect(db.Find(&records).Error).NotTo(HaveOccurred())
			for _, rec := range records {
				_, err := oldCipher.Decrypt(rec.EncryptedFirstName)
				Expect(err).To(MatchError(crypto.ErrIntegrity))

				first, err := newCipher.Decrypt(rec.EncryptedFirstName)
				Expect(err).NotTo(HaveOccurred())
				Expect(first).To(BeElementOf("Ana", "Ben"))
			}
		})

		It("should count rows with no encrypted columns as skipped", func() {
			Expect(db.Create(&SQLiteClientRecord{}).Error).NotTo(HaveOccurred())
			seedClient("Ana", "Silva")

			report, err := rotator.Run(false)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Models[0].Reencrypted).To(Equal(1))
			Expect(report.Models[0].Skipped).To(Equal(1))
		})

		It("should count undecryptable rows as failed without aborting the batch", func() {
			seedClient("Ana", "Silva")
			corrupted := SQLiteClientRecord{
				EncryptedFirstName: []byte("corrupted-bytes"),
			}
			Expect(db.Create(&corrupted).Error).NotTo(HaveOccurred())
			seedClient("Ben", "Okafor")

			report, err := rotator.Run(false)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Models[0].Reencrypted).To(Equal(2))
			Expect(report.Models[0].Failed).To(Equal(1))
		})

		It("should rotate custom field values", func() {
			val := SQLiteCustomFieldValue{
				FieldID:        1,
				ClientID:       1,
				EncryptedValue: mustEncrypt(oldCipher, "ssn 123-45-6789"),
			}
			Expect(db.Create(&val).Error).NotTo(HaveOccurred())

			report, err := rotator.Run(false)
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Models[1].Model).To(Equal("custom_field_values"))
			Expect(report.Models[1].Reencrypted).To(Equal(1))

			var stored clientDatamodel.CustomFieldValue
			Expect(db.First(&stored).Error).NotTo(HaveOccurred())
			plaintext, err := newCipher.Decrypt(stored.EncryptedValue)
			Expect(err).NotTo(HaveOccurred())
			Expect(plaintext).To(Equal("ssn 123-45-6789"))
		})

		Describe("dry run", func() {
			It("should report counts without persisting anything", func() {
				seedClient("Ana", "Silva")
				seedClient("Ben", "Okafor")
				corrupted := SQLiteClientRecord{
					EncryptedFirstName: []byte("corrupted-bytes"),
				}
				Expect(db.Create(&corrupted).Error).NotTo(HaveOccurred())

				report, err := rotator.Run(true)
				Expect(err).NotTo(HaveOccurred())
				Expect(report.DryRun).To(BeTrue())
				Expect(report.Models[0].Reencrypted).To(Equal(2))
				Expect(report.Models[0].Failed).To(Equal(1))

				// database unchanged: old key still decrypts
				var records []SQLiteClientRecord
				Expect(db.Where("encrypted_last_name IS NOT NULL").Find(&records).Error).NotTo(HaveOccurred())
				for _, rec := range records {
					last, err := oldCipher.Decrypt(rec.EncryptedLastName)
					Expect(err).NotTo(HaveOccurred())
					Expect(last).To(BeElementOf("Silva", "Okafor"))
				}
			})
		})
	})
})
