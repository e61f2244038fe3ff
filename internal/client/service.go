package client

import (
	"context"
	"log/slog"
	"time"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	"github.com/nonprofit-tech/casevault/internal/crypto"

	clientDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/client"
	programDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/program"
	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*clientDatamodel.ClientRecord, error)
	Create(ctx context.Context, record *clientDatamodel.ClientRecord, enrollProgramIDs []int64) error
	Update(ctx context.Context, record *clientDatamodel.ClientRecord) error

	EnrollmentsFor(ctx context.Context, clientID int64) ([]clientDatamodel.Enrollment, error)
	// ApplyEnrollments enrolls and unenrolls in one transaction. Programs
	// absent from both slices are left untouched.
	ApplyEnrollments(ctx context.Context, clientID int64, enroll []int64, unenroll []int64) error

	FieldDefByID(ctx context.Context, fieldID int64) (*clientDatamodel.CustomFieldDef, error)
	FieldValuesFor(ctx context.Context, clientID int64) ([]clientDatamodel.CustomFieldValue, error)
	FieldDefsByIDs(ctx context.Context, ids []int64) (map[int64]clientDatamodel.CustomFieldDef, error)
	UpsertFieldValue(ctx context.Context, value *clientDatamodel.CustomFieldValue) error
}

// ProgramDirectory resolves program names and confidentiality flags for
// enrollment views.
type ProgramDirectory interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*programDatamodel.Program, error)
}

type Service struct {
	repo      RepositoryAPI
	programs  ProgramDirectory
	evaluator *access.Evaluator
	cipher    *crypto.FieldCipher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, programs ProgramDirectory, evaluator *access.Evaluator, cipher *crypto.FieldCipher, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		programs:  programs,
		evaluator: evaluator,
		cipher:    cipher,
		logger:    logger,
	}
}

// Create opens a new case file. PII is encrypted before it touches the
// repository and the record inherits the creator's demo partition, so a
// demo user can never create a record visible to real users. The creator
// must hold an active role in every program the client is enrolled into.
func (s *Service) Create(ctx context.Context, creator *userDatamodel.User, dto CreateClientDTO) (*ClientResponse, error) {
	if creator == nil {
		return nil, internal.ErrAccessDenied
	}
	if dto.FirstName == "" || dto.LastName == "" {
		return nil, internal.NewValidationError("first and last name are required", internal.ErrCodeValidationFailed)
	}
	if len(dto.ProgramIDs) == 0 {
		return nil, internal.NewValidationError("at least one program enrollment is required", internal.ErrCodeValidationFailed)
	}

	visible, err := s.evaluator.VisiblePrograms(ctx, creator)
	if err != nil {
		return nil, err
	}
	for _, programID := range dto.ProgramIDs {
		if !visible.Contains(programID) {
			return nil, internal.ErrAccessDenied
		}
	}

	record := &clientDatamodel.ClientRecord{
		IsDemo:    creator.IsDemo,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if record.EncryptedFirstName, err = s.cipher.Encrypt(dto.FirstName); err != nil {
		return nil, err
	}
	if record.EncryptedLastName, err = s.cipher.Encrypt(dto.LastName); err != nil {
		return nil, err
	}
	if record.EncryptedBirthDate, err = s.cipher.Encrypt(dto.BirthDate); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, record, dto.ProgramIDs); err != nil {
		s.logger.Error("failed to create client record", "error", err)
		return nil, err
	}

	s.logger.Info("client record created",
		"client_id", record.ID,
		"creator_id", creator.ID,
		"is_demo", record.IsDemo)

	return s.buildResponse(ctx, creator, record, false)
}

// Get returns the decrypted case file, gated by the evaluator. The denial
// is the generic refusal in every case; the body never hints whether the
// cause was a block, the demo partition, or a missing shared program.
func (s *Service) Get(ctx context.Context, viewer *userDatamodel.User, id int64) (*ClientResponse, error) {
	record, err := s.authorize(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, viewer, record, true)
}

// Update edits PII and, when a program set is submitted, reconciles
// enrollments. The submitted set only governs programs the editor can see:
// the repository's current enrollment rows for invisible programs are
// carried over untouched, so an editor who cannot see a confidential
// enrollment can never drop it by omission.
func (s *Service) Update(ctx context.Context, editor *userDatamodel.User, id int64, dto UpdateClientDTO) (*ClientResponse, error) {
	record, err := s.authorize(ctx, editor, id)
	if err != nil {
		return nil, err
	}

	changed := false
	if dto.FirstName != nil {
		if *dto.FirstName == "" {
			return nil, internal.NewValidationError("first name cannot be empty", internal.ErrCodeValidationFailed)
		}
		if record.EncryptedFirstName, err = s.cipher.Encrypt(*dto.FirstName); err != nil {
			return nil, err
		}
		changed = true
	}
	if dto.LastName != nil {
		if *dto.LastName == "" {
			return nil, internal.NewValidationError("last name cannot be empty", internal.ErrCodeValidationFailed)
		}
		if record.EncryptedLastName, err = s.cipher.Encrypt(*dto.LastName); err != nil {
			return nil, err
		}
		changed = true
	}
	if dto.BirthDate != nil {
		if record.EncryptedBirthDate, err = s.cipher.Encrypt(*dto.BirthDate); err != nil {
			return nil, err
		}
		changed = true
	}

	if changed {
		record.UpdatedAt = time.Now()
		if err := s.repo.Update(ctx, record); err != nil {
			s.logger.Error("failed to update client record", "client_id", id, "error", err)
			return nil, err
		}
	}

	if dto.ProgramIDs != nil {
		if err := s.reconcileEnrollments(ctx, editor, id, *dto.ProgramIDs); err != nil {
			return nil, err
		}
	}

	return s.buildResponse(ctx, editor, record, true)
}

// ListEnrollments returns the viewer-filtered program memberships.
func (s *Service) ListEnrollments(ctx context.Context, viewer *userDatamodel.User, id int64) ([]EnrollmentView, error) {
	record, err := s.authorize(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return s.visibleEnrollments(ctx, viewer, record.ID)
}

// SetFieldValue writes one custom field value, dispatching on the field
// definition's sensitivity: sensitive values take the encrypted path and
// leave the plaintext column empty, and vice versa. The two paths never
// mix for one field.
func (s *Service) SetFieldValue(ctx context.Context, editor *userDatamodel.User, clientID int64, dto SetFieldValueDTO) error {
	if _, err := s.authorize(ctx, editor, clientID); err != nil {
		return err
	}

	def, err := s.repo.FieldDefByID(ctx, dto.FieldID)
	if err != nil {
		return err
	}

	visible, err := s.evaluator.VisiblePrograms(ctx, editor)
	if err != nil {
		return err
	}
	if !visible.Contains(def.ProgramID) {
		return internal.ErrAccessDenied
	}

	value := &clientDatamodel.CustomFieldValue{
		FieldID:   def.ID,
		ClientID:  clientID,
		UpdatedAt: time.Now(),
	}
	if def.IsSensitive {
		if value.EncryptedValue, err = s.cipher.Encrypt(dto.Value); err != nil {
			return err
		}
	} else {
		plain := dto.Value
		value.PlainValue = &plain
	}

	return s.repo.UpsertFieldValue(ctx, value)
}

func (s *Service) authorize(ctx context.Context, user *userDatamodel.User, id int64) (*clientDatamodel.ClientRecord, error) {
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed, err := s.evaluator.CanAccessClient(ctx, user, record)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, internal.ErrAccessDenied
	}
	return record, nil
}

func (s *Service) reconcileEnrollments(ctx context.Context, editor *userDatamodel.User, clientID int64, submitted []int64) error {
	visible, err := s.evaluator.VisiblePrograms(ctx, editor)
	if err != nil {
		return err
	}

	submittedSet := make(map[int64]struct{}, len(submitted))
	for _, programID := range submitted {
		if !visible.Contains(programID) {
			return internal.ErrAccessDenied
		}
		submittedSet[programID] = struct{}{}
	}

	current, err := s.repo.EnrollmentsFor(ctx, clientID)
	if err != nil {
		return err
	}

	var enroll, unenroll []int64
	currentByProgram := make(map[int64]string, len(current))
	for _, e := range current {
		currentByProgram[e.ProgramID] = e.Status
	}

	for programID := range submittedSet {
		if currentByProgram[programID] != EnrollmentStatusEnrolled {
			enroll = append(enroll, programID)
		}
	}
	for _, e := range current {
		// enrollments outside the editor's view are never touched
		if !visible.Contains(e.ProgramID) {
			continue
		}
		if _, keep := submittedSet[e.ProgramID]; !keep && e.Status == EnrollmentStatusEnrolled {
			unenroll = append(unenroll, e.ProgramID)
		}
	}

	if len(enroll) == 0 && len(unenroll) == 0 {
		return nil
	}
	return s.repo.ApplyEnrollments(ctx, clientID, enroll, unenroll)
}

// visibleEnrollments filters the client's enrollment list for a viewer:
// non-confidential programs always show, confidential programs only when
// the viewer holds an active role in them.
func (s *Service) visibleEnrollments(ctx context.Context, viewer *userDatamodel.User, clientID int64) ([]EnrollmentView, error) {
	enrollments, err := s.repo.EnrollmentsFor(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(enrollments) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(enrollments))
	for _, e := range enrollments {
		ids = append(ids, e.ProgramID)
	}
	records, err := s.programs.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*programDatamodel.Program, len(records))
	for _, p := range records {
		byID[p.ID] = p
	}

	visible, err := s.evaluator.VisiblePrograms(ctx, viewer)
	if err != nil {
		return nil, err
	}

	var views []EnrollmentView
	for _, e := range enrollments {
		p, ok := byID[e.ProgramID]
		if !ok {
			continue
		}
		if p.IsConfidential && !visible.Contains(p.ID) {
			continue
		}
		views = append(views, EnrollmentView{
			ProgramID:   p.ID,
			ProgramName: p.Name,
			Status:      e.Status,
		})
	}
	return views, nil
}

func (s *Service) buildResponse(ctx context.Context, viewer *userDatamodel.User, record *clientDatamodel.ClientRecord, includeFields bool) (*ClientResponse, error) {
	firstName, err := s.cipher.Decrypt(record.EncryptedFirstName)
	if err != nil {
		return nil, err
	}
	lastName, err := s.cipher.Decrypt(record.EncryptedLastName)
	if err != nil {
		return nil, err
	}
	birthDate, err := s.cipher.Decrypt(record.EncryptedBirthDate)
	if err != nil {
		return nil, err
	}

	enrollments, err := s.visibleEnrollments(ctx, viewer, record.ID)
	if err != nil {
		return nil, err
	}

	response := &ClientResponse{
		ID:          record.ID,
		FirstName:   firstName,
		LastName:    lastName,
		BirthDate:   birthDate,
		IsDemo:      record.IsDemo,
		Enrollments: enrollments,
	}

	if includeFields {
		fields, err := s.fieldValues(ctx, viewer, record.ID)
		if err != nil {
			return nil, err
		}
		response.Fields = fields
	}
	return response, nil
}

func (s *Service) fieldValues(ctx context.Context, viewer *userDatamodel.User, clientID int64) ([]FieldValue, error) {
	values, err := s.repo.FieldValuesFor(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(values))
	for _, v := range values {
		ids = append(ids, v.FieldID)
	}
	defs, err := s.repo.FieldDefsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	visible, err := s.evaluator.VisiblePrograms(ctx, viewer)
	if err != nil {
		return nil, err
	}

	var fields []FieldValue
	for _, v := range values {
		def, ok := defs[v.FieldID]
		if !ok {
			continue
		}
		if !visible.Contains(def.ProgramID) {
			continue
		}

		field := FieldValue{
			FieldID:     def.ID,
			Name:        def.Name,
			IsSensitive: def.IsSensitive,
		}
		if def.IsSensitive {
			plain, err := s.cipher.Decrypt(v.EncryptedValue)
			if err != nil {
				return nil, err
			}
			field.Value = plain
		} else if v.PlainValue != nil {
			field.Value = *v.PlainValue
		}
		fields = append(fields, field)
	}
	return fields, nil
}
