package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound      ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized  ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden     ErrorType = "FORBIDDEN"
	ErrorTypeConflict      ErrorType = "CONFLICT"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
	ErrorTypeConfiguration ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeIntegrity     ErrorType = "INTEGRITY_ERROR"
	ErrorTypeUnusable      ErrorType = "EXPORT_UNUSABLE"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidRole      ErrorCode = "INVALID_ROLE"
	ErrCodeInvalidKind      ErrorCode = "INVALID_EXPORT_KIND"

	ErrCodeClientNotFound  ErrorCode = "CLIENT_NOT_FOUND"
	ErrCodeProgramNotFound ErrorCode = "PROGRAM_NOT_FOUND"
	ErrCodeLinkNotFound    ErrorCode = "LINK_NOT_FOUND"
	ErrCodeFieldNotFound   ErrorCode = "FIELD_NOT_FOUND"

	// All access denials map onto this one code. The response must not
	// reveal whether the denial came from a block, a demo mismatch, or a
	// missing program role.
	ErrCodeAccessDenied ErrorCode = "ACCESS_DENIED"

	ErrCodeConfidentialFlagFinal ErrorCode = "CONFIDENTIAL_FLAG_FINAL"

	ErrCodeMissingFieldKey ErrorCode = "MISSING_FIELD_KEY"
	ErrCodeDecryptFailed   ErrorCode = "DECRYPT_FAILED"

	ErrCodeLinkExpired  ErrorCode = "LINK_EXPIRED"
	ErrCodeLinkRevoked  ErrorCode = "LINK_REVOKED"
	ErrCodeLinkPending  ErrorCode = "LINK_PENDING"
	ErrCodeFileMissing  ErrorCode = "FILE_MISSING"
	ErrCodePathEscape   ErrorCode = "PATH_ESCAPE"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewConfigurationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeConfiguration,
		Code:       ErrCodeMissingFieldKey,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewIntegrityError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeIntegrity,
		Code:       ErrCodeDecryptFailed,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewUnusableError builds the user-facing explanation for a link that exists
// but cannot be downloaded. Each state renders distinctly so a legitimate
// requester knows whether to wait, re-generate, or contact support. The
// status is 410 rather than 404 so an unusable link is indistinguishable
// from one that never existed only at the routing layer, not here.
func NewUnusableError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnusable,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusGone,
	}
}

var (
	ErrClientNotFound  = NewNotFoundError("Client record not found", ErrCodeClientNotFound)
	ErrProgramNotFound = NewNotFoundError("Program not found", ErrCodeProgramNotFound)
	ErrLinkNotFound    = NewNotFoundError("Export link not found", ErrCodeLinkNotFound)

	// ErrAccessDenied is the single response body for every denial path.
	ErrAccessDenied = NewForbiddenError("access denied", ErrCodeAccessDenied)

	ErrConfidentialFlagFinal = NewValidationError("confidential flag cannot be removed once set", ErrCodeConfidentialFlagFinal)

	ErrLinkExpired = NewUnusableError("This export link has expired. Generate a new export to continue.", ErrCodeLinkExpired)
	ErrLinkRevoked = NewUnusableError("This export link was revoked by an administrator.", ErrCodeLinkRevoked)
	ErrLinkPending = NewUnusableError("This export is in its review window and is not downloadable yet. Try again shortly.", ErrCodeLinkPending)
	ErrFileMissing = NewUnusableError("The export file is no longer available. Contact support if you believe this is an error.", ErrCodeFileMissing)

	// ErrPathEscape is a security violation, not a missing file.
	ErrPathEscape = NewForbiddenError("access denied", ErrCodePathEscape)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
