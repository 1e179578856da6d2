package domain

import "fmt"

// DomainError carries a stable machine-readable code alongside a
// human-readable reason. Every rejection the API surfaces is one of these.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnavailable      = "PROVIDER_UNAVAILABLE"
)

// Scope errors
var (
	ErrScopeOrgRequired = NewDomainError(ErrCodeValidation, "organization scope is required")
	ErrScopeIntegrity   = NewDomainError(ErrCodeValidation, "scope integrity violation: engagement scope requires a client")
	ErrScopeMismatch    = NewDomainError(ErrCodeForbidden, "declared scope is not authorized for this token")
)

// Validation errors
var (
	ErrInvalidSourceType      = NewDomainError(ErrCodeValidation, "invalid knowledge source type")
	ErrInvalidValidationState = NewDomainError(ErrCodeValidation, "invalid validation state")
	ErrInvalidTier            = NewDomainError(ErrCodeValidation, "validation tier must be between 1 and 4")
	ErrInvalidConfidence      = NewDomainError(ErrCodeValidation, "confidence must be between 0 and 1")
	ErrMalformedContent       = NewDomainError(ErrCodeValidation, "malformed knowledge content")
)

// Not found errors
var (
	ErrKnowledgeNotFound  = NewDomainError(ErrCodeNotFound, "knowledge item not found")
	ErrCategoryNotFound   = NewDomainError(ErrCodeNotFound, "knowledge category not found")
	ErrPromotionNotFound  = NewDomainError(ErrCodeNotFound, "promotion record not found")
	ErrQueryLogNotFound   = NewDomainError(ErrCodeNotFound, "query log entry not found")
	ErrAPIKeyNotFound     = NewDomainError(ErrCodeNotFound, "api key not found")
	ErrReembedJobNotFound = NewDomainError(ErrCodeNotFound, "reembed job not found")
)

// Already exists errors
var (
	ErrCategoryAlreadyExists = NewDomainError(ErrCodeAlreadyExists, "knowledge category already exists")
	ErrAPIKeyAlreadyExists   = NewDomainError(ErrCodeAlreadyExists, "api key already exists")
)

// Authorization errors
var (
	ErrInvalidAPIKey      = NewDomainError(ErrCodeUnauthorized, "invalid api key")
	ErrAPIKeyRevoked      = NewDomainError(ErrCodeUnauthorized, "api key has been revoked")
	ErrInsufficientRole   = NewDomainError(ErrCodeForbidden, "role does not permit this action")
	ErrHumanActorRequired = NewDomainError(ErrCodeForbidden, "tier 4 validation requires a human actor")
)

// Workflow errors
var (
	ErrInvalidTransition        = NewDomainError(ErrCodeInvalidOperation, "invalid validation state transition")
	ErrPromoteSourceNotApproved = NewDomainError(ErrCodeInvalidOperation, "only approved items may be promoted")
	ErrPromoteScopeNotBroader   = NewDomainError(ErrCodeInvalidOperation, "promotion target scope must be broader than the source scope")
	ErrPromoteSourceTooBroad    = NewDomainError(ErrCodeInvalidOperation, "only client or engagement scoped items may be promoted")
	ErrPromotionConflict        = NewDomainError(ErrCodeConflict, "concurrent promotion detected, retry the operation")
	ErrSourceKeyConflict        = NewDomainError(ErrCodeConflict, "a live item already exists for this source key")
	ErrPromotionResolved        = NewDomainError(ErrCodeInvalidOperation, "promotion has already been resolved")
	ErrItemSuperseded           = NewDomainError(ErrCodeInvalidOperation, "item has been superseded by a newer version")
)

// Retrieval errors
var (
	ErrEmbeddingModelMismatch = NewDomainError(ErrCodeValidation, "query embedding model does not match stored embeddings")
	ErrProviderUnavailable    = NewDomainError(ErrCodeUnavailable, "embedding or completion provider unavailable")
)
