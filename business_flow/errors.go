package businessflow

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Business flow error constants
var (
	// Lead lookup errors
	ErrLeadNotFound      = errors.New("lead not found")
	ErrLeadIDRequired    = errors.New("lead id is required")
	ErrActorRequired     = errors.New("actor is required")
	ErrMutationInFlight  = errors.New("another change to this lead is in progress")
	ErrRemoteFailure     = errors.New("lead api request failed")
	ErrCacheNotAvailable = errors.New("cache not available")

	// Lifecycle errors
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrFieldNotEditable     = errors.New("field is not editable")
	ErrValidation           = errors.New("validation failed")

	// Reason capture errors
	ErrLostReasonRequired  = errors.New("a reason is required to mark a lead lost")
	ErrInvalidLostReason   = errors.New("reason is not one of the allowed lost reasons")
	ErrReasonDraftNotFound = errors.New("no open reason dialog for this lead")
	ErrReasonKindInvalid   = errors.New("reason dialog kind must be lost or junk")

	// Assignment errors
	ErrAssignmentRequired = errors.New("sales rep or designer is required")

	// Conversion errors
	ErrConversionFormRequired = errors.New("conversion details are submitted through the conversion form")
	ErrDocumentNotFound       = errors.New("document not found")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// ValidationError collects per-field problems found before any network call
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records the first problem for a field
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ErrOrNil returns e when it holds problems and nil otherwise
func (e *ValidationError) ErrOrNil() error {
	if e == nil || !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AsValidationError extracts the field map carried by err
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

func IsMutationInFlight(err error) bool {
	return errors.Is(err, ErrMutationInFlight)
}

func IsRemoteFailure(err error) bool {
	return errors.Is(err, ErrRemoteFailure)
}

func IsTransitionNotAllowed(err error) bool {
	return errors.Is(err, ErrTransitionNotAllowed)
}

func IsFieldNotEditable(err error) bool {
	return errors.Is(err, ErrFieldNotEditable)
}

func IsLostReasonRequired(err error) bool {
	return errors.Is(err, ErrLostReasonRequired)
}

func IsReasonDraftNotFound(err error) bool {
	return errors.Is(err, ErrReasonDraftNotFound)
}

func IsDocumentNotFound(err error) bool {
	return errors.Is(err, ErrDocumentNotFound)
}
