package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// ErrorKind groups processing error codes into the three families callers react to.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindMalformed  ErrorKind = "malformed"
	KindExtraction ErrorKind = "extraction"
	KindCancelled  ErrorKind = "cancelled"
)

// Machine-readable error codes.
const (
	CodeEmptyInput        = "EMPTY_INPUT"
	CodeFileTooLarge      = "FILE_TOO_LARGE"
	CodeZeroLength        = "ZERO_LENGTH"
	CodeUnsupportedType   = "UNSUPPORTED_TYPE"
	CodeMalformed         = "MALFORMED_DOCUMENT"
	CodeTextExtraction    = "TEXT_EXTRACTION_FAILED"
	CodeRasterize         = "RASTERIZE_FAILED"
	CodeOCRFailed         = "OCR_FAILED"
	CodeImageDecode       = "IMAGE_DECODE_FAILED"
	CodeCancelled         = "CANCELLED"
	CodeInvalidTransition = "INVALID_TRANSITION"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
	ErrCancelled    = errors.New("processing cancelled")
)

// ProcessingError is the typed error returned by the processing pipeline.
// Validation and malformed-input errors are never recoverable; engine
// failures are.
type ProcessingError struct {
	Kind        ErrorKind
	Code        string
	Message     string
	Recoverable bool
	Cause       error
}

func (e *ProcessingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ProcessingError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrCancelled) and errors.Is(err, ErrValidation) match by kind.
func (e *ProcessingError) Is(target error) bool {
	switch target {
	case ErrCancelled:
		return e.Kind == KindCancelled
	case ErrValidation:
		return e.Kind == KindValidation
	}
	return false
}

// NewValidationError builds a non-recoverable input error.
func NewValidationError(code, message string) *ProcessingError {
	return &ProcessingError{Kind: KindValidation, Code: code, Message: message}
}

// NewMalformedError builds a non-recoverable error for documents the engines cannot parse.
func NewMalformedError(message string, cause error) *ProcessingError {
	return &ProcessingError{Kind: KindMalformed, Code: CodeMalformed, Message: message, Cause: cause}
}

// NewExtractionError builds a recoverable engine failure.
func NewExtractionError(code, message string, cause error) *ProcessingError {
	return &ProcessingError{Kind: KindExtraction, Code: code, Message: message, Recoverable: true, Cause: cause}
}

// NewCancelledError reports a cooperative abort for fileID.
func NewCancelledError(fileID string) *ProcessingError {
	return &ProcessingError{
		Kind:    KindCancelled,
		Code:    CodeCancelled,
		Message: fmt.Sprintf("processing of %s was cancelled", fileID),
		Cause:   ErrCancelled,
	}
}

// AsProcessingError unwraps err into a *ProcessingError when possible.
func AsProcessingError(err error) (*ProcessingError, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsCancelled reports whether err is a cooperative cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsRecoverable reports whether a caller may retry the file, possibly with different settings.
func IsRecoverable(err error) bool {
	if pe, ok := AsProcessingError(err); ok {
		return pe.Recoverable
	}
	return false
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
