package service

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Validation failures. Each rejected submission unwraps to exactly one of these.
var (
	ErrInvalidPayload        = errors.New("invalid payload")
	ErrMissingField          = errors.New("missing required field")
	ErrFieldTooLong          = errors.New("field too long")
	ErrInvalidSlugFormat     = errors.New("invalid slug format")
	ErrSlugDerivationFailed  = errors.New("slug derivation failed")
	ErrInvalidFieldFormat    = errors.New("invalid field format")
	ErrInvalidAuthorEmail    = errors.New("invalid author email")
	ErrInvalidURL            = errors.New("invalid url")
	ErrInvalidImageDimension = errors.New("invalid image dimension")
	ErrInvalidStatus         = errors.New("invalid status")
	ErrInvalidPostType       = errors.New("invalid post type")
	ErrInvalidPublishedDate  = errors.New("invalid published date")
)

// Operational failures.
var (
	ErrSlugExhausted    = errors.New("unique slug attempts exhausted")
	ErrStorage          = errors.New("storage error")
	ErrDuplicateEntry   = errors.New("duplicate entry")
	ErrInsertIncomplete = errors.New("insert returned no record")
	ErrBlogNotFound     = errors.New("blog not found")
)

var validationKinds = []error{
	ErrInvalidPayload,
	ErrMissingField,
	ErrFieldTooLong,
	ErrInvalidSlugFormat,
	ErrSlugDerivationFailed,
	ErrInvalidFieldFormat,
	ErrInvalidAuthorEmail,
	ErrInvalidURL,
	ErrInvalidImageDimension,
	ErrInvalidStatus,
	ErrInvalidPostType,
	ErrInvalidPublishedDate,
	ErrInvalidMailRequest,
}

// CodedError carries the machine readable code and the human readable message
// of a failed operation. It unwraps to its class sentinel and, when present,
// to the underlying cause.
type CodedError struct {
	Kind    error
	Field   string
	Code    string
	Message string
	Err     error
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *CodedError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newCodedError(kind error, field, code, message string) *CodedError {
	return &CodedError{Kind: kind, Field: field, Code: code, Message: message}
}

func wrapCodedError(kind error, code, message string, cause error) *CodedError {
	return &CodedError{Kind: kind, Code: code, Message: message, Err: cause}
}

// IsValidationError reports whether err is a rejection of caller input.
func IsValidationError(err error) bool {
	for _, kind := range validationKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// ErrorCode extracts the machine readable code from err, or "" if it has none.
func ErrorCode(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// ErrorMessage extracts the caller facing message from err.
func ErrorMessage(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Message
	}
	return ""
}

// isUniqueViolation 兼容开启与未开启 TranslateError 的连接。
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
