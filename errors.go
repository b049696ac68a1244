package restree

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

// ErrorCode represents a machine-readable dispatch error code.
type ErrorCode string

const (
	CodeInvalidArgument      ErrorCode = "invalid_argument"
	CodeNotFound             ErrorCode = "not_found"
	CodeMethodNotAllowed     ErrorCode = "method_not_allowed"
	CodeUnsupportedMediaType ErrorCode = "unsupported_media_type"
	CodeNotAcceptable        ErrorCode = "not_acceptable"
	CodeCanceled             ErrorCode = "canceled"
	CodeDeadlineExceeded     ErrorCode = "deadline_exceeded"
	CodeInternal             ErrorCode = "internal"
	CodeNotImplemented       ErrorCode = "not_implemented"
)

// Error is the JSON error envelope written when dispatch fails.
type Error struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new dispatch error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Errorf creates a new dispatch error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithDetail returns a new Error with the key-value pair added to details.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// WithDetails returns a new Error with the provided map merged into details.
func (e *Error) WithDetails(details map[string]any) *Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: merged,
	}
}

// BindError reports a request value that could not be bound to a handler
// parameter. DefaultErrorTransformer maps it to CodeInvalidArgument.
type BindError struct {
	// Param is the parameter name; empty for an unnamed entity.
	Param  string
	Source Source
	Err    error
}

func (e *BindError) Error() string {
	if e.Source == SourceEntity {
		return "request body: " + e.Err.Error()
	}
	return fmt.Sprintf("%s parameter %q: %v", e.Source, e.Param, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// ErrorTransformer maps a handler error to a dispatch error.
// If it returns nil, DefaultErrorTransformer is applied.
type ErrorTransformer func(error) *Error

// DefaultErrorTransformer maps standard Go errors to dispatch errors.
func DefaultErrorTransformer(err error) *Error {
	if err == nil {
		return nil
	}

	var rErr *Error
	if errors.As(err, &rErr) {
		return rErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(CodeDeadlineExceeded, "request timeout")
	}

	if errors.Is(err, context.Canceled) {
		return NewError(CodeCanceled, "context canceled")
	}

	var bindErr *BindError
	if errors.As(err, &bindErr) {
		return bindErrorToError(bindErr)
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return Errorf(CodeInvalidArgument, "request body too large (limit %d bytes)", maxErr.Limit).
			WithDetail("limit", maxErr.Limit)
	}

	var multi schema.MultiError
	if errors.As(err, &multi) {
		return multiErrorToError(multi)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		rErr := Errorf(CodeInvalidArgument, "cannot decode %s into %s", typeErr.Value, typeErr.Type)
		if typeErr.Field != "" {
			rErr = rErr.WithDetail(typeErr.Field, "must be "+typeErr.Type.String())
		}
		return rErr
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return Errorf(CodeInvalidArgument, "malformed JSON at offset %d: %v", syntaxErr.Offset, syntaxErr)
	}

	var valErrs validator.ValidationErrors
	if errors.As(err, &valErrs) {
		details := make(map[string]any)
		messages := make([]string, 0, len(valErrs))
		for _, ve := range valErrs {
			msg := formatValidationError(ve)
			details[ve.Field()] = msg
			messages = append(messages, ve.Field()+": "+msg)
		}
		return &Error{
			Code:    CodeInvalidArgument,
			Message: strings.Join(messages, "; "),
			Details: details,
		}
	}

	// errors.Join
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		errs := u.Unwrap()
		if len(errs) > 0 {
			firstMapped := DefaultErrorTransformer(errs[0])
			msgs := make([]string, len(errs))
			for i, e := range errs {
				msgs[i] = e.Error()
			}
			return &Error{
				Code:    firstMapped.Code,
				Message: strings.Join(msgs, "; "),
				Details: firstMapped.Details,
			}
		}
	}

	return NewError(CodeInternal, err.Error())
}

// bindErrorToError maps the cause of a BindError and names the parameter.
// Any cause is a client error.
func bindErrorToError(e *BindError) *Error {
	cause := DefaultErrorTransformer(e.Err)
	rErr := &Error{Code: CodeInvalidArgument, Message: e.Error(), Details: cause.Details}
	if cause.Code != CodeInternal {
		rErr.Code = cause.Code
		if e.Source == SourceEntity {
			rErr.Message = cause.Message
		} else {
			rErr.Message = fmt.Sprintf("%s parameter %q: %s", e.Source, e.Param, cause.Message)
		}
	}
	if e.Param != "" {
		rErr = rErr.WithDetail("param", e.Param)
	}
	return rErr.WithDetail("source", e.Source.String())
}

// multiErrorToError reports each failed bean field in details, keyed by its
// form key.
func multiErrorToError(multi schema.MultiError) *Error {
	keys := make([]string, 0, len(multi))
	for k := range multi {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	details := make(map[string]any, len(multi))
	messages := make([]string, 0, len(multi))
	for _, k := range keys {
		msg := multi[k].Error()
		var convErr schema.ConversionError
		if errors.As(multi[k], &convErr) {
			msg = "must be " + convErr.Type.String()
		}
		details[k] = msg
		messages = append(messages, k+": "+msg)
	}
	return &Error{
		Code:    CodeInvalidArgument,
		Message: strings.Join(messages, "; "),
		Details: details,
	}
}

// HTTPStatus maps an ErrorCode to an HTTP status code.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case CodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case CodeNotAcceptable:
		return http.StatusNotAcceptable
	case CodeCanceled:
		return 499 // Client Closed Request (Nginx standard)
	case CodeDeadlineExceeded:
		return http.StatusGatewayTimeout
	case CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "len":
		return fmt.Sprintf("must have length %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

func writeError(w http.ResponseWriter, rErr *Error, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rErr.Code.HTTPStatus())
	if err := encodeErrorResponse(w, rErr); err != nil {
		// Headers already sent, nothing we can do.
		logger.Error("failed to encode error response",
			slog.String("code", string(rErr.Code)),
			slog.String("message", rErr.Message),
			slog.Any("error", err))
	}
}
