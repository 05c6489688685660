package dashboard

import (
	"errors"
	"fmt"
)

// Error codes returned by the pipeline. They double as the "code" field of
// API error responses.
const (
	CodeDataUnavailable   = "DATA_UNAVAILABLE"
	CodeMissingCoordinate = "MISSING_COORDINATE"
	CodeInvalidColumn     = "INVALID_COLUMN"
	CodeEmptyTable        = "EMPTY_TABLE"
	CodeInvalidCurrency   = "INVALID_CURRENCY"
	CodeInvalidRecord     = "INVALID_RECORD"
)

// Sentinels for errors.Is. Any *Error with the same code matches.
var (
	ErrDataUnavailable   = &Error{Code: CodeDataUnavailable, Message: "data source unavailable"}
	ErrMissingCoordinate = &Error{Code: CodeMissingCoordinate, Message: "city has no coordinates"}
	ErrInvalidColumn     = &Error{Code: CodeInvalidColumn, Message: "unknown column"}
	ErrEmptyTable        = &Error{Code: CodeEmptyTable, Message: "table has no rows"}
	ErrInvalidCurrency   = &Error{Code: CodeInvalidCurrency, Message: "malformed currency amount"}
	ErrInvalidRecord     = &Error{Code: CodeInvalidRecord, Message: "malformed record"}
)

// Error represents a pipeline failure surfaced to the presentation layer
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// DataUnavailable wraps a source failure
func DataUnavailable(source string, err error) error {
	return &Error{
		Code:    CodeDataUnavailable,
		Message: fmt.Sprintf("failed to load %s", source),
		Err:     err,
	}
}

// InvalidColumn reports a column name the table does not provide
func InvalidColumn(name string) error {
	return &Error{
		Code:    CodeInvalidColumn,
		Message: fmt.Sprintf("unknown column %q", name),
	}
}

// InvalidRecord reports malformed input data
func InvalidRecord(format string, args ...any) error {
	return &Error{
		Code:    CodeInvalidRecord,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode extracts the pipeline code from err, or "" when err is not a
// pipeline error
func ErrorCode(err error) string {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
