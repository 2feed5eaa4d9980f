package core

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports a row or entry that is missing required data.
// Row is the 1-based spreadsheet row or JSON entry index; 0 when not applicable.
type ValidationError struct {
	Err    error
	Row    int
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func NewRowValidationError(row int, err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Row: row, Fields: flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	if err.Row == 0 {
		return err.Err.Error()
	}
	msg := fmt.Sprintf("row %d: %v", err.Row, err.Err)
	if len(err.Fields) == 0 {
		return msg
	}
	flds := make([]string, 0, len(err.Fields))
	for _, fld := range err.Fields {
		flds = append(flds, fld.Error)
	}
	return msg + ": " + strings.Join(flds, "; ")
}

func (err ValidationError) Unwrap() error { return err.Err }

// ParseError reports a malformed upload (JSON or workbook).
type ParseError struct {
	Source string
	Err    error
}

func NewParseError(source string, err error) error {
	return &ParseError{Source: source, Err: err}
}

func (err ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", err.Source, err.Err)
}

func (err ParseError) Unwrap() error { return err.Err }

type NotFoundError struct {
	Entity string
	Key    string
}

func NewNotFoundError(entity, key string) error {
	return &NotFoundError{Entity: entity, Key: key}
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", err.Entity, err.Key)
}

// ExternalAPIError reports a failed call to the spreadsheet provider.
type ExternalAPIError struct {
	Op  string
	Err error
}

func NewExternalAPIError(op string, err error) error {
	return &ExternalAPIError{Op: op, Err: err}
}

func (err ExternalAPIError) Error() string {
	return fmt.Sprintf("external api %s: %v", err.Op, err.Err)
}

func (err ExternalAPIError) Unwrap() error { return err.Err }

type DatabaseError struct {
	Op  string
	Err error
}

func NewDatabaseError(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

func (err DatabaseError) Error() string {
	return fmt.Sprintf("database %s: %v", err.Op, err.Err)
}

func (err DatabaseError) Unwrap() error { return err.Err }

// GenerationError wraps any failure of the attendance sheet workflow.
type GenerationError struct {
	Stream  string
	Subject string
	Err     error
}

func NewGenerationError(stream, subject string, err error) error {
	return &GenerationError{Stream: stream, Subject: subject, Err: err}
}

func (err GenerationError) Error() string {
	if err.Stream == "" && err.Subject == "" {
		return fmt.Sprintf("generating attendance sheets: %v", err.Err)
	}
	return fmt.Sprintf("generating attendance sheet (stream %q, subject %q): %v", err.Stream, err.Subject, err.Err)
}

func (err GenerationError) Unwrap() error { return err.Err }

// IsServerSide reports whether the generation failed because of the provider or the store.
func (err GenerationError) IsServerSide() bool {
	var apiErr *ExternalAPIError
	var dbErr *DatabaseError
	return errors.As(err.Err, &apiErr) || errors.As(err.Err, &dbErr)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	var s *shutdown
	return errors.As(err, &s)
}
