package models

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for invalid model values.
var (
	ErrEmptyText   = errors.New("message text is required")
	ErrInvalidPage = errors.New("page must be >= 1")
)

// FieldError is one invalid field.
type FieldError struct {
	Field string `json:"field"`
	Err   error  `json:"-"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error { return e.Err }

// ValidationErrors collects field errors. The zero value is ready to use.
type ValidationErrors []FieldError

// Add records err against field; a nil err is ignored.
func (v *ValidationErrors) Add(field string, err error) {
	if err != nil {
		*v = append(*v, FieldError{Field: field, Err: err})
	}
}

// Addf records a formatted failure against field.
func (v *ValidationErrors) Addf(field, format string, args ...any) {
	v.Add(field, fmt.Errorf(format, args...))
}

// Err returns nil when nothing was recorded.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap lets errors.Is and errors.As see every field error.
func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, e := range v {
		out[i] = e
	}
	return out
}
