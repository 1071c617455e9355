package forms

import (
	"errors"
	"strings"
)

var (
	ErrInvalidBody = errors.New("invalid request body")
	ErrIncomplete  = errors.New("notifier configuration incomplete")
)

// FieldError descreve uma regra violada de um campo.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError agrega todas as violações do payload, na ordem dos campos.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
