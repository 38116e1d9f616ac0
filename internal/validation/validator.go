// Matchkeeper - Gamepack Match Telemetry Daemon
// Copyright 2026 The Matchkeeper Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/matchkeeper/matchkeeper

package validation

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// GetValidator returns the shared validator instance. The instance is
// created on first use and is safe for concurrent use.
func GetValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidationError describes a single failed constraint on a struct field.
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError aggregates every constraint violation found in
// one ValidateStruct call.
type RequestValidationError struct {
	errors []ValidationError
}

// Error implements the error interface, joining the individual messages.
func (e *RequestValidationError) Error() string {
	if len(e.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.errors))
	for i, ve := range e.errors {
		msgs[i] = ve.Message
	}
	return strings.Join(msgs, "; ")
}

// Errors returns the individual violations for callers that render them
// separately, such as API error payloads.
func (e *RequestValidationError) Errors() []ValidationError {
	return e.errors
}

// ValidateStruct validates s against its struct tags and returns a
// *RequestValidationError with translated messages on failure.
func ValidateStruct(s interface{}) error {
	if err := GetValidator().Struct(s); err != nil {
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		out := &RequestValidationError{errors: make([]ValidationError, 0, len(fieldErrs))}
		for _, fe := range fieldErrs {
			out.errors = append(out.errors, ValidationError{
				Field:   fe.Field(),
				Tag:     fe.Tag(),
				Param:   fe.Param(),
				Value:   fmt.Sprintf("%v", fe.Value()),
				Message: translateError(fe),
			})
		}
		return out
	}
	return nil
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"gt":       "%s must be greater than %s",
	"gte":      "%s must be at least %s",
	"lt":       "%s must be less than %s",
	"lte":      "%s must be at most %s",
	"oneof":    "%s must be one of: %s",
	"dive":     "%s contains an invalid element",
	"url":      "%s must be a valid URL",
	"hostname": "%s must be a valid hostname",
	"ip":       "%s must be a valid IP address",
}

// translateError turns a validator.FieldError into a human-readable
// message. min and max depend on the field kind: lengths for strings,
// bounds for numbers.
func translateError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "min":
		return translateMinMax(fe, field, "at least")
	case "max":
		return translateMinMax(fe, field, "at most")
	}
	if tmpl, ok := errorMessageTemplates[fe.Tag()]; ok {
		if strings.Count(tmpl, "%s") == 2 {
			return fmt.Sprintf(tmpl, field, fe.Param())
		}
		return fmt.Sprintf(tmpl, field)
	}
	return fmt.Sprintf("%s failed validation on the %s rule", field, fe.Tag())
}

func translateMinMax(fe validator.FieldError, field, bound string) string {
	switch fe.Type().Kind().String() {
	case "string":
		return fmt.Sprintf("%s must be %s %s characters", field, bound, fe.Param())
	case "slice", "array", "map":
		return fmt.Sprintf("%s must have %s %s entries", field, bound, fe.Param())
	default:
		return fmt.Sprintf("%s must be %s %s", field, bound, fe.Param())
	}
}
