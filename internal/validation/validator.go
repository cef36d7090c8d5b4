// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

// Package validation wraps go-playground/validator v10 with a shared
// validator instance and readable error messages. It is used for the
// configuration file and for the inference API's query parameters.
//
//	type recommendQuery struct {
//	    UserID int64 `validate:"gt=0"`
//	    N      int   `validate:"min=1,max=500"`
//	}
//
//	if err := validation.ValidateStruct(&q); err != nil {
//	    writeError(w, http.StatusBadRequest, err.Error())
//	}
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single field validation failure.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Value   interface{}
	Message string
}

// Error returns a human-readable error message.
func (e *FieldError) Error() string {
	return e.Message
}

// Errors is the collection of failures for one struct.
type Errors struct {
	Fields []FieldError
}

// Error joins the per-field messages.
func (ve *Errors) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, 0, len(ve.Fields))
	for i := range ve.Fields {
		messages = append(messages, ve.Fields[i].Message)
	}
	return strings.Join(messages, "; ")
}

// Details returns the failures as field -> message, for API error bodies.
func (ve *Errors) Details() map[string]string {
	out := make(map[string]string, len(ve.Fields))
	for i := range ve.Fields {
		out[ve.Fields[i].Field] = ve.Fields[i].Message
	}
	return out
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Item codes are free-form (85123A, POST, BANK CHARGES): printable,
		// and not blank.
		_ = validate.RegisterValidation("itemcode", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if strings.TrimSpace(s) == "" {
				return false
			}
			for _, r := range s {
				if !unicode.IsPrint(r) {
					return false
				}
			}
			return true
		})
	})
	return validate
}

// ValidateStruct validates s using the shared validator.
// It returns nil when s is valid and *Errors otherwise.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return &Errors{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	fields := make([]FieldError, len(validationErrs))
	for i, fe := range validationErrs {
		fields[i] = FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: translateError(fe),
		}
	}
	return &Errors{Fields: fields}
}

var errorMessageTemplates = map[string]string{
	"required": "%s is required",
	"itemcode": "%s must be a non-blank printable item code",
	"dirpath":  "%s must be a directory path",
	"filepath": "%s must be a file path",
	"hostname": "%s must be a valid hostname",
	"ip":       "%s must be a valid IP address",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"lt":    "%s must be less than %s",
}

func translateError(fe validator.FieldError) string {
	field := fe.Namespace()
	tag := fe.Tag()
	param := fe.Param()

	if template, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(template, field)
	}
	if template, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(template, field, param)
	}

	isString := fe.Kind().String() == "string"
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
