package common

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Rhymond/go-money"
)

// FieldError represents a single field validation failure
type FieldError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator provides validation utilities
type Validator struct {
	errors []FieldError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Error returns a combined error, or nil when every field passed.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return errors.New(v.ErrorMessage())
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *FieldError

// Required - Common validation rules
func Required(fieldName string, value interface{}) *FieldError {
	if value == nil {
		return &FieldError{Field: fieldName, Value: value, Message: "is required"}
	}

	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	}
	return nil
}

// CurrencyCode accepts ISO 4217 codes known to the money package.
func CurrencyCode(fieldName string, value interface{}) *FieldError {
	str, ok := value.(string)
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be a string"}
	}
	if len(str) != 3 {
		return &FieldError{Field: fieldName, Value: value, Message: "must be exactly 3 characters (ISO 4217)"}
	}
	if money.GetCurrency(strings.ToUpper(str)) == nil {
		return &FieldError{Field: fieldName, Value: value, Message: "is not a known ISO 4217 currency"}
	}
	return nil
}

func IntAtLeast(min int) ValidationRule {
	return func(fieldName string, value interface{}) *FieldError {
		n, ok := value.(int)
		if !ok {
			return &FieldError{Field: fieldName, Value: value, Message: "must be an integer"}
		}
		if n < min {
			return &FieldError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be at least %d", min)}
		}
		return nil
	}
}

func Int64Between(min, max int64) ValidationRule {
	return func(fieldName string, value interface{}) *FieldError {
		n, ok := value.(int64)
		if !ok {
			return &FieldError{Field: fieldName, Value: value, Message: "must be an integer"}
		}
		if n < min || n > max {
			return &FieldError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be between %d and %d", min, max)}
		}
		return nil
	}
}

func FloatBetween(min, max float64) ValidationRule {
	return func(fieldName string, value interface{}) *FieldError {
		f, ok := value.(float64)
		if !ok {
			return &FieldError{Field: fieldName, Value: value, Message: "must be a number"}
		}
		if f < min || f > max {
			return &FieldError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be between %g and %g", min, max)}
		}
		return nil
	}
}

func OneOf(allowed ...string) ValidationRule {
	return func(fieldName string, value interface{}) *FieldError {
		str, _ := value.(string)
		if !slices.Contains(allowed, str) {
			return &FieldError{Field: fieldName, Value: value, Message: "must be one of " + strings.Join(allowed, ", ")}
		}
		return nil
	}
}
