// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator for structured validation.
// Using a struct allows for dependency injection and easier testing.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the shared custom rules registered.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonFieldName)
	_ = v.RegisterValidation("nodoubledot", noDoubleDot)
	_ = v.RegisterValidation("yesno", yesNo)
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// FieldErrors maps a validation failure to request field paths and the rule each one broke,
// e.g. {"questions[0].qualifyingAnswer": "yesno"}. Paths use JSON names and drop the root type.
// Errors that are not validation failures yield nil.
func (val *Validator) FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest
		}
		out[path] = fe.Tag()
	}
	return out
}

// IsEmail reports whether value passes the email syntax rules used for leads.
func (val *Validator) IsEmail(value string) bool {
	return val.v.Var(value, "required,email,max=254,nodoubledot") == nil
}

func noDoubleDot(fl validator.FieldLevel) bool {
	return !strings.Contains(fl.Field().String(), "..")
}

func yesNo(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == "yes" || value == "no"
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}
