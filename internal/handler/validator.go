package handler

import "github.com/go-playground/validator/v10"

// Validator adapts go-playground/validator to Echo's Validator interface.
// Models declare their constraints with `validate` struct tags; violations
// surface as validator.ValidationErrors and are mapped to 400 responses by
// the central error handler.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}
