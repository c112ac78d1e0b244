package httpapi

import (
	"github.com/go-playground/validator/v10"

	"github.com/gyeh/medbill/internal/model"
)

// CustomValidator adapts the shared validator to echo.
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	return &CustomValidator{validator: model.Validator()}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
