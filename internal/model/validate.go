package model

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator. Decimal fields are compared
// as float64 so numeric tags such as gte apply to money.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(f reflect.Value) any {
			switch d := f.Interface().(type) {
			case decimal.Decimal:
				return d.InexactFloat64()
			case decimal.NullDecimal:
				if !d.Valid {
					return nil
				}
				return d.Decimal.InexactFloat64()
			}
			return nil
		}, decimal.Decimal{}, decimal.NullDecimal{})
		validate = v
	})
	return validate
}

// Validate checks the record's invariants: non-negative quantities and
// charges and a non-negative stated total.
func (b *BillRecord) Validate() error {
	return Validator().Struct(b)
}
