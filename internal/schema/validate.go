package schema

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	hundred      = decimal.NewFromInt(100)
)

// validatorInstance returns the shared validator. Field errors are reported
// by json name and decimals are validated through their string form, so a
// null required decimal fails "required" while a zero one passes.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})
		_ = v.RegisterValidation("nonneg", nonNegative)
		_ = v.RegisterValidation("percent", percent)
		validate = v
	})
	return validate
}

func decimalValue(field reflect.Value) interface{} {
	switch d := field.Interface().(type) {
	case decimal.Decimal:
		return d.String()
	case decimal.NullDecimal:
		if !d.Valid {
			return nil
		}
		return d.Decimal.String()
	}
	return nil
}

func fieldDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	f := fl.Field()
	switch f.Kind() {
	case reflect.String:
		d, err := decimal.NewFromString(f.String())
		return d, err == nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return decimal.NewFromInt(f.Int()), true
	case reflect.Float32, reflect.Float64:
		return decimal.NewFromFloat(f.Float()), true
	}
	return decimal.Zero, false
}

func nonNegative(fl validator.FieldLevel) bool {
	d, ok := fieldDecimal(fl)
	return ok && !d.IsNegative()
}

func percent(fl validator.FieldLevel) bool {
	d, ok := fieldDecimal(fl)
	return ok && !d.IsNegative() && d.LessThanOrEqual(hundred)
}

// check validates record v and converts the first failing field into a
// *ValidationError for entity.
func check(entity string, v interface{}) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return &ValidationError{Entity: entity, Field: "", Rule: err.Error()}
	}
	fe := fields[0]
	return &ValidationError{
		Entity: entity,
		Field:  fieldPath(fe.Namespace()),
		Rule:   fe.Tag(),
	}
}

// fieldPath drops the struct name from a validator namespace:
// "Invoice.items[0].price" becomes "items[0].price".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// CheckEmail reports an empty or well-formed address as valid. Stored
// records keep email as free text, so only entry forms call this.
func CheckEmail(email string) error {
	if err := validatorInstance().Var(email, "omitempty,email"); err != nil {
		return &ValidationError{Entity: "customer", Field: "email", Rule: "email"}
	}
	return nil
}

// Validate checks the customer's required fields.
func (c *Customer) Validate() error { return check("customer", c) }

// Validate checks the product's required and numeric fields.
func (p *Product) Validate() error { return check("product", p) }

// Validate checks the invoice header and every item.
func (inv *Invoice) Validate() error { return check("invoice", inv) }

// Validate checks the expense's required fields.
func (e *Expense) Validate() error { return check("expense", e) }

// Validate checks that both key and value are present.
func (s *Setting) Validate() error { return check("setting", s) }
