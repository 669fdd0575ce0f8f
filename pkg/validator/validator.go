package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validator validates structs by their `validate` tags.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (va *Validator) Validate(obj interface{}) error {
	if err := va.v.Struct(obj); err != nil {
		var errs validator.ValidationErrors
		if ok := AsValidationErrors(err, &errs); ok && len(errs) > 0 {
			fe := errs[0]
			return fmt.Errorf("field %s failed validation on %q", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

// AsValidationErrors is a small helper so callers don't need to import the
// underlying library for type assertions.
func AsValidationErrors(err error, target *validator.ValidationErrors) bool {
	v, ok := err.(validator.ValidationErrors)
	if ok {
		*target = v
	}
	return ok
}
