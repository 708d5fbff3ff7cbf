package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/gregriff/vogo/relay/internal/schemas"
)

// ErrInvalidRequest wraps every rejection of a request body.
var ErrInvalidRequest = errors.New("invalid request")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// bcrypt only reads the first 72 bytes of a passphrase
	if err := v.RegisterValidation("maxbytes", maxBytes); err != nil {
		panic(err)
	}
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if o, ok := field.Interface().(schemas.OptionalString); ok {
			return o.Value
		}
		return nil
	}, schemas.OptionalString{})
	return v
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

// CheckCreateChannel validates the body of a channel creation. A missing name
// is left to the registry so that it can report it with its own error.
func CheckCreateChannel(req schemas.CreateChannelRequest) error {
	return check(req)
}

// CheckUpdateChannel validates the body of a channel update.
func CheckUpdateChannel(req schemas.UpdateChannelRequest) error {
	return check(req)
}

func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, describe(fieldErrs[0]))
}

// describe returns user-friendly errors
func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "Name":
		return fmt.Sprintf("name too long. Must be %s characters or less", fe.Param())
	case "MaxUsers":
		return fmt.Sprintf("maxUsers too large. Must be %s or less", fe.Param())
	case "Password":
		return fmt.Sprintf("password too long. Must be %s bytes or less", fe.Param())
	}
	return fmt.Sprintf("invalid %s", fe.Field())
}
