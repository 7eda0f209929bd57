package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

// newValidator reports fields by their wire name (json, then query tag) so
// clients see the names they sent.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// ReadAndValidateRequest binds req, fills its defaults and validates it. A nil
// result means the request is usable.
func ReadAndValidateRequest(c echo.Context, req interface{}) []ValidationError {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var fields validator.ValidationErrors
	if errors.As(err, &fields) {
		out := make([]ValidationError, len(fields))
		for i, fe := range fields {
			out[i] = fieldError(fe)
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_BIND", Message: msg}}
}

func fieldError(fe validator.FieldError) ValidationError {
	field, param := fe.Field(), fe.Param()
	ve := ValidationError{
		Code:  "ERR_" + strings.ToUpper(fe.Tag()),
		Field: field,
	}

	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}
	switch fe.Tag() {
	case "required":
		ve.Message = field + " is required"
	case "min", "gte":
		ve.Message = fmt.Sprintf("%s must be at least %s%s", field, param, unit)
		ve.Params = map[string]interface{}{"min": param}
	case "max", "lte":
		ve.Message = fmt.Sprintf("%s must be at most %s%s", field, param, unit)
		ve.Params = map[string]interface{}{"max": param}
	case "gt":
		ve.Message = fmt.Sprintf("%s must be greater than %s", field, param)
		ve.Params = map[string]interface{}{"value": param}
	case "lt":
		ve.Message = fmt.Sprintf("%s must be less than %s", field, param)
		ve.Params = map[string]interface{}{"value": param}
	case "oneof":
		opts := strings.Fields(param)
		ve.Message = fmt.Sprintf("%s must be one of: %s", field, strings.Join(opts, ", "))
		ve.Params = map[string]interface{}{"options": opts}
	default:
		ve.Message = fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
	return ve
}
