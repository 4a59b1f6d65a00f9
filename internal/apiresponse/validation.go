package apiresponse

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
)

var registerOnce sync.Once

// RegisterValidators installs the custom rules and field naming on gin's validator engine.
func RegisterValidators() {
	registerOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		engine.RegisterTagNameFunc(fieldName)
		_ = engine.RegisterValidation("notblank", validators.NotBlank)
	})
}

func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return field.Name
}

// Bind decodes and validates the request into target, collecting every violation.
func Bind(contextGin *gin.Context, target any) *Error {
	RegisterValidators()
	if err := contextGin.ShouldBind(target); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindingError(err error) *Error {
	violations := Violations(err)
	if len(violations) == 0 {
		return BadRequest("Malformed request body")
	}
	return Invalid(violations)
}

// Violations converts validator errors into the client-facing list.
func Violations(err error) []Violation {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return nil
	}
	violations := make([]Violation, 0, len(fieldErrors))
	for _, fieldErr := range fieldErrors {
		violations = append(violations, Violation{
			Field:   fieldErr.Field(),
			Rule:    fieldErr.Tag(),
			Message: violationMessage(fieldErr),
		})
	}
	return violations
}

func violationMessage(fieldErr validator.FieldError) string {
	field := fieldErr.Field()
	switch fieldErr.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid id", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fieldErr.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fieldErr.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fieldErr.Param())
	case "alphanum":
		return fmt.Sprintf("%s must contain only letters and digits", field)
	default:
		return fmt.Sprintf("%s failed %s", field, fieldErr.Tag())
	}
}

// RequireID checks that a path or query identifier is a well-formed UUID.
func RequireID(field string, value string) *Error {
	if _, err := uuid.Parse(strings.TrimSpace(value)); err != nil {
		return Invalid([]Violation{{
			Field:   field,
			Rule:    "uuid",
			Message: fmt.Sprintf("%s must be a valid id", field),
		}})
	}
	return nil
}
