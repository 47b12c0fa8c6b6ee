package shared

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mwhitford/edgegate/internal/fault"
)

// validate is the shared validator instance. Field names in violation
// messages come from the json struct tag so clients see the wire-level
// field name, not the Go identifier.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into the given struct. A non-JSON
// Content-Type yields an unsupported-media fault and malformed bodies yield
// a validation fault, so callers can pass the error straight to the problem
// responder.
func DecodeJSON(r *http.Request, v interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return fault.New(fault.KindUnsupportedMedia, "request body must be application/json")
		}
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fault.Wrap(fault.KindValidation, "request body is not valid JSON", err)
	}
	return nil
}

// ValidateStruct validates the given struct and converts validator failures
// into a validation fault carrying one violation per invalid field.
func ValidateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fault.Wrap(fault.KindInternal, "request validation failed", err)
	}

	violations := make([]fault.FieldViolation, 0, len(verrs))
	for _, fe := range verrs {
		violations = append(violations, fault.FieldViolation{
			Field:   fe.Field(),
			Message: violationMessage(fe),
		})
	}
	return fault.Validation("one or more request fields are invalid", violations...)
}

// violationMessage maps a validator tag to a client-facing message.
func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required field"
	case "email":
		return "invalid email format"
	case "uuid", "uuid4":
		return "must be a valid UUID"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return "validation failed on the '" + fe.Tag() + "' rule"
	}
}
