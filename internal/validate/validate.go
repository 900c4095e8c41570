// Package validate normalizes and validates inbound request parameters and
// JSON bodies. Every failure is reported as a *ValidationError carrying a
// field-level, human-readable message.
package validate

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/dmarkhas/greengrocer/internal/domain/product"
)

// ValidationError is a client-caused input failure tied to a single field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

// Errorf builds a field-level validation error.
func Errorf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

var (
	markupRe   = regexp.MustCompile(`<[^>]*>`)
	endpointRe = regexp.MustCompile(`[^A-Za-z0-9/_-]`)
	phoneKeep  = regexp.MustCompile(`[^0-9+\s]`)
	digitsOnly = regexp.MustCompile(`[^0-9]`)
)

// CleanString trims whitespace and strips markup tags from s.
// An empty result means the field is absent.
func CleanString(s string) string {
	return strings.TrimSpace(markupRe.ReplaceAllString(s, ""))
}

// SanitizeEndpoint reduces a raw endpoint string to the routing alphabet
// [A-Za-z0-9/_-] and trims leading and trailing slashes.
func SanitizeEndpoint(s string) string {
	s = endpointRe.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.Trim(s, "/")
}

// PositiveInt parses raw as a positive integer identifier.
func PositiveInt(field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, Errorf(field, "is required")
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, Errorf(field, "must be a number")
	}
	if n <= 0 {
		return 0, Errorf(field, "must be a positive integer")
	}
	return n, nil
}

// IntInRange parses an optional numeric parameter, substituting def when the
// parameter is absent and rejecting values outside [min, max].
func IntInRange(field, raw string, def, min, max int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, Errorf(field, "must be a number")
	}
	if n < min || n > max {
		return 0, Errorf(field, "must be between %d and %d", min, max)
	}
	return n, nil
}

// Phone normalizes a phone number: everything except digits, '+' and
// whitespace is stripped, and the result must contain at least 10 digits.
// An empty input is allowed and returns an empty string.
func Phone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	cleaned := strings.TrimSpace(phoneKeep.ReplaceAllString(raw, ""))
	if len(digitsOnly.ReplaceAllString(cleaned, "")) < 10 {
		return "", Errorf("phone", "must contain at least 10 digits")
	}
	return cleaned, nil
}

// DecodeJSON decodes a request body into dst. An empty body or malformed
// JSON is a client error, never an empty object.
func DecodeJSON(r io.Reader, dst any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return Errorf("body", "could not be read")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Errorf("body", "request body is required")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return Errorf("body", "must be valid JSON")
	}
	return nil
}

// structValidator checks struct tags on request payloads. Field names in
// error messages come from json tags so they match what the client sent.
var structValidator = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("unit", func(fl validator.FieldLevel) bool {
		return product.Unit(fl.Field().String()).Valid()
	})
	return v
}()

// Struct runs tag-based validation on a payload struct, converting the first
// violation into a *ValidationError.
func Struct(payload any) error {
	err := structValidator.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return Errorf("body", "is invalid")
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return Errorf(fe.Field(), "is required")
	case "max":
		return Errorf(fe.Field(), "must be at most %s characters", fe.Param())
	case "min", "gte":
		return Errorf(fe.Field(), "is out of range")
	case "unit":
		return Errorf(fe.Field(), "must be one of: %s", unitList())
	default:
		return Errorf(fe.Field(), "is invalid")
	}
}

func unitList() string {
	names := make([]string, len(product.Units))
	for i, u := range product.Units {
		names[i] = string(u)
	}
	return strings.Join(names, ", ")
}
