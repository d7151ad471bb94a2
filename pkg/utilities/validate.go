package utilities

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// FieldError names one failed rule on one request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError is returned for malformed or invalid request bodies.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+":"+f.Rule)
	}
	return e.Message + " (" + strings.Join(parts, ", ") + ")"
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with the project's custom rules.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("mcuuid", func(fl validator.FieldLevel) bool {
			return IsMinecraftUUID(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// IsMinecraftUUID reports whether s parses as a UUID.
func IsMinecraftUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizeUUID returns the canonical dashed lower-case form of s.
func NormalizeUUID(s string) (string, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", &ValidationError{Message: "invalid uuid", Fields: []FieldError{{Field: "uuid", Rule: "mcuuid"}}}
	}
	return id.String(), nil
}

// Validate runs struct validation on v and converts failures into a
// *ValidationError.
func Validate(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Message: "invalid request body"}
	for _, fe := range verrs {
		ns := fe.Namespace()
		// drop the root struct name
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		out.Fields = append(out.Fields, FieldError{Field: ns, Rule: fe.Tag()})
	}
	return out
}

// DecodeJSON decodes a JSON request body into v and validates it.
func DecodeJSON(r io.Reader, v any) error {
	if err := json.NewDecoder(r).Decode(v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ValidationError{
				Message: fmt.Sprintf("expected %s to be a %s", typeErr.Field, typeErr.Type),
				Fields:  []FieldError{{Field: typeErr.Field, Rule: "type"}},
			}
		}
		return &ValidationError{Message: "invalid payload"}
	}
	return Validate(v)
}
