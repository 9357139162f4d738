package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xavierca1/firm-backoffice/internal/store"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks v against its struct tags and reports every failing field
// under its JSON name.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	return formatValidationErrors(verrs)
}

func formatValidationErrors(verrs validator.ValidationErrors) ValidationErrors {
	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "is invalid"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must have at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must not exceed %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "len":
		return fmt.Sprintf("must have exactly %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match the format %s", fe.Param())
	case "startswith":
		return fmt.Sprintf("must start with %s", fe.Param())
	}
	if fe.Param() != "" {
		return fmt.Sprintf("failed on the '%s' rule (%s)", fe.Tag(), fe.Param())
	}
	return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
}

var immutableColumns = map[string]bool{"id": true, "created_at": true, "updated_at": true}

// ValidatePatch checks a partial update against T's tags. Only the columns
// present in the patch are validated; unknown and immutable columns are
// rejected. immutable adds columns that only a dedicated operation may write.
func ValidatePatch[T any](patch map[string]any, immutable ...string) (store.Record, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	fields := jsonFields(typ)

	var errs ValidationErrors
	var names []string
	for column := range patch {
		switch name, ok := fields[column]; {
		case immutableColumns[column] || slices.Contains(immutable, column):
			errs = append(errs, ValidationError{Field: column, Message: "cannot be changed"})
		case !ok:
			errs = append(errs, ValidationError{Field: column, Message: "is not a known field"})
		default:
			names = append(names, name)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	if len(patch) == 0 {
		return nil, ValidationErrors{{Field: "body", Message: "must contain at least one field"}}
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	var target T
	if err := json.Unmarshal(body, &target); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, ValidationErrors{{Field: typeErr.Field, Message: "has the wrong type"}}
		}
		return nil, ValidationErrors{{Field: "body", Message: err.Error()}}
	}

	if err := validate.StructPartial(&target, names...); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, formatValidationErrors(verrs)
		}
		return nil, err
	}
	return store.Record(patch), nil
}

// jsonFields maps JSON column names to Go field names.
func jsonFields(typ reflect.Type) map[string]string {
	out := make(map[string]string, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		out[name] = f.Name
	}
	return out
}
