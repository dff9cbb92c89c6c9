package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// identRe matches table names that are safe to use as unquoted SQL identifiers.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their TOML key.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		// Validate durations as their nanosecond count.
		v.RegisterCustomTypeFunc(func(f reflect.Value) any {
			if d, ok := f.Interface().(Duration); ok {
				return int64(d.Duration)
			}
			return nil
		}, Duration{})

		_ = v.RegisterValidation("sqlident", func(fl validator.FieldLevel) bool {
			return identRe.MatchString(fl.Field().String())
		})

		validate = v
	})
	return validate
}

// Validate checks every field and cross-field constraint. The returned error
// wraps domain.ErrInvalidInput and lists every problem found.
func (c *Config) Validate() error {
	err := validatorInstance().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: config: %s", domain.ErrInvalidInput, strings.Join(msgs, "; "))
}

// describe turns a field error into "store.port must be at most 65535".
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "ltfield":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "sqlident":
		return fmt.Sprintf("%s %q is not a valid table name", field, fe.Value())
	case "url":
		return fmt.Sprintf("%s %q is not a valid URL", field, fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s %q must be host:port", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
