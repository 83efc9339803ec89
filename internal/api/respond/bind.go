package respond

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/homegrubhub/homegrubhub-be/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind decodes the JSON body into dst and runs its validate tags.
func Bind(r *http.Request, dst interface{}) error {
	if err := Decode(r, dst); err != nil {
		return err
	}
	return Validate(dst)
}

// Validate checks a struct's validate tags, reporting failing fields by their
// JSON-ish name.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("Invalid request")
	}

	details := make(map[string]string, len(verrs))
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := lowerFirst(fe.Field())
		details[name] = fe.Tag()
		fields = append(fields, name)
	}
	appErr := apperr.Validation("Invalid fields: %s", strings.Join(fields, ", "))
	appErr.Details = details
	return appErr
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
