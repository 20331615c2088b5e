package workflow

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	dErrors "etatcivil/pkg/domain-errors"
	"etatcivil/pkg/platform/httputil"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateRequired trims the payload's string fields and checks its validate
// tags. The first failing field, in declaration order, is reported by its
// JSON name. Only presence is checked here; formats are parsed by callers.
func ValidateRequired(payload any) error {
	httputil.Sanitize(payload)

	err := validatorInstance().Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return dErrors.Wrap(err, dErrors.CodeInternal, "validation failed")
	}

	first := verrs[0]
	field := fieldPath(first.Namespace())
	if first.Tag() == "required" {
		return dErrors.Validation(field, "Le champ "+field+" est requis")
	}
	return dErrors.Validation(field, "Le champ "+field+" est invalide")
}

// fieldPath drops the root struct name from a validator namespace:
// "createRequest.documents[0].url" becomes "documents[0].url".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}
