package validator

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	playground "github.com/go-playground/validator/v10"
)

// ValidationErrors maps a JSON field name to a human readable message.
type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validate = newValidate()

func newValidate() *playground.Validate {
	v := playground.New(playground.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	// Registration only fails for empty tags or nil funcs.
	_ = v.RegisterValidation("username", func(fl playground.FieldLevel) bool {
		return usernameRegex.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("password", func(fl playground.FieldLevel) bool {
		return len(missingPasswordClasses(fl.Field().String())) == 0
	})

	return v
}

// Struct validates s against its `validate` tags. A non-struct argument is
// reported under the "_" key.
func Struct(s any) ValidationErrors {
	errs := make(ValidationErrors)

	err := validate.Struct(s)
	if err == nil {
		return errs
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs.Add("_", err.Error())
		return errs
	}

	for _, fe := range fieldErrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		errs.Add(fe.Field(), message(fe))
	}
	return errs
}

func message(fe playground.FieldError) string {
	label := humanize(fe.Field())

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return label + " is too long"
	case "username":
		return "Username can only contain letters, numbers, _ and -"
	case "password":
		missing := missingPasswordClasses(fmt.Sprint(fe.Value()))
		return "Password must contain at least " + strings.Join(missing, ", ")
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "uuid", "uuid4":
		return label + " must be a valid id"
	default:
		return label + " is invalid"
	}
}

func humanize(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func missingPasswordClasses(password string) []string {
	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	missing := []string{}
	if !hasUpper {
		missing = append(missing, "one uppercase letter")
	}
	if !hasLower {
		missing = append(missing, "one lowercase letter")
	}
	if !hasDigit {
		missing = append(missing, "one number")
	}
	return missing
}
