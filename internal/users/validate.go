package users

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// SpecialChars are the characters that satisfy the special-character rule.
const SpecialChars = "!@#$%^&*"

// MinPasswordLength applies to new passwords on create and edit.
const MinPasswordLength = 8

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	mustRegister("has_upper", func(fl validator.FieldLevel) bool {
		return strings.ContainsFunc(fl.Field().String(), func(r rune) bool { return r >= 'A' && r <= 'Z' })
	})
	mustRegister("has_digit", func(fl validator.FieldLevel) bool {
		return strings.ContainsAny(fl.Field().String(), "0123456789")
	})
	mustRegister("has_special", func(fl validator.FieldLevel) bool {
		return strings.ContainsAny(fl.Field().String(), SpecialChars)
	})
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("users: register %s: %v", tag, err))
	}
}

// CreateForm is the input for creating a user. ConfirmPassword is checked
// locally and never sent.
type CreateForm struct {
	Name            string `form:"name" validate:"required"`
	Email           string `form:"email" validate:"required,email"`
	Role            string `form:"role" validate:"required"`
	Password        string `form:"password" validate:"required,min=8,has_upper,has_digit,has_special"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	Active          bool   `form:"is_active"`
}

// NewCreateForm returns an empty form with the account active.
func NewCreateForm() CreateForm {
	return CreateForm{Active: true}
}

// EditForm is the input for editing a user. A blank password keeps the
// current one.
type EditForm struct {
	Name     string `form:"name" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Role     string `form:"role" validate:"required"`
	Password string `form:"password" validate:"omitempty,min=8"`
	Active   bool   `form:"is_active"`
}

// EditFormFor pre-fills an edit form from a record. A record without a
// role starts with a blank role so one must be chosen.
func EditFormFor(r Record) EditForm {
	roleName := r.Role
	if roleName == NoRole {
		roleName = ""
	}
	return EditForm{Name: r.Name, Email: r.Email, Role: roleName, Active: r.Active}
}

var messages = map[string]map[string]string{
	"name": {
		"required": "Name is required",
	},
	"email": {
		"required": "Email is required",
		"email":    "Invalid email",
	},
	"role": {
		"required": "Role is required",
	},
	"password": {
		"required":    "Password is required",
		"min":         "Must be at least 8 chars",
		"has_upper":   "Must contain 1 Uppercase",
		"has_digit":   "Must contain 1 Number",
		"has_special": "Must contain 1 Special Char",
	},
	"confirm_password": {
		"required": "Confirm Password is required",
		"eqfield":  "Passwords must match",
	},
}

// FieldErrors maps a form field name to the first rule it failed.
type FieldErrors map[string]string

// Error implements the error interface
func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %s", k, f[k])
	}
	return strings.Join(parts, "; ")
}

// ValidateCreate checks a create form. It returns nil when the form is
// valid.
func ValidateCreate(f CreateForm) FieldErrors {
	return check(&f)
}

// ValidateEdit checks an edit form. It returns nil when the form is valid.
func ValidateEdit(f EditForm) FieldErrors {
	return check(&f)
}

// ValidatePassword applies the create-time password policy on its own.
func ValidatePassword(password string) error {
	f := CreateForm{Name: "x", Email: "x@example.com", Role: "x", Password: password, ConfirmPassword: password}
	if fe := check(&f); fe != nil {
		return errors.New(fe["password"])
	}
	return nil
}

func check(form any) FieldErrors {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return FieldErrors{"form": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if _, seen := out[field]; seen {
			continue
		}
		msg, ok := messages[field][fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("Field '%s' is invalid: %s", field, fe.Tag())
		}
		out[field] = msg
	}
	return out
}
