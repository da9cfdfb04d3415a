package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/rbr-console/internal/role"
	"github.com/felixgeelhaar/rbr-console/internal/users"
)

// loginFields backs the login form inputs.
type loginFields struct {
	Email    string
	Password string
}

func newLoginForm(f *loginFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("email").
				Title("Email or Username").
				Value(&f.Email),
			huh.NewInput().
				Key("password").
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.Password),
		).Title("Sign In"),
	).WithShowHelp(false)
}

func newCreateForm(f *users.CreateForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Full Name").
				Value(&f.Name).
				Validate(createCheck(f, "name")),
			huh.NewInput().
				Key("email").
				Title("Email / Username").
				Value(&f.Email).
				Validate(createCheck(f, "email")),
			huh.NewSelect[string]().
				Key("role").
				Title("Role Assignment").
				Options(huh.NewOptions(role.Names()...)...).
				Value(&f.Role),
			huh.NewInput().
				Key("password").
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&f.Password).
				Validate(createCheck(f, "password")),
			huh.NewInput().
				Key("confirm_password").
				Title("Confirm").
				EchoMode(huh.EchoModePassword).
				Value(&f.ConfirmPassword).
				Validate(createCheck(f, "confirm_password")),
			huh.NewConfirm().
				Key("is_active").
				Title("Account Active").
				Affirmative("Active").
				Negative("Inactive").
				Value(&f.Active),
		).Title("NEW USER ENTRY"),
	).WithShowHelp(false)
}

func newEditForm(name string, f *users.EditForm) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Full Name").
				Value(&f.Name).
				Validate(editCheck(f, "name")),
			huh.NewInput().
				Key("email").
				Title("Email / Username").
				Value(&f.Email).
				Validate(editCheck(f, "email")),
			huh.NewSelect[string]().
				Key("role").
				Title("Role Assignment").
				Options(huh.NewOptions(role.Names()...)...).
				Value(&f.Role),
			huh.NewInput().
				Key("password").
				Title("New Password (Optional)").
				Description("Leave blank to keep the current password").
				EchoMode(huh.EchoModePassword).
				Value(&f.Password).
				Validate(editCheck(f, "password")),
			huh.NewConfirm().
				Key("is_active").
				Title("Account Active").
				Affirmative("Active").
				Negative("Inactive").
				Value(&f.Active),
		).Title("EDIT USER: " + strings.ToUpper(name)),
	).WithShowHelp(false)
}

// createCheck validates one field of the create form against the value
// being typed, with the other fields as currently bound.
func createCheck(f *users.CreateForm, field string) func(string) error {
	return func(s string) error {
		probe := *f
		switch field {
		case "name":
			probe.Name = s
		case "email":
			probe.Email = s
		case "password":
			probe.Password = s
		case "confirm_password":
			probe.ConfirmPassword = s
		}
		return fieldError(users.ValidateCreate(probe), field)
	}
}

func editCheck(f *users.EditForm, field string) func(string) error {
	return func(s string) error {
		probe := *f
		switch field {
		case "name":
			probe.Name = s
		case "email":
			probe.Email = s
		case "password":
			probe.Password = s
		}
		return fieldError(users.ValidateEdit(probe), field)
	}
}

func fieldError(fe users.FieldErrors, field string) error {
	if msg, ok := fe[field]; ok {
		return errors.New(msg)
	}
	return nil
}
