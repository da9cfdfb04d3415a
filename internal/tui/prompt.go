package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// errRequired matches the inline message the console forms use.
var errRequired = errors.New("Required")

// Prompt is a single-field question asked outside the console, for the
// non-interactive commands when a value is missing.
type Prompt struct {
	Title    string
	Value    string
	Secret   bool
	Required bool
	Validate func(string) error
}

// Ask runs p as a one-field form and returns the entered value.
func Ask(ctx context.Context, p Prompt) (string, error) {
	value := p.Value

	input := huh.NewInput().
		Title(p.Title).
		Value(&value).
		Validate(func(s string) error {
			if p.Required && strings.TrimSpace(s) == "" {
				return errRequired
			}
			if p.Validate != nil && s != "" {
				return p.Validate(s)
			}
			return nil
		})
	if p.Secret {
		input = input.EchoMode(huh.EchoModePassword)
	}

	if err := huh.NewForm(huh.NewGroup(input)).RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", p.Title, err)
	}
	return value, nil
}

// Choose asks for one of options.
func Choose(ctx context.Context, title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("%s: nothing to choose from", title)
	}

	selected := options[0]
	field := huh.NewSelect[string]().
		Title(title).
		Options(huh.NewOptions(options...)...).
		Value(&selected)

	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", title, err)
	}
	return selected, nil
}

// ConfirmDelete asks the same question as the console's delete dialog.
// The default answer is Cancel.
func ConfirmDelete(ctx context.Context, name string) (bool, error) {
	var confirmed bool

	field := huh.NewConfirm().
		Title(fmt.Sprintf("Are you sure you want to delete %s?", name)).
		Description("This action cannot be undone.").
		Affirmative("Delete").
		Negative("Cancel").
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(field)).RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirm deletion: %w", err)
	}
	return confirmed, nil
}

// IsInteractive reports whether stdin is a terminal.
func IsInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// ShouldPrompt reports whether commands may ask for missing values.
// RBR_NO_PROMPT and common CI variables turn prompts off.
func ShouldPrompt() bool {
	for _, env := range []string{"RBR_NO_PROMPT", "CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "BUILDKITE"} {
		if os.Getenv(env) != "" {
			return false
		}
	}
	return IsInteractive()
}
