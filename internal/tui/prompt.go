package tui

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/ShayCichocki/intentflow/internal/slots"
)

// otherOption lets the user type a value that is not among the choices.
const otherOption = "其他..."

// IsInteractive reports whether stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// AskUser prompts for a slot value. Closed choices are shown as a select
// list with an escape hatch to free text; everything else is an input.
// Escape or ctrl+c returns slots.ErrAborted.
func AskUser(ctx context.Context, question string, options []string) (string, error) {
	if len(options) > 0 {
		choice, err := selectOption(ctx, question, options)
		if err != nil || choice != otherOption {
			return choice, err
		}
	}
	return inputValue(ctx, question)
}

// InteractiveAsker returns AskUser when the session is interactive, nil
// otherwise. A nil asker leaves missing slots unfilled.
func InteractiveAsker(enabled bool) slots.AskUserFunc {
	if !enabled || !IsInteractive() {
		return nil
	}
	return AskUser
}

func selectOption(ctx context.Context, question string, options []string) (string, error) {
	opts := huh.NewOptions(append(append([]string(nil), options...), otherOption)...)

	var selected string
	field := huh.NewSelect[string]().
		Title(question).
		Options(opts...).
		Value(&selected)

	if err := runForm(ctx, huh.NewForm(huh.NewGroup(field))); err != nil {
		return "", err
	}
	return selected, nil
}

func inputValue(ctx context.Context, question string) (string, error) {
	var value string
	field := huh.NewInput().
		Title(question).
		Value(&value).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("value is required")
			}
			return nil
		})

	if err := runForm(ctx, huh.NewForm(huh.NewGroup(field))); err != nil {
		return "", err
	}
	return value, nil
}

func runForm(ctx context.Context, form *huh.Form) error {
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return slots.ErrAborted
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}
