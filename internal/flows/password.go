package flows

import (
	"context"
	"errors"

	"parcelbot/core/telegram/state"
	"parcelbot/internal/users"
)

const (
	stepPwdCurrent state.Step = "current"
	stepPwdNew     state.Step = "new"

	scratchPwdCurrent = "current"
)

// NewPasswordFlow builds the secret rotation dialog: confirm the current
// password, then set the new one.
func NewPasswordFlow(accounts *users.Service) *FlowSpec {
	return &FlowSpec{
		Name:  FlowPassword,
		Entry: stepPwdCurrent,
		Greet: func(ctx context.Context, ev Event) ([]Prompt, error) {
			return []Prompt{{Text: "Let's change your password. Enter the current one first:", Cancel: true}}, nil
		},
		Steps: map[state.Step]StepFunc{
			stepPwdCurrent: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				err := accounts.VerifySecret(ctx, ev.From.ID, ev.Text)
				switch {
				case errors.Is(err, users.ErrNotRegistered):
					return Result{
						Done:    true,
						Prompts: []Prompt{{Text: "You need an account first. Use /register to create one.", MainMenu: true}},
					}, nil
				case errors.Is(err, users.ErrBadCredentials):
					return Result{Prompts: []Prompt{{Text: "That doesn't match your current password. Try again or /cancel:"}}}, nil
				case err != nil:
					return Result{}, err
				}
				conv.Put(scratchPwdCurrent, ev.Text)
				return Result{
					Next:    stepPwdNew,
					Prompts: []Prompt{{Text: "Now enter the new password (at least 6 characters):"}},
				}, nil
			},
			stepPwdNew: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				if err := accounts.ValidateSecret(ev.Text); err != nil {
					if errors.Is(err, users.ErrSecretTooShort) {
						return Result{Prompts: []Prompt{{Text: "That password is too short, use at least 6 characters:"}}}, nil
					}
					return Result{}, err
				}
				if err := accounts.ChangeSecret(ctx, ev.From.ID, conv.Value(scratchPwdCurrent), ev.Text); err != nil {
					return Result{}, err
				}
				return Result{
					Done:    true,
					Prompts: []Prompt{{Text: "Password updated.", MainMenu: true}},
				}, nil
			},
		},
	}
}
