package flows

import (
	"context"
	"errors"
	"strings"

	"parcelbot/core/telegram/state"
	"parcelbot/internal/users"
)

// Flow names.
const (
	FlowRegistration state.Flow = "registration"
	FlowLogin        state.Flow = "login"
	FlowPassword     state.Flow = "password_change"
	FlowTracking     state.Flow = "add_tracking"
	FlowCalculator   state.Flow = "calculator"
)

const (
	stepRegHandle state.Step = "handle"
	stepRegSecret state.Step = "secret"
	stepRegFirst  state.Step = "first_name"
	stepRegLast   state.Step = "last_name"

	scratchHandle = "handle"
	scratchSecret = "secret"
	scratchFirst  = "first_name"
)

// skipWord lets the user leave an optional field empty.
const skipWord = "-"

// NewRegistrationFlow builds the account creation dialog: handle, secret,
// first and last name, then a single commit. A handle that gets taken
// between the availability check and the commit sends the user back to the
// handle step instead of failing the whole dialog.
func NewRegistrationFlow(accounts *users.Service) *FlowSpec {
	return &FlowSpec{
		Name:  FlowRegistration,
		Entry: stepRegHandle,
		Greet: func(ctx context.Context, ev Event) ([]Prompt, error) {
			return []Prompt{{Text: "Let's create your account. Choose a handle (letters, digits and underscores):", Cancel: true}}, nil
		},
		Steps: map[state.Step]StepFunc{
			stepRegHandle: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				handle, err := accounts.ValidateHandle(ev.Text)
				switch {
				case errors.Is(err, users.ErrHandleTooShort):
					return Result{Prompts: []Prompt{{Text: "That handle is too short. Try a longer one:"}}}, nil
				case errors.Is(err, users.ErrHandleInvalid):
					return Result{Prompts: []Prompt{{Text: "Handles may only contain latin letters, digits and underscores. Try again:"}}}, nil
				case err != nil:
					return Result{}, err
				}

				free, err := accounts.HandleAvailable(ctx, handle)
				if err != nil {
					return Result{}, err
				}
				if !free {
					return Result{Prompts: []Prompt{{Text: "That handle is already taken. Pick another:"}}}, nil
				}

				conv.Put(scratchHandle, handle)
				return Result{
					Next:    stepRegSecret,
					Prompts: []Prompt{{Text: "Now choose a password (at least 6 characters):"}},
				}, nil
			},
			stepRegSecret: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				if err := accounts.ValidateSecret(ev.Text); err != nil {
					if errors.Is(err, users.ErrSecretTooShort) {
						return Result{Prompts: []Prompt{{Text: "That password is too short, use at least 6 characters:"}}}, nil
					}
					return Result{}, err
				}
				conv.Put(scratchSecret, ev.Text)
				return Result{
					Next:    stepRegFirst,
					Prompts: []Prompt{{Text: "What is your first name? Send \"-\" to skip."}},
				}, nil
			},
			stepRegFirst: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				conv.Put(scratchFirst, optionalField(ev.Text))
				return Result{
					Next:    stepRegLast,
					Prompts: []Prompt{{Text: "And your last name? Send \"-\" to skip."}},
				}, nil
			},
			stepRegLast: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				err := accounts.Register(ctx, ev.From.ID,
					conv.Value(scratchHandle),
					conv.Value(scratchSecret),
					conv.Value(scratchFirst),
					optionalField(ev.Text),
				)
				switch {
				case errors.Is(err, users.ErrHandleTaken):
					// Lost a race with another registration since the
					// availability check.
					conv.Delete(scratchHandle)
					return Result{
						Next:    stepRegHandle,
						Prompts: []Prompt{{Text: "Someone just took that handle. Choose another:"}},
					}, nil
				case errors.Is(err, users.ErrAlreadyRegistered):
					return Result{
						Done:    true,
						Prompts: []Prompt{{Text: "You already have an account on this chat.", MainMenu: true}},
					}, nil
				case err != nil:
					return Result{}, err
				}
				return Result{
					Done: true,
					Prompts: []Prompt{{
						Text:     "Done! Your account @" + conv.Value(scratchHandle) + " is ready.",
						MainMenu: true,
					}},
				}, nil
			},
		},
	}
}

func optionalField(text string) string {
	t := strings.TrimSpace(text)
	if t == skipWord {
		return ""
	}
	return t
}
