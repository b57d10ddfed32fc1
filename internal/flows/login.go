package flows

import (
	"context"
	"errors"
	"strconv"

	"parcelbot/core/telegram/state"
	"parcelbot/internal/users"
)

const (
	stepLoginHandle state.Step = "handle"
	stepLoginSecret state.Step = "secret"

	scratchLoginHandle   = "handle"
	scratchLoginAttempts = "attempts"

	maxLoginAttempts = 3
)

// NewLoginFlow builds the sign-in dialog. The handle step always advances
// so the prompts never reveal whether an account exists; both unknown
// handles and wrong secrets surface as the same failed attempt. After
// three failed attempts the dialog ends.
func NewLoginFlow(accounts *users.Service) *FlowSpec {
	return &FlowSpec{
		Name:  FlowLogin,
		Entry: stepLoginHandle,
		Greet: func(ctx context.Context, ev Event) ([]Prompt, error) {
			return []Prompt{{Text: "Sign in to your account. What is your handle?", Cancel: true}}, nil
		},
		Steps: map[state.Step]StepFunc{
			stepLoginHandle: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				conv.Put(scratchLoginHandle, users.NormalizeHandle(ev.Text))
				return Result{
					Next:    stepLoginSecret,
					Prompts: []Prompt{{Text: "And your password?"}},
				}, nil
			},
			stepLoginSecret: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				err := accounts.Login(ctx, ev.From.ID, conv.Value(scratchLoginHandle), ev.Text)
				if errors.Is(err, users.ErrBadCredentials) {
					attempts, _ := strconv.Atoi(conv.Value(scratchLoginAttempts))
					attempts++
					if attempts >= maxLoginAttempts {
						return Result{
							Done:    true,
							Prompts: []Prompt{{Text: "Wrong handle or password. Sign-in cancelled, you can try again later.", MainMenu: true}},
						}, nil
					}
					conv.Put(scratchLoginAttempts, strconv.Itoa(attempts))
					return Result{Prompts: []Prompt{{Text: "Wrong handle or password. Try the password again, or /cancel to start over:"}}}, nil
				}
				if err != nil {
					return Result{}, err
				}
				return Result{
					Done: true,
					Prompts: []Prompt{{
						Text:     "Welcome back, @" + conv.Value(scratchLoginHandle) + "! Your parcels are attached to this chat now.",
						MainMenu: true,
					}},
				}, nil
			},
		},
	}
}
