package flows

import (
	"context"

	"parcelbot/core/telegram/state"
	"parcelbot/internal/intent"
	"parcelbot/internal/parcels"
	"parcelbot/internal/users"
)

const stepTrackCode state.Step = "code"

// NewTrackingFlow builds the single-step dialog that saves a tracking code.
// Guests are sent to registration instead; saved parcels belong to accounts
// so they survive a device change.
func NewTrackingFlow(accounts *users.Service, registry *parcels.Registry) *FlowSpec {
	return &FlowSpec{
		Name:  FlowTracking,
		Entry: stepTrackCode,
		Greet: func(ctx context.Context, ev Event) ([]Prompt, error) {
			return []Prompt{{Text: "Send me the tracking code to save:", Cancel: true}}, nil
		},
		Steps: map[state.Step]StepFunc{
			stepTrackCode: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				code, ok := intent.IsTrackingCandidate(ev.Text)
				if !ok {
					return Result{Prompts: []Prompt{{Text: "That doesn't look like a tracking code. It should be at least 8 letters, digits or dashes. Try again or /cancel:"}}}, nil
				}

				u, err := accounts.Profile(ctx, ev.From.ID)
				if err != nil {
					return Result{}, err
				}
				if !u.Registered() {
					return Result{
						Done:    true,
						Prompts: []Prompt{{Text: "Saving parcels needs an account so they follow you between devices. Use /register to create one.", MainMenu: true}},
					}, nil
				}

				outcome, err := registry.Add(ctx, u.ID, code)
				if err != nil {
					return Result{}, err
				}
				text := "Saved! I'm now tracking " + code + "."
				if outcome == parcels.AlreadyTracked {
					text = "You're already tracking " + code + "."
				}
				return Result{
					Done:    true,
					Prompts: []Prompt{{Text: text, MainMenu: true}},
				}, nil
			},
		},
	}
}
