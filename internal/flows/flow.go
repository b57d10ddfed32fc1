// Package flows implements the conversation engine and the bot's dialog
// scenarios on top of the state store. Flows are data: a name, an entry
// step and a table of step functions. Step functions are pure with respect
// to the transport; they emit prompts that the bot layer renders.
package flows

import (
	"context"

	"parcelbot/core/telegram/state"
)

// Identity describes the user driving the conversation.
type Identity struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Event is one user input delivered to a step: either a text message or a
// callback selection from a prompt's choice menu.
type Event struct {
	Text     string
	Callback bool
	Data     string
	From     Identity
}

// Choice is one option of a closed-choice menu attached to a prompt.
type Choice struct {
	Key   string
	Data  string
	Label string
}

// Prompt is a transport-neutral message to the user.
type Prompt struct {
	Text    string
	Choices []Choice
	Link    string
	// Cancel asks the renderer to attach an inline cancel button.
	Cancel bool
	// MainMenu asks the renderer to attach the persistent menu keyboard.
	MainMenu bool
}

// Result tells the engine where the conversation goes next.
type Result struct {
	// Next is the step to move to; ignored when Done is set. An empty
	// Next keeps the current step (validation re-prompt).
	Next state.Step
	// Done ends the conversation and discards its scratch data.
	Done    bool
	Prompts []Prompt
}

// StepFunc handles one event at one step of a flow.
type StepFunc func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error)

// FlowSpec declares a complete dialog scenario.
type FlowSpec struct {
	Name  state.Flow
	Entry state.Step
	// Greet produces the prompts shown when the flow starts.
	Greet func(ctx context.Context, ev Event) ([]Prompt, error)
	Steps map[state.Step]StepFunc
}
