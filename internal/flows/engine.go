package flows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"parcelbot/core/logger"
	"parcelbot/core/telegram/state"
)

// ErrUnknownFlow is returned by Start for a flow name nobody registered.
var ErrUnknownFlow = errors.New("unknown flow")

// ErrNoConversation is returned by HandleEvent when no dialog is active.
var ErrNoConversation = errors.New("no active conversation")

const retryPromptText = "Something went wrong, please try again later."

// Engine runs registered flows over the conversation store. It owns the
// step dispatch and the error boundary; individual steps stay free of
// recovery concerns.
type Engine struct {
	store *state.Store
	flows map[state.Flow]*FlowSpec
}

// NewEngine creates an engine with no flows registered.
func NewEngine(store *state.Store) *Engine {
	return &Engine{
		store: store,
		flows: make(map[state.Flow]*FlowSpec),
	}
}

// Register adds a flow. Registering the same name twice panics; the flow
// table is assembled once at startup and a duplicate is a wiring bug.
func (e *Engine) Register(spec *FlowSpec) {
	if spec == nil || spec.Name == "" {
		panic("flows: spec without a name")
	}
	if _, ok := e.flows[spec.Name]; ok {
		panic(fmt.Sprintf("flows: duplicate flow %q", spec.Name))
	}
	if _, ok := spec.Steps[spec.Entry]; !ok {
		panic(fmt.Sprintf("flows: flow %q has no handler for entry step %q", spec.Name, spec.Entry))
	}
	e.flows[spec.Name] = spec
}

// Active reports whether a dialog is in progress for the key.
func (e *Engine) Active(k state.Key) bool {
	return e.store.Active(k)
}

// Cancel ends the active dialog, reporting whether there was one.
func (e *Engine) Cancel(ctx context.Context, k state.Key) bool {
	was := false
	e.store.Do(k, func(conv *state.Conversation) *state.Conversation {
		was = conv != nil
		if was {
			logger.Debug(ctx, "flows", "cancel",
				slog.String("flow", string(conv.Flow)),
				slog.String("step", string(conv.Step)),
			)
		}
		return nil
	})
	return was
}

// Start begins a flow for the key, replacing any dialog in progress, and
// returns the flow's greeting prompts.
func (e *Engine) Start(ctx context.Context, k state.Key, name state.Flow, ev Event) ([]Prompt, error) {
	spec, ok := e.flows[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, name)
	}

	var prompts []Prompt
	var err error
	e.store.Do(k, func(conv *state.Conversation) *state.Conversation {
		if conv != nil {
			logger.Debug(ctx, "flows", "start.replaces",
				slog.String("old_flow", string(conv.Flow)),
				slog.String("new_flow", string(name)),
			)
		}
		if spec.Greet != nil {
			prompts, err = spec.Greet(ctx, ev)
			if err != nil {
				logger.Error(ctx, "flows", "greet.failed",
					slog.String("flow", string(name)),
					slog.String("err", err.Error()),
				)
				prompts = []Prompt{{Text: retryPromptText}}
				return nil
			}
		}
		return state.NewConversation(name, spec.Entry)
	})
	return prompts, err
}

// HandleEvent feeds one user input into the active dialog and returns the
// prompts to render. A step failure keeps the conversation where it was and
// produces a generic retry prompt; the user can repeat the input.
func (e *Engine) HandleEvent(ctx context.Context, k state.Key, ev Event) ([]Prompt, error) {
	var prompts []Prompt
	var handleErr error

	e.store.Do(k, func(conv *state.Conversation) *state.Conversation {
		if conv == nil {
			handleErr = ErrNoConversation
			return nil
		}

		spec, ok := e.flows[conv.Flow]
		if !ok {
			// A flow vanished between restarts of the registration table.
			// Drop the orphaned dialog rather than trap the user in it.
			logger.Error(ctx, "flows", "step.orphaned",
				slog.String("flow", string(conv.Flow)),
			)
			prompts = []Prompt{{Text: retryPromptText, MainMenu: true}}
			return nil
		}
		fn, ok := spec.Steps[conv.Step]
		if !ok {
			logger.Error(ctx, "flows", "step.missing",
				slog.String("flow", string(conv.Flow)),
				slog.String("step", string(conv.Step)),
			)
			prompts = []Prompt{{Text: retryPromptText, MainMenu: true}}
			return nil
		}

		// The step works on a copy so a panic or error cannot leave the
		// dialog with half-written scratch data.
		work := cloneConversation(conv)
		res, err := e.invoke(ctx, fn, work, ev)
		if err != nil {
			logger.Error(ctx, "flows", "step.failed",
				slog.String("flow", string(conv.Flow)),
				slog.String("step", string(conv.Step)),
				slog.String("err", err.Error()),
			)
			prompts = []Prompt{{Text: retryPromptText}}
			return conv
		}

		prompts = res.Prompts
		if res.Done {
			logger.Debug(ctx, "flows", "done",
				slog.String("flow", string(conv.Flow)),
				slog.Duration("duration", logger.Took(conv.StartedAt)),
			)
			return nil
		}
		if res.Next != "" {
			work.Step = res.Next
		}
		return work
	})

	return prompts, handleErr
}

func cloneConversation(conv *state.Conversation) *state.Conversation {
	cp := *conv
	cp.Scratch = make(map[string]string, len(conv.Scratch))
	for k, v := range conv.Scratch {
		cp.Scratch[k] = v
	}
	return &cp
}

// invoke runs one step behind a panic boundary.
func (e *Engine) invoke(ctx context.Context, fn StepFunc, conv *state.Conversation, ev Event) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step panic: %v", r)
			logger.Error(ctx, "flows", "step.panic",
				slog.String("flow", string(conv.Flow)),
				slog.String("step", string(conv.Step)),
				slog.String("panic", fmt.Sprint(r)),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()
	return fn(ctx, conv, ev)
}
