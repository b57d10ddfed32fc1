package bot

import (
	"errors"
	"strings"

	"parcelbot/core/telegram/state"
	"parcelbot/internal/flows"

	tele "gopkg.in/telebot.v4"
)

// conversations adapts the flow engine to the text router. While a dialog
// is active every text lands here; registered commands and menu captions
// interrupt the dialog, everything else is dialog input.
type conversations struct {
	app *App
}

func (v *conversations) Active(userID, chatID int64) bool {
	return v.app.engine.Active(state.Key{UserID: userID, ChatID: chatID})
}

func (v *conversations) HandleText(c tele.Context) error {
	app := v.app
	text := strings.TrimSpace(c.Text())

	if strings.HasPrefix(text, "/") {
		if key, cmd, ok := app.registry.LookupCommand(text); ok && cmd.Handler != nil {
			if key != "/cancel" {
				// /cancel cancels inside its own handler so it can confirm.
				app.engine.Cancel(handlerContext(c), dialogKey(c))
			}
			return cmd.Handler(c)
		}
		// Unknown slash text stays dialog input; a password may well
		// start with a slash.
	}

	if h, ok := app.menuActions()[text]; ok {
		app.engine.Cancel(handlerContext(c), dialogKey(c))
		return h(c)
	}

	prompts, err := app.engine.HandleEvent(handlerContext(c), dialogKey(c), eventFrom(c))
	if errors.Is(err, flows.ErrNoConversation) {
		// The dialog ended between the Active check and now.
		return app.handleFreeText(c)
	}
	if renderErr := app.renderPrompts(c, prompts); renderErr != nil {
		return renderErr
	}
	return err
}
