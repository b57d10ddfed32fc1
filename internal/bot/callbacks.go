package bot

import (
	"errors"

	tg "parcelbot/core/telegram"
	cbutil "parcelbot/core/telegram/callbacks"
	tghelpers "parcelbot/core/telegram/helpers"
	"parcelbot/internal/flows"

	tele "gopkg.in/telebot.v4"
)

// cbDialogCancel is the inline cancel button on dialog greetings.
const cbDialogCancel = "dialog_cancel"

func (a *App) registerCallbacks(reg *tg.Registry) {
	_ = reg.RegisterCallback(kwCallbackKey, a.cbTopicAnswer)
	_ = reg.RegisterCallback(cbDialogCancel, a.handleCancel)

	for _, key := range []string{
		flows.CallbackCalcOrigin,
		flows.CallbackCalcDest,
		flows.CallbackCalcMode,
	} {
		_ = reg.RegisterCallback(key, a.cbFlowChoice)
	}

	_ = reg.RegisterCallback(cbParcelsAdd, func(c tele.Context) error {
		return a.startFlow(c, flows.FlowTracking)
	})
	_ = reg.RegisterCallback(cbParcelsRefresh, func(c tele.Context) error {
		return a.showParcels(c, true)
	})
	_ = reg.RegisterCallback(cbParcelsDelete, a.cbParcelDelete)
	_ = reg.RegisterCallback(cbParcelsClear, a.cbParcelClear)
}

// cbTopicAnswer answers a "did you mean" suggestion tap.
func (a *App) cbTopicAnswer(c tele.Context) error {
	topic := cbutil.CallbackPayload(c)
	if topic == "" {
		return nil
	}
	return a.answerTopic(c, topic)
}

// cbFlowChoice feeds a menu tap into the active dialog.
func (a *App) cbFlowChoice(c tele.Context) error {
	ev := flows.Event{Callback: true, Data: cbutil.CallbackPayload(c)}
	if u := c.Sender(); u != nil {
		ev.From = flows.Identity{
			ID:        u.ID,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		}
	}

	prompts, err := a.engine.HandleEvent(handlerContext(c), dialogKey(c), ev)
	if errors.Is(err, flows.ErrNoConversation) {
		return tghelpers.SendText(c, "That menu has expired. Start over from the main menu.")
	}
	if renderErr := a.renderPrompts(c, prompts); renderErr != nil {
		return renderErr
	}
	return err
}

func (a *App) cbParcelDelete(c tele.Context) error {
	code := cbutil.CallbackPayload(c)
	if code == "" {
		return nil
	}

	ctx := handlerContext(c)
	u, err := a.accounts.Profile(ctx, dialogKey(c).UserID)
	if err != nil {
		return err
	}
	// A stale button just redraws the list, removing twice is harmless.
	if _, err := a.parcels.Remove(ctx, u.ID, code); err != nil {
		return err
	}
	return a.showParcels(c, true)
}

func (a *App) cbParcelClear(c tele.Context) error {
	ctx := handlerContext(c)
	u, err := a.accounts.Profile(ctx, dialogKey(c).UserID)
	if err != nil {
		return err
	}
	if _, err := a.parcels.RemoveAll(ctx, u.ID); err != nil {
		return err
	}
	return a.showParcels(c, true)
}
