package bot

import (
	"parcelbot/core/telegram/format"
	tghelpers "parcelbot/core/telegram/helpers"
	"parcelbot/core/telegram/keyboard"
	"parcelbot/internal/flows"

	tele "gopkg.in/telebot.v4"
)

// renderPrompts turns dialog prompts into Telegram messages. Long texts are
// split to fit the message limit; the keyboard rides on the last chunk.
func (a *App) renderPrompts(c tele.Context, prompts []flows.Prompt) error {
	for _, p := range prompts {
		markup := promptMarkup(p)
		chunks := format.SplitText(p.Text, format.MaxMessageLength)
		for i, chunk := range chunks {
			var opts *tele.SendOptions
			if i == len(chunks)-1 && markup != nil {
				opts = &tele.SendOptions{ReplyMarkup: markup}
			}
			var err error
			if opts != nil {
				err = tghelpers.SendText(c, chunk, opts)
			} else {
				err = tghelpers.SendText(c, chunk)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func promptMarkup(p flows.Prompt) *tele.ReplyMarkup {
	if len(p.Choices) > 0 {
		btns := make([]keyboard.InlineBtn, 0, len(p.Choices))
		for _, ch := range p.Choices {
			btns = append(btns, keyboard.InlineBtn{Text: ch.Label, Unique: ch.Key, Data: ch.Data})
		}
		markup := keyboard.InlineButtons(btns)
		if p.Link != "" {
			markup.InlineKeyboard = append(markup.InlineKeyboard,
				[]tele.InlineButton{{Text: "Open link", URL: p.Link}})
		}
		return markup
	}
	if p.Link != "" {
		markup := &tele.ReplyMarkup{}
		markup.InlineKeyboard = [][]tele.InlineButton{{{Text: "Open link", URL: p.Link}}}
		return markup
	}
	if p.Cancel {
		return keyboard.SingleCancelMarkup(cbDialogCancel)
	}
	if p.MainMenu {
		return mainMenuMarkup()
	}
	return nil
}

// Main menu captions. The reply keyboard stays attached to the chat, so
// these strings double as routable inputs in the text handler.
const (
	captionParcels    = "📦 My parcels"
	captionAddParcel  = "➕ Add a parcel"
	captionCalculator = "🧮 Delivery cost"
	captionProfile    = "👤 Profile"
	captionHelp       = "❓ Help"
)

func mainMenuMarkup() *tele.ReplyMarkup {
	return keyboard.ReplyButtons(
		[]string{captionParcels, captionAddParcel},
		[]string{captionCalculator, captionProfile},
		[]string{captionHelp},
	)
}

// sendWithMenu sends plain text with the main menu keyboard attached.
func (a *App) sendWithMenu(c tele.Context, text string) error {
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: mainMenuMarkup()})
}
