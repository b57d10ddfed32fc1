package bot

import (
	"errors"
	"strings"

	"parcelbot/core/telegram/format"
	tghelpers "parcelbot/core/telegram/helpers"
	"parcelbot/internal/flows"
	"parcelbot/internal/intent"
	"parcelbot/internal/knowledge"
	"parcelbot/internal/parcels"

	tele "gopkg.in/telebot.v4"
)

// kwCallbackKey routes taps on "did you mean" topic suggestions.
const kwCallbackKey = "kw"

// handleFreeText classifies plain text when no dialog is active: menu
// captions first, then tracking codes, then the FAQ matcher.
func (a *App) handleFreeText(c tele.Context) error {
	text := strings.TrimSpace(c.Text())
	if h, ok := a.menuActions()[text]; ok {
		return h(c)
	}

	cls := a.matcher.Classify(text)
	switch cls.Kind {
	case intent.KindTracking:
		return a.saveTrackingCode(c, cls.Tracking)
	case intent.KindConfident:
		return a.answerTopic(c, cls.Topic)
	case intent.KindAmbiguous:
		return a.offerTopics(c, cls.Candidates)
	default:
		return a.sendWithMenu(c, "I didn't quite get that. Ask me about delivery "+
			"in a few plain words, send a tracking code, or use /help.")
	}
}

// saveTrackingCode is the fast path for a bare tracking number: registered
// users get it saved immediately, guests get a sign-in hint.
func (a *App) saveTrackingCode(c tele.Context, code string) error {
	ctx := handlerContext(c)
	u, err := a.accounts.Profile(ctx, dialogKey(c).UserID)
	if err != nil {
		return err
	}
	if !u.Registered() {
		return a.renderPrompts(c, []flows.Prompt{{
			Text: "That looks like a tracking code! You can follow it via the " +
				"link below. Create an account with /register (or sign in with " +
				"/login) and I'll keep it for you.",
			Link: trackingURL(code),
		}})
	}

	outcome, err := a.parcels.Add(ctx, u.ID, code)
	if err != nil {
		return err
	}
	text := "Saved! " + code + " is now in " + captionParcels + "."
	if outcome == parcels.AlreadyTracked {
		text = "You're already tracking " + code + ". It's in " + captionParcels + "."
	}
	return a.renderPrompts(c, []flows.Prompt{{Text: text, Link: trackingURL(code)}})
}

func (a *App) answerTopic(c tele.Context, topic string) error {
	entry, err := a.knowledge.Answer(topic)
	if err != nil {
		if errors.Is(err, knowledge.ErrNotFound) {
			return a.sendWithMenu(c, "I lost that answer somewhere, sorry. Try /help.")
		}
		return err
	}

	// Corpus answers may carry intentional markdown; the title is plain
	// human text and gets escaped before being bolded.
	text := entry.Answer
	if entry.Title != "" {
		title, err := format.EscapeMarkdown(entry.Title, format.MarkdownV1)
		if err != nil {
			title = entry.Title
		}
		text = "*" + title + "*\n\n" + entry.Answer
	}

	var markup *tele.ReplyMarkup
	if entry.Link != "" {
		markup = &tele.ReplyMarkup{
			InlineKeyboard: [][]tele.InlineButton{{{Text: "Read more", URL: entry.Link}}},
		}
	}
	for i, chunk := range format.SplitText(text, format.MaxMessageLength) {
		if i == 0 && markup != nil {
			// keep the link on the first message, next to the title
			if err := tghelpers.SendMD(c, chunk, markup); err != nil {
				return err
			}
			continue
		}
		if err := tghelpers.SendMD(c, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) offerTopics(c tele.Context, candidates []intent.Candidate) error {
	choices := make([]flows.Choice, 0, len(candidates))
	for _, cand := range candidates {
		label := cand.Topic
		if entry, err := a.knowledge.Answer(cand.Topic); err == nil && entry.Title != "" {
			label = entry.Title
		}
		choices = append(choices, flows.Choice{Key: kwCallbackKey, Data: cand.Topic, Label: label})
	}
	return a.renderPrompts(c, []flows.Prompt{{Text: "Did you mean:", Choices: choices}})
}
