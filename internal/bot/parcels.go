package bot

import (
	"fmt"
	"net/url"
	"strings"

	tghelpers "parcelbot/core/telegram/helpers"
	"parcelbot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

// Parcel screen callback keys.
const (
	cbParcelsAdd     = "parcels_add"
	cbParcelsDelete  = "parcels_del"
	cbParcelsClear   = "parcels_del_all"
	cbParcelsRefresh = "parcels_refresh"
)

func (a *App) handleMyParcels(c tele.Context) error {
	return a.showParcels(c, false)
}

// showParcels renders the parcel list. Callback taps edit the existing
// message in place; commands send a fresh one.
func (a *App) showParcels(c tele.Context, edit bool) error {
	ctx := handlerContext(c)
	u, err := a.accounts.Profile(ctx, dialogKey(c).UserID)
	if err != nil {
		return err
	}
	if !u.Registered() {
		return a.sendWithMenu(c, "Your parcel list lives on your account. "+
			"Create one with /register or sign in with /login.")
	}

	list, err := a.parcels.List(ctx, u.ID)
	if err != nil {
		return err
	}

	text := parcelsText(list)
	markup := a.parcelsMarkup(list)
	if edit {
		return c.EditOrSend(text, &tele.SendOptions{ReplyMarkup: markup})
	}
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

func parcelsText(list []storage.Parcel) string {
	if len(list) == 0 {
		return "You're not tracking any parcels yet. Send me a tracking code and I'll remember it."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You're tracking %d parcel(s):\n\n", len(list))
	for i, p := range list {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Code)
		if p.Status != "" {
			fmt.Fprintf(&b, " (%s)", p.Status)
		}
		if !p.AddedAt.IsZero() {
			fmt.Fprintf(&b, ", added %s", p.AddedAt.Format("2 Jan"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) parcelsMarkup(list []storage.Parcel) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	var rows [][]tele.InlineButton

	for _, p := range list {
		del := markup.Data("✖ "+p.Code, cbParcelsDelete, p.Code)
		rows = append(rows, []tele.InlineButton{
			{Text: "🔍 " + p.Code, URL: trackingURL(p.Code)},
			*del.Inline(),
		})
	}

	controls := []tele.InlineButton{
		*markup.Data("➕ Add", cbParcelsAdd, "").Inline(),
		*markup.Data("🔄 Refresh", cbParcelsRefresh, "").Inline(),
	}
	if len(list) > 0 {
		controls = append(controls, *markup.Data("🗑 Remove all", cbParcelsClear, "").Inline())
	}
	rows = append(rows, controls)

	markup.InlineKeyboard = rows
	return markup
}

// trackingURL points at a public multi-carrier tracker.
func trackingURL(code string) string {
	return "https://www.17track.net/en/track#nums=" + url.QueryEscape(code)
}
