package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelbot/core/config"
	"parcelbot/internal/flows"
	"parcelbot/internal/storage"
	"parcelbot/internal/storage/memory"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := &config.Config{}
	cfg.Knowledge.Path = "testdata/missing.yaml"
	return New(cfg, memory.New(), nil)
}

func TestRegistryHasAllCommands(t *testing.T) {
	app := newTestApp(t)
	for _, name := range []string{
		"/start", "/help", "/register", "/login", "/password",
		"/add", "/myparcels", "/calculator", "/profile", "/cancel",
	} {
		_, _, ok := app.registry.LookupCommand(name)
		assert.True(t, ok, "command %s must be registered", name)
	}

	// aliases resolve to their canonical commands
	key, _, ok := app.registry.LookupCommand("/calc")
	require.True(t, ok)
	assert.Equal(t, "/calculator", key)
}

func TestRegistryHasAllCallbacks(t *testing.T) {
	app := newTestApp(t)
	for _, key := range []string{
		kwCallbackKey,
		flows.CallbackCalcOrigin, flows.CallbackCalcDest, flows.CallbackCalcMode,
		cbParcelsAdd, cbParcelsDelete, cbParcelsClear, cbParcelsRefresh,
	} {
		_, ok := app.registry.GetCallback(key)
		assert.True(t, ok, "callback %s must be registered", key)
	}
}

func TestCancelIsHiddenFromCommandMenu(t *testing.T) {
	app := newTestApp(t)
	for _, cmd := range app.registry.ListCommands(true) {
		assert.NotEqual(t, "/cancel", cmd.Text)
	}
}

func TestMenuActionsCoverEveryCaption(t *testing.T) {
	app := newTestApp(t)
	actions := app.menuActions()
	for _, caption := range []string{
		captionParcels, captionAddParcel, captionCalculator, captionProfile, captionHelp,
	} {
		assert.Contains(t, actions, caption)
	}
}

func TestParcelsText(t *testing.T) {
	assert.Contains(t, parcelsText(nil), "not tracking any parcels")

	added := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	text := parcelsText([]storage.Parcel{
		{Code: "RB123456789CN", Status: "in transit", AddedAt: added},
		{Code: "ZA-00112233"},
	})
	assert.Contains(t, text, "2 parcel(s)")
	assert.Contains(t, text, "1. RB123456789CN (in transit), added 3 Aug")
	assert.Contains(t, text, "2. ZA-00112233")
}

func TestParcelsMarkup(t *testing.T) {
	app := newTestApp(t)

	empty := app.parcelsMarkup(nil)
	require.Len(t, empty.InlineKeyboard, 1, "controls row only")
	assert.Len(t, empty.InlineKeyboard[0], 2, "no remove-all without parcels")

	full := app.parcelsMarkup([]storage.Parcel{{Code: "RB123456789CN"}})
	require.Len(t, full.InlineKeyboard, 2)
	assert.Contains(t, full.InlineKeyboard[0][0].URL, "RB123456789CN")
	assert.Len(t, full.InlineKeyboard[1], 3, "add, refresh, remove all")
}

func TestTrackingURLEscapesCode(t *testing.T) {
	assert.Equal(t,
		"https://www.17track.net/en/track#nums=RB123456789CN",
		trackingURL("RB123456789CN"))
	assert.NotContains(t, trackingURL("A&B12345"), "&B")
}

func TestProfileText(t *testing.T) {
	u := &storage.User{
		ID:        5,
		Handle:    "alice",
		FirstName: "Alice",
		CreatedAt: time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC),
	}
	text := profileText(u, 3)
	assert.Contains(t, text, "@alice")
	assert.Contains(t, text, "Name: Alice")
	assert.Contains(t, text, "Parcels tracked: 3")
	assert.Contains(t, text, "14 February 2026")
}

func TestPromptMarkup(t *testing.T) {
	assert.Nil(t, promptMarkup(flows.Prompt{Text: "plain"}))

	menu := promptMarkup(flows.Prompt{Text: "done", MainMenu: true})
	require.NotNil(t, menu)
	assert.True(t, menu.ResizeKeyboard)

	choices := promptMarkup(flows.Prompt{
		Text: "pick",
		Choices: []flows.Choice{
			{Key: "k", Data: "1", Label: "One"},
			{Key: "k", Data: "2", Label: "Two"},
		},
		Link: "https://example.com",
	})
	require.NotNil(t, choices)
	require.Len(t, choices.InlineKeyboard, 3, "one row per choice plus the link row")
	assert.Equal(t, "One", choices.InlineKeyboard[0][0].Text)
	assert.Equal(t, "https://example.com", choices.InlineKeyboard[2][0].URL)
}
