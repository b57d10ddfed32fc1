package bot

import (
	"fmt"
	"strings"

	tg "parcelbot/core/telegram"
	"parcelbot/core/telegram/commands"
	tghelpers "parcelbot/core/telegram/helpers"
	"parcelbot/internal/flows"
	"parcelbot/internal/storage"

	tele "gopkg.in/telebot.v4"
)

func (a *App) buildRegistry() *tg.Registry {
	reg := tg.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Start and show the main menu",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "What this bot can do",
	})
	reg.RegisterCommand("/register", commands.Command{
		Handler:     func(c tele.Context) error { return a.startFlow(c, flows.FlowRegistration) },
		Description: "Create an account",
		Aliases:     []string{"signup"},
	})
	reg.RegisterCommand("/login", commands.Command{
		Handler:     func(c tele.Context) error { return a.startFlow(c, flows.FlowLogin) },
		Description: "Sign in on this device",
	})
	reg.RegisterCommand("/password", commands.Command{
		Handler:     func(c tele.Context) error { return a.startFlow(c, flows.FlowPassword) },
		Description: "Change your password",
	})
	reg.RegisterCommand("/add", commands.Command{
		Handler:     func(c tele.Context) error { return a.startFlow(c, flows.FlowTracking) },
		Description: "Save a tracking code",
		Aliases:     []string{"track"},
	})
	reg.RegisterCommand("/myparcels", commands.Command{
		Handler:     a.handleMyParcels,
		Description: "Your saved parcels",
		Aliases:     []string{"parcels"},
	})
	reg.RegisterCommand("/calculator", commands.Command{
		Handler:     func(c tele.Context) error { return a.startFlow(c, flows.FlowCalculator) },
		Description: "Estimate delivery cost",
		Aliases:     []string{"calc"},
	})
	reg.RegisterCommand("/profile", commands.Command{
		Handler:     a.handleProfile,
		Description: "Your profile",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.handleCancel,
		Description: "Cancel the current dialog",
		Hidden:      true,
	})

	reg.SetTextFallback(a.handleFreeText)
	a.registerCallbacks(reg)
	return reg
}

// menuActions maps the persistent keyboard captions to their handlers.
func (a *App) menuActions() map[string]tele.HandlerFunc {
	return map[string]tele.HandlerFunc{
		captionParcels:    a.handleMyParcels,
		captionAddParcel:  func(c tele.Context) error { return a.startFlow(c, flows.FlowTracking) },
		captionCalculator: func(c tele.Context) error { return a.startFlow(c, flows.FlowCalculator) },
		captionProfile:    a.handleProfile,
		captionHelp:       a.handleHelp,
	}
}

func (a *App) handleStart(c tele.Context) error {
	ctx := handlerContext(c)
	// First contact creates the guest row so later features have an owner.
	u, err := a.accounts.Profile(ctx, dialogKey(c).UserID)
	if err != nil {
		return err
	}

	name := ""
	if s := c.Sender(); s != nil && s.FirstName != "" {
		name = ", " + s.FirstName
	}
	greeting := "Hi" + name + "! I'm your parcel assistant.\n\n" +
		"Send me a tracking code and I'll save it, ask me a question about " +
		"delivery, or use the menu below."
	if u.Registered() {
		greeting = "Welcome back, @" + u.Handle + "! What shall we do?"
	}
	return a.sendWithMenu(c, greeting)
}

func (a *App) handleHelp(c tele.Context) error {
	var b strings.Builder
	b.WriteString("Here's what I can do:\n\n")
	b.WriteString("• Save tracking codes and keep your parcel list\n")
	b.WriteString("• Estimate delivery cost to your city\n")
	b.WriteString("• Answer questions about shipping, just ask in plain words\n\n")
	b.WriteString("Commands:\n")
	for _, cmd := range a.registry.ListCommands(true) {
		fmt.Fprintf(&b, "%s - %s\n", cmd.Text, cmd.Description)
	}
	return a.sendWithMenu(c, b.String())
}

func (a *App) handleProfile(c tele.Context) error {
	ctx := handlerContext(c)
	u, err := tghelpers.CurrentUser[*storage.User](ctx, a.accounts, dialogKey(c).UserID)
	if err != nil {
		return err
	}

	if !u.Registered() {
		return a.sendWithMenu(c, "You're browsing as a guest. Create an account "+
			"with /register so your parcels follow you between devices, or "+
			"sign in with /login.")
	}

	count, err := a.parcels.Count(ctx, u.ID)
	if err != nil {
		return err
	}
	return a.sendWithMenu(c, profileText(u, count))
}

func profileText(u *storage.User, parcelCount int64) string {
	var b strings.Builder
	b.WriteString("Your profile\n\n")
	fmt.Fprintf(&b, "Handle: @%s\n", u.Handle)
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		fmt.Fprintf(&b, "Name: %s\n", name)
	}
	fmt.Fprintf(&b, "Parcels tracked: %d\n", parcelCount)
	if !u.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "With us since: %s\n", u.CreatedAt.Format("2 January 2006"))
	}
	return b.String()
}

func (a *App) handleCancel(c tele.Context) error {
	if a.engine.Cancel(handlerContext(c), dialogKey(c)) {
		return a.sendWithMenu(c, "Cancelled.")
	}
	return a.sendWithMenu(c, "Nothing to cancel, we weren't in the middle of anything.")
}
