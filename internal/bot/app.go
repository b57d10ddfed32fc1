// Package bot assembles the Telegram surface of the parcel assistant:
// commands, menu captions, callbacks, dialog routing and the free-text
// intent fallback.
package bot

import (
	"context"

	"parcelbot/core/config"
	tg "parcelbot/core/telegram"
	tghelpers "parcelbot/core/telegram/helpers"
	"parcelbot/core/telegram/router"
	"parcelbot/core/telegram/state"
	"parcelbot/internal/flows"
	"parcelbot/internal/intent"
	"parcelbot/internal/knowledge"
	"parcelbot/internal/parcels"
	"parcelbot/internal/storage"
	"parcelbot/internal/users"

	tele "gopkg.in/telebot.v4"
)

// App holds the assembled bot services.
type App struct {
	cfg       *config.Config
	accounts  *users.Service
	parcels   *parcels.Registry
	engine    *flows.Engine
	matcher   *intent.Matcher
	knowledge *knowledge.Base
	registry  *tg.Registry
}

// New wires the application services over the given store and estimator.
func New(cfg *config.Config, store storage.Store, estimator flows.PriceEstimator) *App {
	accounts := users.NewService(store, users.BcryptHasher{}, users.Policy{
		HandleMinLength: cfg.Accounts.HandleMinLength,
		SecretMinLength: cfg.Accounts.SecretMinLength,
	})
	registry := parcels.NewRegistry(store)
	kb := knowledge.New(cfg.Knowledge.Path)
	matcher := intent.NewMatcher(kb, intent.Options{
		Language:      cfg.Matcher.Language,
		HighThreshold: cfg.Matcher.HighThreshold,
		LowThreshold:  cfg.Matcher.LowThreshold,
	})

	engine := flows.NewEngine(state.NewStore())
	engine.Register(flows.NewRegistrationFlow(accounts))
	engine.Register(flows.NewLoginFlow(accounts))
	engine.Register(flows.NewPasswordFlow(accounts))
	engine.Register(flows.NewTrackingFlow(accounts, registry))
	engine.Register(flows.NewCalculatorFlow(estimator))

	app := &App{
		cfg:       cfg,
		accounts:  accounts,
		parcels:   registry,
		engine:    engine,
		matcher:   matcher,
		knowledge: kb,
	}
	app.registry = app.buildRegistry()
	return app
}

// TelegramRunOptions assembles the runtime options for the bot binary.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      a.Routes(),
	}, nil
}

// Registry exposes the command/callback registry for the bot runtime.
func (a *App) Registry() *tg.Registry {
	return a.registry
}

// Routes returns the update routes to hand to the runtime.
func (a *App) Routes() []tg.Route {
	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.TextRoutes(&conversations{app: a}, a.registry, router.TextOptions{
		UnknownDocument: func(c tele.Context) error {
			return a.sendWithMenu(c, "I can only work with text messages for now.")
		},
	})...)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{}))
	return routes
}

func dialogKey(c tele.Context) state.Key {
	k := state.Key{}
	if u := c.Sender(); u != nil {
		k.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		k.ChatID = ch.ID
	}
	return k
}

func eventFrom(c tele.Context) flows.Event {
	ev := flows.Event{Text: c.Text()}
	if u := c.Sender(); u != nil {
		ev.From = flows.Identity{
			ID:        u.ID,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		}
	}
	return ev
}

// startFlow cancels whatever dialog was active and begins a new one.
func (a *App) startFlow(c tele.Context, flow state.Flow) error {
	ctx := handlerContext(c)
	prompts, err := a.engine.Start(ctx, dialogKey(c), flow, eventFrom(c))
	if renderErr := a.renderPrompts(c, prompts); renderErr != nil {
		return renderErr
	}
	return err
}

func handlerContext(c tele.Context) context.Context {
	return tghelpers.BuildContext(c)
}
