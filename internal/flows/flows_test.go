package flows

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcelbot/core/telegram/state"
	"parcelbot/internal/parcels"
	"parcelbot/internal/pricing"
	"parcelbot/internal/storage/memory"
	"parcelbot/internal/users"
)

// plainHasher keeps flow tests fast; bcrypt is covered in the users package.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "hash:" + secret, nil }
func (plainHasher) Compare(hash, secret string) bool   { return hash == "hash:"+secret }

type harness struct {
	t        *testing.T
	engine   *Engine
	store    *memory.Store
	accounts *users.Service
	registry *parcels.Registry
	key      state.Key
	from     Identity
}

func newHarness(t *testing.T, estimator PriceEstimator) *harness {
	t.Helper()
	store := memory.New()
	accounts := users.NewService(store, plainHasher{}, users.Policy{})
	registry := parcels.NewRegistry(store)

	e := NewEngine(state.NewStore())
	e.Register(NewRegistrationFlow(accounts))
	e.Register(NewLoginFlow(accounts))
	e.Register(NewPasswordFlow(accounts))
	e.Register(NewTrackingFlow(accounts, registry))
	if estimator != nil {
		e.Register(NewCalculatorFlow(estimator))
	}

	return &harness{
		t:        t,
		engine:   e,
		store:    store,
		accounts: accounts,
		registry: registry,
		key:      state.Key{UserID: 100, ChatID: 100},
		from:     Identity{ID: 100},
	}
}

func (h *harness) start(flow state.Flow) []Prompt {
	h.t.Helper()
	prompts, err := h.engine.Start(context.Background(), h.key, flow, Event{From: h.from})
	require.NoError(h.t, err)
	return prompts
}

func (h *harness) say(text string) []Prompt {
	h.t.Helper()
	prompts, err := h.engine.HandleEvent(context.Background(), h.key, Event{Text: text, From: h.from})
	require.NoError(h.t, err)
	return prompts
}

func (h *harness) tap(data string) []Prompt {
	h.t.Helper()
	prompts, err := h.engine.HandleEvent(context.Background(), h.key, Event{Callback: true, Data: data, From: h.from})
	require.NoError(h.t, err)
	return prompts
}

func (h *harness) register(handle, secret string) {
	h.t.Helper()
	h.start(FlowRegistration)
	h.say(handle)
	h.say(secret)
	h.say("-")
	h.say("-")
	require.False(h.t, h.engine.Active(h.key))
}

func firstText(t *testing.T, prompts []Prompt) string {
	t.Helper()
	require.NotEmpty(t, prompts)
	return prompts[0].Text
}

func TestRegistrationHappyPath(t *testing.T) {
	h := newHarness(t, nil)

	h.start(FlowRegistration)
	h.say("Alice_99")
	h.say("hunter22")
	h.say("Alice")
	prompts := h.say("Smith")

	assert.Contains(t, firstText(t, prompts), "@alice_99")
	assert.True(t, prompts[0].MainMenu)
	assert.False(t, h.engine.Active(h.key))

	u, err := h.accounts.Profile(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, "alice_99", u.Handle)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Equal(t, "Smith", u.LastName)
}

func TestRegistrationRepromptsBadInput(t *testing.T) {
	h := newHarness(t, nil)
	h.start(FlowRegistration)

	prompts := h.say("ab")
	assert.Contains(t, firstText(t, prompts), "too short")

	prompts = h.say("weird@name")
	assert.Contains(t, firstText(t, prompts), "letters, digits and underscores")

	prompts = h.say("goodname")
	assert.Contains(t, firstText(t, prompts), "password")

	prompts = h.say("short")
	assert.Contains(t, firstText(t, prompts), "too short")

	assert.True(t, h.engine.Active(h.key), "dialog survives re-prompts")
}

func TestRegistrationTakenHandle(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.accounts.Register(context.Background(), 1, "taken", "secret1", "", ""))

	h.start(FlowRegistration)
	prompts := h.say("taken")
	assert.Contains(t, firstText(t, prompts), "already taken")
	assert.True(t, h.engine.Active(h.key))
}

func TestRegistrationSkipsOptionalNames(t *testing.T) {
	h := newHarness(t, nil)
	h.register("bob", "secret99")

	u, err := h.accounts.Profile(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, u.FirstName)
	assert.Empty(t, u.LastName)
}

func TestLoginRebindsParcels(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	// The account and its parcel live on an old identity.
	require.NoError(t, h.accounts.Register(ctx, 55, "carol", "secret77", "", ""))
	_, err := h.registry.Add(ctx, 55, "TRACK-12345")
	require.NoError(t, err)

	h.start(FlowLogin)
	h.say("Carol")
	prompts := h.say("secret77")
	assert.Contains(t, firstText(t, prompts), "Welcome back")
	assert.False(t, h.engine.Active(h.key))

	list, err := h.registry.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "TRACK-12345", list[0].Code)
}

func TestLoginThreeStrikes(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.accounts.Register(context.Background(), 55, "carol", "secret77", "", ""))

	h.start(FlowLogin)
	h.say("carol")

	for i := 0; i < 2; i++ {
		prompts := h.say("wrong-guess")
		assert.Contains(t, firstText(t, prompts), "Wrong handle or password")
		assert.True(t, h.engine.Active(h.key))
	}
	prompts := h.say("wrong-again")
	assert.Contains(t, firstText(t, prompts), "cancelled")
	assert.False(t, h.engine.Active(h.key), "third failure ends the dialog")
}

func TestLoginUnknownHandleLooksLikeWrongSecret(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.accounts.Register(context.Background(), 55, "carol", "secret77", "", ""))

	h.start(FlowLogin)
	h.say("carol")
	wrongSecret := firstText(t, h.say("not-it"))

	h.engine.Cancel(context.Background(), h.key)
	h.start(FlowLogin)
	h.say("nobody")
	unknownHandle := firstText(t, h.say("whatever"))

	assert.Equal(t, wrongSecret, unknownHandle, "prompts must not reveal whether the handle exists")
}

func TestPasswordChange(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.register("dave", "oldsecret")

	h.start(FlowPassword)

	prompts := h.say("not-the-one")
	assert.Contains(t, firstText(t, prompts), "doesn't match")

	h.say("oldsecret")
	prompts = h.say("newsecret")
	assert.Contains(t, firstText(t, prompts), "updated")
	assert.False(t, h.engine.Active(h.key))

	assert.ErrorIs(t, h.accounts.VerifySecret(ctx, 100, "oldsecret"), users.ErrBadCredentials)
	assert.NoError(t, h.accounts.VerifySecret(ctx, 100, "newsecret"))
}

func TestPasswordChangeCancelledMidwayKeepsOldSecret(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.register("dave", "oldsecret")

	h.start(FlowPassword)
	h.say("oldsecret")
	h.engine.Cancel(ctx, h.key)

	assert.False(t, h.engine.Active(h.key), "cancel discards the dialog and its scratch")
	assert.NoError(t, h.accounts.VerifySecret(ctx, 100, "oldsecret"),
		"cancel before commit must not touch the stored secret")
}

func TestPasswordChangeNeedsAccount(t *testing.T) {
	h := newHarness(t, nil)
	h.start(FlowPassword)
	prompts := h.say("whatever99")
	assert.Contains(t, firstText(t, prompts), "/register")
	assert.False(t, h.engine.Active(h.key))
}

func TestTrackingFlowSavesCode(t *testing.T) {
	h := newHarness(t, nil)
	h.register("erin", "secret55")

	h.start(FlowTracking)
	prompts := h.say(" rb123456789cn ")
	assert.Contains(t, firstText(t, prompts), "RB123456789CN")
	assert.Contains(t, firstText(t, prompts), "Saved")
	assert.False(t, h.engine.Active(h.key))

	h.start(FlowTracking)
	prompts = h.say("RB123456789CN")
	assert.Contains(t, firstText(t, prompts), "already tracking")
}

func TestTrackingFlowRejectsBadCode(t *testing.T) {
	h := newHarness(t, nil)
	h.register("erin", "secret55")

	h.start(FlowTracking)
	prompts := h.say("abc")
	assert.Contains(t, firstText(t, prompts), "doesn't look like a tracking code")
	assert.True(t, h.engine.Active(h.key))
}

func TestTrackingFlowRedirectsGuests(t *testing.T) {
	h := newHarness(t, nil)

	h.start(FlowTracking)
	prompts := h.say("RB123456789CN")
	assert.Contains(t, firstText(t, prompts), "/register")
	assert.False(t, h.engine.Active(h.key))

	n, err := h.registry.Count(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// fakeEstimator scripts the carrier for calculator tests.
type fakeEstimator struct {
	cities   map[string][]pricing.Destination
	quote    *pricing.Quote
	quoteErr error
	lastReq  pricing.QuoteRequest
}

func (f *fakeEstimator) SearchDestinations(_ context.Context, _, query string) ([]pricing.Destination, error) {
	return f.cities[strings.ToLower(strings.TrimSpace(query))], nil
}

func (f *fakeEstimator) Quote(_ context.Context, req pricing.QuoteRequest) (*pricing.Quote, error) {
	f.lastReq = req
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return f.quote, nil
}

func calcFake() *fakeEstimator {
	return &fakeEstimator{
		cities: map[string][]pricing.Destination{
			"berlin": {{ID: "10", Name: "Berlin"}},
			"bern":   {{ID: "20", Name: "Bern"}, {ID: "21", Name: "Bernau"}},
		},
		quote: &pricing.Quote{Price: 12.5, Currency: "EUR", MinDays: 3, MaxDays: 7},
	}
}

func TestCalculatorHappyPath(t *testing.T) {
	fake := calcFake()
	h := newHarness(t, fake)

	h.start(FlowCalculator)

	prompts := h.say("Berlin")
	require.Len(t, prompts[0].Choices, 1)
	assert.Equal(t, CallbackCalcOrigin, prompts[0].Choices[0].Key)

	h.tap("10")
	prompts = h.say("bern")
	require.Len(t, prompts[0].Choices, 2)
	assert.Equal(t, "Bern", prompts[0].Choices[0].Label)

	prompts = h.tap("20")
	require.Len(t, prompts[0].Choices, 2, "service mode menu")

	h.tap(string(pricing.ModeCourier))
	prompts = h.say("2,5")

	text := firstText(t, prompts)
	assert.Contains(t, text, "Berlin")
	assert.Contains(t, text, "Bern")
	assert.Contains(t, text, "12.50 EUR")
	assert.Contains(t, text, "3-7 days")
	assert.False(t, h.engine.Active(h.key))

	assert.Equal(t, pricing.QuoteRequest{
		OriginID:      "10",
		DestinationID: "20",
		Mode:          pricing.ModeCourier,
		WeightKG:      2.5,
	}, fake.lastReq)
}

func TestCalculatorWeightValidation(t *testing.T) {
	h := newHarness(t, calcFake())

	h.start(FlowCalculator)
	h.say("berlin")
	h.tap("10")
	h.say("bern")
	h.tap("20")
	h.tap(string(pricing.ModePickup))

	prompts := h.say("heavy")
	assert.Contains(t, firstText(t, prompts), "as a number")

	prompts = h.say("99")
	assert.Contains(t, firstText(t, prompts), "up to 31.5")

	prompts = h.say("0")
	assert.Contains(t, firstText(t, prompts), "as a number")
	assert.True(t, h.engine.Active(h.key))
}

func TestCalculatorUnknownCityReprompts(t *testing.T) {
	h := newHarness(t, calcFake())

	h.start(FlowCalculator)
	prompts := h.say("atlantis")
	assert.Contains(t, firstText(t, prompts), "couldn't find")
	assert.True(t, h.engine.Active(h.key))
}

func TestCalculatorTypingAtPickStepSearchesAgain(t *testing.T) {
	h := newHarness(t, calcFake())

	h.start(FlowCalculator)
	h.say("bern")
	// mistyped, user types a new name instead of tapping
	prompts := h.say("berlin")
	require.Len(t, prompts[0].Choices, 1)
	assert.Equal(t, "Berlin", prompts[0].Choices[0].Label)
}

func TestCalculatorStaleCallbackReprompts(t *testing.T) {
	h := newHarness(t, calcFake())

	h.start(FlowCalculator)
	h.say("berlin")
	prompts := h.tap("999")
	assert.Contains(t, firstText(t, prompts), "pick a city from the list")
	assert.True(t, h.engine.Active(h.key))
}

func TestCalculatorCarrierRejection(t *testing.T) {
	fake := calcFake()
	fake.quoteErr = &pricing.RejectedError{Message: "no courier service there"}
	h := newHarness(t, fake)

	h.start(FlowCalculator)
	h.say("berlin")
	h.tap("10")
	h.say("bern")
	h.tap("20")
	h.tap(string(pricing.ModeCourier))
	prompts := h.say("2")

	assert.Contains(t, firstText(t, prompts), "no courier service there")
	assert.False(t, h.engine.Active(h.key), "carrier refusals end the dialog")
}

func TestCalculatorCarrierOutage(t *testing.T) {
	fake := calcFake()
	fake.quoteErr = pricing.ErrServiceUnavailable
	h := newHarness(t, fake)

	h.start(FlowCalculator)
	h.say("berlin")
	h.tap("10")
	h.say("bern")
	h.tap("20")
	h.tap(string(pricing.ModePickup))
	prompts := h.say("2")

	assert.Contains(t, firstText(t, prompts), "unavailable")
	assert.False(t, h.engine.Active(h.key))
}
