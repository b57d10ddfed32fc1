package flows

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"parcelbot/core/telegram/state"
	"parcelbot/internal/pricing"
)

const (
	stepCalcOrigin   state.Step = "origin"
	stepCalcOriginOK state.Step = "origin_pick"
	stepCalcDest     state.Step = "destination"
	stepCalcDestOK   state.Step = "destination_pick"
	stepCalcMode     state.Step = "mode"
	stepCalcWeight   state.Step = "weight"

	scratchOriginID   = "origin_id"
	scratchOriginName = "origin_name"
	scratchDestID     = "dest_id"
	scratchDestName   = "dest_name"
	scratchMode       = "mode"

	// cityScratchPrefix keys the options of the last search so the pick
	// callback can recover the city name from its id.
	cityScratchPrefix = "city:"

	maxCityChoices = 10
	maxWeightKG    = 31.5
)

// Callback keys the bot layer registers for calculator choice menus.
const (
	CallbackCalcOrigin = "calc_origin"
	CallbackCalcDest   = "calc_dest"
	CallbackCalcMode   = "calc_mode"
)

// PriceEstimator is the slice of the pricing service the calculator needs.
type PriceEstimator interface {
	SearchDestinations(ctx context.Context, originID, query string) ([]pricing.Destination, error)
	Quote(ctx context.Context, req pricing.QuoteRequest) (*pricing.Quote, error)
}

// NewCalculatorFlow builds the delivery cost dialog: pick the origin city,
// pick the destination, choose the service mode, enter the weight, get a
// quote. City steps come in pairs: a text step that searches and a pick
// step that consumes the menu callback. Typing at a pick step starts a new
// search, so a user who mistyped never gets stuck.
func NewCalculatorFlow(estimator PriceEstimator) *FlowSpec {
	return &FlowSpec{
		Name:  FlowCalculator,
		Entry: stepCalcOrigin,
		Greet: func(ctx context.Context, ev Event) ([]Prompt, error) {
			return []Prompt{{Text: "Let's estimate delivery cost. Which city are we shipping from?", Cancel: true}}, nil
		},
		Steps: map[state.Step]StepFunc{
			stepCalcOrigin:   searchCityStep(estimator, "", CallbackCalcOrigin, stepCalcOriginOK),
			stepCalcOriginOK: pickCityStep(estimator, "", CallbackCalcOrigin, stepCalcOriginOK, scratchOriginID, scratchOriginName, Prompt{Text: "Got it. Which city do we ship to?"}, stepCalcDest),
			stepCalcDest:     searchCityStep(estimator, scratchOriginID, CallbackCalcDest, stepCalcDestOK),
			stepCalcDestOK:   pickCityStep(estimator, scratchOriginID, CallbackCalcDest, stepCalcDestOK, scratchDestID, scratchDestName, modePrompt(), stepCalcMode),
			stepCalcMode: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				if !ev.Callback {
					return Result{Prompts: []Prompt{modePrompt()}}, nil
				}
				mode := pricing.Mode(ev.Data)
				if mode != pricing.ModePickup && mode != pricing.ModeCourier {
					return Result{Prompts: []Prompt{modePrompt()}}, nil
				}
				conv.Put(scratchMode, string(mode))
				return Result{
					Next:    stepCalcWeight,
					Prompts: []Prompt{{Text: fmt.Sprintf("How heavy is the parcel, in kilograms? (up to %.1f kg)", maxWeightKG)}},
				}, nil
			},
			stepCalcWeight: func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
				weight, err := parseWeight(ev.Text)
				if err != nil {
					return Result{Prompts: []Prompt{{Text: "Send the weight as a number, for example 2.5:"}}}, nil
				}
				if weight > maxWeightKG {
					return Result{Prompts: []Prompt{{Text: fmt.Sprintf("We only carry parcels up to %.1f kg. Enter a smaller weight:", maxWeightKG)}}}, nil
				}

				quote, err := estimator.Quote(ctx, pricing.QuoteRequest{
					OriginID:      conv.Value(scratchOriginID),
					DestinationID: conv.Value(scratchDestID),
					Mode:          pricing.Mode(conv.Value(scratchMode)),
					WeightKG:      weight,
				})

				var rejected *pricing.RejectedError
				switch {
				case errors.As(err, &rejected):
					return Result{
						Done:    true,
						Prompts: []Prompt{{Text: "The carrier declined this shipment: " + rejected.Message, MainMenu: true}},
					}, nil
				case errors.Is(err, pricing.ErrServiceUnavailable), errors.Is(err, pricing.ErrInvalidResponse):
					return Result{
						Done:    true,
						Prompts: []Prompt{{Text: "The calculator is unavailable right now, please try again later.", MainMenu: true}},
					}, nil
				case err != nil:
					return Result{}, err
				}

				return Result{
					Done: true,
					Prompts: []Prompt{{
						Text: fmt.Sprintf("Delivery from %s to %s, %s, %.1f kg:\n%.2f %s, %d-%d days.",
							conv.Value(scratchOriginName), conv.Value(scratchDestName),
							modeLabel(pricing.Mode(conv.Value(scratchMode))), weight,
							quote.Price, quote.Currency, quote.MinDays, quote.MaxDays),
						MainMenu: true,
					}},
				}, nil
			},
		},
	}
}

// searchCityStep turns a typed city name into a pick menu.
func searchCityStep(estimator PriceEstimator, originKey, callbackKey string, pickStep state.Step) StepFunc {
	return func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
		return runCitySearch(ctx, estimator, conv, ev.Text, originKey, callbackKey, pickStep)
	}
}

// pickCityStep consumes the menu callback; plain text restarts the search.
func pickCityStep(estimator PriceEstimator, originKey, callbackKey string, pickStep state.Step, idKey, nameKey string, nextPrompt Prompt, next state.Step) StepFunc {
	return func(ctx context.Context, conv *state.Conversation, ev Event) (Result, error) {
		if !ev.Callback {
			return runCitySearch(ctx, estimator, conv, ev.Text, originKey, callbackKey, pickStep)
		}
		name, ok := conv.Get(cityScratchPrefix + ev.Data)
		if !ok {
			return Result{Prompts: []Prompt{{Text: "Please pick a city from the list, or type another name:"}}}, nil
		}
		clearCityOptions(conv)
		conv.Put(idKey, ev.Data)
		conv.Put(nameKey, name)
		return Result{Next: next, Prompts: []Prompt{nextPrompt}}, nil
	}
}

func runCitySearch(ctx context.Context, estimator PriceEstimator, conv *state.Conversation, query, originKey, callbackKey string, pickStep state.Step) (Result, error) {
	originID := ""
	if originKey != "" {
		originID = conv.Value(originKey)
	}
	found, err := estimator.SearchDestinations(ctx, originID, query)
	if err != nil {
		if errors.Is(err, pricing.ErrServiceUnavailable) || errors.Is(err, pricing.ErrInvalidResponse) {
			return Result{
				Done:    true,
				Prompts: []Prompt{{Text: "The calculator is unavailable right now, please try again later.", MainMenu: true}},
			}, nil
		}
		return Result{}, err
	}
	if len(found) == 0 {
		return Result{Prompts: []Prompt{{Text: "I couldn't find a city by that name. Try a different spelling:"}}}, nil
	}
	if len(found) > maxCityChoices {
		found = found[:maxCityChoices]
	}

	clearCityOptions(conv)
	choices := make([]Choice, 0, len(found))
	for _, d := range found {
		conv.Put(cityScratchPrefix+d.ID, d.Name)
		choices = append(choices, Choice{Key: callbackKey, Data: d.ID, Label: d.Name})
	}
	return Result{
		Next:    pickStep,
		Prompts: []Prompt{{Text: "Pick your city:", Choices: choices}},
	}, nil
}

func clearCityOptions(conv *state.Conversation) {
	for k := range conv.Scratch {
		if strings.HasPrefix(k, cityScratchPrefix) {
			delete(conv.Scratch, k)
		}
	}
}

func modePrompt() Prompt {
	return Prompt{
		Text: "How should we deliver it?",
		Choices: []Choice{
			{Key: CallbackCalcMode, Data: string(pricing.ModePickup), Label: "Pickup point"},
			{Key: CallbackCalcMode, Data: string(pricing.ModeCourier), Label: "Courier"},
		},
	}
}

func modeLabel(m pricing.Mode) string {
	if m == pricing.ModeCourier {
		return "courier"
	}
	return "pickup point"
}

func parseWeight(text string) (float64, error) {
	t := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	w, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, err
	}
	if w <= 0 {
		return 0, fmt.Errorf("non-positive weight")
	}
	return w, nil
}
