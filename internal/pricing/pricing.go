// Package pricing talks to the carrier's XML API for destination search
// and delivery cost quotes, with a best-effort Redis cache in front of
// destination search.
package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrServiceUnavailable means the carrier could not be reached after
	// the configured retries, or kept answering with server errors.
	ErrServiceUnavailable = errors.New("pricing: service unavailable")
	// ErrInvalidResponse means the carrier answered with a payload that
	// does not parse as the expected document.
	ErrInvalidResponse = errors.New("pricing: invalid response")
)

// RejectedError is a business refusal from the carrier (unsupported lane,
// weight over limit and similar). It is terminal and never retried.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("pricing: rejected: %s", e.Message)
}

// Code implements the error-code convention used by the handler logs.
func (e *RejectedError) Code() string { return "PRICING_REJECTED" }

// Destination is a deliverable endpoint returned by the search API.
type Destination struct {
	ID   string
	Name string
}

// Mode selects the delivery service type.
type Mode string

const (
	// ModePickup delivers to a pickup point.
	ModePickup Mode = "pickup"
	// ModeCourier delivers to the door.
	ModeCourier Mode = "courier"
)

// QuoteRequest describes one estimation request.
type QuoteRequest struct {
	OriginID      string
	DestinationID string
	Mode          Mode
	WeightKG      float64
}

// Quote is a successful estimation.
type Quote struct {
	Price    float64
	Currency string
	MinDays  int
	MaxDays  int
}
