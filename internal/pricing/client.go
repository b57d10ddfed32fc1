package pricing

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"parcelbot/core/logger"
)

// ClientOptions tunes the carrier client.
type ClientOptions struct {
	BaseURL string
	// Timeout bounds a single request.
	Timeout time.Duration
	// MaxAttempts is the total number of tries for transport failures.
	MaxAttempts int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// Client is the raw XML API client. It retries transport-level failures
// and server errors; business refusals pass through untouched.
type Client struct {
	baseURL     string
	http        *http.Client
	maxAttempts int
	backoff     time.Duration
}

// NewClient builds a carrier client with sane defaults for zeroed options.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	return &Client{
		baseURL:     opts.BaseURL,
		http:        &http.Client{Timeout: opts.Timeout},
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
	}
}

type destinationXML struct {
	ID   string `xml:"id"`
	Name string `xml:"name"`
}

type searchResponseXML struct {
	XMLName      xml.Name         `xml:"response"`
	Error        bool             `xml:"error"`
	Message      string           `xml:"message"`
	Destinations []destinationXML `xml:"destinations>destination"`
}

type quoteResponseXML struct {
	XMLName xml.Name `xml:"response"`
	Error   bool     `xml:"error"`
	Message string   `xml:"message"`
	Quote   struct {
		Price    float64 `xml:"price"`
		Currency string  `xml:"currency"`
		MinDays  int     `xml:"min_days"`
		MaxDays  int     `xml:"max_days"`
	} `xml:"quote"`
}

// SearchDestinations queries deliverable endpoints matching the text.
func (c *Client) SearchDestinations(ctx context.Context, originID, query string) ([]Destination, error) {
	q := url.Values{}
	q.Set("from", originID)
	q.Set("q", query)

	body, err := c.fetch(ctx, "/destinations", q)
	if err != nil {
		return nil, err
	}

	var doc searchResponseXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if doc.Error {
		return nil, &RejectedError{Message: doc.Message}
	}

	out := make([]Destination, 0, len(doc.Destinations))
	for _, d := range doc.Destinations {
		out = append(out, Destination{ID: d.ID, Name: d.Name})
	}
	return out, nil
}

// Quote asks the carrier for a delivery price.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	q := url.Values{}
	q.Set("from", req.OriginID)
	q.Set("to", req.DestinationID)
	q.Set("mode", string(req.Mode))
	q.Set("weight", strconv.FormatFloat(req.WeightKG, 'f', -1, 64))

	body, err := c.fetch(ctx, "/quote", q)
	if err != nil {
		return nil, err
	}

	var doc quoteResponseXML
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if doc.Error {
		return nil, &RejectedError{Message: doc.Message}
	}
	if doc.Quote.Price <= 0 {
		return nil, fmt.Errorf("%w: non-positive price", ErrInvalidResponse)
	}
	return &Quote{
		Price:    doc.Quote.Price,
		Currency: doc.Quote.Currency,
		MinDays:  doc.Quote.MinDays,
		MaxDays:  doc.Quote.MaxDays,
	}, nil
}

// fetch performs a GET with doubling backoff on transport failures and
// server errors. Parse failures and business refusals are handled by the
// callers and never reach the retry loop.
func (c *Client) fetch(ctx context.Context, path string, q url.Values) ([]byte, error) {
	endpoint := c.baseURL + path + "?" + q.Encode()

	var lastErr error
	delay := c.backoff
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, ctx.Err())
			case <-timer.C:
			}
			delay *= 2
			logger.Debug(ctx, "pricing", "fetch.retry",
				slog.String("path", path),
				slog.Int("attempt", attempt),
			)
		}

		body, status, err := c.once(ctx, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		if status < 200 || status > 299 {
			lastErr = fmt.Errorf("status %d", status)
			continue
		}
		return body, nil
	}

	logger.Warn(ctx, "pricing", "fetch.exhausted",
		slog.String("path", path),
		slog.Int("attempts", c.maxAttempts),
		slog.String("err", fmt.Sprint(lastErr)),
	)
	return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, lastErr)
}

func (c *Client) once(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
