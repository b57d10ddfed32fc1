package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"parcelbot/core/logger"
)

const minQueryLength = 2

// Estimator is the service facade: destination search with a best-effort
// TTL cache and quote passthrough. A nil redis client disables caching.
type Estimator struct {
	client *Client
	cache  *redis.Client
	ttl    time.Duration
}

// NewEstimator wires the estimator.
func NewEstimator(client *Client, cache *redis.Client, ttl time.Duration) *Estimator {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Estimator{client: client, cache: cache, ttl: ttl}
}

func cacheKey(originID, query string) string {
	return fmt.Sprintf("parcelbot:dest:%s:%s", originID, query)
}

// SearchDestinations returns deliverable endpoints matching the query.
// Queries shorter than two characters return an empty list without
// touching the carrier. Cache failures only degrade to a live call.
func (e *Estimator) SearchDestinations(ctx context.Context, originID, rawQuery string) ([]Destination, error) {
	query := strings.ToLower(strings.TrimSpace(rawQuery))
	if len([]rune(query)) < minQueryLength {
		return nil, nil
	}

	key := cacheKey(originID, query)
	if e.cache != nil {
		if cached, err := e.cache.Get(ctx, key).Bytes(); err == nil {
			var out []Destination
			if err := json.Unmarshal(cached, &out); err == nil {
				logger.Debug(ctx, "pricing", "dest.cache_hit",
					slog.String("query", logger.SanitizeLimit(query, 64)),
					slog.Int("count", len(out)),
				)
				return out, nil
			}
		}
	}

	out, err := e.client.SearchDestinations(ctx, originID, query)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if data, err := json.Marshal(out); err == nil {
			if err := e.cache.Set(ctx, key, data, e.ttl).Err(); err != nil {
				logger.Debug(ctx, "pricing", "dest.cache_set_failed",
					slog.String("err", err.Error()),
				)
			}
		}
	}
	return out, nil
}

// Quote asks the carrier for a delivery price.
func (e *Estimator) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	start := time.Now()
	quote, err := e.client.Quote(ctx, req)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "pricing", "quote.ok",
		slog.Float64("weight_kg", req.WeightKG),
		slog.String("mode", string(req.Mode)),
		slog.Duration("duration", logger.Took(start)),
	)
	return quote, nil
}
