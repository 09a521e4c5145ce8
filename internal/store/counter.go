package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"waitlist-server/internal/observability"
)

// DailyCounter persists a map of calendar day (YYYY-MM-DD) to count.
// Entries are never pruned.
type DailyCounter struct {
	backend Backend
	logger  *observability.Logger
}

// NewDailyCounter creates a counter on top of backend.
func NewDailyCounter(backend Backend, logger *observability.Logger) *DailyCounter {
	return &DailyCounter{backend: backend, logger: logger}
}

// Update runs fn against the current counts under the backend lock. The map
// is written back only when fn reports a change.
func (d *DailyCounter) Update(ctx context.Context, fn func(counts map[string]int) (bool, error)) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "rate_limit_file", Value: d.backend.Location()},
	)

	return d.backend.Update(ctx, func(current []byte) ([]byte, error) {
		counts := d.decode(ctx, current)
		changed, err := fn(counts)
		if err != nil {
			return nil, err
		}
		if !changed {
			return nil, nil
		}
		data, err := json.Marshal(counts)
		if err != nil {
			return nil, fmt.Errorf("failed to encode daily counts: %w", err)
		}
		return data, nil
	})
}

// Counts returns a snapshot of all stored days.
func (d *DailyCounter) Counts(ctx context.Context) (map[string]int, error) {
	raw, err := d.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	return d.decode(ctx, raw), nil
}

func (d *DailyCounter) decode(ctx context.Context, raw []byte) map[string]int {
	counts := map[string]int{}
	trimmed := bytes.TrimSpace(raw)
	// An empty JSON array is what an empty map looked like in older files.
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("[]")) {
		return counts
	}
	if err := json.Unmarshal(trimmed, &counts); err != nil {
		d.logger.WarnWithError(ctx, "rate limit file is corrupted, starting from empty counts", err)
		return map[string]int{}
	}
	if counts == nil {
		return map[string]int{}
	}
	return counts
}
