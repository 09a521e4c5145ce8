package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"waitlist-server/internal/observability"
)

var ErrDuplicateEntry = errors.New("email already on the waitlist")

// Waitlist is the ordered, deduplicated list of accepted emails.
type Waitlist struct {
	backend Backend
	logger  *observability.Logger
}

// NewWaitlist creates a waitlist on top of backend.
func NewWaitlist(backend Backend, logger *observability.Logger) *Waitlist {
	return &Waitlist{backend: backend, logger: logger}
}

// Add appends email unless it is already present (exact match). It returns
// the 1-based position of the new entry. Nothing is kept when the write
// fails.
func (w *Waitlist) Add(ctx context.Context, email string) (int, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "waitlist_file", Value: w.backend.Location()},
	)

	position := 0
	err := w.backend.Update(ctx, func(current []byte) ([]byte, error) {
		entries := w.decode(ctx, current)
		for _, existing := range entries {
			if existing == email {
				return nil, ErrDuplicateEntry
			}
		}
		entries = append(entries, email)
		position = len(entries)
		return encodeEntries(entries)
	})
	if err != nil {
		return 0, err
	}
	return position, nil
}

// Entries returns a snapshot of the waitlist in insertion order.
func (w *Waitlist) Entries(ctx context.Context) ([]string, error) {
	raw, err := w.backend.Read(ctx)
	if err != nil {
		return nil, err
	}
	return w.decode(ctx, raw), nil
}

// decode treats a missing or unreadable document as an empty list. The next
// successful Add overwrites it with valid JSON.
func (w *Waitlist) decode(ctx context.Context, raw []byte) []string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return []string{}
	}
	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		w.logger.WarnWithError(ctx, "waitlist file is corrupted, starting from an empty list", err)
		return []string{}
	}
	if entries == nil {
		return []string{}
	}
	return entries
}

func encodeEntries(entries []string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return nil, fmt.Errorf("failed to encode waitlist: %w", err)
	}
	return buf.Bytes(), nil
}
