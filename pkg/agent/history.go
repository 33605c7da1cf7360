package agent

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/dataquay/pkg/cache"
	"github.com/ekaya-inc/dataquay/pkg/llm"
)

// historyVersion guards the persisted conversation format. Unknown versions
// are treated as absent history rather than decoded blindly.
const historyVersion = 1

// historyRecord is the persisted conversation envelope.
type historyRecord struct {
	Version  int           `json:"v"`
	Messages []llm.Message `json:"messages"`
}

// History persists a thread's conversation in the cache under the thread
// key. Writes are incremental: each save appends only the messages past the
// cursor returned by Load, so two saves of the same run stay idempotent.
type History struct {
	cache  cache.Cache
	thread string
}

// NewHistory scopes conversation persistence to one thread.
func NewHistory(memo cache.Cache, thread string) *History {
	return &History{cache: memo, thread: thread}
}

func (h *History) key() (string, error) {
	return cache.Key(map[string]any{
		"op":     "history",
		"thread": h.thread,
	})
}

// Tag groups this thread's history entries for invalidation.
func (h *History) Tag() string {
	return "history/" + h.thread
}

// Load returns the stored conversation and a cursor marking how many
// messages are already persisted. A missing or unknown-version record is an
// empty conversation.
func (h *History) Load(ctx context.Context) ([]llm.Message, int, error) {
	key, err := h.key()
	if err != nil {
		return nil, 0, err
	}

	var record historyRecord
	err = cache.GetJSON(ctx, h.cache, key, &record)
	if cache.IsMiss(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load history: %w", err)
	}
	if record.Version != historyVersion {
		return nil, 0, nil
	}
	return record.Messages, len(record.Messages), nil
}

// Save persists the conversation. cursor is the prefix length already
// stored at Load time; only messages[cursor:] are new. If another writer
// advanced the record in between, the longer conversation wins.
func (h *History) Save(ctx context.Context, messages []llm.Message, cursor int) error {
	if cursor < 0 || cursor > len(messages) {
		return fmt.Errorf("history cursor %d out of range for %d messages", cursor, len(messages))
	}

	key, err := h.key()
	if err != nil {
		return err
	}

	stored, _, err := h.Load(ctx)
	if err != nil {
		return err
	}
	if len(stored) > len(messages) {
		return nil
	}
	if len(stored) >= cursor {
		merged := append(append([]llm.Message{}, stored[:cursor]...), messages[cursor:]...)
		messages = merged
	}

	record := historyRecord{Version: historyVersion, Messages: messages}
	if err := cache.SetJSON(ctx, h.cache, key, record, h.Tag()); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Clear drops the thread's stored conversation.
func (h *History) Clear(ctx context.Context) error {
	return h.cache.InvalidateTag(ctx, h.Tag())
}
