// Package events broadcasts document updates between the component that
// repairs a diagram and everything else showing the same document.
//
// An update carries the exact fenced block that was replaced and the block
// that replaced it. Consumers apply it with a literal substring replace,
// which makes applying the same update twice harmless.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Channel is the topic document updates are published on.
const Channel = "docsmith:document-updated"

// DocumentUpdated reports that Previous was replaced by Next in the
// persisted document.
type DocumentUpdated struct {
	ID       string    `json:"id"`
	Previous string    `json:"previous"`
	Next     string    `json:"next"`
	At       time.Time `json:"at"`
}

// NewDocumentUpdated stamps an update with a fresh ID and the current time.
func NewDocumentUpdated(previous, next string) DocumentUpdated {
	return DocumentUpdated{
		ID:       uuid.NewString(),
		Previous: previous,
		Next:     next,
		At:       time.Now().UTC(),
	}
}

// Bus publishes document updates to subscribers.
type Bus interface {
	Publish(ctx context.Context, e DocumentUpdated) error

	// Subscribe returns a channel of updates published after the call.
	// The channel is closed when ctx ends or the returned cancel func is
	// called.
	Subscribe(ctx context.Context) (<-chan DocumentUpdated, func())

	Close() error
}

// subscriberBuffer is how many updates a slow subscriber may lag behind.
const subscriberBuffer = 16
