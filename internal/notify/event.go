// Package notify defines the turn events emitted by the orchestrator
// and the hub that fans them out to sinks.
package notify

import (
	"errors"
	"time"
)

// TurnEvent is emitted after a recommendation turn has been appended to
// a conversation. Sinks use it to refresh history views, log activity
// and feed metrics.
type TurnEvent struct {
	// Owner identifies the user the conversation belongs to.
	Owner string
	// ConversationID is the conversation the turn was appended to.
	ConversationID string
	// Title is the conversation title at append time.
	Title string
	// NewConversation is true when this turn created the conversation.
	NewConversation bool
	// At is the UTC timestamp recorded by the emitter.
	At time.Time
}

// Validate performs coarse validation on event payloads.
func (e TurnEvent) Validate() error {
	if e.Owner == "" {
		return errors.New("owner is required")
	}
	if e.ConversationID == "" {
		return errors.New("conversation id is required")
	}
	if e.At.IsZero() {
		return errors.New("timestamp is required")
	}
	return nil
}
