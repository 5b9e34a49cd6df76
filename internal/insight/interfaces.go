package insight

import (
	"context"
	"time"
)

// Fetcher retrieves the raw HTML body for a single URL. Implementations
// perform one GET with a browser-like user agent and no retries.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Extractor derives a Fingerprint from raw HTML. Implementations must
// tolerate malformed markup and degrade to partial results rather than
// failing; empty input yields an empty Fingerprint.
type Extractor interface {
	Extract(html string) Fingerprint
}

// Oracle is the external recommendation service, treated as an opaque
// and fallible black box.
type Oracle interface {
	// Improve returns narrative markdown for a fingerprint-driven
	// improvement analysis. The fingerprint may be empty.
	Improve(ctx context.Context, fp Fingerprint, seoFocused, performanceFocused bool) (string, error)
	// Recommend returns the structured stack breakdown for a use case.
	Recommend(ctx context.Context, useCase string, seoFocused, performanceFocused bool) (StackRecommendation, error)
}

// ConversationStore persists conversations keyed by owner and id.
type ConversationStore interface {
	// Append adds a turn. An empty conversationID creates a new
	// conversation titled title and returns its freshly assigned id;
	// otherwise the id is returned unchanged. Owner mismatch yields
	// ErrForbidden with no write.
	Append(ctx context.Context, ownerID, conversationID, title string, turn Turn) (string, error)
	// List returns summaries ordered by LastUpdated descending with a
	// stable id tie-break, windowed by skip/limit.
	List(ctx context.Context, ownerID string, skip, limit int) ([]ConversationSummary, error)
	// Get returns the full conversation, or ErrNotFound when absent or
	// owned by someone else.
	Get(ctx context.Context, ownerID, conversationID string) (Conversation, error)
	// Delete removes the whole conversation, or ErrNotFound when absent
	// or owned by someone else.
	Delete(ctx context.Context, ownerID, conversationID string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces conversation IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher computes digests for stable cache keying.
type Hasher interface {
	Hash(data []byte) (string, error)
}
