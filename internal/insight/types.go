// Package insight defines core types shared across subsystems.
package insight

import "time"

// Fingerprint is the structured summary of a page's declared metadata
// and script dependencies. Produced fresh per fetch and never persisted
// on its own.
type Fingerprint struct {
	// MetaTags maps the lower-cased meta name/property to its content
	// value. Last write wins on duplicate keys within a document.
	MetaTags map[string]string `json:"meta_tags"`
	// Scripts lists script src values in document order, duplicates kept.
	Scripts []string `json:"scripts"`
}

// Empty reports whether the fingerprint carries no signal at all.
func (f Fingerprint) Empty() bool {
	return len(f.MetaTags) == 0 && len(f.Scripts) == 0
}

// Turn is one recommendation exchange appended to a conversation.
type Turn struct {
	Prompt         string    `json:"prompt"`
	Recommendation string    `json:"recommendation"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is an ordered, append-only sequence of turns owned by
// one user. Turns are never reordered or removed individually; only the
// whole conversation is deletable.
type Conversation struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Title       string    `json:"title"`
	Turns       []Turn    `json:"turns"`
	LastUpdated time.Time `json:"last_updated"`
}

// ConversationSummary is the listing row returned by history queries.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastUpdated time.Time `json:"last_updated"`
}

// StackSection is one category of a structured stack recommendation.
type StackSection struct {
	Reason string   `json:"reason"`
	Stack  []string `json:"stack"`
}

// StackRecommendation is the structured breakdown returned for
// use-case-driven requests. All five sections are always populated.
type StackRecommendation struct {
	Frontend StackSection `json:"frontend"`
	Backend  StackSection `json:"backend"`
	Database StackSection `json:"database"`
	Hosting  StackSection `json:"hosting"`
	Other    StackSection `json:"other"`
}

// ImproveRequest asks for improvement analysis of a live website.
type ImproveRequest struct {
	WebsiteURL         string `json:"website_url"`
	ConversationID     string `json:"conversation_id,omitempty"`
	SEOFocused         bool   `json:"seo_focused"`
	PerformanceFocused bool   `json:"performance_focused"`
}

// RecommendRequest asks for a stack recommendation from a free-form
// use-case description. No fetch is involved.
type RecommendRequest struct {
	UseCase            string `json:"use_case"`
	SEOFocused         bool   `json:"seo_focused"`
	PerformanceFocused bool   `json:"performance_focused"`
}

// ImproveResult is returned by the improve flow. Saved is false when
// the recommendation was produced but could not be written to history.
type ImproveResult struct {
	ConversationID string `json:"conversation_id"`
	Recommendation string `json:"recommendation"`
	Saved          bool   `json:"saved"`
}

// TitleFallback is used when no better conversation title can be derived.
const TitleFallback = "Untitled"
