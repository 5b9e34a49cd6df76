// Package history implements client-side retrieval of past
// conversations: an incremental pager driven by "more requested"
// signals and a local last-viewed snapshot cache.
package history

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/siteiq/siteiq/internal/insight"
)

// State is the pager's position in its loading lifecycle.
type State string

// Pager states. Exhausted means no further fetches will be triggered.
const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateExhausted State = "exhausted"
)

// ListFunc fetches one page of conversation summaries.
type ListFunc func(ctx context.Context, skip, limit int) ([]insight.ConversationSummary, error)

// Pager maintains the visible conversation list for one client. It
// enforces at most one in-flight fetch: a signal arriving while a fetch
// is running is dropped, not queued. A page shorter than the page size
// marks the pager exhausted.
type Pager struct {
	list     ListFunc
	pageSize int
	logger   *zap.Logger

	mu        sync.Mutex
	page      int
	hasMore   bool
	isLoading bool
	items     []insight.ConversationSummary
	currentID string
}

// NewPager constructs a Pager. pageSize defaults to 10.
func NewPager(list ListFunc, pageSize int, logger *zap.Logger) *Pager {
	if pageSize <= 0 {
		pageSize = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{
		list:     list,
		pageSize: pageSize,
		logger:   logger,
		page:     -1,
		hasMore:  true,
	}
}

// State reports the pager's current lifecycle state.
func (p *Pager) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.isLoading:
		return StateLoading
	case !p.hasMore:
		return StateExhausted
	default:
		return StateIdle
	}
}

// Items returns a copy of the visible list.
func (p *Pager) Items() []insight.ConversationSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]insight.ConversationSummary(nil), p.items...)
}

// CurrentID returns the id of the conversation currently displayed, or
// empty when none is.
func (p *Pager) CurrentID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentID
}

// SetCurrentID records which conversation the client is displaying.
func (p *Pager) SetCurrentID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentID = id
}

// RequestMore handles one "more requested" signal (typically the scroll
// position crossing a near-bottom threshold). The signal is dropped
// when a fetch is already in flight or the list is exhausted. A fetch
// error returns the pager to idle so a later signal can retry.
func (p *Pager) RequestMore(ctx context.Context) error {
	p.mu.Lock()
	if p.isLoading || !p.hasMore {
		p.mu.Unlock()
		return nil
	}
	p.isLoading = true
	nextPage := p.page + 1
	p.mu.Unlock()

	batch, err := p.list(ctx, nextPage*p.pageSize, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.isLoading = false
	if err != nil {
		p.logger.Warn("history page fetch failed", zap.Int("page", nextPage), zap.Error(err))
		return fmt.Errorf("load history page %d: %w", nextPage, err)
	}
	p.page = nextPage
	p.items = append(p.items, batch...)
	if len(batch) < p.pageSize {
		p.hasMore = false
	}
	return nil
}

// Refresh refetches from the start and replaces (not appends to) the
// visible list. It is triggered after a new turn was appended. A
// refresh arriving while a fetch is in flight is dropped.
func (p *Pager) Refresh(ctx context.Context) error {
	p.mu.Lock()
	if p.isLoading {
		p.mu.Unlock()
		return nil
	}
	p.isLoading = true
	p.mu.Unlock()

	batch, err := p.list(ctx, 0, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.isLoading = false
	if err != nil {
		p.logger.Warn("history refresh failed", zap.Error(err))
		return fmt.Errorf("refresh history: %w", err)
	}
	p.page = 0
	p.items = append([]insight.ConversationSummary(nil), batch...)
	p.hasMore = len(batch) == p.pageSize
	return nil
}

// Remove drops a conversation from the visible list without refetching.
// When the removed conversation was the one displayed, the displayed
// conversation is cleared.
func (p *Pager) Remove(conversationID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	filtered := p.items[:0]
	for _, item := range p.items {
		if item.ID != conversationID {
			filtered = append(filtered, item)
		}
	}
	p.items = filtered
	if p.currentID == conversationID {
		p.currentID = ""
	}
}
