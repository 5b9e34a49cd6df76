// Package memory provides an in-memory conversation store for
// development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/siteiq/siteiq/internal/insight"
)

// Store implements insight.ConversationStore with a mutex-guarded map.
// Appends to the same conversation are serialized by the mutex, so turn
// order is the lock acquisition order.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]insight.Conversation
	idGen         insight.IDGenerator
	clock         insight.Clock
}

// New constructs a Store.
func New(idGen insight.IDGenerator, clock insight.Clock) *Store {
	return &Store{
		conversations: make(map[string]insight.Conversation),
		idGen:         idGen,
		clock:         clock,
	}
}

// Append adds a turn, creating the conversation when conversationID is
// empty. Owner mismatch yields insight.ErrForbidden with no write.
func (s *Store) Append(_ context.Context, ownerID, conversationID, title string, turn insight.Turn) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if conversationID == "" {
		id, err := s.idGen.NewID()
		if err != nil {
			return "", fmt.Errorf("assign conversation id: %w", err)
		}
		if title == "" {
			title = insight.TitleFallback
		}
		s.conversations[id] = insight.Conversation{
			ID:          id,
			Owner:       ownerID,
			Title:       title,
			Turns:       []insight.Turn{turn},
			LastUpdated: now,
		}
		return id, nil
	}

	conv, ok := s.conversations[conversationID]
	if !ok {
		return "", insight.ErrNotFound
	}
	if conv.Owner != ownerID {
		return "", insight.ErrForbidden
	}
	conv.Turns = append(conv.Turns, turn)
	conv.LastUpdated = now
	s.conversations[conversationID] = conv
	return conversationID, nil
}

// List returns summaries for ownerID ordered by LastUpdated descending,
// ties broken by id, windowed by skip/limit.
func (s *Store) List(_ context.Context, ownerID string, skip, limit int) ([]insight.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]insight.ConversationSummary, 0)
	for _, conv := range s.conversations {
		if conv.Owner != ownerID {
			continue
		}
		summaries = append(summaries, insight.ConversationSummary{
			ID:          conv.ID,
			Title:       conv.Title,
			LastUpdated: conv.LastUpdated,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].LastUpdated.Equal(summaries[j].LastUpdated) {
			return summaries[i].LastUpdated.After(summaries[j].LastUpdated)
		}
		return summaries[i].ID < summaries[j].ID
	})

	if skip < 0 {
		skip = 0
	}
	if skip >= len(summaries) {
		return []insight.ConversationSummary{}, nil
	}
	end := len(summaries)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return summaries[skip:end], nil
}

// Get returns the full conversation for ownerID.
func (s *Store) Get(_ context.Context, ownerID, conversationID string) (insight.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.Owner != ownerID {
		return insight.Conversation{}, insight.ErrNotFound
	}
	out := conv
	out.Turns = append([]insight.Turn(nil), conv.Turns...)
	return out, nil
}

// Delete removes the whole conversation. Absent or foreign rows yield
// insight.ErrNotFound and leave the store unchanged.
func (s *Store) Delete(_ context.Context, ownerID, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok || conv.Owner != ownerID {
		return insight.ErrNotFound
	}
	delete(s.conversations, conversationID)
	return nil
}
