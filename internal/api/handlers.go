package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/siteiq/siteiq/internal/insight"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
	eventPollWindow  = 25 * time.Second
)

type improveResponse struct {
	ConversationID string `json:"conversation_id"`
	Recommendation string `json:"recommendation"`
	Saved          bool   `json:"saved"`
}

type chatsResponse struct {
	Chats []insight.ConversationSummary `json:"chats"`
}

func (s *Server) improve(w http.ResponseWriter, r *http.Request) {
	var req insight.ImproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.WebsiteURL == "" {
		writeError(s.logger, w, http.StatusBadRequest, "website_url required")
		return
	}
	owner := ownerFromContext(r.Context())

	result, err := s.orch.Improve(r.Context(), owner, req)
	switch {
	case err == nil:
		writeJSON(s.logger, w, http.StatusOK, improveResponse(result))
	case errors.Is(err, insight.ErrPersistenceFailed):
		// The recommendation survived; the caller is told it was not
		// saved rather than losing it to an error status.
		writeJSON(s.logger, w, http.StatusOK, improveResponse(result))
	case errors.Is(err, insight.ErrOracleUnavailable):
		writeError(s.logger, w, http.StatusBadGateway, "recommendation service unavailable")
	case errors.Is(err, insight.ErrForbidden):
		writeError(s.logger, w, http.StatusForbidden, "conversation owned by another user")
	case errors.Is(err, insight.ErrNotFound):
		writeError(s.logger, w, http.StatusNotFound, "conversation not found")
	default:
		writeError(s.logger, w, http.StatusInternalServerError, "improve failed")
	}
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var req insight.RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UseCase == "" {
		writeError(s.logger, w, http.StatusBadRequest, "use_case required")
		return
	}

	rec, err := s.orch.Recommend(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(s.logger, w, http.StatusOK, rec)
	case errors.Is(err, insight.ErrOracleUnavailable):
		writeError(s.logger, w, http.StatusBadGateway, "recommendation service unavailable")
	default:
		writeError(s.logger, w, http.StatusInternalServerError, "recommend failed")
	}
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", defaultPageLimit)
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	chats, err := s.store.List(r.Context(), owner, skip, limit)
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, chatsResponse{Chats: chats})
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	conversationID := chi.URLParam(r, "conversation_id")

	conv, err := s.store.Get(r.Context(), owner, conversationID)
	if errors.Is(err, insight.ErrNotFound) {
		writeError(s.logger, w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, conv)
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	owner := ownerFromContext(r.Context())
	conversationID := chi.URLParam(r, "conversation_id")

	err := s.store.Delete(r.Context(), owner, conversationID)
	if errors.Is(err, insight.ErrNotFound) {
		writeError(s.logger, w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(s.logger, w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// chatEvents long-polls for the next turn event belonging to the
// caller. Returns the event as JSON, or 204 when the poll window
// lapses without one.
func (s *Server) chatEvents(w http.ResponseWriter, r *http.Request) {
	if s.subs == nil {
		writeError(s.logger, w, http.StatusServiceUnavailable, "events unavailable")
		return
	}
	owner := ownerFromContext(r.Context())

	ch, cancel := s.subs.Subscribe(owner)
	defer cancel()

	wait := time.NewTimer(eventPollWindow)
	defer wait.Stop()

	select {
	case evt, ok := <-ch:
		if !ok {
			writeError(s.logger, w, http.StatusServiceUnavailable, "events unavailable")
			return
		}
		writeJSON(s.logger, w, http.StatusOK, evt)
	case <-wait.C:
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
		w.WriteHeader(http.StatusNoContent)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return def
	}
	return val
}
