package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/siteiq/siteiq/internal/config"
	"github.com/siteiq/siteiq/internal/fingerprint"
	"github.com/siteiq/siteiq/internal/insight"
	"github.com/siteiq/siteiq/internal/notify"
	"github.com/siteiq/siteiq/internal/notify/sinks"
	"github.com/siteiq/siteiq/internal/orchestrator"
	memorystore "github.com/siteiq/siteiq/internal/store/memory"
)

type stubFetcher struct{ html string }

func (f stubFetcher) Fetch(context.Context, string) (string, error) { return f.html, nil }

type stubOracle struct {
	narrative string
	rec       insight.StackRecommendation
	err       error
}

func (o stubOracle) Improve(context.Context, insight.Fingerprint, bool, bool) (string, error) {
	return o.narrative, o.err
}

func (o stubOracle) Recommend(context.Context, string, bool, bool) (insight.StackRecommendation, error) {
	return o.rec, o.err
}

type brokenStore struct{}

func (brokenStore) Append(context.Context, string, string, string, insight.Turn) (string, error) {
	return "", errors.New("write failed")
}

func (brokenStore) List(context.Context, string, int, int) ([]insight.ConversationSummary, error) {
	return nil, errors.New("read failed")
}

func (brokenStore) Get(context.Context, string, string) (insight.Conversation, error) {
	return insight.Conversation{}, errors.New("read failed")
}

func (brokenStore) Delete(context.Context, string, string) error {
	return errors.New("delete failed")
}

type seqIDGen struct{ n int }

func (g *seqIDGen) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("conv-%04d", g.n), nil
}

type tickingClock struct{ now time.Time }

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestServer(oracle insight.Oracle, store insight.ConversationStore, cfg config.Config) *Server {
	clock := &tickingClock{now: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	orch := orchestrator.New(
		stubFetcher{html: `<meta name="generator" content="WordPress">`},
		fingerprint.New(),
		oracle,
		store,
		clock,
		nil,
		zap.NewNop(),
	)
	return NewServer(orch, store, sinks.NewRefreshSink(), cfg, zap.NewNop())
}

func newMemoryServer(oracle insight.Oracle) (*Server, *memorystore.Store) {
	clock := &tickingClock{now: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	store := memorystore.New(&seqIDGen{}, clock)
	return newTestServer(oracle, store, config.Config{}), store
}

func doJSON(t *testing.T, h http.Handler, method, path, owner string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestImproveRequiresOwner(t *testing.T) {
	s, _ := newMemoryServer(stubOracle{narrative: "x"})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/improve", "",
		insight.ImproveRequest{WebsiteURL: "https://a.example"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestImproveHappyPath(t *testing.T) {
	s, store := newMemoryServer(stubOracle{narrative: "## Report"})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/improve", "user-1",
		insight.ImproveRequest{WebsiteURL: "https://a.example", SEOFocused: true})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp improveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ConversationID)
	assert.Equal(t, "## Report", resp.Recommendation)
	assert.True(t, resp.Saved)

	conv, err := store.Get(context.Background(), "user-1", resp.ConversationID)
	require.NoError(t, err)
	assert.Len(t, conv.Turns, 1)
}

func TestImproveMissingURL(t *testing.T) {
	s, _ := newMemoryServer(stubOracle{narrative: "x"})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/improve", "user-1", insight.ImproveRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImproveOracleDown(t *testing.T) {
	s, _ := newMemoryServer(stubOracle{err: insight.ErrOracleUnavailable})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/improve", "user-1",
		insight.ImproveRequest{WebsiteURL: "https://a.example"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestImproveUnsavedStillOK(t *testing.T) {
	s := newTestServer(stubOracle{narrative: "## Report"}, brokenStore{}, config.Config{})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/improve", "user-1",
		insight.ImproveRequest{WebsiteURL: "https://a.example"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp improveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Saved)
	assert.Equal(t, "## Report", resp.Recommendation)
}

func TestImproveForeignConversation(t *testing.T) {
	s, store := newMemoryServer(stubOracle{narrative: "x"})
	id, err := store.Append(context.Background(), "user-2", "", "t", insight.Turn{})
	require.NoError(t, err)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/improve", "user-1",
		insight.ImproveRequest{WebsiteURL: "https://a.example", ConversationID: id})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRecommendHappyPath(t *testing.T) {
	want := insight.StackRecommendation{
		Frontend: insight.StackSection{Reason: "r", Stack: []string{"Next.js"}},
		Backend:  insight.StackSection{Reason: "r", Stack: []string{"Go"}},
		Database: insight.StackSection{Reason: "r", Stack: []string{"PostgreSQL"}},
		Hosting:  insight.StackSection{Reason: "r", Stack: []string{"Fly.io"}},
		Other:    insight.StackSection{Reason: "r", Stack: []string{"Cloudflare"}},
	}
	s, _ := newMemoryServer(stubOracle{rec: want})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/recommend", "user-1",
		insight.RecommendRequest{UseCase: "blog", SEOFocused: true})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp insight.StackRecommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, want, resp)
}

func TestRecommendMissingUseCase(t *testing.T) {
	s, _ := newMemoryServer(stubOracle{})
	rec := doJSON(t, s.Handler(), http.MethodPost, "/v1/recommend", "user-1", insight.RecommendRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatsListAndPagination(t *testing.T) {
	s, store := newMemoryServer(stubOracle{narrative: "x"})
	for i := 0; i < 15; i++ {
		_, err := store.Append(context.Background(), "user-1", "", fmt.Sprintf("site %d", i), insight.Turn{})
		require.NoError(t, err)
	}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/chats?skip=0&limit=10", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page1 chatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page1))
	assert.Len(t, page1.Chats, 10)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/v1/chats?skip=10&limit=10", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page2 chatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page2))
	assert.Len(t, page2.Chats, 5)

	// Another owner sees nothing.
	rec = doJSON(t, s.Handler(), http.MethodGet, "/v1/chats", "user-9", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var empty chatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Empty(t, empty.Chats)
}

func TestGetChat(t *testing.T) {
	s, store := newMemoryServer(stubOracle{narrative: "x"})
	id, err := store.Append(context.Background(), "user-1", "", "t",
		insight.Turn{Prompt: "p", Recommendation: "r"})
	require.NoError(t, err)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/chats/"+id, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conv insight.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, id, conv.ID)
	assert.Len(t, conv.Turns, 1)

	rec = doJSON(t, s.Handler(), http.MethodGet, "/v1/chats/"+id, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteChat(t *testing.T) {
	s, store := newMemoryServer(stubOracle{narrative: "x"})
	id, err := store.Append(context.Background(), "user-1", "", "t", insight.Turn{})
	require.NoError(t, err)

	rec := doJSON(t, s.Handler(), http.MethodDelete, "/v1/chats/"+id, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodDelete, "/v1/chats/"+id, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s.Handler(), http.MethodDelete, "/v1/chats/"+id, "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIKeyGate(t *testing.T) {
	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	clock := &tickingClock{now: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	store := memorystore.New(&seqIDGen{}, clock)
	s := newTestServer(stubOracle{narrative: "x"}, store, cfg)

	req := httptest.NewRequest(http.MethodGet, "/v1/chats", nil)
	req.Header.Set(OwnerHeader, "user-1")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newMemoryServer(stubOracle{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doJSON(t, s.Handler(), http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

type stubSubscriber struct{ ch chan notify.TurnEvent }

func (s stubSubscriber) Subscribe(string) (<-chan notify.TurnEvent, func()) {
	return s.ch, func() {}
}

func TestChatEventsReturnsPendingEvent(t *testing.T) {
	ch := make(chan notify.TurnEvent, 1)
	ch <- notify.TurnEvent{
		Owner:          "alice",
		ConversationID: "conv-0001",
		Title:          "example.com",
		At:             time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	store := memorystore.New(&seqIDGen{}, &tickingClock{now: time.Now()})
	s := newTestServer(stubOracle{}, store, config.Config{})
	s.subs = stubSubscriber{ch: ch}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/chats/events", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var evt notify.TurnEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evt))
	assert.Equal(t, "conv-0001", evt.ConversationID)
}

func TestChatEventsUnavailableAfterSinkClose(t *testing.T) {
	ch := make(chan notify.TurnEvent)
	close(ch)
	store := memorystore.New(&seqIDGen{}, &tickingClock{now: time.Now()})
	s := newTestServer(stubOracle{}, store, config.Config{})
	s.subs = stubSubscriber{ch: ch}

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/chats/events", "alice", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatEventsUnavailableWithoutSubscriber(t *testing.T) {
	store := memorystore.New(&seqIDGen{}, &tickingClock{now: time.Now()})
	s := newTestServer(stubOracle{}, store, config.Config{})
	s.subs = nil

	rec := doJSON(t, s.Handler(), http.MethodGet, "/v1/chats/events", "alice", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
