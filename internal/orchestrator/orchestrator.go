// Package orchestrator runs the improve and recommend flows, combining
// fetch, extraction, the recommendation oracle and conversation history.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/siteiq/siteiq/internal/insight"
	"github.com/siteiq/siteiq/internal/metrics"
	"github.com/siteiq/siteiq/internal/notify"
)

// Orchestrator wires the pipeline stages together. It holds no mutable
// state between requests; every call operates on its inputs and the
// owner-scoped store.
type Orchestrator struct {
	fetcher   insight.Fetcher
	extractor insight.Extractor
	oracle    insight.Oracle
	store     insight.ConversationStore
	clock     insight.Clock
	emitter   notify.Emitter
	logger    *zap.Logger
}

// New constructs an Orchestrator. A nil emitter disables turn events.
func New(
	fetcher insight.Fetcher,
	extractor insight.Extractor,
	oracle insight.Oracle,
	store insight.ConversationStore,
	clock insight.Clock,
	emitter notify.Emitter,
	logger *zap.Logger,
) *Orchestrator {
	if emitter == nil {
		emitter = notify.NopEmitter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		fetcher:   fetcher,
		extractor: extractor,
		oracle:    oracle,
		store:     store,
		clock:     clock,
		emitter:   emitter,
		logger:    logger,
	}
}

// Improve fetches req.WebsiteURL, fingerprints it and asks the oracle
// for an improvement analysis, appending the result to the owner's
// conversation history.
//
// Fetch failures are absorbed: the oracle is still called with an
// explicitly empty fingerprint. Oracle failures are fatal and surface
// as insight.ErrOracleUnavailable. When the oracle succeeds but the
// history write fails, the result is still returned alongside an error
// matching insight.ErrPersistenceFailed, with Saved set to false.
func (o *Orchestrator) Improve(ctx context.Context, ownerID string, req insight.ImproveRequest) (insight.ImproveResult, error) {
	fp := o.fingerprint(ctx, req.WebsiteURL)

	start := o.clock.Now()
	recommendation, err := o.oracle.Improve(ctx, fp, req.SEOFocused, req.PerformanceFocused)
	metrics.ObserveOracleCall("improve", err == nil, time.Since(start))
	if err != nil {
		return insight.ImproveResult{}, fmt.Errorf("improve analysis: %w", err)
	}

	turn := insight.Turn{
		Prompt:         req.WebsiteURL,
		Recommendation: recommendation,
		CreatedAt:      o.clock.Now(),
	}
	conversationID, err := o.store.Append(ctx, ownerID, req.ConversationID, titleForURL(req.WebsiteURL), turn)
	if err != nil {
		// Authorization rejections are not degraded persistence; they
		// surface as-is with no result.
		if errors.Is(err, insight.ErrForbidden) || errors.Is(err, insight.ErrNotFound) {
			return insight.ImproveResult{}, fmt.Errorf("append turn: %w", err)
		}
		o.logger.Error("conversation write failed",
			zap.String("owner", ownerID),
			zap.String("conversation_id", req.ConversationID),
			zap.Error(err),
		)
		result := insight.ImproveResult{
			ConversationID: req.ConversationID,
			Recommendation: recommendation,
			Saved:          false,
		}
		return result, fmt.Errorf("%w: %s", insight.ErrPersistenceFailed, err)
	}

	o.emitter.Emit(notify.TurnEvent{
		Owner:           ownerID,
		ConversationID:  conversationID,
		Title:           titleForURL(req.WebsiteURL),
		NewConversation: req.ConversationID == "",
		At:              o.clock.Now(),
	})
	return insight.ImproveResult{
		ConversationID: conversationID,
		Recommendation: recommendation,
		Saved:          true,
	}, nil
}

// Recommend asks the oracle for a structured stack breakdown. No fetch
// and no persistence are involved.
func (o *Orchestrator) Recommend(ctx context.Context, req insight.RecommendRequest) (insight.StackRecommendation, error) {
	start := o.clock.Now()
	rec, err := o.oracle.Recommend(ctx, req.UseCase, req.SEOFocused, req.PerformanceFocused)
	metrics.ObserveOracleCall("recommend", err == nil, time.Since(start))
	if err != nil {
		return insight.StackRecommendation{}, fmt.Errorf("stack recommendation: %w", err)
	}
	return rec, nil
}

// fingerprint fetches and extracts, absorbing any fetch failure into an
// empty fingerprint so the oracle can degrade gracefully on thin input.
func (o *Orchestrator) fingerprint(ctx context.Context, websiteURL string) insight.Fingerprint {
	start := time.Now()
	html, err := o.fetcher.Fetch(ctx, websiteURL)
	metrics.ObserveFetch(err == nil, time.Since(start))
	if err != nil {
		o.logger.Warn("fetch failed, proceeding with empty fingerprint",
			zap.String("url", websiteURL),
			zap.Error(err),
		)
		html = ""
	}
	return o.extractor.Extract(html)
}

// titleForURL derives a conversation title from the target's host.
func titleForURL(websiteURL string) string {
	u, err := url.Parse(websiteURL)
	if err != nil || u.Host == "" {
		return insight.TitleFallback
	}
	return u.Host
}
