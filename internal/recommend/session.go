package recommend

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"thecrate/internal/core"
	"thecrate/pkg/fuzzy"
	"thecrate/pkg/trackuri"
)

// ErrEmptyQuery reports a search with a blank or whitespace-only prompt.
var ErrEmptyQuery = errors.New("empty search query")

// ErrNothingToRefresh reports a refresh issued before any results exist.
var ErrNothingToRefresh = errors.New("nothing to refresh")

// Session owns one search's query, result set and metadata. A fresh search
// replaces the session state wholesale; a refresh mutates it in place once
// the response resolves. Racing searches are allowed: the last response to
// resolve wins by overwriting, which is acceptable because the next
// response re-derives everything.
type Session struct {
	client     core.Recommender
	normalizer *fuzzy.Normalizer
	logger     *zap.Logger

	mu       sync.RWMutex
	query    string
	results  []core.Track
	meta     *core.SearchMetadata
	lastSeed int64
}

func NewSession(client core.Recommender, logger *zap.Logger) *Session {
	return &Session{
		client:     client,
		normalizer: fuzzy.NewNormalizer(),
		logger:     logger,
	}
}

// Search runs a fresh query. Blank prompts are rejected without a request.
// The current result set is cleared immediately so stale results are never
// shown under a new query; the response then replaces results and metadata
// atomically. Service errors leave the (already cleared) state as is.
func (s *Session) Search(ctx context.Context, query string) error {
	prompt := s.normalizer.NormalizePrompt(query)
	if prompt == "" {
		return ErrEmptyQuery
	}

	s.mu.Lock()
	s.query = prompt
	s.results = nil
	s.meta = nil
	s.lastSeed = 0
	s.mu.Unlock()

	result, err := s.client.Recommend(ctx, prompt, 0)
	if err != nil {
		s.logger.Warn("Search failed", zap.String("prompt", prompt), zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.results = result.Tracks
	s.meta = result.Meta
	if result.Meta != nil {
		s.lastSeed = result.Meta.RefreshSeed
	}
	s.mu.Unlock()

	s.logger.Info("Search resolved",
		zap.String("prompt", prompt),
		zap.Int("results", len(result.Tracks)))
	return nil
}

// Refresh re-runs the current query with a freshness seed. It is a no-op
// without existing results. The previous result set stays visible while the
// request is in flight, and whatever the service returns is authoritative,
// including a set identical to the previous one.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	prompt := s.query
	hasResults := len(s.results) > 0
	lastSeed := s.lastSeed
	s.mu.RUnlock()

	if !hasResults {
		return ErrNothingToRefresh
	}

	// Best-effort distinct seed. Rapid refreshes within the same
	// millisecond still get a strictly increasing value.
	seed := time.Now().UnixMilli()
	if seed <= lastSeed {
		seed = lastSeed + 1
	}

	result, err := s.client.Recommend(ctx, prompt, seed)
	if err != nil {
		s.logger.Warn("Refresh failed, keeping previous results",
			zap.String("prompt", prompt),
			zap.Int64("seed", seed),
			zap.Error(err))
		return err
	}

	s.mu.Lock()
	s.results = result.Tracks
	s.meta = result.Meta
	s.lastSeed = seed
	if result.Meta != nil && result.Meta.RefreshSeed != 0 {
		s.lastSeed = result.Meta.RefreshSeed
	}
	s.mu.Unlock()

	s.logger.Info("Refresh resolved",
		zap.String("prompt", prompt),
		zap.Int64("seed", seed),
		zap.Int("results", len(result.Tracks)))
	return nil
}

// Query returns the normalized prompt of the current search.
func (s *Session) Query() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Results returns a copy of the current result set in relevance order.
func (s *Session) Results() []core.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]core.Track, len(s.results))
	copy(results, s.results)
	return results
}

// Metadata returns a copy of the current search metadata, or nil when the
// last response was a bare track array.
func (s *Session) Metadata() *core.SearchMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.meta == nil {
		return nil
	}
	meta := *s.meta
	return &meta
}

// PlayableURI resolves the URI to start playback for a track, deriving it
// from the track's web URL when no direct URI is present. A track with
// nothing derivable is not playable; that is a terminal no-op for play,
// not an error.
func PlayableURI(track core.Track) (string, bool) {
	return trackuri.Derive(track.URI, track.URL)
}
