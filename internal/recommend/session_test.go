package recommend

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"thecrate/internal/core"
)

type mockRecommender struct {
	calls     []int64
	prompts   []string
	result    *core.RecommendResult
	err       error
	onRequest func()
}

func (m *mockRecommender) Recommend(_ context.Context, prompt string, refreshSeed int64) (*core.RecommendResult, error) {
	m.calls = append(m.calls, refreshSeed)
	m.prompts = append(m.prompts, prompt)
	if m.onRequest != nil {
		m.onRequest()
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func tracks(ids ...string) []core.Track {
	out := make([]core.Track, len(ids))
	for i, id := range ids {
		out[i] = core.Track{ID: id, Title: "Track " + id}
	}
	return out
}

func TestSession_EmptyQueryRejectedWithoutRequest(t *testing.T) {
	mock := &mockRecommender{}
	session := NewSession(mock, zap.NewNop())

	for _, query := range []string{"", "   ", "\t\n"} {
		if err := session.Search(context.Background(), query); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Search(%q) = %v, want ErrEmptyQuery", query, err)
		}
	}
	if len(mock.calls) != 0 {
		t.Errorf("blank queries must not reach the service, got %d calls", len(mock.calls))
	}
}

func TestSession_SearchNormalizesPrompt(t *testing.T) {
	mock := &mockRecommender{result: &core.RecommendResult{Tracks: tracks("t1")}}
	session := NewSession(mock, zap.NewNop())

	if err := session.Search(context.Background(), "  Boom   BAP!!  "); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if mock.prompts[0] != "boom bap" {
		t.Errorf("sent prompt %q", mock.prompts[0])
	}
	if session.Query() != "boom bap" {
		t.Errorf("Query() = %q", session.Query())
	}
}

func TestSession_SearchThenRefreshReplacesWholesale(t *testing.T) {
	mock := &mockRecommender{result: &core.RecommendResult{
		Tracks: tracks("t1", "t2"),
		Meta:   &core.SearchMetadata{TotalFound: 2},
	}}
	session := NewSession(mock, zap.NewNop())

	if err := session.Search(context.Background(), "90s boom bap drums"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	got := session.Results()
	if len(got) != 2 || got[0].ID != "t1" || got[1].ID != "t2" {
		t.Fatalf("results after search: %+v", got)
	}
	if meta := session.Metadata(); meta == nil || meta.TotalFound != 2 {
		t.Fatalf("metadata after search: %+v", session.Metadata())
	}

	mock.result = &core.RecommendResult{
		Tracks: tracks("t2", "t1"),
		Meta:   &core.SearchMetadata{TotalFound: 2, IsRefresh: true},
	}
	if err := session.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	got = session.Results()
	if len(got) != 2 || got[0].ID != "t2" || got[1].ID != "t1" {
		t.Errorf("refresh must replace, not merge: %+v", got)
	}
	if meta := session.Metadata(); meta == nil || !meta.IsRefresh {
		t.Errorf("metadata after refresh: %+v", session.Metadata())
	}
	if len(mock.calls) != 2 || mock.calls[0] != 0 || mock.calls[1] == 0 {
		t.Errorf("seeds sent: %v, want fresh 0 then nonzero", mock.calls)
	}
}

func TestSession_FreshSearchClearsBeforeResponse(t *testing.T) {
	mock := &mockRecommender{result: &core.RecommendResult{Tracks: tracks("t1")}}
	session := NewSession(mock, zap.NewNop())
	if err := session.Search(context.Background(), "first"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	var inFlight []core.Track
	mock.onRequest = func() {
		if len(mock.calls) == 2 {
			inFlight = session.Results()
		}
	}
	mock.result = &core.RecommendResult{Tracks: tracks("t9")}
	if err := session.Search(context.Background(), "second"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(inFlight) != 0 {
		t.Errorf("old results still visible while new search in flight: %+v", inFlight)
	}
}

func TestSession_SearchErrorLeavesClearedState(t *testing.T) {
	mock := &mockRecommender{result: &core.RecommendResult{Tracks: tracks("t1")}}
	session := NewSession(mock, zap.NewNop())
	if err := session.Search(context.Background(), "first"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	mock.err = errors.New("service down")
	if err := session.Search(context.Background(), "second"); err == nil {
		t.Fatal("expected search error")
	}

	if got := session.Results(); len(got) != 0 {
		t.Errorf("failed fresh search must not restore old results: %+v", got)
	}
	if session.Query() != "second" {
		t.Errorf("Query() = %q, want the attempted query", session.Query())
	}
}

func TestSession_RefreshWithoutResultsIsRejected(t *testing.T) {
	mock := &mockRecommender{}
	session := NewSession(mock, zap.NewNop())

	if err := session.Refresh(context.Background()); !errors.Is(err, ErrNothingToRefresh) {
		t.Errorf("Refresh on empty session = %v, want ErrNothingToRefresh", err)
	}
	if len(mock.calls) != 0 {
		t.Error("refresh without results must not send a request")
	}

	// A search that resolved to zero tracks still has nothing to refresh.
	mock.result = &core.RecommendResult{Tracks: nil}
	if err := session.Search(context.Background(), "obscure"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	calls := len(mock.calls)
	if err := session.Refresh(context.Background()); !errors.Is(err, ErrNothingToRefresh) {
		t.Errorf("Refresh after empty result set = %v", err)
	}
	if len(mock.calls) != calls {
		t.Error("refresh after empty result set must not send a request")
	}
}

func TestSession_RefreshErrorKeepsPreviousResults(t *testing.T) {
	mock := &mockRecommender{result: &core.RecommendResult{
		Tracks: tracks("t1", "t2"),
		Meta:   &core.SearchMetadata{TotalFound: 2},
	}}
	session := NewSession(mock, zap.NewNop())
	if err := session.Search(context.Background(), "soul breaks"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	mock.err = errors.New("timeout")
	if err := session.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}

	if got := session.Results(); len(got) != 2 || got[0].ID != "t1" {
		t.Errorf("failed refresh must keep previous results: %+v", got)
	}
	if meta := session.Metadata(); meta == nil || meta.TotalFound != 2 {
		t.Errorf("failed refresh must keep previous metadata: %+v", session.Metadata())
	}
}

func TestSession_RefreshSeedsStrictlyIncrease(t *testing.T) {
	mock := &mockRecommender{result: &core.RecommendResult{Tracks: tracks("t1")}}
	session := NewSession(mock, zap.NewNop())
	if err := session.Search(context.Background(), "anything"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := session.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh %d failed: %v", i, err)
		}
	}

	seeds := mock.calls[1:]
	for i := 1; i < len(seeds); i++ {
		if seeds[i] <= seeds[i-1] {
			t.Fatalf("seed %d (%d) not greater than previous (%d)", i, seeds[i], seeds[i-1])
		}
	}
}

func TestSession_ResultsReturnsCopy(t *testing.T) {
	mock := &mockRecommender{result: &core.RecommendResult{Tracks: tracks("t1")}}
	session := NewSession(mock, zap.NewNop())
	if err := session.Search(context.Background(), "anything"); err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	session.Results()[0].ID = "mutated"
	if session.Results()[0].ID != "t1" {
		t.Error("caller mutation leaked into session state")
	}
}

func TestPlayableURI(t *testing.T) {
	uri, ok := PlayableURI(core.Track{URI: "spotify:track:abc123"})
	if !ok || uri != "spotify:track:abc123" {
		t.Errorf("direct URI: got %q, %v", uri, ok)
	}

	uri, ok = PlayableURI(core.Track{URL: "https://open.spotify.com/track/xyz789"})
	if !ok || uri != "spotify:track:xyz789" {
		t.Errorf("derived from URL: got %q, %v", uri, ok)
	}

	if _, ok := PlayableURI(core.Track{}); ok {
		t.Error("track without URI or URL must not be playable")
	}
}
