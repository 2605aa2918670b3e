package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"thecrate/internal/auth"
	"thecrate/internal/core"
	"thecrate/internal/library"
	"thecrate/internal/recommend"
)

type stubDevice struct {
	events     chan core.DeviceEvent
	volumeSets []float64
}

func (d *stubDevice) Initialize(context.Context) error    { return nil }
func (d *stubDevice) Events() <-chan core.DeviceEvent     { return d.events }
func (d *stubDevice) TogglePlay(context.Context) error    { return nil }
func (d *stubDevice) NextTrack(context.Context) error     { return nil }
func (d *stubDevice) PreviousTrack(context.Context) error { return nil }
func (d *stubDevice) Seek(context.Context, int) error     { return nil }
func (d *stubDevice) Teardown() error                     { return nil }
func (d *stubDevice) SetVolume(_ context.Context, level float64) error {
	d.volumeSets = append(d.volumeSets, level)
	return nil
}

type stubTransport struct {
	plays []string
	fail  error
}

func (t *stubTransport) PlayOnDevice(_ context.Context, deviceID string, uris []string) error {
	if t.fail != nil {
		return t.fail
	}
	t.plays = append(t.plays, fmt.Sprintf("%s:%v", deviceID, uris))
	return nil
}

type stubRecommender struct {
	result *core.RecommendResult
	err    error
}

func (r *stubRecommender) Recommend(context.Context, string, int64) (*core.RecommendResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

type testEnv struct {
	server     *httptest.Server
	controller *core.Controller
	library    *library.Store
	rec        *stubRecommender
	transport  *stubTransport
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	device := &stubDevice{events: make(chan core.DeviceEvent, 8)}
	transport := &stubTransport{}
	controller := core.NewController(device, transport, 50, logger)

	rec := &stubRecommender{result: &core.RecommendResult{Tracks: []core.Track{}}}
	search := recommend.NewSession(rec, logger)

	db, err := library.OpenDB(filepath.Join(t.TempDir(), "library.db"), 4)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := library.NewStore(db, &core.LibraryConfig{MaxTracks: 100, RecordCacheLen: 4}, logger)
	if err := store.Load(context.Background(), "user1"); err != nil {
		t.Fatalf("library Load failed: %v", err)
	}

	session := auth.NewSession(&core.SessionConfig{
		Path: filepath.Join(t.TempDir(), "session.json"),
	}, logger)

	metrics := NewMetrics(prometheus.NewRegistry())
	api := NewAPI(controller, search, store, session, []string{"jazz piano chords"}, metrics, logger)

	server := httptest.NewServer(setupRoutes(api))
	t.Cleanup(server.Close)

	return &testEnv{
		server:     server,
		controller: controller,
		library:    store,
		rec:        rec,
		transport:  transport,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response body: %v", err)
	}
	return out
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp := env.do(t, http.MethodGet, path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s returned %d", path, resp.StatusCode)
		}
	}
}

func TestSearchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.rec.result = &core.RecommendResult{
		Tracks: []core.Track{{ID: "t1", Title: "One"}},
		Meta:   &core.SearchMetadata{TotalFound: 1},
	}

	resp := env.do(t, http.MethodPost, "/api/search", searchRequest{Query: "jazz piano"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search returned %d", resp.StatusCode)
	}

	body := decodeBody[searchResponse](t, resp)
	if len(body.Tracks) != 1 || body.Tracks[0].ID != "t1" {
		t.Errorf("unexpected tracks %+v", body.Tracks)
	}
	if body.Metadata == nil || body.Metadata.TotalFound != 1 {
		t.Errorf("unexpected metadata %+v", body.Metadata)
	}
	if body.Tracks[0].Saved {
		t.Error("unsaved track reported as saved")
	}
}

func TestSearchEndpoint_ResolvesSaveIndicator(t *testing.T) {
	env := newTestEnv(t)
	env.rec.result = &core.RecommendResult{Tracks: []core.Track{{ID: "t1"}}}
	if err := env.library.AddTrack(context.Background(), core.Track{ID: "t1"}); err != nil {
		t.Fatalf("AddTrack failed: %v", err)
	}

	resp := env.do(t, http.MethodPost, "/api/search", searchRequest{Query: "anything"})
	body := decodeBody[searchResponse](t, resp)
	if !body.Tracks[0].Saved {
		t.Error("saved track should carry the save indicator")
	}
}

func TestSearchEndpoint_EmptyQuery(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/search", searchRequest{Query: "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty query returned %d, want 400", resp.StatusCode)
	}
}

func TestRefreshEndpoint_NothingToRefresh(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/refresh", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("refresh with no results returned %d, want 409", resp.StatusCode)
	}
}

func TestQuickSearches(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/quick-searches", nil)
	body := decodeBody[map[string][]string](t, resp)
	if len(body["queries"]) != 1 || body["queries"][0] != "jazz piano chords" {
		t.Errorf("unexpected quick searches %+v", body)
	}
}

func TestPlayEndpoint_DeviceNotReady(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/play", core.Track{ID: "t1", URI: "spotify:track:abc"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("play without device returned %d, want 409", resp.StatusCode)
	}
	if len(env.transport.plays) != 0 {
		t.Error("no transport command should have been issued")
	}
}

func TestPlayEndpoint_UnplayableTrackIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	env.controller.HandleEvent(core.DeviceEvent{Type: core.EventReady, DeviceID: "dev1"})

	resp := env.do(t, http.MethodPost, "/api/play", core.Track{ID: "t1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unplayable track returned %d, want 200", resp.StatusCode)
	}
	body := decodeBody[map[string]bool](t, resp)
	if body["played"] {
		t.Error("unplayable track must report played=false")
	}
	if len(env.transport.plays) != 0 {
		t.Error("no transport command should have been issued")
	}
}

func TestPlayEndpoint_PlaysOnBoundDevice(t *testing.T) {
	env := newTestEnv(t)
	env.controller.HandleEvent(core.DeviceEvent{Type: core.EventReady, DeviceID: "dev1"})

	resp := env.do(t, http.MethodPost, "/api/play",
		core.Track{ID: "t1", URL: "https://open.spotify.com/track/abc123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("play returned %d", resp.StatusCode)
	}
	if len(env.transport.plays) != 1 || env.transport.plays[0] != "dev1:[spotify:track:abc123]" {
		t.Errorf("transport commands: %v", env.transport.plays)
	}
}

func TestPauseEndpoint_NoCurrentTrack(t *testing.T) {
	env := newTestEnv(t)
	env.controller.HandleEvent(core.DeviceEvent{Type: core.EventReady, DeviceID: "dev1"})

	resp := env.do(t, http.MethodPost, "/api/pause", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("pause without track returned %d, want 409", resp.StatusCode)
	}
}

func TestSeekEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/seek", seekRequest{PositionMs: 1000})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("seek without track returned %d, want 409", resp.StatusCode)
	}

	env.controller.HandleEvent(core.DeviceEvent{Type: core.EventReady, DeviceID: "dev1"})
	env.controller.HandleEvent(core.DeviceEvent{Type: core.EventStateChanged, State: &core.RemoteState{
		Track:  &core.Track{ID: "t1"},
		Volume: -1,
	}})

	resp = env.do(t, http.MethodPost, "/api/seek", seekRequest{PositionMs: 1000})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("seek returned %d, want 204", resp.StatusCode)
	}
}

func TestVolumeEndpoint_ClampsAndReportsState(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/volume", volumeRequest{Volume: 150})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("volume returned %d", resp.StatusCode)
	}
	body := decodeBody[playerStateView](t, resp)
	if body.Volume != 100 {
		t.Errorf("volume = %d, want clamped 100", body.Volume)
	}
}

func TestPlayerEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/player", nil)
	body := decodeBody[playerStateView](t, resp)
	if body.DeviceReady || body.Playing || body.CurrentTrack != nil {
		t.Errorf("initial player state: %+v", body)
	}
	if body.Volume != 50 {
		t.Errorf("initial volume = %d", body.Volume)
	}
}

func TestLibraryEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/library/tracks", core.Track{ID: "t1", Title: "One"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add track returned %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/api/library", nil)
	body := decodeBody[libraryResponse](t, resp)
	if len(body.Tracks) != 1 || body.Tracks[0].ID != "t1" {
		t.Errorf("library tracks: %+v", body.Tracks)
	}

	resp = env.do(t, http.MethodDelete, "/api/library/tracks/t1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("remove track returned %d", resp.StatusCode)
	}

	// Removing again is still a success.
	resp = env.do(t, http.MethodDelete, "/api/library/tracks/t1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("second remove returned %d", resp.StatusCode)
	}
}

func TestCreatePlaylistEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/library/playlists", playlistRequest{Name: "  "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank playlist name returned %d, want 400", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/library/playlists", playlistRequest{Name: "Beats"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create playlist returned %d", resp.StatusCode)
	}
	playlist := decodeBody[core.Playlist](t, resp)
	if playlist.ID == "" || playlist.Name != "Beats" {
		t.Errorf("created playlist: %+v", playlist)
	}
}

func TestSessionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/session", nil)
	session := decodeBody[sessionResponse](t, resp)
	if session.Authenticated {
		t.Error("fresh env should be unauthenticated")
	}

	resp = env.do(t, http.MethodPost, "/api/session/callback",
		callbackRequest{URL: "http://localhost/cb?state=xyz"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("callback without token returned %d, want 400", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/api/session/logout", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("logout returned %d", resp.StatusCode)
	}
	if len(env.library.SavedTracks()) != 0 {
		t.Error("logout should reset the in-memory library")
	}
}

func TestCreateHTTPServer(t *testing.T) {
	config := &core.ServerConfig{
		Host:         "0.0.0.0",
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	server := createHTTPServer(config, http.NewServeMux())

	if server.Addr != "0.0.0.0:9090" {
		t.Errorf("Addr = %q", server.Addr)
	}
	if server.ReadTimeout != config.ReadTimeout || server.WriteTimeout != config.WriteTimeout {
		t.Error("timeouts not taken from config")
	}
}
