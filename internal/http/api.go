package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"thecrate/internal/auth"
	"thecrate/internal/core"
	"thecrate/internal/library"
	"thecrate/internal/recommend"
)

// API exposes the playback controller, search session and library over
// JSON. Handlers translate the error taxonomy to statuses; a failed
// request never mutates state beyond what the underlying operation
// already guarantees.
type API struct {
	controller *core.Controller
	search     *recommend.Session
	library    core.Library
	session    *auth.Session
	quick      []string
	metrics    *Metrics
	logger     *zap.Logger
}

func NewAPI(
	controller *core.Controller,
	search *recommend.Session,
	lib core.Library,
	session *auth.Session,
	quickSearches []string,
	metrics *Metrics,
	logger *zap.Logger,
) *API {
	return &API{
		controller: controller,
		search:     search,
		library:    lib,
		session:    session,
		quick:      quickSearches,
		metrics:    metrics,
		logger:     logger,
	}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/search", a.handleSearch)
	mux.HandleFunc("POST /api/refresh", a.handleRefresh)
	mux.HandleFunc("GET /api/quick-searches", a.handleQuickSearches)

	mux.HandleFunc("POST /api/play", a.handlePlay)
	mux.HandleFunc("POST /api/pause", a.handlePause)
	mux.HandleFunc("POST /api/next", a.handleNext)
	mux.HandleFunc("POST /api/previous", a.handlePrevious)
	mux.HandleFunc("POST /api/seek", a.handleSeek)
	mux.HandleFunc("POST /api/volume", a.handleVolume)
	mux.HandleFunc("GET /api/player", a.handlePlayer)

	mux.HandleFunc("GET /api/library", a.handleLibrary)
	mux.HandleFunc("POST /api/library/tracks", a.handleAddTrack)
	mux.HandleFunc("DELETE /api/library/tracks/{id}", a.handleRemoveTrack)
	mux.HandleFunc("POST /api/library/playlists", a.handleCreatePlaylist)

	mux.HandleFunc("GET /api/session", a.handleSession)
	mux.HandleFunc("POST /api/session/callback", a.handleCallback)
	mux.HandleFunc("POST /api/session/logout", a.handleLogout)
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Query    string              `json:"query"`
	Tracks   []trackView         `json:"tracks"`
	Metadata *searchMetadataView `json:"metadata,omitempty"`
}

type searchMetadataView struct {
	TotalFound  int      `json:"total_found"`
	QueriesUsed []string `json:"queries_used,omitempty"`
	Approach    string   `json:"approach,omitempty"`
	IsRefresh   bool     `json:"is_refresh"`
}

// trackView is the track as the API renders it, with the library save
// indicator resolved against the store.
type trackView struct {
	core.Track
	Saved bool `json:"saved"`
}

func (a *API) searchResults() searchResponse {
	tracks := a.search.Results()
	views := make([]trackView, len(tracks))
	for i, track := range tracks {
		views[i] = trackView{Track: track, Saved: a.library.IsSaved(track.ID)}
	}

	resp := searchResponse{Query: a.search.Query(), Tracks: views}
	if meta := a.search.Metadata(); meta != nil {
		resp.Metadata = &searchMetadataView{
			TotalFound:  meta.TotalFound,
			QueriesUsed: meta.QueriesUsed,
			Approach:    meta.Approach,
			IsRefresh:   meta.IsRefresh,
		}
	}
	return resp
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	start := time.Now()
	err := a.search.Search(r.Context(), req.Query)
	if err != nil {
		a.metrics.RecordSearch("fresh", "error", time.Since(start))
		switch {
		case errors.Is(err, recommend.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "query must not be empty")
		default:
			a.metrics.RecordError("search", "service")
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	a.metrics.RecordSearch("fresh", "ok", time.Since(start))
	writeJSON(w, http.StatusOK, a.searchResults())
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	err := a.search.Refresh(r.Context())
	if err != nil {
		a.metrics.RecordSearch("refresh", "error", time.Since(start))
		switch {
		case errors.Is(err, recommend.ErrNothingToRefresh):
			writeError(w, http.StatusConflict, "no results to refresh")
		default:
			a.metrics.RecordError("search", "service")
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	a.metrics.RecordSearch("refresh", "ok", time.Since(start))
	writeJSON(w, http.StatusOK, a.searchResults())
}

func (a *API) handleQuickSearches(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"queries": a.quick})
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	var track core.Track
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	uri, ok := recommend.PlayableURI(track)
	if !ok {
		// A track with no derivable URI cannot start playback. That is a
		// terminal no-op, not a failure.
		a.metrics.RecordPlayCommand("play", "unplayable")
		writeJSON(w, http.StatusOK, map[string]bool{"played": false})
		return
	}

	if err := a.controller.Play(r.Context(), uri); err != nil {
		a.metrics.RecordPlayCommand("play", "error")
		switch {
		case errors.Is(err, core.ErrDeviceNotReady):
			writeError(w, http.StatusConflict, "playback device not ready")
		default:
			a.metrics.RecordError("playback", "transport")
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	a.metrics.RecordPlayCommand("play", "ok")
	writeJSON(w, http.StatusOK, map[string]bool{"played": true})
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := a.controller.TogglePlay(r.Context()); err != nil {
		a.metrics.RecordPlayCommand("toggle", "error")
		switch {
		case errors.Is(err, core.ErrNoCurrentTrack):
			writeError(w, http.StatusConflict, "no current track")
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	a.metrics.RecordPlayCommand("toggle", "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	if err := a.controller.Next(r.Context()); err != nil {
		a.metrics.RecordPlayCommand("next", "error")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.metrics.RecordPlayCommand("next", "ok")
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handlePrevious(w http.ResponseWriter, r *http.Request) {
	if err := a.controller.Previous(r.Context()); err != nil {
		a.metrics.RecordPlayCommand("previous", "error")
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	a.metrics.RecordPlayCommand("previous", "ok")
	w.WriteHeader(http.StatusNoContent)
}

type seekRequest struct {
	PositionMs int `json:"position_ms"`
}

func (a *API) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := a.controller.Seek(r.Context(), req.PositionMs); err != nil {
		a.metrics.RecordPlayCommand("seek", "error")
		switch {
		case errors.Is(err, core.ErrNoCurrentTrack):
			writeError(w, http.StatusConflict, "no current track")
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	a.metrics.RecordPlayCommand("seek", "ok")
	w.WriteHeader(http.StatusNoContent)
}

type volumeRequest struct {
	Volume int `json:"volume"`
}

func (a *API) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	// The local value is applied optimistically even when the device
	// rejects the command, so the response reflects the new state either
	// way.
	err := a.controller.SetVolume(r.Context(), req.Volume)
	state := a.controller.State()
	a.metrics.SetVolume(state.Volume)

	if err != nil {
		a.metrics.RecordPlayCommand("volume", "error")
		a.logger.Warn("Volume command failed on device", zap.Error(err))
	} else {
		a.metrics.RecordPlayCommand("volume", "ok")
	}
	writeJSON(w, http.StatusOK, playerView(state))
}

type playerStateView struct {
	CurrentTrack *core.Track `json:"current_track"`
	Playing      bool        `json:"playing"`
	Volume       int         `json:"volume"`
	DeviceReady  bool        `json:"device_ready"`
}

func playerView(state core.PlaybackState) playerStateView {
	return playerStateView{
		CurrentTrack: state.CurrentTrack,
		Playing:      state.Playing,
		Volume:       state.Volume,
		DeviceReady:  state.DeviceReady,
	}
}

func (a *API) handlePlayer(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, playerView(a.controller.State()))
}

type libraryResponse struct {
	Tracks    []core.Track    `json:"tracks"`
	Playlists []core.Playlist `json:"playlists"`
}

func (a *API) handleLibrary(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, libraryResponse{
		Tracks:    a.library.SavedTracks(),
		Playlists: a.library.Playlists(),
	})
}

func (a *API) handleAddTrack(w http.ResponseWriter, r *http.Request) {
	var track core.Track
	if err := json.NewDecoder(r.Body).Decode(&track); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := a.library.AddTrack(r.Context(), track); err != nil {
		a.metrics.RecordLibraryMutation("add", "error")
		writeLibraryError(w, err)
		return
	}

	a.metrics.RecordLibraryMutation("add", "ok")
	a.metrics.SetLibrarySize(len(a.library.SavedTracks()))
	writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
}

func (a *API) handleRemoveTrack(w http.ResponseWriter, r *http.Request) {
	if err := a.library.RemoveTrack(r.Context(), r.PathValue("id")); err != nil {
		a.metrics.RecordLibraryMutation("remove", "error")
		writeLibraryError(w, err)
		return
	}

	a.metrics.RecordLibraryMutation("remove", "ok")
	a.metrics.SetLibrarySize(len(a.library.SavedTracks()))
	w.WriteHeader(http.StatusNoContent)
}

type playlistRequest struct {
	Name string `json:"name"`
}

func (a *API) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req playlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	playlist, err := a.library.CreatePlaylist(r.Context(), req.Name)
	if err != nil {
		a.metrics.RecordLibraryMutation("create_playlist", "error")
		switch {
		case errors.Is(err, library.ErrEmptyPlaylistName):
			writeError(w, http.StatusBadRequest, "playlist name must not be empty")
		default:
			writeLibraryError(w, err)
		}
		return
	}

	a.metrics.RecordLibraryMutation("create_playlist", "ok")
	writeJSON(w, http.StatusCreated, playlist)
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	Profile       *auth.Profile `json:"profile,omitempty"`
}

func (a *API) handleSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionResponse{
		Authenticated: a.session.Authenticated(),
		Profile:       a.session.Profile(),
	})
}

type callbackRequest struct {
	URL string `json:"url"`
}

type callbackResponse struct {
	URL           string        `json:"url"`
	Authenticated bool          `json:"authenticated"`
	Profile       *auth.Profile `json:"profile,omitempty"`
}

func (a *API) handleCallback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	stripped, found, err := a.session.ConsumeCallbackToken(req.URL)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusBadRequest, "callback URL carries no access token")
		return
	}

	profile, err := a.session.FetchProfile(r.Context())
	if err != nil {
		// The session already forced a logout; the library record must go
		// with it.
		a.library.Reset()
		a.metrics.RecordError("auth", "profile_fetch")
		writeError(w, http.StatusUnauthorized, "profile fetch rejected")
		return
	}

	if err := a.library.Load(r.Context(), profile.ID); err != nil {
		a.logger.Warn("Library load failed after login",
			zap.String("userID", profile.ID), zap.Error(err))
	}
	a.metrics.SetLibrarySize(len(a.library.SavedTracks()))

	writeJSON(w, http.StatusOK, callbackResponse{
		URL:           stripped,
		Authenticated: true,
		Profile:       profile,
	})
}

func (a *API) handleLogout(w http.ResponseWriter, _ *http.Request) {
	a.session.Logout()
	a.library.Reset()
	a.metrics.SetLibrarySize(0)
	w.WriteHeader(http.StatusNoContent)
}

func writeLibraryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, library.ErrNotLoaded):
		writeError(w, http.StatusUnauthorized, "no library loaded")
	case errors.Is(err, library.ErrLibraryFull):
		writeError(w, http.StatusConflict, "library track capacity reached")
	default:
		// Persistence failures keep the in-memory mutation; report them
		// without pretending the write landed.
		writeError(w, http.StatusInsufficientStorage, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
