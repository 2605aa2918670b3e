package core

import (
	"context"
	"time"
)

type Track struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Artist   string    `json:"artist"`
	Album    string    `json:"album,omitempty"`
	AlbumArt string    `json:"album_cover,omitempty"`
	URI      string    `json:"spotify_uri,omitempty"`
	URL      string    `json:"spotify_url,omitempty"`
	Grade    string    `json:"sample_grade,omitempty"`
	SavedAt  time.Time `json:"savedAt,omitempty"`
}

type Playlist struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Tracks      []Track   `json:"tracks"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LibraryRecord is the unit of persistence: the whole record is written on
// every mutation, never a partial slice of it.
type LibraryRecord struct {
	Tracks      []Track    `json:"tracks"`
	Playlists   []Playlist `json:"playlists"`
	LastUpdated time.Time  `json:"lastUpdated"`
}

type PlaybackState struct {
	CurrentTrack *Track
	Playing      bool
	Volume       int
	DeviceReady  bool
}

type SearchMetadata struct {
	TotalFound  int
	QueriesUsed []string
	Approach    string
	IsRefresh   bool
	RefreshSeed int64
}

type EventType int

const (
	// EventReady indicates the playback device registered and is addressable
	EventReady EventType = iota
	// EventNotReady indicates the playback device went offline
	EventNotReady
	// EventStateChanged carries an authoritative player state push
	EventStateChanged
	// EventError carries a non-fatal device error report
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventReady:
		return "ready"
	case EventNotReady:
		return "not_ready"
	case EventStateChanged:
		return "state_changed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

type ErrorKind int

const (
	// ErrorInitialization indicates the device runtime failed to start
	ErrorInitialization ErrorKind = iota
	// ErrorAuthentication indicates the device could not authenticate
	ErrorAuthentication
	// ErrorAccount indicates the account cannot use the playback device
	ErrorAccount
	// ErrorPlayback indicates a playback operation failed on the device
	ErrorPlayback
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorInitialization:
		return "initialization"
	case ErrorAuthentication:
		return "authentication"
	case ErrorAccount:
		return "account"
	case ErrorPlayback:
		return "playback"
	default:
		return "unknown"
	}
}

// RemoteState is a player state push from the device stream. It is
// authoritative: the controller replaces its local state wholesale from it.
type RemoteState struct {
	Track      *Track
	Paused     bool
	PositionMs int
	Volume     int // 0-100, or negative when the push did not report volume
}

type DeviceEvent struct {
	Type     EventType
	DeviceID string
	State    *RemoteState
	ErrKind  ErrorKind
	Message  string
}

type Device interface {
	Initialize(ctx context.Context) error
	Events() <-chan DeviceEvent
	TogglePlay(ctx context.Context) error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error
	SetVolume(ctx context.Context, level float64) error
	Seek(ctx context.Context, positionMs int) error
	Teardown() error
}

// Transport issues the start-playback command addressed to a specific
// registered device id.
type Transport interface {
	PlayOnDevice(ctx context.Context, deviceID string, uris []string) error
}

type RecommendResult struct {
	Tracks []Track
	Meta   *SearchMetadata // nil for bare-array responses
}

type Recommender interface {
	Recommend(ctx context.Context, prompt string, refreshSeed int64) (*RecommendResult, error)
}

type Library interface {
	Load(ctx context.Context, userID string) error
	AddTrack(ctx context.Context, track Track) error
	RemoveTrack(ctx context.Context, trackID string) error
	IsSaved(trackID string) bool
	SavedTracks() []Track
	Playlists() []Playlist
	CreatePlaylist(ctx context.Context, name string) (Playlist, error)
	Reset()
}
