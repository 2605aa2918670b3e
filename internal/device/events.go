package device

import (
	"strings"

	"thecrate/internal/core"
)

// Wire frames for the playback daemon's websocket event stream.

type eventFrame struct {
	Type     string      `json:"type"`
	DeviceID string      `json:"device_id,omitempty"`
	Message  string      `json:"message,omitempty"`
	State    *stateFrame `json:"state,omitempty"`
}

type stateFrame struct {
	Paused     bool        `json:"paused"`
	PositionMs int         `json:"position"`
	Volume     *int        `json:"volume,omitempty"`
	Track      *trackFrame `json:"track,omitempty"`
}

type trackFrame struct {
	ID      string        `json:"id"`
	URI     string        `json:"uri"`
	Name    string        `json:"name"`
	Artists []artistFrame `json:"artists"`
	Album   albumFrame    `json:"album"`
}

type artistFrame struct {
	Name string `json:"name"`
}

type albumFrame struct {
	Name   string       `json:"name"`
	Images []imageFrame `json:"images"`
}

type imageFrame struct {
	URL string `json:"url"`
}

// decodeEvent maps a wire frame to a binder event. Unknown frame types
// return ok=false and are dropped by the read pump.
func decodeEvent(frame *eventFrame) (core.DeviceEvent, bool) {
	switch frame.Type {
	case "ready":
		return core.DeviceEvent{Type: core.EventReady, DeviceID: frame.DeviceID}, true

	case "not_ready":
		return core.DeviceEvent{Type: core.EventNotReady, DeviceID: frame.DeviceID}, true

	case "player_state_changed":
		if frame.State == nil {
			return core.DeviceEvent{}, false
		}
		return core.DeviceEvent{
			Type:  core.EventStateChanged,
			State: decodeState(frame.State),
		}, true

	case "initialization_error":
		return errorEvent(core.ErrorInitialization, frame.Message), true
	case "authentication_error":
		return errorEvent(core.ErrorAuthentication, frame.Message), true
	case "account_error":
		return errorEvent(core.ErrorAccount, frame.Message), true
	case "playback_error":
		return errorEvent(core.ErrorPlayback, frame.Message), true

	default:
		return core.DeviceEvent{}, false
	}
}

func errorEvent(kind core.ErrorKind, message string) core.DeviceEvent {
	return core.DeviceEvent{Type: core.EventError, ErrKind: kind, Message: message}
}

func decodeState(frame *stateFrame) *core.RemoteState {
	state := &core.RemoteState{
		Paused:     frame.Paused,
		PositionMs: frame.PositionMs,
		Volume:     -1,
	}
	if frame.Volume != nil {
		state.Volume = *frame.Volume
	}
	if frame.Track != nil {
		state.Track = decodeTrack(frame.Track)
	}
	return state
}

func decodeTrack(frame *trackFrame) *core.Track {
	var artists []string
	for _, artist := range frame.Artists {
		if artist.Name != "" {
			artists = append(artists, artist.Name)
		}
	}

	track := &core.Track{
		ID:     frame.ID,
		Title:  frame.Name,
		Artist: strings.Join(artists, ", "),
		Album:  frame.Album.Name,
		URI:    frame.URI,
	}
	if len(frame.Album.Images) > 0 {
		track.AlbumArt = frame.Album.Images[0].URL
	}
	return track
}
