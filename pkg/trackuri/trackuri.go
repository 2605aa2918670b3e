// Package trackuri derives playable Spotify URIs from track URLs.
package trackuri

import (
	"regexp"
	"strings"
)

var (
	trackURIRegex = regexp.MustCompile(`spotify:track:([a-zA-Z0-9]+)`)
	trackURLRegex = regexp.MustCompile(`(?:https?://)?(?:open\.)?spotify\.com/track/([a-zA-Z0-9]+)`)
)

// TrackID extracts the canonical track id from a spotify:track: URI or an
// open.spotify.com track URL. Query strings and fragments are ignored.
// Unknown URL shapes return ok=false; the caller treats that as
// "cannot play", not as an error.
func TrackID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if matches := trackURIRegex.FindStringSubmatch(raw); len(matches) > 1 {
		return matches[1], true
	}

	if matches := trackURLRegex.FindStringSubmatch(raw); len(matches) > 1 {
		return matches[1], true
	}

	return "", false
}

// Derive returns the playable URI for a track, preferring a direct URI and
// falling back to deriving one from the web URL.
func Derive(uri, url string) (string, bool) {
	if strings.TrimSpace(uri) != "" {
		return strings.TrimSpace(uri), true
	}

	id, ok := TrackID(url)
	if !ok {
		return "", false
	}
	return "spotify:track:" + id, true
}
