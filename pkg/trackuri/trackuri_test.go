package trackuri

import (
	"testing"
)

func TestTrackID(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		wantID string
		wantOK bool
	}{
		{"plain URL", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"URL with query", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"URL without scheme", "open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"URI", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "4uLU6hMCjMI75M1A2tKUQC", true},
		{"whitespace padded", "  spotify:track:abc123  ", "abc123", true},
		{"album URL", "https://open.spotify.com/album/abc123", "", false},
		{"non-spotify URL", "https://example.com/track/abc123", "", false},
		{"empty", "", "", false},
		{"garbage", "not a url at all", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := TrackID(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("TrackID(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if id != tt.wantID {
				t.Errorf("TrackID(%q) = %q, want %q", tt.input, id, tt.wantID)
			}
		})
	}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		url     string
		wantURI string
		wantOK  bool
	}{
		{"direct URI wins", "spotify:track:direct1", "https://open.spotify.com/track/other2", "spotify:track:direct1", true},
		{"derived from URL", "", "https://open.spotify.com/track/abc123?si=x", "spotify:track:abc123", true},
		{"nothing derivable", "", "https://example.com/song/1", "", false},
		{"both empty", "", "", "", false},
		{"whitespace URI falls back", "   ", "https://open.spotify.com/track/abc123", "spotify:track:abc123", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, ok := Derive(tt.uri, tt.url)
			if ok != tt.wantOK {
				t.Fatalf("Derive(%q, %q) ok = %v, want %v", tt.uri, tt.url, ok, tt.wantOK)
			}
			if uri != tt.wantURI {
				t.Errorf("Derive(%q, %q) = %q, want %q", tt.uri, tt.url, uri, tt.wantURI)
			}
		})
	}
}
