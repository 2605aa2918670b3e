package device

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// SpotifyTransport issues the start-playback command through the Web API,
// addressed to the registered device id. It is only used for "play this
// URI"; pause, skip and volume go through the local daemon.
type SpotifyTransport struct {
	client *spotify.Client
	logger *zap.Logger
}

func NewSpotifyTransport(ctx context.Context, tokens oauth2.TokenSource, logger *zap.Logger) *SpotifyTransport {
	return &SpotifyTransport{
		client: spotify.New(oauth2.NewClient(ctx, tokens)),
		logger: logger,
	}
}

// PlayOnDevice starts playback of the given URIs on the device.
func (t *SpotifyTransport) PlayOnDevice(ctx context.Context, deviceID string, uris []string) error {
	if deviceID == "" {
		return fmt.Errorf("no device id to address")
	}

	spotifyURIs := make([]spotify.URI, len(uris))
	for i, uri := range uris {
		spotifyURIs[i] = spotify.URI(uri)
	}

	id := spotify.ID(deviceID)
	err := t.client.PlayOpt(ctx, &spotify.PlayOptions{
		DeviceID: &id,
		URIs:     spotifyURIs,
	})
	if err != nil {
		return fmt.Errorf("failed to start playback on device %s: %w", deviceID, err)
	}

	t.logger.Debug("Started playback",
		zap.String("deviceID", deviceID),
		zap.Int("uris", len(uris)))
	return nil
}
