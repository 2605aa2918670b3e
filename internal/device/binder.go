// Package device binds the local playback daemon: it registers the player,
// relays its push event stream and forwards native transport commands.
package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"thecrate/internal/core"
)

const eventBufferSize = 32

// TokenFunc supplies the current access token. The binder re-pulls it on
// every request rather than holding a snapshot, since tokens may rotate.
type TokenFunc func() string

type Binder struct {
	config *core.DeviceConfig
	token  TokenFunc
	logger *zap.Logger
	http   *http.Client

	initOnce sync.Once

	mu       sync.Mutex
	conn     *websocket.Conn
	torndown bool

	events chan core.DeviceEvent
}

func NewBinder(config *core.DeviceConfig, token TokenFunc, logger *zap.Logger) *Binder {
	return &Binder{
		config: config,
		token:  token,
		logger: logger,
		http:   &http.Client{Timeout: config.CmdTimeout},
		events: make(chan core.DeviceEvent, eventBufferSize),
	}
}

// Initialize connects to the playback daemon exactly once per process
// lifetime. Without a token it is a silent no-op: no device, no error.
// There is no automatic retry at this layer.
func (b *Binder) Initialize(ctx context.Context) error {
	var err error
	b.initOnce.Do(func() {
		err = b.connect(ctx)
	})
	return err
}

func (b *Binder) connect(ctx context.Context) error {
	if b.token() == "" {
		b.logger.Info("No access token available, skipping device registration")
		return nil
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, b.config.EventsURL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		b.emit(core.DeviceEvent{
			Type:    core.EventError,
			ErrKind: core.ErrorInitialization,
			Message: err.Error(),
		})
		return fmt.Errorf("dialing device event stream: %w", err)
	}

	register := map[string]any{
		"name":   b.config.Name,
		"volume": float64(b.config.Volume) / float64(core.MaxVolume),
	}
	if err := conn.WriteJSON(register); err != nil {
		conn.Close()
		return fmt.Errorf("registering player: %w", err)
	}

	b.mu.Lock()
	if b.torndown {
		b.mu.Unlock()
		conn.Close()
		return nil
	}
	b.conn = conn
	b.mu.Unlock()

	b.logger.Info("Connected to playback daemon",
		zap.String("eventsURL", b.config.EventsURL),
		zap.String("player", b.config.Name))

	go b.readPump(conn)
	return nil
}

// readPump decodes event frames until the connection drops. The device is
// gone at that point, whether the daemon died or Teardown closed the
// connection, so a final not_ready is emitted before the event channel
// closes. The conn is passed in rather than re-read from the struct, so
// Teardown can release the field without racing the pump.
func (b *Binder) readPump(conn *websocket.Conn) {
	defer func() {
		b.emit(core.DeviceEvent{Type: core.EventNotReady})
		close(b.events)
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			b.logger.Debug("Device event stream closed", zap.Error(err))
			return
		}

		var frame eventFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			b.logger.Debug("Dropping undecodable event frame", zap.Error(err))
			continue
		}

		ev, ok := decodeEvent(&frame)
		if !ok {
			continue
		}
		b.emit(ev)
	}
}

func (b *Binder) emit(ev core.DeviceEvent) {
	select {
	case b.events <- ev:
	default:
		b.logger.Warn("Device event buffer full, dropping event",
			zap.Int("type", int(ev.Type)))
	}
}

func (b *Binder) Events() <-chan core.DeviceEvent {
	return b.events
}

func (b *Binder) TogglePlay(ctx context.Context) error {
	return b.postJSON(ctx, "/player/playpause", map[string]any{})
}

func (b *Binder) NextTrack(ctx context.Context) error {
	return b.postJSON(ctx, "/player/next", map[string]any{})
}

func (b *Binder) PreviousTrack(ctx context.Context) error {
	return b.postJSON(ctx, "/player/prev", map[string]any{})
}

// SetVolume forwards the daemon's native 0.0-1.0 volume scale.
func (b *Binder) SetVolume(ctx context.Context, level float64) error {
	return b.postJSON(ctx, "/player/volume", map[string]any{"volume": level})
}

func (b *Binder) Seek(ctx context.Context, positionMs int) error {
	return b.postJSON(ctx, "/player/seek", map[string]any{"position": positionMs})
}

// Teardown disconnects from the daemon. Safe to call even if connect never
// completed, and safe to call more than once.
func (b *Binder) Teardown() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.torndown = true
	if b.conn == nil {
		return nil
	}

	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *Binder) postJSON(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		b.config.DaemonURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.token())

	resp, err := b.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s returned %d: %s", path, resp.StatusCode, payload)
	}
	return nil
}
