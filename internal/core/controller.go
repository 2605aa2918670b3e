package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const (
	// MinVolume is the lowest accepted volume level
	MinVolume = 0
	// MaxVolume is the highest accepted volume level
	MaxVolume = 100
)

// ErrNoCurrentTrack reports a pause/resume command issued with nothing loaded.
var ErrNoCurrentTrack = errors.New("no current track loaded")

// ErrDeviceNotReady reports a play command issued before the device registered.
var ErrDeviceNotReady = errors.New("playback device not ready")

type Phase int

const (
	// PhaseDisconnected indicates no registered playback device
	PhaseDisconnected Phase = iota
	// PhaseIdle indicates a ready device with no track loaded
	PhaseIdle
	// PhaseLoaded indicates a track is loaded, paused or playing
	PhaseLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseIdle:
		return "idle"
	case PhaseLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Controller owns the playback session state and reconciles user commands
// against the device binder's push stream. Pushed state always wins: a
// state_changed event replaces current-track and is-playing wholesale, no
// matter what command is in flight.
type Controller struct {
	device    Device
	transport Transport
	logger    *zap.Logger

	mu       sync.RWMutex
	deviceID string
	state    PlaybackState

	onError func(kind ErrorKind, message string)
	onEvent func(ev DeviceEvent)
}

func NewController(device Device, transport Transport, initialVolume int, logger *zap.Logger) *Controller {
	return &Controller{
		device:    device,
		transport: transport,
		logger:    logger,
		state: PlaybackState{
			Volume: clampVolume(initialVolume),
		},
	}
}

// SetErrorHandler installs a callback for non-fatal device error reports.
// Error events never transition the state machine.
func (c *Controller) SetErrorHandler(fn func(kind ErrorKind, message string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = fn
}

// SetEventObserver installs a callback invoked after every binder event is
// applied, with the machine already in its new state.
func (c *Controller) SetEventObserver(fn func(ev DeviceEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = fn
}

// Run pumps binder events until the context is cancelled or the event
// channel closes.
func (c *Controller) Run(ctx context.Context) error {
	events := c.device.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				c.logger.Info("Device event stream closed")
				return nil
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleEvent applies a single binder event. Only ready, not_ready and
// state_changed transition the machine; errors are reported and dropped.
func (c *Controller) HandleEvent(ev DeviceEvent) {
	// A state push without a payload is dropped before it can be observed.
	if ev.Type == EventStateChanged && ev.State == nil {
		return
	}

	c.mu.RLock()
	observer := c.onEvent
	c.mu.RUnlock()
	if observer != nil {
		defer observer(ev)
	}

	switch ev.Type {
	case EventReady:
		c.mu.Lock()
		c.deviceID = ev.DeviceID
		c.state.DeviceReady = true
		c.mu.Unlock()
		c.logger.Info("Playback device ready", zap.String("deviceID", ev.DeviceID))

	case EventNotReady:
		c.mu.Lock()
		c.deviceID = ""
		c.state.DeviceReady = false
		c.state.CurrentTrack = nil
		c.state.Playing = false
		c.mu.Unlock()
		c.logger.Warn("Playback device went offline", zap.String("deviceID", ev.DeviceID))

	case EventStateChanged:
		c.mu.Lock()
		c.state = applyRemoteState(c.state, *ev.State)
		c.mu.Unlock()
		c.logger.Debug("Applied player state push",
			zap.Bool("playing", !ev.State.Paused),
			zap.Bool("hasTrack", ev.State.Track != nil))

	case EventError:
		c.logger.Warn("Device error reported",
			zap.String("kind", ev.ErrKind.String()),
			zap.String("message", ev.Message))
		c.mu.RLock()
		handler := c.onError
		c.mu.RUnlock()
		if handler != nil {
			handler(ev.ErrKind, ev.Message)
		}
	}
}

// applyRemoteState replaces local playback state from a push wholesale.
// No field is carried over from the previous state except device readiness
// and, when the push did not report it, volume. A push without a track
// forces is-playing false regardless of the paused flag.
func applyRemoteState(current PlaybackState, pushed RemoteState) PlaybackState {
	next := PlaybackState{
		DeviceReady: current.DeviceReady,
		Volume:      current.Volume,
	}

	if pushed.Volume >= MinVolume {
		next.Volume = clampVolume(pushed.Volume)
	}

	if pushed.Track == nil {
		return next
	}

	track := *pushed.Track
	next.CurrentTrack = &track
	next.Playing = !pushed.Paused
	return next
}

// State returns a copy of the current playback state.
func (c *Controller) State() PlaybackState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state := c.state
	if state.CurrentTrack != nil {
		track := *state.CurrentTrack
		state.CurrentTrack = &track
	}
	return state
}

func (c *Controller) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case !c.state.DeviceReady:
		return PhaseDisconnected
	case c.state.CurrentTrack == nil:
		return PhaseIdle
	default:
		return PhaseLoaded
	}
}

func (c *Controller) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceID
}

// Play starts playback of the given URI on the bound device. Invalid before
// the device is ready. A transport failure is returned to the caller but
// leaves local state untouched; the next push is the source of truth.
func (c *Controller) Play(ctx context.Context, uri string) error {
	c.mu.RLock()
	ready := c.state.DeviceReady
	deviceID := c.deviceID
	c.mu.RUnlock()

	if !ready || deviceID == "" {
		return ErrDeviceNotReady
	}

	if err := c.transport.PlayOnDevice(ctx, deviceID, []string{uri}); err != nil {
		c.logger.Warn("Play command failed",
			zap.String("uri", uri),
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return fmt.Errorf("play command failed: %w", err)
	}

	c.logger.Info("Play command issued",
		zap.String("uri", uri),
		zap.String("deviceID", deviceID))
	return nil
}

// TogglePlay pauses or resumes the current track. Without a loaded track
// this is a reported no-op.
func (c *Controller) TogglePlay(ctx context.Context) error {
	c.mu.RLock()
	hasTrack := c.state.CurrentTrack != nil
	c.mu.RUnlock()

	if !hasTrack {
		c.logger.Debug("Toggle play ignored, nothing loaded")
		return ErrNoCurrentTrack
	}

	return c.device.TogglePlay(ctx)
}

// Next skips forward. Queue semantics belong to the device, so the command
// is forwarded unconditionally.
func (c *Controller) Next(ctx context.Context) error {
	return c.device.NextTrack(ctx)
}

// Previous skips backward, forwarded unconditionally like Next.
func (c *Controller) Previous(ctx context.Context) error {
	return c.device.PreviousTrack(ctx)
}

// Seek moves the playhead of the current track. Without a loaded track
// there is nothing to seek in, so the command is a reported no-op. Negative
// positions snap to the start.
func (c *Controller) Seek(ctx context.Context, positionMs int) error {
	c.mu.RLock()
	hasTrack := c.state.CurrentTrack != nil
	c.mu.RUnlock()

	if !hasTrack {
		c.logger.Debug("Seek ignored, nothing loaded")
		return ErrNoCurrentTrack
	}

	if positionMs < 0 {
		positionMs = 0
	}
	return c.device.Seek(ctx, positionMs)
}

// SetVolume clamps the requested level to [0,100], updates local state
// optimistically and forwards the device's native 0.0-1.0 scale. Volume
// changes are not guaranteed to be echoed back on the push stream.
func (c *Controller) SetVolume(ctx context.Context, volume int) error {
	clamped := clampVolume(volume)

	c.mu.Lock()
	c.state.Volume = clamped
	c.mu.Unlock()

	if err := c.device.SetVolume(ctx, float64(clamped)/float64(MaxVolume)); err != nil {
		c.logger.Warn("Volume command failed", zap.Int("volume", clamped), zap.Error(err))
		return fmt.Errorf("set volume failed: %w", err)
	}

	return nil
}

func clampVolume(v int) int {
	if v < MinVolume {
		return MinVolume
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}
