// Package coordinator bridges transport lifecycle events to library updates
// and exposes the player's public command surface.
//
// Persistence runs on the coordinator's own goroutine, fed by the transport's
// event channel. A slow or locked database can therefore never stall audio
// rendering: the worst case is a delayed play count, and a track that
// finished playing has played whether or not the count was persisted.
package coordinator

import (
	"context"
	"errors"
	"time"

	"tonearm/api"
	"tonearm/internal/logger"
	errs "tonearm/pkg/errors"
	"tonearm/pkg/events"
)

// Player is the transport as the coordinator drives it.
// *transport.Transport is the production implementation.
type Player interface {
	Play(ctx context.Context, path string) error
	Pause() error
	Resume() error
	Stop() error
	Seek(target time.Duration) (time.Duration, error)
	State() api.State
	Position() api.Position
	Events() <-chan api.Event
}

// Tracker is the slice of the library store the coordinator persists through.
type Tracker interface {
	GetTrackByPath(ctx context.Context, path string) (api.Track, error)
	RecordPlay(ctx context.Context, id int64, at time.Time) error
	SetRating(ctx context.Context, id int64, rating int) error
}

// Options tune play tracking.
type Options struct {
	// PlayedThreshold is the fraction of a track's duration that counts a
	// stopped session as played anyway. Zero records natural completions
	// only.
	PlayedThreshold float64
	// StoreTimeout bounds each persistence call. Defaults to 5s.
	StoreTimeout time.Duration
}

// Coordinator owns the event pump between a Player and a Tracker.
type Coordinator struct {
	player  Player
	tracker Tracker
	bus     *events.Bus
	opts    Options

	stopped chan struct{}
}

// New wires a coordinator. Call Run to start the event pump.
func New(player Player, tracker Tracker, opts Options) *Coordinator {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Coordinator{
		player:  player,
		tracker: tracker,
		bus:     events.NewBus(),
		opts:    opts,
		stopped: make(chan struct{}),
	}
}

// Run pumps transport events until the player's event channel closes. It
// must be called exactly once, on its own goroutine.
func (c *Coordinator) Run() {
	defer close(c.stopped)
	defer c.bus.Close()

	for ev := range c.player.Events() {
		c.bus.Publish(ev)
		switch ev.Type {
		case api.EventFinished:
			c.trackPlay(ev)
		case api.EventStopped, api.EventFailed:
			if c.playedEnough(ev) {
				c.trackPlay(ev)
			}
		}
	}
}

// Wait blocks until Run has drained and shut down.
func (c *Coordinator) Wait() {
	<-c.stopped
}

// Subscribe returns a channel of transport events for observers such as the
// CLI progress display. Slow observers lose events, never block playback.
func (c *Coordinator) Subscribe(types ...api.EventType) <-chan api.Event {
	return c.bus.Subscribe(types...)
}

// Unsubscribe releases a Subscribe channel.
func (c *Coordinator) Unsubscribe(ch <-chan api.Event) {
	c.bus.Unsubscribe(ch)
}

// Play starts playback of path.
func (c *Coordinator) Play(ctx context.Context, path string) error {
	return c.player.Play(ctx, path)
}

// Pause suspends playback.
func (c *Coordinator) Pause() error {
	return c.player.Pause()
}

// Resume continues paused playback.
func (c *Coordinator) Resume() error {
	return c.player.Resume()
}

// Stop ends playback and releases the device.
func (c *Coordinator) Stop() error {
	return c.player.Stop()
}

// Seek moves playback to the given offset in seconds and returns the
// position actually reached.
func (c *Coordinator) Seek(seconds float64) (float64, error) {
	actual, err := c.player.Seek(time.Duration(seconds * float64(time.Second)))
	return actual.Seconds(), err
}

// State returns the current transport state.
func (c *Coordinator) State() api.State {
	return c.player.State()
}

// Position returns a snapshot of playback progress.
func (c *Coordinator) Position() api.Position {
	return c.player.Position()
}

// Rate stores a user rating. Unlike play tracking this is the operation's
// entire purpose, so store failures propagate to the caller.
func (c *Coordinator) Rate(ctx context.Context, trackID int64, rating int) error {
	return c.tracker.SetRating(ctx, trackID, rating)
}

// playedEnough reports whether a session that ended early still counts as a
// play under the configured threshold.
func (c *Coordinator) playedEnough(ev api.Event) bool {
	if c.opts.PlayedThreshold <= 0 || ev.Duration <= 0 {
		return false
	}
	return ev.Elapsed.Seconds()/ev.Duration.Seconds() >= c.opts.PlayedThreshold
}

// trackPlay persists one play for the session that ev ended. The transport
// emits exactly one terminal event per session, which makes this at most
// once per completion. Failures are retried once, then logged and dropped;
// they are never surfaced as playback errors.
func (c *Coordinator) trackPlay(ev api.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.StoreTimeout)
	defer cancel()

	track, err := c.tracker.GetTrackByPath(ctx, ev.Path)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// Playing files outside the library is fine; there is just
			// nothing to count against.
			logger.Debug("played track not in library", logger.String("path", ev.Path))
			return
		}
		logger.Warn("play lookup failed",
			logger.String("path", ev.Path), logger.ErrorField(err))
		return
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	if err := c.tracker.RecordPlay(ctx, track.ID, at); err != nil {
		if err = c.tracker.RecordPlay(ctx, track.ID, at); err != nil {
			logger.Warn("play not recorded",
				logger.String("path", ev.Path),
				logger.Int64("track", track.ID),
				logger.ErrorField(err))
			return
		}
	}
	logger.Debug("play recorded",
		logger.String("path", ev.Path), logger.Int64("track", track.ID))
}
