// Package transport drives one track at a time through the decoder and the
// output sink: play, pause, resume, stop and seek, with position reporting
// and end-of-track detection.
//
// All session state is owned by a single actor goroutine. Commands are
// requests with reply channels, so callers always get a result, commands
// arriving while the transport is loading or seeking queue in FIFO order,
// and lifecycle events reach the coordinator in emission order. The audio
// device itself runs on the sink's goroutine and is never blocked by
// command handling or persistence.
package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/google/uuid"

	"tonearm/api"
	"tonearm/internal/audio"
	errs "tonearm/pkg/errors"
)

// snapshot publishes the actor's view of playback to concurrent readers.
type snapshot struct {
	mu  sync.RWMutex
	pos api.Position
}

func (s *snapshot) load() api.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pos
}

func (s *snapshot) store(pos api.Position) {
	s.mu.Lock()
	s.pos = pos
	s.mu.Unlock()
}

// Source is one decode session as the transport consumes it.
// *audio.Stream is the production implementation.
type Source interface {
	beep.Streamer
	Format() beep.Format
	Duration() time.Duration
	Position() time.Duration
	SeekTo(target time.Duration) (time.Duration, error)
	Close() error
}

// Opener negotiates a decoder for a path.
type Opener func(path string) (Source, error)

// DefaultOpener decodes through the audio package.
func DefaultOpener(path string) (Source, error) {
	return audio.Open(path)
}

// Options tune the transport's timing behavior.
type Options struct {
	// Tick is the position reporting interval.
	Tick time.Duration
	// DeviceTimeout bounds opening the output device.
	DeviceTimeout time.Duration
	// SpeakerBuffer is the device buffer length passed to the sink.
	SpeakerBuffer time.Duration
	// StallTimeout declares the device lost when the position stays frozen
	// this long while unpaused. Zero disables the watch.
	StallTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.Tick <= 0 {
		o.Tick = 500 * time.Millisecond
	}
	if o.DeviceTimeout <= 0 {
		o.DeviceTimeout = 5 * time.Second
	}
	if o.SpeakerBuffer <= 0 {
		o.SpeakerBuffer = 100 * time.Millisecond
	}
}

// ErrClosed is returned for commands issued after the transport shut down.
var ErrClosed = errors.New("transport closed")

type cmdKind int

const (
	cmdPlay cmdKind = iota
	cmdPause
	cmdResume
	cmdStop
	cmdSeek
)

type request struct {
	kind  cmdKind
	path  string
	seek  time.Duration
	reply chan result
}

type result struct {
	state  api.State
	actual time.Duration
	err    error
}

// session is the in-memory state of one loaded track. It never leaves the
// actor goroutine.
type session struct {
	id       string
	path     string
	src      Source
	duration time.Duration
	// done receives at most one value, sent by the sink's completion
	// callback on natural end of stream. Capacity 1 keeps the device
	// goroutine from ever blocking on it.
	done chan struct{}
}

// Transport is the playback state machine. Create with New, start the actor
// with Run, then issue commands from any goroutine.
type Transport struct {
	open Opener
	sink audio.Sink
	opts Options

	reqs   chan request
	events chan api.Event
	closed chan struct{}

	snap snapshot

	// Actor-owned fields; touched only inside Run.
	state       api.State
	sess        *session
	lastElapsed time.Duration
	stalledFor  time.Duration
}

// New creates a transport over the given decoder opener and sink.
func New(open Opener, sink audio.Sink, opts Options) *Transport {
	opts.withDefaults()
	return &Transport{
		open:   open,
		sink:   sink,
		opts:   opts,
		reqs:   make(chan request, 16),
		events: make(chan api.Event, 128),
		closed: make(chan struct{}),
	}
}

// Events returns the lifecycle event channel. Events arrive in emission
// order; the channel is closed when Run returns.
func (t *Transport) Events() <-chan api.Event {
	return t.events
}

// Run executes the actor loop until ctx is canceled. It must be called
// exactly once.
func (t *Transport) Run(ctx context.Context) {
	ticker := time.NewTicker(t.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.shutdown()
			return
		case req := <-t.reqs:
			req.reply <- t.handle(req)
		case <-t.sessionDone():
			t.finishSession()
		case <-ticker.C:
			t.tick()
		}
	}
}

// Play loads and plays path. If the same path is paused it resumes instead;
// any other active track is implicitly stopped first.
func (t *Transport) Play(ctx context.Context, path string) error {
	res := t.do(ctx, request{kind: cmdPlay, path: path})
	return res.err
}

// Pause suspends rendering. Pausing while already paused is a no-op.
func (t *Transport) Pause() error {
	return t.do(context.Background(), request{kind: cmdPause}).err
}

// Resume continues a paused track without reopening anything.
func (t *Transport) Resume() error {
	return t.do(context.Background(), request{kind: cmdResume}).err
}

// Stop ends the active session and releases the decoder and device.
// Stopping an idle transport is a no-op.
func (t *Transport) Stop() error {
	return t.do(context.Background(), request{kind: cmdStop}).err
}

// Seek moves playback to target and returns the position actually reached,
// which may be earlier for codecs without exact-sample seeking. On failure
// the state held before the seek is restored and playback is undisturbed.
func (t *Transport) Seek(target time.Duration) (time.Duration, error) {
	res := t.do(context.Background(), request{kind: cmdSeek, seek: target})
	return res.actual, res.err
}

// State returns the current transport state.
func (t *Transport) State() api.State {
	return t.snap.load().State
}

// Position returns a snapshot of playback progress. Elapsed is monotonic
// while playing, frozen while paused and transiently undefined during a
// seek.
func (t *Transport) Position() api.Position {
	return t.snap.load()
}

func (t *Transport) do(ctx context.Context, req request) result {
	req.reply = make(chan result, 1)
	select {
	case t.reqs <- req:
	case <-t.closed:
		return result{err: ErrClosed}
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
	select {
	case res := <-req.reply:
		return res
	case <-t.closed:
		return result{err: ErrClosed}
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
}

func (t *Transport) handle(req request) result {
	switch req.kind {
	case cmdPlay:
		return t.handlePlay(req.path)
	case cmdPause:
		return t.handlePause()
	case cmdResume:
		return t.handleResume()
	case cmdStop:
		return t.handleStop()
	case cmdSeek:
		return t.handleSeek(req.seek)
	}
	return result{err: fmt.Errorf("unknown command %d", req.kind)}
}

func (t *Transport) handlePlay(path string) result {
	if t.sess != nil && t.state == api.StatePaused && t.sess.path == path {
		return t.handleResume()
	}
	if t.sess != nil {
		// Explicit stop-then-play; the new track is never queued behind
		// the old one.
		t.teardown(api.EventStopped, nil)
	}

	t.setState(api.StateLoading)

	src, err := t.open(path)
	if err != nil {
		t.failLoad(path, err)
		return result{err: err}
	}
	if err := t.sink.Open(src.Format(), t.opts.SpeakerBuffer, t.opts.DeviceTimeout); err != nil {
		src.Close()
		t.failLoad(path, err)
		return result{err: err}
	}

	sess := &session{
		id:       uuid.NewString(),
		path:     path,
		src:      src,
		duration: src.Duration(),
		done:     make(chan struct{}, 1),
	}
	t.sess = sess
	t.lastElapsed = 0
	t.stalledFor = 0

	done := sess.done
	t.sink.Play(src, func() {
		select {
		case done <- struct{}{}:
		default:
		}
	})

	t.setState(api.StatePlaying)
	t.emit(api.Event{
		Type:     api.EventStarted,
		Session:  sess.id,
		Path:     sess.path,
		Duration: sess.duration,
		State:    api.StatePlaying,
	})
	return result{state: api.StatePlaying}
}

// failLoad reports a decoder or device failure for a track that never
// started, then settles back to idle.
func (t *Transport) failLoad(path string, cause error) {
	t.setState(api.StateError)
	t.emit(api.Event{
		Type:  api.EventFailed,
		Path:  path,
		State: api.StateError,
		Err:   cause,
	})
	t.setState(api.StateIdle)
}

func (t *Transport) handlePause() result {
	switch t.state {
	case api.StatePlaying:
		t.sink.Pause(true)
		t.setState(api.StatePaused)
		t.emitSessionEvent(api.EventPaused, t.position())
		return result{state: api.StatePaused}
	case api.StatePaused:
		return result{state: api.StatePaused}
	default:
		return result{err: errs.E("pause", "", fmt.Errorf("%w: %s", errs.ErrInvalidState, t.state))}
	}
}

func (t *Transport) handleResume() result {
	switch t.state {
	case api.StatePaused:
		t.sink.Pause(false)
		t.setState(api.StatePlaying)
		t.stalledFor = 0
		t.emitSessionEvent(api.EventResumed, t.position())
		return result{state: api.StatePlaying}
	case api.StatePlaying:
		return result{state: api.StatePlaying}
	default:
		return result{err: errs.E("resume", "", fmt.Errorf("%w: %s", errs.ErrInvalidState, t.state))}
	}
}

func (t *Transport) handleStop() result {
	if t.sess == nil {
		t.setState(api.StateIdle)
		return result{state: api.StateIdle}
	}
	t.teardown(api.EventStopped, nil)
	return result{state: api.StateIdle}
}

func (t *Transport) handleSeek(target time.Duration) result {
	if t.sess == nil || !t.state.Active() {
		return result{err: errs.E("seek", "", fmt.Errorf("%w: %s", errs.ErrInvalidState, t.state))}
	}

	prior := t.state
	t.setState(api.StateSeeking)

	t.sink.Lock()
	actual, err := t.sess.src.SeekTo(target)
	t.sink.Unlock()

	// The state held before seeking is restored whether or not the seek
	// landed; a failed seek must not disturb playback.
	t.setState(prior)
	if err != nil {
		return result{err: err}
	}

	t.lastElapsed = actual
	t.stalledFor = 0
	t.setElapsed(actual)
	t.emitSessionEvent(api.EventSeeked, actual)
	return result{state: prior, actual: actual}
}

// finishSession handles the sink's completion signal: either a natural end
// of stream or a decoder that died mid-track.
func (t *Transport) finishSession() {
	if t.sess == nil {
		return
	}
	if err := t.sess.src.Err(); err != nil {
		t.teardown(api.EventFailed, errs.E("decode", t.sess.path, fmt.Errorf("%w: %v", errs.ErrCorrupt, err)))
		return
	}
	t.teardown(api.EventFinished, nil)
}

// teardown ends the active session with the given terminal event, releasing
// the device and the decoder. Exactly one terminal event is emitted per
// session.
func (t *Transport) teardown(terminal api.EventType, cause error) {
	sess := t.sess
	if sess == nil {
		return
	}

	elapsed := t.position()
	if terminal == api.EventFinished {
		elapsed = sess.duration
	}

	t.sink.Clear()
	sess.src.Close()
	t.sess = nil

	var st api.State
	switch terminal {
	case api.EventFinished:
		st = api.StateFinished
	case api.EventFailed:
		st = api.StateError
	default:
		st = api.StateStopped
	}
	t.setState(st)
	t.emit(api.Event{
		Type:     terminal,
		Session:  sess.id,
		Path:     sess.path,
		Elapsed:  elapsed,
		Duration: sess.duration,
		State:    st,
		Err:      cause,
	})

	// Stopped, Finished and Error are transient; the transport settles to
	// idle once the event is reported.
	t.setState(api.StateIdle)
}

func (t *Transport) tick() {
	if t.state != api.StatePlaying || t.sess == nil {
		return
	}

	elapsed := t.position()
	t.setElapsed(elapsed)
	t.emitPosition(api.Event{
		Type:     api.EventPosition,
		Session:  t.sess.id,
		Path:     t.sess.path,
		Elapsed:  elapsed,
		Duration: t.sess.duration,
		State:    api.StatePlaying,
	})

	if t.opts.StallTimeout <= 0 {
		return
	}
	if elapsed == t.lastElapsed {
		t.stalledFor += t.opts.Tick
		if t.stalledFor >= t.opts.StallTimeout {
			t.teardown(api.EventFailed, errs.E("render", t.sess.path, errs.ErrDeviceLost))
		}
		return
	}
	t.lastElapsed = elapsed
	t.stalledFor = 0
}

// position reads the decode offset under the device lock; the device
// goroutine advances the same streamer concurrently.
func (t *Transport) position() time.Duration {
	if t.sess == nil {
		return 0
	}
	t.sink.Lock()
	defer t.sink.Unlock()
	return t.sess.src.Position()
}

func (t *Transport) shutdown() {
	if t.sess != nil {
		sess := t.sess
		elapsed := t.position()
		t.sink.Clear()
		sess.src.Close()
		t.sess = nil
		t.setState(api.StateStopped)
		// Best effort: the consumer may already be gone on shutdown.
		select {
		case t.events <- api.Event{
			Type:     api.EventStopped,
			Session:  sess.id,
			Path:     sess.path,
			Elapsed:  elapsed,
			Duration: sess.duration,
			State:    api.StateStopped,
			At:       time.Now(),
		}:
		default:
		}
	}
	t.setState(api.StateIdle)
	t.sink.Close()
	close(t.closed)
	close(t.events)
}

// emit delivers a lifecycle event. It may block briefly when the consumer
// lags; the device goroutine never runs through here, so audio rendering is
// unaffected.
func (t *Transport) emit(ev api.Event) {
	ev.At = time.Now()
	t.events <- ev
}

// emitPosition delivers a progress event, dropping it when the consumer is
// behind. Position updates are best effort by design.
func (t *Transport) emitPosition(ev api.Event) {
	ev.At = time.Now()
	select {
	case t.events <- ev:
	default:
	}
}

func (t *Transport) emitSessionEvent(typ api.EventType, elapsed time.Duration) {
	if t.sess == nil {
		return
	}
	t.emit(api.Event{
		Type:     typ,
		Session:  t.sess.id,
		Path:     t.sess.path,
		Elapsed:  elapsed,
		Duration: t.sess.duration,
		State:    t.state,
	})
}

func (t *Transport) setState(st api.State) {
	t.state = st
	if t.sess != nil {
		t.snap.store(api.Position{
			State:    st,
			Path:     t.sess.path,
			Elapsed:  t.snap.load().Elapsed,
			Duration: t.sess.duration,
		})
		return
	}
	t.snap.store(api.Position{State: st})
}

func (t *Transport) setElapsed(elapsed time.Duration) {
	pos := t.snap.load()
	pos.Elapsed = elapsed
	t.snap.store(pos)
}

// sessionDone returns the active session's completion channel, or a nil
// channel (never ready) when idle. Channels from torn-down sessions are
// dropped along with the session, so a late completion signal can never be
// mistaken for the current track ending.
func (t *Transport) sessionDone() <-chan struct{} {
	if t.sess == nil {
		return nil
	}
	return t.sess.done
}
