package audio

import (
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"

	errs "tonearm/pkg/errors"
)

// Sink renders pulled samples to an output device at real-time cadence.
// The device, not the caller, is the rate limiter: the transport hands a
// streamer to Play and the device goroutine drains it. Exactly one
// transport may hold a sink at a time.
type Sink interface {
	// Open acquires the device for the given format, bounded by timeout.
	// Expiry or refusal yields errs.ErrDeviceUnavailable.
	Open(format beep.Format, buffer, timeout time.Duration) error
	// Play starts rendering s. done is invoked exactly once if s drains
	// naturally; Clear prevents the callback.
	Play(s beep.Streamer, done func())
	// Pause suspends or resumes rendering without releasing the device.
	Pause(paused bool)
	// Clear drops the current streamer immediately, without draining.
	Clear()
	// Lock and Unlock guard access to a streamer the device is rendering.
	Lock()
	Unlock()
	// Close releases the device.
	Close() error
}

// SpeakerSink renders to the system default output device. The underlying
// speaker is package-global, so a process plays through at most one
// SpeakerSink; Open re-initializes the device for each track's format.
type SpeakerSink struct {
	volume float64
	open   bool
	ctrl   *beep.Ctrl
	vol    *effects.Volume
}

// NewSpeakerSink creates a sink with the given output volume in [0, 1].
func NewSpeakerSink(volume float64) *SpeakerSink {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	return &SpeakerSink{volume: volume}
}

// Open initializes the default device for format. The init call can hang on
// a wedged audio backend, so it runs under a timeout; on expiry the device
// is reported unavailable rather than blocking the transport forever.
func (k *SpeakerSink) Open(format beep.Format, buffer, timeout time.Duration) error {
	if buffer <= 0 {
		buffer = 100 * time.Millisecond
	}

	initDone := make(chan error, 1)
	go func() {
		initDone <- speaker.Init(format.SampleRate, format.SampleRate.N(buffer))
	}()

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-initDone:
		if err != nil {
			return errs.E("device open", "", fmt.Errorf("%w: %v", errs.ErrDeviceUnavailable, err))
		}
	case <-timer.C:
		return errs.E("device open", "",
			fmt.Errorf("%w: no response within %v", errs.ErrDeviceUnavailable, timeout))
	}

	k.open = true
	return nil
}

// Play wraps s in a pause control and a volume stage, then hands it to the
// device with a completion callback appended. The callback fires on the
// device goroutine only when s drains naturally.
func (k *SpeakerSink) Play(s beep.Streamer, done func()) {
	ctrl := &beep.Ctrl{Streamer: s}
	vol := &effects.Volume{
		Streamer: ctrl,
		Base:     2,
		Volume:   k.volume*2 - 1,
		Silent:   k.volume == 0,
	}

	speaker.Lock()
	k.ctrl = ctrl
	k.vol = vol
	speaker.Unlock()

	speaker.Play(beep.Seq(vol, beep.Callback(done)))
}

// Pause flips rendering without releasing the device.
func (k *SpeakerSink) Pause(paused bool) {
	speaker.Lock()
	if k.ctrl != nil {
		k.ctrl.Paused = paused
	}
	speaker.Unlock()
}

// Clear drops the current streamer. The done callback given to Play will
// not fire after Clear returns.
func (k *SpeakerSink) Clear() {
	speaker.Clear()
	speaker.Lock()
	k.ctrl = nil
	k.vol = nil
	speaker.Unlock()
}

// Lock takes the device lock so a rendered streamer can be inspected or
// seeked without racing the device goroutine.
func (k *SpeakerSink) Lock() {
	speaker.Lock()
}

// Unlock releases the device lock.
func (k *SpeakerSink) Unlock() {
	speaker.Unlock()
}

// Close stops rendering and marks the sink closed. beep keeps the device
// handle for the life of the process; the next Open re-initializes it.
func (k *SpeakerSink) Close() error {
	if !k.open {
		return nil
	}
	k.Clear()
	k.open = false
	return nil
}
