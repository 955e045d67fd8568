package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tonearm/api"
	errs "tonearm/pkg/errors"
)

// fakePlayer feeds scripted events through the coordinator's pump.
type fakePlayer struct {
	events chan api.Event
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan api.Event, 16)}
}

func (p *fakePlayer) Play(context.Context, string) error { return nil }
func (p *fakePlayer) Pause() error                       { return nil }
func (p *fakePlayer) Resume() error                      { return nil }
func (p *fakePlayer) Stop() error                        { return nil }
func (p *fakePlayer) Seek(target time.Duration) (time.Duration, error) {
	return target, nil
}
func (p *fakePlayer) State() api.State         { return api.StateIdle }
func (p *fakePlayer) Position() api.Position   { return api.Position{} }
func (p *fakePlayer) Events() <-chan api.Event { return p.events }

func (p *fakePlayer) emit(ev api.Event) { p.events <- ev }
func (p *fakePlayer) close()            { close(p.events) }

// fakeTracker counts persistence calls and injects failures.
type fakeTracker struct {
	mu         sync.Mutex
	tracks     map[string]int64
	plays      map[int64]int
	ratings    map[int64]int
	recordErrs []error // consumed one per RecordPlay call
}

func newFakeTracker(tracks map[string]int64) *fakeTracker {
	return &fakeTracker{
		tracks:  tracks,
		plays:   make(map[int64]int),
		ratings: make(map[int64]int),
	}
}

func (f *fakeTracker) GetTrackByPath(_ context.Context, path string) (api.Track, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tracks[path]
	if !ok {
		return api.Track{}, errs.E("get track", path, errs.ErrNotFound)
	}
	return api.Track{ID: id, Path: path}, nil
}

func (f *fakeTracker) RecordPlay(_ context.Context, id int64, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.recordErrs) > 0 {
		err := f.recordErrs[0]
		f.recordErrs = f.recordErrs[1:]
		if err != nil {
			return err
		}
	}
	f.plays[id]++
	return nil
}

func (f *fakeTracker) SetRating(_ context.Context, id int64, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rating < api.RatingMin || rating > api.RatingMax {
		return errs.E("set rating", "", errs.ErrOutOfRange)
	}
	f.ratings[id] = rating
	return nil
}

func (f *fakeTracker) playCount(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays[id]
}

func runCoordinator(t *testing.T, player *fakePlayer, tracker *fakeTracker, opts Options) *Coordinator {
	t.Helper()
	c := New(player, tracker, opts)
	go c.Run()
	t.Cleanup(func() {
		player.close()
		c.Wait()
	})
	return c
}

func finishedEvent(session, path string, dur time.Duration) api.Event {
	return api.Event{
		Type:     api.EventFinished,
		Session:  session,
		Path:     path,
		Elapsed:  dur,
		Duration: dur,
		State:    api.StateFinished,
		At:       time.Now(),
	}
}

func TestFinishedRecordsPlayOnce(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(map[string]int64{"/music/a.mp3": 1})
	c := runCoordinator(t, player, tracker, Options{})

	done := c.Subscribe(api.EventFinished)
	player.emit(finishedEvent("s1", "/music/a.mp3", 3*time.Minute))
	<-done

	waitFor(t, func() bool { return tracker.playCount(1) == 1 })
}

func TestTwoCompletionsRecordTwoPlays(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(map[string]int64{"/music/a.mp3": 1})
	c := runCoordinator(t, player, tracker, Options{})

	done := c.Subscribe(api.EventFinished)
	player.emit(finishedEvent("s1", "/music/a.mp3", 3*time.Minute))
	player.emit(finishedEvent("s2", "/music/a.mp3", 3*time.Minute))
	<-done
	<-done

	waitFor(t, func() bool { return tracker.playCount(1) == 2 })
	// And never more than two.
	time.Sleep(20 * time.Millisecond)
	if got := tracker.playCount(1); got != 2 {
		t.Errorf("play count = %d, want exactly 2", got)
	}
}

func TestStopBelowThresholdNotRecorded(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(map[string]int64{"/music/a.mp3": 1})
	c := runCoordinator(t, player, tracker, Options{PlayedThreshold: 0.5})

	done := c.Subscribe(api.EventStopped)
	player.emit(api.Event{
		Type:     api.EventStopped,
		Session:  "s1",
		Path:     "/music/a.mp3",
		Elapsed:  30 * time.Second,
		Duration: 3 * time.Minute,
		State:    api.StateStopped,
		At:       time.Now(),
	})
	<-done

	time.Sleep(20 * time.Millisecond)
	if got := tracker.playCount(1); got != 0 {
		t.Errorf("play count = %d, want 0 below threshold", got)
	}
}

func TestStopAboveThresholdRecorded(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(map[string]int64{"/music/a.mp3": 1})
	c := runCoordinator(t, player, tracker, Options{PlayedThreshold: 0.5})

	done := c.Subscribe(api.EventStopped)
	player.emit(api.Event{
		Type:     api.EventStopped,
		Session:  "s1",
		Path:     "/music/a.mp3",
		Elapsed:  2 * time.Minute,
		Duration: 3 * time.Minute,
		State:    api.StateStopped,
		At:       time.Now(),
	})
	<-done

	waitFor(t, func() bool { return tracker.playCount(1) == 1 })
}

func TestStopWithoutThresholdNeverRecorded(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(map[string]int64{"/music/a.mp3": 1})
	c := runCoordinator(t, player, tracker, Options{})

	done := c.Subscribe(api.EventStopped)
	player.emit(api.Event{
		Type:     api.EventStopped,
		Session:  "s1",
		Path:     "/music/a.mp3",
		Elapsed:  3 * time.Minute,
		Duration: 3 * time.Minute,
		State:    api.StateStopped,
		At:       time.Now(),
	})
	<-done

	time.Sleep(20 * time.Millisecond)
	if got := tracker.playCount(1); got != 0 {
		t.Errorf("play count = %d, want 0 with tracking threshold disabled", got)
	}
}

func TestRecordPlayRetriesOnce(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(map[string]int64{"/music/a.mp3": 1})
	tracker.recordErrs = []error{errs.E("record play", "", errs.ErrStoreUnavailable)}
	c := runCoordinator(t, player, tracker, Options{})

	done := c.Subscribe(api.EventFinished)
	player.emit(finishedEvent("s1", "/music/a.mp3", 3*time.Minute))
	<-done

	// First attempt fails, the retry lands.
	waitFor(t, func() bool { return tracker.playCount(1) == 1 })
}

func TestRecordPlayGivesUpAfterRetry(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(map[string]int64{"/music/a.mp3": 1})
	storeErr := errs.E("record play", "", errs.ErrStoreUnavailable)
	tracker.recordErrs = []error{storeErr, storeErr}
	c := runCoordinator(t, player, tracker, Options{})

	done := c.Subscribe(api.EventFinished)
	player.emit(finishedEvent("s1", "/music/a.mp3", 3*time.Minute))
	<-done

	// Both attempts fail; the failure stays local to the coordinator and
	// later completions still work.
	player.emit(finishedEvent("s2", "/music/a.mp3", 3*time.Minute))
	<-done
	waitFor(t, func() bool { return tracker.playCount(1) == 1 })
}

func TestUnknownTrackIsNotRecorded(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(nil)
	c := runCoordinator(t, player, tracker, Options{})

	done := c.Subscribe(api.EventFinished)
	player.emit(finishedEvent("s1", "/tmp/not-in-library.mp3", time.Minute))
	<-done

	time.Sleep(20 * time.Millisecond)
	if got := tracker.playCount(1); got != 0 {
		t.Errorf("play count = %d, want 0 for unknown path", got)
	}
}

func TestRatePropagatesErrors(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(map[string]int64{"/music/a.mp3": 1})
	c := runCoordinator(t, player, tracker, Options{})

	if err := c.Rate(context.Background(), 1, 4); err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if err := c.Rate(context.Background(), 1, 7); !errors.Is(err, errs.ErrOutOfRange) {
		t.Fatalf("Rate(7): err = %v, want ErrOutOfRange", err)
	}
}

func TestSubscribeSeesRepublishedEvents(t *testing.T) {
	player := newFakePlayer()
	tracker := newFakeTracker(nil)
	c := runCoordinator(t, player, tracker, Options{})

	all := c.Subscribe()
	player.emit(api.Event{Type: api.EventStarted, Session: "s1", Path: "a.mp3"})
	select {
	case ev := <-all:
		if ev.Type != api.EventStarted || ev.Path != "a.mp3" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for republished event")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
