package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"tonearm/api"
	errs "tonearm/pkg/errors"
)

// fakeLibrary collects imports in memory.
type fakeLibrary struct {
	mu     sync.Mutex
	tracks map[string]api.Metadata
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{tracks: make(map[string]api.Metadata)}
}

func (f *fakeLibrary) InsertTrack(_ context.Context, path string, meta api.Metadata) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tracks[path]; ok {
		return 0, errs.E("insert track", path, errs.ErrConflict)
	}
	f.tracks[path] = meta
	return int64(len(f.tracks)), nil
}

func (f *fakeLibrary) RefreshTrack(_ context.Context, path string, meta api.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.tracks[path]; !ok {
		return errs.E("refresh track", path, errs.ErrNotFound)
	}
	f.tracks[path] = meta
	return nil
}

func (f *fakeLibrary) get(path string) (api.Metadata, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	meta, ok := f.tracks[path]
	return meta, ok
}

// writeFiles lays out a music directory; contents do not matter because the
// prober is faked.
func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func fakeProbe(broken map[string]bool) Prober {
	return func(path string) (api.Metadata, error) {
		if broken[filepath.Base(path)] {
			return api.Metadata{}, errs.E("decode", path, errs.ErrCorrupt)
		}
		return api.Metadata{
			Title:    "title of " + filepath.Base(path),
			Artist:   "artist",
			Duration: 90 * time.Second,
		}, nil
	}
}

func TestScanImportsSupportedFiles(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"a.mp3",
		"b.wav",
		"deep/nested/c.flac",
		"cover.jpg",   // not audio
		"notes.txt",   // not audio
		"broken.mp3",  // probe fails
	)

	lib := newFakeLibrary()
	s := New(lib, 3)
	s.probe = fakeProbe(map[string]bool{"broken.mp3": true})

	res, err := s.Scan(context.Background(), []string{root})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Added != 3 || res.Refreshed != 0 || res.Skipped != 1 {
		t.Errorf("result = %+v, want 3 added, 0 refreshed, 1 skipped", res)
	}
	if _, ok := lib.get(filepath.Join(root, "deep/nested/c.flac")); !ok {
		t.Error("nested file not imported")
	}
	if _, ok := lib.get(filepath.Join(root, "cover.jpg")); ok {
		t.Error("non-audio file imported")
	}
}

func TestRescanRefreshesKnownTracks(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp3")

	lib := newFakeLibrary()
	s := New(lib, 1)
	s.probe = fakeProbe(nil)

	if _, err := s.Scan(context.Background(), []string{root}); err != nil {
		t.Fatalf("first Scan: %v", err)
	}

	// Retag between scans.
	s.probe = func(path string) (api.Metadata, error) {
		return api.Metadata{Title: "retitled", Duration: 95 * time.Second}, nil
	}
	res, err := s.Scan(context.Background(), []string{root})
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if res.Added != 0 || res.Refreshed != 1 {
		t.Errorf("result = %+v, want 0 added, 1 refreshed", res)
	}
	meta, _ := lib.get(filepath.Join(root, "a.mp3"))
	if meta.Title != "retitled" || meta.Duration != 95*time.Second {
		t.Errorf("refreshed meta = %+v", meta)
	}
}

func TestUntaggedFilesGetFilenameTitle(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "04 - So What.wav")

	lib := newFakeLibrary()
	s := New(lib, 1)
	s.probe = func(string) (api.Metadata, error) {
		return api.Metadata{Duration: time.Minute}, nil
	}

	if _, err := s.Scan(context.Background(), []string{root}); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	meta, ok := lib.get(filepath.Join(root, "04 - So What.wav"))
	if !ok {
		t.Fatal("file not imported")
	}
	if meta.Title != "04 - So What" {
		t.Errorf("title = %q, want filename without extension", meta.Title)
	}
}

func TestScanMissingRoot(t *testing.T) {
	lib := newFakeLibrary()
	s := New(lib, 1)
	s.probe = fakeProbe(nil)

	if _, err := s.Scan(context.Background(), []string{"/does/not/exist"}); err == nil {
		t.Fatal("Scan of missing root succeeded")
	}
}

func TestScanHonorsCancellation(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp3", "b.mp3", "c.mp3")

	lib := newFakeLibrary()
	s := New(lib, 1)
	s.probe = fakeProbe(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Scan(ctx, []string{root}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Scan: err = %v, want context.Canceled", err)
	}
}

func TestScanFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp3")

	lib := newFakeLibrary()
	s := New(lib, 1)
	s.probe = fakeProbe(nil)

	path := filepath.Join(root, "a.mp3")
	if err := s.ScanFile(context.Background(), path); err != nil {
		t.Fatalf("ScanFile: %v", err)
	}
	if _, ok := lib.get(path); !ok {
		t.Error("file not imported")
	}

	if err := s.ScanFile(context.Background(), filepath.Join(root, "a.txt")); !errors.Is(err, errs.ErrUnsupported) {
		t.Errorf("unsupported file: err = %v, want ErrUnsupported", err)
	}

	// Importing again refreshes rather than failing on the duplicate.
	s.probe = func(string) (api.Metadata, error) {
		return api.Metadata{Title: "updated"}, nil
	}
	if err := s.ScanFile(context.Background(), path); err != nil {
		t.Fatalf("ScanFile rescan: %v", err)
	}
	meta, _ := lib.get(path)
	if meta.Title != "updated" {
		t.Errorf("title = %q, want %q", meta.Title, "updated")
	}
}
