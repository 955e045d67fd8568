// Package scanner imports audio files into the library. It is an external
// collaborator of the playback core: it walks directories, probes metadata
// and feeds the store, but never touches playback state.
package scanner

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"

	"tonearm/api"
	"tonearm/internal/audio"
	"tonearm/internal/logger"
	errs "tonearm/pkg/errors"
)

// Library is the slice of the store the scanner writes through.
type Library interface {
	InsertTrack(ctx context.Context, path string, meta api.Metadata) (int64, error)
	RefreshTrack(ctx context.Context, path string, meta api.Metadata) error
}

// Prober extracts metadata from one file. audio.Probe is the production
// implementation.
type Prober func(path string) (api.Metadata, error)

// Result summarizes one scan.
type Result struct {
	Added     int // new tracks inserted
	Refreshed int // known tracks with metadata updated
	Skipped   int // unreadable, unsupported or corrupt files
}

// Scanner walks directories with a pool of probe workers. Probing decodes
// file headers, so it is I/O bound and parallelizes well; the store end
// stays serialized by the store itself.
type Scanner struct {
	lib     Library
	probe   Prober
	workers int
}

// New creates a scanner over lib with the given worker count.
func New(lib Library, workers int) *Scanner {
	if workers <= 0 {
		workers = 4
	}
	return &Scanner{lib: lib, probe: audio.Probe, workers: workers}
}

// Scan walks roots, probes every supported audio file and imports it.
// Files already in the library get their metadata refreshed instead, so a
// rescan picks up retagged files and corrected durations. Broken files are
// counted, logged and skipped; only walk-level failures abort the scan.
func (s *Scanner) Scan(ctx context.Context, roots []string) (Result, error) {
	files := make(chan string, 100)
	walkErr := make(chan error, 1)

	go func() {
		defer close(files)
		walkErr <- s.walk(ctx, roots, files)
	}()

	var (
		mu  sync.Mutex
		res Result
		wg  sync.WaitGroup
	)
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range files {
				outcome := s.importFile(ctx, path)
				mu.Lock()
				switch outcome {
				case outcomeAdded:
					res.Added++
				case outcomeRefreshed:
					res.Refreshed++
				default:
					res.Skipped++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := <-walkErr; err != nil {
		return res, err
	}
	return res, ctx.Err()
}

// ScanFile imports a single file, reporting probe errors to the caller
// instead of swallowing them.
func (s *Scanner) ScanFile(ctx context.Context, path string) error {
	if !audio.IsSupported(path) {
		return errs.E("scan", path, errs.ErrUnsupported)
	}
	meta, err := s.probe(path)
	if err != nil {
		return err
	}
	fillTitle(&meta, path)

	_, err = s.lib.InsertTrack(ctx, path, meta)
	if errors.Is(err, errs.ErrConflict) {
		return s.lib.RefreshTrack(ctx, path, meta)
	}
	return err
}

func (s *Scanner) walk(ctx context.Context, roots []string, files chan<- string) error {
	for _, root := range roots {
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return &errs.ScanError{Path: p, Err: err}
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() || !audio.IsSupported(p) {
				return nil
			}
			select {
			case files <- p:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeAdded
	outcomeRefreshed
)

func (s *Scanner) importFile(ctx context.Context, path string) outcome {
	meta, err := s.probe(path)
	if err != nil {
		logger.Warn("probe failed", logger.String("path", path), logger.ErrorField(err))
		return outcomeSkipped
	}
	fillTitle(&meta, path)

	if _, err := s.lib.InsertTrack(ctx, path, meta); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			if err := s.lib.RefreshTrack(ctx, path, meta); err != nil {
				logger.Warn("refresh failed", logger.String("path", path), logger.ErrorField(err))
				return outcomeSkipped
			}
			return outcomeRefreshed
		}
		logger.Warn("import failed", logger.String("path", path), logger.ErrorField(err))
		return outcomeSkipped
	}
	return outcomeAdded
}

// fillTitle falls back to the file name for untagged files, so every track
// lists with something readable.
func fillTitle(meta *api.Metadata, path string) {
	if meta.Title != "" {
		return
	}
	base := filepath.Base(path)
	meta.Title = strings.TrimSuffix(base, filepath.Ext(base))
}
