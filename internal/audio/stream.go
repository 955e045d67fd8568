package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep"

	errs "tonearm/pkg/errors"
)

// Stream is one decode session: a lazy, finite, forward-only sample
// sequence over an open file, restartable only via SeekTo. It implements
// beep.Streamer so the sink pulls samples from it at device cadence.
//
// A Stream is not safe for concurrent use. While it is handed to the sink,
// callers must hold the sink's lock around Position, SeekTo and Err.
type Stream struct {
	path     string
	file     *os.File
	streamer beep.StreamSeekCloser
	format   beep.Format
}

// Path returns the file this stream decodes.
func (s *Stream) Path() string {
	return s.path
}

// Format reports the decoded sample rate and channel count.
func (s *Stream) Format() beep.Format {
	return s.format
}

// Stream fills samples with decoded audio. It returns the number of samples
// written and whether the stream is still live; after the final sample it
// keeps returning (0, false). A decode failure also ends the stream and is
// reported by Err.
func (s *Stream) Stream(samples [][2]float64) (int, bool) {
	return s.streamer.Stream(samples)
}

// Err reports the decode error that ended the stream early, if any.
// A drained healthy stream returns nil.
func (s *Stream) Err() error {
	return s.streamer.Err()
}

// Duration returns the total decoded length.
func (s *Stream) Duration() time.Duration {
	return s.format.SampleRate.D(s.streamer.Len())
}

// Position returns the elapsed time at the current decode offset.
func (s *Stream) Position() time.Duration {
	return s.format.SampleRate.D(s.streamer.Position())
}

// SeekTo moves the decode offset to the nearest decodable boundary at or
// before target and returns the position actually reached. Targets outside
// [0, Duration] fail with errs.ErrOutOfRange and leave the offset where it
// was; a backend refusing to seek fails with errs.ErrSeekUnsupported.
func (s *Stream) SeekTo(target time.Duration) (time.Duration, error) {
	if target < 0 || target > s.Duration() {
		return 0, errs.E("seek", s.path,
			fmt.Errorf("%w: %v not within 0..%v", errs.ErrOutOfRange, target, s.Duration()))
	}

	sample := s.format.SampleRate.N(target)
	if total := s.streamer.Len(); sample >= total {
		sample = total - 1
	}
	if sample < 0 {
		sample = 0
	}

	if err := s.streamer.Seek(sample); err != nil {
		return 0, errs.E("seek", s.path, fmt.Errorf("%w: %v", errs.ErrSeekUnsupported, err))
	}
	return s.Position(), nil
}

// Close releases the decoder and the underlying file handle.
func (s *Stream) Close() error {
	serr := s.streamer.Close()
	ferr := s.file.Close()
	if serr != nil {
		return errs.E("close", s.path, serr)
	}
	return ferr
}
