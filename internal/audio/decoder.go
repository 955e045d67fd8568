package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"

	errs "tonearm/pkg/errors"
)

// SupportedFormats returns the file extensions this decoder negotiates.
func SupportedFormats() []string {
	return []string{".mp3", ".wav", ".flac"}
}

// IsSupported checks if a file's format is supported, by extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// Open opens path and negotiates a decoder for it. The returned Stream owns
// the file handle until Close. Errors distinguish a missing file
// (errs.ErrNotFound), an extension no backend decodes (errs.ErrUnsupported)
// and a recognized container the decoder rejects (errs.ErrCorrupt).
func Open(path string) (*Stream, error) {
	if !IsSupported(path) {
		return nil, errs.E("open", path, fmt.Errorf("%w: %s", errs.ErrUnsupported, filepath.Ext(path)))
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.E("open", path, fmt.Errorf("%w: %v", errs.ErrNotFound, err))
		}
		return nil, errs.E("open", path, err)
	}

	streamer, format, err := decode(file, path)
	if err != nil {
		file.Close()
		return nil, errs.E("decode", path, fmt.Errorf("%w: %v", errs.ErrCorrupt, err))
	}

	return &Stream{
		path:     path,
		file:     file,
		streamer: streamer,
		format:   format,
	}, nil
}

// decode picks a decoder backend by extension.
func decode(r io.ReadSeekCloser, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.Decode(r)
	case ".wav":
		return wav.Decode(r)
	case ".flac":
		return flac.Decode(r)
	default:
		return nil, beep.Format{}, fmt.Errorf("%w: %s", errs.ErrUnsupported, filepath.Ext(path))
	}
}
