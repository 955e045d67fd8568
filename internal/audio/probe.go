package audio

import (
	"os"

	"github.com/dhowden/tag"

	"tonearm/api"
	errs "tonearm/pkg/errors"
)

// Probe extracts title, artist, album and duration from path without
// rendering any audio. Tags are read with dhowden/tag; files without tags
// are still probed, with the metadata fields left empty for the caller to
// fill from the filename. Duration comes from the decoder's sample count,
// which every supported backend reports without decoding the whole file.
func Probe(path string) (api.Metadata, error) {
	var meta api.Metadata

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, errs.E("probe", path, errs.ErrNotFound)
		}
		return meta, errs.E("probe", path, err)
	}

	if tags, err := tag.ReadFrom(file); err == nil {
		meta.Title = tags.Title()
		meta.Artist = tags.Artist()
		meta.Album = tags.Album()
	}
	file.Close()

	// Duration needs a decoder handle of its own: tag reading has consumed
	// the first reader, and the decoders take ownership of theirs.
	stream, err := Open(path)
	if err != nil {
		return api.Metadata{}, err
	}
	meta.Duration = stream.Duration()
	stream.Close()

	return meta, nil
}
