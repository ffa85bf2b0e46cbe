// Package ingest implements the format dispatcher (spec §4.7): given a
// path, it sniffs the file's magic bytes and routes to the FLAC block walker
// or the Opus/Vorbis streamed parser, producing one store.AudioFileMeta.
// Anything else is reported as "not ours" rather than an error.
package ingest

import (
	"path/filepath"

	"github.com/master-kurosawa/music-maid/internal/corruption"
	"github.com/master-kurosawa/music-maid/internal/flacmeta"
	"github.com/master-kurosawa/music-maid/internal/ioreader"
	"github.com/master-kurosawa/music-maid/internal/oggpage"
	"github.com/master-kurosawa/music-maid/internal/store"
	"github.com/master-kurosawa/music-maid/internal/vorbis"
)

var (
	magicFLAC     = []byte("fLaC")
	magicOgg      = []byte("OggS")
	magicOpusHead = []byte("OpusHead")
	magicOpusTags = []byte("OpusTags")
)

// Dispatch opens path, identifies its container format, and extracts its
// metadata. ok is false when the file's magic matches none of FLAC or Ogg —
// the caller should skip it without treating that as a failure.
func Dispatch(path string) (meta store.AudioFileMeta, ok bool, err error) {
	r, err := ioreader.OpenReadOnly(path)
	if err != nil {
		return store.AudioFileMeta{}, false, err
	}
	defer r.Close()

	magic, err := r.GetBytes(4)
	if err != nil {
		// A file too short to hold any recognized magic is simply not ours.
		return store.AudioFileMeta{}, false, nil
	}

	file := store.AudioFile{Path: path, Name: filepath.Base(path)}

	switch {
	case equal(magic, magicFLAC):
		file.Format = store.FormatFLAC
		res, err := flacmeta.Walk(r)
		if err != nil {
			return store.AudioFileMeta{}, false, err
		}
		return store.AudioFileMeta{
			File:     file,
			Metas:    res.Metas,
			Comments: res.Comments,
			Pictures: res.Pictures,
			Paddings: res.Paddings,
		}, true, nil

	case equal(magic, magicOgg):
		return dispatchOgg(r, file)

	default:
		return store.AudioFileMeta{}, false, nil
	}
}

func equal(b, magic []byte) bool {
	if len(b) != len(magic) {
		return false
	}
	for i := range b {
		if b[i] != magic[i] {
			return false
		}
	}
	return true
}

// dispatchOgg re-parses the page already sniffed, reads the identification
// header of the first logical stream, and only if it is an Opus stream
// ("OpusHead") does it continue to the comment header ("OpusTags") and the
// Vorbis/Opus parser. Any other Ogg payload is recorded as an empty-metadata
// "ogg" file (spec §4.7: "non-Opus Ogg is TBD").
func dispatchOgg(r *ioreader.Reader, file store.AudioFile) (store.AudioFileMeta, bool, error) {
	if _, err := r.ReadAtOffset(0, 0); err != nil {
		return store.AudioFileMeta{}, false, err
	}
	cursor, err := oggpage.New(r)
	if err != nil {
		return store.AudioFileMeta{}, false, err
	}

	head, err := cursor.GetBytes(8)
	if err != nil {
		return store.AudioFileMeta{}, false, err
	}

	if !equal(head, magicOpusHead) {
		file.Format = store.FormatOgg
		return store.AudioFileMeta{File: file}, true, nil
	}
	file.Format = store.FormatOpus

	if _, err := cursor.ParseTillEnd(); err != nil {
		return store.AudioFileMeta{}, false, err
	}

	tags, err := cursor.GetBytes(8)
	if err != nil {
		return store.AudioFileMeta{}, false, err
	}
	if !equal(tags, magicOpusTags) {
		return store.AudioFileMeta{}, false, corruption.New(r.Path, r.Offset(), "expected OpusTags after OpusHead, got %q", tags)
	}

	vmeta, comments, pictures, padding, err := vorbis.ParseStreamed(cursor, r.Path)
	if err != nil {
		return store.AudioFileMeta{}, false, err
	}

	out := store.AudioFileMeta{
		File:     file,
		Metas:    []store.VorbisMeta{vmeta},
		Comments: [][]store.VorbisComment{comments},
		Pictures: pictures,
	}
	if padding != nil {
		out.Paddings = []store.Padding{*padding}
	}
	return out, true, nil
}
