// Package picture implements the FLAC PICTURE metadata block codec (spec
// §4.5): the native big-endian in-file structure, and the base64-wrapped
// form Ogg/Opus embeds as the value of a metadata_block_picture Vorbis
// comment. Only structural fields are retained in either case; the image
// payload itself is skipped, never materialized.
package picture

import (
	"encoding/binary"

	"github.com/master-kurosawa/music-maid/internal/corruption"
	"github.com/master-kurosawa/music-maid/internal/ioreader"
	"github.com/master-kurosawa/music-maid/internal/store"
)

// headerFixedLen is the byte length of every fixed-size u32 field preceding
// the two variable-length regions (mime, description) plus the five u32s
// that follow them: picture_type, mime_len, desc_len, width, height,
// color_depth, indexed_color_number, picture_data_len — 8 fields, 32 bytes.
const headerFixedLen = 32

// ParseNative reads a FLAC PICTURE block directly from r, skipping the
// image bytes without reading them into memory. r must be positioned at the
// start of the block body (immediately after the 4-byte block header).
func ParseNative(r *ioreader.Reader) (store.Picture, error) {
	blockStart := r.Offset()

	pictureType, err := r.ReadU32BE()
	if err != nil {
		return store.Picture{}, err
	}
	mimeLen, err := r.ReadU32BE()
	if err != nil {
		return store.Picture{}, err
	}
	mimeBytes, err := r.GetBytes(int(mimeLen))
	if err != nil {
		return store.Picture{}, err
	}
	mime := string(mimeBytes)

	descLen, err := r.ReadU32BE()
	if err != nil {
		return store.Picture{}, err
	}
	descBytes, err := r.GetBytes(int(descLen))
	if err != nil {
		return store.Picture{}, err
	}
	desc := string(descBytes)

	width, err := r.ReadU32BE()
	if err != nil {
		return store.Picture{}, err
	}
	height, err := r.ReadU32BE()
	if err != nil {
		return store.Picture{}, err
	}
	colorDepth, err := r.ReadU32BE()
	if err != nil {
		return store.Picture{}, err
	}
	indexedColors, err := r.ReadU32BE()
	if err != nil {
		return store.Picture{}, err
	}
	dataLen, err := r.ReadU32BE()
	if err != nil {
		return store.Picture{}, err
	}
	if err := r.Skip(int64(dataLen)); err != nil {
		return store.Picture{}, err
	}

	return store.Picture{
		FilePtr:            blockStart,
		PictureType:        pictureType,
		MIME:               mime,
		Description:        desc,
		Width:              width,
		Height:             height,
		ColorDepth:         colorDepth,
		IndexedColorNumber: indexedColors,
		Size:               dataLen,
		VorbisComment:      false,
	}, nil
}

// tryParse decodes the structural fields out of data, reporting ok=false
// (not an error) when data doesn't yet hold enough bytes to reach the end of
// the five u32 fields that follow the description region — the condition a
// streaming caller retries on by
// fetching more base64 and decoding again, rather than treating as fatal.
func tryParse(data []byte) (store.Picture, bool) {
	if len(data) < 8 {
		return store.Picture{}, false
	}
	pictureType := binary.BigEndian.Uint32(data[0:4])
	mimeLen := binary.BigEndian.Uint32(data[4:8])

	off := 8
	if len(data) < off+int(mimeLen)+4 {
		return store.Picture{}, false
	}
	mime := string(data[off : off+int(mimeLen)])
	off += int(mimeLen)

	descLen := binary.BigEndian.Uint32(data[off : off+4])
	off += 4
	if len(data) < off+int(descLen)+20 {
		return store.Picture{}, false
	}
	desc := string(data[off : off+int(descLen)])
	off += int(descLen)

	width := binary.BigEndian.Uint32(data[off : off+4])
	height := binary.BigEndian.Uint32(data[off+4 : off+8])
	colorDepth := binary.BigEndian.Uint32(data[off+8 : off+12])
	indexedColors := binary.BigEndian.Uint32(data[off+12 : off+16])
	dataLen := binary.BigEndian.Uint32(data[off+16 : off+20])

	return store.Picture{
		PictureType:        pictureType,
		MIME:               mime,
		Description:        desc,
		Width:              width,
		Height:             height,
		ColorDepth:         colorDepth,
		IndexedColorNumber: indexedColors,
		Size:               dataLen,
		VorbisComment:      true,
	}, true
}

// ParseEmbedded parses the structural fields out of data, the fully
// assembled decoded bytes of an Opus metadata_block_picture comment. data
// need not include the picture_data bytes themselves — only enough to read
// the eight u32 fields and the mime/description regions between them.
func ParseEmbedded(path string, fileCursor int64, blockOffset int64, data []byte) (store.Picture, error) {
	pic, ok := tryParse(data)
	if !ok {
		return store.Picture{}, corruption.New(path, fileCursor, "metadata_block_picture payload too short to decode structural fields")
	}
	pic.FilePtr = blockOffset
	return pic, nil
}

// TryParseEmbedded is the non-fatal counterpart used while incrementally
// decoding a streamed, multi-page metadata_block_picture comment (spec
// §4.5's prefix/region/suffix technique): the caller grows its decoded
// buffer and calls this repeatedly until ok is true, without needing to
// distinguish "not enough yet" from "malformed" on every short attempt.
func TryParseEmbedded(blockOffset int64, data []byte) (store.Picture, bool) {
	pic, ok := tryParse(data)
	if !ok {
		return store.Picture{}, false
	}
	pic.FilePtr = blockOffset
	return pic, true
}
