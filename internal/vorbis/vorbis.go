// Package vorbis implements the Vorbis comment codec (spec §4.4): parsing a
// whole comment block held in memory (the FLAC path), parsing one streamed
// over an Ogg page cursor (the Opus path, tolerating comments that span many
// pages without materializing them), and re-emitting a comment's bytes for
// an in-place rewrite.
package vorbis

import (
	"bytes"
	"database/sql"
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/master-kurosawa/music-maid/internal/corruption"
	"github.com/master-kurosawa/music-maid/internal/ioreader"
	"github.com/master-kurosawa/music-maid/internal/oggpage"
	"github.com/master-kurosawa/music-maid/internal/picture"
	"github.com/master-kurosawa/music-maid/internal/store"
)

// MaxPagePayload is the largest possible Ogg page size: 255 lacing segments
// of 255 payload bytes each, plus 27 header bytes and a 255-byte segment
// table (spec §4.6's chunk size). A comment length above this cannot be
// held on a single page and is treated as oversized (spec §4.4 step 3).
const MaxPagePayload = 65307

var (
	pictureKeyLower = []byte("metadata_block_picture")
	pictureKeyUpper = []byte("METADATA_BLOCK_PICTURE")
)

// isPictureKey matches the raw, pre-folded key bytes against exactly the two
// fixed casings the spec calls out (§4.4 step 3, OQ1): lowercase and
// uppercase only. A mixed-case key, e.g. "Metadata_Block_Picture", does not
// match — this is deliberate, not an oversight.
func isPictureKey(raw []byte) bool {
	return bytes.Equal(raw, pictureKeyLower) || bytes.Equal(raw, pictureKeyUpper)
}

// ParseBlock parses a whole FLAC VORBIS_COMMENT block already read into
// memory. blockOffset is the absolute file offset of data[0].
func ParseBlock(path string, data []byte, blockOffset int64) (store.VorbisMeta, []store.VorbisComment, error) {
	if len(data) < 8 {
		return store.VorbisMeta{}, nil, corruption.New(path, blockOffset, "vorbis comment block too short: %d bytes", len(data))
	}
	vendorLen := binary.LittleEndian.Uint32(data[0:4])
	if uint64(4)+uint64(vendorLen)+uint64(4) > uint64(len(data)) {
		return store.VorbisMeta{}, nil, corruption.New(path, blockOffset, "vorbis vendor length %d exceeds block", vendorLen)
	}
	vendor := string(data[4 : 4+vendorLen])

	commentAmountPtr := blockOffset + 4 + int64(vendorLen)
	cursor := 4 + int(vendorLen)
	commentCount := binary.LittleEndian.Uint32(data[cursor : cursor+4])
	cursor += 4

	meta := store.VorbisMeta{
		FilePtr:          blockOffset,
		EndPtr:           blockOffset + int64(len(data)),
		CommentAmountPtr: commentAmountPtr,
		Vendor:           vendor,
	}

	comments := make([]store.VorbisComment, 0, commentCount)
	var parsed uint32
	for parsed < commentCount {
		if cursor+4 > len(data) {
			return store.VorbisMeta{}, nil, corruption.New(path, blockOffset+int64(cursor), "vorbis comment count %d exceeds block contents (parsed %d)", commentCount, parsed)
		}
		length := binary.LittleEndian.Uint32(data[cursor : cursor+4])
		cursor += 4
		if cursor+int(length) > len(data) {
			return store.VorbisMeta{}, nil, corruption.New(path, blockOffset+int64(cursor), "vorbis comment length %d exceeds block", length)
		}
		entryOffset := blockOffset + int64(cursor) - 4
		entry := data[cursor : cursor+int(length)]
		cursor += int(length)
		parsed++

		eq := bytes.IndexByte(entry, '=')
		if eq < 0 {
			// A comment without '=' is skipped, not fatal (spec §4.4). It
			// is not logged: this package has no logger.
			continue
		}
		key := strings.ToLower(string(entry[:eq]))
		value := strings.ToLower(string(entry[eq+1:]))
		comments = append(comments, store.VorbisComment{
			Key:     key,
			Value:   sql.NullString{String: value, Valid: true},
			FilePtr: entryOffset,
			Size:    int64(length) + 4,
		})
	}
	if parsed != commentCount {
		return store.VorbisMeta{}, nil, corruption.New(path, blockOffset, "vorbis comment count mismatch: declared %d, parsed %d", commentCount, parsed)
	}

	return meta, comments, nil
}

// readKeyUntilEquals reads single bytes from c until '=' is found, returning the
// raw (un-folded) key bytes seen before it. maxKeyLen bounds the scan: the
// spec's invariant is that an oversized comment's key always fits on one
// page, so a key this long signals a corrupted file rather than a slow scan.
const maxKeyLen = 4096

func readKeyUntilEquals(c *oggpage.Cursor, path string) ([]byte, error) {
	var key []byte
	for len(key) < maxKeyLen {
		b, err := c.GetBytes(1)
		if err != nil {
			return nil, err
		}
		if b[0] == '=' {
			return key, nil
		}
		key = append(key, b[0])
	}
	return nil, corruption.New(path, c.R.Offset(), "oversized comment key exceeds %d bytes without '='", maxKeyLen)
}

// parseOversizedPicture assembles a metadata_block_picture payload
// incrementally, growing a base64-aligned buffer until enough of it decodes
// to recover the structural fields (spec §4.5's fixed-prefix/region
// technique, generalized to tolerate variable-length mime/description
// without precomputed offsets). The image bytes are never decoded: once the
// structural fields are known, the remainder of the comment is skipped.
func parseOversizedPicture(c *oggpage.Cursor, path string, commentStart int64, maxB64 int) (store.Picture, error) {
	const growStep = 256 // base64 chars, a multiple of 4
	have := 0
	var b64 []byte
	for {
		want := have + growStep
		if want > maxB64 {
			want = maxB64
		}
		want -= want % 4
		if want <= have {
			return store.Picture{}, corruption.New(path, commentStart, "metadata_block_picture payload too short to decode structural fields")
		}
		chunk, err := c.GetBytes(want - have)
		if err != nil {
			return store.Picture{}, err
		}
		b64 = append(b64, chunk...)
		have = want

		if decoded, err := base64.StdEncoding.DecodeString(string(b64)); err == nil {
			if pic, ok := picture.TryParseEmbedded(commentStart, decoded); ok {
				if remaining := maxB64 - have; remaining > 0 {
					if err := c.SafeSkip(remaining); err != nil {
						return store.Picture{}, err
					}
				}
				return pic, nil
			}
		}
		if have >= maxB64 {
			return store.Picture{}, corruption.New(path, commentStart, "metadata_block_picture structural fields exceed comment payload")
		}
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// ParseStreamed parses a Vorbis/Opus comment header riding on an Ogg page
// cursor, tolerating comments (in particular cover-art
// metadata_block_picture comments) that span many pages. c must be
// positioned immediately after the format's magic (e.g. "OpusTags").
func ParseStreamed(c *oggpage.Cursor, path string) (store.VorbisMeta, []store.VorbisComment, []store.Picture, *store.Padding, error) {
	// c is handed to us right after the caller's own GetBytes call (the
	// format magic), which may have left Cursor exactly at SegmentSize:
	// resolve that before snapshotting, same reasoning as in the
	// per-comment loop below.
	if err := c.Sync(); err != nil {
		return store.VorbisMeta{}, nil, nil, nil, err
	}
	blockOffset := c.R.Offset()

	vendorLenBytes, err := c.GetBytes(4)
	if err != nil {
		return store.VorbisMeta{}, nil, nil, nil, err
	}
	vendorLen := binary.LittleEndian.Uint32(vendorLenBytes)
	vendorBytes, err := c.GetBytes(int(vendorLen))
	if err != nil {
		return store.VorbisMeta{}, nil, nil, nil, err
	}
	vendor := string(vendorBytes)

	if err := c.Sync(); err != nil {
		return store.VorbisMeta{}, nil, nil, nil, err
	}
	commentAmountPtr := c.R.Offset()
	countBytes, err := c.GetBytes(4)
	if err != nil {
		return store.VorbisMeta{}, nil, nil, nil, err
	}
	commentCount := binary.LittleEndian.Uint32(countBytes)

	meta := store.VorbisMeta{
		FilePtr:          blockOffset,
		CommentAmountPtr: commentAmountPtr,
		Vendor:           vendor,
	}

	if commentCount == 0 {
		padding, err := consumeTrailingPadding(c, commentAmountPtr)
		if err != nil {
			return store.VorbisMeta{}, nil, nil, nil, err
		}
		meta.EndPtr = c.R.Offset()
		return meta, nil, nil, padding, nil
	}

	var comments []store.VorbisComment
	var pictures []store.Picture

	for i := uint32(0); i < commentCount; i++ {
		// The previous iteration may have left Cursor exactly at
		// SegmentSize with more pages still to come: resolve that pending
		// header reparse before snapshotting, or commentStart/headerPtr
		// would capture the *next* page's raw offset and the *previous*
		// page's now-stale header instead of this comment's true location.
		if err := c.Sync(); err != nil {
			return store.VorbisMeta{}, nil, nil, nil, err
		}
		commentStart := c.R.Offset()
		headerPtr := c.LastHeaderPtr

		lenBytes, err := c.GetBytes(4)
		if err != nil {
			return store.VorbisMeta{}, nil, nil, nil, err
		}
		length := binary.LittleEndian.Uint32(lenBytes)

		if length > MaxPagePayload {
			rawKey, err := readKeyUntilEquals(c, path)
			if err != nil {
				return store.VorbisMeta{}, nil, nil, nil, err
			}
			comments = append(comments, store.VorbisComment{
				Key:              strings.ToLower(string(rawKey)),
				FilePtr:          commentStart,
				Size:             int64(length) + 4,
				LastOggHeaderPtr: sql.NullInt64{Valid: true, Int64: headerPtr},
			})

			remaining := int(length) - len(rawKey) - 1
			if isPictureKey(rawKey) {
				pic, err := parseOversizedPicture(c, path, commentStart, remaining)
				if err != nil {
					return store.VorbisMeta{}, nil, nil, nil, err
				}
				pictures = append(pictures, pic)
			} else if err := c.SafeSkip(remaining); err != nil {
				return store.VorbisMeta{}, nil, nil, nil, err
			}
		} else {
			payload, err := c.GetBytes(int(length))
			if err != nil {
				return store.VorbisMeta{}, nil, nil, nil, err
			}
			// A comment without '=' is skipped (not logged), not fatal —
			// mirrors the in-FLAC path — but the end-of-packet check below
			// still runs.
			if eq := bytes.IndexByte(payload, '='); eq >= 0 {
				key := strings.ToLower(string(payload[:eq]))
				value := strings.ToLower(string(payload[eq+1:]))
				comments = append(comments, store.VorbisComment{
					Key:     key,
					Value:   sql.NullString{String: value, Valid: true},
					FilePtr: commentStart,
					Size:    int64(length) + 4,
				})

				const picturePrefix = "metadata_block_picture="
				if bytes.HasPrefix(payload, []byte(picturePrefix)) {
					decoded, err := base64.StdEncoding.DecodeString(string(payload[len(picturePrefix):]))
					if err == nil {
						if pic, perr := picture.ParseEmbedded(path, commentStart, commentStart, decoded); perr == nil {
							pictures = append(pictures, pic)
						}
					}
				}
			}
		}

		if c.EndsStream && c.Cursor == c.SegmentSize {
			// Stream ended and the current page is exhausted: terminate
			// early even if fewer than comment_count entries were seen
			// (spec §4.4 step 5).
			break
		}
	}

	var padding *store.Padding
	if !(c.EndsStream && c.Cursor == c.SegmentSize) {
		padStart := c.R.Offset()
		peek, err := c.GetBytes(4)
		if err == nil && allZero(peek) {
			rest, err := c.ParseTillEnd()
			if err == nil {
				padding = &store.Padding{FilePtr: padStart, ByteSize: int64(4 + len(rest))}
			}
		}
	}

	meta.EndPtr = c.R.Offset()
	return meta, comments, pictures, padding, nil
}

// consumeTrailingPadding handles the all-zero-comment-count case (spec §4.4
// step 2/6): the count field itself was the four zero bytes, and the rest
// of the logical stream is padding.
func consumeTrailingPadding(c *oggpage.Cursor, countPtr int64) (*store.Padding, error) {
	rest, err := c.ParseTillEnd()
	if err != nil {
		return nil, err
	}
	return &store.Padding{FilePtr: countPtr, ByteSize: int64(4 + len(rest))}, nil
}

// ToBytesForOgg re-emits a comment's bytes for an in-place rewrite (spec
// §4.4 "Emitting a comment for rewrite"). For a comment with a present
// value, it reconstructs "length || key '=' value" from the (possibly
// case-folded) stored fields. For an oversized comment, the value was never
// materialized, so the original bytes are reclaimed verbatim by walking a
// fresh page cursor back to the comment's own offset and streaming it out.
func ToBytesForOgg(r *ioreader.Reader, comment store.VorbisComment) ([]byte, error) {
	if comment.Value.Valid {
		payload := comment.Key + "=" + comment.Value.String
		out := make([]byte, 4+len(payload))
		binary.LittleEndian.PutUint32(out[0:4], uint32(len(payload)))
		copy(out[4:], payload)
		return out, nil
	}

	if !comment.LastOggHeaderPtr.Valid {
		return nil, corruption.New(r.Path, comment.FilePtr, "oversized comment missing last_ogg_header_ptr, cannot reclaim original bytes")
	}
	if _, err := r.ReadAtOffset(0, comment.LastOggHeaderPtr.Int64); err != nil {
		return nil, err
	}
	c, err := oggpage.New(r)
	if err != nil {
		return nil, err
	}
	toSkip := comment.FilePtr - r.Offset()
	if toSkip < 0 {
		return nil, corruption.New(r.Path, comment.FilePtr, "comment file_ptr precedes its recorded ogg header")
	}
	if toSkip > 0 {
		if err := c.SafeSkip(int(toSkip)); err != nil {
			return nil, err
		}
	}
	return c.GetBytes(int(comment.Size))
}
