// Package editor implements the in-place Vorbis comment remover (spec
// §4.6, component J): given a previously-ingested Ogg/Opus file's loaded
// VorbisMeta and VorbisComment records, it rewrites the comment region in
// place, shifts the trailing audio payload forward, and truncates the file
// to its new length.
package editor

import (
	"bytes"
	"io"

	"github.com/master-kurosawa/music-maid/internal/corruption"
	"github.com/master-kurosawa/music-maid/internal/ioreader"
	"github.com/master-kurosawa/music-maid/internal/oggpage"
	"github.com/master-kurosawa/music-maid/internal/store"
	"github.com/master-kurosawa/music-maid/internal/vorbis"
)

// copyChunkSize is the maximum Ogg page size (spec §4.6 step 6:
// "chunks the size of the maximum Ogg page").
const copyChunkSize = vorbis.MaxPagePayload

var (
	magicOpusHead = []byte("OpusHead")
	magicOpusTags = []byte("OpusTags")
)

// RemoveComments drops every comment whose key is in removeKeys from path's
// comment block, rewrites the comment count and surviving comments in
// place, shifts the audio payload that followed the old comment block
// forward to meet the new (shorter) one, and truncates the file.
//
// meta and comments must be exactly what was recorded for path at ingest
// time. Before any byte is written, the structural walk to the comment
// count is checked against meta.CommentAmountPtr, and a mismatch fails the
// whole edit with a Corruption; the individual comments' recorded offsets
// are not checked against the file.
func RemoveComments(path string, meta store.VorbisMeta, comments []store.VorbisComment, removeKeys map[string]bool) error {
	w, err := ioreader.Open(path)
	if err != nil {
		return err
	}
	defer w.Close()

	// A second, independent handle: vorbis.ToBytesForOgg repositions
	// whatever reader it's given to reclaim an oversized comment's
	// original bytes, and must never disturb the write cursor's reader.
	src, err := ioreader.OpenReadOnly(path)
	if err != nil {
		return err
	}
	defer src.Close()

	c, err := walkToVendorEnd(w)
	if err != nil {
		return err
	}
	// The vendor read may have ended exactly on a page boundary, leaving
	// c.R.Offset() pointing at the next page's raw "OggS" marker instead
	// of its first payload byte, until the pending header is resolved.
	if err := c.Sync(); err != nil {
		return err
	}
	if c.R.Offset() != meta.CommentAmountPtr {
		return corruption.New(w.Path, c.R.Offset(), "comment_amount_ptr mismatch: file has %d, record expects %d", c.R.Offset(), meta.CommentAmountPtr)
	}

	var rewrite []byte
	kept := 0
	for _, comment := range comments {
		if removeKeys[comment.Key] {
			continue
		}
		entry, err := vorbis.ToBytesForOgg(src, comment)
		if err != nil {
			return err
		}
		rewrite = append(rewrite, entry...)
		kept++
	}

	var countBuf [4]byte
	putU32LE(countBuf[:], uint32(kept))
	if err := c.WriteStream(countBuf[:]); err != nil {
		return err
	}
	if err := c.WriteStream(rewrite); err != nil {
		return err
	}

	// If the last write landed exactly on a page boundary, WriteStream has
	// already advanced the cursor to the following (untouched) page — there
	// is nothing left in "the current page" to zero-fill, and doing so
	// anyway would overwrite audio data that belongs to that next page.
	if c.Cursor != 0 {
		if remaining := c.SegmentSize - c.Cursor; remaining > 0 {
			if err := c.WriteStream(make([]byte, remaining)); err != nil {
				return err
			}
		}
	}

	// Every path above ends with WriteStream having crossed into the page
	// after the rewritten region and parsed its header, so w.Offset() is
	// already past that header; the region itself ends where the page
	// begins.
	destStart := c.LastHeaderPtr
	newLen, err := shiftAudio(w, meta.EndPtr, destStart)
	if err != nil {
		return err
	}
	return w.Truncate(newLen)
}

// walkToVendorEnd builds a fresh cursor at the start of w's Ogg stream and
// walks it structurally — identification header, comment header marker,
// vendor string — to the position immediately following the vendor (spec
// §4.6 step 2/4: "traverse the Opus head page and the comment-block start
// page boundary", "re-walk the Ogg cursor to just past the vendor"). An
// arithmetic skip across an unknown number of intervening page headers
// can't be used here (SafeSkip's argument counts payload bytes, not raw
// file offset), so the walk re-parses each structural field in order
// instead of jumping.
func walkToVendorEnd(w *ioreader.Reader) (*oggpage.Cursor, error) {
	c, err := oggpage.New(w)
	if err != nil {
		return nil, err
	}

	head, err := c.GetBytes(8)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(head, magicOpusHead) {
		return nil, corruption.New(w.Path, c.R.Offset(), "expected OpusHead identification header")
	}
	if _, err := c.ParseTillEnd(); err != nil {
		return nil, err
	}

	tags, err := c.GetBytes(8)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(tags, magicOpusTags) {
		return nil, corruption.New(w.Path, c.R.Offset(), "expected OpusTags comment header")
	}

	vendorLenBytes, err := c.GetBytes(4)
	if err != nil {
		return nil, err
	}
	vendorLen := int(vendorLenBytes[0]) | int(vendorLenBytes[1])<<8 | int(vendorLenBytes[2])<<16 | int(vendorLenBytes[3])<<24
	if _, err := c.GetBytes(vendorLen); err != nil {
		return nil, err
	}
	return c, nil
}

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// shiftAudio copies every byte from [srcOffset, EOF) in w to start at
// destOffset, in copyChunkSize chunks, then returns the file's new total
// length (destOffset + bytes copied). destOffset must be <= srcOffset, so
// reading ahead of the write position is always safe.
func shiftAudio(w *ioreader.Reader, srcOffset, destOffset int64) (int64, error) {
	if destOffset > srcOffset {
		return 0, corruption.New(w.Path, destOffset, "rewritten comment region grew past its original bounds (dest %d > src %d)", destOffset, srcOffset)
	}

	src, dest := srcOffset, destOffset
	buf := make([]byte, copyChunkSize)
	for {
		n, err := w.ReadUpToAt(buf, src)
		if n > 0 {
			if err := w.WriteAt(buf[:n], dest); err != nil {
				return 0, err
			}
			src += int64(n)
			dest += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			break
		}
	}
	return dest, nil
}
