// Package oggpage implements the Ogg page framing layer: it hides segment
// tables and 27-byte page headers from callers, presenting a logical stream
// as a flat byte sequence, and supports writing back into that stream with
// automatic CRC recomputation of every touched page.
package oggpage

import (
	"encoding/binary"

	"github.com/master-kurosawa/music-maid/internal/corruption"
	"github.com/master-kurosawa/music-maid/internal/ioreader"
	"github.com/master-kurosawa/music-maid/internal/oggcrc"
)

// Marker is the 4-byte Ogg page capture pattern, "OggS".
var Marker = [4]byte{0x4F, 0x67, 0x67, 0x53}

const (
	headerPrefixLen = 27 // fixed portion, up to and including the segment count
	crcOffset       = 22 // offset of the 4-byte CRC field within the header
)

// Cursor walks a logical Ogg stream on top of an ioreader.Reader. It borrows
// the reader exclusively for its lifetime: the reader must not be used
// directly while a Cursor is alive.
type Cursor struct {
	R             *ioreader.Reader
	Cursor        int    // position within the current page's payload
	EndsStream    bool   // true once the current page is the stream's last
	SegmentSize   int    // total payload size of the current page
	LastHeaderPtr int64  // absolute offset of the current page's header
	PageNumber    uint32 // page sequence number of the current page
	lastHeader    []byte // header bytes (CRC zeroed) + lacing bytes, for CRC recompute
}

// New constructs a Cursor and immediately parses the first header. The
// reader must be positioned exactly at the start of an Ogg page.
func New(r *ioreader.Reader) (*Cursor, error) {
	c := &Cursor{R: r, EndsStream: true}
	if err := c.ParseHeader(); err != nil {
		return nil, err
	}
	return c, nil
}

// HeaderLength returns the byte length of the most recently parsed header,
// including its lacing table.
func (c *Cursor) HeaderLength() int {
	return len(c.lastHeader)
}

// ParseHeader reads the next 27-byte header prefix plus its lacing bytes.
// Must only be called when Cursor == SegmentSize (the previous payload was
// fully consumed); callers that violate this get a Corruption, mirroring the
// original design's hard assertion.
func (c *Cursor) ParseHeader() error {
	if c.Cursor != c.SegmentSize {
		return corruption.New(c.R.Path, c.R.Offset(), "attempted to parse Ogg header mid-segment (cursor=%d, segment_size=%d)", c.Cursor, c.SegmentSize)
	}

	c.LastHeaderPtr = c.R.Offset()
	prefix, err := c.R.GetBytes(headerPrefixLen)
	if err != nil {
		return err
	}
	if prefix[0] != Marker[0] || prefix[1] != Marker[1] || prefix[2] != Marker[2] || prefix[3] != Marker[3] {
		return corruption.New(c.R.Path, c.LastHeaderPtr, "Ogg marker mismatch, possibly corrupted file")
	}

	header := make([]byte, headerPrefixLen)
	copy(header, prefix)

	headerType := prefix[5]
	pageSeq := binary.BigEndian.Uint32(prefix[18:22])
	nsegments := int(prefix[26])

	segments, err := c.R.GetBytes(nsegments)
	if err != nil {
		return err
	}

	segmentTotal := 0
	for _, b := range segments {
		segmentTotal += int(b)
	}

	lastHeader := make([]byte, 0, headerPrefixLen+nsegments)
	lastHeader = append(lastHeader, header[0:crcOffset]...)
	lastHeader = append(lastHeader, 0, 0, 0, 0) // zero the CRC field
	lastHeader = append(lastHeader, header[26])
	lastHeader = append(lastHeader, segments...)

	c.lastHeader = lastHeader
	c.SegmentSize = segmentTotal
	c.PageNumber = pageSeq
	c.EndsStream = headerType > 4 || segmentTotal%255 != 0
	c.Cursor = 0
	return nil
}

// Sync resolves a pending page-boundary crossing: if the previous payload
// read left Cursor exactly at SegmentSize, it parses the next header before
// returning, so that R.Offset()/LastHeaderPtr reflect the page the next
// read will actually come from. Callers that snapshot a position for later
// (e.g. a comment's file_ptr) must call Sync first, or risk capturing the
// stale, already-exhausted previous page's offset instead.
func (c *Cursor) Sync() error {
	return c.checkCursor()
}

// checkCursor parses the next header if the current page is exhausted.
func (c *Cursor) checkCursor() error {
	switch {
	case c.Cursor == c.SegmentSize:
		return c.ParseHeader()
	case c.Cursor > c.SegmentSize:
		return corruption.New(c.R.Path, c.R.Offset(), "cursor ran past segment boundary")
	default:
		return nil
	}
}

// GetBytes serves n payload bytes, transparently crossing page boundaries.
// Returns fewer than n bytes only if the stream ended.
func (c *Cursor) GetBytes(n int) ([]byte, error) {
	result := make([]byte, 0, n)
	remaining := n
	for {
		if err := c.checkCursor(); err != nil {
			return nil, err
		}
		leftInSegment := c.SegmentSize - c.Cursor
		if leftInSegment == 0 {
			return result, nil
		}
		if remaining > leftInSegment {
			b, err := c.R.GetBytes(leftInSegment)
			if err != nil {
				return nil, err
			}
			result = append(result, b...)
			c.Cursor += leftInSegment
			remaining -= leftInSegment
		} else {
			b, err := c.R.GetBytes(remaining)
			if err != nil {
				return nil, err
			}
			result = append(result, b...)
			c.Cursor += remaining
			return result, nil
		}
	}
}

// ParseTillEnd consumes payload bytes until the stream ends and the current
// page is exhausted, returning the concatenated payload.
func (c *Cursor) ParseTillEnd() ([]byte, error) {
	result := make([]byte, 0, c.SegmentSize-c.Cursor)

	if err := c.checkCursor(); err != nil {
		return nil, err
	}
	for !c.EndsStream {
		b, err := c.GetBytes(c.SegmentSize - c.Cursor)
		if err != nil {
			return nil, err
		}
		result = append(result, b...)
		if err := c.checkCursor(); err != nil {
			return nil, err
		}
	}
	rest, err := c.GetBytes(c.SegmentSize - c.Cursor)
	if err != nil {
		return nil, err
	}
	return append(result, rest...), nil
}

// SafeSkip advances past n payload bytes without materializing them,
// re-parsing headers on page boundaries.
func (c *Cursor) SafeSkip(n int) error {
	remaining := n
	for remaining > 0 {
		if err := c.checkCursor(); err != nil {
			return err
		}
		leftInSegment := c.SegmentSize - c.Cursor
		if leftInSegment == 0 {
			return nil
		}
		step := remaining
		if step > leftInSegment {
			step = leftInSegment
		}
		if err := c.R.Skip(int64(step)); err != nil {
			return err
		}
		c.Cursor += step
		remaining -= step
	}
	return c.checkCursor()
}

// writeLastCrc computes the CRC of segmentBytes (header-with-zeroed-CRC
// followed by payload) and writes it little-endian at LastHeaderPtr+22.
func (c *Cursor) writeLastCrc(segmentBytes []byte) error {
	var crcBytes [4]byte
	binary.LittleEndian.PutUint32(crcBytes[:], oggcrc.Checksum(segmentBytes))
	return c.R.WriteAt(crcBytes[:], c.LastHeaderPtr+crcOffset)
}

// RecalculateLastCrc reads the full page at LastHeaderPtr (header + payload),
// zeroes its CRC field in memory, recomputes the checksum, and writes it
// back. Used whenever a page's payload is touched by a write.
func (c *Cursor) RecalculateLastCrc() error {
	total := len(c.lastHeader) + c.SegmentSize
	buf, err := c.R.ReadExactAt(total, c.LastHeaderPtr)
	if err != nil {
		return err
	}
	for i := crcOffset; i < crcOffset+4; i++ {
		buf[i] = 0
	}
	return c.writeLastCrc(buf)
}

// WriteStream writes buf into the payload starting at the current position,
// chunked at page boundaries, recomputing the CRC of every page it touches.
func (c *Cursor) WriteStream(buf []byte) error {
	if err := c.checkCursor(); err != nil {
		return err
	}

	remainingInSegment := c.SegmentSize - c.Cursor
	var chunk, rest []byte
	if len(buf) > remainingInSegment {
		chunk, rest = buf[:remainingInSegment], buf[remainingInSegment:]
	} else {
		chunk, rest = buf, nil
	}

	if err := c.R.WriteAtCurrentOffset(chunk); err != nil {
		return err
	}
	c.Cursor += len(chunk)

	if c.Cursor == c.SegmentSize {
		if len(chunk) == c.SegmentSize {
			full := make([]byte, 0, len(c.lastHeader)+len(chunk))
			full = append(full, c.lastHeader...)
			full = append(full, chunk...)
			if err := c.writeLastCrc(full); err != nil {
				return err
			}
		} else {
			if err := c.RecalculateLastCrc(); err != nil {
				return err
			}
		}
		if err := c.ParseHeader(); err != nil {
			return err
		}
	} else if err := c.RecalculateLastCrc(); err != nil {
		// The write ended mid-page: this page was touched too.
		return err
	}

	if len(rest) > 0 {
		return c.WriteStream(rest)
	}
	return nil
}

// PadTillEnd writes zero bytes until the current logical stream ends.
func (c *Cursor) PadTillEnd() error {
	for !c.EndsStream {
		if err := c.WriteStream(make([]byte, c.SegmentSize-c.Cursor)); err != nil {
			return err
		}
	}
	return c.WriteStream(make([]byte, c.SegmentSize-c.Cursor))
}

// RehashHeaders walks the remaining pages of the current stream, recomputing
// every CRC. Needed only after a writer has altered a header's size field;
// in this system it is used purely as a standalone `rehash` maintenance
// operation (see cmd/musicmaid).
func (c *Cursor) RehashHeaders() error {
	for {
		if err := c.RecalculateLastCrc(); err != nil {
			return err
		}
		if c.EndsStream {
			return nil
		}
		// SafeSkip parses the next page's header once this one is exhausted.
		if err := c.SafeSkip(c.SegmentSize - c.Cursor); err != nil {
			return err
		}
	}
}
