package oggpage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/master-kurosawa/music-maid/internal/ioreader"
	"github.com/master-kurosawa/music-maid/internal/oggcrc"
)

// buildPage assembles one Ogg page. payload must be short enough to fit a
// single lacing value list (< 255*255 bytes), and lacing is built the
// simple way: full 255-byte segments followed by one shorter terminator
// segment (even if that terminator is zero-length), matching the framing
// convention a lacing byte < 255 ends the packet.
func buildPage(headerType byte, serial, seq uint32, payload []byte) []byte {
	var lacing []byte
	remaining := len(payload)
	for remaining >= 255 {
		lacing = append(lacing, 255)
		remaining -= 255
	}
	lacing = append(lacing, byte(remaining))

	header := make([]byte, 27)
	copy(header[0:4], Marker[:])
	header[4] = 0 // version
	header[5] = headerType
	// granule position left zero
	binary.BigEndian.PutUint32(header[14:18], serial)
	binary.BigEndian.PutUint32(header[18:22], seq)
	// crc zeroed for now
	header[26] = byte(len(lacing))

	page := append(header, lacing...)
	page = append(page, payload...)

	crcInput := make([]byte, len(page))
	copy(crcInput, page)
	for i := 22; i < 26; i++ {
		crcInput[i] = 0
	}
	crc := oggcrc.Checksum(crcInput)
	binary.LittleEndian.PutUint32(page[22:26], crc)
	return page
}

func writeTemp(t *testing.T, data []byte) *ioreader.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.ogg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := ioreader.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestParseHeaderSinglePage(t *testing.T) {
	payload := []byte("hello ogg payload")
	data := buildPage(0x02, 1, 0, payload)
	r := writeTemp(t, data)

	c, err := New(r)
	if err != nil {
		t.Fatal(err)
	}
	if c.SegmentSize != len(payload) {
		t.Fatalf("segment size = %d, want %d", c.SegmentSize, len(payload))
	}
	if !c.EndsStream {
		t.Fatal("expected EndsStream for short last segment")
	}
	got, err := c.GetBytes(len(payload))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q want %q", got, payload)
	}
}

func TestGetBytesSpansPages(t *testing.T) {
	p1 := make([]byte, 255) // exactly one full lacing segment -> not end of packet
	for i := range p1 {
		p1[i] = byte(i)
	}
	p2 := []byte("tail")

	page1 := buildPage(0x00, 1, 0, p1)
	page2 := buildPage(0x04, 1, 1, p2) // header_type 4 -> end of stream
	r := writeTemp(t, append(page1, page2...))

	c, err := New(r)
	if err != nil {
		t.Fatal(err)
	}
	if c.EndsStream {
		t.Fatal("page1 alone should not end the stream (255 % 255 == 0)")
	}

	all, err := c.ParseTillEnd()
	if err != nil {
		t.Fatal(err)
	}
	want := append(append([]byte{}, p1...), p2...)
	if string(all) != string(want) {
		t.Fatalf("got %d bytes, want %d bytes", len(all), len(want))
	}
	if !c.EndsStream {
		t.Fatal("expected EndsStream after consuming final short page")
	}
}

func TestWriteStreamRecomputesCrc(t *testing.T) {
	payload := []byte("0123456789ABCDEF")
	page1 := buildPage(0x02, 7, 0, payload)
	page2 := buildPage(0x04, 7, 1, []byte("next page")) // trailing page so write_stream's parse_header has somewhere to land
	data := append(page1, page2...)
	r := writeTemp(t, data)

	c, err := New(r)
	if err != nil {
		t.Fatal(err)
	}
	replacement := []byte("XXXXXXXXXXXXXXXX") // same length as payload: full-page rewrite
	if err := c.WriteStream(replacement); err != nil {
		t.Fatal(err)
	}

	raw, err := r.ReadExactAt(len(page1), 0)
	if err != nil {
		t.Fatal(err)
	}
	want := append([]byte{}, replacement...)
	gotPayload := raw[27+1:] // 27 header bytes + 1 lacing byte (payload < 255)
	if string(gotPayload) != string(want) {
		t.Fatalf("payload after write = %q, want %q", gotPayload, want)
	}

	crcInput := append([]byte{}, raw...)
	for i := 22; i < 26; i++ {
		crcInput[i] = 0
	}
	wantCRC := oggcrc.Checksum(crcInput)
	gotCRC := binary.LittleEndian.Uint32(raw[22:26])
	if gotCRC != wantCRC {
		t.Fatalf("CRC = %d, want %d", gotCRC, wantCRC)
	}
}

func TestPadTillEnd(t *testing.T) {
	payload := []byte("abcdefgh")
	page1 := buildPage(0x04, 3, 0, payload)
	page2 := buildPage(0x04, 3, 1, []byte("next page")) // trailing page so write_stream's parse_header has somewhere to land
	data := append(page1, page2...)
	r := writeTemp(t, data)

	c, err := New(r)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.PadTillEnd(); err != nil {
		t.Fatal(err)
	}

	raw, err := r.ReadExactAt(len(page1), 0)
	if err != nil {
		t.Fatal(err)
	}
	gotPayload := raw[28:]
	for i, b := range gotPayload {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}
