package ingest

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/master-kurosawa/music-maid/internal/oggcrc"
	"github.com/master-kurosawa/music-maid/internal/store"
)

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDispatchUnknownFileIsSkipped(t *testing.T) {
	path := writeFile(t, []byte("just some random bytes, not audio at all"))
	_, ok, err := Dispatch(path)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false for unrecognized magic")
	}
}

func TestDispatchTooShortIsSkipped(t *testing.T) {
	path := writeFile(t, []byte("ab"))
	_, ok, err := Dispatch(path)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected ok=false for truncated file")
	}
}

func blockHeader(last bool, blockType byte, length int) []byte {
	b0 := blockType
	if last {
		b0 |= 0x80
	}
	return []byte{b0, byte(length >> 16), byte(length >> 8), byte(length)}
}

func TestDispatchFLAC(t *testing.T) {
	var vendor []byte
	vendor = append(vendor, "ref"...)
	var body []byte
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(vendor)))
	body = append(body, u32[:]...)
	body = append(body, vendor...)
	comment := "TITLE=Song"
	binary.LittleEndian.PutUint32(u32[:], 1)
	body = append(body, u32[:]...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(comment)))
	body = append(body, u32[:]...)
	body = append(body, comment...)

	var data []byte
	data = append(data, "fLaC"...)
	data = append(data, blockHeader(true, 4, len(body))...)
	data = append(data, body...)

	path := writeFile(t, data)
	meta, ok, err := Dispatch(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ok=true for FLAC file")
	}
	if meta.File.Format != store.FormatFLAC {
		t.Fatalf("format = %q", meta.File.Format)
	}
	if len(meta.Metas) != 1 || meta.Metas[0].Vendor != "ref" {
		t.Fatalf("metas = %+v", meta.Metas)
	}
	if len(meta.Comments) != 1 || meta.Comments[0][0].Key != "title" {
		t.Fatalf("comments = %+v", meta.Comments)
	}
}

func buildOggPage(headerType byte, serial, seq uint32, payload []byte) []byte {
	var lacing []byte
	remaining := len(payload)
	for remaining >= 255 {
		lacing = append(lacing, 255)
		remaining -= 255
	}
	lacing = append(lacing, byte(remaining))

	header := make([]byte, 27)
	copy(header[0:4], []byte("OggS"))
	header[5] = headerType
	binary.BigEndian.PutUint32(header[14:18], serial)
	binary.BigEndian.PutUint32(header[18:22], seq)
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

func TestDispatchOggOpus(t *testing.T) {
	headPayload := append([]byte("OpusHead"), []byte{1, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}...)
	page1 := buildOggPage(0x02, 1, 0, headPayload)

	var u32 [4]byte
	var body []byte
	vendor := "libopus"
	binary.LittleEndian.PutUint32(u32[:], uint32(len(vendor)))
	body = append(body, u32[:]...)
	body = append(body, vendor...)
	binary.LittleEndian.PutUint32(u32[:], 1)
	body = append(body, u32[:]...)
	comment := "ARTIST=Band"
	binary.LittleEndian.PutUint32(u32[:], uint32(len(comment)))
	body = append(body, u32[:]...)
	body = append(body, comment...)

	tagsPayload := append([]byte("OpusTags"), body...)
	page2 := buildOggPage(0x00, 1, 1, tagsPayload)
	page3 := buildOggPage(0x04, 1, 2, []byte("audio-frame-data"))

	data := append(append(page1, page2...), page3...)
	path := writeFile(t, data)

	meta, ok, err := Dispatch(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ok=true for Opus file")
	}
	if meta.File.Format != store.FormatOpus {
		t.Fatalf("format = %q", meta.File.Format)
	}
	if len(meta.Metas) != 1 || meta.Metas[0].Vendor != "libopus" {
		t.Fatalf("metas = %+v", meta.Metas)
	}
	if len(meta.Comments) != 1 || meta.Comments[0][0].Key != "artist" {
		t.Fatalf("comments = %+v", meta.Comments)
	}
}

func TestDispatchNonOpusOgg(t *testing.T) {
	page := buildOggPage(0x06, 1, 0, []byte("theoraplainheader"))
	path := writeFile(t, page)

	meta, ok, err := Dispatch(path)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected ok=true for generic Ogg file")
	}
	if meta.File.Format != store.FormatOgg {
		t.Fatalf("format = %q", meta.File.Format)
	}
	if len(meta.Metas) != 0 {
		t.Fatalf("expected empty metadata for non-Opus ogg, got %+v", meta.Metas)
	}
}
