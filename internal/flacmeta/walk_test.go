package flacmeta

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/master-kurosawa/music-maid/internal/ioreader"
)

func blockHeader(last bool, blockType byte, length int) []byte {
	b0 := blockType
	if last {
		b0 |= lastBlockMask
	}
	return []byte{b0, byte(length >> 16), byte(length >> 8), byte(length)}
}

func vorbisBlock(vendor string, comments []string) []byte {
	var buf []byte
	var u32 [4]byte
	binary.LittleEndian.PutUint32(u32[:], uint32(len(vendor)))
	buf = append(buf, u32[:]...)
	buf = append(buf, vendor...)
	binary.LittleEndian.PutUint32(u32[:], uint32(len(comments)))
	buf = append(buf, u32[:]...)
	for _, c := range comments {
		binary.LittleEndian.PutUint32(u32[:], uint32(len(c)))
		buf = append(buf, u32[:]...)
		buf = append(buf, c...)
	}
	return buf
}

func pictureBlock(pictureType uint32, mime, desc string, data []byte) []byte {
	buf := make([]byte, 0, 32+len(mime)+len(desc)+len(data))
	var u32 [4]byte
	put := func(v uint32) {
		binary.BigEndian.PutUint32(u32[:], v)
		buf = append(buf, u32[:]...)
	}
	put(pictureType)
	put(uint32(len(mime)))
	buf = append(buf, mime...)
	put(uint32(len(desc)))
	buf = append(buf, desc...)
	put(0) // width
	put(0) // height
	put(0) // color depth
	put(0) // indexed color number
	put(uint32(len(data)))
	buf = append(buf, data...)
	return buf
}

func openReader(t *testing.T, data []byte) *ioreader.Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stream.flac")
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

func TestWalkVorbisCommentAndPadding(t *testing.T) {
	vorbis := vorbisBlock("reference libFLAC", []string{"TITLE=Song"})
	var data []byte
	data = append(data, blockHeader(false, blockVorbisComment, len(vorbis))...)
	data = append(data, vorbis...)
	padLen := 16
	data = append(data, blockHeader(true, blockPadding, padLen)...)
	data = append(data, make([]byte, padLen)...)

	r := openReader(t, data)
	res, err := Walk(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Metas) != 1 || len(res.Comments) != 1 {
		t.Fatalf("got %d metas, %d comment groups", len(res.Metas), len(res.Comments))
	}
	if res.Metas[0].Vendor != "reference libFLAC" {
		t.Fatalf("vendor = %q", res.Metas[0].Vendor)
	}
	if len(res.Comments[0]) != 1 || res.Comments[0][0].Key != "title" {
		t.Fatalf("comments = %+v", res.Comments[0])
	}
	if len(res.Paddings) != 1 || res.Paddings[0].ByteSize != int64(padLen) {
		t.Fatalf("padding = %+v", res.Paddings)
	}
}

func TestWalkPictureAndSkipsUnknown(t *testing.T) {
	pic := pictureBlock(3, "image/png", "cover", []byte("PNGDATA"))
	app := []byte("appdata123")

	var data []byte
	data = append(data, blockHeader(false, blockApplication, len(app))...)
	data = append(data, app...)
	data = append(data, blockHeader(true, blockPicture, len(pic))...)
	data = append(data, pic...)
	data = append(data, []byte("TRAILING-AUDIO")...) // should never be touched

	r := openReader(t, data)
	res, err := Walk(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Pictures) != 1 {
		t.Fatalf("got %d pictures, want 1", len(res.Pictures))
	}
	if res.Pictures[0].MIME != "image/png" || res.Pictures[0].Description != "cover" {
		t.Fatalf("picture = %+v", res.Pictures[0])
	}

	trailing, err := r.GetBytes(len("TRAILING-AUDIO"))
	if err != nil {
		t.Fatal(err)
	}
	if string(trailing) != "TRAILING-AUDIO" {
		t.Fatalf("reader not positioned after last block: got %q", trailing)
	}
}

func TestWalkStopsAtLastBlockBit(t *testing.T) {
	pad := blockHeader(true, blockPadding, 4)
	data := append(append([]byte{}, pad...), []byte{0, 0, 0, 0}...)
	data = append(data, []byte("shouldneverberead")...)

	r := openReader(t, data)
	res, err := Walk(r)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Paddings) != 1 {
		t.Fatalf("got %d paddings, want 1", len(res.Paddings))
	}
}
