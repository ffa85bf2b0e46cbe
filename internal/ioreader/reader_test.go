package ioreader

import (
	"os"
	"path/filepath"
	"testing"
)

func newTempReader(t *testing.T, content []byte) *Reader {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.bin")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestGetBytesAdvancesCursor(t *testing.T) {
	r := newTempReader(t, []byte("hello world"))
	if _, err := r.ReadNext(4); err != nil {
		t.Fatal(err)
	}
	b, err := r.GetBytes(5)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "hello" {
		t.Fatalf("got %q, want %q", b, "hello")
	}
	if r.Cursor != 5 {
		t.Fatalf("cursor = %d, want 5", r.Cursor)
	}
}

func TestGetBytesExtendsBuffer(t *testing.T) {
	content := make([]byte, BaseChunk+100)
	for i := range content {
		content[i] = byte(i)
	}
	r := newTempReader(t, content)
	if _, err := r.ReadNext(10); err != nil {
		t.Fatal(err)
	}
	b, err := r.GetBytes(BaseChunk)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != BaseChunk {
		t.Fatalf("len = %d, want %d", len(b), BaseChunk)
	}
	for i, v := range b {
		if v != content[i] {
			t.Fatalf("byte %d = %d, want %d", i, v, content[i])
		}
	}
}

func TestGetBytesUnexpectedEOF(t *testing.T) {
	r := newTempReader(t, []byte("abc"))
	if _, err := r.ReadNext(3); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetBytes(10); err == nil {
		t.Fatal("expected error at EOF")
	}
}

func TestSkipWithinBuffer(t *testing.T) {
	r := newTempReader(t, []byte("0123456789"))
	if _, err := r.ReadNext(10); err != nil {
		t.Fatal(err)
	}
	if err := r.Skip(3); err != nil {
		t.Fatal(err)
	}
	b, err := r.GetBytes(2)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "34" {
		t.Fatalf("got %q, want %q", b, "34")
	}
}

func TestReadU32BE(t *testing.T) {
	r := newTempReader(t, []byte{0x00, 0x00, 0x01, 0x00})
	if _, err := r.ReadNext(4); err != nil {
		t.Fatal(err)
	}
	v, err := r.ReadU32BE()
	if err != nil {
		t.Fatal(err)
	}
	if v != 256 {
		t.Fatalf("got %d, want 256", v)
	}
}

func TestWriteAtCurrentOffsetAdvancesCursor(t *testing.T) {
	r := newTempReader(t, []byte("0123456789"))
	if _, err := r.ReadAtOffset(10, 0); err != nil {
		t.Fatal(err)
	}
	if err := r.Skip(2); err != nil {
		t.Fatal(err)
	}
	if err := r.WriteAtCurrentOffset([]byte("XY")); err != nil {
		t.Fatal(err)
	}

	got, err := r.ReadExactAt(10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "01XY456789" {
		t.Fatalf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	r := newTempReader(t, []byte("0123456789"))
	if err := r.Truncate(4); err != nil {
		t.Fatal(err)
	}
	size, err := r.Size()
	if err != nil {
		t.Fatal(err)
	}
	if size != 4 {
		t.Fatalf("size = %d, want 4", size)
	}
}
