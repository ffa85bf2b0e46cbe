package store

import (
	"fmt"
	"testing"

	"github.com/master-kurosawa/music-maid/internal/logging"
)

func TestQueueFlushesOnLimitAndFinish(t *testing.T) {
	s := openTestStore(t)
	q := NewQueue(s, logging.Nop())

	for i := 0; i < QueueLimit+3; i++ {
		path := fmt.Sprintf("/music/file%d.flac", i)
		q.Push(AudioFileMeta{File: AudioFile{Path: path, Name: "file.flac", Format: FormatFLAC}})
	}
	q.Finish()

	var count int
	if err := s.DB.Get(&count, `SELECT count(*) FROM files`); err != nil {
		t.Fatal(err)
	}
	if count != QueueLimit+3 {
		t.Fatalf("files count = %d, want %d", count, QueueLimit+3)
	}
}
