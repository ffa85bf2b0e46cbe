package store

import (
	"sync"

	"go.uber.org/zap"
)

// QueueLimit is the batch size at which pending records are flushed to the
// writer goroutine — a direct port of src/queue.rs's QUEUE_LIMIT.
const QueueLimit = 25

// QueueChannelCapacity bounds how many batches may be in flight to the
// writer before Push blocks, mirroring the original's mpsc channel capacity.
const QueueChannelCapacity = 100

// Queue batches AudioFileMeta records produced by concurrent ingest workers
// and ships them to a single writer goroutine that commits one transaction
// per batch (spec §5, component I). Push is safe for concurrent use; one
// Queue is shared by every ingest worker.
type Queue struct {
	store *Store
	log   *zap.SugaredLogger

	mu      sync.Mutex
	pending []AudioFileMeta

	batches chan []AudioFileMeta
	done    chan struct{}
}

// NewQueue starts the writer goroutine and returns a ready-to-use Queue.
func NewQueue(s *Store, log *zap.SugaredLogger) *Queue {
	q := &Queue{
		store:   s,
		log:     log,
		pending: make([]AudioFileMeta, 0, QueueLimit),
		batches: make(chan []AudioFileMeta, QueueChannelCapacity),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for batch := range q.batches {
		if err := q.store.InsertBatch(batch); err != nil {
			q.log.Errorw("write-back batch failed", "size", len(batch), "error", err)
		}
	}
}

// Push enqueues item, flushing a batch to the writer once QueueLimit items
// have accumulated.
func (q *Queue) Push(item AudioFileMeta) {
	q.mu.Lock()
	q.pending = append(q.pending, item)
	var flush []AudioFileMeta
	if len(q.pending) >= QueueLimit {
		flush = q.pending
		q.pending = make([]AudioFileMeta, 0, QueueLimit)
	}
	q.mu.Unlock()

	if flush != nil {
		q.batches <- flush
	}
}

// Finish flushes any remaining partial batch, then waits for the writer
// goroutine to drain and exit.
func (q *Queue) Finish() {
	q.mu.Lock()
	flush := q.pending
	q.pending = nil
	q.mu.Unlock()

	if len(flush) > 0 {
		q.batches <- flush
	}
	close(q.batches)
	<-q.done
}
