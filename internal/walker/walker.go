// Package walker implements the directory walker and bounded-concurrency
// task pool (spec §5, component H): it lists every file under a root
// directory up front, then fans out to ingest.Dispatch across a semaphore-
// bounded pool of goroutines, pushing successful results onto the
// write-back queue.
package walker

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/master-kurosawa/music-maid/internal/ingest"
	"github.com/master-kurosawa/music-maid/internal/store"
)

// list walks root and returns every regular file path beneath it, mirroring
// the original's "emits a flat list of paths before task spawning begins,
// so there is no pipeline back-pressure between walking and parsing" (spec
// §5).
func list(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Run lists root, then ingests every file it finds with up to
// maxConcurrentTasks files open at once, pushing each successfully parsed
// file onto queue. A canceled ctx keeps files that have not started yet
// from being ingested; a file whose parse has already begun is not
// interrupted, and its record is still pushed onto queue.
func Run(ctx context.Context, root string, maxConcurrentTasks int, q *store.Queue, log *zap.SugaredLogger) error {
	paths, err := list(root)
	if err != nil {
		return err
	}

	sem := semaphore.NewWeighted(int64(maxConcurrentTasks))
	g, gctx := errgroup.WithContext(ctx)

	for _, path := range paths {
		path := path
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)

			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			meta, ok, err := ingest.Dispatch(path)
			if err != nil {
				log.Warnw("ingest failed, skipping file", "path", path, "error", err)
				return nil
			}
			if !ok {
				return nil
			}
			q.Push(meta)
			return nil
		})
	}

	return g.Wait()
}
