package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/franz/ridgemont-catalog/internal/util"
)

// Stats counts pipeline outcomes
type Stats struct {
	Processed int
	Succeeded int
	Failed    int
	Abandoned int
	Skipped   int
	Bytes     int64
}

type counters struct {
	processed, succeeded, failed, abandoned, skipped, bytes atomic.Int64
}

func (c *counters) record(res *Result, err error) {
	c.processed.Add(1)
	switch {
	case errors.Is(err, ErrInFlight):
		c.skipped.Add(1)
	case res == nil || err != nil:
		c.failed.Add(1)
	case res.State == StateAbandoned:
		c.abandoned.Add(1)
	default:
		c.succeeded.Add(1)
		c.bytes.Add(res.Bytes)
	}
}

func (c *counters) stats() Stats {
	return Stats{
		Processed: int(c.processed.Load()),
		Succeeded: int(c.succeeded.Load()),
		Failed:    int(c.failed.Load()),
		Abandoned: int(c.abandoned.Load()),
		Skipped:   int(c.skipped.Load()),
		Bytes:     c.bytes.Load(),
	}
}

// ProcessAll runs paths through p with the given number of workers and
// returns the results in input order
func ProcessAll(ctx context.Context, p *Pipeline, paths []string, workers int) ([]*Result, Stats) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]*Result, len(paths))
	var c counters

	jobs := make(chan int, workers*2)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if ctx.Err() != nil {
					return
				}
				res, err := p.Process(ctx, paths[idx])
				if res == nil && err != nil {
					res = &Result{SrcPath: paths[idx], State: StateFailed, Err: err}
				}
				results[idx] = res
				c.record(res, err)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range paths {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()
	wg.Wait()

	return results, c.stats()
}

// WatcherConfig holds watcher configuration
type WatcherConfig struct {
	Dir      string
	Pipeline *Pipeline
	Workers  int // default 1
}

// Watcher feeds files dropped into a folder through the pipeline
type Watcher struct {
	dir      string
	pipeline *Pipeline
	workers  int
	c        counters
}

// NewWatcher creates a watcher for cfg.Dir
func NewWatcher(cfg *WatcherConfig) (*Watcher, error) {
	if cfg.Dir == "" || cfg.Pipeline == nil {
		return nil, fmt.Errorf("%w: watcher needs a directory and a pipeline", util.ErrInvalidConfig)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Watcher{dir: cfg.Dir, pipeline: cfg.Pipeline, workers: workers}, nil
}

// Pending lists files already in the folder that the pipeline accepts,
// sorted by name
func (w *Watcher) Pending() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", w.dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.dir, e.Name())
		if w.pipeline.Accepts(path) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Drain processes every file already waiting in the folder
func (w *Watcher) Drain(ctx context.Context) (Stats, error) {
	paths, err := w.Pending()
	if err != nil {
		return Stats{}, err
	}
	if len(paths) == 0 {
		return Stats{}, nil
	}
	util.InfoLog("Found %d existing file(s) to process", len(paths))
	results, stats := ProcessAll(ctx, w.pipeline, paths, w.workers)
	for _, res := range results {
		if res != nil {
			w.c.record(res, res.Err)
		}
	}
	return stats, nil
}

// Stats returns the totals since the watcher was created
func (w *Watcher) Stats() Stats {
	return w.c.stats()
}

// Run drains existing files, then processes new files until ctx is
// cancelled. The folder watch is registered before draining so files
// dropped meanwhile are not missed.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create watch folder: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	if _, err := w.Drain(ctx); err != nil {
		return err
	}

	jobs := make(chan string, w.workers*4)
	var wg sync.WaitGroup
	for i := 0; i < w.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				res, err := w.pipeline.Process(ctx, path)
				w.c.record(res, err)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
		s := w.c.stats()
		util.InfoLog("Watcher stopped: %d processed, %d succeeded, %d failed", s.Processed, s.Succeeded, s.Failed)
	}()

	util.InfoLog("Watching %s", w.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			// moves into the folder arrive as Create
			if !event.Has(fsnotify.Create) || !w.pipeline.Accepts(event.Name) {
				continue
			}
			select {
			case jobs <- event.Name:
			case <-ctx.Done():
				return nil
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			util.WarnLog("Watch error: %v", err)
		}
	}
}
