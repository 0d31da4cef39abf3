// Package watch submits PDFs as they appear in a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/queue"
	"github.com/dgnsrekt/narrate/internal/tasks"
	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a file's size must stay unchanged before it is
// considered fully written.
const DefaultSettle = 500 * time.Millisecond

// Submitter is the part of the tracker the watcher drives.
type Submitter interface {
	Submit(ctx context.Context, f tasks.File) error
	Wait(ctx context.Context, key string) (tasks.FileTask, error)
	Cancel(key string)
}

// ResultFunc receives the outcome of every submitted file.
type ResultFunc func(f tasks.File, ft tasks.FileTask, err error)

// Options configures a Watcher.
type Options struct {
	Dir       string
	Settle    time.Duration
	Workers   int
	QueueSize int
	// Existing also submits PDFs already in Dir at startup.
	Existing bool
	OnResult ResultFunc
	Logger   *log.Logger
}

// Watcher feeds new PDFs in a directory through a submission queue.
type Watcher struct {
	opts    Options
	tracker Submitter
	queue   *queue.SubmitQueue
	logger  *log.Logger

	// sizes holds the last observed size of files that are still settling.
	sizes  map[string]int64
	timers map[string]*time.Timer
}

// New returns a watcher for opts.Dir.
func New(tracker Submitter, opts Options) (*Watcher, error) {
	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("unable to watch %s: %w", opts.Dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("unable to watch %s: not a directory", opts.Dir)
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("watch")
	}
	return &Watcher{
		opts:    opts,
		tracker: tracker,
		queue:   queue.New(opts.QueueSize),
		logger:  logger,
		sizes:   make(map[string]int64),
		timers:  make(map[string]*time.Timer),
	}, nil
}

// IsPDF reports whether name looks like a PDF.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer fw.Close() //nolint:errcheck

	if err := fw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("error watching %s: %w", w.opts.Dir, err)
	}
	w.logger.Info("watching dir", "dir", w.opts.Dir)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < w.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.work(ctx)
		}()
	}
	defer func() {
		w.queue.Close()
		cancel()
		wg.Wait()
	}()

	if w.opts.Existing {
		w.enqueueExisting()
	}

	fire := make(chan string)
	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !IsPDF(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.logger.Debug("fsnotify event", "file", event.Name, "event", event.Op)
			w.schedule(ctx, event.Name, fire)
		case path := <-fire:
			w.check(ctx, path, fire)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Debug("fsnotify error", "dir", w.opts.Dir, "error", err)
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, path string, fire chan<- string) {
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	if _, ok := w.sizes[path]; !ok {
		w.sizes[path] = -1
	}
	w.timers[path] = time.AfterFunc(w.opts.Settle, func() {
		select {
		case fire <- path:
		case <-ctx.Done():
		}
	})
}

// check enqueues path once two consecutive looks see the same non-zero size.
func (w *Watcher) check(ctx context.Context, path string, fire chan<- string) {
	last, ok := w.sizes[path]
	if !ok {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		w.forget(path)
		return
	}
	size := info.Size()
	if size == 0 || size != last {
		w.sizes[path] = size
		w.schedule(ctx, path, fire)
		return
	}
	w.forget(path)
	w.enqueue(path, size)
}

func (w *Watcher) forget(path string) {
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	delete(w.timers, path)
	delete(w.sizes, path)
}

func (w *Watcher) stopTimers() {
	for path := range w.timers {
		w.forget(path)
	}
}

func (w *Watcher) enqueueExisting() {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		w.logger.Error("unable to list dir", "dir", w.opts.Dir, "err", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !IsPDF(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		w.enqueue(filepath.Join(w.opts.Dir, e.Name()), info.Size())
	}
}

func (w *Watcher) enqueue(path string, size int64) {
	f := tasks.File{Name: filepath.Base(path), Path: path, Size: size}
	added, err := w.queue.Enqueue(f, false)
	switch {
	case err != nil:
		w.logger.Warn("unable to queue file", "file", f.Key(), "err", err)
	case added:
		w.logger.Info("queued", "file", f.Key())
	}
}

func (w *Watcher) work(ctx context.Context) {
	for {
		f, err := w.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		ft, err := w.process(ctx, f)
		if ctx.Err() != nil {
			return
		}
		if w.opts.OnResult != nil {
			w.opts.OnResult(f, ft, err)
		}
		// Settled files are dropped so a long-running watch does not grow.
		w.tracker.Cancel(f.Key())
	}
}

func (w *Watcher) process(ctx context.Context, f tasks.File) (tasks.FileTask, error) {
	if err := w.tracker.Submit(ctx, f); err != nil {
		return tasks.FileTask{Key: f.Key(), Status: tasks.StatusError, ErrorMessage: err.Error()}, err
	}
	ft, err := w.tracker.Wait(ctx, f.Key())
	if err != nil {
		return ft, err
	}
	if ft.Status == tasks.StatusError {
		return ft, errors.New(ft.ErrorMessage)
	}
	return ft, nil
}
