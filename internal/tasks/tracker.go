package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/api"
)

// DefaultPollInterval is how often a processing task is checked.
const DefaultPollInterval = 3 * time.Second

var (
	// ErrRemoved is returned by Submit when the file was cancelled while its
	// upload was in flight.
	ErrRemoved = errors.New("file was removed during upload")
	// ErrClosed is returned when the tracker has been shut down.
	ErrClosed = errors.New("tracker is closed")
	// ErrUnknownFile is returned for keys that are not in the selection.
	ErrUnknownFile = errors.New("file is not selected")
	// ErrInFlight is returned by Submit while the same file is still uploading.
	ErrInFlight = errors.New("file is already uploading")
)

// Backend is the part of the API client the tracker needs.
type Backend interface {
	SubmitPDF(ctx context.Context, filename string, r io.Reader) (api.SubmitResponse, error)
	TaskStatus(ctx context.Context, taskID string) (api.TaskStatusResponse, error)
	ResolveAudioURL(path string) string
}

// Tracker submits selected files to the backend and polls each job until it
// settles. Every file has its own poll loop; state lives in a Store.
type Tracker struct {
	backend   Backend
	store     *Store
	selection *Selection
	clock     Clock
	interval  time.Duration
	logger    *log.Logger
	open      func(File) (io.ReadCloser, error)
	updates   chan string

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock replaces the ticker source.
func WithClock(c Clock) TrackerOption {
	return func(t *Tracker) { t.clock = c }
}

// WithPollInterval sets the delay between status checks.
func WithPollInterval(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// WithOpener replaces how file contents are read for upload.
func WithOpener(open func(File) (io.ReadCloser, error)) TrackerOption {
	return func(t *Tracker) { t.open = open }
}

// WithStore makes the tracker operate on an existing store.
func WithStore(s *Store) TrackerOption {
	return func(t *Tracker) { t.store = s }
}

// NewTracker returns a tracker that submits to backend.
func NewTracker(backend Backend, opts ...TrackerOption) *Tracker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		backend:   backend,
		store:     NewStore(),
		selection: NewSelection(),
		clock:     RealClock,
		interval:  DefaultPollInterval,
		logger:    log.Default().WithPrefix("tracker"),
		open:      openFile,
		updates:   make(chan string, 64),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func openFile(f File) (io.ReadCloser, error) {
	return os.Open(f.Path)
}

// Store returns the tracker's store.
func (t *Tracker) Store() *Store { return t.store }

// Selection returns the tracker's selection.
func (t *Tracker) Selection() *Selection { return t.selection }

// Updates delivers the keys of files whose state changed. Sends never block;
// a slow reader may miss keys and should re-read Snapshot.
func (t *Tracker) Updates() <-chan string { return t.updates }

// Get returns the state of one file.
func (t *Tracker) Get(key string) (FileTask, bool) { return t.store.Get(key) }

// Snapshot returns the state of every tracked file.
func (t *Tracker) Snapshot() []FileTask { return t.store.Snapshot() }

// Add selects files and creates idle entries for the new ones.
func (t *Tracker) Add(files ...File) []File {
	added := t.selection.Add(files...)
	for _, f := range added {
		t.store.Upsert(f.Key())
		t.notify(f.Key())
	}
	return added
}

// SubmitKey submits the selected file with the given key.
func (t *Tracker) SubmitKey(ctx context.Context, key string) error {
	f, ok := t.selection.Lookup(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFile, key)
	}
	return t.Submit(ctx, f)
}

// Submit uploads f and starts polling its job. Any previous attempt's state is
// discarded first, so Submit doubles as retry. A second Submit for a file
// whose upload is in flight returns ErrInFlight. Failures are recorded on the
// file and also returned.
func (t *Tracker) Submit(ctx context.Context, f File) error {
	if t.isClosed() {
		return ErrClosed
	}
	t.selection.Add(f)
	key := f.Key()

	if !t.store.begin(key) {
		return fmt.Errorf("%w: %s", ErrInFlight, key)
	}
	t.notify(key)

	resp, err := t.upload(ctx, f)
	if err != nil {
		t.logger.Error("submission failed", "file", key, "err", err)
		if t.store.apply(key, "", WithStatus(StatusError), WithErrorMessage(err.Error())) {
			t.notify(key)
		}
		return fmt.Errorf("submit %s: %w", f.Name, err)
	}

	if !t.store.apply(key, "", WithStatus(StatusProcessing), WithTaskID(resp.TaskID)) {
		t.logger.Debug("file removed before upload finished", "file", key, "task", resp.TaskID)
		return ErrRemoved
	}
	t.notify(key)
	t.logger.Info("task accepted", "file", key, "task", resp.TaskID)

	return t.startPolling(key, resp.TaskID)
}

func (t *Tracker) upload(ctx context.Context, f File) (api.SubmitResponse, error) {
	rc, err := t.open(f)
	if err != nil {
		return api.SubmitResponse{}, fmt.Errorf("unable to open file: %w", err)
	}
	defer rc.Close() //nolint:errcheck
	return t.backend.SubmitPDF(ctx, f.Name, rc)
}

func (t *Tracker) startPolling(key, taskID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(t.ctx)
	ticker := t.clock.NewTicker(t.interval)
	t.store.setTimer(taskID, func() {
		cancel()
		ticker.Stop()
	})

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				if !t.poll(ctx, key, taskID) {
					return
				}
			}
		}
	}()
	return nil
}

// poll runs one tick and reports whether polling should continue.
func (t *Tracker) poll(ctx context.Context, key, taskID string) bool {
	cur, ok := t.store.Get(key)
	if !ok || cur.TaskID != taskID || cur.Status.IsTerminal() {
		t.logger.Debug("task already settled, stopping poll", "file", key, "task", taskID)
		t.store.stopTimer(taskID)
		return false
	}

	resp, err := t.backend.TaskStatus(ctx, taskID)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		t.logger.Error("polling failed", "file", key, "task", taskID, "err", err)
		t.settle(key, taskID, WithStatus(StatusError), WithErrorMessage(err.Error()))
		return false
	}

	switch {
	case resp.Status.InProgress():
		if t.store.apply(key, taskID, WithStatus(StatusProcessing)) {
			t.notify(key)
		}
		return true
	case resp.Status == api.StateSuccess:
		audioURL := t.backend.ResolveAudioURL(resp.Result)
		t.logger.Info("task finished", "file", key, "task", taskID, "audio", audioURL)
		t.settle(key, taskID, WithStatus(StatusSuccess), WithAudioURL(audioURL))
	case resp.Status == api.StateFailure:
		msg := resp.ErrorInfo
		if msg == "" {
			msg = "task failed"
		}
		t.logger.Warn("task failed", "file", key, "task", taskID, "reason", msg)
		t.settle(key, taskID, WithStatus(StatusError), WithErrorMessage(msg))
	default:
		t.logger.Warn("unexpected task status", "file", key, "task", taskID, "status", resp.Status)
		t.settle(key, taskID,
			WithStatus(StatusError),
			WithErrorMessage(fmt.Sprintf("unexpected task status: %s", resp.Status)))
	}
	return false
}

// settle stops the task's timer and records its terminal state.
func (t *Tracker) settle(key, taskID string, opts ...Option) {
	t.store.stopTimer(taskID)
	if t.store.apply(key, taskID, opts...) {
		t.notify(key)
	}
}

// Cancel drops a file from the selection and the store, stopping its poll
// timer whatever its status. Cancelling an unknown key does nothing.
func (t *Tracker) Cancel(key string) {
	removed := t.selection.Remove(key)
	if _, ok := t.store.Get(key); ok {
		t.store.Remove(key)
		removed = true
	}
	if removed {
		t.logger.Debug("file cancelled", "file", key)
		t.notify(key)
	}
}

// Wait blocks until the file with key settles, is removed, or ctx ends.
func (t *Tracker) Wait(ctx context.Context, key string) (FileTask, error) {
	for {
		ft, ok := t.store.Get(key)
		if !ok {
			return FileTask{}, ErrRemoved
		}
		if ft.Status.IsTerminal() {
			return ft, nil
		}
		if ft.Status == StatusIdle {
			return ft, fmt.Errorf("%s has not been submitted", key)
		}
		select {
		case <-ctx.Done():
			return ft, ctx.Err()
		case <-t.ctx.Done():
			return ft, ErrClosed
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Close stops every poll loop and waits for them to exit. The tracker
// rejects new submissions afterwards.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	t.store.stopAll()
	t.wg.Wait()
}

func (t *Tracker) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tracker) notify(key string) {
	select {
	case t.updates <- key:
	default:
	}
}
