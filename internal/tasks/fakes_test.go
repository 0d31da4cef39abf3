package tasks

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/api"
)

const testBaseURL = "http://backend.test"

// manualClock hands out tickers that only fire when Tick is called.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

type manualTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &manualTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, tk)
	return tk
}

// Tick fires every live ticker once.
func (c *manualClock) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tk := range c.tickers {
		tk.mu.Lock()
		if !tk.stopped {
			select {
			case tk.ch <- time.Now():
			default:
			}
		}
		tk.mu.Unlock()
	}
}

func (c *manualClock) live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, tk := range c.tickers {
		tk.mu.Lock()
		if !tk.stopped {
			n++
		}
		tk.mu.Unlock()
	}
	return n
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

type statusReply struct {
	resp api.TaskStatusResponse
	err  error
}

// fakeBackend returns scripted replies per task id.
type fakeBackend struct {
	mu        sync.Mutex
	submitErr error
	nextID    []string
	replies   map[string][]statusReply
	calls     map[string]int
	submitted []string

	// when set, TaskStatus signals started and blocks until release is closed
	started chan string
	release chan struct{}
}

func newFakeBackend(ids ...string) *fakeBackend {
	return &fakeBackend{
		nextID:  ids,
		replies: make(map[string][]statusReply),
		calls:   make(map[string]int),
	}
}

func (b *fakeBackend) script(taskID string, replies ...statusReply) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.replies[taskID] = append(b.replies[taskID], replies...)
}

func (b *fakeBackend) SubmitPDF(_ context.Context, filename string, r io.Reader) (api.SubmitResponse, error) {
	_, _ = io.ReadAll(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitted = append(b.submitted, filename)
	if b.submitErr != nil {
		return api.SubmitResponse{}, b.submitErr
	}
	if len(b.nextID) == 0 {
		return api.SubmitResponse{}, errors.New("no task ids left")
	}
	id := b.nextID[0]
	b.nextID = b.nextID[1:]
	return api.SubmitResponse{TaskID: id, Message: "queued"}, nil
}

func (b *fakeBackend) TaskStatus(_ context.Context, taskID string) (api.TaskStatusResponse, error) {
	b.mu.Lock()
	b.calls[taskID]++
	var reply statusReply
	if q := b.replies[taskID]; len(q) > 0 {
		reply = q[0]
		b.replies[taskID] = q[1:]
	} else {
		reply = statusReply{resp: api.TaskStatusResponse{TaskID: taskID, Status: api.StatePending}}
	}
	started, release := b.started, b.release
	b.mu.Unlock()

	if started != nil {
		started <- taskID
		<-release
	}
	return reply.resp, reply.err
}

func (b *fakeBackend) ResolveAudioURL(path string) string {
	return api.ResolveAudioURL(testBaseURL, path)
}

func (b *fakeBackend) callCount(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[taskID]
}

func reply(id string, state api.TaskState) statusReply {
	return statusReply{resp: api.TaskStatusResponse{TaskID: id, Status: state}}
}

func newTestTracker(t *testing.T, b *fakeBackend) (*Tracker, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	tr := NewTracker(b,
		WithClock(clock),
		WithLogger(log.New(io.Discard)),
		WithOpener(func(File) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("%PDF-1.7")), nil
		}),
	)
	t.Cleanup(tr.Close)
	return tr, clock
}

func pdf(name string, size int64) File {
	return File{Name: name, Path: "/tmp/" + name, Size: size}
}

// eventually retries cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// gatedReader blocks the first Read until release is closed.
type gatedReader struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedReader() *gatedReader {
	return &gatedReader{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedReader) Read([]byte) (int, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return 0, io.EOF
}

// newGatedTracker is newTestTracker with uploads that wait on gate.
func newGatedTracker(t *testing.T, b *fakeBackend, gate *gatedReader) (*Tracker, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	tr := NewTracker(b,
		WithClock(clock),
		WithLogger(log.New(io.Discard)),
		WithOpener(func(File) (io.ReadCloser, error) {
			return io.NopCloser(gate), nil
		}),
	)
	t.Cleanup(tr.Close)
	return tr, clock
}
