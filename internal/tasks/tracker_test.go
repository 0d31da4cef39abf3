package tasks

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/dgnsrekt/narrate/internal/api"
)

func TestSubmitPollSuccess(t *testing.T) {
	b := newFakeBackend("t1")
	b.script("t1",
		reply("t1", api.StatePending),
		statusReply{resp: api.TaskStatusResponse{TaskID: "t1", Status: api.StateSuccess, Result: "/static/audio/a.wav"}},
	)
	tr, clock := newTestTracker(t, b)
	f := pdf("a.pdf", 1024)

	if err := tr.Submit(context.Background(), f); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	ft, _ := tr.Get(f.Key())
	if ft.Status != StatusProcessing || ft.TaskID != "t1" {
		t.Fatalf("after submit got %s/%q, want processing/t1", ft.Status, ft.TaskID)
	}
	if !tr.Store().HasTimer("t1") {
		t.Fatal("expected a poll timer for t1")
	}

	clock.Tick()
	eventually(t, "first poll", func() bool { return b.callCount("t1") == 1 })
	ft, _ = tr.Get(f.Key())
	if ft.Status != StatusProcessing {
		t.Errorf("after PENDING status = %s, want processing", ft.Status)
	}
	if !tr.Store().HasTimer("t1") {
		t.Error("polling should continue after PENDING")
	}

	clock.Tick()
	eventually(t, "success", func() bool {
		ft, _ := tr.Get(f.Key())
		return ft.Status == StatusSuccess
	})
	ft, _ = tr.Get(f.Key())
	if want := testBaseURL + "/static/audio/a.wav"; ft.AudioURL != want {
		t.Errorf("AudioURL = %q, want %q", ft.AudioURL, want)
	}
	if tr.Store().HasTimer("t1") {
		t.Error("timer for t1 should be cancelled")
	}

	clock.Tick()
	if got := b.callCount("t1"); got != 2 {
		t.Errorf("status calls = %d after settling, want 2", got)
	}
}

func TestPollFailure(t *testing.T) {
	b := newFakeBackend("t2")
	b.script("t2", statusReply{resp: api.TaskStatusResponse{TaskID: "t2", Status: api.StateFailure, ErrorInfo: "decode error"}})
	tr, clock := newTestTracker(t, b)
	f := pdf("b.pdf", 2048)

	if err := tr.Submit(context.Background(), f); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	clock.Tick()
	eventually(t, "failure", func() bool {
		ft, _ := tr.Get(f.Key())
		return ft.Status == StatusError
	})

	ft, _ := tr.Get(f.Key())
	if ft.ErrorMessage != "decode error" {
		t.Errorf("ErrorMessage = %q, want %q", ft.ErrorMessage, "decode error")
	}
	if ft.AudioURL != "" {
		t.Errorf("AudioURL = %q, want empty", ft.AudioURL)
	}
	if tr.Store().HasTimer("t2") {
		t.Error("timer for t2 should be cancelled")
	}
}

func TestPollTerminalStates(t *testing.T) {
	tests := []struct {
		name    string
		reply   statusReply
		wantMsg string
	}{
		{
			name:    "failure without info",
			reply:   reply("t", api.StateFailure),
			wantMsg: "task failed",
		},
		{
			name:    "unexpected status",
			reply:   reply("t", api.TaskState("WEIRD")),
			wantMsg: "unexpected task status: WEIRD",
		},
		{
			name:    "revoked",
			reply:   reply("t", api.StateRevoked),
			wantMsg: "unexpected task status: REVOKED",
		},
		{
			name:    "network error",
			reply:   statusReply{err: errors.New("connection refused")},
			wantMsg: "connection refused",
		},
		{
			name:    "backend error detail",
			reply:   statusReply{err: &api.Error{Op: "status", StatusCode: http.StatusNotFound, Detail: "unknown task"}},
			wantMsg: "unknown task",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBackend("t")
			b.script("t", tt.reply)
			tr, clock := newTestTracker(t, b)
			f := pdf("c.pdf", 1)

			if err := tr.Submit(context.Background(), f); err != nil {
				t.Fatalf("Submit() error = %v", err)
			}
			clock.Tick()
			eventually(t, "error status", func() bool {
				ft, _ := tr.Get(f.Key())
				return ft.Status == StatusError
			})

			ft, _ := tr.Get(f.Key())
			if ft.ErrorMessage != tt.wantMsg {
				t.Errorf("ErrorMessage = %q, want %q", ft.ErrorMessage, tt.wantMsg)
			}
			if tr.Store().HasTimer("t") {
				t.Error("timer should be cancelled")
			}
		})
	}
}

func TestSubmitFailure(t *testing.T) {
	b := newFakeBackend()
	b.submitErr = &api.Error{Op: "submit", StatusCode: http.StatusBadRequest, Detail: "not a PDF"}
	tr, _ := newTestTracker(t, b)
	f := pdf("notes.pdf", 10)

	err := tr.Submit(context.Background(), f)
	if err == nil {
		t.Fatal("Submit() error = nil, want error")
	}
	var apiErr *api.Error
	if !errors.As(err, &apiErr) {
		t.Errorf("Submit() error = %v, want *api.Error in chain", err)
	}

	ft, _ := tr.Get(f.Key())
	if ft.Status != StatusError || ft.ErrorMessage != "not a PDF" {
		t.Errorf("got %s/%q, want error/%q", ft.Status, ft.ErrorMessage, "not a PDF")
	}
	if ft.TaskID != "" {
		t.Errorf("TaskID = %q, want empty", ft.TaskID)
	}
	if n := len(tr.Store().ActiveTimers()); n != 0 {
		t.Errorf("active timers = %d, want 0", n)
	}
}

func TestRetryClearsPreviousAttempt(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	b.script("t1", statusReply{resp: api.TaskStatusResponse{TaskID: "t1", Status: api.StateFailure, ErrorInfo: "boom"}})
	b.script("t2", statusReply{resp: api.TaskStatusResponse{TaskID: "t2", Status: api.StateSuccess, Result: "https://cdn.test/a.wav"}})
	tr, clock := newTestTracker(t, b)
	f := pdf("a.pdf", 5)

	if err := tr.Submit(context.Background(), f); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	clock.Tick()
	eventually(t, "first failure", func() bool {
		ft, _ := tr.Get(f.Key())
		return ft.Status == StatusError
	})

	if err := tr.SubmitKey(context.Background(), f.Key()); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	ft, _ := tr.Get(f.Key())
	if ft.Status != StatusProcessing || ft.TaskID != "t2" || ft.ErrorMessage != "" {
		t.Fatalf("after retry got %+v", ft)
	}

	clock.Tick()
	eventually(t, "success", func() bool {
		ft, _ := tr.Get(f.Key())
		return ft.Status == StatusSuccess
	})
	ft, _ = tr.Get(f.Key())
	if ft.AudioURL != "https://cdn.test/a.wav" {
		t.Errorf("absolute result should be kept, got %q", ft.AudioURL)
	}
}

func TestCancelWhileProcessing(t *testing.T) {
	b := newFakeBackend("t3")
	b.started = make(chan string, 1)
	b.release = make(chan struct{})
	b.script("t3", statusReply{resp: api.TaskStatusResponse{TaskID: "t3", Status: api.StateSuccess, Result: "/static/audio/c.wav"}})
	tr, clock := newTestTracker(t, b)
	f := pdf("c.pdf", 77)

	if err := tr.Submit(context.Background(), f); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	clock.Tick()
	<-b.started

	tr.Cancel(f.Key())
	if _, ok := tr.Get(f.Key()); ok {
		t.Fatal("cancelled file should be removed from the store")
	}
	if tr.Selection().Len() != 0 {
		t.Error("cancelled file should be removed from the selection")
	}
	if tr.Store().HasTimer("t3") {
		t.Error("timer should be cancelled")
	}

	// the in-flight request resolves after the cancel
	close(b.release)
	clock.Tick()

	tr.Close()
	if _, ok := tr.Get(f.Key()); ok {
		t.Error("stale poll result recreated the cancelled file")
	}
	if got := clock.live(); got != 0 {
		t.Errorf("live tickers = %d, want 0", got)
	}

	// idempotent
	tr.Cancel(f.Key())
}

func TestGuardSkipsSettledTask(t *testing.T) {
	b := newFakeBackend("t4")
	tr, clock := newTestTracker(t, b)
	f := pdf("d.pdf", 3)

	if err := tr.Submit(context.Background(), f); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	tr.Store().Upsert(f.Key(), WithStatus(StatusSuccess), WithAudioURL("x"))

	clock.Tick()
	eventually(t, "timer stop", func() bool { return !tr.Store().HasTimer("t4") })
	if got := b.callCount("t4"); got != 0 {
		t.Errorf("status calls = %d, want 0 for a settled task", got)
	}
	ft, _ := tr.Get(f.Key())
	if ft.Status != StatusSuccess || ft.AudioURL != "x" {
		t.Errorf("settled state was overwritten: %+v", ft)
	}
}

func TestIndependentFiles(t *testing.T) {
	b := newFakeBackend("ta", "tb")
	b.script("ta", reply("ta", api.StateStarted), reply("ta", api.StateSuccess))
	b.script("tb", statusReply{err: errors.New("timeout")})
	tr, clock := newTestTracker(t, b)
	fa, fb := pdf("a.pdf", 1), pdf("b.pdf", 2)

	for _, f := range []File{fa, fb} {
		if err := tr.Submit(context.Background(), f); err != nil {
			t.Fatalf("Submit(%s) error = %v", f.Name, err)
		}
	}
	if got := tr.Store().ActiveTimers(); strings.Join(got, ",") != "ta,tb" {
		t.Fatalf("ActiveTimers() = %v", got)
	}

	clock.Tick()
	eventually(t, "b errored", func() bool {
		ft, _ := tr.Get(fb.Key())
		return ft.Status == StatusError
	})
	eventually(t, "a polled", func() bool { return b.callCount("ta") == 1 })
	ft, _ := tr.Get(fa.Key())
	if ft.Status != StatusProcessing {
		t.Errorf("a status = %s, want processing", ft.Status)
	}

	clock.Tick()
	eventually(t, "a success", func() bool {
		ft, _ := tr.Get(fa.Key())
		return ft.Status == StatusSuccess
	})
}

func TestCloseStopsAllTimers(t *testing.T) {
	b := newFakeBackend("t1", "t2")
	tr, clock := newTestTracker(t, b)
	for _, f := range []File{pdf("a.pdf", 1), pdf("b.pdf", 2)} {
		if err := tr.Submit(context.Background(), f); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	tr.Close()
	if n := len(tr.Store().ActiveTimers()); n != 0 {
		t.Errorf("active timers = %d, want 0", n)
	}
	if got := clock.live(); got != 0 {
		t.Errorf("live tickers = %d, want 0", got)
	}
	if err := tr.Submit(context.Background(), pdf("c.pdf", 3)); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit() after Close error = %v, want ErrClosed", err)
	}
}

func TestAddCreatesIdleEntries(t *testing.T) {
	tr, _ := newTestTracker(t, newFakeBackend())
	added := tr.Add(pdf("a.pdf", 1), pdf("a.pdf", 1), pdf("b.pdf", 2))
	if len(added) != 2 {
		t.Fatalf("Add() added %d files, want 2", len(added))
	}
	for _, f := range added {
		ft, ok := tr.Get(f.Key())
		if !ok || ft.Status != StatusIdle {
			t.Errorf("%s: got %+v, want idle entry", f.Key(), ft)
		}
	}
	if err := tr.SubmitKey(context.Background(), "missing:0"); !errors.Is(err, ErrUnknownFile) {
		t.Errorf("SubmitKey() error = %v, want ErrUnknownFile", err)
	}
}

func TestCancelWhileUploading(t *testing.T) {
	b := newFakeBackend("t9")
	gate := newGatedReader()
	tr, clock := newGatedTracker(t, b, gate)
	f := pdf("d.pdf", 12)

	errc := make(chan error, 1)
	go func() { errc <- tr.Submit(context.Background(), f) }()
	<-gate.started

	if ft, _ := tr.Get(f.Key()); ft.Status != StatusUploading {
		t.Fatalf("status = %s, want uploading", ft.Status)
	}
	tr.Cancel(f.Key())
	close(gate.release)

	if err := <-errc; !errors.Is(err, ErrRemoved) {
		t.Fatalf("Submit() error = %v, want ErrRemoved", err)
	}
	if ft, ok := tr.Get(f.Key()); ok {
		t.Fatalf("cancelled upload recreated the entry: %+v", ft)
	}
	if timers := tr.Store().ActiveTimers(); len(timers) != 0 {
		t.Errorf("active timers = %v, want none", timers)
	}
	if got := clock.live(); got != 0 {
		t.Errorf("live tickers = %d, want 0", got)
	}
}

func TestSubmitRejectsDuplicateUpload(t *testing.T) {
	b := newFakeBackend("tA", "tB")
	gate := newGatedReader()
	tr, _ := newGatedTracker(t, b, gate)
	f := pdf("a.pdf", 5)

	errc := make(chan error, 1)
	go func() { errc <- tr.Submit(context.Background(), f) }()
	<-gate.started

	if err := tr.Submit(context.Background(), f); !errors.Is(err, ErrInFlight) {
		t.Fatalf("second Submit() error = %v, want ErrInFlight", err)
	}
	close(gate.release)
	if err := <-errc; err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}

	ft, _ := tr.Get(f.Key())
	if ft.Status != StatusProcessing || ft.TaskID != "tA" {
		t.Errorf("got %s/%s, want processing/tA", ft.Status, ft.TaskID)
	}
	if timers := tr.Store().ActiveTimers(); len(timers) != 1 || timers[0] != "tA" {
		t.Errorf("active timers = %v, want [tA]", timers)
	}
	b.mu.Lock()
	submitted := len(b.submitted)
	b.mu.Unlock()
	if submitted != 1 {
		t.Errorf("backend received %d uploads, want 1", submitted)
	}
}
