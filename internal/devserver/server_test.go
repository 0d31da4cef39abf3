package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/api"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/tasks"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func upload(t *testing.T, h http.Handler, filename string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(body)
	}
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/submit_pdf_to_audio_task", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid error body %q: %v", rec.Body.String(), err)
	}
	return body.Detail
}

func TestSubmitRejections(t *testing.T) {
	s := New(Config{Logger: quietLogger()})

	tests := []struct {
		name     string
		filename string
		body     []byte
		want     string
	}{
		{"missing file", "", nil, "No file uploaded."},
		{"not a pdf name", "notes.txt", []byte("%PDF"), "Only PDF files are accepted."},
		{"not pdf content", "fake.pdf", []byte("hello"), "Uploaded file is not a valid PDF."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := upload(t, s.Handler(), tt.filename, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := detail(t, rec); got != tt.want {
				t.Errorf("detail = %q, want %q", got, tt.want)
			}
		})
	}
	if s.Jobs() != 0 {
		t.Errorf("Jobs() = %d, want 0", s.Jobs())
	}
}

func TestStatusProgression(t *testing.T) {
	s := New(Config{Steps: 2, Logger: quietLogger()})
	rec := upload(t, s.Handler(), "report.pdf", []byte("%PDF-1.7"))
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d: %s", rec.Code, rec.Body)
	}
	var sub api.SubmitResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &sub)
	if sub.TaskID == "" {
		t.Fatal("submit returned no task id")
	}

	want := []api.TaskState{
		api.StatePending, api.StatePending,
		api.StateStarted, api.StateStarted,
		api.StateSuccess,
	}
	var last api.TaskStatusResponse
	for i, state := range want {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/task-status/"+sub.TaskID, nil))
		if err := json.Unmarshal(rec.Body.Bytes(), &last); err != nil {
			t.Fatal(err)
		}
		if last.Status != state {
			t.Errorf("poll %d: status = %s, want %s", i+1, last.Status, state)
		}
	}
	if last.Result != "/static/audio/"+sub.TaskID+".wav" {
		t.Errorf("result = %q", last.Result)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, last.Result, nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "audio/wav" {
		t.Fatalf("audio status = %d type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if _, err := audio.DecodeWAV(rec.Body.Bytes()); err != nil {
		t.Errorf("served audio is not a WAV: %v", err)
	}
}

func TestUnknownTask(t *testing.T) {
	s := New(Config{Logger: quietLogger()})
	for _, path := range []string{"/api/task-status/nope", "/static/audio/nope.wav"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, rec.Code)
		}
	}
}

func writePDF(t *testing.T, name string) tasks.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	body := []byte("%PDF-1.4\n" + strings.Repeat("x", 32))
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}
	return tasks.File{Name: name, Path: path, Size: int64(len(body))}
}

func TestTrackerAgainstEmulator(t *testing.T) {
	srv := httptest.NewServer(New(Config{Logger: quietLogger()}).Handler())
	defer srv.Close()

	client, err := api.NewClient(api.Options{BaseURL: srv.URL, Logger: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	tracker := tasks.NewTracker(client,
		tasks.WithPollInterval(10*time.Millisecond),
		tasks.WithLogger(quietLogger()),
	)
	defer tracker.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	good := writePDF(t, "chapter_one.pdf")
	bad := writePDF(t, "fail-scan.pdf")
	for _, f := range []tasks.File{good, bad} {
		if err := tracker.Submit(ctx, f); err != nil {
			t.Fatalf("Submit(%s) error = %v", f.Name, err)
		}
	}

	ft, err := tracker.Wait(ctx, good.Key())
	if err != nil {
		t.Fatal(err)
	}
	if ft.Status != tasks.StatusSuccess || !strings.HasPrefix(ft.AudioURL, srv.URL+"/static/audio/") {
		t.Errorf("good file = %+v", ft)
	}
	clip, err := client.FetchAudio(ctx, ft.AudioURL)
	if err != nil {
		t.Fatalf("FetchAudio() error = %v", err)
	}
	if _, err := audio.DecodeWAV(clip); err != nil {
		t.Errorf("downloaded audio is not a WAV: %v", err)
	}

	ft, err = tracker.Wait(ctx, bad.Key())
	if err != nil {
		t.Fatal(err)
	}
	if ft.Status != tasks.StatusError || ft.ErrorMessage != failureInfo {
		t.Errorf("failing file = %+v", ft)
	}
	if n := len(tracker.Store().ActiveTimers()); n != 0 {
		t.Errorf("%d timers still active after both files settled", n)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	s := New(Config{Logger: quietLogger()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
