// Package devserver emulates the PDF-to-audio backend so the client can be
// developed and tested without the real conversion service.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/api"
	"github.com/dgnsrekt/narrate/internal/speech"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MaxUploadSize bounds accepted uploads.
const MaxUploadSize = 50 << 20

const failureInfo = "No text found in the first 5 pages of the PDF."

// Config tunes the emulator.
type Config struct {
	// Steps is how many status requests a job spends in each of PENDING and
	// STARTED before it settles.
	Steps  int
	Engine speech.Engine
	Logger *log.Logger
}

type job struct {
	id       string
	filename string
	polls    int
	fail     bool
	audio    []byte
}

// Server is an in-memory backend.
type Server struct {
	cfg    Config
	logger *log.Logger
	router *gin.Engine

	mu   sync.Mutex
	jobs map[string]*job
}

// New returns a server ready to be mounted with Handler.
func New(cfg Config) *Server {
	if cfg.Steps <= 0 {
		cfg.Steps = 1
	}
	if cfg.Engine == nil {
		cfg.Engine = speech.NewMock()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default().WithPrefix("devserver")
	}
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		jobs:   make(map[string]*job),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests)
	r.MaxMultipartMemory = MaxUploadSize
	r.GET("/", s.root)
	r.POST("/api/submit_pdf_to_audio_task", s.submit)
	r.GET("/api/task-status/:id", s.status)
	r.GET("/static/audio/:file", s.serveAudio)
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("backend emulator listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"took", time.Since(start),
		"request_id", c.GetHeader("X-Request-ID"),
	)
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "PDF to Audio API is running"})
}

func (s *Server) submit(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No file uploaded."})
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".pdf") {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Only PDF files are accepted."})
		return
	}
	if fh.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "File is too large."})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unable to read upload."})
		return
	}
	defer f.Close() //nolint:errcheck
	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil || string(head) != "%PDF" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Uploaded file is not a valid PDF."})
		return
	}

	j := &job{
		id:       uuid.NewString(),
		filename: fh.Filename,
		fail:     strings.Contains(strings.ToLower(fh.Filename), "fail"),
	}
	s.mu.Lock()
	s.jobs[j.id] = j
	s.mu.Unlock()

	s.logger.Info("task queued", "task", j.id, "file", fh.Filename, "size", fh.Size)
	c.JSON(http.StatusOK, api.SubmitResponse{
		TaskID:  j.id,
		Message: "PDF to audio conversion task submitted.",
	})
}

func (s *Server) status(c *gin.Context) {
	id := c.Param("id")

	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"detail": "Task not found"})
		return
	}
	j.polls++
	polls := j.polls
	s.mu.Unlock()

	resp := api.TaskStatusResponse{TaskID: id}
	switch {
	case polls <= s.cfg.Steps:
		resp.Status = api.StatePending
	case polls <= 2*s.cfg.Steps:
		resp.Status = api.StateStarted
	case j.fail:
		resp.Status = api.StateFailure
		resp.ErrorInfo = failureInfo
	default:
		if err := s.render(c.Request.Context(), j); err != nil {
			resp.Status = api.StateFailure
			resp.ErrorInfo = err.Error()
			break
		}
		resp.Status = api.StateSuccess
		resp.Result = "/static/audio/" + j.id + ".wav"
	}
	c.JSON(http.StatusOK, resp)
}

// render synthesizes the job's audio once.
func (s *Server) render(ctx context.Context, j *job) error {
	s.mu.Lock()
	done := j.audio != nil
	s.mu.Unlock()
	if done {
		return nil
	}

	stem := strings.TrimSuffix(j.filename, filepath.Ext(j.filename))
	text := "Narration of " + strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	wav, err := s.cfg.Engine.Synthesize(ctx, text)
	if err != nil {
		return fmt.Errorf("audio generation failed: %w", err)
	}

	s.mu.Lock()
	if j.audio == nil {
		j.audio = wav
	}
	s.mu.Unlock()
	return nil
}

func (s *Server) serveAudio(c *gin.Context) {
	name := c.Param("file")
	id := strings.TrimSuffix(name, ".wav")
	if id == name {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid audio filename"})
		return
	}

	s.mu.Lock()
	j, ok := s.jobs[id]
	var wav []byte
	if ok {
		wav = j.audio
	}
	s.mu.Unlock()

	if wav == nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "audio not found"})
		return
	}
	c.Data(http.StatusOK, "audio/wav", wav)
}

// Jobs returns the number of jobs received.
func (s *Server) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
