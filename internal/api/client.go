package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

const (
	submitPath     = "/api/submit_pdf_to_audio_task"
	statusPath     = "/api/task-status/"
	requestIDKey   = "X-Request-ID"
	maxErrorBody   = 64 << 10
	maxAudioLength = 512 << 20
)

// Client talks to the backend over HTTP.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	logger   *log.Logger
	maxAudio int64
}

// Options configures a Client.
type Options struct {
	// BaseURL of the backend; DefaultBaseURL when empty.
	BaseURL string
	// Timeout per request. Zero means no timeout.
	Timeout time.Duration
	// RateLimit caps status and download requests per second. Zero disables
	// limiting.
	RateLimit float64
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewClient returns a client for the backend at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base := strings.TrimSpace(opts.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, base)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("api")
	}

	return &Client{
		baseURL:  strings.TrimRight(base, "/"),
		http:     hc,
		limiter:  limiter,
		logger:   logger,
		maxAudio: maxAudioLength,
	}, nil
}

// BaseURL returns the backend origin the client resolves paths against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SubmitPDF uploads a PDF as a multipart form with a single "file" field and
// returns the job the backend created for it.
func (c *Client) SubmitPDF(ctx context.Context, filename string, r io.Reader) (SubmitResponse, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		h.Set("Content-Type", "application/pdf")
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submitPath, pr)
	if err != nil {
		_ = pr.Close()
		return SubmitResponse{}, fmt.Errorf("unable to build submit request: %w", err)
	}
	defer pr.Close() //nolint:errcheck
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	var out SubmitResponse
	if err := c.do(req, "submit", &out); err != nil {
		return SubmitResponse{}, err
	}
	if out.TaskID == "" {
		return SubmitResponse{}, ErrEmptyTaskID
	}
	c.logger.Debug("submitted file", "file", filename, "task", out.TaskID)
	return out, nil
}

// TaskStatus fetches the current status of a job.
func (c *Client) TaskStatus(ctx context.Context, taskID string) (TaskStatusResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return TaskStatusResponse{}, fmt.Errorf("status request cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath+url.PathEscape(taskID), nil)
	if err != nil {
		return TaskStatusResponse{}, fmt.Errorf("unable to build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var out TaskStatusResponse
	if err := c.do(req, "status", &out); err != nil {
		return TaskStatusResponse{}, err
	}
	return out, nil
}

// FetchAudio downloads the audio artifact at audioURL.
func (c *Client) FetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("download cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ResolveAudioURL(audioURL), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build download request: %w", err)
	}
	c.stamp(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.errorFrom(resp, "fetch")
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxAudio+1))
	if err != nil {
		return nil, fmt.Errorf("unable to read audio: %w", err)
	}
	if int64(len(data)) > c.maxAudio {
		return nil, fmt.Errorf("%w: over %d bytes", ErrAudioTooLarge, c.maxAudio)
	}
	return data, nil
}

// ResolveAudioURL turns a result path into an absolute URL on the backend.
func (c *Client) ResolveAudioURL(path string) string {
	return ResolveAudioURL(c.baseURL, path)
}

// ResolveAudioURL joins path onto base unless path is already an absolute
// http(s) URL. An empty path stays empty.
func ResolveAudioURL(base, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (c *Client) do(req *http.Request, op string, out any) error {
	c.stamp(req)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug("backend reply",
		"op", op,
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
		"request_id", req.Header.Get(requestIDKey))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.errorFrom(resp, op)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unable to decode %s response: %w", op, err)
	}
	return nil
}

func (c *Client) stamp(req *http.Request) {
	req.Header.Set(requestIDKey, uuid.NewString())
}

func (c *Client) errorFrom(resp *http.Response, op string) error {
	apiErr := &Error{Op: op, StatusCode: resp.StatusCode}
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&body); err == nil {
		apiErr.Detail = body.Detail
	}
	return apiErr
}
