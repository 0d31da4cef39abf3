package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Fallback synthesizes with a primary engine and switches to a secondary one
// once the primary has failed maxFailures times in a row or cannot run at all.
type Fallback struct {
	primary     Engine
	secondary   Engine
	maxFailures int
	logger      *log.Logger

	mu            sync.Mutex
	failures      int
	usingFallback bool
}

// NewFallback wraps primary with secondary.
func NewFallback(primary, secondary Engine, maxFailures int) *Fallback {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &Fallback{
		primary:     primary,
		secondary:   secondary,
		maxFailures: maxFailures,
		logger:      log.Default().WithPrefix("speech"),
	}
}

func (f *Fallback) active() Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usingFallback {
		return f.secondary
	}
	return f.primary
}

// Name returns the name of the engine currently in use.
func (f *Fallback) Name() string { return f.active().Name() }

// Validate succeeds when either engine can run. A primary that cannot run is
// skipped from then on.
func (f *Fallback) Validate() error {
	primaryErr := f.primary.Validate()
	if primaryErr == nil {
		return nil
	}
	if err := f.secondary.Validate(); err != nil {
		return fmt.Errorf("both engines failed: %s: %w", f.primary.Name(), errors.Join(primaryErr, err))
	}

	f.mu.Lock()
	f.usingFallback = true
	f.mu.Unlock()
	f.logger.Warn("primary engine unavailable, using fallback",
		"primary", f.primary.Name(), "fallback", f.secondary.Name(), "err", primaryErr)
	return nil
}

// Synthesize implements Engine.
func (f *Fallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	using := f.usingFallback
	f.mu.Unlock()
	if using {
		return f.secondary.Synthesize(ctx, text)
	}

	clip, err := f.primary.Synthesize(ctx, text)
	if err == nil {
		f.mu.Lock()
		if f.failures > 0 {
			f.logger.Info("primary engine recovered", "engine", f.primary.Name(), "failures", f.failures)
		}
		f.failures = 0
		f.mu.Unlock()
		return clip, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	f.mu.Lock()
	f.failures++
	failures := f.failures
	if failures >= f.maxFailures {
		f.usingFallback = true
	}
	f.mu.Unlock()

	f.logger.Warn("primary engine failed", "engine", f.primary.Name(), "attempt", failures, "max", f.maxFailures, "err", err)
	if failures < f.maxFailures {
		return nil, err
	}
	f.logger.Warn("switching to fallback engine", "engine", f.secondary.Name())
	clip, ferr := f.secondary.Synthesize(ctx, text)
	if ferr != nil {
		return nil, fmt.Errorf("both engines failed: %w", errors.Join(err, ferr))
	}
	return clip, nil
}
