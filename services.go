package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/api"
	"github.com/dgnsrekt/narrate/internal/audio"
	"github.com/dgnsrekt/narrate/internal/cache"
	"github.com/dgnsrekt/narrate/internal/export"
	"github.com/dgnsrekt/narrate/internal/library"
	"github.com/dgnsrekt/narrate/internal/speech"
	"github.com/dgnsrekt/narrate/internal/tasks"
)

// services holds everything a command may drive. Audio pieces are nil when
// no output device is available.
type services struct {
	client   *api.Client
	tracker  *tasks.Tracker
	cache    *cache.Manager
	player   audio.Player
	library  *library.Library
	speaker  *speech.Speaker
	exporter export.Exporter
}

type serviceNeeds struct {
	audio  bool
	speech bool
}

func newServices(ctx context.Context, o options, needs serviceNeeds) (*services, error) {
	s := &services{}

	client, err := api.NewClient(api.Options{
		BaseURL:   o.APIURL,
		Timeout:   o.RequestTimeout,
		RateLimit: o.RateLimit,
		Logger:    log.Default().WithPrefix("api"),
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	s.client = client
	s.tracker = tasks.NewTracker(client,
		tasks.WithPollInterval(o.PollInterval),
		tasks.WithLogger(log.Default().WithPrefix("tracker")),
	)

	dir, err := o.cacheDir()
	if err != nil {
		s.Close()
		return nil, err
	}
	cfg := cache.DefaultConfig(dir)
	cfg.DiskBytes = o.CacheMaxSize << 20
	s.cache, err = cache.NewManager(cfg)
	if err != nil {
		log.Warn("disk cache unavailable, using memory only", "dir", dir, "err", err)
		cfg.Dir = ""
		if s.cache, err = cache.NewManager(cfg); err != nil {
			s.Close()
			return nil, err //nolint:wrapcheck
		}
	}

	if needs.audio || needs.speech {
		player, err := audio.NewOtoPlayer()
		if err != nil {
			log.Warn("audio output unavailable", "err", err)
		} else {
			_ = player.SetVolume(o.Volume)
			s.player = player
		}
	}
	s.library = library.New(client, s.cache, s.player)

	if needs.speech {
		engine, err := speech.New(o.Speech)
		if err != nil {
			s.Close()
			return nil, err //nolint:wrapcheck
		}
		if engine.Name() == "piper" {
			engine = speech.NewFallback(engine, speech.NewEspeak(o.Speech), 3)
		}
		if err := engine.Validate(); err != nil {
			log.Warn("speech engine unavailable", "engine", engine.Name(), "err", err)
		} else {
			s.speaker = speech.NewSpeaker(engine, o.Speech.Voice, s.player, s.cache)
		}
	}

	if o.ExportTarget != "" {
		e, err := export.ParseTarget(ctx, o.ExportTarget)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("invalid export target: %w", err)
		}
		s.exporter = e
	}
	return s, nil
}

// Close stops polling and releases audio and cache resources.
func (s *services) Close() {
	if s.tracker != nil {
		s.tracker.Close()
	}
	if s.player != nil {
		_ = s.player.Close()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			log.Debug("closing cache", "err", err)
		}
	}
}
