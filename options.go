package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/api"
	"github.com/dgnsrekt/narrate/internal/speech"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

// options is the validated configuration shared by every command.
type options struct {
	APIURL         string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	RateLimit      float64

	Speech speech.Config

	AutoPlay bool
	Volume   float64

	CacheDir     string
	CacheMaxSize int64 // megabytes

	ExportTarget string
	Debug        bool
}

func setDefaults() {
	viper.SetDefault("api_url", api.DefaultBaseURL)
	viper.SetDefault("poll_interval", "3s")
	viper.SetDefault("request_timeout", "0s")
	viper.SetDefault("rate_limit", 10.0)
	viper.SetDefault("speech.engine", "espeak")
	viper.SetDefault("speech.voice", "en")
	viper.SetDefault("speech.rate", 1.0)
	viper.SetDefault("speech.piper_model", "")
	viper.SetDefault("speech.sample_rate", 22050)
	viper.SetDefault("playback.auto_play", false)
	viper.SetDefault("playback.volume", 1.0)
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.max_size", 100)
	viper.SetDefault("export.target", "")
	viper.SetDefault("debug", false)
}

// loadOptions reads options from viper, where flags, environment and the
// config file have already been merged.
func loadOptions() options {
	apiURL := viper.GetString("api_url")
	// NEXT_PUBLIC_API_URL is what the web frontend's .env files use.
	if v := os.Getenv("NEXT_PUBLIC_API_URL"); v != "" && apiURL == api.DefaultBaseURL {
		apiURL = v
	}

	return options{
		APIURL:         strings.TrimSpace(apiURL),
		PollInterval:   viper.GetDuration("poll_interval"),
		RequestTimeout: viper.GetDuration("request_timeout"),
		RateLimit:      viper.GetFloat64("rate_limit"),
		Speech: speech.Config{
			Engine:     viper.GetString("speech.engine"),
			Voice:      viper.GetString("speech.voice"),
			Rate:       viper.GetFloat64("speech.rate"),
			PiperModel: viper.GetString("speech.piper_model"),
			SampleRate: viper.GetInt("speech.sample_rate"),
		},
		AutoPlay:     viper.GetBool("playback.auto_play"),
		Volume:       viper.GetFloat64("playback.volume"),
		CacheDir:     viper.GetString("cache.dir"),
		CacheMaxSize: viper.GetInt64("cache.max_size"),
		ExportTarget: viper.GetString("export.target"),
		Debug:        viper.GetBool("debug"),
	}
}

func (o options) validate() error {
	u, err := url.Parse(o.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", o.APIURL)
	}
	if o.PollInterval < 100*time.Millisecond || o.PollInterval > 10*time.Minute {
		return fmt.Errorf("poll_interval must be between 100ms and 10m, got %s", o.PollInterval)
	}
	if o.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %s", o.RequestTimeout)
	}
	if o.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %.2f", o.RateLimit)
	}
	if o.Speech.Rate < 0.1 || o.Speech.Rate > 3.0 {
		return fmt.Errorf("speech rate must be between 0.1 and 3.0, got %.2f", o.Speech.Rate)
	}
	switch strings.ToLower(o.Speech.Engine) {
	case "espeak", "espeak-ng", "piper", "mock":
	default:
		return fmt.Errorf("%w: %q (want espeak, piper or mock)", speech.ErrUnknownEngine, o.Speech.Engine)
	}
	if o.Volume < 0 || o.Volume > 1.0 {
		return fmt.Errorf("playback volume must be between 0.0 and 1.0, got %.2f", o.Volume)
	}
	if o.CacheMaxSize < 1 || o.CacheMaxSize > 10000 {
		return fmt.Errorf("cache max_size must be between 1 and 10000 MB, got %d", o.CacheMaxSize)
	}
	if o.Speech.PiperModel != "" {
		model, err := homedir.Expand(o.Speech.PiperModel)
		if err != nil {
			return fmt.Errorf("invalid piper model path: %w", err)
		}
		if _, err := os.Stat(model); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("piper model file does not exist: %s", model)
		}
	}
	return nil
}

// cacheDir returns the configured cache directory or the user cache dir.
func (o options) cacheDir() (string, error) {
	if o.CacheDir != "" {
		dir, err := homedir.Expand(o.CacheDir)
		if err != nil {
			return "", fmt.Errorf("invalid cache dir: %w", err)
		}
		return dir, nil
	}
	dir, err := gap.NewScope(gap.User, "narrate").CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

func (o options) logLevel() log.Level {
	if o.Debug {
		return log.DebugLevel
	}
	return log.InfoLevel
}
