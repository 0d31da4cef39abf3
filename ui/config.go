package ui

import "github.com/dgnsrekt/narrate/internal/tasks"

// Config contains TUI-specific configuration.
type Config struct {
	// Directory searched for PDFs.
	Path string
	// Files given on the command line.
	Files []tasks.File

	ShowAllFiles bool
	AutoPlay     bool
	ExportTarget string

	HighContrast bool   `env:"NARRATE_HIGH_CONTRAST"`
	NoDiscovery  bool   `env:"NARRATE_NO_DISCOVERY"`
	Spinner      string `env:"NARRATE_SPINNER" envDefault:"dot"`
	HomeDir      string `env:"HOME"`
}
