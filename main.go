// Package main provides the entry point for the narrate CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/export"
	"github.com/dgnsrekt/narrate/internal/tasks"
	"github.com/dgnsrekt/narrate/internal/watch"
	"github.com/dgnsrekt/narrate/ui"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile   string
	showAllFiles bool
	opts         options

	rootCmd = &cobra.Command{
		Use:   "narrate [PDF|DIR...]",
		Short: "Turn PDFs into audio and speak text, from the terminal",
		Long: paragraph(
			fmt.Sprintf("\nSubmit PDFs to a %s backend, follow each conversion live, and %s typed text aloud.",
				keyword("PDF-to-audio"), keyword("speak")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"pdf"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file %s: %w", configFile, err)
		}
	}

	showAllFiles = viper.GetBool("all")
	opts = loadOptions()
	if err := opts.validate(); err != nil {
		return err
	}
	log.SetLevel(opts.logLevel())
	return nil
}

// selectionFromArgs turns command line arguments into PDFs to select and an
// optional directory to search. Files with the same key are kept once.
func selectionFromArgs(args []string) (files []tasks.File, dir string, err error) {
	seen := make(map[string]bool)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, "", fmt.Errorf("unable to open %s: %w", arg, err)
		}
		if info.IsDir() {
			if dir != "" {
				return nil, "", errors.New("only one directory can be searched at a time")
			}
			if dir, err = filepath.Abs(arg); err != nil {
				return nil, "", fmt.Errorf("unable to get absolute path: %w", err)
			}
			continue
		}
		if !watch.IsPDF(arg) {
			return nil, "", fmt.Errorf("%s is not a PDF", arg)
		}
		path, err := filepath.Abs(arg)
		if err != nil {
			return nil, "", fmt.Errorf("unable to get absolute path: %w", err)
		}
		f := tasks.File{Name: filepath.Base(arg), Path: path, Size: info.Size()}
		if seen[f.Key()] {
			continue
		}
		seen[f.Key()] = true
		files = append(files, f)
	}
	return files, dir, nil
}

func execute(cmd *cobra.Command, args []string) error {
	files, dir, err := selectionFromArgs(args)
	if err != nil {
		return err
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		if len(files) == 0 {
			return errors.New("not a terminal: use 'narrate submit' to convert files headlessly")
		}
		return runSubmit(cmd, files)
	}
	return runTUI(cmd.Context(), files, dir)
}

func runTUI(ctx context.Context, files []tasks.File, dir string) error {
	// Read environment to get UI settings
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	cfg.Path = dir
	cfg.Files = files
	cfg.ShowAllFiles = showAllFiles
	cfg.AutoPlay = opts.AutoPlay
	cfg.ExportTarget = opts.ExportTarget
	// Only search a directory when one was asked for, or nothing was named.
	if dir == "" && len(files) > 0 {
		cfg.NoDiscovery = true
	}

	svc, err := newServices(ctx, opts, serviceNeeds{audio: true, speech: true})
	if err != nil {
		return err
	}
	defer svc.Close()

	deps := ui.Deps{
		Tracker:  svc.tracker,
		Library:  svc.library,
		Exporter: svc.exporter,
	}
	if svc.player != nil {
		deps.Speaker = svc.speaker
	}
	if deps.Exporter == nil {
		// Without a configured target, downloads land in the working directory.
		deps.Exporter = export.DirExporter{Dir: "."}
	}

	if _, err := ui.NewProgram(cfg, deps).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	// A .env next to the working directory may point at the backend.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Could not read .env:", err)
	}

	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	flags.String("api-url", "", "PDF-to-audio backend URL")
	flags.Duration("poll-interval", 0, "delay between task status checks")
	flags.String("engine", "", "speech engine (espeak, piper or mock)")
	flags.Bool("debug", false, "log debug messages")
	rootCmd.Flags().BoolVarP(&showAllFiles, "all", "a", false, "search ignored and hidden directories for PDFs (TUI-mode only)")
	rootCmd.Flags().Bool("auto-play", false, "play audio as soon as a file is ready (TUI-mode only)")

	// Config bindings
	_ = viper.BindPFlag("api_url", flags.Lookup("api-url"))
	_ = viper.BindPFlag("poll_interval", flags.Lookup("poll-interval"))
	_ = viper.BindPFlag("speech.engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("playback.auto_play", rootCmd.Flags().Lookup("auto-play"))

	setDefaults()
	viper.SetDefault("all", false)

	rootCmd.AddCommand(configCmd, manCmd, submitCmd, speakCmd, watchCmd, devserverCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "narrate")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "narrate")}, dirs...)
	}

	if c := os.Getenv("NARRATE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("narrate")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("narrate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "narrate.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
