package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/speech"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

var (
	speakOut string

	speakCmd = &cobra.Command{
		Use:   "speak [TEXT|-]",
		Short: "Speak text aloud",
		Long: paragraph(fmt.Sprintf("\n%s the given text with the configured speech engine. "+
			"Text is read from stdin when it is piped or when the argument is -.", keyword("Speak"))),
		Example: paragraph("narrate speak \"hello there\"\necho hello | narrate speak\nnarrate speak -o hello.wav hello"),
		RunE: func(cmd *cobra.Command, args []string) error {
			logToStderr()

			piped, err := stdinIsPipe()
			if err != nil {
				return err
			}
			text, err := readText(args, os.Stdin, piped)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			svc, err := newServices(ctx, opts, serviceNeeds{speech: true})
			if err != nil {
				return err
			}
			defer svc.Close()
			if svc.speaker == nil {
				return fmt.Errorf("speech engine %q is unavailable", opts.Speech.Engine)
			}

			if speakOut != "" {
				return renderToFile(cmd, svc.speaker, text, speakOut)
			}

			if err := svc.speaker.Speak(ctx, text); err != nil {
				if errors.Is(err, speech.ErrNoOutput) {
					return fmt.Errorf("%w: use --out to save the audio instead", err)
				}
				return err //nolint:wrapcheck
			}
			for svc.speaker.IsSpeaking() {
				select {
				case <-ctx.Done():
					return svc.speaker.Stop() //nolint:wrapcheck
				case <-time.After(100 * time.Millisecond):
				}
			}
			return nil
		},
	}
)

// maxStdinBytes bounds piped input. Normalize enforces the character limit on
// what is left after whitespace is collapsed.
const maxStdinBytes = 1 << 20

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// readText returns the text to speak: args joined by spaces, or all of r when
// the only argument is "-" or input is piped without arguments.
func readText(args []string, r io.Reader, piped bool) (string, error) {
	if (len(args) == 1 && args[0] == "-") || (len(args) == 0 && piped) {
		b, err := io.ReadAll(io.LimitReader(r, maxStdinBytes+1))
		if err != nil {
			return "", fmt.Errorf("unable to read stdin: %w", err)
		}
		if len(b) > maxStdinBytes {
			return "", fmt.Errorf("%w: more than %d bytes on stdin", speech.ErrTextTooLong, maxStdinBytes)
		}
		return string(b), nil
	}
	if len(args) == 0 {
		return "", errors.New("nothing to speak: pass text as arguments or pipe it in")
	}
	return strings.Join(args, " "), nil
}

func renderToFile(cmd *cobra.Command, s *speech.Speaker, text, out string) error {
	path, err := homedir.Expand(out)
	if err != nil {
		return fmt.Errorf("invalid output path: %w", err)
	}
	clip, err := s.Render(cmd.Context(), text)
	if err != nil {
		return err //nolint:wrapcheck
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create directory: %w", err)
	}
	if err := os.WriteFile(path, clip, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("unable to write audio: %w", err)
	}
	log.Debug("wrote speech", "path", path, "bytes", len(clip))
	fmt.Fprintln(cmd.OutOrStdout(), "Wrote audio to:", path)
	return nil
}

func init() {
	speakCmd.Flags().StringVarP(&speakOut, "out", "o", "", "write a WAV file instead of playing")
}
