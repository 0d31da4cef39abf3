package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/export"
	"github.com/dgnsrekt/narrate/internal/tasks"
	"github.com/dgnsrekt/narrate/internal/watch"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	submitOut  string
	submitPlay bool

	submitCmd = &cobra.Command{
		Use:   "submit PDF...",
		Short: "Convert PDFs to audio without the TUI",
		Long: paragraph(fmt.Sprintf("\n%s each PDF to the backend and wait for its audio. "+
			"Use --out to save the results to a directory or an s3:// bucket.", keyword("Submit"))),
		Example: paragraph("narrate submit report.pdf\nnarrate submit *.pdf --out ~/audio\nnarrate submit paper.pdf --out s3://my-bucket/narrations"),
		Args:    cobra.MinimumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"pdf"}, cobra.ShellCompDirectiveFilterFileExt
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			files, dir, err := selectionFromArgs(args)
			if err != nil {
				return err
			}
			if dir != "" {
				return fmt.Errorf("%s is a directory: use 'narrate watch' to convert a folder", dir)
			}
			return runSubmit(cmd, files)
		},
	}
)

// result is the outcome of one submitted file.
type result struct {
	file tasks.File
	task tasks.FileTask
	err  error
}

func runSubmit(cmd *cobra.Command, files []tasks.File) error {
	logToStderr()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	target := submitOut
	if target == "" {
		target = opts.ExportTarget
	}
	o := opts
	o.ExportTarget = target

	svc, err := newServices(ctx, o, serviceNeeds{audio: submitPlay})
	if err != nil {
		return err
	}
	defer svc.Close()

	results := submitAll(ctx, svc.tracker, files)

	var failed int
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", failMark, r.file.Name, r.err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) %s\n", okMark, r.file.Name, humanize.Bytes(uint64(r.file.Size)), r.task.AudioURL) //nolint:gosec

		if svc.exporter != nil {
			loc, err := svc.library.Export(ctx, svc.exporter, export.AudioName(r.file.Name), r.task.AudioURL)
			if err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: unable to save audio: %v\n", failMark, r.file.Name, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  saved to %s\n", loc)
		}
		if submitPlay {
			if err := playAndWait(ctx, svc, r.task.AudioURL); err != nil {
				log.Warn("playback failed", "file", r.file.Name, "err", err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

// submitAll submits every file concurrently and waits for each to settle.
// Results keep the order of files.
func submitAll(ctx context.Context, tracker watch.Submitter, files []tasks.File) []result {
	results := make([]result, len(files))
	var settled atomic.Int32

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			results[i] = submitOne(ctx, tracker, f)
			log.Debug("file settled", "file", f.Key(), "done", settled.Add(1), "of", len(files))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func submitOne(ctx context.Context, tracker watch.Submitter, f tasks.File) result {
	r := result{file: f}
	if err := tracker.Submit(ctx, f); err != nil {
		// The store holds the failure; Wait below returns it.
		log.Debug("submit returned", "file", f.Key(), "err", err)
	}
	ft, err := tracker.Wait(ctx, f.Key())
	r.task = ft
	switch {
	case err != nil:
		r.err = err
	case ft.Status == tasks.StatusError:
		r.err = errors.New(ft.ErrorMessage)
	}
	return r
}

func playAndWait(ctx context.Context, svc *services, audioURL string) error {
	if svc.player == nil {
		return errors.New("no audio output available")
	}
	if err := svc.library.Play(ctx, audioURL); err != nil {
		return err //nolint:wrapcheck
	}
	for svc.library.IsPlaying() {
		select {
		case <-ctx.Done():
			_ = svc.library.Stop()
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

func init() {
	submitCmd.Flags().StringVarP(&submitOut, "out", "o", "", "save audio to a directory or s3://bucket/prefix")
	submitCmd.Flags().BoolVar(&submitPlay, "play", false, "play each file's audio once it is ready")
}
