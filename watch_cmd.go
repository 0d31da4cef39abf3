package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/export"
	"github.com/dgnsrekt/narrate/internal/tasks"
	"github.com/dgnsrekt/narrate/internal/watch"
	"github.com/spf13/cobra"
)

var (
	watchOut      string
	watchExisting bool
	watchWorkers  int

	watchCmd = &cobra.Command{
		Use:   "watch DIR",
		Short: "Convert every PDF dropped into a directory",
		Long: paragraph(fmt.Sprintf("\n%s a directory and submit each new PDF once it has finished writing. "+
			"Results are logged, and saved when --out or export.target is set.", keyword("Watch"))),
		Example: paragraph("narrate watch ~/Downloads\nnarrate watch inbox --existing --out s3://my-bucket/narrations"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logToStderr()

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("unable to get absolute path: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			o := opts
			if watchOut != "" {
				o.ExportTarget = watchOut
			}
			svc, err := newServices(ctx, o, serviceNeeds{})
			if err != nil {
				return err
			}
			defer svc.Close()

			w, err := watch.New(svc.tracker, watch.Options{
				Dir:      dir,
				Workers:  watchWorkers,
				Existing: watchExisting,
				OnResult: func(f tasks.File, ft tasks.FileTask, err error) {
					if err != nil {
						log.Error("conversion failed", "file", f.Name, "err", err)
						return
					}
					log.Info("audio ready", "file", f.Name, "task", ft.TaskID, "url", ft.AudioURL)
					if svc.exporter == nil {
						return
					}
					loc, err := svc.library.Export(ctx, svc.exporter, export.AudioName(f.Name), ft.AudioURL)
					if err != nil {
						log.Error("unable to save audio", "file", f.Name, "err", err)
						return
					}
					log.Info("saved", "file", f.Name, "location", loc)
				},
			})
			if err != nil {
				return err //nolint:wrapcheck
			}
			return w.Run(ctx) //nolint:wrapcheck
		},
	}
)

func init() {
	watchCmd.Flags().StringVarP(&watchOut, "out", "o", "", "save audio to a directory or s3://bucket/prefix")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also submit PDFs already in the directory")
	watchCmd.Flags().IntVarP(&watchWorkers, "workers", "w", 2, "how many files to convert at once")
}
