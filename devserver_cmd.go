package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/narrate/internal/devserver"
	"github.com/dgnsrekt/narrate/internal/speech"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	devserverAddr   string
	devserverSteps  int
	devserverSpeech bool

	devserverCmd = &cobra.Command{
		Use:   "devserver",
		Short: "Run a local emulator of the PDF-to-audio backend",
		Long: paragraph(fmt.Sprintf("\n%s a local backend that accepts PDF uploads and reports task progress like the real one. "+
			"Files whose name contains \"fail\" end in FAILURE.", keyword("Run"))),
		Example: paragraph("narrate devserver\nnarrate devserver --addr :9000 --steps 5"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logToStderr()
			if !opts.Debug {
				gin.SetMode(gin.ReleaseMode)
			}

			var engine speech.Engine
			if devserverSpeech {
				e, err := speech.New(opts.Speech)
				if err != nil {
					return err //nolint:wrapcheck
				}
				if err := e.Validate(); err != nil {
					return fmt.Errorf("speech engine %q is unavailable: %w", e.Name(), err)
				}
				engine = e
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := devserver.New(devserver.Config{
				Steps:  devserverSteps,
				Engine: engine,
				Logger: log.Default().WithPrefix("devserver"),
			})
			return srv.ListenAndServe(ctx, devserverAddr) //nolint:wrapcheck
		},
	}
)

func init() {
	devserverCmd.Flags().StringVar(&devserverAddr, "addr", "127.0.0.1:8000", "address to listen on")
	devserverCmd.Flags().IntVar(&devserverSteps, "steps", 2, "status requests spent in each of PENDING and STARTED")
	devserverCmd.Flags().BoolVar(&devserverSpeech, "speech", false, "narrate the filename with the configured speech engine instead of a tone")
}
