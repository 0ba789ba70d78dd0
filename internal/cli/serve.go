package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tableside/internal/metrics"
	"github.com/mesh-intelligence/tableside/internal/server"
)

func newServeCmd() *cobra.Command {
	var listen string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk HTTP API",
		Long: "Serve exposes the catalog, selection sessions and the cart over HTTP.\n" +
			"Prometheus metrics are served on /metrics.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := attachStore()
			if err != nil {
				return err
			}
			defer store.Detach()

			if listen == "" {
				listen = cfg.GetString(cfgKeyListenAddr)
			}
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			} else {
				gin.SetMode(gin.ReleaseMode)
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			srv := server.New(store, server.Options{
				Metrics:      metrics.New(),
				Logger:       logger,
				SessionTTL:   sessionTTL(),
				AllowOrigins: cfg.GetStringSlice(cfgKeyCORS),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := srv.Run(ctx, listen); err != nil {
				return sysError(fmt.Errorf("serve: %w", err))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config listen_addr)")
	cmd.Flags().BoolVar(&debug, "debug", false, "debug logging and gin debug mode")
	return cmd
}
