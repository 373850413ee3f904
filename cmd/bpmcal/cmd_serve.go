package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/bpm-calibrate/internal/db"
	"github.com/banshee-data/bpm-calibrate/internal/monitoring"
)

func newServeCmd(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve <outdir>",
		Short: "Serve the ledger over HTTP: JSON API, SQL console and backups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(opts)
			if err != nil {
				return err
			}
			ledger, err := db.NewDB(ledgerPath(opts, settings, args[0]))
			if err != nil {
				return err
			}
			defer ledger.Close()

			mux := http.NewServeMux()
			if err := ledger.AttachAdminRoutes(mux); err != nil {
				return err
			}
			ledger.AttachAPIRoutes(mux)
			mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/" {
					http.NotFound(w, r)
					return
				}
				http.Redirect(w, r, "/debug/", http.StatusFound)
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, &http.Server{Addr: listen, Handler: mux})
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "localhost:8080", "HTTP listen address")
	return cmd
}

// serve runs server until ctx is done, then shuts it down.
func serve(ctx context.Context, server *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		monitoring.Logf("ledger console on http://%s/debug/", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			monitoring.Logf("HTTP server shutdown error: %v", err)
		}
		return nil
	})
	return g.Wait()
}
