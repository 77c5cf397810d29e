package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/flowtalk"
	"github.com/aretw0/flowtalk/internal/cli"
	flowhttp "github.com/aretw0/flowtalk/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversations over HTTP",
	Long: `Exposes conversation sessions as a JSON API, with Server-Sent Events per session
and Prometheus metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		stack, err := buildStack(cmd)
		if err != nil {
			return err
		}
		defer stack.Close()

		handler := flowhttp.NewHandler(stack.Sessions,
			flowhttp.WithStreams(stack.Streams),
			flowhttp.WithMetrics(promhttp.HandlerFor(stack.Registry, promhttp.HandlerOpts{})),
			flowhttp.WithLogger(stack.Logger),
			flowhttp.WithVersion(strings.TrimSpace(flowtalk.Version)),
		)
		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			stack.Logger.Info("http server listening", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case <-sigCtx.Done():
			stack.Logger.Info("shutting down", "signal", sigCtx.Signal())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return errors.Join(fmt.Errorf("graceful shutdown did not complete: %w", err), srv.Close())
			}
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
