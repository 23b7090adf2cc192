package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Fairmint/canton/pkg/explorer"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCommand() *cobra.Command {
	var (
		listen  string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the explorer HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry := prometheus.NewRegistry()
			registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			server, err := explorer.New(explorer.Config{
				Providers:      a.providers,
				Logger:         a.logger,
				Registry:       registry,
				AuditLog:       a.audit,
				AccessLog:      a.stderr,
				AllowedOrigins: origins,
			})
			if err != nil {
				return err
			}

			listener, err := net.Listen("tcp", listen)
			if err != nil {
				return errors.Wrapf(err, "failed to listen on %s", listen)
			}
			httpServer := &http.Server{Handler: server.Handler(), ReadHeaderTimeout: 10 * time.Second}
			a.logger.Info("explorer listening", zap.String("addr", listener.Addr().String()))
			if a.onListen != nil {
				a.onListen(listener.Addr())
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- httpServer.Serve(listener)
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			a.logger.Info("shutting down explorer")
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return httpServer.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", ":3000", "address to listen on")
	cmd.Flags().StringSliceVar(&origins, "cors-origin", nil, "origins allowed to call the API from a browser")
	return cmd
}
