package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/api"
	"github.com/sells-group/compliance-cli/internal/digest"
	"github.com/sells-group/compliance-cli/internal/leads"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assessment API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		reg, b, err := initRegistry(ctx)
		if err != nil {
			return err
		}
		e, err := initEngine(b)
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		var opts []api.Option
		if cfg.SalesforceConfigured() {
			sf, err := initSalesforce()
			if err != nil {
				return err
			}
			opts = append(opts, api.WithSyncer(leads.NewSyncer(sf, st)))
		} else {
			zap.L().Info("salesforce not configured, lead sync disabled")
		}

		if cfg.Digest.IntervalHours > 0 {
			sched := digest.NewScheduler(
				digest.NewCollector(st),
				digest.NewNotifier(cfg.Digest.WebhookURL),
				time.Duration(cfg.Digest.IntervalHours)*time.Hour,
				time.Duration(cfg.Digest.LookbackDays)*24*time.Hour,
			)
			go sched.Run(ctx)
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewServer(e, reg, st, opts...).Handler(cfg.Server.CORSOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("bank_version", b.Version()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
