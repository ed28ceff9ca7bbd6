package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpadapter "antygravity/internal/adapters/http"
	"antygravity/internal/policy"
	"antygravity/internal/scoring"
	"antygravity/internal/services/batches"
	"antygravity/internal/services/network"
	"antygravity/internal/services/privacy"
	"antygravity/internal/workers/batchrunner"
)

const shutdownTimeout = 10 * time.Second

func (a *app) serveCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the batch workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	cmd.Flags().String("listen", "", "Listen address, e.g. :8080")
	cmd.Flags().Int("workers", 0, "Number of batch workers (0 disables background processing)")
	a.bind(cmd, map[string]string{"listen_addr": "listen", "workers": "workers"})
	return cmd
}

func (a *app) serve(parent context.Context, migrate bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if migrate {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
	}

	reg, err := a.registry()
	if err != nil {
		return err
	}
	snap := reg.Snapshot()
	a.log.Info("policies loaded", "versions", snap.Versions(), "default", snap.Default())

	scorer := scoring.New(reg)
	processor := batchrunner.Scorer{Jobs: store, Checks: store, Scoring: scorer}
	if a.cfg.Auth.Secret == "" {
		a.log.Warn("no auth secret configured; every request runs as the dev user", "user", httpadapter.DevUser)
	}
	srv := httpadapter.New(httpadapter.Deps{
		Checker:   privacy.New(scorer, store, a.log),
		Batches:   batches.New(reg, store, a.log),
		Network:   network.New(store, store, a.log),
		Policies:  reg,
		Jobs:      store,
		Processor: processor,
		Auth:      httpadapter.NewAuthenticator(a.cfg.Auth.Secret, a.cfg.Auth.Issuer, a.cfg.Development()),
		Log:       a.log,
	})
	srv.MaxWait = a.cfg.BatchWaitTimeout

	workersDone := batchrunner.Run(ctx, store, processor, a.cfg.Workers, a.cfg.PollInterval, a.log)
	if a.cfg.Workers > 0 {
		a.log.Info("batch workers started", "workers", a.cfg.Workers)
	}
	go a.reloadOnHangup(ctx, reg)

	httpSrv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	a.log.Info("listening", "addr", a.cfg.ListenAddr, "backend", a.cfg.Database.Backend)

	var serveErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		a.log.Warn("batch workers did not stop in time")
	}
	return serveErr
}

// reloadOnHangup republishes policies on SIGHUP. A failed reload keeps the
// current snapshot.
func (a *app) reloadOnHangup(ctx context.Context, reg *policy.Registry) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := reg.Reload(a.policyOptions()); err != nil {
				a.log.Error("policy reload failed", "err", err)
				continue
			}
			snap := reg.Snapshot()
			a.log.Info("policies reloaded", "versions", snap.Versions(), "default", snap.Default())
		}
	}
}
