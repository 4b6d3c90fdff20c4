package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/notify"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/server"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/server/handler"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/server/ws"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/service"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/worker"
)

// shutdownTimeout is the grace period for draining in-flight HTTP requests.
const shutdownTimeout = 10 * time.Second

// services bundles the three ledger services built on top of Dependencies.
type services struct {
	Registry    *service.RegistryService
	Commitments *service.CommitmentService
	Allocations *service.AllocationService
}

// buildServices constructs the ledger services from the wired dependencies.
func (a *App) buildServices(deps *Dependencies) *services {
	col := service.Collaborators{
		Clock:    deps.Clock,
		Auth:     deps.Auth,
		Transfer: deps.Transfer,
		Minter:   deps.Minter,
		Bus:      deps.Bus,
		Audit:    deps.AuditStore,
		Locks:    deps.Locks,
		Custody:  a.cfg.Custody.Account,
	}

	return &services{
		Registry:    service.NewRegistryService(deps.RegistryStore, col, a.logger),
		Commitments: service.NewCommitmentService(deps.CommitmentStore, deps.AllocationStore, deps.RegistryStore, col, a.logger),
		Allocations: service.NewAllocationService(deps.AllocationStore, deps.CommitmentStore, deps.RegistryStore, col, a.logger),
	}
}

// ServerMode runs only the HTTP + WebSocket API.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	return g.Wait()
}

// WorkerMode runs only the background jobs: the settlement sweeper, the
// cold-storage archiver, and the alert listener.
func (a *App) WorkerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting worker mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startWorker(ctx, g, deps, svcs)

	return g.Wait()
}

// FullMode runs the API server and the background jobs in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)
	a.startWorker(ctx, g, deps, svcs)

	return g.Wait()
}

// DevMode runs the API server and the settlement sweeper against in-process
// stores. No external services are needed; state is lost on exit.
func (a *App) DevMode(ctx context.Context, deps *Dependencies) error {
	a.logger.WarnContext(ctx, "starting dev mode, state is in-memory only")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)
	a.startHTTPServer(ctx, g, deps, svcs)

	settler := worker.NewSettler(svcs.Commitments, deps.Clock, a.logger)
	g.Go(func() error {
		err := settler.RunLoop(ctx, a.cfg.Worker.SettleInterval.Duration)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dev mode: settler: %w", err)
	})

	return g.Wait()
}

// startHTTPServer registers the API handlers and runs the server until the
// context is cancelled, then drains it gracefully.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "http server disabled by config")
		return
	}

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(a.logger),
		Commitments: handler.NewCommitmentHandler(svcs.Commitments, a.logger),
		Allocations: handler.NewAllocationHandler(svcs.Allocations, a.logger),
		Registry:    handler.NewRegistryHandler(svcs.Registry, a.logger),
		Audit:       handler.NewAuditHandler(deps.AuditStore, a.logger),
	}

	hub := ws.NewHub(deps.Bus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// startWorker assembles the background jobs and runs the orchestrator.
func (a *App) startWorker(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	if !a.cfg.Worker.Enabled {
		a.logger.InfoContext(ctx, "worker disabled by config")
		return
	}

	settler := worker.NewSettler(svcs.Commitments, deps.Clock, a.logger)

	var archiver *worker.Archiver
	if deps.Archiver != nil {
		archiver = worker.NewArchiver(deps.Archiver, a.cfg.Worker.ArchiveRetentionDays, deps.Clock, a.logger)
	} else {
		a.logger.WarnContext(ctx, "archiver not wired, skipping cold-storage job")
	}

	var alerts *notify.Alerts
	if deps.Notifier.HasSenders() {
		alerts = notify.NewAlerts(deps.Bus, deps.Notifier, a.logger)
	} else {
		a.logger.InfoContext(ctx, "no notification channels configured, skipping alert listener")
	}

	orch := worker.NewOrchestrator(
		settler,
		archiver,
		alerts,
		a.cfg.Worker.SettleInterval.Duration,
		a.cfg.Worker.ArchiveInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return orch.Run(ctx)
	})
}
