package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/notify"
)

// Orchestrator runs the background jobs as concurrent goroutines: the
// settlement sweeper, the cold-storage archiver, and the alert listener.
// Any of the three may be nil, in which case it simply is not started.
type Orchestrator struct {
	settler         *Settler
	archiver        *Archiver
	alerts          *notify.Alerts
	settleInterval  time.Duration
	archiveInterval time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	settler *Settler,
	archiver *Archiver,
	alerts *notify.Alerts,
	settleInterval time.Duration,
	archiveInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		settler:         settler,
		archiver:        archiver,
		alerts:          alerts,
		settleInterval:  settleInterval,
		archiveInterval: archiveInterval,
		logger:          logger.With(slog.String("component", "worker")),
	}
}

// Run starts the jobs under an errgroup. Each respects ctx cancellation; a
// non-context error from any job cancels the rest and is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.InfoContext(ctx, "worker orchestrator starting",
		slog.Duration("settle_interval", o.settleInterval),
		slog.Duration("archive_interval", o.archiveInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.settler != nil {
		g.Go(func() error {
			err := o.settler.RunLoop(ctx, o.settleInterval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("settler: %w", err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunLoop(ctx, o.archiveInterval)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if o.alerts != nil {
		g.Go(func() error {
			err := o.alerts.Run(ctx)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("alerts: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.ErrorContext(ctx, "worker orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.InfoContext(ctx, "worker orchestrator stopped cleanly")
	return nil
}
