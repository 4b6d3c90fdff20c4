// Package worker runs the background jobs of the ledger: the settlement
// sweeper that resolves matured commitments and the archiver that moves cold
// data to blob storage.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/service"
)

// settleBatchSize is how many active commitments a sweep pulls per page.
const settleBatchSize = 200

// Settler sweeps active commitments and settles the ones past expiry.
// Settlement is permissionless, so the sweeper needs no signing key.
type Settler struct {
	commitments *service.CommitmentService
	clock       domain.Clock
	logger      *slog.Logger
}

// NewSettler creates a Settler.
func NewSettler(commitments *service.CommitmentService, clock domain.Clock, logger *slog.Logger) *Settler {
	return &Settler{
		commitments: commitments,
		clock:       clock,
		logger:      logger.With(slog.String("component", "settler")),
	}
}

// RunLoop sweeps on the given interval until the context is cancelled.
func (s *Settler) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Sweep immediately on start.
	if err := s.Sweep(ctx); err != nil {
		s.logger.ErrorContext(ctx, "settlement sweep failed", slog.String("error", err.Error()))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "settler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.logger.ErrorContext(ctx, "settlement sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep runs one pass over the active commitments and settles every expired
// one. A single commitment failing to settle does not stop the pass; it is
// retried on the next sweep.
func (s *Settler) Sweep(ctx context.Context) error {
	now := s.clock.Now()
	var settled, failed int

	for offset := 0; ; offset += settleBatchSize {
		batch, err := s.commitments.ListActive(ctx, domain.ListOpts{
			Limit:  settleBatchSize,
			Offset: offset,
		})
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}

		for _, c := range batch {
			if !c.Expired(now) {
				continue
			}
			if err := s.commitments.Settle(ctx, c.ID); err != nil {
				// Another writer can win the race between the list and the
				// settle call.
				if errors.Is(err, domain.ErrInactiveCommitment) || errors.Is(err, domain.ErrLockHeld) {
					continue
				}
				failed++
				s.logger.WarnContext(ctx, "settle failed",
					slog.String("commitment_id", c.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			settled++
		}

		if len(batch) < settleBatchSize {
			break
		}
	}

	if settled > 0 || failed > 0 {
		s.logger.InfoContext(ctx, "settlement sweep complete",
			slog.Int("settled", settled),
			slog.Int("failed", failed),
		)
	}
	return nil
}
