package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// Archiver periodically moves cold data from the database to blob storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	clock         domain.Clock
	logger        *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, clock domain.Clock, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		clock:         clock,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive pass. The cutoff is now minus the retention
// window; audit entries and terminal commitments older than it are exported.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.clock.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	auditArchived, err := a.blobArchiver.ArchiveAudit(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving audit entries before %v: %w", cutoff, err)
	}

	commitmentsArchived, err := a.blobArchiver.ArchiveCommitments(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving commitments before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("audit_archived", auditArchived),
		slog.Int64("commitments_archived", commitmentsArchived),
	)
	return nil
}

// RunLoop runs archive passes on the given interval until the context is
// cancelled. A failed pass is logged and retried on the next tick.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
