package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/service"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type openAuthorizer struct{}

func (openAuthorizer) RequireProof(ctx context.Context, principal string, proof domain.Proof) error {
	return nil
}

func newTestService(clock domain.Clock) (*service.CommitmentService, *memory.AssetLedger) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := memory.NewAssetLedger()
	col := service.Collaborators{
		Clock:    clock,
		Auth:     openAuthorizer{},
		Transfer: ledger,
		Custody:  "0xcustody",
	}
	svc := service.NewCommitmentService(
		memory.NewCommitmentStore(),
		memory.NewAllocationStore(),
		memory.NewRegistryStore(),
		col,
		logger,
	)
	return svc, ledger
}

func createWithDuration(t *testing.T, svc *service.CommitmentService, days int) domain.Commitment {
	t.Helper()
	c, err := svc.Create(context.Background(), "0xowner", domain.Proof{}, 1000, "0xusdc", domain.CommitmentRules{
		DurationDays:     days,
		MaxLossPercent:   20,
		CommitmentType:   domain.TypeSafe,
		EarlyExitPenalty: 5,
	})
	require.NoError(t, err)
	return c
}

func TestSweepSettlesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc, _ := newTestService(clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	short := createWithDuration(t, svc, 7)
	long := createWithDuration(t, svc, 30)

	settler := NewSettler(svc, clock, logger)

	// Nothing is expired yet.
	require.NoError(t, settler.Sweep(ctx))
	got, err := svc.Get(ctx, short.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	// Past the short commitment's expiry, before the long one's.
	clock.Advance(8 * 24 * time.Hour)
	require.NoError(t, settler.Sweep(ctx))

	got, err = svc.Get(ctx, short.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSettled, got.Status)

	got, err = svc.Get(ctx, long.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	svc, ledger := newTestService(clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c := createWithDuration(t, svc, 7)
	clock.Advance(8 * 24 * time.Hour)

	settler := NewSettler(svc, clock, logger)
	require.NoError(t, settler.Sweep(ctx))
	require.NoError(t, settler.Sweep(ctx))

	got, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSettled, got.Status)

	// One deposit in, one payout back.
	assert.Len(t, ledger.Movements(), 2)
}
