package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

func TestAllocateAndDeallocate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	require.NoError(t, f.Allocations.Allocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 100))

	balance, err := f.Allocations.FreeBalance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(900), balance)

	tracking, err := f.Allocations.Tracking(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), tracking.TotalAllocated)
	require.Len(t, tracking.Allocations, 1)
	assert.Equal(t, testPool, tracking.Allocations[0].TargetPool)
	assert.Equal(t, int64(100), tracking.Allocations[0].Amount)

	// Funds moved custody -> pool.
	calls := f.transfer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, transferCall{Asset: testAsset, From: testCustody, To: testPool, Amount: 100}, calls[1])

	require.NoError(t, f.Allocations.Deallocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 100))

	balance, err = f.Allocations.FreeBalance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)

	tracking, err = f.Allocations.Tracking(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), tracking.TotalAllocated)

	calls = f.transfer.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, transferCall{Asset: testAsset, From: testPool, To: testCustody, Amount: 100}, calls[2])
}

func TestAllocateRequiresAllocatorRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	// The owner is not an allocator.
	err = f.Allocations.Allocate(ctx, testOwner, proofFor(testOwner), c.ID, testPool, 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Neither is the admin without an explicit grant.
	err = f.Allocations.Allocate(ctx, testAdmin, proofFor(testAdmin), c.ID, testPool, 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// A forged proof for a real allocator fails too.
	err = f.Allocations.Allocate(ctx, testAllocator, proofFor(testOwner), c.ID, testPool, 100)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	balance, err := f.Allocations.FreeBalance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
}

func TestAllocateInsufficientBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	err = f.Allocations.Allocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 1001)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// Allocating the entire balance is allowed.
	require.NoError(t, f.Allocations.Allocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 1000))
	balance, err := f.Allocations.FreeBalance(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)

	err = f.Allocations.Allocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 1)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestOverDeallocationRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	require.NoError(t, f.Allocations.Allocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 100))

	err = f.Allocations.Deallocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 101)
	assert.ErrorIs(t, err, domain.ErrOverDeallocation)

	// The failed deallocation changed nothing.
	tracking, err := f.Allocations.Tracking(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), tracking.TotalAllocated)
}

func TestAllocateInvalidAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	err = f.Allocations.Allocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	err = f.Allocations.Deallocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestAllocateInactiveCommitment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	require.NoError(t, f.Commitments.EarlyExit(ctx, c.ID, testOwner, proofFor(testOwner)))

	err = f.Allocations.Allocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, 100)
	assert.ErrorIs(t, err, domain.ErrInactiveCommitment)
}

func TestAllocationBalancePlusTotalIsConserved(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	moves := []struct {
		dealloc bool
		amount  int64
	}{
		{false, 300},
		{false, 200},
		{true, 150},
		{false, 400},
		{true, 250},
	}
	for _, m := range moves {
		if m.dealloc {
			require.NoError(t, f.Allocations.Deallocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, m.amount))
		} else {
			require.NoError(t, f.Allocations.Allocate(ctx, testAllocator, proofFor(testAllocator), c.ID, testPool, m.amount))
		}

		balance, err := f.Allocations.FreeBalance(ctx, c.ID)
		require.NoError(t, err)
		tracking, err := f.Allocations.Tracking(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance+tracking.TotalAllocated)
	}
}

func TestTrackingUnknownCommitmentIsZero(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	tracking, err := f.Allocations.Tracking(ctx, "cmt-999999")
	require.NoError(t, err)
	assert.Zero(t, tracking.TotalAllocated)
	assert.Empty(t, tracking.Allocations)

	balance, err := f.Allocations.FreeBalance(ctx, "cmt-999999")
	require.NoError(t, err)
	assert.Zero(t, balance)
}
