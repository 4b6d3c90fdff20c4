package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

func TestCreateCommitment(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))

	c, err := f.createCommitment(ctx, 1_000_000)
	require.NoError(t, err)

	assert.Equal(t, "cmt-000001", c.ID)
	assert.Equal(t, testOwner, c.Owner)
	assert.Equal(t, int64(1_000_000), c.Amount)
	assert.Equal(t, int64(1_000_000), c.CurrentValue)
	assert.Equal(t, domain.StatusActive, c.Status)
	assert.Equal(t, c.CreatedAt.Add(365*24*time.Hour), c.ExpiresAt)

	// The principal moved owner -> custody.
	calls := f.transfer.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, transferCall{Asset: testAsset, From: testOwner, To: testCustody, Amount: 1_000_000}, calls[0])

	// The free balance starts at the full amount.
	balance, err := f.Allocations.FreeBalance(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), balance)
}

func TestCreateCommitmentValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))

	_, err := f.Commitments.Create(ctx, testOwner, proofFor(testOwner), 0, testAsset, defaultRules())
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	bad := defaultRules()
	bad.MaxLossPercent = 101
	_, err = f.Commitments.Create(ctx, testOwner, proofFor(testOwner), 1000, testAsset, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidRules)

	bad = defaultRules()
	bad.DurationDays = 0
	_, err = f.Commitments.Create(ctx, testOwner, proofFor(testOwner), 1000, testAsset, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidRules)

	_, err = f.Commitments.Create(ctx, testOwner, proofFor("0xintruder"), 1000, testAsset, defaultRules())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Validation failures never reach custody.
	assert.Empty(t, f.transfer.Calls())
}

func TestCreateCommitmentTransferFailureLeavesNoState(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	f.transfer.Fail(errCustodyDown)

	_, err := f.createCommitment(ctx, 1000)
	assert.ErrorIs(t, err, domain.ErrTransferFailed)

	list, err := f.Commitments.ListActive(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, list)

	// The reserved ID is burned, not reused.
	f.transfer.Fail(nil)
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, "cmt-000002", c.ID)
}

func TestUpdateValueWithinLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1_000_000)
	require.NoError(t, err)

	// 15% loss against a 20% limit stays active.
	require.NoError(t, f.Commitments.UpdateValue(ctx, testValuator, proofFor(testValuator), c.ID, 850_000))

	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(850_000), got.CurrentValue)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestUpdateValuePastLimitViolates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1_000_000)
	require.NoError(t, err)

	// 25% loss against a 20% limit is terminal.
	require.NoError(t, f.Commitments.UpdateValue(ctx, testValuator, proofFor(testValuator), c.ID, 750_000))

	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusViolated, got.Status)

	// Further marks on the violated commitment are rejected.
	err = f.Commitments.UpdateValue(ctx, testValuator, proofFor(testValuator), c.ID, 900_000)
	assert.ErrorIs(t, err, domain.ErrInactiveCommitment)
}

func TestUpdateValueTruncatedLossBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))

	rules := defaultRules()
	rules.MaxLossPercent = 10
	c, err := f.Commitments.Create(ctx, testOwner, proofFor(testOwner), 1000, testAsset, rules)
	require.NoError(t, err)

	// 899 is a 10.1% raw loss but truncates to 10%, exactly at the limit.
	require.NoError(t, f.Commitments.UpdateValue(ctx, testValuator, proofFor(testValuator), c.ID, 899))
	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	// 889 truncates to 11% and trips the limit.
	require.NoError(t, f.Commitments.UpdateValue(ctx, testValuator, proofFor(testValuator), c.ID, 889))
	got, err = f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusViolated, got.Status)
}

func TestUpdateValueGainNeverViolates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	require.NoError(t, f.Commitments.UpdateValue(ctx, testValuator, proofFor(testValuator), c.ID, 5000))
	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
	assert.Equal(t, int64(5000), got.CurrentValue)
}

func TestUpdateValueAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	// The admin may mark without being on the valuator list.
	require.NoError(t, f.Commitments.UpdateValue(ctx, testAdmin, proofFor(testAdmin), c.ID, 950))

	// The owner is not automatically a valuator.
	err = f.Commitments.UpdateValue(ctx, testOwner, proofFor(testOwner), c.ID, 940)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// A valid valuator with a mismatched proof is rejected.
	err = f.Commitments.UpdateValue(ctx, testValuator, proofFor(testOwner), c.ID, 940)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestCheckViolations(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	violated, err := f.Commitments.CheckViolations(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, violated)

	// Reaching the expiry instant is itself a duration violation.
	f.clock.Advance(365 * 24 * time.Hour)
	violated, err = f.Commitments.CheckViolations(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, violated)

	d, err := f.Commitments.ViolationDetails(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, d.DurationViolated)
	assert.False(t, d.LossViolated)
	assert.Zero(t, d.TimeRemaining)
}

func TestSettleAtMaturity(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1_000_000)
	require.NoError(t, err)

	err = f.Commitments.Settle(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotExpired)

	f.clock.Advance(365 * 24 * time.Hour)
	require.NoError(t, f.Commitments.Settle(ctx, c.ID))

	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSettled, got.Status)

	// Current value went custody -> owner.
	calls := f.transfer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, transferCall{Asset: testAsset, From: testCustody, To: testOwner, Amount: 1_000_000}, calls[1])

	// Settlement is not repeatable.
	err = f.Commitments.Settle(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrInactiveCommitment)
	assert.Len(t, f.transfer.Calls(), 2)
}

func TestSettleZeroValueSkipsTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	f.clock.Advance(365 * 24 * time.Hour)

	// Force the value to zero in the store; a zero-value settlement must
	// not call custody at all.
	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	got.CurrentValue = 0
	require.NoError(t, f.commitments.Update(ctx, got))

	before := len(f.transfer.Calls())
	require.NoError(t, f.Commitments.Settle(ctx, c.ID))
	assert.Len(t, f.transfer.Calls(), before)
}

func TestEarlyExitPenalty(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1_000_000)
	require.NoError(t, err)

	// 10% penalty on the current value stays in custody.
	require.NoError(t, f.Commitments.EarlyExit(ctx, c.ID, testOwner, proofFor(testOwner)))

	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEarlyExit, got.Status)
	assert.Equal(t, int64(900_000), got.CurrentValue)

	calls := f.transfer.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, transferCall{Asset: testAsset, From: testCustody, To: testOwner, Amount: 900_000}, calls[1])
}

func TestEarlyExitPenaltyTruncates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))

	rules := defaultRules()
	rules.EarlyExitPenalty = 33
	c, err := f.Commitments.Create(ctx, testOwner, proofFor(testOwner), 101, testAsset, rules)
	require.NoError(t, err)

	// 33% of 101 truncates to 33, leaving 68.
	require.NoError(t, f.Commitments.EarlyExit(ctx, c.ID, testOwner, proofFor(testOwner)))
	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(68), got.CurrentValue)
}

func TestEarlyExitOnlyOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	err = f.Commitments.EarlyExit(ctx, c.ID, "0xintruder", proofFor("0xintruder"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// Even the admin cannot exit on the owner's behalf.
	err = f.Commitments.EarlyExit(ctx, c.ID, testAdmin, proofFor(testAdmin))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	got, err := f.Commitments.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)
}

func TestEarlyExitTerminalRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.initRegistry(ctx))
	c, err := f.createCommitment(ctx, 1000)
	require.NoError(t, err)

	require.NoError(t, f.Commitments.EarlyExit(ctx, c.ID, testOwner, proofFor(testOwner)))
	err = f.Commitments.EarlyExit(ctx, c.ID, testOwner, proofFor(testOwner))
	assert.ErrorIs(t, err, domain.ErrInactiveCommitment)
}
