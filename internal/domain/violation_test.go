package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testCommitment(amount, currentValue int64, maxLoss, durationDays int, createdAt time.Time) Commitment {
	return Commitment{
		ID:    "cmt-000001",
		Owner: "0xowner",
		Rules: CommitmentRules{
			DurationDays:     durationDays,
			MaxLossPercent:   maxLoss,
			CommitmentType:   TypeBalanced,
			EarlyExitPenalty: 10,
			MinFeeThreshold:  1000,
		},
		Amount:       amount,
		AssetAddress: "0xasset",
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(time.Duration(durationDays) * 24 * time.Hour),
		CurrentValue: currentValue,
		Status:       StatusActive,
	}
}

func TestLossPercent(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		current int64
		want    int64
	}{
		{"no loss", 1000, 1000, 0},
		{"five percent", 1000, 950, 5},
		{"fifteen percent", 1000, 850, 15},
		{"truncates toward zero", 1000, 899, 10}, // 10.1% truncates to 10
		{"full loss", 1000, 0, 100},
		{"gain yields non-positive", 1000, 1100, -10},
		{"zero amount short-circuits", 0, 0, 0},
		{"negative amount short-circuits", -5, 0, 0},
		{"huge amounts do not overflow", 1 << 62, (1 << 62) - (1 << 61), 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LossPercent(tt.amount, tt.current))
		})
	}
}

func TestCheckViolationsLossBoundary(t *testing.T) {
	createdAt := time.Unix(1000, 0).UTC()
	now := createdAt.Add(15 * 24 * time.Hour)

	// Exactly at the threshold does not violate; strict > only.
	atLimit := testCommitment(1000, 900, 10, 30, createdAt)
	d := CheckViolations(atLimit, now)
	assert.False(t, d.LossViolated)
	assert.False(t, d.HasViolations)
	assert.Equal(t, int64(10), d.LossPercent)

	// One unit below the threshold value violates: 10.1% truncates to 10,
	// so the first violating mark is the one where truncation exceeds 10.
	overLimit := testCommitment(1000, 889, 10, 30, createdAt)
	d = CheckViolations(overLimit, now)
	assert.True(t, d.LossViolated)
	assert.True(t, d.HasViolations)
	assert.Equal(t, int64(11), d.LossPercent)
}

func TestCheckViolationsDurationBoundary(t *testing.T) {
	createdAt := time.Unix(1000, 0).UTC()
	c := testCommitment(1000, 950, 10, 30, createdAt)

	// One second before expiry: still inside the window.
	d := CheckViolations(c, c.ExpiresAt.Add(-time.Second))
	assert.False(t, d.DurationViolated)
	assert.False(t, d.HasViolations)
	assert.Greater(t, d.TimeRemaining, time.Duration(0))

	// The expiry instant itself counts as expired.
	d = CheckViolations(c, c.ExpiresAt)
	assert.True(t, d.DurationViolated)
	assert.True(t, d.HasViolations)
	assert.Equal(t, time.Duration(0), d.TimeRemaining)
}

func TestCheckViolationsZeroAmount(t *testing.T) {
	createdAt := time.Unix(1000, 0).UTC()
	c := testCommitment(0, 0, 10, 30, createdAt)

	// Zero amount never divides by zero; only duration can violate.
	d := CheckViolations(c, createdAt.Add(15*24*time.Hour))
	assert.False(t, d.HasViolations)
	assert.Equal(t, int64(0), d.LossPercent)

	d = CheckViolations(c, c.ExpiresAt)
	assert.True(t, d.HasViolations)
	assert.True(t, d.DurationViolated)
	assert.False(t, d.LossViolated)
}

func TestCheckViolationsBoth(t *testing.T) {
	createdAt := time.Unix(1000, 0).UTC()
	c := testCommitment(1000, 800, 10, 30, createdAt)

	d := CheckViolations(c, createdAt.Add(31*24*time.Hour))
	assert.True(t, d.HasViolations)
	assert.True(t, d.LossViolated)
	assert.True(t, d.DurationViolated)
	assert.Equal(t, int64(20), d.LossPercent)
}

func TestRulesValidate(t *testing.T) {
	valid := CommitmentRules{
		DurationDays:     365,
		MaxLossPercent:   20,
		CommitmentType:   TypeSafe,
		EarlyExitPenalty: 10,
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*CommitmentRules)
	}{
		{"zero duration", func(r *CommitmentRules) { r.DurationDays = 0 }},
		{"negative duration", func(r *CommitmentRules) { r.DurationDays = -1 }},
		{"loss percent over 100", func(r *CommitmentRules) { r.MaxLossPercent = 101 }},
		{"negative loss percent", func(r *CommitmentRules) { r.MaxLossPercent = -1 }},
		{"penalty over 100", func(r *CommitmentRules) { r.EarlyExitPenalty = 101 }},
		{"unknown type", func(r *CommitmentRules) { r.CommitmentType = "reckless" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.ErrorIs(t, r.Validate(), ErrInvalidRules)
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	assert.True(t, StatusSettled.Terminal())
	assert.True(t, StatusViolated.Terminal())
	assert.True(t, StatusEarlyExit.Terminal())
}

func TestFormatCommitmentID(t *testing.T) {
	assert.Equal(t, "cmt-000001", FormatCommitmentID(1))
	assert.Equal(t, "cmt-1000000", FormatCommitmentID(1000000))
}
