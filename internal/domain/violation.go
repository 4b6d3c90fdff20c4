package domain

import (
	"math/big"
	"time"
)

var hundred = big.NewInt(100)

// LossPercent computes the truncated loss percentage of currentValue against
// amount: (amount - currentValue) * 100 / amount. The product is taken in
// arbitrary precision so it cannot overflow, then truncated toward zero. A
// non-positive amount yields 0 so callers never divide by zero.
func LossPercent(amount, currentValue int64) int64 {
	if amount <= 0 {
		return 0
	}
	loss := new(big.Int).SetInt64(amount - currentValue)
	loss.Mul(loss, hundred)
	loss.Quo(loss, big.NewInt(amount))
	return loss.Int64()
}

// PercentOf returns pct percent of value, truncated toward zero, using the
// same widened arithmetic as LossPercent. Used for the early-exit penalty.
func PercentOf(value int64, pct int) int64 {
	p := new(big.Int).SetInt64(value)
	p.Mul(p, big.NewInt(int64(pct)))
	p.Quo(p, hundred)
	return p.Int64()
}

// ViolationDetails is the full result of a violation check.
type ViolationDetails struct {
	HasViolations    bool
	LossViolated     bool
	DurationViolated bool
	LossPercent      int64
	TimeRemaining    time.Duration
}

// CheckViolations evaluates both rule checks for a commitment at the given
// instant, regardless of its current status. Loss violates only on a strict
// excess of the threshold; duration violates from the expiry instant onward.
func CheckViolations(c Commitment, now time.Time) ViolationDetails {
	lossPct := LossPercent(c.Amount, c.CurrentValue)
	d := ViolationDetails{
		LossViolated:     lossPct > int64(c.Rules.MaxLossPercent),
		DurationViolated: c.Expired(now),
		LossPercent:      lossPct,
		TimeRemaining:    c.TimeRemaining(now),
	}
	d.HasViolations = d.LossViolated || d.DurationViolated
	return d
}
