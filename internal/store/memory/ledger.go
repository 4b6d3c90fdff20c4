package memory

import (
	"context"
	"sync"
	"time"
)

// Movement records one asset transfer seen by the ledger.
type Movement struct {
	Asset  string
	From   string
	To     string
	Amount int64
	At     time.Time
}

// AssetLedger is an in-process domain.AssetTransfer for dev mode. It records
// every movement and keeps per-address balances, but never rejects a debit;
// addresses are assumed to be funded out of band.
type AssetLedger struct {
	mu        sync.Mutex
	balances  map[string]int64 // keyed by asset + "/" + address
	movements []Movement
}

// NewAssetLedger creates an empty AssetLedger.
func NewAssetLedger() *AssetLedger {
	return &AssetLedger{
		balances: make(map[string]int64),
	}
}

// Transfer records the movement and adjusts both balances.
func (l *AssetLedger) Transfer(ctx context.Context, asset, from, to string, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[asset+"/"+from] -= amount
	l.balances[asset+"/"+to] += amount
	l.movements = append(l.movements, Movement{
		Asset:  asset,
		From:   from,
		To:     to,
		Amount: amount,
		At:     time.Now().UTC(),
	})
	return nil
}

// Balance returns the net balance an address has accumulated through the
// ledger. Unfunded addresses start at zero and may go negative.
func (l *AssetLedger) Balance(asset, address string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[asset+"/"+address]
}

// Movements returns a copy of the recorded transfer history.
func (l *AssetLedger) Movements() []Movement {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Movement, len(l.movements))
	copy(out, l.movements)
	return out
}
