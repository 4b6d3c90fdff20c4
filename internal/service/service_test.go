package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/store/memory"
)

// fakeClock is a settable domain.Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(at time.Time) *fakeClock {
	return &fakeClock{now: at}
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

// fakeAuthorizer accepts any proof whose signature equals the principal's
// bytes, so tests can mint valid and invalid proofs without real keys.
type fakeAuthorizer struct{}

func (fakeAuthorizer) RequireProof(ctx context.Context, principal string, proof domain.Proof) error {
	if string(proof.Signature) != principal {
		return domain.ErrUnauthorized
	}
	return nil
}

func proofFor(principal string) domain.Proof {
	return domain.Proof{Timestamp: time.Now().Unix(), Signature: []byte(principal)}
}

// transferCall records one movement through the fake custody.
type transferCall struct {
	Asset  string
	From   string
	To     string
	Amount int64
}

// fakeTransfer is a recording domain.AssetTransfer that can be told to fail.
type fakeTransfer struct {
	mu    sync.Mutex
	calls []transferCall
	err   error
}

func (t *fakeTransfer) Transfer(ctx context.Context, asset, from, to string, amount int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.calls = append(t.calls, transferCall{Asset: asset, From: from, To: to, Amount: amount})
	return nil
}

func (t *fakeTransfer) Calls() []transferCall {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]transferCall(nil), t.calls...)
}

func (t *fakeTransfer) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

var errCustodyDown = errors.New("custody unreachable")

// fixture holds all three services over shared in-memory stores.
type fixture struct {
	clock       *fakeClock
	transfer    *fakeTransfer
	commitments *memory.CommitmentStore
	allocations *memory.AllocationStore
	registry    *memory.RegistryStore
	audit       *memory.AuditStore

	Registry    *RegistryService
	Commitments *CommitmentService
	Allocations *AllocationService
}

const (
	testAdmin     = "0xadmin"
	testOwner     = "0xowner"
	testValuator  = "0xvaluator"
	testAllocator = "0xallocator"
	testCustody   = "0xcustody"
	testAsset     = "0xusdc"
	testPool      = "pool-alpha"
)

func newFixture() *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		clock:       newFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		transfer:    &fakeTransfer{},
		commitments: memory.NewCommitmentStore(),
		allocations: memory.NewAllocationStore(),
		registry:    memory.NewRegistryStore(),
		audit:       memory.NewAuditStore(),
	}
	col := Collaborators{
		Clock:    f.clock,
		Auth:     fakeAuthorizer{},
		Transfer: f.transfer,
		Audit:    f.audit,
		Custody:  testCustody,
	}
	f.Registry = NewRegistryService(f.registry, col, logger)
	f.Commitments = NewCommitmentService(f.commitments, f.allocations, f.registry, col, logger)
	f.Allocations = NewAllocationService(f.allocations, f.commitments, f.registry, col, logger)
	return f
}

// initRegistry runs the one-time setup and puts the standard valuator and
// allocator on the allow-lists.
func (f *fixture) initRegistry(ctx context.Context) error {
	if err := f.Registry.Initialize(ctx, testAdmin, ""); err != nil {
		return err
	}
	if err := f.Registry.SetAuthorization(ctx, proofFor(testAdmin), testValuator, domain.RoleValuator, true); err != nil {
		return err
	}
	return f.Registry.SetAuthorization(ctx, proofFor(testAdmin), testAllocator, domain.RoleAllocator, true)
}

func defaultRules() domain.CommitmentRules {
	return domain.CommitmentRules{
		DurationDays:     365,
		MaxLossPercent:   20,
		CommitmentType:   domain.TypeBalanced,
		EarlyExitPenalty: 10,
	}
}

// createCommitment is a shorthand used across the lifecycle tests.
func (f *fixture) createCommitment(ctx context.Context, amount int64) (domain.Commitment, error) {
	return f.Commitments.Create(ctx, testOwner, proofFor(testOwner), amount, testAsset, defaultRules())
}
