// Package memory implements the domain store interfaces with in-process maps.
// It backs the dev mode and the service tests; the semantics mirror the
// postgres implementations, including the atomicity of the allocation writes.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// CommitmentStore is an in-memory domain.CommitmentStore.
type CommitmentStore struct {
	mu     sync.RWMutex
	seq    uint64
	byID   map[string]domain.Commitment
	order  []string // insertion order for stable listings
}

// NewCommitmentStore creates an empty CommitmentStore.
func NewCommitmentStore() *CommitmentStore {
	return &CommitmentStore{byID: map[string]domain.Commitment{}}
}

// NextID reserves the next counter value. Values are never reused.
func (s *CommitmentStore) NextID(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

// Create inserts a new commitment record.
func (s *CommitmentStore) Create(ctx context.Context, c domain.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; ok {
		return fmt.Errorf("memory: commitment %s already exists", c.ID)
	}
	s.byID[c.ID] = c
	s.order = append(s.order, c.ID)
	return nil
}

// Update writes back the mutable fields of an existing commitment.
func (s *CommitmentStore) Update(ctx context.Context, c domain.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[c.ID]; !ok {
		return fmt.Errorf("memory: update commitment %s: %w", c.ID, domain.ErrNotFound)
	}
	s.byID[c.ID] = c
	return nil
}

// GetByID returns the commitment or domain.ErrNotFound.
func (s *CommitmentStore) GetByID(ctx context.Context, id string) (domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[id]
	if !ok {
		return domain.Commitment{}, fmt.Errorf("memory: commitment %s: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

// ListActive returns active commitments in insertion order.
func (s *CommitmentStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Commitment, error) {
	return s.list(opts, func(c domain.Commitment) bool {
		return c.Status == domain.StatusActive
	})
}

// ListByOwner returns the owner's commitments in insertion order.
func (s *CommitmentStore) ListByOwner(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Commitment, error) {
	return s.list(opts, func(c domain.Commitment) bool {
		return c.Owner == owner
	})
}

func (s *CommitmentStore) list(opts domain.ListOpts, keep func(domain.Commitment) bool) ([]domain.Commitment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Commitment
	for _, id := range s.order {
		c := s.byID[id]
		if keep(c) {
			out = append(out, c)
		}
	}
	out = paginate(out, opts)
	return out, nil
}

func paginate[T any](in []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(in) {
			return nil
		}
		in = in[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(in) {
		in = in[:opts.Limit]
	}
	return in
}

// AllocationStore is an in-memory domain.AllocationStore.
type AllocationStore struct {
	mu       sync.RWMutex
	balances map[string]int64
	tracking map[string]domain.AllocationTracking
}

// NewAllocationStore creates an empty AllocationStore.
func NewAllocationStore() *AllocationStore {
	return &AllocationStore{
		balances: map[string]int64{},
		tracking: map[string]domain.AllocationTracking{},
	}
}

// InitBalance sets the free balance for a freshly created commitment.
func (s *AllocationStore) InitBalance(ctx context.Context, commitmentID string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[commitmentID] = amount
	return nil
}

// FreeBalance returns the free balance, zero for unknown commitments.
func (s *AllocationStore) FreeBalance(ctx context.Context, commitmentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[commitmentID], nil
}

// Tracking returns a copy of the sub-ledger, all-zero for unknown commitments.
func (s *AllocationStore) Tracking(ctx context.Context, commitmentID string) (domain.AllocationTracking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.tracking[commitmentID]
	out := domain.AllocationTracking{
		TotalAllocated: t.TotalAllocated,
		Allocations:    append([]domain.Allocation(nil), t.Allocations...),
	}
	return out, nil
}

// RecordAllocation debits the free balance, appends the trail entry, and
// credits the running total as one atomic step.
func (s *AllocationStore) RecordAllocation(ctx context.Context, a domain.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	balance := s.balances[a.CommitmentID]
	if balance < a.Amount {
		return fmt.Errorf("memory: allocate %s: %w", a.CommitmentID, domain.ErrInsufficientBalance)
	}
	s.balances[a.CommitmentID] = balance - a.Amount
	t := s.tracking[a.CommitmentID]
	t.TotalAllocated += a.Amount
	t.Allocations = append(t.Allocations, a)
	s.tracking[a.CommitmentID] = t
	return nil
}

// RecordDeallocation credits the free balance and debits the running total,
// failing instead of letting the total go negative.
func (s *AllocationStore) RecordDeallocation(ctx context.Context, commitmentID, targetPool string, amount int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tracking[commitmentID]
	if t.TotalAllocated < amount {
		return fmt.Errorf("memory: deallocate %s: %w", commitmentID, domain.ErrOverDeallocation)
	}
	t.TotalAllocated -= amount
	s.tracking[commitmentID] = t
	s.balances[commitmentID] += amount
	return nil
}

// RegistryStore is an in-memory domain.RegistryStore.
type RegistryStore struct {
	mu           sync.RWMutex
	admin        string
	tokenService string
	initialized  bool
	authorized   map[string]bool // principal|role -> authorized
}

// NewRegistryStore creates an empty RegistryStore.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{authorized: map[string]bool{}}
}

func roleKey(principal string, role domain.PrincipalRole) string {
	return principal + "|" + string(role)
}

// Admin returns the admin principal or domain.ErrNotFound before init.
func (s *RegistryStore) Admin(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return "", fmt.Errorf("memory: admin: %w", domain.ErrNotFound)
	}
	return s.admin, nil
}

// Initialized reports whether one-time setup already ran.
func (s *RegistryStore) Initialized(ctx context.Context) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized, nil
}

// Initialize persists the admin and marks the registry initialized.
func (s *RegistryStore) Initialize(ctx context.Context, admin, tokenService string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return domain.ErrAlreadyInitialized
	}
	s.admin = admin
	s.tokenService = tokenService
	s.initialized = true
	return nil
}

// SetAuthorization grants or revokes a role for a principal.
func (s *RegistryStore) SetAuthorization(ctx context.Context, principal string, role domain.PrincipalRole, authorized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized[roleKey(principal, role)] = authorized
	return nil
}

// IsAuthorized defaults to false for unknown principals.
func (s *RegistryStore) IsAuthorized(ctx context.Context, principal string, role domain.PrincipalRole) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorized[roleKey(principal, role)], nil
}

// AuditStore is an in-memory domain.AuditStore.
type AuditStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries []domain.AuditEntry
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Log appends an audit entry.
func (s *AuditStore) Log(ctx context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        s.nextID,
		Event:     event,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// List returns entries newest first with pagination.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	return paginate(out, opts), nil
}

// Compile-time interface checks.
var (
	_ domain.CommitmentStore = (*CommitmentStore)(nil)
	_ domain.AllocationStore = (*AllocationStore)(nil)
	_ domain.RegistryStore   = (*RegistryStore)(nil)
	_ domain.AuditStore      = (*AuditStore)(nil)
)
