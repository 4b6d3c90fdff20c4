// Package service implements the commitment ledger operations: registry
// administration, commitment lifecycle, and allocation accounting. Every
// operation authorizes its caller first, applies validation, performs the
// external asset movement, and only then commits state, so a failed step
// leaves no partial writes behind.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// lockTTL bounds how long a per-commitment lock can be held before it expires
// on its own. Operations complete well inside this window.
const lockTTL = 30 * time.Second

// Collaborators bundles the external services the operations call out to.
// Bus, Audit, Minter and Locks are optional; a nil field disables that
// integration.
type Collaborators struct {
	Clock    domain.Clock
	Auth     domain.Authorizer
	Transfer domain.AssetTransfer
	Minter   domain.TokenMinter
	Bus      domain.EventBus
	Audit    domain.AuditStore
	Locks    domain.LockManager

	// Custody is the address holding locked commitment funds.
	Custody string
}

// publisher is embedded by the services to share event and audit plumbing.
type publisher struct {
	bus    domain.EventBus
	audit  domain.AuditStore
	logger *slog.Logger
}

// publish marshals payload and emits it on the bus, mirroring it onto the
// durable event stream. Publish failures are logged, never propagated; the
// sink is fire-and-forget.
func (p *publisher) publish(ctx context.Context, topic string, payload any) {
	if p.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal event payload failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := p.bus.Publish(ctx, topic, data); err != nil {
		p.logger.WarnContext(ctx, "event publish failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
	if err := p.bus.StreamAppend(ctx, "events", data); err != nil {
		p.logger.WarnContext(ctx, "event stream append failed",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog records a state-changing operation in the append-only audit log.
func (p *publisher) auditLog(ctx context.Context, event string, detail map[string]any) {
	if p.audit == nil {
		return
	}
	if err := p.audit.Log(ctx, event, detail); err != nil {
		p.logger.WarnContext(ctx, "audit log write failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// locker serializes mutations on a shared key when a lock manager is wired.
type locker struct {
	locks domain.LockManager
}

// lock acquires the per-commitment lock, or no-ops when no manager is
// configured (single-instance deployments rely on store-level atomicity).
func (l *locker) lock(ctx context.Context, commitmentID string) (func(), error) {
	if l.locks == nil {
		return func() {}, nil
	}
	return l.locks.Acquire(ctx, "commitment:"+commitmentID, lockTTL)
}
