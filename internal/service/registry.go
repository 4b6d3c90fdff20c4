package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// RegistryService is the single source of truth for the admin principal and
// the allocator/valuator allow-lists. Initialization happens exactly once;
// allow-list changes require an admin proof.
type RegistryService struct {
	publisher
	store domain.RegistryStore
	auth  domain.Authorizer
}

// NewRegistryService creates a RegistryService.
func NewRegistryService(store domain.RegistryStore, col Collaborators, logger *slog.Logger) *RegistryService {
	return &RegistryService{
		publisher: publisher{
			bus:    col.Bus,
			audit:  col.Audit,
			logger: logger.With(slog.String("component", "registry_service")),
		},
		store: store,
		auth:  col.Auth,
	}
}

// Initialize persists the admin principal and the token service reference.
// It fails with ErrAlreadyInitialized on any call after the first.
func (s *RegistryService) Initialize(ctx context.Context, admin, tokenService string) error {
	done, err := s.store.Initialized(ctx)
	if err != nil {
		return fmt.Errorf("registry: check init marker: %w", err)
	}
	if done {
		return domain.ErrAlreadyInitialized
	}
	if err := s.store.Initialize(ctx, admin, tokenService); err != nil {
		return fmt.Errorf("registry: initialize: %w", err)
	}
	s.logger.InfoContext(ctx, "registry initialized", slog.String("admin", admin))
	s.auditLog(ctx, "registry.initialized", map[string]any{
		"admin":         admin,
		"token_service": tokenService,
	})
	return nil
}

// SetAuthorization grants or revokes a role for a principal. The caller must
// prove control of the admin principal. Setting the same value twice is a
// no-op success.
func (s *RegistryService) SetAuthorization(ctx context.Context, proof domain.Proof, principal string, role domain.PrincipalRole, authorized bool) error {
	admin, err := s.store.Admin(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotInitialized
		}
		return fmt.Errorf("registry: load admin: %w", err)
	}
	if err := s.auth.RequireProof(ctx, admin, proof); err != nil {
		return fmt.Errorf("registry: %w", domain.ErrUnauthorized)
	}
	if err := s.store.SetAuthorization(ctx, principal, role, authorized); err != nil {
		return fmt.Errorf("registry: set %s authorization: %w", role, err)
	}
	s.logger.InfoContext(ctx, "authorization updated",
		slog.String("principal", principal),
		slog.String("role", string(role)),
		slog.Bool("authorized", authorized),
	)
	s.publish(ctx, domain.TopicAllocatorUpdated, domain.AllocatorUpdatedEvent{
		Principal:  principal,
		Role:       role,
		Authorized: authorized,
	})
	s.auditLog(ctx, "registry.authorization_updated", map[string]any{
		"principal":  principal,
		"role":       string(role),
		"authorized": authorized,
	})
	return nil
}

// IsAuthorizedAllocator reports whether the principal may move commitment
// funds. Unknown principals default to false.
func (s *RegistryService) IsAuthorizedAllocator(ctx context.Context, principal string) (bool, error) {
	return s.store.IsAuthorized(ctx, principal, domain.RoleAllocator)
}

// IsAuthorizedValuator reports whether the principal may mark commitment
// values, in addition to the admin.
func (s *RegistryService) IsAuthorizedValuator(ctx context.Context, principal string) (bool, error) {
	return s.store.IsAuthorized(ctx, principal, domain.RoleValuator)
}

// Initialized reports whether the one-time setup has happened.
func (s *RegistryService) Initialized(ctx context.Context) (bool, error) {
	return s.store.Initialized(ctx)
}

// Admin returns the registry admin, or ErrNotInitialized before setup.
func (s *RegistryService) Admin(ctx context.Context) (string, error) {
	admin, err := s.store.Admin(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrNotInitialized
		}
		return "", fmt.Errorf("registry: load admin: %w", err)
	}
	return admin, nil
}
