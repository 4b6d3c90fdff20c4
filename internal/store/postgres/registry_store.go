package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// RegistryStore implements domain.RegistryStore using PostgreSQL. The
// registry is a single row; the PRIMARY KEY constraint enforces the one-time
// initialization at the storage layer as well.
type RegistryStore struct {
	pool *pgxpool.Pool
}

// NewRegistryStore creates a new RegistryStore.
func NewRegistryStore(pool *pgxpool.Pool) *RegistryStore {
	return &RegistryStore{pool: pool}
}

// Admin returns the admin principal, or domain.ErrNotFound before init.
func (s *RegistryStore) Admin(ctx context.Context) (string, error) {
	const query = `SELECT admin FROM registry WHERE id`
	var admin string
	err := s.pool.QueryRow(ctx, query).Scan(&admin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("postgres: registry admin: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("postgres: registry admin: %w", err)
	}
	return admin, nil
}

// Initialized reports whether the registry row exists.
func (s *RegistryStore) Initialized(ctx context.Context) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM registry WHERE id)`
	var exists bool
	if err := s.pool.QueryRow(ctx, query).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: registry initialized: %w", err)
	}
	return exists, nil
}

// Initialize inserts the singleton registry row. A concurrent second call
// loses on the primary key and surfaces domain.ErrAlreadyInitialized.
func (s *RegistryStore) Initialize(ctx context.Context, admin, tokenService string) error {
	const query = `
		INSERT INTO registry (id, admin, token_service, initialized)
		VALUES (TRUE, $1, $2, TRUE)
		ON CONFLICT (id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, admin, tokenService)
	if err != nil {
		return fmt.Errorf("postgres: initialize registry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyInitialized
	}
	return nil
}

// SetAuthorization upserts the allow-list entry for (principal, role).
func (s *RegistryStore) SetAuthorization(ctx context.Context, principal string, role domain.PrincipalRole, authorized bool) error {
	const query = `
		INSERT INTO registry_roles (principal, role, authorized, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (principal, role)
		DO UPDATE SET authorized = EXCLUDED.authorized, updated_at = NOW()`
	_, err := s.pool.Exec(ctx, query, principal, string(role), authorized)
	if err != nil {
		return fmt.Errorf("postgres: set %s authorization for %s: %w", role, principal, err)
	}
	return nil
}

// IsAuthorized defaults to false for unknown principals.
func (s *RegistryStore) IsAuthorized(ctx context.Context, principal string, role domain.PrincipalRole) (bool, error) {
	const query = `SELECT authorized FROM registry_roles WHERE principal = $1 AND role = $2`
	var authorized bool
	err := s.pool.QueryRow(ctx, query, principal, string(role)).Scan(&authorized)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("postgres: check %s authorization for %s: %w", role, principal, err)
	}
	return authorized, nil
}

// Compile-time interface check.
var _ domain.RegistryStore = (*RegistryStore)(nil)
