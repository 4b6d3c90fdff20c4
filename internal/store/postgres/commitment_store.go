package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
)

// CommitmentStore implements domain.CommitmentStore using PostgreSQL.
type CommitmentStore struct {
	pool *pgxpool.Pool
}

// NewCommitmentStore creates a new CommitmentStore.
func NewCommitmentStore(pool *pgxpool.Pool) *CommitmentStore {
	return &CommitmentStore{pool: pool}
}

const commitmentColumns = `
	id, owner, nft_token_id,
	duration_days, max_loss_percent, commitment_type, early_exit_penalty, min_fee_threshold,
	amount, asset_address, created_at, expires_at, current_value, status`

// NextID reserves the next value of the commitment counter. The sequence
// guarantees monotonic, never-reused values even across failed creations.
func (s *CommitmentStore) NextID(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.pool.QueryRow(ctx, `SELECT nextval('commitment_id_seq')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: next commitment id: %w", err)
	}
	return n, nil
}

// Create inserts a new commitment record.
func (s *CommitmentStore) Create(ctx context.Context, c domain.Commitment) error {
	const query = `
		INSERT INTO commitments (` + commitmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.pool.Exec(ctx, query,
		c.ID, c.Owner, c.NFTTokenID,
		c.Rules.DurationDays, c.Rules.MaxLossPercent, string(c.Rules.CommitmentType),
		c.Rules.EarlyExitPenalty, c.Rules.MinFeeThreshold,
		c.Amount, c.AssetAddress, c.CreatedAt, c.ExpiresAt, c.CurrentValue, string(c.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: create commitment %s: %w", c.ID, err)
	}
	return nil
}

// Update writes back the mutable fields (current value, status).
func (s *CommitmentStore) Update(ctx context.Context, c domain.Commitment) error {
	const query = `
		UPDATE commitments SET current_value = $2, status = $3 WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, c.ID, c.CurrentValue, string(c.Status))
	if err != nil {
		return fmt.Errorf("postgres: update commitment %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update commitment %s: %w", c.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns a commitment by id, or domain.ErrNotFound.
func (s *CommitmentStore) GetByID(ctx context.Context, id string) (domain.Commitment, error) {
	const query = `SELECT ` + commitmentColumns + ` FROM commitments WHERE id = $1`
	c, err := scanCommitment(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Commitment{}, fmt.Errorf("postgres: commitment %s: %w", id, domain.ErrNotFound)
		}
		return domain.Commitment{}, fmt.Errorf("postgres: get commitment %s: %w", id, err)
	}
	return c, nil
}

// ListActive returns active commitments ordered by creation.
func (s *CommitmentStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE status = 'active' ORDER BY created_at`
	return s.queryCommitments(ctx, applyListOpts(query, &opts), opts.Limit, opts.Offset)
}

// ListByOwner returns the owner's commitments ordered by creation.
func (s *CommitmentStore) ListByOwner(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.Commitment, error) {
	query := `SELECT ` + commitmentColumns + ` FROM commitments WHERE owner = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, applyListOpts(query, &opts), owner)
	if err != nil {
		return nil, fmt.Errorf("postgres: list commitments by owner: %w", err)
	}
	return collectCommitments(rows)
}

// ListTerminalBefore returns commitments in a terminal status whose expiry
// falls strictly before the cutoff. The archiver reads through it.
func (s *CommitmentStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Commitment, error) {
	const query = `SELECT ` + commitmentColumns + `
		FROM commitments WHERE status <> 'active' AND expires_at < $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal commitments: %w", err)
	}
	return collectCommitments(rows)
}

func (s *CommitmentStore) queryCommitments(ctx context.Context, query string, _, _ int) ([]domain.Commitment, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list commitments: %w", err)
	}
	return collectCommitments(rows)
}

// applyListOpts appends LIMIT/OFFSET as literals. Values come from validated
// ints, never user strings.
func applyListOpts(query string, opts *domain.ListOpts) string {
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}
	return query
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommitment(row rowScanner) (domain.Commitment, error) {
	var c domain.Commitment
	var ctype, status string
	err := row.Scan(
		&c.ID, &c.Owner, &c.NFTTokenID,
		&c.Rules.DurationDays, &c.Rules.MaxLossPercent, &ctype,
		&c.Rules.EarlyExitPenalty, &c.Rules.MinFeeThreshold,
		&c.Amount, &c.AssetAddress, &c.CreatedAt, &c.ExpiresAt, &c.CurrentValue, &status,
	)
	if err != nil {
		return domain.Commitment{}, err
	}
	c.Rules.CommitmentType = domain.CommitmentType(ctype)
	c.Status = domain.CommitmentStatus(status)
	return c, nil
}

func collectCommitments(rows pgx.Rows) ([]domain.Commitment, error) {
	defer rows.Close()
	var list []domain.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan commitment: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

// Compile-time interface check.
var _ domain.CommitmentStore = (*CommitmentStore)(nil)
