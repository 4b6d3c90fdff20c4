package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/ReinaMaze/Commitlabs-Contracts/internal/blob/s3"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/cache/redis"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/config"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/crypto"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/domain"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/notify"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/platform/custody"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/platform/tokenizer"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/store/memory"
	"github.com/ReinaMaze/Commitlabs-Contracts/internal/store/postgres"
)

// systemClock is the production domain.Clock.
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	CommitmentStore domain.CommitmentStore
	AllocationStore domain.AllocationStore
	RegistryStore   domain.RegistryStore
	AuditStore      domain.AuditStore

	// Collaborators
	Clock       domain.Clock
	Auth        domain.Authorizer
	Transfer    domain.AssetTransfer
	Minter      domain.TokenMinter // nil when the tokenizer is disabled
	Bus         domain.EventBus
	Locks       domain.LockManager // nil in dev mode
	RateLimiter domain.RateLimiter // nil in dev mode

	// Blob storage, nil in dev and server modes.
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	return mode != "dev"
}

// needsS3 returns true for modes that run the cold-storage archiver.
func needsS3(mode string) bool {
	switch mode {
	case "worker", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Clock: systemClock{},
	}
	deps.Auth = crypto.NewVerifier(deps.Clock, cfg.Auth.MaxSkew.Duration)

	// --- Stores ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.CommitmentStore = postgres.NewCommitmentStore(pool)
		deps.AllocationStore = postgres.NewAllocationStore(pool)
		deps.RegistryStore = postgres.NewRegistryStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	} else {
		deps.CommitmentStore = memory.NewCommitmentStore()
		deps.AllocationStore = memory.NewAllocationStore()
		deps.RegistryStore = memory.NewRegistryStore()
		deps.AuditStore = memory.NewAuditStore()
	}

	// --- Event bus, locks, rate limiting ---
	if cfg.Mode == "dev" {
		deps.Bus = memory.NewBus()
	} else {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Bus = redis.NewEventBus(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
	}

	// --- Asset custody ---
	if cfg.Mode == "dev" {
		deps.Transfer = memory.NewAssetLedger()
	} else {
		auth := &crypto.HMACAuth{
			Key:    cfg.Custody.APIKey,
			Secret: cfg.Custody.APISecret,
		}
		deps.Transfer = custody.NewClient(cfg.Custody.BaseURL, auth)
	}

	// --- Ownership tokens ---
	if cfg.Tokenizer.Enabled {
		deps.Minter = tokenizer.NewClient(cfg.Tokenizer.BaseURL, cfg.Tokenizer.APIKey)
	}

	// --- S3 blob storage, only for modes that run the archiver ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		// The archive queries live on the postgres stores, so the archiver
		// can only be wired against them.
		auditStore, okAudit := deps.AuditStore.(*postgres.AuditStore)
		commitmentStore, okCommit := deps.CommitmentStore.(*postgres.CommitmentStore)
		if okAudit && okCommit {
			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				auditStore,
				commitmentStore,
				deps.AuditStore,
			)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
