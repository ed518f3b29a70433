// Package snapshot exports materialized leaderboards to durable stores.
package snapshot

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
)

const (
	snapshotsTable = "leaderboard_snapshots"
	entriesTable   = "leaderboard_snapshot_entries"
)

var (
	snapshotColumns = []string{"key", "export_id", "workout_id", "scope", "gym_id", "period", "scale_code", "updated_at"}
	entryColumns    = []string{"snapshot_key", "rank", "athlete_id", "display_name", "best_score_norm", "best_attempt_id", "performed_at"}
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
		key VARCHAR(255) PRIMARY KEY,
		export_id UUID NOT NULL,
		workout_id VARCHAR(64) NOT NULL,
		scope VARCHAR(16) NOT NULL,
		gym_id VARCHAR(64) NOT NULL DEFAULT '',
		period VARCHAR(16) NOT NULL,
		scale_code VARCHAR(16) NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leaderboard_snapshot_entries (
		snapshot_key VARCHAR(255) NOT NULL REFERENCES leaderboard_snapshots(key) ON DELETE CASCADE,
		rank INT NOT NULL,
		athlete_id VARCHAR(64) NOT NULL,
		display_name VARCHAR(255) NOT NULL,
		best_score_norm DOUBLE PRECISION NOT NULL,
		best_attempt_id VARCHAR(64) NOT NULL,
		performed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (snapshot_key, rank)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshot_entries_athlete ON leaderboard_snapshot_entries(athlete_id)`,
}

// DB is the subset of a pgx pool the postgres sink uses.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresSink replaces the stored snapshot set in one transaction per export.
type PostgresSink struct {
	db     DB
	close  func()
	logger logger.Logger
}

// Option configures a sink.
type Option func(*options)

type options struct {
	logger    logger.Logger
	keyPrefix string
}

// WithLogger sets the sink logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithKeyPrefix sets the redis key namespace.
func WithKeyPrefix(p string) Option {
	return func(o *options) {
		if p != "" {
			o.keyPrefix = p
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: logger.Discard(), keyPrefix: "pulse"}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewPostgresSink wraps an existing connection.
func NewPostgresSink(db DB, opts ...Option) *PostgresSink {
	o := buildOptions(opts)
	return &PostgresSink{db: db, logger: o.logger}
}

// OpenPostgres connects a pool, verifies it and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32, opts ...Option) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	s := NewPostgresSink(pool, opts...)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Name implements service.SnapshotSink.
func (s *PostgresSink) Name() string { return "postgres" }

// Migrate creates the snapshot tables.
func (s *PostgresSink) Migrate(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := s.db.Exec(ctx, m); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	s.logger.Info(ctx, "snapshot schema ready")
	return nil
}

// Export implements service.SnapshotSink.
func (s *PostgresSink) Export(ctx context.Context, snapshots []types.Leaderboard) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot export: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM "+entriesTable); err != nil {
		return fmt.Errorf("clearing snapshot entries: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM "+snapshotsTable); err != nil {
		return fmt.Errorf("clearing snapshots: %w", err)
	}

	exportID := uuid.New()
	boards, entries := rows(exportID, snapshots)
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{snapshotsTable}, snapshotColumns, pgx.CopyFromRows(boards)); err != nil {
		return fmt.Errorf("copying snapshots: %w", err)
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{entriesTable}, entryColumns, pgx.CopyFromRows(entries)); err != nil {
		return fmt.Errorf("copying snapshot entries: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot export: %w", err)
	}
	s.logger.Debug(ctx, "snapshots exported",
		logger.String("sink", s.Name()),
		logger.String("export_id", exportID.String()),
		logger.Int("snapshots", len(boards)),
		logger.Int("entries", len(entries)),
	)
	return nil
}

// Close releases the pool when the sink owns it.
func (s *PostgresSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func rows(exportID uuid.UUID, snapshots []types.Leaderboard) (boards, entries [][]any) {
	boards = make([][]any, 0, len(snapshots))
	for _, lb := range snapshots {
		key := lb.Identity.Key()
		boards = append(boards, []any{
			key, exportID, lb.Identity.WorkoutID, string(lb.Identity.Scope), lb.Identity.GymID,
			string(lb.Identity.Period), string(lb.Identity.Scale), lb.UpdatedAt,
		})
		for _, e := range lb.Entries {
			entries = append(entries, []any{
				key, e.Rank, e.AthleteID, e.DisplayName, e.BestScoreNorm, e.BestAttemptID, e.PerformedAt,
			})
		}
	}
	return boards, entries
}
