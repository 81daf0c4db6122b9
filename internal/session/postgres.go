package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/JonMunkholm/itp-portal/internal/config"
)

const valuesTable = "session_values"

const upsertSuffix = "ON CONFLICT (sid, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at"

// PostgresStore keeps values in the session_values table.
type PostgresStore struct {
	pool *pgxpool.Pool
	psql sq.StatementBuilderType
	now  func() time.Time
}

// OpenPostgresStore connects, pings and migrates.
func OpenPostgresStore(ctx context.Context, cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := migratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return NewPostgresStore(pool), nil
}

// NewPostgresStore wraps a migrated pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{
		pool: pool,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:  time.Now,
	}
}

func migratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	sub, err := fs.Sub(migrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		return fmt.Errorf("postgres migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("apply postgres migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sid, key string) (string, error) {
	query, args, err := s.psql.Select("value").
		From(valuesTable).
		Where(sq.Eq{"sid": sid, "key": key}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build session get: %w", err)
	}

	var v string
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("session get %s: %w", key, err)
	}
	return v, nil
}

func (s *PostgresStore) Set(ctx context.Context, sid, key, value string) error {
	query, args, err := s.psql.Insert(valuesTable).
		Columns("sid", "key", "value", "updated_at").
		Values(sid, key, value, s.now().UnixMilli()).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session set: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("session set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := s.psql.Delete(valuesTable).
		Where(sq.Eq{"sid": sid, "key": keys}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session delete: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

// staleSessions selects the ids whose newest value predates olderThan.
func staleSessions(olderThan time.Time) sq.SelectBuilder {
	return sq.Select("sid").
		From(valuesTable).
		GroupBy("sid").
		Having(sq.Lt{"MAX(updated_at)": olderThan.UnixMilli()})
}

// inStale matches every row of a stale session.
func inStale(olderThan time.Time) sq.Sqlizer {
	return sq.Expr("sid IN (?)", staleSessions(olderThan))
}

func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	query, args, err := s.psql.Delete(valuesTable).
		Where(inStale(olderThan)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build session purge: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("session purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
