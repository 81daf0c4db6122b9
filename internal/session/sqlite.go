package session

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations
var migrations embed.FS

// SQLiteStore keeps values in a local SQLite file, for single-instance
// deployments that want sessions to survive restarts.
type SQLiteStore struct {
	db   *sql.DB
	psql sq.StatementBuilderType
	now  func() time.Time
}

// OpenSQLiteStore opens (creating if needed) and migrates the database file.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	sub, err := fs.Sub(migrations, "migrations/sqlite")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, sub)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite migrations: %w", err)
	}

	return &SQLiteStore{
		db:   db,
		psql: sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now:  time.Now,
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, sid, key string) (string, error) {
	query, args, err := s.psql.Select("value").
		From(valuesTable).
		Where(sq.Eq{"sid": sid, "key": key}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build session get: %w", err)
	}

	var v string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("session get %s: %w", key, err)
	}
	return v, nil
}

func (s *SQLiteStore) Set(ctx context.Context, sid, key, value string) error {
	query, args, err := s.psql.Insert(valuesTable).
		Columns("sid", "key", "value", "updated_at").
		Values(sid, key, value, s.now().UnixMilli()).
		Suffix(upsertSuffix).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session set: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("session set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, sid string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	query, args, err := s.psql.Delete(valuesTable).
		Where(sq.Eq{"sid": sid, "key": keys}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build session delete: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	query, args, err := s.psql.Delete(valuesTable).
		Where(inStale(olderThan)).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build session purge: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("session purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
