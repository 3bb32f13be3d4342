package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/sangege/redeembot/redeembot/database/models"
	"github.com/uptrace/bun"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const defaultBusyTimeout = 5 * time.Second

type Config struct {
	Path string `toml:"path"`
}

// DB owns the sqlite handle for the whole process. All storage access goes
// through the repositories built on BunDB; the retention engine additionally
// uses Size and Vacuum to keep the file under its target.
type DB struct {
	bunDB *bun.DB
	path  string
}

func New(ctx context.Context, cfg Config) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_loc=UTC",
		cfg.Path, defaultBusyTimeout.Milliseconds())

	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		bunDB: bun.NewDB(sqldb, sqlitedialect.New()),
		path:  cfg.Path,
	}

	slog.Info("Database opened",
		slog.String("type", "db"),
		slog.String("path", cfg.Path))

	return db, nil
}

// InitializeSchema creates all required tables and indexes.
func (db *DB) InitializeSchema(ctx context.Context) error {
	tables := []interface{}{
		(*models.Code)(nil),
		(*models.Claim)(nil),
	}

	for _, model := range tables {
		if _, err := db.bunDB.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	indexes := []struct {
		name    string
		model   interface{}
		columns []string
	}{
		{"idx_claims_account_id", (*models.Claim)(nil), []string{"account_id"}},
		{"idx_claims_player_id", (*models.Claim)(nil), []string{"player_id"}},
		{"idx_claims_claimed_at", (*models.Claim)(nil), []string{"claimed_at"}},
		{"idx_gift_codes_pool_used", (*models.Code)(nil), []string{"pool", "used"}},
	}

	for _, idx := range indexes {
		if _, err := db.bunDB.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

func (db *DB) BunDB() *bun.DB {
	return db.bunDB
}

func (db *DB) Path() string {
	return db.path
}

// Size reports the on-disk size of the main database file. WAL content is
// folded back into the main file by Vacuum before callers remeasure.
func (db *DB) Size() (int64, error) {
	info, err := os.Stat(db.path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat database file: %w", err)
	}
	return info.Size(), nil
}

// Vacuum checkpoints the WAL and compacts the database file so freed pages
// are returned to the filesystem.
func (db *DB) Vacuum(ctx context.Context) error {
	if _, err := db.bunDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("failed to checkpoint wal: %w", err)
	}
	if _, err := db.bunDB.ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.bunDB.Close()
}
