package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/carpool-client/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// SaveProfile replaces the stored profile with u.
func (s *SQLiteStore) SaveProfile(ctx context.Context, u model.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO profile (
			slot, id, name, email, photo_url, gender, kind, saved_at
		) VALUES (
			1, :id, :name, :email, :photo_url, :gender, :kind, :saved_at
		)`,
		profileRow{User: u, SavedAt: time.Now().UTC()},
	)
	if err != nil {
		return fmt.Errorf("saving profile %d: %w", u.ID, err)
	}
	return nil
}

// GetProfile returns the stored profile, or ErrNoProfile.
func (s *SQLiteStore) GetProfile(ctx context.Context) (*model.User, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, email, photo_url, gender, kind, saved_at
		FROM profile WHERE slot = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoProfile
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return &row.User, nil
}

// DeleteProfile removes the stored profile.
func (s *SQLiteStore) DeleteProfile(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM profile"); err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	return nil
}

// profileRow adds bookkeeping columns to the profile.
type profileRow struct {
	model.User
	SavedAt time.Time `db:"saved_at"`
}
