package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/tickup/internal/constants"
	"github.com/julianstephens/tickup/internal/logger"
	"github.com/julianstephens/tickup/internal/migration"
	"github.com/julianstephens/tickup/internal/storage"
	"github.com/julianstephens/tickup/migrations"
)

type Store struct {
	connStr string
	db      *sql.DB
}

// New returns an unopened store. The app schema is added to the search_path
// unless the connection string already sets one.
func New(connStr string) *Store {
	ci, err := parseConnInfo(connStr)
	if err != nil {
		logger.Warn("Failed to parse Postgres connection string", "error", err)
		return &Store{connStr: connStr}
	}
	if _, ok := ci.param("search_path"); !ok {
		connStr = ci.withParam("search_path", constants.AppName)
	}
	return &Store{connStr: connStr}
}

func (s *Store) open() error {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !s.hasSSLMode() {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	s.db = db
	return nil
}

func (s *Store) hasSSLMode() bool {
	ci, err := parseConnInfo(s.connStr)
	if err != nil {
		return false
	}
	_, ok := ci.param("sslmode")
	return ok
}

func (s *Store) Init() error {
	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	if _, err := s.db.Exec("CREATE SCHEMA IF NOT EXISTS " + constants.AppName); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}
	if err := s.open(); err != nil {
		return err
	}
	return s.validateSchemaVersion()
}

func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

func (s *Store) newRunner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to access postgres migrations: %w", err)
	}
	return migration.NewRunner(s.db, subFS, migration.DriverPostgres)
}

func (s *Store) runMigrations() error {
	runner, err := s.newRunner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg)
	})
	return err
}

func (s *Store) validateSchemaVersion() error {
	runner, err := s.newRunner()
	if err != nil {
		return err
	}
	return runner.ValidateVersion()
}

func (s *Store) GetConfigPath() string {
	// Never expose the connection string
	return "postgresql"
}

func (s *Store) Get(key string) ([]byte, error) {
	if s.db == nil {
		return nil, storage.ErrNotLoaded
	}

	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = $1", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(key string, value []byte) error {
	batch := storage.NewBatch()
	batch.Put(key, value)
	return s.Commit(batch)
}

func (s *Store) Remove(key string) error {
	batch := storage.NewBatch()
	batch.Delete(key)
	return s.Commit(batch)
}

func (s *Store) Keys(prefix string) ([]string, error) {
	if s.db == nil {
		return nil, storage.ErrNotLoaded
	}

	rows, err := s.db.Query("SELECT key FROM kv WHERE left(key, $1) = $2 ORDER BY key", len([]rune(prefix)), prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s *Store) Commit(batch *storage.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	if s.db == nil {
		return storage.ErrNotLoaded
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if len(batch.Set) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for key, value := range batch.Set {
			if value == nil {
				value = []byte{}
			}
			if _, err := stmt.Exec(key, value); err != nil {
				return fmt.Errorf("failed to write %s: %w", key, err)
			}
		}
	}

	if len(batch.Remove) > 0 {
		if _, err := tx.Exec("DELETE FROM kv WHERE key = ANY($1)", pq.Array(batch.Remove)); err != nil {
			return fmt.Errorf("failed to remove keys: %w", err)
		}
	}

	return tx.Commit()
}
