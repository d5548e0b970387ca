package local

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	storagetypes "github.com/emberlink/ember/internal/storage/types"
	"github.com/emberlink/ember/pkg/utils"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps secret records in a local database. Unlike the cloud
// providers there is no platform reaper, so a janitor goroutine sweeps
// expired rows periodically; consumes filter on expires_at regardless.
type SQLiteStore struct {
	db   *sql.DB
	now  func() time.Time
	done chan struct{}
}

func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "secrets.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:   db,
		now:  time.Now,
		done: make(chan struct{}),
	}

	if err := store.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	log.Printf("SQLite store initialized at %s", dbPath)
	return store, nil
}

func (s *SQLiteStore) createTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS secrets (
		secret_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_expires_at ON secrets(expires_at);
	`

	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) PutSecret(ctx context.Context, id string, data []byte, ttlSeconds int64) error {
	query := `
		INSERT INTO secrets (secret_id, data, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	now := s.now().Unix()
	_, err := s.db.ExecContext(ctx, query, id, utils.B64E(data), now, now+ttlSeconds)
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	return nil
}

// ConsumeSecret deletes the row and returns its data in one statement, so
// concurrent consumers of the same id race on a single atomic delete.
func (s *SQLiteStore) ConsumeSecret(ctx context.Context, id string) ([]byte, error) {
	query := `DELETE FROM secrets WHERE secret_id = ? AND expires_at > ? RETURNING data`

	var encodedData string
	err := s.db.QueryRowContext(ctx, query, id, s.now().Unix()).Scan(&encodedData)
	if err == sql.ErrNoRows {
		return nil, storagetypes.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume secret: %w", err)
	}

	data, err := utils.B64D(encodedData)
	if err != nil {
		return nil, fmt.Errorf("invalid data encoding: %w", err)
	}

	return data, nil
}

// StartJanitor sweeps expired rows every interval until Close.
func (s *SQLiteStore) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := s.sweep(); err != nil {
					log.Printf("sqlite janitor sweep failed: %v", err)
				}
			case <-s.done:
				return
			}
		}
	}()
}

func (s *SQLiteStore) sweep() error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE expires_at <= ?`, s.now().Unix())
	return err
}

func (s *SQLiteStore) Close() error {
	close(s.done)
	return s.db.Close()
}
