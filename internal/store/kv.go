package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// KV is the persistence surface the preference stores are built on.
// String sets are stored as JSON arrays under a single key.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	GetStringSet(key string) (map[string]struct{}, error)
	SetStringSet(key string, values map[string]struct{}) error
}

// SQLiteKV persists preferences in a single-table SQLite database.
type SQLiteKV struct {
	db *sql.DB
}

// OpenSQLiteKV opens (or creates) the preferences database with WAL
// mode enabled.
func OpenSQLiteKV(dbPath string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create preferences table: %w", err)
	}

	return &SQLiteKV{db: db}, nil
}

// Get retrieves a value. A missing key returns "" without error.
func (s *SQLiteKV) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM preferences WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Set upserts a key-value pair.
func (s *SQLiteKV) Set(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, time.Now().Unix(),
	)
	return err
}

// GetStringSet decodes a JSON-array value into a set. A missing or
// empty key yields an empty set.
func (s *SQLiteKV) GetStringSet(key string) (map[string]struct{}, error) {
	raw, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	return decodeStringSet(raw)
}

// SetStringSet stores a set as a JSON array.
func (s *SQLiteKV) SetStringSet(key string, values map[string]struct{}) error {
	raw, err := encodeStringSet(values)
	if err != nil {
		return err
	}
	return s.Set(key, raw)
}

func (s *SQLiteKV) Close() error {
	return s.db.Close()
}

func decodeStringSet(raw string) (map[string]struct{}, error) {
	set := make(map[string]struct{})
	if raw == "" {
		return set, nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("failed to decode string set: %w", err)
	}
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set, nil
}

func encodeStringSet(values map[string]struct{}) (string, error) {
	items := make([]string, 0, len(values))
	for v := range values {
		items = append(items, v)
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode string set: %w", err)
	}
	return string(raw), nil
}

// MemoryKV is an in-memory KV used by tests and as a fallback when the
// preferences database cannot be opened.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) GetStringSet(key string) (map[string]struct{}, error) {
	raw, err := m.Get(key)
	if err != nil {
		return nil, err
	}
	return decodeStringSet(raw)
}

func (m *MemoryKV) SetStringSet(key string, values map[string]struct{}) error {
	raw, err := encodeStringSet(values)
	if err != nil {
		return err
	}
	return m.Set(key, raw)
}
