// Package sqlitestore is the concrete durable-store adapter the CLI host
// uses: a single-file SQLite database accessed through gorm, giving the
// vault's key store, device salt, and session settings real
// cross-restart persistence without requiring a running database
// server.
package sqlitestore

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"secvault/internal/store"
)

// row is the single table backing the whole key-value namespace. Value
// is stored as raw bytes (callers own their own encoding, typically
// JSON); the vault never stores a row's value unencrypted when it
// represents a secret.
type row struct {
	Key   string `gorm:"primaryKey"`
	Value []byte
}

func (row) TableName() string { return "secvault_kv" }

// Store is a gorm/sqlite-backed implementation of store.Durable.
type Store struct {
	mu        sync.Mutex
	db        *gorm.DB
	listeners map[int]store.ChangeListener
	nextID    int
}

// Open opens (creating if absent) a SQLite database at path and
// migrates the key-value table.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}

	if err := db.AutoMigrate(&row{}); err != nil {
		return nil, fmt.Errorf("sqlitestore: migrate: %w", err)
	}

	return &Store{db: db, listeners: make(map[int]store.ChangeListener)}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var r row

	err := s.db.WithContext(ctx).Where("key = ?", key).First(&r).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("sqlitestore: get %s: %w", key, err)
	}

	return r.Value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	r := row{Key: key, Value: value}

	err := s.db.WithContext(ctx).Save(&r).Error
	if err != nil {
		return fmt.Errorf("sqlitestore: set %s: %w", key, err)
	}

	s.notify(key, value)

	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Delete(&row{}, "key = ?", key).Error
	if err != nil {
		return fmt.Errorf("sqlitestore: remove %s: %w", key, err)
	}

	s.notify(key, nil)

	return nil
}

func (s *Store) OnChange(listener store.ChangeListener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = listener

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) notify(key string, value []byte) {
	s.mu.Lock()
	listeners := make([]store.ChangeListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(key, value)
	}
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlitestore: close: %w", err)
	}

	return sqlDB.Close()
}
