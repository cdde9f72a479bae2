// Package store owns the shell's durable tables: history, session
// snapshots, and saved credentials. Every mutation is a single upsert
// statement or a single transaction, so concurrent tab callbacks never see
// a half-applied read-modify-write.
package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// HistoryEntry is one visited URL with its aggregated visit count. URL is
// the unique key; repeat visits mutate the existing row.
type HistoryEntry struct {
	ID         int64     `gorm:"column:id;primaryKey" json:"-"`
	URL        string    `gorm:"column:url;uniqueIndex" json:"url"`
	Title      string    `gorm:"column:title" json:"title"`
	VisitTime  time.Time `gorm:"column:visit_time" json:"visit_time"`
	VisitCount int64     `gorm:"column:visit_count" json:"visit_count"`
}

func (HistoryEntry) TableName() string { return "history" }

// SessionTab is one positional row of a named session snapshot. TabIndex is
// the 0-based position at save time, not a stable identity.
type SessionTab struct {
	ID           int64     `gorm:"column:id;primaryKey" json:"-"`
	SessionName  string    `gorm:"column:session_name;index" json:"session_name"`
	TabIndex     int       `gorm:"column:tab_index" json:"tab_index"`
	URL          string    `gorm:"column:url" json:"url"`
	Title        string    `gorm:"column:title" json:"title"`
	IsCurrentTab bool      `gorm:"column:is_current_tab" json:"is_current_tab"`
	CreatedTime  time.Time `gorm:"column:created_time" json:"created_time"`
}

func (SessionTab) TableName() string { return "sessions" }

// Credential is one saved login, keyed by (url, username). Password is an
// opaque blob; encryption-at-rest is out of scope.
type Credential struct {
	ID          int64     `gorm:"column:id;primaryKey" json:"-"`
	URL         string    `gorm:"column:url;uniqueIndex:idx_passwords_url_username" json:"url"`
	Domain      string    `gorm:"column:domain;index" json:"domain"`
	Username    string    `gorm:"column:username;uniqueIndex:idx_passwords_url_username" json:"username"`
	Password    string    `gorm:"column:password" json:"-"`
	CreatedTime time.Time `gorm:"column:created_time" json:"created_time"`
	LastUsed    time.Time `gorm:"column:last_used" json:"last_used"`
}

func (Credential) TableName() string { return "passwords" }

// Store wraps the sqlite database behind the shell's persistence API.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(&HistoryEntry{}, &SessionTab{}, &Credential{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
