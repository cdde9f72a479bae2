package store

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordVisit upserts a history row for url: the first visit inserts with
// visit_count=1, every later visit bumps the count and refreshes title and
// visit_time. Scheme filtering happens in the history recorder; the store
// records whatever it is handed.
func (s *Store) RecordVisit(url, title string) error {
	entry := HistoryEntry{
		URL:        url,
		Title:      title,
		VisitTime:  s.now(),
		VisitCount: 1,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}},
		DoUpdates: clause.Assignments(map[string]any{
			"title":       title,
			"visit_time":  entry.VisitTime,
			"visit_count": gorm.Expr("visit_count + 1"),
		}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("store: record visit %s: %w", url, err)
	}
	return nil
}

// ListHistory returns up to limit entries, most recently visited first. A
// limit <= 0 returns everything.
func (s *Store) ListHistory(limit int) ([]HistoryEntry, error) {
	q := s.db.Order("visit_time DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var entries []HistoryEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("store: list history: %w", err)
	}
	return entries, nil
}

// ClearHistory deletes all history rows unconditionally.
func (s *Store) ClearHistory() error {
	if err := s.db.Exec("DELETE FROM history").Error; err != nil {
		return fmt.Errorf("store: clear history: %w", err)
	}
	return nil
}
