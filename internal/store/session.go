package store

import (
	"fmt"

	"gorm.io/gorm"
)

// ReplaceSession swaps the named snapshot wholesale: delete-all then
// insert-all in one transaction. Snapshots are never patched in place.
func (s *Store) ReplaceSession(name string, tabs []SessionTab) error {
	now := s.now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_name = ?", name).Delete(&SessionTab{}).Error; err != nil {
			return err
		}
		for i := range tabs {
			tabs[i].ID = 0
			tabs[i].SessionName = name
			tabs[i].CreatedTime = now
		}
		if len(tabs) == 0 {
			return nil
		}
		return tx.Create(&tabs).Error
	})
	if err != nil {
		return fmt.Errorf("store: replace session %s: %w", name, err)
	}
	return nil
}

// LoadSession returns the named snapshot's rows in stored tab order.
func (s *Store) LoadSession(name string) ([]SessionTab, error) {
	var tabs []SessionTab
	err := s.db.Where("session_name = ?", name).Order("tab_index ASC").Find(&tabs).Error
	if err != nil {
		return nil, fmt.Errorf("store: load session %s: %w", name, err)
	}
	return tabs, nil
}
