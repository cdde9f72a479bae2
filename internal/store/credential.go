package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertCredential saves a credential keyed by (url, username). Re-saving
// overwrites the password and domain and refreshes last_used; created_time
// keeps its original value.
func (s *Store) UpsertCredential(url, domain, username, password string) error {
	now := s.now()
	cred := Credential{
		URL:         url,
		Domain:      domain,
		Username:    username,
		Password:    password,
		CreatedTime: now,
		LastUsed:    now,
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "url"}, {Name: "username"}},
		DoUpdates: clause.Assignments(map[string]any{
			"domain":    domain,
			"password":  password,
			"last_used": now,
		}),
	}).Create(&cred).Error
	if err != nil {
		return fmt.Errorf("store: upsert credential %s@%s: %w", username, url, err)
	}
	return nil
}

// ListCredentials returns saved credentials, most recently used first. A
// non-empty domain filters to that domain.
func (s *Store) ListCredentials(domain string) ([]Credential, error) {
	q := s.db.Order("last_used DESC, id DESC")
	if domain != "" {
		q = q.Where("domain = ?", domain)
	}
	var creds []Credential
	if err := q.Find(&creds).Error; err != nil {
		return nil, fmt.Errorf("store: list credentials: %w", err)
	}
	return creds, nil
}

// MostRecentForDomain returns the most recently used credential for a
// domain. Equal last_used timestamps resolve by insertion order, newest
// first, so the pick is deterministic.
func (s *Store) MostRecentForDomain(domain string) (Credential, bool, error) {
	var cred Credential
	err := s.db.Where("domain = ?", domain).
		Order("last_used DESC, id DESC").
		First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Credential{}, false, nil
	}
	if err != nil {
		return Credential{}, false, fmt.Errorf("store: credential for %s: %w", domain, err)
	}
	return cred, true, nil
}

// TouchCredential refreshes last_used after a successful autofill.
func (s *Store) TouchCredential(url, username string) error {
	err := s.db.Model(&Credential{}).
		Where("url = ? AND username = ?", url, username).
		Update("last_used", s.now()).Error
	if err != nil {
		return fmt.Errorf("store: touch credential %s@%s: %w", username, url, err)
	}
	return nil
}

// DeleteCredential removes one credential by its (url, username) key.
func (s *Store) DeleteCredential(url, username string) error {
	err := s.db.Where("url = ? AND username = ?", url, username).Delete(&Credential{}).Error
	if err != nil {
		return fmt.Errorf("store: delete credential %s@%s: %w", username, url, err)
	}
	return nil
}

// ClearCredentials deletes every saved credential.
func (s *Store) ClearCredentials() error {
	if err := s.db.Exec("DELETE FROM passwords").Error; err != nil {
		return fmt.Errorf("store: clear credentials: %w", err)
	}
	return nil
}
