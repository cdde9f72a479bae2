// Package history records successful top-level page loads into the
// persistent store with dedup/visit-count semantics.
package history

import (
	"log/slog"
	"net/url"

	"github.com/dgnsrekt/browse_agent/internal/store"
)

// Recorder consumes load-completed events and maintains the history table.
type Recorder struct {
	store *store.Store
}

func NewRecorder(st *store.Store) *Recorder {
	return &Recorder{store: st}
}

// RecordVisit upserts a visit for rawURL. Empty URLs and local pages
// (file, about and data schemes) never touch the ledger. Store failures
// are logged and reported; nothing here is fatal.
func (r *Recorder) RecordVisit(rawURL, title string) error {
	if rawURL == "" || isLocal(rawURL) {
		return nil
	}
	if err := r.store.RecordVisit(rawURL, title); err != nil {
		slog.Warn("history record failed", "url", rawURL, "error", err)
		return err
	}
	slog.Debug("history recorded", "url", rawURL, "title", title)
	return nil
}

// List returns up to limit entries, most recent first.
func (r *Recorder) List(limit int) ([]store.HistoryEntry, error) {
	return r.store.ListHistory(limit)
}

// Clear deletes all history unconditionally.
func (r *Recorder) Clear() error {
	return r.store.ClearHistory()
}

func isLocal(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	switch u.Scheme {
	case "file", "about", "data":
		return true
	}
	return false
}
