// Package session saves and restores the tab registry against the
// persistent store at the shell's startup and shutdown checkpoints.
package session

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/dgnsrekt/browse_agent/internal/store"
	"github.com/dgnsrekt/browse_agent/internal/tabs"
)

// DefaultName is the single session scope the shell uses.
const DefaultName = "default"

// Snapshotter serializes the registry to the sessions table and back.
type Snapshotter struct {
	store *store.Store
	name  string
}

func NewSnapshotter(st *store.Store) *Snapshotter {
	return &Snapshotter{store: st, name: DefaultName}
}

// Save replaces the stored snapshot with the registry's current tabs, in
// positional order with the active tab flagged.
func (s *Snapshotter) Save(reg *tabs.Registry) error {
	states := reg.List()
	rows := make([]store.SessionTab, 0, len(states))
	for _, st := range states {
		rows = append(rows, store.SessionTab{
			TabIndex:     st.Index,
			URL:          st.URL,
			Title:        st.Title,
			IsCurrentTab: st.Active,
		})
	}
	if err := s.store.ReplaceSession(s.name, rows); err != nil {
		return err
	}
	slog.Info("session saved", "session", s.name, "tabs", len(rows))
	return nil
}

// Restore recreates tabs from the stored snapshot in order, reactivating
// the previously-current tab. An empty snapshot opens one default tab;
// rows with empty or unparsable URLs are skipped.
func (s *Snapshotter) Restore(ctx context.Context, reg *tabs.Registry) error {
	rows, err := s.store.LoadSession(s.name)
	if err != nil {
		return err
	}

	activeIdx := -1
	for _, row := range rows {
		if !restorable(row.URL) {
			slog.Debug("session row skipped", "tab_index", row.TabIndex, "url", row.URL)
			continue
		}
		idx, err := reg.OpenTab(ctx, row.URL)
		if err != nil {
			slog.Warn("session tab restore failed", "url", row.URL, "error", err)
			continue
		}
		if row.IsCurrentTab {
			activeIdx = idx
		}
	}

	if reg.Count() == 0 {
		_, err := reg.OpenTab(ctx, "")
		return err
	}
	if activeIdx >= 0 {
		reg.SetActive(activeIdx)
	}
	slog.Info("session restored", "session", s.name, "tabs", reg.Count())
	return nil
}

func restorable(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme != ""
}
