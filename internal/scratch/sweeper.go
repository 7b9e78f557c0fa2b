package scratch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"pdf-tools-bot/internal/domain"
)

// SweepReport summarizes one sweep.
type SweepReport struct {
	Removed []string
	Skipped int
	Failed  map[string]error
}

// Sweep removes root entries older than maxAge. Directories registered as
// active, and inboxes of conversations with an active operation, are skipped.
// A failure on one directory is logged and the sweep moves on.
func (m *Manager) Sweep(maxAge time.Duration) SweepReport {
	report := SweepReport{Failed: make(map[string]error)}

	entries, err := os.ReadDir(m.root)
	if err != nil {
		m.logger.Error("Failed to list scratch root", err, "root", m.root)
		return report
	}

	m.mu.Lock()
	active := make(map[string]bool, len(m.active))
	busy := make(map[domain.ConversationID]bool, len(m.active))
	for dir, conv := range m.active {
		active[dir] = true
		busy[conv] = true
	}
	owners := make(map[string]domain.ConversationID, len(m.owners))
	for dir, conv := range m.owners {
		owners[dir] = conv
	}
	m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(m.root, e.Name())
		if active[dir] {
			report.Skipped++
			continue
		}
		conv, isInbox := owners[dir]
		if isInbox && busy[conv] {
			report.Skipped++
			continue
		}

		info, err := e.Info()
		if err != nil {
			report.Failed[dir] = err
			m.logger.Error("Failed to stat scratch dir", err, "dir", dir)
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := m.Release(dir); err != nil {
			report.Failed[dir] = err
			m.logger.Error("Failed to sweep scratch dir", err, "dir", dir)
			continue
		}
		report.Removed = append(report.Removed, dir)
		if isInbox && m.OnInboxSwept != nil {
			m.OnInboxSwept(conv)
		}
	}
	return report
}

// Sweeper runs Sweep on a fixed interval until its context is cancelled.
type Sweeper struct {
	manager  *Manager
	interval time.Duration
	maxAge   time.Duration
	logger   domain.Logger
}

// NewSweeper creates a sweeper for the manager's root.
func NewSweeper(manager *Manager, interval, maxAge time.Duration, logger domain.Logger) *Sweeper {
	return &Sweeper{
		manager:  manager,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Run sweeps once immediately, then on every tick. It returns nil when ctx is
// done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("Cleanup scheduler started", "interval", s.interval.String(), "max_age", s.maxAge.String())
	s.RunOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Cleanup scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// RunOnce performs a single sweep and logs its outcome.
func (s *Sweeper) RunOnce() SweepReport {
	report := s.manager.Sweep(s.maxAge)
	if len(report.Removed) > 0 || len(report.Failed) > 0 {
		s.logger.Info("Scratch sweep finished",
			"removed", len(report.Removed),
			"skipped", report.Skipped,
			"failed", len(report.Failed),
		)
	}
	return report
}
