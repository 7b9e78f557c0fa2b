package repository

import (
	"context"
	"sync"

	"pdf-tools-bot/internal/domain"
)

// MemoryAnalyticsRepository keeps analytics in process memory. It is the
// default when no database is configured.
type MemoryAnalyticsRepository struct {
	mu        sync.RWMutex
	users     map[int64]struct{}
	total     int64
	byCommand map[domain.Command]int64
}

var _ domain.AnalyticsRepository = (*MemoryAnalyticsRepository)(nil)

// NewMemoryAnalyticsRepository creates an empty repository.
func NewMemoryAnalyticsRepository() *MemoryAnalyticsRepository {
	return &MemoryAnalyticsRepository{
		users:     make(map[int64]struct{}),
		byCommand: make(map[domain.Command]int64),
	}
}

// Track records the user and, for document operations, the operation.
func (r *MemoryAnalyticsRepository) Track(ctx context.Context, event domain.OperationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.UserID != 0 {
		r.users[event.UserID] = struct{}{}
	}
	if countsAsOperation(event) {
		r.total++
		r.byCommand[event.Command]++
	}
	return nil
}

// Statistics returns a snapshot of the counters.
func (r *MemoryAnalyticsRepository) Statistics(ctx context.Context) (*domain.Statistics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := &domain.Statistics{
		TotalUsers:      int64(len(r.users)),
		TotalOperations: r.total,
		ByCommand:       make(map[domain.Command]int64, len(r.byCommand)),
	}
	for cmd, n := range r.byCommand {
		stats.ByCommand[cmd] = n
	}
	return stats, nil
}

// countsAsOperation reports whether an event is a completed document
// operation. Informational commands and rejected requests only register the
// user.
func countsAsOperation(event domain.OperationEvent) bool {
	return event.Command.IsOperation() && event.Outcome == domain.OutcomeSucceeded
}
