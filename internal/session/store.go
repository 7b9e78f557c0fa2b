// Package session holds the per-conversation list of uploaded files that are
// waiting for a command.
package session

import (
	"fmt"
	"sync"

	"pdf-tools-bot/internal/domain"
	apperrors "pdf-tools-bot/pkg/errors"
)

// Limits caps the number of pending files per kind.
type Limits struct {
	MaxDocuments int
	MaxImages    int
}

func (l Limits) forKind(kind domain.FileKind) int {
	if kind == domain.KindImage {
		return l.MaxImages
	}
	return l.MaxDocuments
}

type entry struct {
	mu    sync.Mutex
	files []domain.PendingFile
	// dropped is set once Clear removed the entry from the map.
	dropped bool
}

// Store is a process-wide keyed store. The map lock only guards entry lookup;
// each conversation's list has its own lock so conversations never contend.
type Store struct {
	mu      sync.RWMutex
	entries map[domain.ConversationID]*entry
	limits  Limits
}

// NewStore creates an empty store.
func NewStore(limits Limits) *Store {
	return &Store{
		entries: make(map[domain.ConversationID]*entry),
		limits:  limits,
	}
}

func (s *Store) get(conv domain.ConversationID) *entry {
	s.mu.RLock()
	e := s.entries[conv]
	s.mu.RUnlock()
	return e
}

func (s *Store) getOrCreate(conv domain.ConversationID) *entry {
	if e := s.get(conv); e != nil {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[conv]
	if !ok {
		e = &entry{}
		s.entries[conv] = e
	}
	return e
}

// Limit returns the cap for a kind.
func (s *Store) Limit(kind domain.FileKind) int {
	return s.limits.forKind(kind)
}

// Add appends a file and returns how many files of that kind are now pending.
// It fails with a capacity error, leaving the list untouched, when the kind's
// cap is already reached.
func (s *Store) Add(conv domain.ConversationID, file domain.PendingFile) (int, error) {
	e := s.getOrCreate(conv)
	e.mu.Lock()
	for e.dropped {
		e.mu.Unlock()
		e = s.getOrCreate(conv)
		e.mu.Lock()
	}
	defer e.mu.Unlock()

	count := countKind(e.files, file.Kind)
	limit := s.limits.forKind(file.Kind)
	if limit > 0 && count >= limit {
		return count, apperrors.NewCapacityError(
			fmt.Sprintf("You can upload at most %d %s at a time", limit, file.Kind.Label()),
			fmt.Sprintf("You already have %d. Run a command or /cancel to start over.", count),
		)
	}

	e.files = append(e.files, file)
	return count + 1, nil
}

// Files returns a copy of all pending files in upload order.
func (s *Store) Files(conv domain.ConversationID) []domain.PendingFile {
	e := s.get(conv)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.PendingFile, len(e.files))
	copy(out, e.files)
	return out
}

// FilesOfKind returns a copy of the pending files of one kind, in upload order.
func (s *Store) FilesOfKind(conv domain.ConversationID, kind domain.FileKind) []domain.PendingFile {
	e := s.get(conv)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.PendingFile
	for _, f := range e.files {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

// Count returns the number of pending files of a kind.
func (s *Store) Count(conv domain.ConversationID, kind domain.FileKind) int {
	e := s.get(conv)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return countKind(e.files, kind)
}

// Clear drops every pending file of the conversation and returns their paths
// so the caller can delete them.
func (s *Store) Clear(conv domain.ConversationID) []string {
	s.mu.Lock()
	e, ok := s.entries[conv]
	delete(s.entries, conv)
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.dropped = true
	paths := make([]string, 0, len(e.files))
	for _, f := range e.files {
		paths = append(paths, f.Path)
	}
	e.files = nil
	return paths
}

// Conversations lists the conversations that currently hold pending files.
func (s *Store) Conversations() []domain.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationID, 0, len(s.entries))
	for conv := range s.entries {
		out = append(out, conv)
	}
	return out
}

func countKind(files []domain.PendingFile, kind domain.FileKind) int {
	n := 0
	for _, f := range files {
		if f.Kind == kind {
			n++
		}
	}
	return n
}
