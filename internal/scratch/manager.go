// Package scratch owns the temporary directories used while files wait for a
// command and while an operation runs.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"pdf-tools-bot/internal/domain"

	"github.com/google/uuid"
)

const (
	opPrefix    = "op_"
	inboxPrefix = "inbox_"
)

// Manager allocates and releases scratch directories under one root.
type Manager struct {
	root   string
	logger domain.Logger

	mu      sync.Mutex
	active  map[string]domain.ConversationID
	inboxes map[domain.ConversationID]string
	owners  map[string]domain.ConversationID

	removeAll func(path string) error

	// OnInboxSwept is called after the sweeper removed a conversation's inbox.
	OnInboxSwept func(conv domain.ConversationID)
}

// NewManager creates the root directory if needed.
func NewManager(root string, logger domain.Logger) (*Manager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve temp dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Manager{
		root:    abs,
		logger:  logger,
		active:  make(map[string]domain.ConversationID),
		inboxes: make(map[domain.ConversationID]string),
		owners:  make(map[string]domain.ConversationID),

		removeAll: os.RemoveAll,
	}, nil
}

// Root returns the absolute scratch root.
func (m *Manager) Root() string {
	return m.root
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Allocate creates a fresh, empty directory for one operation and registers it
// as active so the sweeper leaves it alone.
func (m *Manager) Allocate(conv domain.ConversationID) (string, error) {
	dir := filepath.Join(m.root, opPrefix+conv.Safe()+"_"+shortID())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("allocate scratch dir: %w", err)
	}

	m.mu.Lock()
	m.active[dir] = conv
	m.mu.Unlock()

	m.logger.Debug("Scratch dir allocated", "conversation_id", conv, "dir", dir)
	return dir, nil
}

// Materialize makes an input file available inside dir. It hard-links when
// the file system allows it and copies otherwise.
func (m *Manager) Materialize(file domain.PendingFile, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(file.Path))
	if err := os.Link(file.Path, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(file.Path, dst); err != nil {
		return "", fmt.Errorf("materialize %s: %w", file.OriginalName, err)
	}
	return dst, nil
}

// Release removes a directory and everything in it. Releasing a directory
// that is already gone is a no-op. Paths outside the root are refused.
func (m *Manager) Release(dir string) error {
	if err := m.checkInside(dir); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.active, dir)
	if conv, ok := m.owners[dir]; ok {
		delete(m.owners, dir)
		if m.inboxes[conv] == dir {
			delete(m.inboxes, conv)
		}
	}
	m.mu.Unlock()

	if err := m.removeAll(dir); err != nil {
		return fmt.Errorf("release %s: %w", dir, err)
	}
	return nil
}

// Stage copies an upload into the conversation's inbox. At most limit bytes
// are accepted; a larger stream is removed and reported as ErrFileTooLarge.
func (m *Manager) Stage(conv domain.ConversationID, name string, r io.Reader, limit int64) (string, int64, error) {
	inbox, err := m.inbox(conv)
	if err != nil {
		return "", 0, err
	}

	path := filepath.Join(inbox, shortID()+"_"+SanitizeName(name))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, fmt.Errorf("stage upload: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(r, limit+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("stage upload: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("stage upload: %w", closeErr)
	case n > limit:
		_ = os.Remove(path)
		return "", n, domain.ErrFileTooLarge
	}

	// Touch the inbox so the sweeper measures age from the last upload.
	now := time.Now()
	_ = os.Chtimes(inbox, now, now)
	return path, n, nil
}

// Discard removes individual staged files. Missing files are ignored.
func (m *Manager) Discard(paths ...string) {
	for _, p := range paths {
		if err := m.checkInside(p); err != nil {
			m.logger.Warn("Refusing to discard file outside scratch root", "path", p)
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Error("Failed to discard staged file", err, "path", p)
		}
	}
}

// ReleaseInbox removes the conversation's inbox, if any.
func (m *Manager) ReleaseInbox(conv domain.ConversationID) error {
	m.mu.Lock()
	dir, ok := m.inboxes[conv]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	return m.Release(dir)
}

func (m *Manager) inbox(conv domain.ConversationID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dir, ok := m.inboxes[conv]; ok {
		if _, err := os.Stat(dir); err == nil {
			return dir, nil
		}
		delete(m.owners, dir)
	}

	dir := filepath.Join(m.root, inboxPrefix+conv.Safe()+"_"+shortID())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("create inbox: %w", err)
	}
	m.inboxes[conv] = dir
	m.owners[dir] = conv
	return dir, nil
}

func (m *Manager) checkInside(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrOutsideRoot, path)
	}
	rel, err := filepath.Rel(m.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", domain.ErrOutsideRoot, path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
