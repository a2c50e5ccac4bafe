// Package sessions implements SessionStore: per-conversation message
// history and summary, durable on disk as one JSON document per key.
package sessions

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tinyclaw-run/tinyclaw/internal/providers"
)

// Message mirrors the LLM-facing message shape persisted on a session.
type Message = providers.Message

// Session is keyed by "{channelName}:{chatId}". The key is opaque
// elsewhere; Manager derives a filesystem-safe filename from it.
type Session struct {
	Key      string    `json:"key"`
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// Manager owns every Session behind a single RWMutex: mutations of any
// key are serialised, while reads may run concurrently.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	storage  string
	log      *slog.Logger
}

// NewManager creates a Manager backed by storage (a directory). If
// storage is empty, sessions are kept in memory only (useful for tests).
// All sessions present at startup are loaded eagerly; a corrupt file is
// skipped with a warning and never aborts startup.
func NewManager(storage string) (*Manager, error) {
	m := &Manager{
		sessions: make(map[string]*Session),
		storage:  storage,
		log:      slog.Default().With("component", "sessions"),
	}
	if storage != "" {
		if err := os.MkdirAll(storage, 0o755); err != nil {
			return nil, err
		}
		m.loadAll()
	}
	return m, nil
}

func (m *Manager) loadAll() {
	entries, err := os.ReadDir(m.storage)
	if err != nil {
		m.log.Warn("list session storage failed", "error", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.storage, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			m.log.Warn("read session file failed", "file", e.Name(), "error", err)
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			m.log.Warn("skipping corrupt session file", "file", e.Name(), "error", err)
			continue
		}
		if sess.Key == "" {
			sess.Key = strings.TrimSuffix(e.Name(), ".json")
		}
		m.sessions[sess.Key] = &sess
	}
}

// GetOrCreate returns the session for key, creating it (with an empty
// history) on first use.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getLocked(key)
}

// Append adds a message to the session's history.
func (m *Manager) Append(key string, msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getLocked(key)
	s.Messages = append(s.Messages, msg)
	s.Updated = time.Now()
}

// History returns a defensive copy of the session's message list.
func (m *Manager) History(key string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil
	}
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// GetSummary returns the session's current summary (may be empty).
func (m *Manager) GetSummary(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[key]; ok {
		return s.Summary
	}
	return ""
}

// SetSummary replaces the session's summary.
func (m *Manager) SetSummary(key, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getLocked(key)
	s.Summary = summary
	s.Updated = time.Now()
}

// Truncate keeps only the last keepLast messages; keepLast<=0 clears
// the entire history.
func (m *Manager) Truncate(key string, keepLast int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.getLocked(key)
	if keepLast <= 0 {
		s.Messages = nil
	} else if len(s.Messages) > keepLast {
		s.Messages = append([]Message(nil), s.Messages[len(s.Messages)-keepLast:]...)
	}
	s.Updated = time.Now()
}

// getLocked must be called with m.mu held for writing.
func (m *Manager) getLocked(key string) *Session {
	s, ok := m.sessions[key]
	if !ok {
		now := time.Now()
		s = &Session{Key: key, Created: now, Updated: now}
		m.sessions[key] = s
	}
	return s
}

// Save persists the session identified by key. It snapshots state under
// a read lock, then performs the (possibly slow) disk I/O outside the
// lock via an atomic temp-file-then-rename so a crash mid-write never
// corrupts the previous good copy.
func (m *Manager) Save(key string) error {
	if m.storage == "" {
		return nil
	}
	m.mu.RLock()
	s, ok := m.sessions[key]
	var snapshot Session
	if ok {
		snapshot = *s
		snapshot.Messages = append([]Message(nil), s.Messages...)
	}
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	name := sanitizeFilename(key) + ".json"
	if !filepath.IsLocal(name) || strings.ContainsRune(name, filepath.Separator) {
		return &os.PathError{Op: "save", Path: name, Err: os.ErrInvalid}
	}

	tmp, err := os.CreateTemp(m.storage, "session-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(m.storage, name))
}

// Delete removes a session from memory and disk.
func (m *Manager) Delete(key string) error {
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
	if m.storage == "" {
		return nil
	}
	name := sanitizeFilename(key) + ".json"
	err := os.Remove(filepath.Join(m.storage, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Keys returns every known session key.
func (m *Manager) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.sessions))
	for k := range m.sessions {
		out = append(out, k)
	}
	return out
}

func sanitizeFilename(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}
