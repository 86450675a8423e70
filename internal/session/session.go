// Package session tracks one user's upload-through-download workflow and
// coordinates the pipeline around it. A session moves through
// empty -> uploaded -> transcribed, with an optional remotely-stored side
// state while a generated subtitle file sits in remote storage.
package session

import (
	"errors"
	"sync"

	"subtitler/internal/subtitle"
	"subtitler/internal/transcribe"
)

var (
	// ErrValidation marks user-correctable input problems.
	ErrValidation = errors.New("invalid input")
	// ErrState marks operations requested out of sequence.
	ErrState = errors.New("operation out of sequence")
)

// RemoteHandle identifies a subtitle file retained in remote storage, pending
// deletion once the user confirms their download.
type RemoteHandle struct {
	FileID string
	Format subtitle.Format
}

// Session is the per-user pipeline state. Mutating operations are serialized
// through mu; the state machine is not safe under concurrent transitions.
// Different sessions are fully independent.
type Session struct {
	mu sync.Mutex

	uploadPath   string
	originalName string
	result       *transcribe.Result
	model        string
	task         transcribe.Task
	remote       *RemoteHandle
}

// Uploaded reports whether a media file is on record.
func (s *Session) Uploaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadPath != ""
}

// Transcribed reports whether a transcription result is on record.
func (s *Session) Transcribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result != nil
}

// OriginalName returns the filename the user uploaded under.
func (s *Session) OriginalName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originalName
}

// Store maps session ids to sessions. Implementations decide where state
// lives; the in-memory one below serves a single-process deployment.
type Store interface {
	Get(id string) (*Session, bool)
	GetOrCreate(id string) *Session
}

type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

func (m *MemoryStore) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		return sess
	}
	sess := &Session{}
	m.sessions[id] = sess
	return sess
}
