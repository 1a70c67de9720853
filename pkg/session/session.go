package session

import (
	"sync"

	"github.com/nvale/orgchat/internal/models"
)

// Config controls history retention. MaxTurns of 0 keeps history unbounded;
// otherwise the oldest turns are evicted first.
type Config struct {
	MaxTurns int
}

// Store keeps ordered turn history per session id. Sessions are created
// implicitly on first append. Appends on one session id are serialized;
// different session ids never contend beyond the map lookup.
type Store struct {
	mu       sync.RWMutex
	config   Config
	sessions map[string]*session
}

type session struct {
	mu    sync.Mutex
	turns []models.Turn
}

func NewStore(config Config) *Store {
	return &Store{config: config, sessions: make(map[string]*session)}
}

// History returns a copy of the session's turns in append order. An unknown
// session id yields an empty history, not an error.
func (s *Store) History(sessionID string) []models.Turn {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make([]models.Turn, len(sess.turns))
	copy(out, sess.turns)
	return out
}

// Append records a turn at the end of the session's history, creating the
// session if needed and evicting the oldest turn when over the retention cap.
func (s *Store) Append(sessionID string, turn models.Turn) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{}
		s.sessions[sessionID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.turns = append(sess.turns, turn)
	if s.config.MaxTurns > 0 && len(sess.turns) > s.config.MaxTurns {
		sess.turns = sess.turns[len(sess.turns)-s.config.MaxTurns:]
	}
}

// Clear removes the session and its history entirely.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
