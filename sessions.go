package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vencenty/photo-uploader/crop"
)

// SessionStore keeps the open editor sessions. Each session owns its own
// history recorder, so concurrently open editors never share debounce timers.
type SessionStore struct {
	Exporter *crop.Exporter
	Debounce time.Duration

	mu       sync.Mutex
	sessions map[string]*crop.Session
}

func NewSessionStore(exporter *crop.Exporter, debounce time.Duration) *SessionStore {
	return &SessionStore{
		Exporter: exporter,
		Debounce: debounce,
		sessions: make(map[string]*crop.Session),
	}
}

func (s *SessionStore) Open(ctx context.Context, file string, aspect float64, mobile bool) (*crop.Session, error) {
	id := uuid.NewString()
	sess, err := crop.NewSession(ctx, id, file, s.Exporter, crop.SessionOptions{
		Aspect:   aspect,
		Mobile:   mobile,
		Debounce: s.Debounce,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	src := sess.Source()
	choice := sess.Aspect()
	log.Ctx(ctx).Info().
		Str("session", id).
		Str("file", file).
		Int("width", src.NaturalWidth).
		Int("height", src.NaturalHeight).
		Float64("aspect", choice.Effective).
		Bool("inverted", choice.Inverted).
		Msg("session opened")
	return sess, nil
}

func (s *SessionStore) Get(id string) (*crop.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *SessionStore) Close(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		sess.Close()
	}
	return ok
}

func (s *SessionStore) CloseAll() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*crop.Session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
	}
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
