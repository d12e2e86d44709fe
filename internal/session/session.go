// Package session owns per-user conversation state: the selected pair, the
// recording duration and the conversation log.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/valpere/voxpair/internal/history"
	"github.com/valpere/voxpair/internal/language"
	"github.com/valpere/voxpair/internal/synth"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrInvalidDuration = errors.New("recording duration out of range")
	ErrUnknownPair     = errors.New("unknown language pair")
	ErrBusy            = errors.New("session is running a turn")
)

// Bounds limits the recording duration a session may select.
type Bounds struct {
	Min     time.Duration
	Max     time.Duration
	Default time.Duration
}

// DefaultBounds matches the UI slider: 3 to 15 seconds, 5 by default.
var DefaultBounds = Bounds{
	Min:     3 * time.Second,
	Max:     15 * time.Second,
	Default: 5 * time.Second,
}

// Check returns d, the default when d is zero, or ErrInvalidDuration.
func (b Bounds) Check(d time.Duration) (time.Duration, error) {
	if d == 0 {
		return b.Default, nil
	}
	if d < b.Min || d > b.Max {
		return 0, fmt.Errorf("%w: %s not within [%s, %s]", ErrInvalidDuration, d, b.Min, b.Max)
	}
	return d, nil
}

// Session is the explicit handle a turn runs against. At most one turn runs
// per session at a time.
type Session struct {
	ID        string
	CreatedAt time.Time
	Log       *history.Log

	busy       atomic.Bool
	lastActive atomic.Int64

	mu       sync.RWMutex
	pair     language.Pair
	duration time.Duration
	voices   map[string]*synth.Audio
}

func New(pair language.Pair, duration time.Duration) *Session {
	now := time.Now()
	s := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		Log:       history.NewLog(),
		pair:      pair,
		duration:  duration,
		voices:    make(map[string]*synth.Audio),
	}
	s.lastActive.Store(now.UnixNano())
	return s
}

// Settings returns the selected pair and recording duration as one
// consistent snapshot.
func (s *Session) Settings() (language.Pair, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, s.duration
}

// LastActive is the start time of the most recent turn, or the creation time.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

func (s *Session) touch(t time.Time) {
	s.lastActive.Store(t.UnixNano())
}

// TryBegin marks the session busy. It returns false when a turn is already
// running.
func (s *Session) TryBegin() bool {
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}
	s.touch(time.Now())
	return true
}

// Busy reports whether a turn is running.
func (s *Session) Busy() bool {
	return s.busy.Load()
}

func (s *Session) End() {
	s.busy.Store(false)
}

// StoreVoice keeps the synthesized audio of a logged turn for playback.
func (s *Session) StoreVoice(turnID string, a *synth.Audio) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voices[turnID] = a
}

func (s *Session) Voice(turnID string) (*synth.Audio, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.voices[turnID]
	return a, ok
}

// ClearHistory drops every logged turn and its audio.
func (s *Session) ClearHistory() int {
	s.mu.Lock()
	s.voices = make(map[string]*synth.Audio)
	s.mu.Unlock()
	return s.Log.Clear()
}

// Manager tracks live sessions for the HTTP shell.
type Manager struct {
	registry *language.Registry
	bounds   Bounds

	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewManager(registry *language.Registry, bounds Bounds) *Manager {
	return &Manager{
		registry: registry,
		bounds:   bounds,
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create opens a session on the pair with the given display label.
func (m *Manager) Create(pairLabel string, duration time.Duration) (*Session, error) {
	pair, ok := m.registry.Pair(pairLabel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPair, pairLabel)
	}
	d, err := m.bounds.Check(duration)
	if err != nil {
		return nil, err
	}

	s := New(pair, d)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Update switches the pair and/or recording duration of an idle session.
// An empty label or zero duration leaves that setting unchanged. History is
// kept across pair changes.
func (m *Manager) Update(id, pairLabel string, duration time.Duration) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	var pair *language.Pair
	if pairLabel != "" {
		p, ok := m.registry.Pair(pairLabel)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPair, pairLabel)
		}
		pair = &p
	}
	var d time.Duration
	if duration != 0 {
		if d, err = m.bounds.Check(duration); err != nil {
			return nil, err
		}
	}

	if !s.TryBegin() {
		return nil, ErrBusy
	}
	defer s.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if pair != nil {
		s.pair = *pair
	}
	if d != 0 {
		s.duration = d
	}
	return s, nil
}

// Close ends a session; its history goes with it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// List returns the live sessions, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CloseIdle ends every session with no turn running whose last activity is
// older than ttl, and returns how many were closed.
func (m *Manager) CloseIdle(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl)

	m.mu.Lock()
	defer m.mu.Unlock()
	closed := 0
	for id, s := range m.sessions {
		if s.Busy() || !s.LastActive().Before(cutoff) {
			continue
		}
		delete(m.sessions, id)
		closed++
	}
	return closed
}

// ExpireIdle runs CloseIdle every interval until ctx is done. A non-positive
// ttl disables expiry.
func (m *Manager) ExpireIdle(ctx context.Context, ttl, interval time.Duration, logger *logrus.Logger) {
	if ttl <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.CloseIdle(ttl); n > 0 && logger != nil {
				logger.WithFields(logrus.Fields{
					"closed": n,
					"ttl":    ttl,
				}).Info("Closed idle sessions")
			}
		}
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
