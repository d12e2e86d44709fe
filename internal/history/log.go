// Package history keeps the in-memory conversation log of a session.
package history

import (
	"sync"
	"time"

	"github.com/valpere/voxpair/internal/language"
)

// Turn is one completed exchange. Turns are values; the log hands out copies.
type Turn struct {
	ID          string        `json:"id"`
	Time        time.Time     `json:"time"`
	SourceLang  language.Code `json:"src_lang"`
	TargetLang  language.Code `json:"tgt_lang"`
	SourceText  string        `json:"src_text"`
	TargetText  string        `json:"tgt_text"`
	DetectedRaw string        `json:"detected_raw"`
}

// Clock formats the turn time the way the history view shows it.
func (t Turn) Clock() string {
	return t.Time.Format("15:04:05")
}

// Log is an append-only sequence of turns in chronological order. Only Clear
// removes turns, and it removes all of them.
type Log struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(t Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, t)
}

// Clear empties the log and returns how many turns were dropped.
func (l *Log) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.turns)
	l.turns = nil
	return n
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// RenderOrder returns the turns newest first without touching stored order.
func (l *Log) RenderOrder() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Turn, len(l.turns))
	for i, t := range l.turns {
		out[len(l.turns)-1-i] = t
	}
	return out
}

// Find returns the turn with the given id.
func (l *Log) Find(id string) (Turn, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, t := range l.turns {
		if t.ID == id {
			return t, true
		}
	}
	return Turn{}, false
}
