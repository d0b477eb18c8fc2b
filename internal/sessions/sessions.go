// Package sessions keeps per-session chat history and the latest report
// state in process memory. Entries never expire; they live until cleared
// or the process exits.
package sessions

import (
	"slices"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"

	"github.com/JaimeStill/hemalyze/internal/report"
)

// DefaultID is used when a caller supplies no session identifier.
const DefaultID = "default"

const (
	historyPrefix = "history:"
	reportPrefix  = "report:"
)

// Turn is one question and the answer given to it.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Store holds chat history and report snapshots keyed by session.
type Store struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func New() *Store {
	return &Store{cache: cache.New(cache.NoExpiration, 0)}
}

// Normalize maps an empty identifier to DefaultID.
func Normalize(id string) string {
	if id = strings.TrimSpace(id); id == "" {
		return DefaultID
	}
	return id
}

// History returns a copy of the session's turns in append order.
func (s *Store) History(id string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history(Normalize(id)))
}

// Recent returns at most n of the latest turns.
func (s *Store) Recent(id string, n int) []Turn {
	h := s.History(id)
	if n >= 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	return h
}

// Append adds a turn to the session's history.
func (s *Store) Append(id string, t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := historyPrefix + Normalize(id)
	h := append(s.history(Normalize(id)), t)
	s.cache.Set(key, h, cache.NoExpiration)
}

// ClearHistory empties one session's history. The report snapshot is kept.
func (s *Store) ClearHistory(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(historyPrefix + Normalize(id))
}

// ClearAll drops every session's history and report snapshot.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Flush()
}

// StoreReport replaces the session's report snapshot.
func (s *Store) StoreReport(id string, st report.State) {
	s.cache.Set(reportPrefix+Normalize(id), st.Clone(), cache.NoExpiration)
}

// Report returns a copy of the session's report snapshot.
func (s *Store) Report(id string) (report.State, bool) {
	v, ok := s.cache.Get(reportPrefix + Normalize(id))
	if !ok {
		return report.State{}, false
	}
	return v.(report.State).Clone(), true
}

func (s *Store) history(id string) []Turn {
	if v, ok := s.cache.Get(historyPrefix + id); ok {
		return v.([]Turn)
	}
	return nil
}
