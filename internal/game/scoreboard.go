package game

import (
	"sort"
	"sync"
)

// Entry is one player's terminal outcome on the scoreboard.
type Entry struct {
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Total  int    `json:"total"`
	Status Status `json:"status"`
}

// Scoreboard accumulates each player's terminal outcome: exactly one
// authoritative write per session, overwriting any prior entry for
// that name.
//
// A generation counter resolves the reset race: sessions capture the
// generation at admission and an outcome racing a reset is dropped.
// Reset always wins.
type Scoreboard struct {
	mu         sync.Mutex
	entries    map[string]Entry
	generation uint64
}

// NewScoreboard returns an empty scoreboard at generation zero.
func NewScoreboard() *Scoreboard {
	return &Scoreboard{entries: map[string]Entry{}}
}

// Generation returns the current reset generation. Sessions capture
// it once, at admission.
func (s *Scoreboard) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// RecordOutcome writes a player's terminal outcome. The write is
// dropped, and false returned, if a reset happened after the caller
// captured gen.
func (s *Scoreboard) RecordOutcome(gen uint64, name string, score, total int, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.entries[name] = Entry{Name: name, Score: score, Total: total, Status: status}
	return true
}

// Rows returns the scoreboard sorted by score descending, ties broken
// by ascending total, then by name for determinism.
func (s *Scoreboard) Rows() []Entry {
	s.mu.Lock()
	rows := make([]Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		rows = append(rows, entry)
	}
	s.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		if rows[i].Total != rows[j].Total {
			return rows[i].Total < rows[j].Total
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

// Len returns the number of recorded outcomes.
func (s *Scoreboard) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Reset clears every entry and bumps the generation so in-flight
// outcome writes from older cycles are discarded.
func (s *Scoreboard) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]Entry{}
	s.generation++
}
