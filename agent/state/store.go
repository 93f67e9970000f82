package state

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
)

var ErrInvalidUser = errors.New("user id is empty")

// SelectionMismatchError reports a selection that is neither part of the
// last results nor a validated direct reference.
type SelectionMismatchError struct {
	UserID    string
	VehicleID int64
}

func (e *SelectionMismatchError) Error() string {
	return fmt.Sprintf("vehicle %d is not in the last results of user %s", e.VehicleID, e.UserID)
}

// StoreOption customizes Store.
type StoreOption func(*Store)

// WithClock replaces time.Now as the activity clock.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type entry struct {
	mu      sync.Mutex
	conv    *Conversation
	removed bool
}

// Store keeps conversations in process memory. Operations on one user are
// serialized by that user's lock; different users proceed in parallel.
// The store-wide lock only guards the map and is never held while waiting
// on a user lock.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		entries: make(map[string]*entry, 64),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// acquire returns the user's entry locked, creating it on first touch.
// An entry evicted while we waited is discarded and the lookup retried.
func (s *Store) acquire(userID string) *entry {
	for {
		s.mu.Lock()
		e, ok := s.entries[userID]
		if !ok {
			e = &entry{conv: NewConversation(userID, s.now())}
			s.entries[userID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		if !e.removed {
			return e
		}
		e.mu.Unlock()
	}
}

// Do runs fn with exclusive access to the user's conversation. Changes made
// by fn are kept even when fn returns an error; fn decides what to mutate.
func (s *Store) Do(userID string, fn func(c *Conversation, now time.Time) error) error {
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}
	e := s.acquire(userID)
	defer e.mu.Unlock()
	return fn(e.conv, s.now())
}

// Get returns a snapshot of the user's conversation, creating it if absent.
// Reading is not activity: LastActivityAt is left as is, so a user who only
// polls state is still swept.
func (s *Store) Get(userID string) (*Conversation, error) {
	var out *Conversation
	err := s.Do(userID, func(c *Conversation, _ time.Time) error {
		out = c.Clone()
		return nil
	})
	return out, err
}

// UpdateFilters replaces the filter context and its results. A selection
// that is not part of new non-empty results is dropped; an empty result
// leaves the current focus in place.
func (s *Store) UpdateFilters(userID string, criteria search.Criteria, results search.Result) error {
	return s.Do(userID, func(c *Conversation, now time.Time) error {
		ApplySearch(c, criteria, results, now)
		return nil
	})
}

// ApplySearch is UpdateFilters for callers already holding the user lock.
func ApplySearch(c *Conversation, criteria search.Criteria, results search.Result, now time.Time) {
	c.LastFilters = &criteria
	c.LastResults = &results
	if c.SelectedVehicle != nil && results.Len() > 0 && !results.Contains(c.SelectedVehicle.ID) {
		c.SelectedVehicle = nil
	}
	c.Record(ActionSearch, fmt.Sprintf("matches=%d", results.Len()), now)
}

// Select focuses the user on v. Unless direct is set, v must belong to the
// user's last results.
func (s *Store) Select(userID string, v catalog.Vehicle, direct bool) error {
	return s.Do(userID, func(c *Conversation, now time.Time) error {
		return ApplySelect(c, v, direct, now)
	})
}

// ApplySelect is Select for callers already holding the user lock.
func ApplySelect(c *Conversation, v catalog.Vehicle, direct bool, now time.Time) error {
	if !direct && (c.LastResults == nil || !c.LastResults.Contains(v.ID)) {
		return &SelectionMismatchError{UserID: c.UserID, VehicleID: v.ID}
	}
	c.SelectedVehicle = &v
	details := fmt.Sprintf("stock_id=%d", v.ID)
	if direct {
		details += " direct"
	}
	c.Record(ActionSelect, details, now)
	return nil
}

// RecordAction appends a free-form history entry.
func (s *Store) RecordAction(userID string, kind ActionType, details string) error {
	return s.Do(userID, func(c *Conversation, now time.Time) error {
		c.Record(kind, details, now)
		return nil
	})
}

// Reset clears the user's context but keeps the record.
func (s *Store) Reset(userID string) error {
	return s.Do(userID, func(c *Conversation, now time.Time) error {
		c.Clear(now)
		return nil
	})
}

// Remove deletes the user's record. Removing an unknown user is a no-op.
func (s *Store) Remove(userID string) error {
	userID, err := normalizeUser(userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.entries[userID]
	s.mu.Unlock()
	if !ok {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s.evictLocked(userID, e)
	return nil
}

// SweepInactive removes every record idle for longer than maxAge and
// returns how many were removed.
func (s *Store) SweepInactive(maxAge time.Duration) int {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	snapshot := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		snapshot[id] = e
	}
	s.mu.Unlock()

	removed := 0
	for id, e := range snapshot {
		e.mu.Lock()
		if !e.removed && e.conv.LastActivityAt.Before(cutoff) {
			s.evictLocked(id, e)
			removed++
		}
		e.mu.Unlock()
	}

	if removed > 0 {
		log.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("inactive conversations evicted")
	}
	return removed
}

// Summary lists every stored user ordered by id.
func (s *Store) Summary() []Summary {
	s.mu.Lock()
	snapshot := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		snapshot = append(snapshot, e)
	}
	s.mu.Unlock()

	out := make([]Summary, 0, len(snapshot))
	for _, e := range snapshot {
		e.mu.Lock()
		if !e.removed {
			out = append(out, e.conv.Summary())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// evictLocked must be called with e.mu held.
func (s *Store) evictLocked(userID string, e *entry) {
	e.removed = true
	s.mu.Lock()
	if cur, ok := s.entries[userID]; ok && cur == e {
		delete(s.entries, userID)
	}
	s.mu.Unlock()
}

func normalizeUser(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", ErrInvalidUser
	}
	return trimmed, nil
}
