/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package state

import (
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// State is the live playback position for one channel. It exists only in
// memory and starts fresh after a restart.
type State struct {
	// Cursor indexes the active block's content set in sequential mode.
	Cursor int

	// SeriesCursors tracks the next episode index per series id.
	SeriesCursors map[string]int

	// InBreak and BreakServed drive the commercial break machine.
	InBreak     bool
	BreakServed int

	// LastBreakCheck is the last instant ordinary content was served.
	// Break entry is measured against it; the zero value means no
	// ordinary content has played yet and no break can trigger.
	LastBreakCheck time.Time

	// PreRollDue is set by an explicit advance and cleared once a
	// pre-roll has been served or suppressed.
	PreRollDue bool

	// CurrentItemID and CurrentSince identify the ordinary item last
	// served and the instant it first became current.
	CurrentItemID string
	CurrentSince  time.Time

	// Rand is the channel's private random source, used for shuffle,
	// random selection and commercial draws.
	Rand *rand.Rand
}

// New creates an empty channel state with its own random source.
func New(seed int64) *State {
	return &State{
		SeriesCursors: make(map[string]int),
		Rand:          rand.New(rand.NewSource(seed)),
	}
}

type slot struct {
	mu sync.Mutex
	st *State
}

// Store maps channel ids to playback state. Every channel has its own lock
// so evaluate and advance calls on the same channel are serialized while
// distinct channels proceed concurrently.
type Store struct {
	mu       sync.RWMutex
	slots    map[string]*slot
	seedBase int64
}

// NewStore creates a state store. A zero seedBase derives seeds from the
// wall clock; any other value makes per-channel randomness reproducible.
func NewStore(seedBase int64) *Store {
	return &Store{slots: make(map[string]*slot), seedBase: seedBase}
}

// WithState runs fn with the channel's state held under its lock, creating
// the state on first use.
func (s *Store) WithState(channelID string, fn func(*State)) {
	sl := s.slotFor(channelID, true)
	sl.mu.Lock()
	defer sl.mu.Unlock()
	fn(sl.st)
}

// WithExisting runs fn only when the channel already has state and reports
// whether it did. It never creates state.
func (s *Store) WithExisting(channelID string, fn func(*State)) bool {
	sl := s.slotFor(channelID, false)
	if sl == nil {
		return false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	fn(sl.st)
	return true
}

// Reset drops the channel's state so the next evaluation starts fresh.
func (s *Store) Reset(channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, channelID)
}

// Size returns the number of channels currently tracked.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

func (s *Store) slotFor(channelID string, create bool) *slot {
	s.mu.RLock()
	sl, ok := s.slots[channelID]
	s.mu.RUnlock()
	if ok || !create {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.slots[channelID]; ok {
		return sl
	}
	sl = &slot{st: New(s.seedFor(channelID))}
	s.slots[channelID] = sl
	return sl
}

func (s *Store) seedFor(channelID string) int64 {
	base := s.seedBase
	if base == 0 {
		base = time.Now().UnixNano()
	}
	h := fnv.New64a()
	h.Write([]byte(channelID))
	return base ^ int64(h.Sum64())
}
