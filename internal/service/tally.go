package service

import (
	"sync"
)

// Tally is an in-memory position id -> vote count map shared between the
// caller and the vote service. Persisted transfers copy the store's counters
// into it; mock transfers live in it entirely.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int
	// mock ballots keyed by user+issue, only for ids outside the store's format
	ballots map[string]string
}

func NewTally(counts map[string]int) *Tally {
	t := &Tally{counts: map[string]int{}, ballots: map[string]string{}}
	for id, n := range counts {
		t.counts[id] = n
	}
	return t
}

// Set overwrites one counter.
func (t *Tally) Set(positionID string, count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if count < 0 {
		count = 0
	}
	t.counts[positionID] = count
}

// Count returns the counter for positionID.
func (t *Tally) Count(positionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[positionID]
}

// Snapshot returns a copy of every counter.
func (t *Tally) Snapshot() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.counts))
	for id, n := range t.counts {
		out[id] = n
	}
	return out
}

func ballotKey(userID, issueID string) string {
	return userID + "\x00" + issueID
}

// moveMock applies a mock transfer under one lock. It returns the previous
// position (empty when there was none) and the position now held. A repeat
// vote is withdrawn when withdrawOnRepeat is set, otherwise nothing changes
// and repeated is true.
func (t *Tally) moveMock(userID, issueID string, target *string, withdrawOnRepeat bool) (previous, current string, repeated bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := ballotKey(userID, issueID)
	previous = t.ballots[key]

	if target != nil && *target == previous {
		if !withdrawOnRepeat {
			return previous, previous, true
		}
		target = nil
	}

	if previous != "" {
		if t.counts[previous] > 0 {
			t.counts[previous]--
		}
		delete(t.ballots, key)
	}

	if target != nil {
		t.counts[*target]++
		t.ballots[key] = *target
		current = *target
	}

	return previous, current, false
}

func (t *Tally) mockBallot(userID, issueID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.ballots[ballotKey(userID, issueID)]
	return id, ok
}
