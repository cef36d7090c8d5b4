// RetailRec - Retail Purchase Recommendations from Transaction History
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/retailrec

package algorithms

import (
	"sync"
	"time"
)

// State is a model's position in its lifecycle.
type State int

// Model states. A model starts Untrained and becomes Trained after the first
// successful Train or LoadState; a failed retrain leaves it as it was.
const (
	StateUntrained State = iota
	StateTrained
)

func (s State) String() string {
	if s == StateTrained {
		return "trained"
	}
	return "untrained"
}

// lifecycle holds the state, retrain counter and lock of a model. Factor
// data is guarded by the same lock.
type lifecycle struct {
	name          string
	state         State
	version       int
	lastTrainedAt time.Time
	mu            sync.RWMutex
}

// Name returns the model identifier.
func (l *lifecycle) Name() string {
	return l.name
}

// LifecycleState returns the current lifecycle state.
func (l *lifecycle) LifecycleState() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsTrained reports whether the model can answer queries.
func (l *lifecycle) IsTrained() bool {
	return l.LifecycleState() == StateTrained
}

// Version counts successful trainings of this instance.
func (l *lifecycle) Version() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// LastTrainedAt returns when the current factors were installed.
func (l *lifecycle) LastTrainedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastTrainedAt
}

// markTrained moves to StateTrained. mu must be held for writing.
func (l *lifecycle) markTrained(at time.Time) {
	l.state = StateTrained
	l.version++
	l.lastTrainedAt = at
}
