// Package result collects concurrently produced query outcomes into
// deterministic, input-ordered success and failure sequences.
//
// The aggregator uses a pre-sized slot arena indexed by input position.
// Every position is written at most once and by exactly one worker, so the
// hot path needs no locking; unresolved slots are compacted out at finalize
// time.
package result

import (
	"errors"
	"fmt"
	"sync/atomic"
)

var (
	// ErrSlotOutOfRange indicates an outcome position outside the arena.
	ErrSlotOutOfRange = errors.New("outcome position out of range")

	// ErrSlotAlreadyFilled indicates a second outcome for the same position.
	ErrSlotAlreadyFilled = errors.New("outcome slot already filled")

	// ErrFinalized indicates a write after the set was frozen.
	ErrFinalized = errors.New("result set already finalized")
)

// Outcome is the tagged result of processing one work item.
// Exactly one of Payload and ErrDesc is meaningful: Payload for successes,
// ErrDesc for failures.
type Outcome struct {
	Identifier string
	Payload    map[string]any
	ErrDesc    string

	failed bool
}

// Success builds a success outcome carrying the decoded status payload.
func Success(identifier string, payload map[string]any) Outcome {
	return Outcome{Identifier: identifier, Payload: payload}
}

// Failure builds a failure outcome carrying a human-readable description.
func Failure(identifier string, desc string) Outcome {
	return Outcome{Identifier: identifier, ErrDesc: desc, failed: true}
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.failed
}

type slot struct {
	filled  atomic.Bool
	outcome Outcome
}

// Set is the aggregation arena for one batch run. Workers record outcomes
// into their own slots concurrently; Finalize freezes the set and partitions
// it into ordered sequences.
type Set struct {
	slots     []slot
	resolved  atomic.Int64
	finalized atomic.Bool
}

// NewSet creates an arena with n slots, one per loaded work item.
func NewSet(n int) *Set {
	return &Set{slots: make([]slot, n)}
}

// Size returns the number of slots in the arena.
func (s *Set) Size() int {
	return len(s.slots)
}

// Resolved returns how many outcomes have been recorded so far.
func (s *Set) Resolved() int {
	return int(s.resolved.Load())
}

// Record stores the outcome for the work item at pos.
// Each position accepts exactly one outcome; a second write is rejected so
// no work item can be counted twice.
func (s *Set) Record(pos int, o Outcome) error {
	if s.finalized.Load() {
		return ErrFinalized
	}
	if pos < 0 || pos >= len(s.slots) {
		return fmt.Errorf("%w: %d (size %d)", ErrSlotOutOfRange, pos, len(s.slots))
	}
	if !s.slots[pos].filled.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %d", ErrSlotAlreadyFilled, pos)
	}
	s.slots[pos].outcome = o
	s.resolved.Add(1)
	return nil
}

// Final holds the frozen, input-ordered sequences of a finished batch.
type Final struct {
	// Successes and Failures are each ordered by original input position.
	Successes []Outcome
	Failures  []Outcome

	// Total is the number of slots the arena was created with.
	Total int

	// Unresolved is the number of slots left empty. Zero after a normal
	// drain; non-zero only for interrupted runs, which still flush every
	// outcome that was received.
	Unresolved int
}

// Finalize freezes the set and compacts the arena into ordered sequences.
// After Finalize, Record rejects further writes.
func (s *Set) Finalize() *Final {
	s.finalized.Store(true)

	final := &Final{Total: len(s.slots)}
	for i := range s.slots {
		if !s.slots[i].filled.Load() {
			final.Unresolved++
			continue
		}
		o := s.slots[i].outcome
		if o.Failed() {
			final.Failures = append(final.Failures, o)
		} else {
			final.Successes = append(final.Successes, o)
		}
	}
	return final
}
