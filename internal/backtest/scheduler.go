// Package backtest implements the deterministic event-driven simulation
// core: the chronological event scheduler, the order fill engine, and the
// portfolio tracker.
package backtest

import (
	"container/heap"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

// step is one unit of work yielded by the scheduler: either a market-data
// event from the main stream or a delayed order submission.
type step struct {
	at    time.Time
	event *domain.MarketEvent
	order *domain.Order
}

// scheduledOrder is an order submission delayed by simulated latency. seq
// breaks timestamp ties so heap ordering is deterministic.
type scheduledOrder struct {
	at    time.Time
	seq   int64
	order *domain.Order
}

type submissionHeap []scheduledOrder

func (h submissionHeap) Len() int { return len(h) }

func (h submissionHeap) Less(i, j int) bool {
	if !h[i].at.Equal(h[j].at) {
		return h[i].at.Before(h[j].at)
	}
	return h[i].seq < h[j].seq
}

func (h submissionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *submissionHeap) Push(x any) { *h = append(*h, x.(scheduledOrder)) }

func (h *submissionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler merges an already-sorted main stream of market-data events with
// a dynamically growing set of scheduled future events, always yielding the
// globally earliest one. Before the main-stream head it drains every
// scheduled event whose timestamp is not after the next main timestamp, so
// a zero-latency submission lands before the book update that follows it.
//
// Time only moves forward: a step earlier than the current time is a
// programming error and aborts the run.
type Scheduler struct {
	events  []domain.MarketEvent
	idx     int
	pending submissionHeap
	seq     int64
	now     time.Time
	started bool
}

// NewScheduler creates a scheduler over a chronologically sorted event
// stream.
func NewScheduler(events []domain.MarketEvent) *Scheduler {
	return &Scheduler{events: events}
}

// Schedule enqueues a delayed order submission.
func (s *Scheduler) Schedule(at time.Time, order *domain.Order) {
	s.seq++
	heap.Push(&s.pending, scheduledOrder{at: at, seq: s.seq, order: order})
}

// Now returns the timestamp of the most recently yielded step.
func (s *Scheduler) Now() time.Time { return s.now }

// Next yields the earliest available step. The second return value is false
// when both the main stream and the scheduled set are exhausted. A backward
// step returns domain.ErrTimeReversal.
func (s *Scheduler) Next() (step, bool, error) {
	var st step
	switch {
	case len(s.pending) > 0 && (s.idx >= len(s.events) || !s.pending[0].at.After(s.events[s.idx].Timestamp)):
		sub := heap.Pop(&s.pending).(scheduledOrder)
		st = step{at: sub.at, order: sub.order}
	case s.idx < len(s.events):
		ev := s.events[s.idx]
		s.idx++
		st = step{at: ev.Timestamp, event: &ev}
	default:
		return step{}, false, nil
	}

	if s.started && st.at.Before(s.now) {
		return step{}, false, fmt.Errorf(
			"scheduler: step at %s is before current time %s: %w",
			st.at.Format(time.RFC3339Nano), s.now.Format(time.RFC3339Nano), domain.ErrTimeReversal,
		)
	}
	s.now = st.at
	s.started = true
	return st, true, nil
}
