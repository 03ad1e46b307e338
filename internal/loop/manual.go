package loop

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by Advance. It is used by tests
// and by the offline sampler; callbacks run synchronously inside Advance/Flush.
// Only Post may be called from other goroutines.
type Manual struct {
	now    time.Time
	seq    uint64
	timers timerHeap

	mu     sync.Mutex
	posted []func()
}

// NewManual creates a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

type manualTimer struct {
	at      time.Time
	seq     uint64
	fn      func()
	stopped bool
	index   int
}

func (t *manualTimer) Stop() {
	t.stopped = true
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// AfterFunc arms a virtual timer.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Token {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{at: m.now.Add(d), seq: m.seq, fn: fn}
	heap.Push(&m.timers, t)
	return t
}

// Do runs fn and then everything it posted. It must be called from the
// goroutine driving the clock.
func (m *Manual) Do(_ context.Context, fn func()) error {
	fn()
	m.Flush()
	return nil
}

// Post queues fn for the next Flush or Advance.
func (m *Manual) Post(fn func()) {
	m.mu.Lock()
	m.posted = append(m.posted, fn)
	m.mu.Unlock()
}

func (m *Manual) next() (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.posted) == 0 {
		return nil, false
	}
	fn := m.posted[0]
	m.posted[0] = nil
	m.posted = m.posted[1:]
	return fn, true
}

// Flush runs posted callbacks, including any posted while flushing.
func (m *Manual) Flush() {
	for fn, ok := m.next(); ok; fn, ok = m.next() {
		fn()
	}
}

// Advance moves virtual time forward by d, firing due timers in deadline order.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	m.Flush()
	for m.timers.Len() > 0 {
		next := m.timers[0]
		if next.at.After(target) {
			break
		}
		heap.Pop(&m.timers)
		if next.stopped {
			continue
		}
		m.now = next.at
		next.fn()
		m.Flush()
	}
	m.now = target
	m.Flush()
}

// Pending returns the number of armed, non-stopped timers.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

type timerHeap []*manualTimer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*manualTimer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}
