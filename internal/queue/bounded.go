package queue

import (
	"math/rand"
	"sync"

	"soundarr/internal/domain"
)

// Bounded is a fixed-capacity FIFO. Put fails fast when full or blocked;
// Get and DrainAll keep working while blocked so shutdown can drain
// in-flight work without admitting more.
type Bounded[T any] struct {
	mu      sync.Mutex
	items   []T
	max     int
	blocked bool
}

func NewBounded[T any](max int) *Bounded[T] {
	return &Bounded[T]{max: max}
}

func (q *Bounded[T]) Put(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.blocked {
		return domain.ErrQueueBlocked
	}
	if len(q.items) >= q.max {
		return domain.ErrQueueFull
	}
	q.items = append(q.items, item)
	return nil
}

func (q *Bounded[T]) Get() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, domain.ErrQueueEmpty
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, nil
}

func (q *Bounded[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Bounded[T]) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()

	rand.Shuffle(len(q.items), func(i, j int) {
		q.items[i], q.items[j] = q.items[j], q.items[i]
	})
}

// RemoveAt removes and returns the item at 1-based position i.
func (q *Bounded[T]) RemoveAt(i int) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if i < 1 || i > len(q.items) {
		return zero, domain.ErrBadIndex
	}
	item := q.items[i-1]
	copy(q.items[i-1:], q.items[i:])
	last := len(q.items) - 1
	q.items[last] = zero
	q.items = q.items[:last]
	return item, nil
}

// BumpToFront moves the item at 1-based position i to the head of the queue.
func (q *Bounded[T]) BumpToFront(i int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i < 1 || i > len(q.items) {
		return domain.ErrBadIndex
	}
	item := q.items[i-1]
	copy(q.items[1:i], q.items[:i-1])
	q.items[0] = item
	return nil
}

// DrainAll atomically empties the queue and returns its items in order.
func (q *Bounded[T]) DrainAll() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

// Block rejects further Puts until Unblock. Drains are unaffected.
func (q *Bounded[T]) Block() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.blocked = true
}

func (q *Bounded[T]) Unblock() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.blocked = false
}

func (q *Bounded[T]) Blocked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.blocked
}
