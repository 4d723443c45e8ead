package queue

import (
	"sort"
	"sync"
	"time"

	"soundarr/internal/domain"
)

// DefaultPriority is assigned to tenants created without an explicit one.
const DefaultPriority = 100

type tenantState[T any] struct {
	queue      *Bounded[T]
	createdAt  time.Time
	lastServed time.Time
	priority   int
}

// served is the fairness timestamp: last time this tenant was handed an
// item, falling back to creation time before the first serve.
func (s *tenantState[T]) served() time.Time {
	if s.lastServed.IsZero() {
		return s.createdAt
	}
	return s.lastServed
}

// Fair spreads work across tenants: highest priority first, then the least
// recently served tenant, then tenant id ascending so exact ties stay
// deterministic. A tenant is removed as soon as its queue empties.
type Fair[T any] struct {
	mu      sync.Mutex
	tenants map[string]*tenantState[T]
	perMax  int
	now     func() time.Time
}

func NewFair[T any](perTenantMax int) *Fair[T] {
	return &Fair[T]{
		tenants: make(map[string]*tenantState[T]),
		perMax:  perTenantMax,
		now:     time.Now,
	}
}

// Put enqueues without specifying a priority: an existing tenant keeps the
// priority it already has, a new one starts at the default.
func (f *Fair[T]) Put(tenant string, item T) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.tenants[tenant]
	if !ok {
		state = f.createTenant(tenant, DefaultPriority)
	}
	return state.queue.Put(item)
}

func (f *Fair[T]) PutPriority(tenant string, item T, priority int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.tenants[tenant]
	if !ok {
		state = f.createTenant(tenant, priority)
	} else {
		state.priority = priority
	}
	return state.queue.Put(item)
}

func (f *Fair[T]) createTenant(tenant string, priority int) *tenantState[T] {
	state := &tenantState[T]{
		queue:     NewBounded[T](f.perMax),
		createdAt: f.now(),
		priority:  priority,
	}
	f.tenants[tenant] = state
	return state
}

// GetNext returns the next item together with the tenant it came from.
func (f *Fair[T]) GetNext() (T, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	best := ""
	for _, tenant := range f.sortedTenants() {
		state := f.tenants[tenant]
		if state.queue.Size() == 0 {
			continue
		}
		if best == "" || f.beats(state, f.tenants[best]) {
			best = tenant
		}
	}
	if best == "" {
		return zero, "", domain.ErrQueueEmpty
	}

	state := f.tenants[best]
	item, err := state.queue.Get()
	if err != nil {
		return zero, "", err
	}
	state.lastServed = f.now()
	if state.queue.Size() == 0 {
		delete(f.tenants, best)
	}
	return item, best, nil
}

// beats reports whether a should be served before b. Priority dominates
// recency; within equal priority the oldest-served tenant wins. Iteration
// over sorted ids makes the final tie fall to the smaller tenant id.
func (f *Fair[T]) beats(a, b *tenantState[T]) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.served().Before(b.served())
}

func (f *Fair[T]) sortedTenants() []string {
	ids := make([]string, 0, len(f.tenants))
	for id := range f.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Block stops a tenant's queue from accepting new items. Unknown tenants
// report false instead of failing.
func (f *Fair[T]) Block(tenant string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.tenants[tenant]
	if !ok {
		return false
	}
	state.queue.Block()
	return true
}

// Clear drains and removes a tenant's queue, returning its contents.
func (f *Fair[T]) Clear(tenant string) []T {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.tenants[tenant]
	if !ok {
		return nil
	}
	items := state.queue.DrainAll()
	delete(f.tenants, tenant)
	return items
}

func (f *Fair[T]) Size(tenant string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.tenants[tenant]
	if !ok {
		return 0
	}
	return state.queue.Size()
}

// TotalSize is the number of queued items across every tenant.
func (f *Fair[T]) TotalSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	total := 0
	for _, state := range f.tenants {
		total += state.queue.Size()
	}
	return total
}

func (f *Fair[T]) Tenants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedTenants()
}

// Shuffle randomizes the order of a tenant's queued items.
func (f *Fair[T]) Shuffle(tenant string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.tenants[tenant]
	if !ok {
		return false
	}
	state.queue.Shuffle()
	return true
}

// RemoveAt removes the item at 1-based position i from a tenant's queue.
func (f *Fair[T]) RemoveAt(tenant string, i int) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero T
	state, ok := f.tenants[tenant]
	if !ok {
		return zero, domain.ErrQueueEmpty
	}
	item, err := state.queue.RemoveAt(i)
	if err != nil {
		return zero, err
	}
	if state.queue.Size() == 0 {
		delete(f.tenants, tenant)
	}
	return item, nil
}

// BumpToFront moves the item at 1-based position i to the head of a
// tenant's queue.
func (f *Fair[T]) BumpToFront(tenant string, i int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.tenants[tenant]
	if !ok {
		return domain.ErrQueueEmpty
	}
	return state.queue.BumpToFront(i)
}
