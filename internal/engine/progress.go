package engine

import "sync"

// progressRegistry fans load progress out to every subscriber. Subscribers
// are invoked without any registry lock held so a slow observer cannot stall
// the load.
type progressRegistry struct {
	mu          sync.Mutex
	subscribers map[int]func(percent int)
	next        int
	latest      int
}

func newProgressRegistry() *progressRegistry {
	return &progressRegistry{subscribers: make(map[int]func(int))}
}

// subscribe registers an observer and immediately replays the latest value so
// late subscribers do not miss the current position.
func (r *progressRegistry) subscribe(fn func(percent int)) (cancel func()) {
	r.mu.Lock()
	id := r.next
	r.next++
	r.subscribers[id] = fn
	latest := r.latest
	r.mu.Unlock()

	fn(latest)
	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

func (r *progressRegistry) publish(percent int) {
	r.mu.Lock()
	r.latest = percent
	fns := make([]func(int), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(percent)
	}
}

func (r *progressRegistry) current() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}
