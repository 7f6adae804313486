// Package watch holds change subscribers for the local stores.
package watch

import "sync"

type entry[T any] struct {
	id int
	fn func(T)
}

// List is a set of callbacks. The zero value is ready to use.
type List[T any] struct {
	mu      sync.Mutex
	nextID  int
	entries []entry[T]
}

// Add registers fn and returns a func that removes it.
func (l *List[T]) Add(fn func(T)) (cancel func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, entry[T]{id: id, fn: fn})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// Notify calls every registered callback in registration order.
// Callbacks run on the caller's goroutine without l's lock held.
func (l *List[T]) Notify(v T) {
	l.mu.Lock()
	fns := make([]func(T), len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
