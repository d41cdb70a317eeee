package store

import "sync"

// Notifier is an in-process publish/subscribe bus keyed by collection
// name. It is an instance owned by a Store, not process-wide state, so
// multiple stores (e.g. in tests) never cross-notify.
//
// Dispatch is synchronous and best-effort: a panicking subscriber must not
// prevent other subscribers from running and must not propagate into the
// write that triggered the notification. There is no ordering guarantee
// between a notification and a concurrent read; subscribers re-read store
// state rather than relying on a payload.
type Notifier struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func()
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[int]func())}
}

// Subscribe registers fn for the named collection and returns a function
// that removes the subscription. Multiple subscribers per collection are
// supported.
func (n *Notifier) Subscribe(collection string, fn func()) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.subs[collection] == nil {
		n.subs[collection] = make(map[int]func())
	}
	id := n.next
	n.next++
	n.subs[collection][id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs[collection], id)
	}
}

// notify invokes every subscriber for the collection. Callbacks run
// outside the notifier lock so they may subscribe, unsubscribe, or read
// the store without deadlocking.
func (n *Notifier) notify(collection string) {
	n.mu.Lock()
	callbacks := make([]func(), 0, len(n.subs[collection]))
	for _, fn := range n.subs[collection] {
		callbacks = append(callbacks, fn)
	}
	n.mu.Unlock()

	for _, fn := range callbacks {
		func() {
			defer func() {
				// A failing subscriber must not take down the
				// write or the remaining subscribers.
				_ = recover()
			}()
			fn()
		}()
	}
}
