package fluxdb

import "sync"

// notifier is the per-client change-notification registry: table name to
// ordered subscriber list. Entirely in-memory and process-local; cleared
// when the client closes.
//
// Mutations never notify automatically. What "changed" means across a
// composite operation is caller policy, so callers invoke NotifyTable
// explicitly after mutations they want observed.
type notifier struct {
	mu   sync.Mutex
	seq  uint64
	subs map[string][]subscriber
}

type subscriber struct {
	id uint64
	fn func()
}

func newNotifier() *notifier {
	return &notifier{subs: make(map[string][]subscriber)}
}

// subscribe registers fn for the table and returns its unsubscribe
// function. Unsubscribing twice is a no-op.
func (n *notifier) subscribe(table string, fn func()) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	id := n.seq
	n.subs[table] = append(n.subs[table], subscriber{id: id, fn: fn})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.subs[table]
		for i, s := range subs {
			if s.id == id {
				n.subs[table] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// notify synchronously invokes every subscriber of the table in
// registration order, on the calling goroutine. A panicking callback
// propagates to the caller and aborts the remaining invocations for this
// call; subscribers of other tables are never invoked.
func (n *notifier) notify(table string) {
	n.mu.Lock()
	subs := append([]subscriber(nil), n.subs[table]...)
	n.mu.Unlock()
	for _, s := range subs {
		s.fn()
	}
}

// clear drops every registration.
func (n *notifier) clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = make(map[string][]subscriber)
}
