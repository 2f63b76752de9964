package realtime

import "sync"

// notifier delivers connectivity changes in the order they were queued. A
// single drain goroutine runs while the queue is non-empty, so observers may
// call back into the Session without deadlocking it.
type notifier struct {
	fn func(connected bool)

	mu      sync.Mutex
	queue   []bool
	running bool
}

func newNotifier(fn func(connected bool)) *notifier {
	return &notifier{fn: fn}
}

func (n *notifier) push(connected bool) {
	if n.fn == nil {
		return
	}

	n.mu.Lock()
	n.queue = append(n.queue, connected)
	if n.running {
		n.mu.Unlock()
		return
	}
	n.running = true
	n.mu.Unlock()

	go n.drain()
}

func (n *notifier) drain() {
	for {
		n.mu.Lock()
		if len(n.queue) == 0 {
			n.running = false
			n.mu.Unlock()
			return
		}
		connected := n.queue[0]
		n.queue = n.queue[1:]
		n.mu.Unlock()

		n.fn(connected)
	}
}
