// Package traceserver streams BlockEmitted events captured during
// emit_line_e to subscribers over a WebSocket, for offline profiling of
// the translator itself. It is purely observational: nothing in linee
// or its collaborators imports this package.
package traceserver

import "sync"

// BlockEmitted is one translated-block record: the guest PC the block
// started at, how many host words were emitted, and the CCR masks the
// dispatch table reported for the opcode that drove the emission.
type BlockEmitted struct {
	GuestPC   uint32 `json:"guestPC"`
	Opcode    uint16 `json:"opcode"`
	HostWords int    `json:"hostWords"`
	Needs     uint8  `json:"needs"`
	Sets      uint8  `json:"sets"`
}

// Subscription is one client's live feed of BlockEmitted events.
type Subscription struct {
	Channel chan BlockEmitted
}

// Broadcaster fans a stream of BlockEmitted events out to every
// subscriber, grounded on the teacher's WebSocket broadcaster: a single
// goroutine owns the subscriber set so Subscribe/Unsubscribe/Publish
// never need their own locking beyond the channel handoff.
type Broadcaster struct {
	mu            sync.RWMutex
	subscriptions map[*Subscription]bool
	publish       chan BlockEmitted
	register      chan *Subscription
	unregister    chan *Subscription
	done          chan struct{}
}

// NewBroadcaster creates and starts a broadcaster.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{
		subscriptions: make(map[*Subscription]bool),
		publish:       make(chan BlockEmitted, 256),
		register:      make(chan *Subscription),
		unregister:    make(chan *Subscription),
		done:          make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broadcaster) run() {
	for {
		select {
		case sub := <-b.register:
			b.mu.Lock()
			b.subscriptions[sub] = true
			b.mu.Unlock()

		case sub := <-b.unregister:
			b.mu.Lock()
			if b.subscriptions[sub] {
				delete(b.subscriptions, sub)
				close(sub.Channel)
			}
			b.mu.Unlock()

		case ev := <-b.publish:
			b.mu.RLock()
			for sub := range b.subscriptions {
				select {
				case sub.Channel <- ev:
				default:
					// Slow client: drop the event rather than block the
					// translator's trace emission.
				}
			}
			b.mu.RUnlock()

		case <-b.done:
			b.mu.Lock()
			for sub := range b.subscriptions {
				close(sub.Channel)
			}
			b.subscriptions = make(map[*Subscription]bool)
			b.mu.Unlock()
			return
		}
	}
}

// Subscribe registers a new subscriber and returns its feed.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{Channel: make(chan BlockEmitted, 64)}
	b.register <- sub
	return sub
}

// Unsubscribe removes a subscriber and closes its feed.
func (b *Broadcaster) Unsubscribe(sub *Subscription) {
	b.unregister <- sub
}

// Publish broadcasts ev to every current subscriber.
func (b *Broadcaster) Publish(ev BlockEmitted) {
	select {
	case b.publish <- ev:
	default:
		// Publish buffer full: drop rather than stall the caller.
	}
}

// Close stops the broadcaster and disconnects every subscriber.
func (b *Broadcaster) Close() {
	close(b.done)
}
