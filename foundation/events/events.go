// Package events fans out ledger events to subscribers such as websocket
// clients. Every event carries a sequence number so a subscriber that falls
// behind can tell which events it missed.
package events

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// SubscriberPrefix marks the events that are forwarded to subscribers.
// Everything else is only logged.
const SubscriberPrefix = "viewer:"

// messageBuffer is the number of events held for a subscriber that isn't
// reading. Events beyond it are dropped for that subscriber only.
const messageBuffer = 100

// Event is a single message delivered to subscribers.
type Event struct {
	Seq     uint64 `json:"seq"`
	Message string `json:"message"`
}

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	mu  sync.Mutex
	seq uint64
	m   map[string]chan Event
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]chan Event),
	}
}

// Handler returns the event handler given to the ledger packages. Every
// event is logged and the ones carrying SubscriberPrefix are sent on.
func (evt *Events) Handler(log *zap.SugaredLogger) func(v string, args ...any) {
	return func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")

		if strings.HasPrefix(s, SubscriberPrefix) {
			evt.Send(s)
		}
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive events.
func (evt *Events) Acquire(id string) <-chan Event {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		ch = make(chan Event, messageBuffer)
		evt.m[id] = ch
	}

	return ch
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Send numbers the message and delivers it to every registered channel.
// Send will not block waiting for a receiver on any given channel. It
// returns the sequence number given to the event.
func (evt *Events) Send(s string) uint64 {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	evt.seq++
	ev := Event{Seq: evt.seq, Message: s}

	for _, ch := range evt.m {
		select {
		case ch <- ev:
		default:
		}
	}

	return ev.Seq
}
