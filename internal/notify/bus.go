package notify

import "sync"

// Bus is the in-process broker. It is the default fan-out when no Redis
// relay is configured, and the local delivery stage under one.
type Bus struct {
	mu       sync.RWMutex
	channels map[string]map[Subscriber]struct{}
}

// NewBus creates an empty in-process broker.
func NewBus() *Bus {
	return &Bus{channels: make(map[string]map[Subscriber]struct{})}
}

// Join subscribes s to a channel.
func (b *Bus) Join(channel string, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.channels[channel]
	if !ok {
		subs = make(map[Subscriber]struct{})
		b.channels[channel] = subs
	}
	subs[s] = struct{}{}
}

// Leave unsubscribes s from a channel.
func (b *Bus) Leave(channel string, s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.channels[channel]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.channels, channel)
		}
	}
}

// LeaveAll removes s from every channel, used on socket disconnect.
func (b *Bus) LeaveAll(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, subs := range b.channels {
		delete(subs, s)
		if len(subs) == 0 {
			delete(b.channels, channel)
		}
	}
}

// Publish delivers an event to every subscriber of the channel. Delivery
// happens on the caller's goroutine; subscribers must not block.
func (b *Bus) Publish(channel string, event Event) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.channels[channel]))
	for s := range b.channels[channel] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.Deliver(channel, event)
	}
}
