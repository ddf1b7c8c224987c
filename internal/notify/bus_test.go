package notify

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// collector records delivered events.
type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) Deliver(channel string, event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *collector) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	actions := make([]string, 0, len(c.events))
	for _, e := range c.events {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestBusPublish(t *testing.T) {
	bus := NewBus()
	a := &collector{}
	b := &collector{}

	bus.Join("chat_1", a)
	bus.Join("chat_1", b)
	bus.Join("chat_2", a)

	bus.Publish("chat_1", Event{Action: ActionNewMessage})
	bus.Publish("chat_2", Event{Action: ActionMessagesRead})
	bus.Publish("chat_3", Event{Action: ActionLogout}) // no subscribers

	assert.ElementsMatch(t, []string{ActionNewMessage, ActionMessagesRead}, a.actions())
	assert.Equal(t, []string{ActionNewMessage}, b.actions())
}

func TestBusLeave(t *testing.T) {
	bus := NewBus()
	a := &collector{}

	bus.Join("chat_1", a)
	bus.Leave("chat_1", a)
	bus.Publish("chat_1", Event{Action: ActionNewMessage})

	assert.Empty(t, a.actions())
}

func TestBusLeaveAll(t *testing.T) {
	bus := NewBus()
	a := &collector{}
	b := &collector{}

	bus.Join("chat_1", a)
	bus.Join("user_1", a)
	bus.Join("chat_1", b)

	bus.LeaveAll(a)
	bus.Publish("chat_1", Event{Action: ActionNewMessage})
	bus.Publish("user_1", Event{Action: ActionLogout})

	assert.Empty(t, a.actions())
	assert.Equal(t, []string{ActionNewMessage}, b.actions())
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := NewBus()
	a := &collector{}
	bus.Join("chat_1", a)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				bus.Publish("chat_1", Event{Action: ActionNewMessage})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, a.actions(), 1600)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "user_7", UserChannel(7))
	assert.Equal(t, "private_chat_7", PrivateChatChannel(7))
	assert.Equal(t, "chat_7", ChatChannel(7))
	assert.Equal(t, "session_abc", SessionChannel("abc"))
}
