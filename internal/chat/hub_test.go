package chat

import (
	"testing"
	"time"

	"brokerdesk-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-s.C:
		return ev, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}, false
	}
}

func assertEmpty(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case ev := <-s.C:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestPublishRoutesByMailbox(t *testing.T) {
	h := NewHub(4, nil)
	alice := h.Subscribe("alice")
	bob := h.Subscribe("bob")
	admin := h.Subscribe("")

	msg := &models.ChatMessage{Id: "m1", UserId: "alice", Sender: models.SenderUser, Text: "hi"}
	h.Publish(Event{Type: EventMessage, UserId: "alice", Message: msg})

	ev, ok := receive(t, alice)
	require.True(t, ok)
	assert.Equal(t, "m1", ev.Message.Id)

	ev, ok = receive(t, admin)
	require.True(t, ok)
	assert.Equal(t, EventMessage, ev.Type)

	assertEmpty(t, bob)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	h := NewHub(1, nil)
	s := h.Subscribe("u")

	h.Publish(Event{Type: EventRead, UserId: "u", Count: 1})
	h.Publish(Event{Type: EventRead, UserId: "u", Count: 2})

	ev, _ := receive(t, s)
	assert.Equal(t, 1, ev.Count)
	assertEmpty(t, s)
}

func TestCloseSubscription(t *testing.T) {
	h := NewHub(1, nil)
	s := h.Subscribe("u")
	s.Close()
	s.Close()

	_, ok := receive(t, s)
	assert.False(t, ok)

	h.Publish(Event{Type: EventRead, UserId: "u"})
}

func TestHubClose(t *testing.T) {
	h := NewHub(1, nil)
	s := h.Subscribe("")
	h.Close()
	h.Close()

	_, ok := receive(t, s)
	assert.False(t, ok)
	s.Close()

	late := h.Subscribe("u")
	_, ok = receive(t, late)
	assert.False(t, ok)
}
