package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumsystem/nft-bbs-sub001/models"
)

func receive(t *testing.T, ch chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestBroadcasterBroadcast(t *testing.T) {
	b := NewBroadcaster()
	defer b.Shutdown()

	ch1 := make(chan Message, 10)
	ch2 := make(chan Message, 10)
	b.AddClient("k1", "alice", ch1)
	b.AddClient("k2", "bob", ch2)

	event := models.PostCreatedEvent{Post: models.Post{ID: "p1", GroupID: "g1"}}
	b.Publish("g1", []models.Event{event})

	msg := receive(t, ch1)
	assert.Equal(t, "post-created", msg.Event)
	msg = receive(t, ch2)
	assert.Equal(t, "post-created", msg.Event)
}

func TestBroadcasterNotificationIsTargeted(t *testing.T) {
	b := NewBroadcaster()
	defer b.Shutdown()

	forAlice := make(chan Message, 10)
	forBob := make(chan Message, 10)
	b.AddClient("k1", "alice", forAlice)
	b.AddClient("k2", "bob", forBob)

	notification := models.Notification{GroupID: "g1", Recipient: "alice", Sender: "bob"}
	b.Publish("g1", []models.Event{models.NotificationEvent{Notification: notification}})

	msg := receive(t, forAlice)
	assert.Equal(t, "notification", msg.Event)
	delivered, ok := msg.Data.(models.Notification)
	require.True(t, ok)
	assert.Equal(t, "alice", delivered.Recipient)

	select {
	case msg := <-forBob:
		t.Fatalf("unexpected message for other client: %v", msg)
	default:
	}
}

func TestBroadcasterFullChannelSkipped(t *testing.T) {
	b := NewBroadcaster()
	defer b.Shutdown()

	full := make(chan Message) // Unbuffered, nobody reading
	b.AddClient("k1", "alice", full)

	done := make(chan struct{})
	go func() {
		b.Publish("g1", []models.Event{models.PostCreatedEvent{Post: models.Post{ID: "p1"}}})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full client channel")
	}
}

func TestBroadcasterRemoveClientClosesChannel(t *testing.T) {
	b := NewBroadcaster()

	ch := make(chan Message, 10)
	b.AddClient("k1", "alice", ch)
	b.RemoveClient("k1")

	_, open := <-ch
	assert.False(t, open)

	// Removing an unknown key is a no-op
	b.RemoveClient("nope")
}

func TestBroadcasterShutdownClosesAll(t *testing.T) {
	b := NewBroadcaster()

	ch1 := make(chan Message, 10)
	ch2 := make(chan Message, 10)
	b.AddClient("k1", "alice", ch1)
	b.AddClient("k2", "bob", ch2)

	b.Shutdown()

	_, open := <-ch1
	assert.False(t, open)
	_, open = <-ch2
	assert.False(t, open)
}
