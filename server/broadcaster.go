package server

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/rumsystem/nft-bbs-sub001/models"
)

// Message is one event as delivered on a client's SSE stream.
type Message struct {
	Event string
	Data  any
}

type client struct {
	address string
	ch      chan Message
}

// Broadcaster fans committed events out to connected SSE clients.
// Notifications go only to the subscriber whose address matches the
// recipient; all other events are group-wide broadcasts. Delivery is
// best-effort: a full client channel is skipped, a disconnected client is
// expected to re-fetch state via the read API on reconnect.
type Broadcaster struct {
	sync.RWMutex
	clients map[string]client
}

// Constructor
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]client, 10000),
	}
}

// Publish implements the scheduler's fan-out hook. It is called strictly
// after the owning transaction has committed.
func (b *Broadcaster) Publish(groupID string, events []models.Event) {
	b.RLock()
	defer b.RUnlock()

	for _, event := range events {
		if notification, ok := event.(models.NotificationEvent); ok {
			b.sendTo(notification.Notification.Recipient, Message{
				Event: event.EventName(),
				Data:  notification.Notification,
			})
			continue
		}
		b.broadcast(Message{Event: event.EventName(), Data: event})
	}
}

// sendTo delivers a message to every connection subscribed for an address.
// Callers must hold at least the read lock.
func (b *Broadcaster) sendTo(address string, msg Message) {
	for id, c := range b.clients {
		if c.address != address {
			continue
		}
		select {
		case c.ch <- msg: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping event for client: %v", id)
		}
	}
}

func (b *Broadcaster) broadcast(msg Message) {
	for id, c := range b.clients {
		select {
		case c.ch <- msg: // Non-blocking send
		default:
			log.Warnf("Client channel full, skipping event for client: %v", id)
		}
	}
}

// AddClient registers a connection. The address identifies which
// notifications the connection receives and may be empty for
// broadcast-only subscribers.
func (b *Broadcaster) AddClient(key string, address string, ch chan Message) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client{address: address, ch: ch}
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient unregisters a connection and closes its channel.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if c, ok := b.clients[key]; ok { // Check if the client exists
		close(c.ch)            // Safely close the channel
		delete(b.clients, key) // Remove from the map
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, c := range b.clients {
		close(c.ch)
		delete(b.clients, key)
	}
}
