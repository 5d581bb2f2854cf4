package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"ai-animator-be/internal/pkg/logger"
	"ai-animator-be/internal/repository/memory"
	"ai-animator-be/pkg/store"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventSnapshot is sent once on join so a late observer starts from the
// current session state before receiving deltas.
const EventSnapshot = "session_snapshot"

type Hub struct {
	// Registered clients map: session ID -> observers of that session
	clients map[string][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	subscriber  message.Subscriber
	topicName   string
	sessionRepo memory.ISessionRepository

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(subscriber message.Subscriber, topicName string, sessionRepo memory.ISessionRepository, log logger.ILogger) *Hub {
	return &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[string][]*Client),
		subscriber:  subscriber,
		topicName:   topicName,
		sessionRepo: sessionRepo,
		logger:      log,
	}
}

func (h *Hub) Run() {
	go h.consumeUpdates()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Observer registered", map[string]interface{}{"session_id": client.SessionID})
			h.sendSnapshot(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						// Send stays open: the fan-out goroutine may hold a
						// copy of the client list and still push to it. The
						// done channel is the only shutdown signal.
						client.CloseSoon()
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Last observer left session", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// sendSnapshot delivers the current state as the first message of the stream.
// If the session is already fully terminal the observer gets the snapshot and
// the stream ends right after.
func (h *Hub) sendSnapshot(client *Client) {
	session, err := h.sessionRepo.Get(client.SessionID)
	if err != nil {
		h.logger.Warn("Hub", "Snapshot for unknown session", map[string]interface{}{"session_id": client.SessionID})
		h.deliver(client, h.encode(EventSnapshot, nil, client.SessionID), true)
		return
	}
	h.deliver(client, h.encode(EventSnapshot, session, session.ID), session.FullyTerminal())
}

// consumeUpdates fans the ordered update stream out to the observers of the
// session each event belongs to.
func (h *Hub) consumeUpdates() {
	messages, err := h.subscriber.Subscribe(context.Background(), h.topicName)
	if err != nil {
		h.logger.Error("Hub", "Failed to subscribe to session updates", map[string]interface{}{"error": err.Error()})
		return
	}

	for msg := range messages {
		var event store.UpdateEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil {
			h.logger.Warn("Hub", "Dropped malformed update event", map[string]interface{}{"error": err.Error()})
			msg.Ack()
			continue
		}
		msg.Ack()

		h.mu.RLock()
		clients := append([]*Client(nil), h.clients[event.SessionID]...)
		h.mu.RUnlock()
		if len(clients) == 0 {
			continue
		}

		final := event.Snapshot != nil && event.Snapshot.FullyTerminal()
		for _, client := range clients {
			h.deliver(client, msg.Payload, final)
		}
	}
}

// deliver pushes one message to a client; closeAfter ends the stream once the
// message is on the wire. A full send buffer drops the observer.
func (h *Hub) deliver(client *Client, payload []byte, closeAfter bool) {
	select {
	case client.Send <- payload:
		if closeAfter {
			client.CloseSoon()
		}
	default:
		h.logger.Warn("Hub", "Observer send buffer full, dropping connection", map[string]interface{}{"session_id": client.SessionID})
		go func() { h.unregister <- client }()
	}
}

func (h *Hub) encode(eventType string, snapshot *store.Session, sessionID string) []byte {
	data, _ := json.Marshal(store.UpdateEvent{
		Type:      eventType,
		SessionID: sessionID,
		Snapshot:  snapshot,
		Timestamp: time.Now().UTC(),
	})
	return data
}
