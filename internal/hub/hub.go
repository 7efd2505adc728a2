package hub

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
)

// Subscription filters which events a dashboard session receives. JobType
// narrows to one request table; empty means all. Viewer and Privileged come
// from the authenticated session, never from the client message.
type Subscription struct {
	JobType models.JobType
}

type Client struct {
	ID           string
	Viewer       string
	Privileged   bool
	Send         chan []byte
	Subscription Subscription
}

// Meta describes an outgoing event for subscription matching. Owner is set
// only on viewer-scoped events (new-job alerts); request change events
// leave it empty and reach every session watching the job type.
type Meta struct {
	JobType models.JobType
	Owner   string
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action  string `json:"action"`
	JobType string `json:"job_type"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Broadcast(payload []byte, meta Meta) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if !match(client, meta) {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("hub: drop message for client %s", client.ID)
		}
	}
}

func match(client *Client, meta Meta) bool {
	if client.Subscription.JobType != "" && meta.JobType != client.Subscription.JobType {
		return false
	}
	if meta.Owner != "" && !client.Privileged && meta.Owner != client.Viewer {
		return false
	}
	return true
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
