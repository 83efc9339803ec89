package websocket

import (
	"context"

	"github.com/rs/zerolog/log"
)

type keyedMessage struct {
	key     string
	message []byte
}

type directMessage struct {
	client  *Client
	message []byte
}

// Hub maintains the set of active clients and fans messages out to them.
// All state is owned by the Run loop.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Messages for every connected client.
	broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Messages for the subscribers of one key.
	keyed chan keyedMessage

	// Replies to a single client.
	direct chan directMessage

	// Closed when Run returns.
	done chan struct{}

	// A map of subscription keys (e.g. "family:{id}") to the clients listening on them.
	subscriptions map[string]map[*Client]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:     make(chan []byte, 64),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		keyed:         make(chan keyedMessage, 256),
		direct:        make(chan directMessage, 64),
		done:          make(chan struct{}),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			if client.Key != "" {
				h.addSubscription(client, client.Key)
			}
			log.Info().Int("total_clients", len(h.clients)).Str("key", client.Key).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, message)
			}
		case km := <-h.keyed:
			for client := range h.subscriptions[km.key] {
				h.deliver(client, km.message)
			}
		case dm := <-h.direct:
			if h.clients[dm.client] {
				h.deliver(dm.client, dm.message)
			}
		}
	}
}

// BroadcastAll queues a message for every connected client without blocking.
func (h *Hub) BroadcastAll(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		log.Warn().Msg("Hub queue full, dropping broadcast")
	}
}

// BroadcastTo queues a message for every client subscribed to key. It never
// blocks; when the queue is full the message is dropped.
func (h *Hub) BroadcastTo(key string, message []byte) {
	select {
	case h.keyed <- keyedMessage{key: key, message: message}:
	default:
		log.Warn().Str("key", key).Msg("Hub queue full, dropping message")
	}
}

// unregister removes a client unless the hub has already stopped.
func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// SendTo queues a message for one client. Messages for clients that have
// already gone are discarded.
func (h *Hub) SendTo(client *Client, message []byte) {
	select {
	case h.direct <- directMessage{client: client, message: message}:
	default:
		log.Warn().Str("key", client.Key).Msg("Hub queue full, dropping reply")
	}
}

// deliver drops slow clients whose send buffer is full.
func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.Send)
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client, key string) {
	if h.subscriptions[key] == nil {
		h.subscriptions[key] = make(map[*Client]bool)
	}
	h.subscriptions[key][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for key, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, key)
			}
		}
	}
}
