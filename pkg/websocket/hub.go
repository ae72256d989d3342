package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

type frame struct {
	branchID int64
	data     []byte
}

// Hub fans frames out to subscribers filtered by branch. A subscriber whose
// buffer is full is dropped rather than stalling the others.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan frame
	Register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan frame, 64),
		Register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("feed client registered", zap.Int64("actor_id", client.ActorID), zap.Int64("branch_id", client.BranchID))
		case client := <-h.unregister:
			h.drop(client)
		case f := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.BranchID != 0 && client.BranchID != f.branchID {
					continue
				}
				select {
				case client.Send <- f.data:
				default:
					close(client.Send)
					delete(h.clients, client)
					h.logger.Warn("feed client too slow, dropped", zap.Int64("actor_id", client.ActorID))
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
		h.logger.Debug("feed client left", zap.Int64("actor_id", client.ActorID))
	}
}

// Broadcast queues payload for subscribers of branchID and of all branches.
func (h *Hub) Broadcast(ctx context.Context, branchID int64, messageType string, payload interface{}) error {
	data, err := json.Marshal(Envelope{
		Type:      messageType,
		BranchID:  branchID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- frame{branchID: branchID, data: data}:
		return nil
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Join registers client unless the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}
