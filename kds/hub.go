package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/table-ordering/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

type Message struct {
	Event     services.EventType `json:"event"`
	SessionID uint               `json:"session_id,omitempty"`
	Data      interface{}        `json:"data"`
	SentAt    time.Time          `json:"sent_at"`
}

// Client is one staff screen subscribed to a restaurant.
type Client struct {
	RestaurantID uint
	UserID       uint

	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to the staff screens of each restaurant. It implements
// services.Notifier.
type Hub struct {
	log *logrus.Logger

	mu      sync.RWMutex
	clients map[uint]map[*Client]struct{}
}

var _ services.Notifier = (*Hub)(nil)

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[uint]map[*Client]struct{}),
	}
}

// Register subscribes conn to restaurantID and starts its writer.
func (h *Hub) Register(restaurantID, userID uint, conn *websocket.Conn) *Client {
	client := &Client{
		RestaurantID: restaurantID,
		UserID:       userID,
		conn:         conn,
		send:         make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	if h.clients[restaurantID] == nil {
		h.clients[restaurantID] = make(map[*Client]struct{})
	}
	h.clients[restaurantID][client] = struct{}{}
	total := len(h.clients[restaurantID])
	h.mu.Unlock()

	h.log.WithFields(logrus.Fields{
		"restaurant_id": restaurantID,
		"user_id":       userID,
		"clients":       total,
	}).Info("kds client connected")

	go h.writePump(client)
	return client
}

// Unregister drops the client and closes its connection once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.RestaurantID]
	if ok {
		if _, present := conns[client]; present {
			delete(conns, client)
			close(client.send)
		}
		if len(conns) == 0 {
			delete(h.clients, client.RestaurantID)
		}
	}
	h.mu.Unlock()
}

// Serve blocks reading from the client until it disconnects.
func (h *Hub) Serve(client *Client) {
	defer h.Unregister(client)

	client.conn.SetReadLimit(1024)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Publish never blocks: a client whose buffer is full is disconnected.
func (h *Hub) Publish(event services.Event) {
	data, err := json.Marshal(Message{
		Event:     event.Type,
		SessionID: event.SessionID,
		Data:      event.Data,
		SentAt:    time.Now(),
	})
	if err != nil {
		h.log.WithError(err).WithField("event", event.Type).Error("kds marshal failed")
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.clients[event.RestaurantID] {
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.log.WithField("user_id", client.UserID).Warn("kds client too slow, disconnecting")
		h.Unregister(client)
	}
}

func (h *Hub) ClientCount(restaurantID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[restaurantID])
}

func (h *Hub) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case data, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.WithError(err).Debug("kds write failed")
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
