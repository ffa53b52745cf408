package ws

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Hub рассылает события движка подключённым по WebSocket аккаунтам:
// смена состояния сделки, новая ставка, решение спора.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
}

type message struct {
	account string
	payload []byte
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 32),
	}
}

// Run запускает главный цикл хаба.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.send(msg.account, msg.payload)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Notify отправляет событие конкретному аккаунту. Сообщение следует
// контракту WebSocket API: "type" — имя события, "data" — полезная нагрузка.
func (h *Hub) Notify(account, event string, data any) error {
	payload := map[string]any{
		"type": event,
		"data": data,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}

	h.broadcast <- message{account: account, payload: raw}
	return nil
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.account]; !ok {
		h.clients[client.account] = make(map[*Client]struct{})
	}
	h.clients[client.account][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.clients[client.account]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.clients, client.account)
		}
	}
}

func (h *Hub) send(account string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[account] {
		select {
		case client.send <- payload:
		default:
			// Медленный клиент: буфер переполнен, отключаем.
			go client.Close()
		}
	}
}
