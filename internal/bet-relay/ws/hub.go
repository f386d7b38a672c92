package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/radieske/ethbet-relay/pkg/contracts/events"
)

// client serializa escritas: o gorilla aceita um único escritor por conexão
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
	// vazio = recebe tudo
	address string
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub mantém as conexões abertas e repassa os eventos de ciclo de vida
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]*client
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		clients:  make(map[*websocket.Conn]*client),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Sem subscribe o cliente recebe todos os eventos.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[conn] = c
	h.mu.Unlock()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			c.address = strings.ToLower(msg.Address)
			h.mu.Unlock()
		case "unsubscribe":
			h.mu.Lock()
			c.address = ""
			h.mu.Unlock()
		case "ping":
			b, _ := json.Marshal(map[string]string{"type": "pong"})
			_ = c.write(b)
		}
	}

	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

// Broadcast envia o evento a todo cliente sem filtro ou cujo endereço participa da aposta
func (h *Hub) Broadcast(e events.BetLifecycle) {
	involved := map[string]struct{}{}
	for _, a := range e.Addresses() {
		involved[strings.ToLower(a)] = struct{}{}
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		if _, ok := involved[c.address]; c.address == "" || ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, _ := json.Marshal(e)
	for _, c := range targets {
		_ = c.write(b)
	}
}

// Clients conta as conexões abertas
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
