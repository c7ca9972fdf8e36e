package capture

import (
	"image"
	"sync"
	"time"

	"github.com/ironsheep/obvix/internal/logger"
	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/vision"
)

// Update is published once per processed frame while a capture runs.
type Update struct {
	Feature   session.Feature     `json:"feature"`
	SessionID string              `json:"sessionId"`
	At        time.Time           `json:"at"`
	FPS       float64             `json:"fps"`
	Results   []vision.Result     `json:"results"`
	Events    []session.Detection `json:"events,omitempty"`

	// Overlay is the frame with the feature's drawing applied.
	Overlay *image.RGBA `json:"-"`
}

// Hub fans updates out to subscribers. Slow subscribers miss updates
// rather than stalling the detection loop.
type Hub struct {
	mu      sync.Mutex
	clients map[int]chan *Update
	nextID  int
}

// NewHub creates a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{clients: make(map[int]chan *Update)}
}

// Subscribe adds a client and returns its id and update channel.
func (h *Hub) Subscribe() (int, <-chan *Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan *Update, 2)
	h.clients[id] = ch

	logger.Debug("Hub", "Client #%d subscribed (total clients: %d)", id, len(h.clients))
	return id, ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
		logger.Debug("Hub", "Client #%d unsubscribed (remaining clients: %d)", id, len(h.clients))
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) publish(u *Update) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.clients {
		select {
		case ch <- u:
		default:
		}
	}
}
