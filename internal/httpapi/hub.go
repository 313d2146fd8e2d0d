package httpapi

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// reportEvent is the summary pushed to websocket subscribers when a
// validation completes.
type reportEvent struct {
	RunID         string  `json:"run_id"`
	IndicatorID   string  `json:"indicator_id"`
	OverallPassed bool    `json:"overall_passed"`
	GatesPassed   int     `json:"gates_passed"`
	PassRate      float64 `json:"pass_rate"`
	Summary       string  `json:"summary"`
}

// hub fans report events out to connected websocket clients. Slow or dead
// clients are dropped on write failure.
type hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func newHub() *hub {
	return &hub{conns: make(map[*websocket.Conn]bool)}
}

func (h *hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = true
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[conn] {
		delete(h.conns, conn)
		conn.Close()
	}
}

func (h *hub) broadcast(event reportEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(event); err != nil {
			log.Warn().Err(err).Msg("dropping websocket subscriber")
			delete(h.conns, conn)
			conn.Close()
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}
