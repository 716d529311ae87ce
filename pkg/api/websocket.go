package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/tcmartin/claimflow/pkg/workflow"
)

// WebSocketManager streams per-instance event logs to connected clients.
// A client receives the full log on connect, then every newly appended
// event as the instance progresses.
type WebSocketManager struct {
	upgrader     websocket.Upgrader
	engine       *workflow.Engine
	pollInterval time.Duration
}

// NewWebSocketManager creates a new WebSocket manager
func NewWebSocketManager(engine *workflow.Engine) *WebSocketManager {
	return &WebSocketManager{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from any origin for now
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		engine:       engine,
		pollInterval: time.Second,
	}
}

// handleWorkflowEvents upgrades the connection and streams the instance's
// event log.
func (s *Server) handleWorkflowEvents(w http.ResponseWriter, r *http.Request) {
	instanceID := mux.Vars(r)["id"]

	meta, err := s.engine.GetMeta(instanceID)
	if err != nil {
		http.Error(w, "Failed to get workflow", http.StatusInternalServerError)
		return
	}
	if meta == nil {
		http.Error(w, "Workflow not found", http.StatusNotFound)
		return
	}

	s.ws.StreamEvents(w, r, instanceID)
}

// StreamEvents upgrades the HTTP connection and pushes the instance's
// events until the client disconnects.
func (wsm *WebSocketManager) StreamEvents(w http.ResponseWriter, r *http.Request, instanceID string) {
	conn, err := wsm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Read loop only to detect the client closing the connection
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sent := 0
	push := func() error {
		events, err := wsm.engine.History(instanceID)
		if err != nil {
			return err
		}
		for ; sent < len(events); sent++ {
			if err := conn.WriteJSON(events[sent]); err != nil {
				return err
			}
		}
		return nil
	}

	// Replay the existing log, then poll for new appends
	if err := push(); err != nil {
		return
	}

	ticker := time.NewTicker(wsm.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := push(); err != nil {
				return
			}
		}
	}
}
