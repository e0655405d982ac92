package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"wandbridge/internal/auth"
	"wandbridge/internal/bridge"
	"wandbridge/internal/events"
	"wandbridge/internal/tracker"
)

// TraceHandler streams live gesture traces over a WebSocket
type TraceHandler struct {
	bridge       *bridge.Bridge
	wsTokenStore *auth.WSTokenStore
	eventStore   *events.Store
	upgrader     websocket.Upgrader
}

// NewTraceHandler creates new trace handler
func NewTraceHandler(br *bridge.Bridge, wsTokenStore *auth.WSTokenStore, eventStore *events.Store) *TraceHandler {
	h := &TraceHandler{
		bridge:       br,
		wsTokenStore: wsTokenStore,
		eventStore:   eventStore,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates WebSocket connection using CSRF token
// This prevents Cross-Site WebSocket Hijacking (CSWSH) attacks
func (h *TraceHandler) checkOrigin(r *http.Request) bool {
	// Get token from query parameter
	token := r.URL.Query().Get("ws_token")
	if token == "" {
		log.Printf("WebSocket rejected: missing ws_token")
		return false
	}

	// Validate token (one-time use, auto-deleted after validation)
	username, valid := h.wsTokenStore.Validate(token)
	if !valid {
		log.Printf("WebSocket rejected: invalid or expired ws_token")
		return false
	}

	log.Printf("WebSocket connection authorized for user: %s", username)
	return true
}

// TraceMessage is one frame of the trace stream: the path recorded so
// far for the gesture currently being cast
type TraceMessage struct {
	Type   string          `json:"type"` // "trace"
	Points []tracker.Point `json:"points"`
}

// Stream handles WebSocket connection for live gesture traces
// GET /api/wand/trace?ws_token=...
func (h *TraceHandler) Stream(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUserFromContext(r.Context())
	username := ""
	if user != nil {
		username = user.Username
	}

	// Upgrade HTTP to WebSocket
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	// Log trace stream connection
	h.eventStore.Add(events.EventTraceStream, username, getClientIP(r), true, "")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The bridge calls the trace func from its IMU goroutine. Frames go
	// through a small buffered channel; when the client falls behind the
	// oldest frame is dropped, the next one carries the full path anyway.
	frames := make(chan []tracker.Point, 4)
	h.bridge.SetTraceFunc(func(points []tracker.Point) {
		select {
		case frames <- points:
		default:
			select {
			case <-frames:
			default:
			}
			select {
			case frames <- points:
			default:
			}
		}
	})
	defer h.bridge.SetTraceFunc(nil)

	// Write frames -> WebSocket
	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case points := <-frames:
				ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := ws.WriteJSON(TraceMessage{Type: "trace", Points: points}); err != nil {
					return
				}
			}
		}
	}()

	// Read loop detects client disconnect
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			cancel()
			return
		}
	}
}
