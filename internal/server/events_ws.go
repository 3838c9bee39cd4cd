package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/TellToldTold/cloud-comp-arch-project/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEvent is the wire form of one scheduler event.
type wsEvent struct {
	Time    string   `json:"time"`
	Kind    string   `json:"kind"`
	Subject string   `json:"subject"`
	Args    []string `json:"args,omitempty"`
}

// eventStreamHandler upgrades the connection and forwards scheduler events
// until the stream closes or the client disconnects. Each client gets its own
// subscription; a slow client drops records rather than stalling the loop.
func (s *Server) eventStreamHandler(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "Event streaming unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.logger.Info("Event stream client connected", zap.String("remote_addr", r.RemoteAddr))

	// Drain client reads so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sub := s.events.Subscribe()
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case rec, ok := <-sub:
			if !ok {
				// Stream closed: the run is over.
				deadline := time.Now().Add(time.Second)
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
					deadline)
				return
			}
			if err := conn.WriteJSON(toWSEvent(rec)); err != nil {
				s.logger.Debug("Event stream write failed", zap.Error(err))
				return
			}
		}
	}
}

func toWSEvent(rec events.Record) wsEvent {
	return wsEvent{
		Time:    rec.Time.Format(time.RFC3339Nano),
		Kind:    string(rec.Kind),
		Subject: rec.Subject,
		Args:    rec.Args,
	}
}
