package status

import (
	"context"
	"encoding/json"
	"lobby-autohost/applog"
	"lobby-autohost/lobby"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

const (
	feedBufferSize = 32
	writeTimeout   = 3 * time.Second
)

// Envelope is one websocket frame of the event feed.
type Envelope struct {
	Kind lobby.EventKind `json:"kind"`
	Data lobby.Event     `json:"data"`
}

// eventFeed streams every lobby event to the client until either side goes away.
// The client is never read from.
func (s *Server) eventFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	events, unsubscribe := s.events.Subscribe(feedBufferSize)
	defer unsubscribe()

	ctx := conn.CloseRead(r.Context())

	if state, err := s.controller.View(ctx); err == nil && state.Lobby != nil {
		if !writeEnvelope(ctx, conn, lobby.NewLobby{Lobby: *state.Lobby}) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "event feed closed")
				return
			}
			if !writeEnvelope(ctx, conn, event) {
				return
			}
		}
	}
}

func writeEnvelope(ctx context.Context, conn *websocket.Conn, event lobby.Event) bool {
	payload, err := json.Marshal(Envelope{Kind: event.Kind(), Data: event})
	if err != nil {
		applog.Error("Failed to marshal lobby event", zap.String("event", event.Kind()), zap.Error(err))
		return true
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload) == nil
}
