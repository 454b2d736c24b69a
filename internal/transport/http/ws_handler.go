package http

import (
	"log"
	"net/http"
	"strconv"

	"district-exam-service/internal/app"
	"district-exam-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler streams live leaderboard updates for one exam over a
// websocket. The stream is subscribe-only; submissions stay on REST.
type WSHandler struct {
	boards   app.LeaderboardSource
	feed     *app.Feed
	upgrader websocket.Upgrader
}

func NewWSHandler(boards app.LeaderboardSource, feed *app.Feed) *WSHandler {
	return &WSHandler{
		boards: boards,
		feed:   feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string                  `json:"type"`
	Payload []domain.LeaderboardRow `json:"payload"`
}

// ServeWS upgrades the request and pushes a snapshot plus every
// subsequent ranking change until the client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	examID, err := strconv.ParseInt(r.URL.Query().Get("examId"), 10, 64)
	if err != nil {
		http.Error(w, "missing or invalid examId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	rows, err := h.boards.Leaderboard(r.Context(), examID)
	if err != nil {
		log.Printf("ws initial leaderboard: %v", err)
		return
	}

	updates, cancel := h.feed.Subscribe(examID)
	defer cancel()

	// Reader goroutine only detects the client going away; all writes
	// happen on this goroutine so they never interleave.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: rows}); err != nil {
		return
	}

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "leaderboard", Payload: update}); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
