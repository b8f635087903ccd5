package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/cngjsskaisme/folio/internal/pipeline"
)

// ChatFrame is sent to WebSocket clients. R carries the text and D marks
// the final frame for a question.
type ChatFrame struct {
	R string `json:"r"`
	D bool   `json:"d"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The chat page may be served from a different origin than the API.
	CheckOrigin: func(*http.Request) bool { return true },
}

// chatConn serializes writes; gorilla connections allow one concurrent writer.
type chatConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *chatConn) send(f ChatFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(f)
}

// sendOrLog sends f. A failure means the peer is gone, and the read loop
// will notice it and cancel the remaining questions.
func (c *chatConn) sendOrLog(f ChatFrame) {
	if err := c.send(f); err != nil {
		slog.Debug("websocket send failed", "final", f.D, "error", err)
	}
}

// handleChat treats every text message as a question. Questions run
// concurrently. Each one streams status frames with D false, then exactly
// one final frame with D true. Closing the connection cancels questions
// still in flight.
func handleChat(asker Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the error response.
			slog.Debug("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()
		conn.SetReadLimit(maxRequestBodySize)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		c := &chatConn{conn: conn}
		var wg sync.WaitGroup
		defer wg.Wait()

		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					slog.Warn("websocket read failed", "error", err)
				}
				cancel()
				return
			}
			if mt != websocket.TextMessage {
				continue
			}

			question := strings.TrimSpace(string(msg))
			if question == "" {
				continue
			}

			wg.Add(1)
			go func() {
				defer wg.Done()
				qctx := pipeline.WithProgress(ctx, func(status string) {
					c.sendOrLog(ChatFrame{R: status})
				})
				c.sendOrLog(answerFrame(qctx, asker, question))
			}()
		}
	}
}

func answerFrame(ctx context.Context, asker Asker, question string) ChatFrame {
	ans, err := asker.Ask(ctx, question)
	if err != nil {
		return ChatFrame{R: "Error: " + err.Error(), D: true}
	}
	return ChatFrame{R: ans.Text, D: true}
}
