package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"repogen/pipeline"
)

const wsWriteWait = 10 * time.Second

// wsMessage is one frame sent to a WebSocket client. A run produces any number
// of "event" frames followed by exactly one "result" frame.
type wsMessage struct {
	Type   string          `json:"type"`
	Event  *pipeline.Event `json:"event,omitempty"`
	Status int             `json:"status,omitempty"`
	Result *generateResp   `json:"result,omitempty"`
}

// wsObserver streams run events to the client. Writes happen on the run's
// goroutine only, which makes it the connection's single writer.
type wsObserver struct {
	conn *websocket.Conn
	log  *zerolog.Logger
	dead bool
}

func (o *wsObserver) OnEvent(e pipeline.Event) {
	o.send(wsMessage{Type: "event", Event: &e})
}

func (o *wsObserver) send(msg wsMessage) {
	if o.dead {
		return
	}
	_ = o.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := o.conn.WriteJSON(msg); err != nil {
		o.log.Warn().Err(err).Msg("websocket write failed")
		o.dead = true
	}
}

// handleGenerateWS reads one generate request from the socket and streams the
// run. Closing the socket cancels the run.
func (s *Server) handleGenerateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.opts.MaxBodyBytes)

	obs := &wsObserver{conn: conn, log: zerolog.Ctx(r.Context())}
	var req generateReq
	if err := conn.ReadJSON(&req); err != nil {
		obs.send(wsMessage{Type: "result", Status: http.StatusBadRequest, Result: &generateResp{Message: "Invalid request body.", Error: err.Error()}})
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	status, resp := s.generate(ctx, req, obs)
	obs.send(wsMessage{Type: "result", Status: status, Result: &resp})
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(wsWriteWait))
}
