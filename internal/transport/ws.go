package transport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/codetutor/codetutor/internal/chat"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The notebook frontend is served from a different origin;
		// bearer-token auth gates the connection instead.
		return true
	},
}

// wsTurn is one inbound client message on the chat socket.
type wsTurn struct {
	SessionID   string `json:"session_id,omitempty"`
	Message     string `json:"message"`
	CellCode    string `json:"cell_code,omitempty"`
	ErrorOutput string `json:"error_output,omitempty"`
}

const writeTimeout = 10 * time.Second

// handleChatWS upgrades to a websocket and serves chat turns until the
// client disconnects. Turns on one socket run sequentially; a write
// failure mid-stream aborts the in-flight generation, so a vanished
// client stops costing tokens at the next chunk.
func (s *Server) handleChatWS(c *gin.Context) {
	u := currentUser(c)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.ErrorContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer ws.Close()

	s.logger.Info("chat socket connected", "user_id", u.ID)

	for {
		var turn wsTurn
		if err := ws.ReadJSON(&turn); err != nil {
			s.logger.Info("chat socket closed", "user_id", u.ID, "reason", err.Error())
			return
		}

		emit := func(e chat.Event) error {
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			return ws.WriteJSON(e)
		}

		req := chat.TurnRequest{
			UserID:           u.ID,
			Username:         u.Name,
			SessionID:        turn.SessionID,
			Message:          turn.Message,
			CellCode:         turn.CellCode,
			ErrorText:        turn.ErrorOutput,
			ProgrammingLevel: u.ProgrammingLevel,
			MathsLevel:       u.MathsLevel,
		}
		if err := s.svc.HandleTurn(c.Request.Context(), req, emit); err != nil {
			s.logger.Info("turn aborted", "user_id", u.ID, "reason", err.Error())
			return
		}
	}
}
