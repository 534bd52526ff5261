package session

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/wisko/chess-arena/internal/fanout"
	"github.com/wisko/chess-arena/internal/obslog"
	"github.com/wisko/chess-arena/pkg/arenadto"
)

// handleLobby serves /ws/lobby. The lobby socket is the liveness signal: the
// connection registers presence, heartbeat frames refresh it, and the
// deferred deregister starts the offline grace window on disconnect.
func (g *Gateway) handleLobby(w http.ResponseWriter, r *http.Request) {
	id, ok := g.identify(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("user_id", id.UserID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	sub := fanout.NewSubscriber()
	userGroup := fanout.UserGroup(id.UserID)
	g.hub.Subscribe(fanout.GroupGlobal, sub)
	g.hub.Subscribe(userGroup, sub)
	g.presence.Register(id.UserID, id.Username)
	defer func() {
		g.presence.Deregister(id.UserID)
		g.hub.Unsubscribe(fanout.GroupGlobal, sub)
		g.hub.Unsubscribe(userGroup, sub)
		sub.Close()
	}()
	go writePump(conn, sub)

	obslog.L().Info("lobby_socket_open", zap.String("user_id", id.UserID))

	handlers := map[string]func() bool{
		arenadto.FrameHeartbeat: func() bool {
			g.presence.Heartbeat(id.UserID)
			return true
		},
		arenadto.FrameLogout: func() bool { return false },
	}

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			obslog.L().Info("lobby_socket_closed", zap.String("user_id", id.UserID))
			return
		}
		var f arenadto.LobbyFrame
		if err := json.Unmarshal(data, &f); err != nil {
			sub.Offer(g.errFrame(arenadto.CodeMalformedInput, nil))
			continue
		}
		h, ok := handlers[f.Type]
		if !ok {
			sub.Offer(g.errFrame(arenadto.CodeMalformedInput, nil))
			continue
		}
		if !h() {
			conn.Close(websocket.StatusNormalClosure, "logout")
			obslog.L().Info("lobby_socket_closed", zap.String("user_id", id.UserID))
			return
		}
	}
}
