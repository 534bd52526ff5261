package session

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/wisko/chess-arena/internal/auth"
	"github.com/wisko/chess-arena/internal/fanout"
	"github.com/wisko/chess-arena/internal/obslog"
	"github.com/wisko/chess-arena/pkg/arenadto"
)

// handleGame serves /ws/game/{id}. Membership is checked before the upgrade
// so outsiders never hold a socket.
func (g *Gateway) handleGame(w http.ResponseWriter, r *http.Request) {
	id, ok := g.identify(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	gameID := strings.TrimPrefix(r.URL.Path, "/ws/game/")
	if gameID == "" || strings.Contains(gameID, "/") {
		http.NotFound(w, r)
		return
	}
	gm, err := g.games.Get(r.Context(), gameID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !gm.Participant(id.UserID) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("game_id", gameID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	sub := fanout.NewSubscriber()
	group := fanout.GameGroup(gameID)
	g.hub.Subscribe(group, sub)
	defer func() {
		g.hub.Unsubscribe(group, sub)
		sub.Close()
	}()
	go writePump(conn, sub)

	obslog.L().Info("game_socket_open",
		zap.String("game_id", gameID),
		zap.String("user_id", id.UserID),
	)
	g.readGame(r.Context(), conn, sub, gameID, id)
	obslog.L().Info("game_socket_closed",
		zap.String("game_id", gameID),
		zap.String("user_id", id.UserID),
	)
}

// readGame dispatches client actions until the peer goes away. Mutations run
// on a detached context so a disconnect mid-apply cannot abandon a half-done
// move; the resulting update still reaches the remaining subscriber.
func (g *Gateway) readGame(ctx context.Context, conn *websocket.Conn, sub *fanout.Subscriber, gameID string, id auth.Identity) {
	handlers := map[string]func(arenadto.GameAction) error{
		arenadto.ActionMove: func(a arenadto.GameAction) error {
			mctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
			defer cancel()
			upd, err := g.games.ApplyMove(mctx, gameID, id.UserID, a.Move)
			if err != nil {
				return err
			}
			g.hub.Publish(fanout.GameGroup(gameID), updateFrame(upd))
			return nil
		},
		arenadto.ActionResign: func(arenadto.GameAction) error {
			mctx, cancel := context.WithTimeout(context.Background(), mutationTimeout)
			defer cancel()
			upd, err := g.games.Resign(mctx, gameID, id.UserID)
			if err != nil {
				return err
			}
			g.hub.Publish(fanout.GameGroup(gameID), updateFrame(upd))
			return nil
		},
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var act arenadto.GameAction
		if err := json.Unmarshal(data, &act); err != nil {
			sub.Offer(g.errFrame(arenadto.CodeMalformedInput, nil))
			continue
		}
		h, ok := handlers[act.Action]
		if !ok {
			sub.Offer(g.errFrame(arenadto.CodeMalformedInput, nil))
			continue
		}
		if err := h(act); err != nil {
			code := codeFor(err)
			sub.Offer(g.errFrame(code, map[string]string{"Move": act.Move}))
			if code == arenadto.CodeInternal {
				obslog.L().Error("game_action_error",
					zap.String("game_id", gameID),
					zap.String("user_id", id.UserID),
					zap.String("action", act.Action),
					zap.Error(err),
				)
				conn.Close(websocket.StatusInternalError, "internal error")
				return
			}
		}
	}
}
