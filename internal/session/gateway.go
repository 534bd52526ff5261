// Package session owns the websocket surface: the lobby socket that feeds the
// presence registry and delivers user-addressed notifications, and per-game
// sockets that accept move/resign actions and broadcast game updates.
package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/wisko/chess-arena/internal/auth"
	"github.com/wisko/chess-arena/internal/fanout"
	"github.com/wisko/chess-arena/internal/game"
	"github.com/wisko/chess-arena/internal/msgcat"
	"github.com/wisko/chess-arena/internal/obslog"
	"github.com/wisko/chess-arena/internal/presence"
	"github.com/wisko/chess-arena/pkg/arenadto"
)

const (
	writeTimeout    = 10 * time.Second
	mutationTimeout = 5 * time.Second
)

type Gateway struct {
	hub      *fanout.Hub
	presence *presence.Registry
	games    *game.Manager
	verifier *auth.Verifier
	catalog  *msgcat.Catalog
}

func NewGateway(hub *fanout.Hub, reg *presence.Registry, games *game.Manager, verifier *auth.Verifier, catalog *msgcat.Catalog) *Gateway {
	return &Gateway{
		hub:      hub,
		presence: reg,
		games:    games,
		verifier: verifier,
		catalog:  catalog,
	}
}

// Handler returns the websocket mux. Mount it on the server root.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/lobby", g.handleLobby)
	mux.HandleFunc("/ws/game/", g.handleGame)
	return mux
}

// identify authenticates the handshake request. Browsers cannot set headers
// on websocket upgrades, so the token is accepted from the query string as
// well as the Authorization header.
func (g *Gateway) identify(r *http.Request) (auth.Identity, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.FromHeader(r.Header.Get("Authorization"))
	}
	if token == "" {
		return auth.Identity{}, false
	}
	id, err := g.verifier.Verify(token)
	if err != nil {
		obslog.L().Warn("ws_auth_rejected", zap.Error(err))
		return auth.Identity{}, false
	}
	return id, true
}

// writePump drains the subscriber queue onto the socket. It exits when the
// queue is closed or a write fails; a failed write leaves the read loop to
// notice the dead peer and tear the connection down.
func writePump(conn *websocket.Conn, sub *fanout.Subscriber) {
	for ev := range sub.C {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, conn, ev)
		cancel()
		if err != nil {
			return
		}
	}
}

func (g *Gateway) errFrame(code string, data any) arenadto.ErrorFrame {
	msg, err := g.catalog.Render("error."+code, data)
	if err != nil {
		msg = code
	}
	return arenadto.ErrorFrame{Type: arenadto.EventError, Code: code, Message: msg}
}

// codeFor maps mutation rejections onto wire error codes. Anything the game
// package did not classify is internal.
func codeFor(err error) string {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return arenadto.CodeGameNotFound
	case errors.Is(err, game.ErrNotYourTurn):
		return arenadto.CodeNotYourTurn
	case errors.Is(err, game.ErrGameFinished):
		return arenadto.CodeGameFinished
	case errors.Is(err, game.ErrIllegalMove):
		return arenadto.CodeIllegalMove
	case errors.Is(err, game.ErrMalformedMove):
		return arenadto.CodeMalformedInput
	case errors.Is(err, game.ErrNotPlayer):
		return arenadto.CodeForbidden
	default:
		return arenadto.CodeInternal
	}
}

func updateFrame(u *game.Update) arenadto.GameUpdate {
	return arenadto.GameUpdate{
		Type:        arenadto.EventGameUpdate,
		GameID:      u.Game.ID,
		Move:        u.Move,
		SAN:         u.SAN,
		FEN:         u.Game.FEN,
		Status:      string(u.Game.Status),
		CurrentTurn: u.Game.Turn,
		Winner:      u.Game.WinnerID,
		Outcome:     u.Game.Outcome,
		MoveCount:   u.Game.MoveCount,
	}
}
