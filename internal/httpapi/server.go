// Package httpapi is the polling/state surface: everything the websocket
// gateway pushes can also be fetched here, so clients recover after a
// reconnect without replaying missed frames.
package httpapi

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/wisko/chess-arena/internal/auth"
	"github.com/wisko/chess-arena/internal/challenge"
	"github.com/wisko/chess-arena/internal/game"
	"github.com/wisko/chess-arena/internal/obslog"
	"github.com/wisko/chess-arena/internal/presence"
	"github.com/wisko/chess-arena/pkg/arenadto"
)

type Server struct {
	presence *presence.Registry
	games    *game.Manager
	broker   *challenge.Broker
	verifier *auth.Verifier
}

func NewServer(reg *presence.Registry, games *game.Manager, broker *challenge.Broker, verifier *auth.Verifier) *Server {
	return &Server{presence: reg, games: games, broker: broker, verifier: verifier}
}

// Handler is the fasthttp entry point. Every route requires a bearer token.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	id, ok := s.identify(ctx)
	if !ok {
		writeError(ctx, fasthttp.StatusUnauthorized, arenadto.CodeForbidden, "missing or invalid token")
		return
	}

	path := string(ctx.Path())
	method := string(ctx.Method())
	switch {
	case method == fasthttp.MethodGet && path == "/api/users/online":
		s.listOnline(ctx, id)
	case method == fasthttp.MethodGet && path == "/api/games/active":
		s.activeGame(ctx, id)
	case method == fasthttp.MethodGet && strings.HasPrefix(path, "/api/games/"):
		s.getGame(ctx, id, strings.TrimPrefix(path, "/api/games/"))
	case method == fasthttp.MethodGet && path == "/api/challenges/pending":
		s.pendingChallenges(ctx, id)
	case method == fasthttp.MethodPost && path == "/api/challenges":
		s.createChallenge(ctx, id)
	case method == fasthttp.MethodPost && strings.HasPrefix(path, "/api/challenges/") && strings.HasSuffix(path, "/respond"):
		cid := strings.TrimSuffix(strings.TrimPrefix(path, "/api/challenges/"), "/respond")
		s.respondChallenge(ctx, id, cid)
	default:
		writeError(ctx, fasthttp.StatusNotFound, arenadto.CodeInternal, "no such route")
	}
}

func (s *Server) identify(ctx *fasthttp.RequestCtx) (auth.Identity, bool) {
	token := auth.FromHeader(string(ctx.Request.Header.Peek("Authorization")))
	if token == "" {
		token = string(ctx.QueryArgs().Peek("token"))
	}
	if token == "" {
		return auth.Identity{}, false
	}
	id, err := s.verifier.Verify(token)
	if err != nil {
		return auth.Identity{}, false
	}
	return id, true
}

type onlineUser struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (s *Server) listOnline(ctx *fasthttp.RequestCtx, id auth.Identity) {
	users := s.presence.ListOnline(id.UserID)
	out := make([]onlineUser, 0, len(users))
	for _, u := range users {
		out = append(out, onlineUser{UserID: u.UserID, Username: u.Username})
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"users": out})
}

func (s *Server) activeGame(ctx *fasthttp.RequestCtx, id auth.Identity) {
	g, err := s.games.ActiveGameForUser(ctx, id.UserID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"game": g})
}

func (s *Server) getGame(ctx *fasthttp.RequestCtx, id auth.Identity, gameID string) {
	if gameID == "" || strings.Contains(gameID, "/") {
		writeError(ctx, fasthttp.StatusNotFound, arenadto.CodeGameNotFound, "game not found")
		return
	}
	g, err := s.games.Get(ctx, gameID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if !g.Participant(id.UserID) {
		writeError(ctx, fasthttp.StatusForbidden, arenadto.CodeForbidden, "not a participant")
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"game": g})
}

func (s *Server) pendingChallenges(ctx *fasthttp.RequestCtx, id auth.Identity) {
	received, sent, err := s.broker.PendingFor(ctx, id.UserID)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	if received == nil {
		received = []*challenge.Challenge{}
	}
	if sent == nil {
		sent = []*challenge.Challenge{}
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"received": received, "sent": sent})
}

type createChallengeReq struct {
	ChallengedID       string `json:"challenged_id"`
	ChallengedUsername string `json:"challenged_username"`
}

func (s *Server) createChallenge(ctx *fasthttp.RequestCtx, id auth.Identity) {
	var req createChallengeReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, arenadto.CodeMalformedInput, "invalid JSON body")
		return
	}
	ch, err := s.broker.Create(ctx, id.UserID, id.Username, req.ChallengedID, req.ChallengedUsername)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, map[string]any{"challenge": ch})
}

type respondChallengeReq struct {
	Accept bool `json:"accept"`
}

func (s *Server) respondChallenge(ctx *fasthttp.RequestCtx, id auth.Identity, challengeID string) {
	var req respondChallengeReq
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, arenadto.CodeMalformedInput, "invalid JSON body")
		return
	}
	g, err := s.broker.Respond(ctx, challengeID, id.UserID, req.Accept)
	if err != nil {
		s.fail(ctx, err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"game": g})
}

// fail translates domain rejections into HTTP statuses and wire codes.
func (s *Server) fail(ctx *fasthttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, game.ErrNotFound):
		writeError(ctx, fasthttp.StatusNotFound, arenadto.CodeGameNotFound, "game not found")
	case errors.Is(err, challenge.ErrNotFound):
		writeError(ctx, fasthttp.StatusNotFound, arenadto.CodeChallengeNotFound, "challenge not found")
	case errors.Is(err, challenge.ErrConflict):
		writeError(ctx, fasthttp.StatusConflict, arenadto.CodeConflict, "pending challenge or ongoing game already exists")
	case errors.Is(err, challenge.ErrInvalidArgs):
		writeError(ctx, fasthttp.StatusBadRequest, arenadto.CodeMalformedInput, "invalid challenge arguments")
	case errors.Is(err, game.ErrNotPlayer):
		writeError(ctx, fasthttp.StatusForbidden, arenadto.CodeForbidden, "not a participant")
	default:
		obslog.L().Error("api_internal_error", zap.Error(err))
		writeError(ctx, fasthttp.StatusInternalServerError, arenadto.CodeInternal, "internal error")
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(raw)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, message string) {
	writeJSON(ctx, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}
