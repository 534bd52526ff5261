package game

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wisko/chess-arena/internal/obslog"
	"github.com/wisko/chess-arena/internal/rules"
)

// Manager owns every Game mutation. Concurrent submissions against the same
// game are serialized by a per-game in-memory mutex held across the whole
// read → validate → rules → persist sequence; the rules call must not run
// inside a store transaction, so the lock lives here rather than in redis.
// Different games never share a lock.

var uciPattern = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// ResultSink receives finished games for durable archiving.
type ResultSink interface {
	SaveResult(ctx context.Context, g *Game, method string) error
}

type Manager struct {
	rdb    *redis.Client
	engine *rules.Engine
	ttl    time.Duration
	sink   ResultSink

	locks sync.Map // game id → *sync.Mutex
}

func NewManager(rdb *redis.Client, engine *rules.Engine, ttl time.Duration) *Manager {
	return &Manager{rdb: rdb, engine: engine, ttl: ttl}
}

// AttachArchive wires the durable result store. Optional; archiving is best
// effort and never blocks a game from finishing.
func (m *Manager) AttachArchive(s ResultSink) { m.sink = s }

// Create starts a game between the two players. White moves first; the
// challenge broker always seats the challenger as white.
func (m *Manager) Create(ctx context.Context, whiteID, whiteName, blackID, blackName string) (*Game, error) {
	if strings.TrimSpace(whiteID) == "" || strings.TrimSpace(blackID) == "" {
		return nil, errors.New("invalid participants")
	}
	now := time.Now()
	g := &Game{
		ID:        uuid.NewString(),
		WhiteID:   whiteID,
		WhiteName: whiteName,
		BlackID:   blackID,
		BlackName: blackName,
		FEN:       rules.StartFEN,
		MovesUCI:  []string{},
		MovesSAN:  []string{},
		Turn:      whiteID,
		Status:    StatusOngoing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.save(ctx, g); err != nil {
		return nil, err
	}
	if err := m.indexParticipants(ctx, g.ID, whiteID, blackID); err != nil {
		return nil, err
	}
	obslog.L().Info("game_create",
		zap.String("game_id", g.ID),
		zap.String("white_id", g.WhiteID),
		zap.String("black_id", g.BlackID),
	)
	return g, nil
}

// Get loads a game by id. ErrNotFound when missing or expired.
func (m *Manager) Get(ctx context.Context, id string) (*Game, error) {
	raw, err := m.rdb.Get(ctx, gameKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var g Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ApplyMove validates and applies one move for userID. The per-game lock
// guarantees at most one state transition is processed at a time; on any
// rejection nothing is persisted.
func (m *Manager) ApplyMove(ctx context.Context, gameID, userID, uci string) (*Update, error) {
	uci = strings.ToLower(strings.TrimSpace(uci))
	if !uciPattern.MatchString(uci) {
		return nil, ErrMalformedMove
	}

	mu := m.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	g, err := m.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.Participant(userID) {
		return nil, ErrNotPlayer
	}
	if g.Status != StatusOngoing {
		return nil, ErrGameFinished
	}
	if g.Turn != userID {
		return nil, ErrNotYourTurn
	}

	res, err := m.engine.Apply(g.MovesUCI, uci)
	if errors.Is(err, rules.ErrIllegalMove) {
		return nil, ErrIllegalMove
	}
	if err != nil {
		return nil, err
	}

	g.MovesUCI = append(g.MovesUCI, uci)
	g.MovesSAN = append(g.MovesSAN, res.SAN)
	g.FEN = res.FEN
	g.MoveCount++
	g.Turn = playerFor(g, res.NextTurn)
	g.UpdatedAt = time.Now()

	method := ""
	switch {
	case res.Checkmate:
		g.Status = StatusFinished
		g.WinnerID = userID
		g.Outcome = colorOf(g, userID)
		method = "checkmate"
	case res.Draw:
		g.Status = StatusFinished
		g.WinnerID = ""
		g.Outcome = OutcomeDraw
		method = "draw"
	}

	if err := m.save(ctx, g); err != nil {
		return nil, err
	}

	obslog.L().Info("game_move",
		zap.String("game_id", g.ID),
		zap.String("user_id", userID),
		zap.String("uci", uci),
		zap.String("status", string(g.Status)),
		zap.String("outcome", g.Outcome),
	)
	if g.Status == StatusFinished {
		m.archive(ctx, g, method)
	}
	return &Update{Game: g, Move: uci, SAN: res.SAN}, nil
}

// Resign finishes the game immediately. The opponent of the resigning player
// always wins, regardless of whose turn it is.
func (m *Manager) Resign(ctx context.Context, gameID, userID string) (*Update, error) {
	mu := m.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	g, err := m.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.Participant(userID) {
		return nil, ErrNotPlayer
	}
	if g.Status != StatusOngoing {
		return nil, ErrGameFinished
	}

	g.Status = StatusFinished
	g.WinnerID = g.Opponent(userID)
	g.Outcome = colorOf(g, g.WinnerID)
	g.UpdatedAt = time.Now()

	if err := m.save(ctx, g); err != nil {
		return nil, err
	}
	obslog.L().Info("game_resign",
		zap.String("game_id", g.ID),
		zap.String("resigner", userID),
		zap.String("winner", g.WinnerID),
	)
	m.archive(ctx, g, "resignation")
	return &Update{Game: g}, nil
}

// ActiveGameForUser returns the user's most recently updated ongoing game,
// or nil when none exists.
func (m *Manager) ActiveGameForUser(ctx context.Context, userID string) (*Game, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	ids, err := m.rdb.SMembers(ctx, idxUserKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Game
	for _, id := range ids {
		g, gerr := m.Get(ctx, id)
		if gerr != nil {
			continue
		}
		if g.Status == StatusOngoing {
			list = append(list, g)
		}
	}
	if len(list) == 0 {
		return nil, nil
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list[0], nil
}

// OngoingBetween returns the ongoing game between the pair, or nil.
func (m *Manager) OngoingBetween(ctx context.Context, a, b string) (*Game, error) {
	ids, err := m.rdb.SMembers(ctx, idxUserKey(a)).Result()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		g, gerr := m.Get(ctx, id)
		if gerr != nil {
			continue
		}
		if g.Status == StatusOngoing && g.Participant(b) {
			return g, nil
		}
	}
	return nil, nil
}

func (m *Manager) lockFor(gameID string) *sync.Mutex {
	v, _ := m.locks.LoadOrStore(gameID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func playerFor(g *Game, c rules.Color) string {
	if c == rules.White {
		return g.WhiteID
	}
	return g.BlackID
}

func colorOf(g *Game, userID string) string {
	switch userID {
	case g.WhiteID:
		return OutcomeWhite
	case g.BlackID:
		return OutcomeBlack
	}
	return ""
}

func (m *Manager) archive(ctx context.Context, g *Game, method string) {
	if m.sink == nil {
		return
	}
	if err := m.sink.SaveResult(ctx, g, method); err != nil {
		obslog.L().Error("game_archive_error",
			zap.String("game_id", g.ID),
			zap.String("outcome", g.Outcome),
			zap.Error(err),
		)
		return
	}
	obslog.L().Info("game_archived",
		zap.String("game_id", g.ID),
		zap.String("outcome", g.Outcome),
		zap.String("method", method),
	)
}

func (m *Manager) save(ctx context.Context, g *Game) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	return m.rdb.Set(ctx, gameKey(g.ID), raw, m.ttl).Err()
}

func (m *Manager) indexParticipants(ctx context.Context, id, white, black string) error {
	for _, uid := range []string{white, black} {
		key := idxUserKey(uid)
		if err := m.rdb.SAdd(ctx, key, id).Err(); err != nil {
			return err
		}
		// keep index TTL aligned with the game rows
		_ = m.rdb.Expire(ctx, key, m.ttl).Err()
	}
	return nil
}

func gameKey(id string) string        { return "arena:game:" + strings.TrimSpace(id) }
func idxUserKey(userID string) string { return "arena:index:user:" + strings.TrimSpace(userID) }
