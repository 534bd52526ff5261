package game

import (
	"errors"
	"time"
)

// Status is the game lifecycle state. Transitions are monotonic:
// ongoing → finished, never back.
type Status string

const (
	StatusOngoing  Status = "ongoing"
	StatusFinished Status = "finished"
)

// Outcome tokens for finished games.
const (
	OutcomeWhite = "white"
	OutcomeBlack = "black"
	OutcomeDraw  = "draw"
)

// Game is the authoritative match state, stored as JSON in redis. Turn holds
// the user id to move; WinnerID stays empty on draw/stalemate.
type Game struct {
	ID        string    `json:"id"`
	WhiteID   string    `json:"white_id"`
	WhiteName string    `json:"white_name"`
	BlackID   string    `json:"black_id"`
	BlackName string    `json:"black_name"`
	FEN       string    `json:"fen"`
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	Turn      string    `json:"turn"`
	Status    Status    `json:"status"`
	WinnerID  string    `json:"winner_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	MoveCount int       `json:"move_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Participant reports whether userID plays in this game.
func (g *Game) Participant(userID string) bool {
	return userID != "" && (g.WhiteID == userID || g.BlackID == userID)
}

// Opponent returns the other player's id, or empty when userID is not a
// participant.
func (g *Game) Opponent(userID string) string {
	switch userID {
	case g.WhiteID:
		return g.BlackID
	case g.BlackID:
		return g.WhiteID
	}
	return ""
}

// Update is the result of one accepted mutation, broadcast to the game group.
type Update struct {
	Game *Game
	Move string // UCI, empty for resignations
	SAN  string
}

// Rejection reasons. The gateway maps these onto wire error codes.
var (
	ErrNotFound      = errors.New("game not found")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrGameFinished  = errors.New("game finished")
	ErrIllegalMove   = errors.New("illegal move")
	ErrMalformedMove = errors.New("malformed move")
	ErrNotPlayer     = errors.New("not a participant")
)
