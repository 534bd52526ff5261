package rules

import (
	"errors"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// The move-legality collaborator. The coordination core never touches the
// chess library directly; it hands this package a move history plus a
// candidate move and gets back the resulting position and terminal flags.

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var (
	ErrIllegalMove    = errors.New("illegal move")
	ErrCorruptHistory = errors.New("corrupt move history")
)

// Result is the outcome of applying one legal move.
type Result struct {
	FEN       string
	SAN       string
	Checkmate bool
	Draw      bool // stalemate or any forced draw
	NextTurn  Color
}

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

type Engine struct{}

func New() *Engine { return &Engine{} }

// Apply replays the stored UCI history from the start position, then applies
// uci. Replaying rather than trusting a cached FEN keeps the stored FEN
// purely presentational and rules out double-application.
func (e *Engine) Apply(history []string, uci string) (Result, error) {
	game := nchess.NewGame()
	for _, mv := range history {
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return Result{}, ErrCorruptHistory
		}
	}

	pos := game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(strings.TrimSpace(uci)))
	if err != nil {
		return Result{}, ErrIllegalMove
	}
	if err := game.Move(mv, nil); err != nil {
		return Result{}, ErrIllegalMove
	}

	res := Result{
		FEN:      game.FEN(),
		SAN:      nchess.AlgebraicNotation{}.Encode(pos, mv),
		NextTurn: colorFrom(game.Position().Turn()),
	}
	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		res.Checkmate = true
	case nchess.Draw:
		res.Draw = true
	}
	return res, nil
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}
