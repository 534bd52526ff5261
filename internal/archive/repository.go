package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/wisko/chess-arena/internal/game"
)

// Repository persists finished games to Postgres. Redis rows expire with
// their TTL; this is the durable record (history pages, journals, ratings).

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game. Safe to call more than once for the
// same game id.
func (r *Repository) SaveResult(ctx context.Context, g *game.Game, method string) error {
	if r == nil || r.db == nil || g == nil {
		return nil
	}

	pgnResult := mapResultToPGN(g.Outcome)
	pgn := buildPGN(g, pgnResult, method)

	movesUCIRaw, _ := json.Marshal(g.MovesUCI)
	movesSANRaw, _ := json.Marshal(g.MovesSAN)
	duration := g.UpdatedAt.Sub(g.CreatedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	q := `INSERT INTO arena_games (
        game_id, white_id, white_name, black_id, black_name,
        result, result_method, winner_id, move_count,
        moves_uci, moves_san, pgn,
        started_at, ended_at, duration_ms
      ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
      ) ON CONFLICT (game_id) DO UPDATE SET
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        winner_id=EXCLUDED.winner_id,
        move_count=EXCLUDED.move_count,
        moves_uci=EXCLUDED.moves_uci,
        moves_san=EXCLUDED.moves_san,
        pgn=EXCLUDED.pgn,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`

	_, err := r.db.ExecContext(ctx, q,
		g.ID,
		g.WhiteID, g.WhiteName,
		g.BlackID, g.BlackName,
		g.Outcome, strings.TrimSpace(method), g.WinnerID, g.MoveCount,
		string(movesUCIRaw), string(movesSANRaw), pgn,
		g.CreatedAt, g.UpdatedAt, duration,
	)
	return err
}
