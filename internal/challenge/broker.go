package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wisko/chess-arena/internal/fanout"
	"github.com/wisko/chess-arena/internal/game"
	"github.com/wisko/chess-arena/internal/obslog"
	"github.com/wisko/chess-arena/pkg/arenadto"
)

// Broker mediates challenge creation and response between two users. The
// single-pending-per-pair invariant is held by a SetNX pair guard; the
// first-response-wins rule is a WATCH check-and-flip on the challenge row,
// so duplicate accept/reject races lose cleanly instead of double-running.

type Broker struct {
	rdb   *redis.Client
	games *game.Manager
	hub   *fanout.Hub
	ttl   time.Duration
}

func NewBroker(rdb *redis.Client, games *game.Manager, hub *fanout.Hub, ttl time.Duration) *Broker {
	return &Broker{rdb: rdb, games: games, hub: hub, ttl: ttl}
}

// Create opens a pending challenge and notifies the challenged user.
// ErrConflict when an ongoing game or a pending challenge (either direction)
// already exists between the pair.
func (b *Broker) Create(ctx context.Context, challengerID, challengerName, challengedID, challengedName string) (*Challenge, error) {
	challengerID = strings.TrimSpace(challengerID)
	challengedID = strings.TrimSpace(challengedID)
	if challengerID == "" || challengedID == "" || challengerID == challengedID {
		return nil, ErrInvalidArgs
	}

	if g, err := b.games.OngoingBetween(ctx, challengerID, challengedID); err != nil {
		return nil, err
	} else if g != nil {
		return nil, ErrConflict
	}

	ch := &Challenge{
		ID:             uuid.NewString(),
		ChallengerID:   challengerID,
		ChallengerName: challengerName,
		ChallengedID:   challengedID,
		ChallengedName: challengedName,
		Status:         StatusPending,
		CreatedAt:      time.Now(),
	}

	// the guard is direction-agnostic: one pending challenge per pair
	ok, err := b.rdb.SetNX(ctx, pairKey(challengerID, challengedID), ch.ID, b.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}

	if err := b.save(ctx, ch); err != nil {
		return nil, err
	}
	if err := b.index(ctx, ch); err != nil {
		return nil, err
	}

	obslog.L().Info("challenge_create",
		zap.String("challenge_id", ch.ID),
		zap.String("challenger_id", ch.ChallengerID),
		zap.String("challenged_id", ch.ChallengedID),
	)
	b.hub.Publish(fanout.UserGroup(ch.ChallengedID), arenadto.ChallengeReceived{
		Type:               arenadto.EventChallengeReceived,
		ChallengeID:        ch.ID,
		ChallengerID:       ch.ChallengerID,
		ChallengerUsername: ch.ChallengerName,
	})
	return ch, nil
}

// Respond settles a pending challenge. Only the challenged user may respond;
// the first accept/reject to land wins and later ones get ErrConflict. On
// accept a game is created with the challenger as white and both users are
// notified; on decline only the challenger is.
func (b *Broker) Respond(ctx context.Context, challengeID, responderID string, accept bool) (*game.Game, error) {
	ch, err := b.get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch == nil || ch.ChallengedID != strings.TrimSpace(responderID) {
		return nil, ErrNotFound
	}

	next := StatusDeclined
	if accept {
		next = StatusAccepted
	}

	key := challengeKey(challengeID)
	err = b.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var cur Challenge
		if jerr := json.Unmarshal(raw, &cur); jerr != nil {
			return jerr
		}
		if cur.Status != StatusPending {
			return ErrConflict
		}
		cur.Status = next
		pipe := tx.TxPipeline()
		newRaw, _ := json.Marshal(&cur)
		pipe.Set(ctx, key, newRaw, b.ttl)
		pipe.Del(ctx, pairKey(cur.ChallengerID, cur.ChallengedID))
		_, err = pipe.Exec(ctx)
		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, ErrConflict
		}
		return nil, err
	}

	if !accept {
		obslog.L().Info("challenge_declined",
			zap.String("challenge_id", ch.ID),
			zap.String("challenged_id", ch.ChallengedID),
		)
		b.hub.Publish(fanout.UserGroup(ch.ChallengerID), arenadto.ChallengeRejected{
			Type:               arenadto.EventChallengeRejected,
			ChallengeID:        ch.ID,
			ChallengedID:       ch.ChallengedID,
			ChallengedUsername: ch.ChallengedName,
		})
		return nil, nil
	}

	g, err := b.games.Create(ctx, ch.ChallengerID, ch.ChallengerName, ch.ChallengedID, ch.ChallengedName)
	if err != nil {
		obslog.L().Error("challenge_accept_game_create_error",
			zap.String("challenge_id", ch.ID),
			zap.Error(err),
		)
		return nil, err
	}
	obslog.L().Info("challenge_accepted",
		zap.String("challenge_id", ch.ID),
		zap.String("game_id", g.ID),
	)
	started := arenadto.GameStarted{Type: arenadto.EventGameStarted, GameID: g.ID}
	b.hub.Publish(fanout.UserGroup(ch.ChallengerID), started)
	b.hub.Publish(fanout.UserGroup(ch.ChallengedID), started)
	return g, nil
}

// PendingFor lists pending challenges where the user is the challenged
// (received) or the challenger (sent).
func (b *Broker) PendingFor(ctx context.Context, userID string) (received, sent []*Challenge, err error) {
	received, err = b.loadPending(ctx, idxReceivedKey(userID))
	if err != nil {
		return nil, nil, err
	}
	sent, err = b.loadPending(ctx, idxSentKey(userID))
	if err != nil {
		return nil, nil, err
	}
	return received, sent, nil
}

func (b *Broker) loadPending(ctx context.Context, indexKey string) ([]*Challenge, error) {
	ids, err := b.rdb.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}
	var out []*Challenge
	for _, id := range ids {
		ch, gerr := b.get(ctx, id)
		if gerr != nil || ch == nil {
			continue
		}
		if ch.Status == StatusPending {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (b *Broker) save(ctx context.Context, ch *Challenge) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return b.rdb.Set(ctx, challengeKey(ch.ID), raw, b.ttl).Err()
}

func (b *Broker) get(ctx context.Context, id string) (*Challenge, error) {
	raw, err := b.rdb.Get(ctx, challengeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ch Challenge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

func (b *Broker) index(ctx context.Context, ch *Challenge) error {
	for key, id := range map[string]string{
		idxSentKey(ch.ChallengerID):     ch.ID,
		idxReceivedKey(ch.ChallengedID): ch.ID,
	} {
		if err := b.rdb.SAdd(ctx, key, id).Err(); err != nil {
			return err
		}
		_ = b.rdb.Expire(ctx, key, b.ttl).Err()
	}
	return nil
}

func challengeKey(id string) string { return "arena:challenge:" + strings.TrimSpace(id) }

func idxSentKey(userID string) string {
	return "arena:challenge:index:sent:" + strings.TrimSpace(userID)
}

func idxReceivedKey(userID string) string {
	return "arena:challenge:index:received:" + strings.TrimSpace(userID)
}

// pairKey sorts the pair so A→B and B→A guard the same key.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "arena:challenge:pair:" + a + "|" + b
}
