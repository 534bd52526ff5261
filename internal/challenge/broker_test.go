package challenge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wisko/chess-arena/internal/fanout"
	"github.com/wisko/chess-arena/internal/game"
	"github.com/wisko/chess-arena/internal/rules"
	"github.com/wisko/chess-arena/pkg/arenadto"
)

func newTestBroker(t *testing.T) (*Broker, *game.Manager, *fanout.Hub) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	hub := fanout.NewHub()
	games := game.NewManager(rdb, rules.New(), 24*time.Hour)
	return NewBroker(rdb, games, hub, 24*time.Hour), games, hub
}

func drain(sub *fanout.Subscriber) []any {
	var out []any
	for {
		select {
		case v := <-sub.C:
			out = append(out, v)
		default:
			return out
		}
	}
}

func TestCreateNotifiesChallengedUser(t *testing.T) {
	b, _, hub := newTestBroker(t)
	sub := fanout.NewSubscriber()
	hub.Subscribe(fanout.UserGroup("bob"), sub)

	ch, err := b.Create(context.Background(), "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ch.Status != StatusPending {
		t.Fatalf("expected pending, got %q", ch.Status)
	}

	events := drain(sub)
	if len(events) != 1 {
		t.Fatalf("expected one event, got %v", events)
	}
	recv, ok := events[0].(arenadto.ChallengeReceived)
	if !ok || recv.ChallengerID != "alice" || recv.ChallengeID != ch.ID {
		t.Fatalf("unexpected event: %#v", events[0])
	}
}

func TestPendingPairUniqueness(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	if _, err := b.Create(ctx, "alice", "Alice", "bob", "Bob"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := b.Create(ctx, "alice", "Alice", "bob", "Bob"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate, got %v", err)
	}
	// reverse direction is still the same pair
	if _, err := b.Create(ctx, "bob", "Bob", "alice", "Alice"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on reverse duplicate, got %v", err)
	}
	// unrelated pair is fine
	if _, err := b.Create(ctx, "alice", "Alice", "carol", "Carol"); err != nil {
		t.Fatalf("unrelated Create: %v", err)
	}
}

func TestCreateBlockedByOngoingGame(t *testing.T) {
	b, games, _ := newTestBroker(t)
	ctx := context.Background()

	if _, err := games.Create(ctx, "alice", "Alice", "bob", "Bob"); err != nil {
		t.Fatalf("game Create: %v", err)
	}
	if _, err := b.Create(ctx, "bob", "Bob", "alice", "Alice"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict while game ongoing, got %v", err)
	}
}

func TestSelfChallengeRejected(t *testing.T) {
	b, _, _ := newTestBroker(t)
	if _, err := b.Create(context.Background(), "alice", "Alice", "alice", "Alice"); !errors.Is(err, ErrInvalidArgs) {
		t.Fatalf("expected ErrInvalidArgs, got %v", err)
	}
}

func TestAcceptCreatesGameAndNotifiesBoth(t *testing.T) {
	b, _, hub := newTestBroker(t)
	ctx := context.Background()
	aliceSub := fanout.NewSubscriber()
	bobSub := fanout.NewSubscriber()
	hub.Subscribe(fanout.UserGroup("alice"), aliceSub)
	hub.Subscribe(fanout.UserGroup("bob"), bobSub)

	ch, err := b.Create(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	g, err := b.Respond(ctx, ch.ID, "bob", true)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if g == nil || g.WhiteID != "alice" || g.Turn != "alice" {
		t.Fatalf("expected challenger seated as white to move, got %+v", g)
	}

	for name, sub := range map[string]*fanout.Subscriber{"alice": aliceSub, "bob": bobSub} {
		var started bool
		for _, ev := range drain(sub) {
			if gs, ok := ev.(arenadto.GameStarted); ok && gs.GameID == g.ID {
				started = true
			}
		}
		if !started {
			t.Fatalf("%s did not receive game_started", name)
		}
	}
}

func TestDeclineNotifiesChallengerOnly(t *testing.T) {
	b, _, hub := newTestBroker(t)
	ctx := context.Background()
	aliceSub := fanout.NewSubscriber()
	hub.Subscribe(fanout.UserGroup("alice"), aliceSub)

	ch, err := b.Create(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	g, err := b.Respond(ctx, ch.ID, "bob", false)
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if g != nil {
		t.Fatalf("decline must not create a game")
	}

	events := drain(aliceSub)
	if len(events) != 1 {
		t.Fatalf("expected one rejection event, got %v", events)
	}
	if _, ok := events[0].(arenadto.ChallengeRejected); !ok {
		t.Fatalf("unexpected event: %#v", events[0])
	}
}

func TestRespondOnlyByChallengedUser(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	ch, err := b.Create(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := b.Respond(ctx, ch.ID, "alice", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for challenger responding, got %v", err)
	}
	if _, err := b.Respond(ctx, "missing-id", "bob", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestFirstResponseWins(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	ch, err := b.Create(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := b.Respond(ctx, ch.ID, "bob", false); err != nil {
		t.Fatalf("first Respond: %v", err)
	}
	if _, err := b.Respond(ctx, ch.ID, "bob", true); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second response, got %v", err)
	}
}

func TestConcurrentRespondsSettleOnce(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	ch, err := b.Create(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const total = 16
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < total; i++ {
		accept := i%2 == 0
		wg.Add(1)
		go func(accept bool) {
			defer wg.Done()
			<-start
			if _, err := b.Respond(ctx, ch.ID, "bob", accept); err == nil {
				wins.Add(1)
			}
		}(accept)
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winning response, got %d", wins.Load())
	}
}

func TestPairGuardReleasedAfterDecline(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	ch, err := b.Create(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := b.Respond(ctx, ch.ID, "bob", false); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	// a fresh challenge between the same pair must now be allowed
	if _, err := b.Create(ctx, "bob", "Bob", "alice", "Alice"); err != nil {
		t.Fatalf("Create after decline: %v", err)
	}
}

func TestPendingFor(t *testing.T) {
	b, _, _ := newTestBroker(t)
	ctx := context.Background()

	ch, err := b.Create(ctx, "alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	received, sent, err := b.PendingFor(ctx, "bob")
	if err != nil {
		t.Fatalf("PendingFor bob: %v", err)
	}
	if len(received) != 1 || received[0].ID != ch.ID || len(sent) != 0 {
		t.Fatalf("bob pending mismatch: received=%v sent=%v", received, sent)
	}

	received, sent, err = b.PendingFor(ctx, "alice")
	if err != nil {
		t.Fatalf("PendingFor alice: %v", err)
	}
	if len(sent) != 1 || len(received) != 0 {
		t.Fatalf("alice pending mismatch: received=%v sent=%v", received, sent)
	}

	if _, err := b.Respond(ctx, ch.ID, "bob", false); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	received, sent, err = b.PendingFor(ctx, "bob")
	if err != nil {
		t.Fatalf("PendingFor after decline: %v", err)
	}
	if len(received) != 0 || len(sent) != 0 {
		t.Fatalf("settled challenge still listed: received=%v sent=%v", received, sent)
	}
}
