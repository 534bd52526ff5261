package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/wisko/chess-arena/internal/archive"
	"github.com/wisko/chess-arena/internal/auth"
	"github.com/wisko/chess-arena/internal/challenge"
	appcfg "github.com/wisko/chess-arena/internal/config"
	"github.com/wisko/chess-arena/internal/fanout"
	"github.com/wisko/chess-arena/internal/game"
	"github.com/wisko/chess-arena/internal/httpapi"
	"github.com/wisko/chess-arena/internal/msgcat"
	"github.com/wisko/chess-arena/internal/obslog"
	"github.com/wisko/chess-arena/internal/presence"
	"github.com/wisko/chess-arena/internal/rules"
	"github.com/wisko/chess-arena/internal/session"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	opts, err := parseRedisURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis url error: %v", err)
	}
	rdb := redis.NewClient(opts)
	pctx, pcancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pctx).Err(); err != nil {
		pcancel()
		log.Fatalf("redis ping error: %v", err)
	}
	pcancel()

	games := game.NewManager(rdb, rules.New(), cfg.GameTTL)

	// Finished games are archived to Postgres when configured; otherwise
	// results stay in process memory, which is enough for local runs.
	var pgRepo *archive.Repository
	if cfg.DatabaseURL != "" {
		pgRepo, err = archive.NewRepository(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("archive init error: %v", err)
		}
		games.AttachArchive(pgRepo)
	} else {
		games.AttachArchive(archive.NewMemory())
		obslog.L().Warn("archive_in_memory")
	}

	hub := fanout.NewHub()
	broker := challenge.NewBroker(rdb, games, hub, cfg.ChallengeTTL)

	registry := presence.NewRegistry(hub, cfg.PresenceTimeout, cfg.PresenceGrace)
	sweepStop := make(chan struct{})
	go registry.RunSweeper(30*time.Second, sweepStop)

	catalog, err := msgcat.New(cfg.MsgTemplateDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}
	verifier := auth.NewVerifier(cfg.AuthSecret)

	gateway := session.NewGateway(hub, registry, games, verifier, catalog)
	wsSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           gateway.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	api := httpapi.NewServer(registry, games, broker, verifier)
	apiSrv := &fasthttp.Server{
		Handler:      api.Handler,
		Name:         "chess-arena",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() { errCh <- wsSrv.ListenAndServe() }()
	go func() { errCh <- apiSrv.ListenAndServe(cfg.APIListenAddr) }()

	obslog.L().Info("arena_started",
		zap.String("ws_addr", cfg.ListenAddr),
		zap.String("api_addr", cfg.APIListenAddr),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		obslog.L().Info("arena_stopping", zap.String("signal", sig.String()))
	case err := <-errCh:
		obslog.L().Error("server_error", zap.Error(err))
	}

	close(sweepStop)
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = wsSrv.Shutdown(sctx)
	scancel()
	_ = apiSrv.Shutdown()
	_ = rdb.Close()
	if pgRepo != nil {
		_ = pgRepo.Close()
	}
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
