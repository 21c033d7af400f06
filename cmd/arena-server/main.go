package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wagerchess/internal/arena"
	appcfg "wagerchess/internal/config"
	"wagerchess/internal/gateway"
	"wagerchess/internal/identity"
	"wagerchess/internal/ledger"
	"wagerchess/internal/match"
	"wagerchess/internal/msgcat"
	"wagerchess/internal/obslog"
	"wagerchess/internal/rules"
	"wagerchess/internal/session"
	"wagerchess/internal/settle"
	"wagerchess/internal/store"

	"go.uber.org/zap"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}

	rdb, err := ledger.Open(cfg.RedisURL)
	if err != nil {
		log.Fatalf("ledger init error: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	bank := ledger.NewRedisLedger(rdb)

	var gameStore store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("store init error: %v", err)
		}
		defer func() { _ = pg.Close() }()
		gameStore = pg
	} else {
		obslog.L().Warn("DATABASE_URL not set, using in-memory game store")
		gameStore = store.NewMemoryStore()
	}

	var idp identity.Provider
	if cfg.IdentityBaseURL != "" {
		idp = identity.NewClient(cfg.IdentityBaseURL, identity.WithHeaderProvider(func() map[string]string {
			if cfg.IdentityToken == "" {
				return nil
			}
			return map[string]string{"Authorization": "Bearer " + cfg.IdentityToken}
		}))
	} else {
		obslog.L().Warn("IDENTITY_BASE_URL not set, using static identity provider")
		idp = identity.NewStaticProvider()
	}

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}

	queue := match.NewQueue(cfg.RatingWindow, cfg.WaitEstimateSeconds)
	registry := session.NewRegistry()
	settler := settle.NewCoordinator(bank, gameStore)
	manager := arena.NewManager(queue, registry, settler, gameStore, rules.NewChessEngine(),
		arena.WithGameTypes(cfg.GameTypes))
	srv := gateway.NewServer(manager, idp, cat)

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		obslog.L().Info("server_listen", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("server_error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	obslog.L().Info("server_stopped")
}
