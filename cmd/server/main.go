package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketchat/internal/config"
	"marketchat/internal/domain"
	"marketchat/internal/httpserver"
	"marketchat/internal/moderation"
	"marketchat/internal/obs"
	"marketchat/internal/security"
	"marketchat/internal/store/postgres"
	"marketchat/internal/store/sqlite"
	"marketchat/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := obs.NewLogger(cfg.Env)

	var (
		db    *sql.DB
		items domain.ItemRepository
		convs domain.ConversationRepository
		msgs  domain.MessageRepository
	)
	switch cfg.Store.Driver {
	case "postgres":
		db, err = postgres.Open(cfg.Store.DSN)
		if err == nil {
			err = postgres.Migrate(db)
		}
		if err != nil {
			log.Error("store init failed", "driver", "postgres", "err", err)
			os.Exit(1)
		}
		items = postgres.NewItemRepo(db)
		convs = postgres.NewConversationRepo(db)
		msgs = postgres.NewMessageRepo(db)
	default:
		db, err = sqlite.Open(cfg.Store.DSN)
		if err == nil {
			err = sqlite.Migrate(db)
		}
		if err != nil {
			log.Error("store init failed", "driver", "sqlite", "err", err)
			os.Exit(1)
		}
		items = sqlite.NewItemRepo(db)
		convs = sqlite.NewConversationRepo(db)
		msgs = sqlite.NewMessageRepo(db)
	}
	defer db.Close()

	tokens := security.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	checker := moderation.NewBlocklistChecker(cfg.Chat.BlockedTerms)

	registry := ws.NewRegistry(log, cfg.WS.SweepInterval, cfg.WS.PongWait)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go registry.Run(sweepCtx)

	router := httpserver.NewRouter(cfg, log, items, convs, msgs, registry, tokens, checker)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("starting server", "app", cfg.AppName, "addr", cfg.HTTPAddr(), "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	stopSweep()
}
