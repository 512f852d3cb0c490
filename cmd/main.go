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

	"github.com/JDRadatti/listenparty/internal"
	"github.com/JDRadatti/listenparty/internal/config"
	"github.com/JDRadatti/listenparty/internal/store"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Set up logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	if cfg.LogFile != "" {
		logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer logFile.Close()
		log.SetOutput(logFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence. A backend that cannot be reached leaves the service
	// running memory-only.
	var persister *internal.Persister
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	})
	if err != nil {
		log.Printf("Store %s unavailable, running memory-only: %v", cfg.StoreDriver, err)
		st = store.Nop{}
	}
	defer st.Close()
	if _, ok := st.(store.Nop); !ok {
		persister = internal.NewPersister(st)
	}

	// Fanout
	hub := internal.NewHub()
	var transport internal.Transport = hub
	if cfg.Fanout == config.FanoutRedis {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		log.Printf("Redis fanout enabled; parties are owned by this instance only, run a single engine per party set")
		relay := internal.NewRedisRelay(hub, rdb, "")
		sub, err := relay.Subscribe(ctx)
		if err != nil {
			log.Fatalf("Failed to subscribe to relay: %v", err)
		}
		go relay.Run(ctx)
		go relay.Forward(ctx, sub)
		transport = relay
	}

	pm := internal.NewPartyManager(transport, internal.PartyManagerOptions{
		HostGrace:    cfg.HostGrace,
		PartyTTL:     cfg.PartyTTL,
		SyncInterval: cfg.SyncInterval,
		Persister:    persister,
	})
	// The persister outlives the manager so snapshots queued while the
	// manager drains still reach the store.
	persistCtx, cancelPersist := context.WithCancel(context.Background())
	defer cancelPersist()
	persisted := make(chan struct{})
	if persister != nil {
		n, err := pm.Restore(ctx, st)
		if err != nil {
			log.Printf("Restore failed, starting empty: %v", err)
		} else {
			log.Printf("Restored %d parties from %s", n, cfg.StoreDriver)
		}
		go func() {
			persister.Run(persistCtx)
			close(persisted)
		}()
	} else {
		close(persisted)
	}
	go pm.Run(ctx)
	go pm.RunSweep(ctx)

	// Start server
	srv := internal.NewServer(pm, hub)
	httpServer := &http.Server{
		Addr: cfg.Addr,
		Handler: srv.Router(
			middleware.RequestID,
			middleware.RealIP,
			middleware.Logger,
			middleware.Recoverer,
		),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	log.Printf("listenparty listening on %s", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("Failed to ListenAndServe: ", err)
	}
	<-pm.Done()
	cancelPersist()
	<-persisted
}
