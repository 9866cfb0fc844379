package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/aegyost/dictattack/internal/config"
	"github.com/aegyost/dictattack/internal/digest"
	"github.com/aegyost/dictattack/internal/events"
	"github.com/aegyost/dictattack/internal/logging"
	"github.com/aegyost/dictattack/internal/manager"
	"github.com/aegyost/dictattack/internal/store"
	"github.com/aegyost/dictattack/internal/wordlist"
	"github.com/aegyost/dictattack/internal/worker"
)

func main() {
	configPath := flag.StringP("config", "c", os.Getenv("CONFIG"), "path to a TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		l := logging.New(logging.Options{})
		l.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store = store.NewMemory()
	if cfg.Mongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		mongoStore, disconnect, err := store.ConnectMongo(connectCtx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to mongo")
		}
		defer disconnect(context.Background())
		st = mongoStore
		log.Info().Str("database", cfg.Mongo.Database).Msg("using mongo result store")
	}

	var pub events.Publisher = events.Nop{}
	if cfg.AMQP.URL != "" {
		amqpPub, closeConn, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to broker")
		}
		defer closeConn()
		pub = amqpPub
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("publishing attack events")
	}

	hasher := digest.NewHasher()
	wk := worker.NewWorker(hasher, st, pub, worker.Options{
		BatchSize:        cfg.Attack.BatchSize,
		ProgressInterval: cfg.Attack.ProgressInterval,
		MaxConcurrent:    cfg.Attack.MaxConcurrent,
	}, log)
	defer wk.Close()

	mgr := manager.NewManager(wk, hasher, st, wordlist.NewDir(cfg.Attack.WordlistDir),
		time.Duration(cfg.Attack.RunTimeout), log)
	mgr.BenchmarkIterations = cfg.Attack.BenchIterations

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mgr.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("manager started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("manager stopped")
}
