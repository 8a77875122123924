package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dermaluz/agenda/internal/agenda"
	"github.com/dermaluz/agenda/internal/api"
	"github.com/dermaluz/agenda/internal/config"
	"github.com/dermaluz/agenda/internal/db"
	"github.com/dermaluz/agenda/internal/directory"
	"github.com/dermaluz/agenda/internal/docstore"
	"github.com/dermaluz/agenda/internal/logging"
	redisclient "github.com/dermaluz/agenda/internal/redis"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("api-server", "dev")
		log.Fatal().Err(err).Msg("config load error")
	}
	logging.Setup("api-server", cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	// Connect Redis
	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	store := docstore.New(pgPool)
	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	err = store.Migrate(migCtx)
	cancelMig()
	if err != nil {
		log.Fatal().Err(err).Msg("docstore migration error")
	}

	repo := agenda.NewDocRepository(store)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
	dirs := agenda.Directories{
		Patients:   directory.NewPatients(store),
		Treatments: directory.NewTreatments(store),
		Offices:    directory.NewOffices(store),
	}
	engine := agenda.NewEngine(repo, locker, dirs, cfg.WriteTimeout)

	view := agenda.NewView()
	go view.Run(rootCtx, repo)

	router := api.NewRouter(api.RouterConfig{
		Engine:  engine,
		View:    view,
		Dirs:    dirs,
		PgPool:  pgPool,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	log.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}
}
