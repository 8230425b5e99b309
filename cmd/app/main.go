// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"ai-generation-queue/internal/config"
	"ai-generation-queue/internal/domain/model"
	"ai-generation-queue/internal/domain/ports/adapter"
	gen "ai-generation-queue/internal/infra/adapters/generation"
	"ai-generation-queue/internal/infra/api"
	pg "ai-generation-queue/internal/infra/db/postgres"
	"ai-generation-queue/internal/infra/logging"
	"ai-generation-queue/internal/infra/metrics"
	red "ai-generation-queue/internal/infra/redis"
	"ai-generation-queue/internal/infra/sched"
	"ai-generation-queue/internal/infra/storage"
	"ai-generation-queue/internal/infra/worker"
	"ai-generation-queue/internal/usecase"
)

const shutdownGrace = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: relaxed config, simulated backends")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	positionCache := red.NewPositionCache(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	jobRepo := pg.NewJobRepo(pool)
	accountRepo := pg.NewAccountRepo(pool, tm)
	keyRepo := pg.NewResourceKeyRepo(pool, tm)
	tierRepo := pg.NewTierRepoCacheDecorator(pg.NewTierRepo(pool), redisClient)

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(accountRepo, logger)
	keyPoolUC := usecase.NewKeyPoolUseCase(keyRepo, logger)
	dispatchUC := usecase.NewDispatchUseCase(jobRepo, tierRepo,
		cfg.Queue.GlobalConcurrency, cfg.Queue.CandidateWindow, logger)
	indexerUC := usecase.NewIndexerUseCase(jobRepo, positionCache, logger)

	// ---- Generation backends ----
	var genAdapter adapter.GenerationAdapter
	if cfg.Runtime.Dev {
		genAdapter = gen.NewNoopAdapter()
		logger.Info().Msg("generation backend: noop (dev)")
	} else {
		openai := gen.NewOpenAIAdapter(cfg.Generation.ImageModel, cfg.Generation.AudioModel, cfg.Generation.AudioVoice)
		gemini := gen.NewGeminiAdapter(cfg.Generation.VideoModel)
		genAdapter = gen.NewDefaultRouter(openai, gemini)
		logger.Info().
			Str("image_model", cfg.Generation.ImageModel).
			Str("video_model", cfg.Generation.VideoModel).
			Str("audio_model", cfg.Generation.AudioModel).
			Msg("generation backends configured")
	}

	artifactStore, err := storage.NewLocalStore(cfg.Artifacts.Dir, cfg.Artifacts.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("artifact store")
	}

	// ---- Workers ----
	workerPool := worker.NewPool(cfg.Queue.Workers, logger)
	workerPool.Start(ctx)
	defer workerPool.Stop()

	supervisor := worker.NewSupervisor(dispatchUC, keyPoolUC, jobRepo, genAdapter,
		artifactStore, cfg.Queue.PollInterval, logger)
	go supervisor.Start(ctx, workerPool)

	watchdog := sched.NewWatchdog(cfg.Queue.WatchdogInterval, cfg.Queue.ProcessingTimeout(),
		jobRepo, locker, logger)
	go func() { _ = watchdog.Run(ctx) }()

	indexerWorker := sched.NewIndexerWorker(cfg.Queue.IndexerInterval, indexerUC, locker, logger)
	go func() { _ = indexerWorker.Run(ctx) }()

	// Admission nudges both loops so fresh jobs start without waiting a
	// full tick.
	admissionUC := usecase.NewAdmissionUseCase(jobRepo, tierRepo, accountRepo, ledgerUC,
		logger, supervisor, indexerWorker)
	jobsUC := usecase.NewJobUseCase(jobRepo, positionCache, logger, supervisor)

	// ---- HTTP ----
	jwtSecret := cfg.API.JWTSecret
	if jwtSecret == "" {
		logger.Warn().Msg("api.jwt_secret not set; using dev secret (INSECURE)")
		jwtSecret = "dev-secret-do-not-use"
	}
	authManager := api.NewAuthManager(jwtSecret, cfg.API.TokenTTL)
	server := api.NewServer(cfg.API.Port, admissionUC, jobsUC, ledgerUC, authManager,
		cfg.Artifacts.Dir, logger)
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	logger.Info().
		Int("port", cfg.API.Port).
		Int("workers", cfg.Queue.Workers).
		Int("global_concurrency", cfg.Queue.GlobalConcurrency).
		Strs("kinds", kinds()).
		Msg("generation queue started")

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}

func kinds() []string {
	ks := []model.GenerationKind{model.KindImage, model.KindVideo, model.KindAudio}
	out := make([]string, len(ks))
	for i, k := range ks {
		out[i] = string(k)
	}
	return out
}
