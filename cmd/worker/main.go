package main

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-faktur/internal/common"
	"github.com/noah-isme/backend-faktur/internal/config"
	"github.com/noah-isme/backend-faktur/internal/document"
	"github.com/noah-isme/backend-faktur/internal/obs"
	"github.com/noah-isme/backend-faktur/internal/render"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("faktur", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	var mailer common.EmailSender = common.NopEmailSender{}
	if cfg.SMTPAddr != "" {
		mailer = common.SMTPEmail{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		}
	}

	worker := &render.DeliveryWorker{
		Docs:     document.NewStore(pool),
		Renderer: &render.PDF{Assets: render.NewHTTPAssets(5 * time.Second)},
		Mail:     mailer,
		Logger:   logger,
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB},
		asynq.Config{
			Concurrency: 5,
			Queues:      map[string]int{cfg.DeliveryQueue: 1},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(render.TypeDocumentDelivery, worker.ProcessTask)

	logger.Info().Str("queue", cfg.DeliveryQueue).Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker exited unexpectedly")
	}
}
