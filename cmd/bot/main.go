package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/itamhq/teambot/api"
	"github.com/itamhq/teambot/internal/bot"
	"github.com/itamhq/teambot/internal/callbacks"
	"github.com/itamhq/teambot/internal/commands"
	"github.com/itamhq/teambot/internal/gateway"
	"github.com/itamhq/teambot/internal/notify"
	"github.com/itamhq/teambot/internal/stream"
	"github.com/itamhq/teambot/internal/tokens"
	"github.com/itamhq/teambot/pkg/config"
	"github.com/itamhq/teambot/pkg/logger"
	"github.com/itamhq/teambot/pkg/metrics"
	"github.com/itamhq/teambot/pkg/redis"
	"github.com/itamhq/teambot/pkg/telegram"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "teambot"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "teambot",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis)
	requireResource(ctx, logg, "redis", err)
	defer redisClient.Close()

	telegramClient, err := telegram.NewClient(cfg.Telegram.Token, telegram.WithBaseURL(cfg.Telegram.BaseURL))
	requireResource(ctx, logg, "telegram", err)

	backendClient, err := gateway.NewClient(cfg.Backend)
	requireResource(ctx, logg, "backend gateway", err)

	registry := prometheus.NewRegistry()
	pipelineMetrics := metrics.NewPipelineMetrics(registry)

	tokenStore, err := tokens.NewStore(redisClient, cfg.Token)
	requireResource(ctx, logg, "token store", err)

	dispatcher, err := notify.NewDispatcher(telegramClient, backendClient, logg, pipelineMetrics)
	requireResource(ctx, logg, "dispatcher", err)

	consumer, err := stream.NewConsumer(redisClient, dispatcher, cfg.Stream, logg, pipelineMetrics)
	requireResource(ctx, logg, "stream consumer", err)

	resolver, err := callbacks.NewResolver(telegramClient, backendClient, tokenStore, logg, pipelineMetrics)
	requireResource(ctx, logg, "callback resolver", err)

	commandHandler, err := commands.NewHandler(telegramClient, backendClient, tokenStore, commands.NewOnboarding(), logg)
	requireResource(ctx, logg, "command handler", err)

	router, err := bot.NewRouter(telegramClient, commandHandler, resolver, cfg.Telegram.PollTimeout, logg)
	requireResource(ctx, logg, "update router", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithField(runCtx, "env", cfg.App.Env)

	opsServer := &http.Server{
		Addr:    ":" + cfg.App.OpsPort,
		Handler: api.NewHandler(logg, redisClient, registry),
	}
	go func() {
		if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "ops server not working", err)
		}
	}()

	// The consumer failing must not take interactive handling down
	// with it.
	go func() {
		if err := consumer.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(runCtx, "stream consumer stopped", err)
		}
	}()

	logg.Info(runCtx, "teambot ready")
	router.Run(runCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logg.Error(runCtx, "ops server shutdown failed", err)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
