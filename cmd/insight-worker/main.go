// Package main 缓存产物重新生成与笔记向量回填的后台 worker
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"match-intel-api/internal/config"
	"match-intel-api/internal/infrastructure/eino/callback"
	"match-intel-api/internal/infrastructure/messaging"
	"match-intel-api/internal/wire"
	"match-intel-api/pkg/logger"
	"match-intel-api/pkg/tracer"
)

const dlqAlertThreshold = 100

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: "insight-worker",
		Environment: cfg.App.Env,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		logger.Fatal(ctx, "failed to init tracer", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	callback.Init()

	svc, cleanup, err := wire.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize services", err)
	}
	defer cleanup()

	streamCfg := cfg.Messaging.RedisStream
	newConsumer := func(stream messaging.Stream, group messaging.ConsumerGroup) *messaging.Consumer {
		return messaging.NewConsumer(svc.Redis.Redis(), messaging.ConsumerConfig{
			Stream:        stream,
			Group:         group,
			ConsumerName:  hostnameConsumerName(),
			BlockTimeout:  streamCfg.BlockTimeout,
			ClaimInterval: streamCfg.ClaimInterval,
			RetryLimit:    streamCfg.RetryLimit,
			Backoff: messaging.BackoffConfig{
				Initial:    streamCfg.RetryBackoff.Initial,
				Max:        streamCfg.RetryBackoff.Max,
				Multiplier: streamCfg.RetryBackoff.Multiplier,
			},
		})
	}

	regen := newConsumer(messaging.StreamInsightRegen, messaging.ConsumerGroupInsightWorker)
	regen.RegisterHandler(messaging.TypeRegenerate, regenerationHandler(svc.Insight))

	embed := newConsumer(messaging.StreamNoteEmbed, messaging.ConsumerGroupEmbedWorker)
	embed.RegisterHandler(messaging.TypeEmbedNote, embedHandler(svc.Narration))

	for _, c := range []*messaging.Consumer{regen, embed} {
		if err := c.Start(ctx); err != nil {
			logger.Fatal(ctx, "failed to start consumer", err)
		}
		go c.MonitorDLQ(ctx, dlqAlertThreshold)
	}

	log := logger.FromContext(ctx)
	log.Info("insight-worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("insight-worker shutting down")
	regen.Stop()
	embed.Stop()
	cancel()
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
