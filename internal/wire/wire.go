//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"match-intel-api/internal/application/insight"
	"match-intel-api/internal/application/narration"
	"match-intel-api/internal/application/retrieval"
	"match-intel-api/internal/config"
	"match-intel-api/internal/infrastructure/llm"
	"match-intel-api/internal/infrastructure/persistence/postgres"
	"match-intel-api/internal/infrastructure/persistence/redis"
	"match-intel-api/internal/interfaces/http/handler"
	"match-intel-api/internal/interfaces/http/router"
)

// InitializeApp 初始化 HTTP 应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StorageSet,
		ServiceSet,
		HandlerSet,
		ProvideRouter,
	)
	return nil, nil, nil
}

// InitializeServices 初始化服务容器（worker 与 matchctl）
func InitializeServices(ctx context.Context, cfg *config.Config) (*Services, func(), error) {
	wire.Build(
		StorageSet,
		ServiceSet,
		wire.Struct(new(Services), "*"),
	)
	return nil, nil, nil
}

// StorageSet 存储与消息
var StorageSet = wire.NewSet(
	ProvidePostgresClient,
	ProvideRedisClient,
	ProvideMilvusClient,
	ProvideMilvusNoteStore,
	postgres.NewMatchRepository,
	postgres.NewNoteRepository,
	postgres.NewSegmentInsightRepository,
	postgres.NewMatchIntelligenceRepository,
	redis.NewCache,
	ProvideMessagingProducer,
	ProvideRegenerationTrigger,
	ProvideNoteVectorSearcher,
	ProvideNoteVectorIndex,
	ProvideTextSearcher,
)

// ServiceSet 应用服务
var ServiceSet = wire.NewSet(
	ProvideEmbedder,
	ProvideEmbeddingGateway,
	llm.NewEinoFactory,
	ProvideAccessChecker,
	ProvideAnswerGenerator,
	ProvideRetrievalEngine,
	ProvideArtifactGenerator,
	ProvideInsightService,
	ProvideNarrationService,
)

// HandlerSet HTTP 处理器
var HandlerSet = wire.NewSet(
	ProvideHealthHandler,
	redis.NewRateLimiter,
	handler.NewQuestionHandler,
	handler.NewInsightHandler,
	handler.NewNoteHandler,
	wire.Bind(new(handler.QuestionAnswerer), new(*retrieval.Engine)),
	wire.Bind(new(handler.InsightService), new(*insight.Service)),
	wire.Bind(new(handler.NoteService), new(*narration.Service)),
	wire.Struct(new(router.Handlers), "*"),
)
