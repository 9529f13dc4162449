package wire

import (
	"context"
	"time"

	einoembedding "github.com/cloudwego/eino/components/embedding"

	"match-intel-api/internal/application/access"
	"match-intel-api/internal/application/insight"
	"match-intel-api/internal/application/narration"
	"match-intel-api/internal/application/retrieval"
	"match-intel-api/internal/config"
	"match-intel-api/internal/domain/repository"
	infraembedding "match-intel-api/internal/infrastructure/embedding"
	"match-intel-api/internal/infrastructure/fulltext"
	"match-intel-api/internal/infrastructure/llm"
	"match-intel-api/internal/infrastructure/messaging"
	"match-intel-api/internal/infrastructure/persistence/milvus"
	"match-intel-api/internal/infrastructure/persistence/postgres"
	"match-intel-api/internal/infrastructure/persistence/redis"
	"match-intel-api/internal/interfaces/http/handler"
	"match-intel-api/internal/interfaces/http/router"
	"match-intel-api/internal/workflow/chain"
	"match-intel-api/pkg/logger"
)

// Services 应用服务容器（API、worker 与 matchctl 共用）
type Services struct {
	Config    *config.Config
	Postgres  *postgres.Client
	Redis     *redis.Client
	Milvus    *milvus.Client
	Producer  *messaging.Producer
	Engine    *retrieval.Engine
	Insight   *insight.Service
	Narration *narration.Service
}

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMilvusClient 仅在 vector.backend=milvus 时连接；选中后不可达视为启动失败
func ProvideMilvusClient(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	if cfg.Vector.Backend != config.VectorBackendMilvus {
		return nil, func() {}, nil
	}
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMilvusNoteStore 创建并加载笔记集合
func ProvideMilvusNoteStore(ctx context.Context, client *milvus.Client, cfg *config.Config) (*milvus.NoteStore, error) {
	if client == nil {
		return nil, nil
	}
	store := milvus.NewNoteStore(client, cfg.Embedding.Dimension)
	if err := store.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	return messaging.NewProducer(redisClient.Redis(), int64(cfg.Messaging.RedisStream.MaxLen))
}

func ProvideRegenerationTrigger(redisClient *redis.Client, producer *messaging.Producer, cfg *config.Config) *messaging.RegenerationTrigger {
	return messaging.NewRegenerationTrigger(redisClient.Redis(), producer, cfg.Insight.TriggerDedupeTTL)
}

// ProvideEmbedder embedding 不可用时返回 nil，问答退化为仅全文检索
func ProvideEmbedder(ctx context.Context, cfg *config.Config) einoembedding.Embedder {
	embedder, err := infraembedding.NewEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, semantic retrieval disabled", "error", err.Error())
		return nil
	}
	return embedder
}

func ProvideEmbeddingGateway(embedder einoembedding.Embedder, cfg *config.Config) *infraembedding.Gateway {
	return infraembedding.NewGateway(embedder, &cfg.Embedding)
}

func ProvideAccessChecker(matches *postgres.MatchRepository, cache *redis.Cache, cfg *config.Config) *access.Checker {
	return access.NewChecker(matches, cache, cfg.Cache.MatchOrgTTL)
}

// ProvideNoteVectorSearcher pgvector 或 milvus
func ProvideNoteVectorSearcher(notes *postgres.NoteRepository, store *milvus.NoteStore) repository.VectorSearcher {
	if store != nil {
		return store
	}
	return notes
}

// ProvideNoteVectorIndex pgvector 后端无需同步外部索引
func ProvideNoteVectorIndex(store *milvus.NoteStore) repository.NoteVectorIndex {
	if store == nil {
		return nil
	}
	return store
}

// ProvideTextSearcher postgres tsvector 或进程内 bleve
func ProvideTextSearcher(notes *postgres.NoteRepository, cfg *config.Config) (repository.TextSearcher, func()) {
	if cfg.Lexical.Backend != config.LexicalBackendBleve {
		return notes, func() {}
	}
	searcher := fulltext.NewSearcher(notes, 0)
	return searcher, func() {
		_ = searcher.Close()
	}
}

func ProvideAnswerGenerator(factory *llm.EinoFactory, cfg *config.Config) *retrieval.LLMGenerator {
	return retrieval.NewLLMGenerator(chain.NewAnswerChain(factory), retrieval.GeneratorOptions{
		Provider:    cfg.Answer.Provider,
		Timeout:     cfg.Answer.Timeout,
		MaxAttempts: cfg.Answer.MaxAttempts,
	})
}

func ProvideRetrievalEngine(
	cfg *config.Config,
	checker *access.Checker,
	gateway *infraembedding.Gateway,
	notes repository.VectorSearcher,
	text repository.TextSearcher,
	segments *postgres.SegmentInsightRepository,
	intel *postgres.MatchIntelligenceRepository,
	generator *retrieval.LLMGenerator,
) *retrieval.Engine {
	rc := cfg.Retrieval
	return retrieval.NewEngine(
		checker,
		gateway,
		retrieval.NewSemanticRetriever(rc.SimilarityThreshold),
		retrieval.NewLexicalRetriever(text),
		retrieval.Corpora{Notes: notes, Insights: segments, Intelligence: intel},
		generator,
		retrieval.EngineOptions{
			DefaultKNotes:    rc.DefaultKNotes,
			DefaultKInsights: rc.DefaultKInsights,
			MaxKNotes:        rc.MaxKNotes,
			MaxKInsights:     rc.MaxKInsights,
			Limits:           retrieval.BundleLimits{MaxRunesPerItem: rc.MaxRunesPerItem, MaxBundleRunes: rc.MaxBundleRunes},
			Gate: retrieval.GatePolicy{
				MinEvidence:  cfg.Answer.MinEvidence,
				HighEvidence: cfg.Answer.HighEvidence,
				HighScore:    cfg.Answer.HighScore,
			},
		},
	)
}

func ProvideArtifactGenerator(factory *llm.EinoFactory, gateway *infraembedding.Gateway, cfg *config.Config) *insight.LLMGenerator {
	return insight.NewLLMGenerator(
		chain.NewSegmentInsightChain(factory),
		chain.NewMatchIntelligenceChain(factory),
		gateway,
		cfg.Insight.Provider,
		cfg.Insight.Timeout,
	)
}

func ProvideInsightService(
	cfg *config.Config,
	matches *postgres.MatchRepository,
	notes *postgres.NoteRepository,
	segments *postgres.SegmentInsightRepository,
	intel *postgres.MatchIntelligenceRepository,
	checker *access.Checker,
	generator *insight.LLMGenerator,
	trigger *messaging.RegenerationTrigger,
) *insight.Service {
	ic := cfg.Insight
	return insight.NewService(matches, notes, segments, intel, checker, generator, trigger,
		insight.Policy{
			SegmentDriftRatio: ic.SegmentDriftRatio,
			SegmentDriftFloor: ic.SegmentDriftFloor,
			MatchDriftRatio:   ic.MatchDriftRatio,
			MatchDriftFloor:   ic.MatchDriftFloor,
			MatchMinNotes:     ic.MatchMinNotes,
			ComprehensiveAt:   ic.ComprehensiveAt,
		},
		insight.Options{
			HistoryKeep:   ic.HistoryKeep,
			FlightTimeout: 2*ic.Timeout + time.Minute,
		},
	)
}

func ProvideNarrationService(
	notes *postgres.NoteRepository,
	checker *access.Checker,
	gateway *infraembedding.Gateway,
	producer *messaging.Producer,
	index repository.NoteVectorIndex,
) *narration.Service {
	return narration.NewService(notes, checker, gateway, producer, index)
}

// ProvideHealthHandler milvus 未启用时不参与就绪检查
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client, milvusClient *milvus.Client) *handler.HealthHandler {
	deps := []handler.Dependency{
		{Name: "postgres", Checker: pg, Required: true},
		{Name: "redis", Checker: redisClient, Required: true},
	}
	if milvusClient != nil {
		deps = append(deps, handler.Dependency{Name: "milvus", Checker: milvusClient})
	}
	return handler.NewHealthHandler(cfg.App.Version, deps...)
}

func ProvideRouter(cfg *config.Config, handlers router.Handlers, limiter *redis.RateLimiter) *router.Router {
	return router.New(cfg, handlers, limiter)
}
