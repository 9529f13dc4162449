// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	Vector        VectorConfig        `yaml:"vector" mapstructure:"vector"`
	Lexical       LexicalConfig       `yaml:"lexical" mapstructure:"lexical"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Embedding     EmbeddingConfig     `yaml:"embedding" mapstructure:"embedding"`
	Messaging     MessagingConfig     `yaml:"messaging" mapstructure:"messaging"`
	Retrieval     RetrievalConfig     `yaml:"retrieval" mapstructure:"retrieval"`
	Answer        AnswerConfig        `yaml:"answer" mapstructure:"answer"`
	Insight       InsightConfig       `yaml:"insight" mapstructure:"insight"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// DSN 返回 gorm 使用的 key=value 形式连接串
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// URL 返回 golang-migrate 使用的 URL 形式连接串
func (c PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`
	// MatchOrgTTL 比赛归属组织的缓存时长
	MatchOrgTTL time.Duration `yaml:"match_org_ttl" mapstructure:"match_org_ttl"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// 向量后端
const (
	VectorBackendPgvector = "pgvector"
	VectorBackendMilvus   = "milvus"
)

// VectorConfig 向量检索配置
type VectorConfig struct {
	// Backend 笔记向量检索后端：pgvector | milvus
	Backend string       `yaml:"backend" mapstructure:"backend"`
	Milvus  MilvusConfig `yaml:"milvus" mapstructure:"milvus"`
}

// MilvusConfig Milvus 配置
type MilvusConfig struct {
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	CollectionPrefix   string `yaml:"collection_prefix" mapstructure:"collection_prefix"`
	HNSWM              int    `yaml:"hnsw_m" mapstructure:"hnsw_m"`
	HNSWEfConstruction int    `yaml:"hnsw_ef_construction" mapstructure:"hnsw_ef_construction"`
	SearchEf           int    `yaml:"search_ef" mapstructure:"search_ef"`
}

// 全文检索后端
const (
	LexicalBackendPostgres = "postgres"
	LexicalBackendBleve    = "bleve"
)

// LexicalConfig 全文检索配置
type LexicalConfig struct {
	// Backend postgres (tsvector) | bleve (进程内索引)
	Backend string `yaml:"backend" mapstructure:"backend"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Model       string        `yaml:"model" mapstructure:"model"`
	MaxTokens   int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmbeddingConfig Embedding 配置
type EmbeddingConfig struct {
	// Provider openai (eino-ext) | http (OpenAI 兼容的自建服务)
	Provider   string        `yaml:"provider" mapstructure:"provider"`
	Model      string        `yaml:"model" mapstructure:"model"`
	APIKey     string        `yaml:"api_key" mapstructure:"api_key"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Dimension  int           `yaml:"dimension" mapstructure:"dimension"`
	BatchSize  int           `yaml:"batch_size" mapstructure:"batch_size"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
}

// MessagingConfig 消息队列配置
type MessagingConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
}

// RedisStreamConfig Redis Stream 配置
type RedisStreamConfig struct {
	MaxLen              int           `yaml:"max_len" mapstructure:"max_len"`
	ConsumerGroupPrefix string        `yaml:"consumer_group_prefix" mapstructure:"consumer_group_prefix"`
	BlockTimeout        time.Duration `yaml:"block_timeout" mapstructure:"block_timeout"`
	ClaimInterval       time.Duration `yaml:"claim_interval" mapstructure:"claim_interval"`
	RetryLimit          int           `yaml:"retry_limit" mapstructure:"retry_limit"`
	RetryBackoff        BackoffConfig `yaml:"retry_backoff" mapstructure:"retry_backoff"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial" mapstructure:"initial"`
	Max        time.Duration `yaml:"max" mapstructure:"max"`
	Multiplier float64       `yaml:"multiplier" mapstructure:"multiplier"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	// SimilarityThreshold 语义检索相似度下限（严格大于）
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	DefaultKNotes       int     `yaml:"default_k_notes" mapstructure:"default_k_notes"`
	DefaultKInsights    int     `yaml:"default_k_insights" mapstructure:"default_k_insights"`
	MaxKNotes           int     `yaml:"max_k_notes" mapstructure:"max_k_notes"`
	MaxKInsights        int     `yaml:"max_k_insights" mapstructure:"max_k_insights"`
	// MaxRunesPerItem 证据包中单条证据的最大字符数
	MaxRunesPerItem int `yaml:"max_runes_per_item" mapstructure:"max_runes_per_item"`
	// MaxBundleRunes 证据包总字符上限
	MaxBundleRunes int `yaml:"max_bundle_runes" mapstructure:"max_bundle_runes"`
}

// AnswerConfig 问答门控与生成配置
type AnswerConfig struct {
	MinEvidence  int           `yaml:"min_evidence" mapstructure:"min_evidence"`
	HighEvidence int           `yaml:"high_evidence" mapstructure:"high_evidence"`
	HighScore    float64       `yaml:"high_score" mapstructure:"high_score"`
	Provider     string        `yaml:"provider" mapstructure:"provider"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// InsightConfig 缓存产物（片段洞察 / 比赛情报）配置
type InsightConfig struct {
	SegmentDriftRatio float64       `yaml:"segment_drift_ratio" mapstructure:"segment_drift_ratio"`
	SegmentDriftFloor int           `yaml:"segment_drift_floor" mapstructure:"segment_drift_floor"`
	MatchDriftRatio   float64       `yaml:"match_drift_ratio" mapstructure:"match_drift_ratio"`
	MatchDriftFloor   int           `yaml:"match_drift_floor" mapstructure:"match_drift_floor"`
	MatchMinNotes     int           `yaml:"match_min_notes" mapstructure:"match_min_notes"`
	ComprehensiveAt   int           `yaml:"comprehensive_at" mapstructure:"comprehensive_at"`
	Provider          string        `yaml:"provider" mapstructure:"provider"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`
	HistoryKeep       int           `yaml:"history_keep" mapstructure:"history_keep"`
	TriggerDedupeTTL  time.Duration `yaml:"trigger_dedupe_ttl" mapstructure:"trigger_dedupe_ttl"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Secret  string `yaml:"secret" mapstructure:"secret"`
	Issuer  string `yaml:"issuer" mapstructure:"issuer"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerSecond int  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int  `yaml:"burst" mapstructure:"burst"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// Validate 校验互相约束的配置项
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case VectorBackendPgvector, VectorBackendMilvus:
	default:
		return fmt.Errorf("vector.backend must be %q or %q, got %q", VectorBackendPgvector, VectorBackendMilvus, c.Vector.Backend)
	}
	switch c.Lexical.Backend {
	case LexicalBackendPostgres, LexicalBackendBleve:
	default:
		return fmt.Errorf("lexical.backend must be %q or %q, got %q", LexicalBackendPostgres, LexicalBackendBleve, c.Lexical.Backend)
	}
	if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold >= 1 {
		return fmt.Errorf("retrieval.similarity_threshold must be in [0,1), got %v", c.Retrieval.SimilarityThreshold)
	}
	if c.Answer.MinEvidence <= 0 || c.Answer.HighEvidence < c.Answer.MinEvidence {
		return fmt.Errorf("answer.high_evidence (%d) must be >= answer.min_evidence (%d) > 0", c.Answer.HighEvidence, c.Answer.MinEvidence)
	}
	if c.Insight.MatchMinNotes <= 0 {
		return fmt.Errorf("insight.match_min_notes must be positive")
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding.dimension must be positive")
	}
	if c.Security.JWT.Enabled && c.Security.JWT.Secret == "" {
		return fmt.Errorf("security.jwt.secret is required when jwt is enabled")
	}
	return nil
}
