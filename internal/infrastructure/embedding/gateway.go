package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/cloudwego/eino/components/embedding"

	"match-intel-api/internal/config"
	"match-intel-api/internal/domain/entity"
	"match-intel-api/pkg/metrics"
)

// ErrUnavailable 重试后仍无法得到向量
var ErrUnavailable = errors.New("embedding unavailable")

// Gateway 在 Eino Embedder 之上加超时、一次重试与维度校验
type Gateway struct {
	embedder   embedding.Embedder
	timeout    time.Duration
	maxRetries int
	dimension  int
	retryDelay time.Duration
}

// NewGateway 创建网关；cfg.MaxRetries 为失败后的额外尝试次数
func NewGateway(embedder embedding.Embedder, cfg *config.EmbeddingConfig) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Gateway{
		embedder:   embedder,
		timeout:    timeout,
		maxRetries: retries,
		dimension:  cfg.Dimension,
		retryDelay: 200 * time.Millisecond,
	}
}

// Embed 单条文本向量化
func (g *Gateway) Embed(ctx context.Context, text string) (entity.Vector, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch 批量向量化，返回顺序与输入一致
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([]entity.Vector, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if g == nil || g.embedder == nil {
		return nil, fmt.Errorf("%w: embedder not configured", ErrUnavailable)
	}

	op := func() ([][]float64, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		raw, err := g.embedder.EmbedStrings(callCtx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		if len(raw) != len(texts) {
			return nil, backoff.Permanent(fmt.Errorf("embedder returned %d vectors for %d texts", len(raw), len(texts)))
		}
		return raw, nil
	}

	raw, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(g.retryDelay)),
		backoff.WithMaxTries(uint(g.maxRetries+1)),
	)
	if err != nil {
		metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make([]entity.Vector, len(raw))
	for i, r := range raw {
		if g.dimension > 0 && len(r) != g.dimension {
			metrics.EmbeddingCallTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("%w: dimension mismatch: want %d, got %d", ErrUnavailable, g.dimension, len(r))
		}
		out[i] = entity.VectorFromFloat64(r)
	}
	metrics.EmbeddingCallTotal.WithLabelValues("success").Inc()
	return out, nil
}
