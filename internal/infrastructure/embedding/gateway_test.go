package embedding

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-intel-api/internal/config"
)

type fakeEmbedder struct {
	calls    atomic.Int32
	failures int32
	dim      int
	delay    time.Duration
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= f.failures {
		return nil, errors.New("upstream 503")
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = make([]float64, f.dim)
		out[i][0] = float64(i + 1)
	}
	return out, nil
}

func newTestGateway(e embedding.Embedder, dim, retries int, timeout time.Duration) *Gateway {
	g := NewGateway(e, &config.EmbeddingConfig{Dimension: dim, MaxRetries: retries, Timeout: timeout})
	g.retryDelay = time.Millisecond
	return g
}

func TestGatewayRetriesOnce(t *testing.T) {
	fe := &fakeEmbedder{failures: 1, dim: 3}
	g := newTestGateway(fe, 3, 1, time.Second)

	vec, err := g.Embed(context.Background(), "press high")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
	assert.Equal(t, int32(2), fe.calls.Load())
}

func TestGatewayGivesUpAfterRetry(t *testing.T) {
	fe := &fakeEmbedder{failures: 5, dim: 3}
	g := newTestGateway(fe, 3, 1, time.Second)

	_, err := g.Embed(context.Background(), "press high")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(2), fe.calls.Load())
}

func TestGatewayTimeout(t *testing.T) {
	fe := &fakeEmbedder{dim: 3, delay: 200 * time.Millisecond}
	g := newTestGateway(fe, 3, 0, 10*time.Millisecond)

	_, err := g.Embed(context.Background(), "slow")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewayDimensionMismatch(t *testing.T) {
	fe := &fakeEmbedder{dim: 4}
	g := newTestGateway(fe, 3, 1, time.Second)

	_, err := g.Embed(context.Background(), "x")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), fe.calls.Load())
}

func TestGatewayBatchPreservesOrder(t *testing.T) {
	fe := &fakeEmbedder{dim: 2}
	g := newTestGateway(fe, 2, 0, time.Second)

	out, err := g.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.InDelta(t, 3.0, float64(out[2][0]), 1e-6)
}
