package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"match-intel-api/internal/domain/entity"
)

const regenLockPrefix = "insight:regen:pending:"

// RegenerationTrigger 过期读触发的异步重新生成；同一作用域在 dedupeTTL 内只投递一次
type RegenerationTrigger struct {
	client    *redis.Client
	producer  *Producer
	dedupeTTL time.Duration
}

func NewRegenerationTrigger(client *redis.Client, producer *Producer, dedupeTTL time.Duration) *RegenerationTrigger {
	if dedupeTTL <= 0 {
		dedupeTTL = 2 * time.Minute
	}
	return &RegenerationTrigger{client: client, producer: producer, dedupeTTL: dedupeTTL}
}

// Trigger 返回是否真正投递了消息
func (t *RegenerationTrigger) Trigger(ctx context.Context, orgID, matchID string, scope entity.ScopeType, scopeID string) (bool, error) {
	key := regenLockPrefix + string(scope) + ":" + scopeID
	ok, err := t.client.SetNX(ctx, key, time.Now().Unix(), t.dedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("regeneration dedupe: %w", err)
	}
	if !ok {
		return false, nil
	}

	_, err = t.producer.PublishRegeneration(ctx, orgID, matchID, &RegenerationMessage{
		ScopeType: string(scope),
		ScopeID:   scopeID,
		Reason:    "stale_read",
	})
	if err != nil {
		// 投递失败时释放去重窗口，允许下一次读取重试
		t.client.Del(ctx, key)
		return false, err
	}
	return true, nil
}

// Release 生成完成后清除去重标记
func (t *RegenerationTrigger) Release(ctx context.Context, scope entity.ScopeType, scopeID string) error {
	return t.client.Del(ctx, regenLockPrefix+string(scope)+":"+scopeID).Err()
}
