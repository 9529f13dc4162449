package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"match-intel-api/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流，附带当前请求的 request_id / trace_id
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	if v, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.SetMetadata("request_id", v)
	}
	if sc := span.SpanContext(); sc.IsValid() {
		msg.SetMetadata("trace_id", sc.TraceID().String())
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishRegeneration 发布产物重新生成任务
func (p *Producer) PublishRegeneration(ctx context.Context, orgID, matchID string, job *RegenerationMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypeRegenerate, orgID, matchID, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("scope", job.ScopeType+":"+job.ScopeID)
	return p.Publish(ctx, StreamInsightRegen, msg)
}

// PublishEmbedNote 发布笔记向量回填任务
func (p *Producer) PublishEmbedNote(ctx context.Context, orgID, matchID, noteID string) (string, error) {
	msg, err := NewMessage(noteID, TypeEmbedNote, orgID, matchID, &EmbedNoteMessage{NoteID: noteID})
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, StreamNoteEmbed, msg)
}
