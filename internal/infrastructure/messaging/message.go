// Package messaging 基于 Redis Streams 的异步任务队列
package messaging

import (
	"encoding/json"
	"time"
)

// 消息类型
const (
	TypeRegenerate = "insight_regenerate"
	TypeEmbedNote  = "note_embed"
)

// Message 流内消息信封
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	OrgID     string            `json:"org_id,omitempty"`
	MatchID   string            `json:"match_id,omitempty"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType, orgID, matchID string, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		OrgID:     orgID,
		MatchID:   matchID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

func (m *Message) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流定义
type Stream string

const (
	StreamInsightRegen Stream = "stream:insight:regen"
	StreamNoteEmbed    Stream = "stream:note:embed"
)

// DLQStream 对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

const (
	ConsumerGroupInsightWorker ConsumerGroup = "cg-insight-worker"
	ConsumerGroupEmbedWorker   ConsumerGroup = "cg-embed-worker"
)

// RegenerationMessage 重新生成缓存产物
type RegenerationMessage struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	Reason    string `json:"reason"`
}

// EmbedNoteMessage 回填单条笔记向量
type EmbedNoteMessage struct {
	NoteID string `json:"note_id"`
}

// BackoffConfig 待处理消息的重投退避
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// Delay 第 retryCount 次重投前需要的最小空闲时间
func (c BackoffConfig) Delay(retryCount int) time.Duration {
	d := c.Initial
	for i := 0; i < retryCount; i++ {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.Max {
			return c.Max
		}
	}
	return d
}
