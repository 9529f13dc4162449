// Package llm 管理 Eino ChatModel 实例
package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"match-intel-api/internal/config"
)

// EinoFactory 按提供商名称惰性创建并复用 ChatModel
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定名称的 ChatModel，name 为空时使用默认提供商
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}
	chatModel, err := newChatModel(ctx, providerCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

func newChatModel(ctx context.Context, p config.ProviderConfig) (model.BaseChatModel, error) {
	if strings.TrimSpace(p.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	cfg := &openai.ChatModelConfig{
		APIKey:  p.APIKey,
		BaseURL: p.BaseURL,
		Model:   p.Model,
		Timeout: p.Timeout,
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	if p.Temperature > 0 {
		temperature := float32(p.Temperature)
		cfg.Temperature = &temperature
	}
	return openai.NewChatModel(ctx, cfg)
}
