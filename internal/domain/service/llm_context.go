// Package service 定义跨层共享的调用上下文约定
package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyWorkflow llmCtxKey = "llm_workflow"
	llmCtxKeyProvider llmCtxKey = "llm_provider"
)

// 工作流名称，作为 LLM 指标的 workflow 标签
const (
	WorkflowAnswer            = "answer"
	WorkflowSegmentInsight    = "segment_insight"
	WorkflowMatchIntelligence = "match_intelligence"
)

const unknown = "unknown"

func WithWorkflow(ctx context.Context, workflow string) context.Context {
	w := strings.TrimSpace(workflow)
	if w == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyWorkflow, w)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	return WithProvider(WithWorkflow(ctx, workflow), provider)
}

func WorkflowFromContext(ctx context.Context) string {
	return stringValue(ctx, llmCtxKeyWorkflow)
}

func ProviderFromContext(ctx context.Context) string {
	return stringValue(ctx, llmCtxKeyProvider)
}

func stringValue(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return unknown
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return unknown
	}
	return s
}
