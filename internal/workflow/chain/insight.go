package chain

import (
	"context"
	"fmt"
	"strings"

	llmctx "match-intel-api/internal/domain/service"
	wfmodel "match-intel-api/internal/workflow/model"
	wfnode "match-intel-api/internal/workflow/node"
	workflowport "match-intel-api/internal/workflow/port"
	workflowprompt "match-intel-api/internal/workflow/prompt"
)

const (
	maxRunesPerNote  = 500
	maxNotesBlockLen = 40000
)

// SegmentInsightChain 片段洞察摘要
type SegmentInsightChain struct {
	inner *structuredChain[*wfmodel.SegmentInsightInput, wfmodel.SegmentInsightOutput]
}

func NewSegmentInsightChain(factory workflowport.ChatModelFactory) *SegmentInsightChain {
	return &SegmentInsightChain{
		inner: newStructuredChain[*wfmodel.SegmentInsightInput, wfmodel.SegmentInsightOutput](factory, structuredSpec[*wfmodel.SegmentInsightInput]{
			name:       "segment_insight",
			workflow:   llmctx.WorkflowSegmentInsight,
			promptID:   workflowprompt.PromptSegmentInsightV1,
			schemaName: "segment_insight",
			jsonSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []any{"headline", "sentence"},
				"properties": map[string]any{
					"headline":  map[string]any{"type": "string"},
					"sentence":  map[string]any{"type": "string"},
					"narrative": map[string]any{"type": "string"},
				},
			},
			vars: func(in *wfmodel.SegmentInsightInput) map[string]any {
				return map[string]any{
					"match_title":   strings.TrimSpace(in.MatchTitle),
					"segment_label": strings.TrimSpace(in.SegmentLabel),
					"notes":         wfnode.BuildNotesBlock(in.Notes, maxRunesPerNote, maxNotesBlockLen),
				}
			},
			options: func(in *wfmodel.SegmentInsightInput) wfmodel.LLMOptions { return in.LLMOptions },
		}),
	}
}

func (c *SegmentInsightChain) Invoke(ctx context.Context, in *wfmodel.SegmentInsightInput) (*wfmodel.SegmentInsightOutput, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	return c.inner.Invoke(ctx, in)
}

// MatchIntelligenceChain 比赛情报报告
type MatchIntelligenceChain struct {
	inner *structuredChain[*wfmodel.MatchIntelligenceInput, wfmodel.MatchIntelligenceOutput]
}

func NewMatchIntelligenceChain(factory workflowport.ChatModelFactory) *MatchIntelligenceChain {
	return &MatchIntelligenceChain{
		inner: newStructuredChain[*wfmodel.MatchIntelligenceInput, wfmodel.MatchIntelligenceOutput](factory, structuredSpec[*wfmodel.MatchIntelligenceInput]{
			name:       "match_intelligence",
			workflow:   llmctx.WorkflowMatchIntelligence,
			promptID:   workflowprompt.PromptMatchIntelligenceV1,
			schemaName: "match_intelligence",
			jsonSchema: map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []any{"headline", "summary", "sections"},
				"properties": map[string]any{
					"headline": map[string]any{"type": "string"},
					"summary":  map[string]any{"type": "string"},
					"sections": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type":                 "object",
							"additionalProperties": false,
							"required":             []any{"name", "body"},
							"properties": map[string]any{
								"name": map[string]any{"type": "string"},
								"body": map[string]any{"type": "string"},
							},
						},
					},
				},
			},
			vars: func(in *wfmodel.MatchIntelligenceInput) map[string]any {
				return map[string]any{
					"match_title": strings.TrimSpace(in.MatchTitle),
					"tier":        in.Tier,
					"sections":    wfnode.BuildSectionList(in.Sections),
					"notes":       wfnode.BuildNotesBlock(in.Notes, maxRunesPerNote, maxNotesBlockLen),
				}
			},
			options: func(in *wfmodel.MatchIntelligenceInput) wfmodel.LLMOptions { return in.LLMOptions },
		}),
	}
}

func (c *MatchIntelligenceChain) Invoke(ctx context.Context, in *wfmodel.MatchIntelligenceInput) (*wfmodel.MatchIntelligenceOutput, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	return c.inner.Invoke(ctx, in)
}
