package chain

import (
	"context"
	"fmt"
	"strings"

	llmctx "match-intel-api/internal/domain/service"
	wfmodel "match-intel-api/internal/workflow/model"
	workflowport "match-intel-api/internal/workflow/port"
	workflowprompt "match-intel-api/internal/workflow/prompt"
)

// AnswerChain 证据问答
type AnswerChain struct {
	inner *structuredChain[*wfmodel.AnswerInput, wfmodel.AnswerOutput]
}

func NewAnswerChain(factory workflowport.ChatModelFactory) *AnswerChain {
	return &AnswerChain{
		inner: newStructuredChain[*wfmodel.AnswerInput, wfmodel.AnswerOutput](factory, structuredSpec[*wfmodel.AnswerInput]{
			name:       "answer",
			workflow:   llmctx.WorkflowAnswer,
			promptID:   workflowprompt.PromptAnswerV1,
			schemaName: "match_answer",
			jsonSchema: answerJSONSchema(),
			vars: func(in *wfmodel.AnswerInput) map[string]any {
				return map[string]any{
					"match_title": strings.TrimSpace(in.MatchTitle),
					"evidence":    in.Evidence,
					"question":    strings.TrimSpace(in.Question),
				}
			},
			options: func(in *wfmodel.AnswerInput) wfmodel.LLMOptions { return in.LLMOptions },
		}),
	}
}

func (c *AnswerChain) Invoke(ctx context.Context, in *wfmodel.AnswerInput) (*wfmodel.AnswerOutput, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	return c.inner.Invoke(ctx, in)
}

func answerJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"answer", "key_points", "recommended_segments"},
		"properties": map[string]any{
			"answer": map[string]any{"type": "string"},
			"key_points": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"text", "evidence_ids"},
					"properties": map[string]any{
						"text":         map[string]any{"type": "string"},
						"evidence_ids": stringArraySchema(),
					},
				},
			},
			"recommended_segments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"segment_id", "reason", "evidence_ids"},
					"properties": map[string]any{
						"segment_id":   map[string]any{"type": "string"},
						"reason":       map[string]any{"type": "string"},
						"evidence_ids": stringArraySchema(),
					},
				},
			},
		},
	}
}
