// Package chain 基于 Eino compose 的单次结构化 LLM 调用链
package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "match-intel-api/internal/domain/service"
	wfmodel "match-intel-api/internal/workflow/model"
	wfnode "match-intel-api/internal/workflow/node"
	workflowport "match-intel-api/internal/workflow/port"
	workflowprompt "match-intel-api/internal/workflow/prompt"
	"match-intel-api/pkg/logger"
)

var defaultPromptRegistry = workflowprompt.NewRegistry()

// structuredSpec 描述一条 init -> template -> llm -> finalize 链
type structuredSpec[I any] struct {
	name       string
	workflow   string
	promptID   workflowprompt.PromptID
	schemaName string
	jsonSchema map[string]any
	vars       func(in I) map[string]any
	options    func(in I) wfmodel.LLMOptions
}

// structuredChain 单次同步调用，不含工具循环
type structuredChain[I any, O any] struct {
	factory workflowport.ChatModelFactory
	spec    structuredSpec[I]

	chainOnce sync.Once
	chain     compose.Runnable[I, *O]
	chainErr  error
}

type structuredState[I any] struct {
	In       I
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func newStructuredChain[I any, O any](factory workflowport.ChatModelFactory, spec structuredSpec[I]) *structuredChain[I, O] {
	return &structuredChain[I, O]{factory: factory, spec: spec}
}

func (c *structuredChain[I, O]) Invoke(ctx context.Context, in I) (*O, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.build(context.Background())
	})
	if c.chainErr != nil {
		return nil, c.chainErr
	}
	return c.chain.Invoke(ctx, in)
}

func (c *structuredChain[I, O]) build(ctx context.Context) (compose.Runnable[I, *O], error) {
	name := c.spec.name
	chain := compose.NewChain[I, *O]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, in I) (*structuredState[I], error) {
			return &structuredState[I]{In: in}, nil
		}),
		compose.WithNodeName(name+".init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *structuredState[I]) (*structuredState[I], error) {
			tpl, err := defaultPromptRegistry.ChatTemplate(c.spec.promptID)
			if err != nil {
				return nil, err
			}
			msgs, err := tpl.Format(ctx, c.spec.vars(st.In))
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName(name+".template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *structuredState[I]) (*structuredState[I], error) {
			opts := c.spec.options(st.In)
			provider := strings.TrimSpace(opts.Provider)

			ctx = llmctx.WithWorkflowProvider(ctx, c.spec.workflow, provider)
			chatModel, err := c.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, c.modelOptions(opts, true)...)
			if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"workflow", c.spec.workflow,
					"provider", provider,
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, c.modelOptions(opts, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName(name+".llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *structuredState[I]) (*O, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return wfnode.DecodeJSON[O](st.OutMsg.Content)
		}),
		compose.WithNodeName(name+".finalize"),
	)

	return chain.Compile(ctx)
}

func (c *structuredChain[I, O]) modelOptions(in wfmodel.LLMOptions, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}
	if enableSchema && c.spec.jsonSchema != nil {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   c.spec.schemaName,
					"strict": false,
					"schema": c.spec.jsonSchema,
				},
			},
		}))
	}
	return opts
}

func stringArraySchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}
