// Package model 定义工作流输入输出
package model

// LLMOptions 单次调用的模型参数，空值使用提供商默认配置
type LLMOptions struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}

// NoteLine 注入 Prompt 的一条笔记
type NoteLine struct {
	ID        string
	SegmentID string
	Text      string
}
