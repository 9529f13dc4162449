package retrieval

import "errors"

var (
	// ErrQueryRequired 问题为空
	ErrQueryRequired = errors.New("query is required")
	// ErrRetrievalUnavailable 笔记的语义与全文检索均失败
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrEmptyGeneration 模型返回内容为空或无法解析
	ErrEmptyGeneration = errors.New("empty or malformed generation")
)
