package insight

import "errors"

var (
	// ErrNoNotes 作用域内没有笔记，无可摘要内容
	ErrNoNotes = errors.New("scope has no notes")
	// ErrInsufficientNotes 比赛笔记数低于情报生成门槛
	ErrInsufficientNotes = errors.New("not enough notes for match intelligence")
	// ErrInvariantViolation 作用域内激活行数不为 1，需要显式修复
	ErrInvariantViolation = errors.New("cache invariant violation")
	// ErrUnknownScope 未知作用域类型
	ErrUnknownScope = errors.New("unknown scope type")
)
