package entity

import (
	"fmt"
	"time"
)

// ScopeType 缓存产物的作用域
type ScopeType string

const (
	ScopeSegment ScopeType = "segment"
	ScopeMatch   ScopeType = "match"
)

// ParseScopeType 解析作用域
func ParseScopeType(s string) (ScopeType, error) {
	switch ScopeType(s) {
	case ScopeSegment, ScopeMatch:
		return ScopeType(s), nil
	default:
		return "", fmt.Errorf("invalid scope type: %q", s)
	}
}

// ArtifactState 缓存产物状态
type ArtifactState string

const (
	// ArtifactAbsent 作用域内没有笔记
	ArtifactAbsent ArtifactState = "absent"
	// ArtifactInsufficient 仅比赛级：笔记数低于生成门槛，拒绝生成
	ArtifactInsufficient ArtifactState = "insufficient"
	// ArtifactEligible 可以生成但尚无激活产物
	ArtifactEligible ArtifactState = "eligible"
	ArtifactFresh    ArtifactState = "active_fresh"
	ArtifactStale    ArtifactState = "active_stale"
)

// HasArtifact 状态是否带有激活产物
func (s ArtifactState) HasArtifact() bool {
	return s == ArtifactFresh || s == ArtifactStale
}

// CachedArtifact 片段洞察与比赛情报的公共视图
type CachedArtifact interface {
	ArtifactID() string
	Scope() ScopeType
	ScopeID() string
	GeneratedNoteCount() int
	GeneratedTime() time.Time
}

// MatchTier 比赛情报的语料规模档位
type MatchTier string

const (
	MatchTierInsufficient  MatchTier = "insufficient"
	MatchTierStandard      MatchTier = "standard"
	MatchTierComprehensive MatchTier = "comprehensive"
)
