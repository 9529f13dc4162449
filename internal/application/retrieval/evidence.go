package retrieval

import (
	"fmt"
	"strings"

	"match-intel-api/internal/domain/entity"
)

// BundleLimits 证据包尺寸约束
type BundleLimits struct {
	MaxRunesPerItem int
	MaxBundleRunes  int
}

// BundleItem 证据包中的一条证据
type BundleItem struct {
	EvidenceID string
	Candidate  entity.Candidate
	Text       string
}

// Bundle 送往生成器的有界证据集合
type Bundle struct {
	MatchTitle string
	Items      []BundleItem
	// Count 笔记 + 片段洞察数量（比赛情报不计入）
	Count int
	// BestScore 观测到的最高语义相似度
	BestScore float64

	evidenceIDs map[string]struct{}
	segmentIDs  map[string]struct{}
}

var evidencePrefix = map[entity.SourceType]string{
	entity.SourceNote:              "n",
	entity.SourceSegmentInsight:    "s",
	entity.SourceMatchIntelligence: "m",
}

// AssembleBundle 按 笔记 -> 片段洞察 -> 比赛情报 的顺序装配证据，超出总字数预算的条目被丢弃
func AssembleBundle(notes, insights, intel []entity.Candidate, bestSemantic float64, limits BundleLimits) *Bundle {
	if limits.MaxRunesPerItem <= 0 {
		limits.MaxRunesPerItem = 600
	}
	b := &Bundle{
		BestScore:   bestSemantic,
		evidenceIDs: make(map[string]struct{}),
		segmentIDs:  make(map[string]struct{}),
	}

	used := 0
	seq := make(map[entity.SourceType]int)
	for _, list := range [][]entity.Candidate{notes, insights, intel} {
		for _, c := range list {
			text := truncateRunes(compactOneLine(c.Text), limits.MaxRunesPerItem)
			if text == "" {
				continue
			}
			n := len([]rune(text))
			if limits.MaxBundleRunes > 0 && used+n > limits.MaxBundleRunes {
				continue
			}
			used += n

			seq[c.Source]++
			id := fmt.Sprintf("%s%d", evidencePrefix[c.Source], seq[c.Source])
			b.Items = append(b.Items, BundleItem{EvidenceID: id, Candidate: c, Text: text})
			b.evidenceIDs[id] = struct{}{}
			if c.SegmentID != "" {
				b.segmentIDs[c.SegmentID] = struct{}{}
			}
			if c.Source != entity.SourceMatchIntelligence {
				b.Count++
			}
		}
	}
	return b
}

// HasSegment 片段是否出现在证据中
func (b *Bundle) HasSegment(id string) bool {
	_, ok := b.segmentIDs[strings.TrimSpace(id)]
	return ok
}

// HasEvidence 证据 ID 是否存在
func (b *Bundle) HasEvidence(id string) bool {
	_, ok := b.evidenceIDs[strings.TrimSpace(id)]
	return ok
}

// EvidenceItems 转为对外返回的证据列表
func (b *Bundle) EvidenceItems() []entity.EvidenceItem {
	out := make([]entity.EvidenceItem, 0, len(b.Items))
	for _, it := range b.Items {
		out = append(out, entity.EvidenceItem{
			EvidenceID: it.EvidenceID,
			SourceType: it.Candidate.Source,
			SourceID:   it.Candidate.ID,
			SegmentID:  it.Candidate.SegmentID,
			Score:      it.Candidate.Score,
			Signal:     it.Candidate.Signal,
			Text:       it.Text,
		})
	}
	return out
}

// PromptContext 将证据格式化为注入 Prompt 的块，不包含分数
func (b *Bundle) PromptContext() string {
	if b == nil || len(b.Items) == 0 {
		return ""
	}
	lines := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		ref := string(it.Candidate.Source)
		if it.Candidate.SegmentID != "" {
			ref += " segment=" + it.Candidate.SegmentID
		}
		lines = append(lines, fmt.Sprintf("[%s] (%s) %s", it.EvidenceID, ref, it.Text))
	}
	return strings.Join(lines, "\n")
}

// FilterGenerated 丢弃证据包中不存在的片段引用与证据 ID
func FilterGenerated(in *GeneratedAnswer, b *Bundle) *GeneratedAnswer {
	if in == nil {
		return nil
	}
	out := &GeneratedAnswer{
		Answer:              strings.TrimSpace(in.Answer),
		KeyPoints:           make([]entity.KeyPoint, 0, len(in.KeyPoints)),
		RecommendedSegments: make([]entity.RecommendedSegment, 0, len(in.RecommendedSegments)),
	}
	for _, kp := range in.KeyPoints {
		text := strings.TrimSpace(kp.Text)
		if text == "" {
			continue
		}
		out.KeyPoints = append(out.KeyPoints, entity.KeyPoint{
			Text:        text,
			EvidenceIDs: b.knownEvidence(kp.EvidenceIDs),
		})
	}
	seen := make(map[string]struct{})
	for _, rs := range in.RecommendedSegments {
		id := strings.TrimSpace(rs.SegmentID)
		if !b.HasSegment(id) {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.RecommendedSegments = append(out.RecommendedSegments, entity.RecommendedSegment{
			SegmentID:   id,
			Reason:      strings.TrimSpace(rs.Reason),
			EvidenceIDs: b.knownEvidence(rs.EvidenceIDs),
		})
	}
	return out
}

func (b *Bundle) knownEvidence(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if b.HasEvidence(id) {
			out = append(out, id)
		}
	}
	return out
}

func compactOneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "…"
}
