package retrieval

import "match-intel-api/internal/domain/entity"

// MergeCandidates 合并多路检索结果：按 ID 去重并保留最高分，排序后截断到 k
func MergeCandidates(k int, lists ...[]entity.Candidate) []entity.Candidate {
	if k <= 0 {
		return nil
	}

	byID := make(map[string]int)
	merged := make([]entity.Candidate, 0)
	for _, list := range lists {
		for _, c := range list {
			if idx, ok := byID[c.ID]; ok {
				if c.Score > merged[idx].Score {
					merged[idx].Score = c.Score
					merged[idx].Signal = c.Signal
				}
				continue
			}
			byID[c.ID] = len(merged)
			merged = append(merged, c)
		}
	}

	sortCandidates(merged)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

// bestScore 返回列表中的最高分，空列表为 0
func bestScore(lists ...[]entity.Candidate) float64 {
	best := 0.0
	for _, list := range lists {
		for _, c := range list {
			if c.Score > best {
				best = c.Score
			}
		}
	}
	return best
}
