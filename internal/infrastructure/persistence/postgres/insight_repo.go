package postgres

import (
	"context"

	"match-intel-api/internal/domain/entity"
)

// SegmentInsightRepository 片段洞察仓储
type SegmentInsightRepository struct {
	*artifactStore[entity.SegmentInsight, *entity.SegmentInsight]
}

func NewSegmentInsightRepository(client *Client) *SegmentInsightRepository {
	return &SegmentInsightRepository{
		artifactStore: newArtifactStore[entity.SegmentInsight](client, "segment_insights", "segment_id",
			func(s *entity.SegmentInsight, v bool) { s.Active = v }),
	}
}

func (r *SegmentInsightRepository) Source() entity.SourceType {
	return entity.SourceSegmentInsight
}

func (r *SegmentInsightRepository) SearchByVector(ctx context.Context, matchID string, query entity.Vector, minSimilarity float64, limit int) ([]entity.Candidate, error) {
	return r.searchActive(ctx,
		"headline || '. ' || sentence || COALESCE(' ' || NULLIF(narrative, ''), '')",
		"segment_id",
		matchID, query, minSimilarity, limit)
}

// MatchIntelligenceRepository 比赛情报仓储
type MatchIntelligenceRepository struct {
	*artifactStore[entity.MatchIntelligence, *entity.MatchIntelligence]
}

func NewMatchIntelligenceRepository(client *Client) *MatchIntelligenceRepository {
	return &MatchIntelligenceRepository{
		artifactStore: newArtifactStore[entity.MatchIntelligence](client, "match_intelligence", "match_id",
			func(m *entity.MatchIntelligence, v bool) { m.Active = v }),
	}
}

func (r *MatchIntelligenceRepository) Source() entity.SourceType {
	return entity.SourceMatchIntelligence
}

func (r *MatchIntelligenceRepository) SearchByVector(ctx context.Context, matchID string, query entity.Vector, minSimilarity float64, limit int) ([]entity.Candidate, error) {
	return r.searchActive(ctx, "headline || '. ' || summary", "NULL::uuid", matchID, query, minSimilarity, limit)
}
