// Package milvus 笔记向量的 Milvus 后端
package milvus

import (
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// CollectionMatchNotes 笔记向量集合
const CollectionMatchNotes = "match_notes"

// 字段名
const (
	fieldID        = "id"
	fieldVector    = "vector"
	fieldMatchID   = "match_id"
	fieldSegmentID = "segment_id"
	fieldCreatedAt = "created_at_ms"
	fieldText      = "text_content"
)

var outputFields = []string{fieldID, fieldSegmentID, fieldCreatedAt, fieldText}

// MatchNotesSchema 笔记向量 Collection Schema
func MatchNotesSchema(dim int) *entity.Schema {
	return &entity.Schema{
		CollectionName: CollectionMatchNotes,
		Description:    "Match narration notes for semantic search",
		Fields: []*entity.Field{
			{
				Name:       fieldID,
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       fieldVector,
				DataType:   entity.FieldTypeFloatVector,
				TypeParams: map[string]string{"dim": strconv.Itoa(dim)},
			},
			{
				Name:       fieldMatchID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:       fieldSegmentID,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     fieldCreatedAt,
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:       fieldText,
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "65535"},
			},
		},
	}
}
