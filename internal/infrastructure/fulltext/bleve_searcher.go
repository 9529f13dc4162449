// Package fulltext 进程内 bleve 全文检索（lexical.backend=bleve）
package fulltext

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/pkg/logger"
)

var tracer = otel.Tracer("fulltext")

const (
	defaultMaxIndexes = 64
	defaultMaxNotes   = 5000
	fieldText         = "text"
)

// NoteSource 构建索引所需的笔记读取
type NoteSource interface {
	ListByMatch(ctx context.Context, matchID string, limit int) ([]*entity.Note, error)
	Version(ctx context.Context, matchID string) (count int, latest time.Time, err error)
}

type noteDoc struct {
	segmentID string
	text      string
	createdAt time.Time
}

// matchIndex 单场比赛的内存索引；count/latest 与数据库不一致时整体重建
type matchIndex struct {
	mu       sync.RWMutex
	index    bleve.Index
	docs     map[string]noteDoc
	count    int
	latest   time.Time
	lastUsed time.Time
	closed   bool
}

func (m *matchIndex) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		_ = m.index.Close()
		m.closed = true
	}
}

// Searcher 按比赛维护内存 bleve 索引，实现 repository.TextSearcher
type Searcher struct {
	notes      NoteSource
	mapping    mapping.IndexMapping
	maxIndexes int
	maxNotes   int

	mu      sync.Mutex
	indexes map[string]*matchIndex
	group   singleflight.Group
}

func NewSearcher(notes NoteSource, maxIndexes int) *Searcher {
	if maxIndexes <= 0 {
		maxIndexes = defaultMaxIndexes
	}
	return &Searcher{
		notes:      notes,
		mapping:    noteMapping(),
		maxIndexes: maxIndexes,
		maxNotes:   defaultMaxNotes,
		indexes:    make(map[string]*matchIndex),
	}
}

func noteMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = en.AnalyzerName
	text.Store = false

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt(fieldText, text)

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = en.AnalyzerName
	return im
}

// SearchByText 全文检索比赛笔记
func (s *Searcher) SearchByText(ctx context.Context, matchID, query string, limit int) ([]entity.Candidate, error) {
	ctx, span := tracer.Start(ctx, "fulltext.SearchByText")
	defer span.End()
	span.SetAttributes(attribute.String("match_id", matchID), attribute.Int("limit", limit))

	if limit <= 0 {
		return nil, nil
	}
	idx, err := s.ensure(ctx, matchID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("fulltext index for match %s was evicted", matchID)
	}

	q := bleve.NewMatchQuery(query)
	q.SetField(fieldText)
	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	res, err := idx.index.SearchInContext(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	out := make([]entity.Candidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, ok := idx.docs[hit.ID]
		if !ok {
			continue
		}
		out = append(out, entity.Candidate{
			ID:        hit.ID,
			Score:     hit.Score,
			SegmentID: doc.segmentID,
			Text:      doc.text,
			CreatedAt: doc.createdAt,
		})
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, nil
}

// ensure 返回与数据库版本一致的索引，必要时重建
func (s *Searcher) ensure(ctx context.Context, matchID string) (*matchIndex, error) {
	count, latest, err := s.notes.Version(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("notes version: %w", err)
	}

	s.mu.Lock()
	idx := s.indexes[matchID]
	if idx != nil && idx.count == count && idx.latest.Equal(latest) {
		idx.lastUsed = time.Now()
		s.mu.Unlock()
		return idx, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(matchID, func() (interface{}, error) {
		built, err := s.build(ctx, matchID, count, latest)
		if err != nil {
			return nil, err
		}
		s.install(ctx, matchID, built)
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*matchIndex), nil
}

func (s *Searcher) build(ctx context.Context, matchID string, count int, latest time.Time) (*matchIndex, error) {
	notes, err := s.notes.ListByMatch(ctx, matchID, s.maxNotes)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}

	index, err := bleve.NewMemOnly(s.mapping)
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}

	docs := make(map[string]noteDoc, len(notes))
	batch := index.NewBatch()
	for _, n := range notes {
		text := n.Text()
		if err := batch.Index(n.ID, map[string]interface{}{fieldText: text}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index note %s: %w", n.ID, err)
		}
		docs[n.ID] = noteDoc{text: text, segmentID: n.SegmentID, createdAt: n.CreatedAt}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("apply bleve batch: %w", err)
	}

	logger.Debug(ctx, "fulltext index rebuilt", "match_id", matchID, "notes", len(notes))
	return &matchIndex{
		index:    index,
		docs:     docs,
		count:    count,
		latest:   latest,
		lastUsed: time.Now(),
	}, nil
}

// install 替换旧索引，超过容量时淘汰最久未用的比赛
func (s *Searcher) install(ctx context.Context, matchID string, idx *matchIndex) {
	s.mu.Lock()
	var evicted []*matchIndex
	if old := s.indexes[matchID]; old != nil {
		evicted = append(evicted, old)
	}
	s.indexes[matchID] = idx
	for len(s.indexes) > s.maxIndexes {
		oldestID := ""
		var oldest time.Time
		for id, m := range s.indexes {
			if id == matchID {
				continue
			}
			if oldestID == "" || m.lastUsed.Before(oldest) {
				oldestID, oldest = id, m.lastUsed
			}
		}
		if oldestID == "" {
			break
		}
		evicted = append(evicted, s.indexes[oldestID])
		delete(s.indexes, oldestID)
	}
	s.mu.Unlock()

	for _, m := range evicted {
		m.close()
	}
	if len(evicted) > 0 {
		logger.Debug(ctx, "fulltext indexes released", "count", len(evicted))
	}
}

// Close 释放全部索引
func (s *Searcher) Close() error {
	s.mu.Lock()
	all := s.indexes
	s.indexes = make(map[string]*matchIndex)
	s.mu.Unlock()
	for _, m := range all {
		m.close()
	}
	return nil
}
