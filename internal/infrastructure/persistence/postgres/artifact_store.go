package postgres

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"match-intel-api/internal/domain/entity"
	"match-intel-api/internal/domain/repository"
)

// ErrActiveConflict 插入激活行时命中部分唯一索引
var ErrActiveConflict = errors.New("concurrent activation for scope")

type artifactRow[E any] interface {
	*E
	entity.CachedArtifact
}

// artifactStore 单激活行产物表的通用实现。
// 写路径在同一事务内先取作用域的 advisory lock，再停用旧激活行并插入新行；
// (scope) WHERE active 的部分唯一索引兜底。
type artifactStore[E any, T artifactRow[E]] struct {
	client      *Client
	tx          repository.Transactor
	table       string
	scopeColumn string
	setActive   func(T, bool)
}

func newArtifactStore[E any, T artifactRow[E]](client *Client, table, scopeColumn string, setActive func(T, bool)) *artifactStore[E, T] {
	return &artifactStore[E, T]{
		client:      client,
		tx:          NewTxManager(client),
		table:       table,
		scopeColumn: scopeColumn,
		setActive:   setActive,
	}
}

func (s *artifactStore[E, T]) span(ctx context.Context, op, scopeID string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "postgres."+s.table+"."+op)
	span.SetAttributes(attribute.String("scope_id", scopeID))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

// lock 作用域级事务锁，事务结束自动释放
func (s *artifactStore[E, T]) lock(db *gorm.DB, scopeID string) error {
	return db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", s.table+":"+scopeID).Error
}

func (s *artifactStore[E, T]) GetActive(ctx context.Context, scopeID string) (artifact T, found bool, err error) {
	ctx, end := s.span(ctx, "GetActive", scopeID)
	defer func() { end(err) }()

	row := new(E)
	err = getDB(ctx, s.client.db).
		Where(s.scopeColumn+" = ? AND active", scopeID).
		Order("generated_at DESC").
		Take(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return artifact, false, nil
	}
	if err != nil {
		return artifact, false, fmt.Errorf("failed to get active %s: %w", s.table, err)
	}
	return T(row), true, nil
}

func (s *artifactStore[E, T]) Activate(ctx context.Context, artifact T) (err error) {
	scopeID := artifact.ScopeID()
	ctx, end := s.span(ctx, "Activate", scopeID)
	defer func() { end(err) }()

	return s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := getDB(ctx, s.client.db)
		if err := s.lock(db, scopeID); err != nil {
			return fmt.Errorf("failed to lock scope: %w", err)
		}
		if err := db.Exec("UPDATE "+s.table+" SET active = FALSE WHERE "+s.scopeColumn+" = ? AND active", scopeID).Error; err != nil {
			return fmt.Errorf("failed to deactivate %s: %w", s.table, err)
		}
		s.setActive(artifact, true)
		if err := db.Create(artifact).Error; err != nil {
			s.setActive(artifact, false)
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrActiveConflict, scopeID)
			}
			return fmt.Errorf("failed to insert %s: %w", s.table, err)
		}
		return nil
	})
}

func (s *artifactStore[E, T]) Counts(ctx context.Context, scopeID string) (counts repository.ScopeCounts, err error) {
	ctx, end := s.span(ctx, "Counts", scopeID)
	defer func() { end(err) }()

	err = getDB(ctx, s.client.db).Raw(
		"SELECT COUNT(*) FILTER (WHERE active) AS active, COUNT(*) AS total FROM "+s.table+" WHERE "+s.scopeColumn+" = ?",
		scopeID,
	).Scan(&counts).Error
	if err != nil {
		return counts, fmt.Errorf("failed to count %s: %w", s.table, err)
	}
	return counts, nil
}

// Reconcile 保留生成时间最新的一行
func (s *artifactStore[E, T]) Reconcile(ctx context.Context, scopeID string) (artifact T, found bool, err error) {
	ctx, end := s.span(ctx, "Reconcile", scopeID)
	defer func() { end(err) }()

	var keepID string
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := getDB(ctx, s.client.db)
		if err := s.lock(db, scopeID); err != nil {
			return fmt.Errorf("failed to lock scope: %w", err)
		}
		if err := db.Raw(
			"SELECT id FROM "+s.table+" WHERE "+s.scopeColumn+" = ? ORDER BY generated_at DESC, id DESC LIMIT 1",
			scopeID,
		).Scan(&keepID).Error; err != nil {
			return fmt.Errorf("failed to pick newest %s: %w", s.table, err)
		}
		if keepID == "" {
			return nil
		}
		// 先停用其余行再激活保留行，避免触发部分唯一索引
		if err := db.Exec(
			"UPDATE "+s.table+" SET active = FALSE WHERE "+s.scopeColumn+" = ? AND active AND id <> ?",
			scopeID, keepID,
		).Error; err != nil {
			return fmt.Errorf("failed to deactivate %s: %w", s.table, err)
		}
		if err := db.Exec("UPDATE "+s.table+" SET active = TRUE WHERE id = ?", keepID).Error; err != nil {
			return fmt.Errorf("failed to activate %s: %w", s.table, err)
		}
		return nil
	})
	if err != nil || keepID == "" {
		return artifact, false, err
	}

	row := new(E)
	if err = getDB(ctx, s.client.db).Take(row, "id = ?", keepID).Error; err != nil {
		return artifact, false, fmt.Errorf("failed to reload %s: %w", s.table, err)
	}
	return T(row), true, nil
}

func (s *artifactStore[E, T]) ListViolations(ctx context.Context, limit int) (ids []string, err error) {
	ctx, end := s.span(ctx, "ListViolations", "")
	defer func() { end(err) }()

	err = getDB(ctx, s.client.db).Raw(
		"SELECT "+s.scopeColumn+" FROM "+s.table+
			" GROUP BY "+s.scopeColumn+
			" HAVING COUNT(*) FILTER (WHERE active) <> 1"+
			" ORDER BY "+s.scopeColumn+" LIMIT ?",
		limit,
	).Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s violations: %w", s.table, err)
	}
	return ids, nil
}

// PruneHistory 只删除停用行，保留最新的 keep 行
func (s *artifactStore[E, T]) PruneHistory(ctx context.Context, scopeID string, keep int) (n int64, err error) {
	ctx, end := s.span(ctx, "PruneHistory", scopeID)
	defer func() { end(err) }()

	if keep < 0 {
		keep = 0
	}
	res := getDB(ctx, s.client.db).Exec(
		"DELETE FROM "+s.table+" WHERE id IN ("+
			"SELECT id FROM "+s.table+" WHERE "+s.scopeColumn+" = ? AND NOT active"+
			" ORDER BY generated_at DESC, id DESC OFFSET ?)",
		scopeID, keep,
	)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune %s: %w", s.table, res.Error)
	}
	return res.RowsAffected, nil
}

// searchActive 激活产物上的向量近邻检索
func (s *artifactStore[E, T]) searchActive(ctx context.Context, textExpr, segmentExpr, matchID string, query entity.Vector, minSimilarity float64, limit int) (out []entity.Candidate, err error) {
	ctx, end := s.span(ctx, "SearchByVector", matchID)
	defer func() { end(err) }()

	pv := query.PG()
	var rows []candidateRow
	err = getDB(ctx, s.client.db).Raw(`
SELECT id, `+segmentExpr+` AS segment_id, `+textExpr+` AS text, generated_at AS created_at,
       1 - (embedding <=> ?::vector) AS score
FROM `+s.table+`
WHERE match_id = ?
  AND active
  AND embedding IS NOT NULL
  AND 1 - (embedding <=> ?::vector) > ?
ORDER BY embedding <=> ?::vector, generated_at DESC
LIMIT ?`, pv, matchID, pv, minSimilarity, pv, limit).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", s.table, err)
	}
	return toCandidates(rows), nil
}
