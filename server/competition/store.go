// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package competition

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SingletonID 比赛单例记录的固定ID
const SingletonID = 1

// ErrNoCompetitionRow 单例记录不存在，UPDATE 未命中
var ErrNoCompetitionRow = errors.New("competition row missing")

// Store 比赛状态持久化
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
}

// PGStore 基于 PostgreSQL 的比赛状态存储
type PGStore struct {
	DB *sql.DB
}

// NewPGStore 创建存储
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

// Ensure 确保单例记录存在（系统启动时调用）
func (s *PGStore) Ensure(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO competitions (id, status, tolerance, frozen_elapsed, updated_at)
		VALUES ($1, 'waiting', 5, 0, NOW())
		ON CONFLICT (id) DO NOTHING`, SingletonID)
	return err
}

// Load 读取最新状态
func (s *PGStore) Load(ctx context.Context) (State, error) {
	var (
		st         State
		status     string
		startTime  sql.NullTime
		material   sql.NullString
		refWeight  sql.NullFloat64
		drawingURL sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
		SELECT status, start_time, frozen_elapsed, material, reference_weight,
		       COALESCE(tolerance, 5), drawing_url, updated_at
		FROM competitions WHERE id = $1`, SingletonID).
		Scan(&status, &startTime, &st.FrozenElapsed, &material, &refWeight, &st.Tolerance, &drawingURL, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return Initial(), nil
	}
	if err != nil {
		return State{}, err
	}

	st.Status = Status(status)
	if !st.Status.Valid() {
		st.Status = StatusWaiting
	}
	if startTime.Valid {
		t := startTime.Time
		st.StartTime = &t
	}
	st.Material = material.String
	if refWeight.Valid {
		w := refWeight.Float64
		st.ReferenceWeight = &w
	}
	if drawingURL.Valid {
		u := drawingURL.String
		st.DrawingURL = &u
	}
	return st, nil
}

// Save 以单条 UPDATE 写入全部字段
func (s *PGStore) Save(ctx context.Context, st State) error {
	var material sql.NullString
	if st.Material != "" {
		material = sql.NullString{String: st.Material, Valid: true}
	}
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE competitions
		SET status = $1, start_time = $2, frozen_elapsed = $3, material = $4,
		    reference_weight = $5, tolerance = $6, drawing_url = $7, updated_at = $8
		WHERE id = $9`,
		string(st.Status), st.StartTime, st.FrozenElapsed, material,
		st.ReferenceWeight, st.Tolerance, st.DrawingURL, updatedAt, SingletonID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoCompetitionRow
	}
	return nil
}
