// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package participant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotFound 选手不存在
var ErrNotFound = errors.New("participant not found")

// Store 选手持久化
type Store interface {
	// Upsert 按邮箱插入；已存在时只更新姓名和学校
	Upsert(ctx context.Context, p Participant) (Participant, error)
	Get(ctx context.Context, email string) (Participant, error)
	List(ctx context.Context) ([]Participant, error)
	Counts(ctx context.Context) (Stats, error)
	// RecordSubmission 仅当尚未提交时写入，返回是否写入成功
	RecordSubmission(ctx context.Context, email string, sub Submission) (bool, error)
	Reset(ctx context.Context, mode ResetMode) (int64, error)
}

// PGStore 基于 PostgreSQL 的选手存储
type PGStore struct {
	DB *sql.DB
}

// NewPGStore 创建存储
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

const selectColumns = `id, name, email, college, submitted_weight, file_url, COALESCE(score, 0), time_submitted, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanParticipant(row scanner) (Participant, error) {
	var (
		p         Participant
		id        string
		weight    sql.NullFloat64
		fileURL   sql.NullString
		submitted sql.NullTime
	)
	if err := row.Scan(&id, &p.Name, &p.Email, &p.College, &weight, &fileURL, &p.Score, &submitted, &p.CreatedAt); err != nil {
		return Participant{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Participant{}, fmt.Errorf("invalid participant id %q: %w", id, err)
	}
	p.ID = parsed
	if weight.Valid {
		w := weight.Float64
		p.SubmittedWeight = &w
	}
	if fileURL.Valid {
		u := fileURL.String
		p.FileURL = &u
	}
	if submitted.Valid {
		t := submitted.Time
		p.TimeSubmitted = &t
	}
	return p, nil
}

func (s *PGStore) Upsert(ctx context.Context, p Participant) (Participant, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := s.DB.QueryRowContext(ctx, `
		INSERT INTO participants (id, name, email, college, score, created_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		ON CONFLICT (email) DO UPDATE SET name = EXCLUDED.name, college = EXCLUDED.college
		RETURNING `+selectColumns,
		p.ID.String(), p.Name, p.Email, p.College)
	return scanParticipant(row)
}

func (s *PGStore) Get(ctx context.Context, email string) (Participant, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM participants WHERE email = $1`, email)
	p, err := scanParticipant(row)
	if err == sql.ErrNoRows {
		return Participant{}, ErrNotFound
	}
	return p, err
}

func (s *PGStore) List(ctx context.Context) ([]Participant, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+selectColumns+` FROM participants ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *PGStore) Counts(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.DB.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE file_url IS NOT NULL OR time_submitted IS NOT NULL)
		FROM participants`).Scan(&st.ParticipantCount, &st.SubmissionCount)
	return st, err
}

// RecordSubmission 条件更新：只有未提交的记录会被写入，并发重复提交只有一个成功
func (s *PGStore) RecordSubmission(ctx context.Context, email string, sub Submission) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE participants
		SET submitted_weight = $1, file_url = $2, score = $3, time_submitted = $4
		WHERE email = $5 AND file_url IS NULL AND time_submitted IS NULL`,
		sub.Weight, sub.FileURL, sub.Score, sub.At, email)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PGStore) Reset(ctx context.Context, mode ResetMode) (int64, error) {
	var (
		res sql.Result
		err error
	)
	switch mode {
	case ResetClear:
		res, err = s.DB.ExecContext(ctx, `
			UPDATE participants
			SET submitted_weight = NULL, file_url = NULL, score = 0, time_submitted = NULL`)
	case ResetDelete:
		res, err = s.DB.ExecContext(ctx, `DELETE FROM participants`)
	default:
		return 0, fmt.Errorf("unknown reset mode %q", mode)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
