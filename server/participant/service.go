// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package participant

import (
	"context"
	"errors"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"speedcad/server/apperr"
	"speedcad/server/competition"
	"speedcad/server/metrics"
	"speedcad/server/realtime"
	"speedcad/server/scoring"
	"speedcad/server/storage"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// CompetitionReader 读取比赛状态
type CompetitionReader interface {
	Load(ctx context.Context) (competition.State, error)
}

// Publisher 变更通知发布
type Publisher interface {
	Publish(topic string, payload interface{})
}

// Service 选手报名与提交
type Service struct {
	store         Store
	comp          CompetitionReader
	files         storage.Store
	pub           Publisher
	now           func() time.Time
	storeTimeout  time.Duration
	submitTimeout time.Duration
}

// NewService 创建服务
func NewService(store Store, comp CompetitionReader, files storage.Store, pub Publisher, storeTimeout, submitTimeout time.Duration) *Service {
	return &Service{
		store:         store,
		comp:          comp,
		files:         files,
		pub:           pub,
		now:           time.Now,
		storeTimeout:  storeTimeout,
		submitTimeout: submitTimeout,
	}
}

// NormalizeEmail 去空白并转小写
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 报名。同一邮箱再次报名只更新姓名和学校，已有提交保持不变
func (s *Service) Register(ctx context.Context, name, email, college string) (Participant, error) {
	name = strings.TrimSpace(name)
	college = strings.TrimSpace(college)
	email = NormalizeEmail(email)
	if name == "" || email == "" || college == "" {
		return Participant{}, apperr.Validation("FIELDS_REQUIRED", "Name, email and college are required")
	}
	if !emailPattern.MatchString(email) {
		return Participant{}, apperr.Validation("EMAIL_INVALID", "Please enter a valid email address")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	p, err := s.store.Upsert(ctx, Participant{Name: name, Email: email, College: college})
	if err != nil {
		return Participant{}, apperr.TransientIO("STORE_UNAVAILABLE", "Registration could not be saved", err)
	}
	log.Printf("[Participant] 选手报名: %s (%s)", p.Email, p.College)
	s.publish(p)
	return p, nil
}

// Get 按邮箱读取选手
func (s *Service) Get(ctx context.Context, email string) (Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	p, err := s.store.Get(ctx, NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return Participant{}, apperr.NotFound("PARTICIPANT_NOT_FOUND", "Participant not found, please register first")
	}
	if err != nil {
		return Participant{}, apperr.TransientIO("STORE_UNAVAILABLE", "Could not read participant", err)
	}
	return p, nil
}

// List 全部选手，最新报名在前
func (s *Service) List(ctx context.Context) ([]Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.TransientIO("STORE_UNAVAILABLE", "Could not read participants", err)
	}
	return list, nil
}

// Stats 报名和提交统计
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	st, err := s.store.Counts(ctx)
	if err != nil {
		return Stats{}, apperr.TransientIO("STORE_UNAVAILABLE", "Could not read statistics", err)
	}
	return st, nil
}

// Submit 提交模型文件和称重结果。
// 顺序：校验 → 比赛进行中 → 未提交 → 上传（限时）→ 计算得分 → 条件更新。
// 上传前的任何失败都不会产生文件；上传后的记录失败返回 PartialFailure 并附带文件地址。
func (s *Service) Submit(ctx context.Context, email, filename string, size int64, r io.Reader, weight float64) (Participant, error) {
	email = NormalizeEmail(email)
	if err := competition.ValidateWeight(weight, "WEIGHT_INVALID", "Weight must be a positive number"); err != nil {
		return s.reject(err)
	}
	if err := storage.PolicyFor(storage.KindSubmission).Check(filename, size); err != nil {
		return s.reject(err)
	}

	comp, err := s.activeCompetition(ctx)
	if err != nil {
		return s.reject(err)
	}

	p, err := s.Get(ctx, email)
	if err != nil {
		return s.reject(err)
	}
	if p.HasSubmitted() {
		metrics.Submissions.WithLabelValues("conflict").Inc()
		return p, alreadySubmitted()
	}

	uploadCtx, cancel := context.WithTimeout(ctx, s.submitTimeout)
	obj, err := s.files.Put(uploadCtx, storage.KindSubmission, email, filename, r)
	cancel()
	if err != nil {
		metrics.Submissions.WithLabelValues("upload_failed").Inc()
		log.Printf("[Submission] %s 上传失败: %v", email, err)
		return p, apperr.TransientIO("UPLOAD_FAILED", "File upload failed, please try again", err)
	}

	return s.record(ctx, p, obj.URL, weight, comp)
}

// CompleteSubmission 对已上传但未记录的文件重新执行计分和记录
func (s *Service) CompleteSubmission(ctx context.Context, email, fileURL string, weight float64) (Participant, error) {
	email = NormalizeEmail(email)
	if err := competition.ValidateWeight(weight, "WEIGHT_INVALID", "Weight must be a positive number"); err != nil {
		return s.reject(err)
	}
	if !s.files.Owns(storage.KindSubmission, email, fileURL) {
		return s.reject(apperr.Validation("FILE_URL_INVALID", "File reference does not belong to this participant"))
	}

	comp, err := s.loadCompetition(ctx)
	if err != nil {
		return s.reject(err)
	}
	if comp.ReferenceWeight == nil {
		return s.reject(apperr.Conflict("REFERENCE_NOT_SET", "Reference weight has not been set"))
	}

	p, err := s.Get(ctx, email)
	if err != nil {
		return s.reject(err)
	}
	if p.HasSubmitted() {
		metrics.Submissions.WithLabelValues("conflict").Inc()
		return p, alreadySubmitted()
	}
	return s.record(ctx, p, fileURL, weight, comp)
}

// ResetSubmissions 批量重置：clear 清空提交字段，delete 删除全部选手
func (s *Service) ResetSubmissions(ctx context.Context, mode string) (int64, error) {
	m := ResetMode(strings.ToLower(strings.TrimSpace(mode)))
	if m != ResetClear && m != ResetDelete {
		return 0, apperr.Validation("RESET_MODE_INVALID", "Reset mode must be clear or delete")
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	n, err := s.store.Reset(ctx, m)
	if err != nil {
		return 0, apperr.TransientIO("STORE_UNAVAILABLE", "Reset failed", err)
	}
	log.Printf("[Participant] 批量重置 (%s)，影响 %d 条记录", m, n)
	if s.pub != nil {
		s.pub.Publish(realtime.TopicParticipants, map[string]interface{}{"reset": string(m), "affected": n})
	}
	return n, nil
}

func (s *Service) record(ctx context.Context, p Participant, fileURL string, weight float64, comp competition.State) (Participant, error) {
	sub := Submission{
		Weight:  weight,
		FileURL: fileURL,
		Score:   scoring.Score(weight, *comp.ReferenceWeight, comp.Tolerance),
		At:      s.now(),
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	applied, err := s.store.RecordSubmission(ctx, p.Email, sub)
	if err != nil {
		metrics.Submissions.WithLabelValues("partial_failure").Inc()
		log.Printf("[Submission] %s 文件已上传但记录失败: %s: %v", p.Email, fileURL, err)
		return p, apperr.PartialFailure("SUBMISSION_NOT_RECORDED", "File uploaded but the submission could not be recorded, please retry", fileURL, err)
	}
	if !applied {
		metrics.Submissions.WithLabelValues("conflict").Inc()
		log.Printf("[Submission] %s 并发重复提交，文件 %s 未被记录", p.Email, fileURL)
		return p, alreadySubmitted()
	}

	p.SubmittedWeight = &sub.Weight
	p.FileURL = &sub.FileURL
	p.Score = sub.Score
	p.TimeSubmitted = &sub.At
	metrics.Submissions.WithLabelValues("ok").Inc()
	log.Printf("[Submission] %s 提交成功，重量 %.4f，得分 %.2f", p.Email, sub.Weight, sub.Score)
	s.publish(p)
	return p, nil
}

func (s *Service) activeCompetition(ctx context.Context) (competition.State, error) {
	comp, err := s.loadCompetition(ctx)
	if err != nil {
		return comp, err
	}
	if comp.Status != competition.StatusActive {
		return comp, apperr.Conflict("COMPETITION_NOT_ACTIVE", "Competition is not active")
	}
	if comp.ReferenceWeight == nil {
		return comp, apperr.Conflict("REFERENCE_NOT_SET", "Reference weight has not been set")
	}
	return comp, nil
}

func (s *Service) loadCompetition(ctx context.Context) (competition.State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	comp, err := s.comp.Load(ctx)
	if err != nil {
		return comp, apperr.TransientIO("STORE_UNAVAILABLE", "Could not read competition state", err)
	}
	return comp, nil
}

func (s *Service) reject(err error) (Participant, error) {
	outcome := "rejected"
	if apperr.Is(err, apperr.TypeTransientIO) {
		outcome = "io_error"
	}
	metrics.Submissions.WithLabelValues(outcome).Inc()
	return Participant{}, err
}

// Change participants 主题的通知内容，只携带 ID，订阅方自行重新读取
type Change struct {
	ID        uuid.UUID `json:"id"`
	Submitted bool      `json:"submitted"`
}

func (s *Service) publish(p Participant) {
	if s.pub != nil {
		s.pub.Publish(realtime.TopicParticipants, Change{ID: p.ID, Submitted: p.HasSubmitted()})
	}
}

func alreadySubmitted() error {
	return apperr.Conflict("ALREADY_SUBMITTED", "You have already submitted")
}
