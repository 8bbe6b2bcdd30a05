// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package competition

import (
	"context"
	"io"
	"log"
	"strings"
	"time"

	"speedcad/server/apperr"
	"speedcad/server/metrics"
	"speedcad/server/realtime"
	"speedcad/server/storage"
)

// Publisher 变更通知发布
type Publisher interface {
	Publish(topic string, payload interface{})
}

// Service 管理端比赛控制：读取最新状态 → 纯状态迁移 → 单次持久化 → 发布通知
type Service struct {
	store   Store
	files   storage.Store
	pub     Publisher
	now     func() time.Time
	timeout time.Duration
}

// NewService 创建服务
func NewService(store Store, files storage.Store, pub Publisher, timeout time.Duration) *Service {
	return &Service{store: store, files: files, pub: pub, now: time.Now, timeout: timeout}
}

// View 对外展示的比赛状态
type View struct {
	State
	Elapsed int64 `json:"elapsed"`
}

// PublicView 选手/公开视图，隐藏参考重量
func (v View) PublicView() View {
	v.ReferenceWeight = nil
	return v
}

// ViewAt 计算某时刻的视图
func ViewAt(s State, now time.Time) View {
	return View{State: s, Elapsed: s.Elapsed(now)}
}

// Current 读取最新状态
func (s *Service) Current(ctx context.Context) (View, error) {
	st, err := s.load(ctx)
	if err != nil {
		return View{}, err
	}
	return ViewAt(st, s.now()), nil
}

// Start 开始比赛
func (s *Service) Start(ctx context.Context, material string, referenceWeight float64) (View, error) {
	return s.transition(ctx, "start", func(st State, now time.Time) (State, error) {
		if st.Status == StatusActive {
			log.Printf("[Competition] 比赛进行中再次开始，计时和参数将被覆盖")
		}
		return st.Start(material, referenceWeight, now)
	})
}

// Pause 暂停比赛
func (s *Service) Pause(ctx context.Context) (View, error) {
	return s.transition(ctx, "pause", State.Pause)
}

// Resume 恢复比赛
func (s *Service) Resume(ctx context.Context) (View, error) {
	return s.transition(ctx, "resume", State.Resume)
}

// Stop 结束比赛
func (s *Service) Stop(ctx context.Context) (View, error) {
	return s.transition(ctx, "stop", State.Stop)
}

// Reset 重置比赛（不删除选手记录）
func (s *Service) Reset(ctx context.Context) (View, error) {
	return s.transition(ctx, "reset", func(st State, now time.Time) (State, error) {
		return st.Reset(now), nil
	})
}

// UpdateMaterial 修改材料，可选修改参考重量；已有成绩不会重算
func (s *Service) UpdateMaterial(ctx context.Context, material string, referenceWeight *float64) (View, error) {
	return s.transition(ctx, "update_material", func(st State, now time.Time) (State, error) {
		material = strings.TrimSpace(material)
		if material == "" {
			return st, apperr.Validation("MATERIAL_REQUIRED", "Material is required")
		}
		next := st
		next.Material = material
		if referenceWeight != nil {
			if err := ValidateWeight(*referenceWeight, "REFERENCE_WEIGHT_INVALID", "Reference weight must be a positive number"); err != nil {
				return st, err
			}
			w := *referenceWeight
			next.ReferenceWeight = &w
		}
		next.UpdatedAt = now
		return next, nil
	})
}

// UpdateTolerance 修改容差，只影响之后的提交
func (s *Service) UpdateTolerance(ctx context.Context, tolerance float64) (View, error) {
	return s.transition(ctx, "update_tolerance", func(st State, now time.Time) (State, error) {
		if err := ValidateWeight(tolerance, "TOLERANCE_INVALID", "Tolerance must be a positive number"); err != nil {
			return st, err
		}
		next := st
		next.Tolerance = tolerance
		next.UpdatedAt = now
		return next, nil
	})
}

// UploadDrawing 上传参考图纸并记录其地址
func (s *Service) UploadDrawing(ctx context.Context, filename string, size int64, r io.Reader) (View, error) {
	if err := storage.PolicyFor(storage.KindDrawing).Check(filename, size); err != nil {
		return View{}, err
	}

	obj, err := s.files.Put(ctx, storage.KindDrawing, "admin", filename, r)
	if err != nil {
		return View{}, apperr.TransientIO("UPLOAD_FAILED", "Drawing upload failed", err)
	}

	v, err := s.transition(ctx, "upload_drawing", func(st State, now time.Time) (State, error) {
		next := st
		url := obj.URL
		next.DrawingURL = &url
		next.UpdatedAt = now
		return next, nil
	})
	if apperr.Is(err, apperr.TypeTransientIO) {
		return v, apperr.PartialFailure("DRAWING_NOT_RECORDED", "Drawing uploaded but could not be saved to the competition", obj.URL, err)
	}
	return v, err
}

func (s *Service) transition(ctx context.Context, name string, apply func(State, time.Time) (State, error)) (View, error) {
	current, err := s.load(ctx)
	if err != nil {
		metrics.Transitions.WithLabelValues(name, "io_error").Inc()
		return View{}, err
	}

	now := s.now()
	next, err := apply(current, now)
	if err != nil {
		metrics.Transitions.WithLabelValues(name, "rejected").Inc()
		return ViewAt(current, now), err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.Save(ctx, next); err != nil {
		metrics.Transitions.WithLabelValues(name, "io_error").Inc()
		return ViewAt(current, now), apperr.TransientIO("STORE_UNAVAILABLE", "Could not save competition state", err)
	}

	metrics.Transitions.WithLabelValues(name, "ok").Inc()
	log.Printf("[Competition] %s: %s -> %s", name, current.Status, next.Status)
	view := ViewAt(next, now)
	if s.pub != nil {
		s.pub.Publish(realtime.TopicCompetition, view.PublicView())
	}
	return view, nil
}

func (s *Service) load(ctx context.Context) (State, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	st, err := s.store.Load(ctx)
	if err != nil {
		return State{}, apperr.TransientIO("STORE_UNAVAILABLE", "Could not read competition state", err)
	}
	return st, nil
}
