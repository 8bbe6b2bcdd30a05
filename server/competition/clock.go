// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package competition

import (
	"math"
	"strings"
	"time"

	"speedcad/server/apperr"
	"speedcad/server/scoring"
)

// Status 比赛状态
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusExpired Status = "expired"
)

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusPaused, StatusExpired:
		return true
	}
	return false
}

// State 比赛（单例）的持久化状态
type State struct {
	Status          Status     `json:"status"`
	StartTime       *time.Time `json:"startTime"`
	FrozenElapsed   int64      `json:"-"` // 暂停/结束时冻结的已用秒数
	Material        string     `json:"material"`
	ReferenceWeight *float64   `json:"referenceWeight,omitempty"`
	Tolerance       float64    `json:"tolerance"`
	DrawingURL      *string    `json:"drawingUrl"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Initial 初始状态（也是 reset 之后的状态）
func Initial() State {
	return State{Status: StatusWaiting, Tolerance: scoring.DefaultTolerance}
}

// Elapsed 已用秒数：未开始为 0；暂停或结束时返回冻结值；否则由 StartTime 推算
func (s State) Elapsed(now time.Time) int64 {
	if s.StartTime == nil {
		return 0
	}
	if s.Status == StatusPaused || s.Status == StatusExpired {
		return s.FrozenElapsed
	}
	d := now.Sub(*s.StartTime)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// HasParameters 材料和参考重量是否都已设置
func (s State) HasParameters() bool {
	return strings.TrimSpace(s.Material) != "" && s.ReferenceWeight != nil && *s.ReferenceWeight > 0
}

// Start 开始比赛。任何状态下都允许，会覆盖计时和参数
func (s State) Start(material string, referenceWeight float64, now time.Time) (State, error) {
	material = strings.TrimSpace(material)
	if material == "" {
		return s, apperr.Validation("MATERIAL_REQUIRED", "Material is required")
	}
	if err := ValidateWeight(referenceWeight, "REFERENCE_WEIGHT_INVALID", "Reference weight must be a positive number"); err != nil {
		return s, err
	}

	start := now
	next := s
	next.Status = StatusActive
	next.StartTime = &start
	next.FrozenElapsed = 0
	next.Material = material
	next.ReferenceWeight = &referenceWeight
	next.Tolerance = scoring.DefaultTolerance
	next.UpdatedAt = now
	return next, nil
}

// Pause 暂停：只允许从 active 进入，冻结当前已用时间，StartTime 不变
func (s State) Pause(now time.Time) (State, error) {
	if s.Status != StatusActive {
		return s, invalidTransition("pause", s.Status)
	}
	next := s
	next.FrozenElapsed = s.Elapsed(now)
	next.Status = StatusPaused
	next.UpdatedAt = now
	return next, nil
}

// Resume 恢复：StartTime = now - 暂停时的已用时间，计时从暂停处继续
func (s State) Resume(now time.Time) (State, error) {
	if s.Status != StatusPaused {
		return s, invalidTransition("resume", s.Status)
	}
	start := now.Add(-time.Duration(s.FrozenElapsed) * time.Second)
	next := s
	next.StartTime = &start
	next.FrozenElapsed = 0
	next.Status = StatusActive
	next.UpdatedAt = now
	return next, nil
}

// Stop 结束：从 active 或 paused 进入 expired，保留 StartTime
func (s State) Stop(now time.Time) (State, error) {
	if s.Status != StatusActive && s.Status != StatusPaused {
		return s, invalidTransition("stop", s.Status)
	}
	next := s
	next.FrozenElapsed = s.Elapsed(now)
	next.Status = StatusExpired
	next.UpdatedAt = now
	return next, nil
}

// Reset 重置到 waiting，清空计时、材料、参考重量和图纸；不影响选手记录
func (s State) Reset(now time.Time) State {
	next := Initial()
	next.UpdatedAt = now
	return next
}

// ValidateWeight 校验重量为有限正数
func ValidateWeight(w float64, code, message string) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return apperr.Validation(code, message)
	}
	return nil
}

func invalidTransition(action string, from Status) error {
	return apperr.Conflict("INVALID_TRANSITION", "Cannot "+action+" a competition that is "+string(from))
}
