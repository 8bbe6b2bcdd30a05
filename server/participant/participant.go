// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package participant

import (
	"time"

	"github.com/google/uuid"
)

// Participant 选手记录。提交相关的四个字段只写一次
type Participant struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	College         string     `json:"college"`
	SubmittedWeight *float64   `json:"submittedWeight"`
	FileURL         *string    `json:"fileUrl"`
	Score           float64    `json:"score"`
	TimeSubmitted   *time.Time `json:"timeSubmitted"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// HasSubmitted 是否已提交（有文件或有提交时间）
func (p Participant) HasSubmitted() bool {
	return p.FileURL != nil || p.TimeSubmitted != nil
}

// Submission 一次提交要写入的字段
type Submission struct {
	Weight  float64
	FileURL string
	Score   float64
	At      time.Time
}

// Stats 报名和提交人数
type Stats struct {
	ParticipantCount int `json:"participantCount"`
	SubmissionCount  int `json:"submissionCount"`
}

// ResetMode 批量重置方式
type ResetMode string

const (
	ResetClear  ResetMode = "clear"
	ResetDelete ResetMode = "delete"
)
