// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package leaderboard

import (
	"sort"
	"time"

	"speedcad/server/participant"
)

// Entry 排行榜条目
type Entry struct {
	Rank            int        `json:"rank"`
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	College         string     `json:"college"`
	WeightSubmitted *float64   `json:"weightSubmitted"`
	Score           float64    `json:"score"`
	Time            string     `json:"time"`
	SubmittedAt     *time.Time `json:"submittedAt"`
}

// Rank 计算排行榜。
// 只包含已提交的选手；得分高者在前，同分时提交早者在前，没有提交时间的排在同分末尾，
// 仍相同时按选手ID排序。名次为 1 起的连续序号，不并列。
func Rank(records []participant.Participant) []Entry {
	ranked := make([]participant.Participant, 0, len(records))
	for _, p := range records {
		if p.HasSubmitted() {
			ranked = append(ranked, p)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.TimeSubmitted != nil && b.TimeSubmitted != nil:
			if !a.TimeSubmitted.Equal(*b.TimeSubmitted) {
				return a.TimeSubmitted.Before(*b.TimeSubmitted)
			}
		case a.TimeSubmitted != nil:
			return true
		case b.TimeSubmitted != nil:
			return false
		}
		return a.ID.String() < b.ID.String()
	})

	entries := make([]Entry, len(ranked))
	for i, p := range ranked {
		entries[i] = Entry{
			Rank:            i + 1,
			ID:              p.ID.String(),
			Name:            p.Name,
			College:         p.College,
			WeightSubmitted: p.SubmittedWeight,
			Score:           p.Score,
			Time:            clockTime(p.TimeSubmitted),
			SubmittedAt:     p.TimeSubmitted,
		}
	}
	return entries
}

func clockTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("15:04:05")
}
