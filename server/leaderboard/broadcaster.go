// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package leaderboard

import (
	"context"
	"log"
	"time"

	"speedcad/server/metrics"
	"speedcad/server/participant"
	"speedcad/server/realtime"
)

// Source 选手记录来源
type Source interface {
	List(ctx context.Context) ([]participant.Participant, error)
}

// Hub 发布订阅
type Hub interface {
	Publish(topic string, payload interface{})
	Subscribe(topic string) (<-chan realtime.Change, func())
}

// Broadcaster 选手记录变化或定时轮询时重新计算排行榜并推送
type Broadcaster struct {
	src  Source
	hub  Hub
	poll time.Duration
}

// NewBroadcaster 创建排行榜推送器
func NewBroadcaster(src Source, hub Hub, poll time.Duration) *Broadcaster {
	return &Broadcaster{src: src, hub: hub, poll: poll}
}

// Compute 读取全部选手并完整重算排行榜
func (b *Broadcaster) Compute(ctx context.Context) ([]Entry, error) {
	records, err := b.src.List(ctx)
	if err != nil {
		return nil, err
	}
	metrics.LeaderboardRecomputes.Inc()
	return Rank(records), nil
}

// Run 运行直到 ctx 结束
func (b *Broadcaster) Run(ctx context.Context) {
	changes, cancel := b.hub.Subscribe(realtime.TopicParticipants)
	defer cancel()

	ticker := time.NewTicker(b.poll)
	defer ticker.Stop()

	log.Printf("[Leaderboard] 排行榜推送已启动，轮询间隔 %s", b.poll)
	b.publish(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			b.publish(ctx)
		case <-ticker.C:
			b.publish(ctx)
		}
	}
}

func (b *Broadcaster) publish(ctx context.Context) {
	entries, err := b.Compute(ctx)
	if err != nil {
		log.Printf("[Leaderboard] 重算排行榜失败: %v", err)
		return
	}
	b.hub.Publish(realtime.TopicLeaderboard, entries)
}
