// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package competition

import (
	"context"
	"log"
	"sync"
	"time"

	"speedcad/server/realtime"
)

// Hub 观察者依赖的发布订阅
type Hub interface {
	Publish(topic string, payload interface{})
	Subscribe(topic string) (<-chan realtime.Change, func())
}

// TimerTick 推送给计时器订阅者的数据
type TimerTick struct {
	Status    Status     `json:"status"`
	Elapsed   int64      `json:"elapsed"`
	StartTime *time.Time `json:"startTime"`
}

// Observer 比赛计时观察者。
// 保存最近一次读取的状态；收到变更通知或轮询时重新读取，进行中时每秒推送一次计时。
// 已用时间总是由最新的 StartTime 推算，不累加本地计数。
type Observer struct {
	store Store
	hub   Hub
	now   func() time.Time
	poll  time.Duration
	tick  time.Duration

	mu     sync.RWMutex
	latest State
	loaded bool
}

// NewObserver 创建观察者
func NewObserver(store Store, hub Hub, poll time.Duration) *Observer {
	return &Observer{store: store, hub: hub, now: time.Now, poll: poll, tick: time.Second}
}

// Reconcile 从存储重新读取权威状态
func (o *Observer) Reconcile(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.poll)
	defer cancel()
	st, err := o.store.Load(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.latest = st
	o.loaded = true
	o.mu.Unlock()
	return nil
}

// Snapshot 最近读取的状态及当前已用时间
func (o *Observer) Snapshot() (TimerTick, bool) {
	o.mu.RLock()
	st, loaded := o.latest, o.loaded
	o.mu.RUnlock()
	return TimerTick{Status: st.Status, Elapsed: st.Elapsed(o.now()), StartTime: st.StartTime}, loaded
}

// Run 运行直到 ctx 结束
func (o *Observer) Run(ctx context.Context) {
	changes, cancel := o.hub.Subscribe(realtime.TopicCompetition)
	defer cancel()

	if err := o.Reconcile(ctx); err != nil {
		log.Printf("[Timer] 初始读取比赛状态失败: %v", err)
	}
	o.broadcast()

	ticker := time.NewTicker(o.tick)
	defer ticker.Stop()
	poller := time.NewTicker(o.poll)
	defer poller.Stop()

	log.Printf("[Timer] 计时观察者已启动，轮询间隔 %s", o.poll)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			o.refresh(ctx)
		case <-poller.C:
			o.refresh(ctx)
		case <-ticker.C:
			if tick, loaded := o.Snapshot(); loaded && tick.Status == StatusActive {
				o.hub.Publish(realtime.TopicTimer, tick)
			}
		}
	}
}

func (o *Observer) refresh(ctx context.Context) {
	if err := o.Reconcile(ctx); err != nil {
		log.Printf("[Timer] 同步比赛状态失败: %v", err)
		return
	}
	o.broadcast()
}

func (o *Observer) broadcast() {
	if tick, loaded := o.Snapshot(); loaded {
		o.hub.Publish(realtime.TopicTimer, tick)
	}
}
