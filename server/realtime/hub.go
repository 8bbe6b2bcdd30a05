// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"speedcad/server/metrics"
)

// 推送主题
const (
	TopicCompetition  = "competition"
	TopicParticipants = "participants"
	TopicLeaderboard  = "leaderboard"
	TopicTimer        = "timer"
	TopicLogs         = "logs"
)

// Change 一次变更通知
type Change struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}

const (
	// writeWait 单条消息写超时
	writeWait = 10 * time.Second
	// sendBuffer 每个连接的待发送队列长度，队列满视为慢客户端并断开
	sendBuffer = 32
)

// client 一个 WebSocket 连接，由独立的写协程发送消息
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub 进程内发布订阅 + WebSocket 推送（按主题分组）
type Hub struct {
	mu          sync.RWMutex
	conns       map[string]map[*client]struct{}
	subscribers map[string]map[chan Change]struct{}
	upgrader    websocket.Upgrader
}

// NewHub 创建 Hub
func NewHub() *Hub {
	return &Hub{
		conns:       make(map[string]map[*client]struct{}),
		subscribers: make(map[string]map[chan Change]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Subscribe 订阅主题，返回通知通道和取消函数。
// 通知只是“需要重新读取”的触发信号，通道满时丢弃新通知。
func (h *Hub) Subscribe(topic string) (<-chan Change, func()) {
	ch := make(chan Change, 16)

	h.mu.Lock()
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[chan Change]struct{})
	}
	h.subscribers[topic][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[topic], ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish 发布变更：通知进程内订阅者并推送给该主题的 WebSocket 客户端。
// 不会阻塞：订阅通道或连接发送队列已满时丢弃，慢连接直接断开。
func (h *Hub) Publish(topic string, payload interface{}) {
	change := Change{Topic: topic, Payload: payload, At: time.Now()}

	h.mu.RLock()
	for ch := range h.subscribers[topic] {
		select {
		case ch <- change:
		default:
		}
	}
	clients := len(h.conns[topic])
	h.mu.RUnlock()

	if clients == 0 {
		return
	}

	data, err := json.Marshal(change)
	if err != nil {
		log.Printf("[Realtime] marshal %s payload error: %v", topic, err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for cl := range h.conns[topic] {
		select {
		case cl.send <- data:
		default:
			slow = append(slow, cl)
		}
	}
	h.mu.RUnlock()

	for _, cl := range slow {
		log.Printf("[Realtime] %s 客户端 %s 接收过慢，断开连接", topic, cl.conn.RemoteAddr())
		h.remove(topic, cl)
	}
}

// remove 注销连接并关闭发送队列，只有第一次调用生效
func (h *Hub) remove(topic string, cl *client) {
	h.mu.Lock()
	if _, ok := h.conns[topic][cl]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns[topic], cl)
	close(cl.send)
	h.mu.Unlock()

	metrics.WebSocketClients.Dec()
	cl.conn.Close()
}

// writePump 串行写出发送队列，写超时或失败即关闭连接
func (cl *client) writePump() {
	for data := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			cl.conn.Close()
			return
		}
	}
}

// ClientCount 某主题的 WebSocket 连接数
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[topic])
}

// HandleWebSocket 升级为 WebSocket 并注册到 topic 查询参数指定的主题
func (h *Hub) HandleWebSocket(c *gin.Context) {
	topic := c.Query("topic")
	if !PublicTopic(topic) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_TOPIC", "message": "Unknown topic"})
		return
	}
	h.ServeTopic(c, topic)
}

// ServeTopic 升级为 WebSocket 并注册到指定主题
func (h *Hub) ServeTopic(c *gin.Context, topic string) {
	if !PublicTopic(topic) && topic != TopicLogs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_TOPIC", "message": "Unknown topic"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	cl := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	if h.conns[topic] == nil {
		h.conns[topic] = make(map[*client]struct{})
	}
	h.conns[topic][cl] = struct{}{}
	h.mu.Unlock()
	metrics.WebSocketClients.Inc()
	defer h.remove(topic, cl)

	go cl.writePump()

	// 保持连接，读取客户端消息（心跳）
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// PublicTopic 无需登录即可订阅的主题
func PublicTopic(topic string) bool {
	switch topic {
	case TopicCompetition, TopicParticipants, TopicLeaderboard, TopicTimer:
		return true
	}
	return false
}
