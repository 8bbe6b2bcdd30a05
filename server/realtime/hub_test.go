package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestSubscribeReceivesPublishedChange(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(TopicParticipants)
	defer cancel()

	hub.Publish(TopicParticipants, map[string]string{"email": "a@b.co"})
	hub.Publish(TopicCompetition, "ignored")

	select {
	case change := <-ch:
		if change.Topic != TopicParticipants {
			t.Errorf("Topic = %s, want %s", change.Topic, TopicParticipants)
		}
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	select {
	case change := <-ch:
		t.Fatalf("unexpected change on other topic: %+v", change)
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(TopicTimer)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
	hub.Publish(TopicTimer, 1)
}

func TestPublishDoesNotBlockOnSlowSubscriber(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe(TopicLeaderboard)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish(TopicLeaderboard, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestWebSocketReceivesTopicMessages(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?topic=" + TopicLeaderboard
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(TopicLeaderboard) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(TopicLeaderboard, []int{1, 2, 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Topic   string `json:"topic"`
		Payload []int  `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Topic != TopicLeaderboard || len(msg.Payload) != 3 {
		t.Errorf("message = %+v", msg)
	}
}

func TestWebSocketRejectsUnknownTopic(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", hub.HandleWebSocket)

	for _, topic := range []string{"", "nope", TopicLogs} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/ws?topic="+topic, nil)
		r.ServeHTTP(w, req)
		if w.Code != 400 {
			t.Errorf("topic %q: status = %d, want 400", topic, w.Code)
		}
	}
}

func TestPublishDoesNotBlockOnStalledWebSocketClient(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	r := gin.New()
	r.GET("/ws", hub.HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	// 连接后从不读取
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?topic=" + TopicTimer
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount(TopicTimer) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	big := strings.Repeat("x", 256<<10)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(TopicTimer, big)
		}
		hub.Publish(TopicCompetition, 1)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Publish blocked behind a client that never reads")
	}

	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount(TopicTimer) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("stalled client was not dropped")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
