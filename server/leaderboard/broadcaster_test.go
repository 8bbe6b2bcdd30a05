package leaderboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"speedcad/server/participant"
	"speedcad/server/realtime"
)

type listSource struct {
	mu      sync.Mutex
	records []participant.Participant
	err     error
}

func (s *listSource) List(ctx context.Context) ([]participant.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]participant.Participant(nil), s.records...), s.err
}

func (s *listSource) set(records ...participant.Participant) {
	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
}

func TestBroadcasterCompute(t *testing.T) {
	src := &listSource{}
	src.set(submitted(idA, "a", 50, 0))
	b := NewBroadcaster(src, realtime.NewHub(), time.Hour)

	entries, err := b.Compute(context.Background())
	if err != nil || len(entries) != 1 || entries[0].Rank != 1 {
		t.Fatalf("Compute() = %v, %v", entries, err)
	}

	src.err = errors.New("db down")
	if _, err := b.Compute(context.Background()); err == nil {
		t.Error("Compute() error = nil, want source error")
	}
}

func TestBroadcasterRepublishesOnParticipantChange(t *testing.T) {
	src := &listSource{}
	hub := realtime.NewHub()
	b := NewBroadcaster(src, hub, time.Hour)

	boards, cancelBoards := hub.Subscribe(realtime.TopicLeaderboard)
	defer cancelBoards()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	next := func() []Entry {
		t.Helper()
		select {
		case change := <-boards:
			return change.Payload.([]Entry)
		case <-time.After(2 * time.Second):
			t.Fatal("no leaderboard published")
			return nil
		}
	}

	if initial := next(); len(initial) != 0 {
		t.Fatalf("initial board = %v", initial)
	}

	src.set(submitted(idA, "a", 70, 0), submitted(idB, "b", 90, 0))
	hub.Publish(realtime.TopicParticipants, "changed")

	board := next()
	if len(board) != 2 || board[0].Name != "b" {
		t.Errorf("board after change = %+v", board)
	}
}
