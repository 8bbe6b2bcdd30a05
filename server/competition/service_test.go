package competition

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"speedcad/server/apperr"
	"speedcad/server/realtime"
	"speedcad/server/storage"
)

type memStore struct {
	mu      sync.Mutex
	state   State
	loadErr error
	saveErr error
	saves   int
}

func (m *memStore) Load(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return State{}, m.loadErr
	}
	return m.state, nil
}

func (m *memStore) Save(ctx context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = s
	m.saves++
	return nil
}

func (m *memStore) current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

type fakeFiles struct {
	err  error
	puts int
}

func (f *fakeFiles) Put(ctx context.Context, kind storage.Kind, owner, filename string, r io.Reader) (storage.Object, error) {
	if f.err != nil {
		return storage.Object{}, f.err
	}
	f.puts++
	return storage.Object{Key: string(kind) + "/" + owner + "/" + filename, URL: "/files/" + string(kind) + "/" + owner + "/" + filename}, nil
}

func (f *fakeFiles) Owns(kind storage.Kind, owner, url string) bool { return true }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *memStore, *fakeFiles, *realtime.Hub, *clock) {
	t.Helper()
	store := &memStore{state: Initial()}
	files := &fakeFiles{}
	hub := realtime.NewHub()
	clk := &clock{t: t0}
	svc := NewService(store, files, hub, time.Second)
	svc.now = clk.now
	return svc, store, files, hub, clk
}

func TestServiceLifecycle(t *testing.T) {
	svc, store, _, hub, clk := newTestService(t)
	ctx := context.Background()
	changes, cancel := hub.Subscribe(realtime.TopicCompetition)
	defer cancel()

	v, err := svc.Start(ctx, "PLA", 0.35)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if v.Status != StatusActive || v.Elapsed != 0 {
		t.Fatalf("Start() view = %+v", v)
	}
	select {
	case change := <-changes:
		pub, ok := change.Payload.(View)
		if !ok || pub.ReferenceWeight != nil {
			t.Errorf("published payload must hide reference weight: %+v", change.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no competition change published")
	}

	clk.advance(95 * time.Second)
	if v, err = svc.Pause(ctx); err != nil || v.Elapsed != 95 {
		t.Fatalf("Pause() = %+v, %v", v, err)
	}

	clk.advance(10 * time.Minute)
	if v, err = svc.Current(ctx); err != nil || v.Elapsed != 95 {
		t.Fatalf("Current() while paused = %+v, %v", v, err)
	}

	if v, err = svc.Resume(ctx); err != nil || v.Elapsed != 95 || v.Status != StatusActive {
		t.Fatalf("Resume() = %+v, %v", v, err)
	}

	clk.advance(5 * time.Second)
	if v, err = svc.Stop(ctx); err != nil || v.Status != StatusExpired || v.Elapsed != 100 {
		t.Fatalf("Stop() = %+v, %v", v, err)
	}

	if v, err = svc.Reset(ctx); err != nil || v.Status != StatusWaiting || v.StartTime != nil {
		t.Fatalf("Reset() = %+v, %v", v, err)
	}
	if store.saves != 5 {
		t.Errorf("saves = %d, want 5", store.saves)
	}
}

func TestServiceStartValidationLeavesStatus(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)

	_, err := svc.Start(context.Background(), "", 1)
	if !apperr.Is(err, apperr.TypeValidation) {
		t.Fatalf("Start() error = %v, want validation", err)
	}
	if store.saves != 0 || store.current().Status != StatusWaiting {
		t.Errorf("rejected start mutated the store: %+v", store.current())
	}
}

func TestServiceSaveFailureIsTransientAndUnchanged(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Start(ctx, "Steel", 7.8); err != nil {
		t.Fatal(err)
	}

	store.saveErr = errors.New("connection refused")
	v, err := svc.Pause(ctx)
	if !apperr.Is(err, apperr.TypeTransientIO) {
		t.Fatalf("Pause() error = %v, want transient", err)
	}
	if v.Status != StatusActive {
		t.Errorf("returned view = %s, want the pre-transition state", v.Status)
	}
	if store.current().Status != StatusActive {
		t.Errorf("stored status = %s, want active", store.current().Status)
	}
}

func TestServiceLoadFailure(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)
	store.loadErr = errors.New("timeout")

	if _, err := svc.Current(context.Background()); !apperr.Is(err, apperr.TypeTransientIO) {
		t.Fatalf("Current() error = %v, want transient", err)
	}
	if _, err := svc.Start(context.Background(), "PLA", 1); !apperr.Is(err, apperr.TypeTransientIO) {
		t.Fatalf("Start() error = %v, want transient", err)
	}
}

func TestServiceUpdateMaterialAndTolerance(t *testing.T) {
	svc, store, _, _, _ := newTestService(t)
	ctx := context.Background()

	w := 2.5
	v, err := svc.UpdateMaterial(ctx, " ABS ", &w)
	if err != nil {
		t.Fatalf("UpdateMaterial() error = %v", err)
	}
	if v.Material != "ABS" || *v.ReferenceWeight != 2.5 || v.Status != StatusWaiting {
		t.Errorf("UpdateMaterial() = %+v", v)
	}

	bad := -1.0
	if _, err := svc.UpdateMaterial(ctx, "ABS", &bad); !apperr.Is(err, apperr.TypeValidation) {
		t.Errorf("negative weight error = %v", err)
	}
	if _, err := svc.UpdateMaterial(ctx, "  ", nil); !apperr.Is(err, apperr.TypeValidation) {
		t.Errorf("empty material error = %v", err)
	}

	if v, err = svc.UpdateTolerance(ctx, 2.5); err != nil || v.Tolerance != 2.5 {
		t.Fatalf("UpdateTolerance() = %+v, %v", v, err)
	}
	if _, err := svc.UpdateTolerance(ctx, 0); !apperr.Is(err, apperr.TypeValidation) {
		t.Errorf("zero tolerance error = %v", err)
	}
	if store.current().Tolerance != 2.5 {
		t.Errorf("stored tolerance = %v", store.current().Tolerance)
	}
}

func TestServiceUploadDrawing(t *testing.T) {
	svc, store, files, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.UploadDrawing(ctx, "plate.exe", 10, strings.NewReader("x")); !apperr.Is(err, apperr.TypeValidation) {
		t.Fatalf("bad extension error = %v", err)
	}
	if files.puts != 0 {
		t.Fatal("rejected drawing must not be uploaded")
	}

	v, err := svc.UploadDrawing(ctx, "plate.pdf", 10, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("UploadDrawing() error = %v", err)
	}
	if v.DrawingURL == nil || *v.DrawingURL != "/files/drawings/admin/plate.pdf" {
		t.Errorf("DrawingURL = %v", v.DrawingURL)
	}

	store.saveErr = errors.New("down")
	_, err = svc.UploadDrawing(ctx, "plate2.pdf", 10, strings.NewReader("x"))
	appErr := apperr.As(err)
	if appErr == nil || appErr.Type != apperr.TypePartialFailure || appErr.FileURL == "" {
		t.Fatalf("UploadDrawing() with failing store = %v, want partial failure", err)
	}

	files.err = errors.New("disk full")
	if _, err := svc.UploadDrawing(ctx, "plate3.pdf", 10, strings.NewReader("x")); !apperr.Is(err, apperr.TypeTransientIO) {
		t.Fatalf("UploadDrawing() with failing storage = %v, want transient", err)
	}
}
