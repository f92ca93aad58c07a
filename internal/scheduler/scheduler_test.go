package scheduler

import (
	"context"
	"testing"
	"time"

	"rightsize_backend/internal/events"
	"rightsize_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

type schedCfg struct {
	addr string
}

func (c schedCfg) GetRedisAddr() string                 { return c.addr }
func (c schedCfg) GetRedisPassword() string             { return "" }
func (c schedCfg) GetRedisDB() int                      { return 0 }
func (c schedCfg) GetAsynqQueueName() string            { return "windows" }
func (c schedCfg) GetAsynqConcurrency() int             { return 1 }
func (c schedCfg) GetWindowScanInterval() time.Duration { return time.Millisecond }

type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(ctx context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(eventName string, handler events.Handler) {}

type fakeSource struct {
	due         []DueWindow
	rescheduled []uuid.UUID
}

func (f *fakeSource) ListDue(ctx context.Context, now time.Time) ([]DueWindow, error) {
	return f.due, nil
}

func (f *fakeSource) Reschedule(ctx context.Context, id uuid.UUID, firedAt time.Time) error {
	f.rescheduled = append(f.rescheduled, id)
	return nil
}

func TestHandleWindowFirePublishesEvent(t *testing.T) {
	bus := &recordingBus{}
	w := &Worker{bus: bus, log: logger.New("test")}

	itemID := uuid.New()
	task, err := NewWindowFireTask(WindowFirePayload{
		OpsItemID:  itemID.String(),
		Deployment: "web-stack",
	})
	if err != nil {
		t.Fatalf("build task: %v", err)
	}

	if err := w.handleWindowFire(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(bus.published) != 1 {
		t.Fatalf("expected 1 event, got %d", len(bus.published))
	}
	fired, ok := bus.published[0].(events.WindowFired)
	if !ok {
		t.Fatalf("expected WindowFired, got %T", bus.published[0])
	}
	if fired.OpsItemID != itemID || fired.Deployment != "web-stack" {
		t.Fatalf("unexpected event %+v", fired)
	}
}

func TestHandleWindowFireRejectsBadItemID(t *testing.T) {
	w := &Worker{bus: &recordingBus{}, log: logger.New("test")}
	task := asynq.NewTask(TaskWindowFire, []byte(`{"opsItemId":"not-a-uuid"}`))
	if err := w.handleWindowFire(context.Background(), task); err == nil {
		t.Fatalf("expected error for malformed item id")
	}
}

func TestDispatcherEnqueuesAndReschedulesDueWindows(t *testing.T) {
	redis := miniredis.RunT(t)
	cfg := schedCfg{addr: redis.Addr()}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer func() { _ = client.Close() }()

	windowID := uuid.New()
	source := &fakeSource{due: []DueWindow{{
		ID:      windowID,
		Name:    "mw-web-stack",
		Payload: []byte(`{"opsItemId":"` + uuid.NewString() + `","deployment":"web-stack"}`),
	}}}

	d := NewDispatcher(cfg, source, client, logger.New("test"))
	d.scan(context.Background(), time.Now())

	if len(source.rescheduled) != 1 || source.rescheduled[0] != windowID {
		t.Fatalf("expected window rescheduled, got %v", source.rescheduled)
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: redis.Addr()})
	defer func() { _ = inspector.Close() }()
	tasks, err := inspector.ListPendingTasks("windows")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Type != TaskWindowFire {
		t.Fatalf("expected 1 pending window fire task, got %v", tasks)
	}
}

func TestDispatcherSkipsUnreadablePayload(t *testing.T) {
	redis := miniredis.RunT(t)
	cfg := schedCfg{addr: redis.Addr()}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	defer func() { _ = client.Close() }()

	source := &fakeSource{due: []DueWindow{{
		ID:      uuid.New(),
		Name:    "mw-broken",
		Payload: []byte("not json"),
	}}}

	d := NewDispatcher(cfg, source, client, logger.New("test"))
	d.scan(context.Background(), time.Now())

	if len(source.rescheduled) != 0 {
		t.Fatalf("expected broken window left alone, got %v", source.rescheduled)
	}
}
