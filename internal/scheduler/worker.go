package scheduler

import (
	"context"

	"rightsize_backend/internal/events"
	"rightsize_backend/platform/config"
	"rightsize_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes queued window firings and re-enters the lifecycle via
// the event bus.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	bus    events.Bus
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bus events.Bus, log *logger.Logger) (*Worker, error) {
	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(redisClientOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		bus:    bus,
		log:    log,
	}

	mux.HandleFunc(TaskWindowFire, w.handleWindowFire)

	return w, nil
}

func (w *Worker) handleWindowFire(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseWindowFirePayload(task)
	if err != nil {
		return err
	}

	opsItemID, err := uuid.Parse(payload.OpsItemID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.WindowFired{
		BaseEvent:  events.NewBaseEvent(),
		OpsItemID:  opsItemID,
		Deployment: payload.Deployment,
	})
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
