package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/internal/insights/service"
	"rightsize_backend/internal/insights/transport"
	"rightsize_backend/platform/apperr"
	"rightsize_backend/platform/logger"
	"rightsize_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubConfig struct{}

func (stubConfig) GetWorkerPoolSize() int              { return 1 }
func (stubConfig) GetWaitCeiling() time.Duration       { return time.Minute }
func (stubConfig) GetCancellationThreshold() float64   { return 0 }
func (stubConfig) GetDriftPollInterval() time.Duration { return time.Millisecond }
func (stubConfig) GetDriftPollBudget() time.Duration   { return time.Millisecond }
func (stubConfig) GetTicketRetryAttempts() int         { return 1 }
func (stubConfig) GetTicketRetryDelay() time.Duration  { return time.Millisecond }

// stubStore serves a fixed set of records; writes are rejected.
type stubStore struct {
	records map[string]*domain.TrackedRecord
}

func (s *stubStore) Get(ctx context.Context, key string) (*domain.TrackedRecord, error) {
	record, ok := s.records[key]
	if !ok {
		return nil, apperr.NotFound("parameter not found")
	}
	return record, nil
}

func (s *stubStore) Put(ctx context.Context, key, value, description string) (int64, error) {
	return 0, apperr.Internal("read-only store", nil)
}

func (s *stubStore) Label(ctx context.Context, key string, version int64, label domain.Label) error {
	return apperr.Internal("read-only store", nil)
}

func (s *stubStore) ListTags(ctx context.Context, key string) (map[string]string, error) {
	record, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return record.Tags, nil
}

func (s *stubStore) AddTags(ctx context.Context, key string, tags map[string]string) error {
	return apperr.Internal("read-only store", nil)
}

func (s *stubStore) RemoveTags(ctx context.Context, key string, names []string) error {
	return apperr.Internal("read-only store", nil)
}

type stubTracker struct{}

func (stubTracker) Create(ctx context.Context, item *domain.OpsItem) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (stubTracker) Update(ctx context.Context, id uuid.UUID, update ports.ItemUpdate) error {
	return nil
}

func (stubTracker) Query(ctx context.Context, filter ports.ItemFilter) ([]uuid.UUID, error) {
	return nil, nil
}

func (stubTracker) Get(ctx context.Context, id uuid.UUID) (*domain.OpsItem, error) {
	return nil, apperr.NotFound("correlation item not found")
}

type stubWindows struct{}

func (stubWindows) FindActive(ctx context.Context, name string) (*domain.MaintenanceWindow, error) {
	return nil, apperr.NotFound("window not found")
}

func (stubWindows) Create(ctx context.Context, window domain.MaintenanceWindow) (uuid.UUID, error) {
	return uuid.New(), nil
}

func (stubWindows) Update(ctx context.Context, window domain.MaintenanceWindow) error { return nil }

func (stubWindows) RegisterTask(ctx context.Context, windowID uuid.UUID, payload []byte) error {
	return nil
}

func (stubWindows) Delete(ctx context.Context, windowID uuid.UUID) error { return nil }

type stubStack struct{}

func (stubStack) DetectDrift(ctx context.Context, stackID string) (string, error) { return "d-1", nil }

func (stubStack) PollDrift(ctx context.Context, detectionID string) (ports.DriftPoll, error) {
	return ports.DriftPoll{}, nil
}

func (stubStack) Update(ctx context.Context, stackID string) error { return nil }

func (stubStack) Status(ctx context.Context, stackID string) (string, error) {
	return "UPDATE_COMPLETE", nil
}

type stubTickets struct{}

func (stubTickets) Open(ctx context.Context, tags map[string]string) (string, error) {
	return "", nil
}

func (stubTickets) Schedule(ctx context.Context, ticketID string, window domain.MaintenanceWindow) error {
	return nil
}

func (stubTickets) Close(ctx context.Context, ticketID string) error  { return nil }
func (stubTickets) Cancel(ctx context.Context, ticketID string) error { return nil }

func (stubTickets) Update(ctx context.Context, ticketID string, fields map[string]string) error {
	return nil
}

func (stubTickets) Attach(ctx context.Context, ticketID, name string, content []byte) error {
	return nil
}

func newTestRouter(t *testing.T, store *stubStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("test")
	svc := service.New(store, stubTracker{}, stubWindows{}, stubStack{}, stubTickets{}, nil, stubConfig{}, log)
	h := New(svc, validator.New())

	engine := gin.New()
	h.RegisterRoutes(engine.Group("/insights"))
	return engine
}

func TestGetRecordReturnsVersion(t *testing.T) {
	key := "/optimizer/iaas/ec2/i-0abc/instanceType"
	store := &stubStore{records: map[string]*domain.TrackedRecord{
		key: {
			Key:     key,
			Value:   "t3.large",
			Version: 4294967299,
			Label:   domain.LabelApproved,
			Tags:    map[string]string{"stackName": "web-stack"},
		},
	}}
	engine := newTestRouter(t, store)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/insights/records?parameterKey="+key, nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	var resp transport.RecordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ParameterKey != key {
		t.Fatalf("parameterKey = %q, want %q", resp.ParameterKey, key)
	}
	if resp.Version != 4294967299 {
		t.Fatalf("version = %d, want 4294967299", resp.Version)
	}
	if resp.Label != domain.LabelApproved.String() {
		t.Fatalf("label = %q, want %q", resp.Label, domain.LabelApproved.String())
	}
}

func TestGetRecordMissingKey(t *testing.T) {
	engine := newTestRouter(t, &stubStore{records: map[string]*domain.TrackedRecord{}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/insights/records", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	engine := newTestRouter(t, &stubStore{records: map[string]*domain.TrackedRecord{}})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/insights/records?parameterKey=/optimizer/iaas/ec2/i-0missing/instanceType", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
