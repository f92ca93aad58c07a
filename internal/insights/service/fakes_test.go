package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"rightsize_backend/internal/insights/domain"
	"rightsize_backend/internal/insights/ports"
	"rightsize_backend/platform/apperr"
	"rightsize_backend/platform/logger"

	"github.com/google/uuid"
)

type testConfig struct {
	workerPoolSize        int
	waitCeiling           time.Duration
	cancellationThreshold float64
	driftPollInterval     time.Duration
	driftPollBudget       time.Duration
	ticketRetryAttempts   int
	ticketRetryDelay      time.Duration
}

func (c testConfig) GetWorkerPoolSize() int              { return c.workerPoolSize }
func (c testConfig) GetWaitCeiling() time.Duration       { return c.waitCeiling }
func (c testConfig) GetCancellationThreshold() float64   { return c.cancellationThreshold }
func (c testConfig) GetDriftPollInterval() time.Duration { return c.driftPollInterval }
func (c testConfig) GetDriftPollBudget() time.Duration   { return c.driftPollBudget }
func (c testConfig) GetTicketRetryAttempts() int         { return c.ticketRetryAttempts }
func (c testConfig) GetTicketRetryDelay() time.Duration  { return c.ticketRetryDelay }

func defaultTestConfig() testConfig {
	return testConfig{
		workerPoolSize:        2,
		waitCeiling:           time.Minute,
		cancellationThreshold: 0,
		driftPollInterval:     time.Millisecond,
		driftPollBudget:       50 * time.Millisecond,
		ticketRetryAttempts:   1,
		ticketRetryDelay:      time.Millisecond,
	}
}

type storedRecord struct {
	value        string
	description  string
	version      int64
	label        domain.Label
	labelVersion int64
	tags         map[string]string
}

// fakeStore mimics the versioned parameter store: Put appends a version,
// a label sticks to the version it was attached to.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*storedRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*storedRecord)}
}

func (f *fakeStore) Get(ctx context.Context, key string) (*domain.TrackedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key]
	if !ok {
		return nil, apperr.NotFound("parameter not found")
	}
	label := domain.LabelNone
	if r.labelVersion == r.version {
		label = r.label
	}
	tags := make(map[string]string, len(r.tags))
	for k, v := range r.tags {
		tags[k] = v
	}
	return &domain.TrackedRecord{
		Key:         key,
		Value:       r.value,
		Description: r.description,
		Version:     r.version,
		Label:       label,
		Tags:        tags,
	}, nil
}

func (f *fakeStore) Put(ctx context.Context, key, value, description string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key]
	if !ok {
		r = &storedRecord{tags: make(map[string]string)}
		f.records[key] = r
	}
	r.version++
	r.value = value
	r.description = description
	return r.version, nil
}

func (f *fakeStore) Label(ctx context.Context, key string, version int64, label domain.Label) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key]
	if !ok {
		return apperr.NotFound("parameter not found")
	}
	r.label = label
	r.labelVersion = version
	return nil
}

func (f *fakeStore) ListTags(ctx context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key]
	if !ok {
		return nil, apperr.NotFound("parameter not found")
	}
	tags := make(map[string]string, len(r.tags))
	for k, v := range r.tags {
		tags[k] = v
	}
	return tags, nil
}

func (f *fakeStore) AddTags(ctx context.Context, key string, tags map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key]
	if !ok {
		return apperr.NotFound("parameter not found")
	}
	for k, v := range tags {
		r.tags[k] = v
	}
	return nil
}

func (f *fakeStore) RemoveTags(ctx context.Context, key string, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[key]
	if !ok {
		return apperr.NotFound("parameter not found")
	}
	for _, n := range names {
		delete(r.tags, n)
	}
	return nil
}

func (f *fakeStore) versionOf(key string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.records[key]; ok {
		return r.version
	}
	return 0
}

type fakeTracker struct {
	mu    sync.Mutex
	items map[uuid.UUID]*domain.OpsItem
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{items: make(map[uuid.UUID]*domain.OpsItem)}
}

func (f *fakeTracker) Create(ctx context.Context, item *domain.OpsItem) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	stored := *item
	stored.ID = id
	if stored.OperationalData == nil {
		stored.OperationalData = make(map[string]string)
	}
	f.items[id] = &stored
	return id, nil
}

func (f *fakeTracker) Update(ctx context.Context, id uuid.UUID, update ports.ItemUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return apperr.NotFound("item not found")
	}
	if update.Status != nil {
		item.Status = *update.Status
	}
	for k, v := range update.OperationalData {
		item.OperationalData[k] = v
	}
	if update.Related != nil {
		related := domain.NewRelatedSet(update.Related.IDs()...)
		item.Related = related
	}
	return nil
}

func (f *fakeTracker) Query(ctx context.Context, filter ports.ItemFilter) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for id, item := range f.items {
		match := true
		for k, v := range filter.OperationalData {
			if item.OperationalData[k] != v {
				match = false
				break
			}
		}
		if !match {
			continue
		}
		if len(filter.StatusIn) > 0 {
			found := false
			for _, st := range filter.StatusIn {
				if item.Status == st {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeTracker) Get(ctx context.Context, id uuid.UUID) (*domain.OpsItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("item not found")
	}
	copied := *item
	copied.OperationalData = make(map[string]string, len(item.OperationalData))
	for k, v := range item.OperationalData {
		copied.OperationalData[k] = v
	}
	copied.Related = domain.NewRelatedSet(item.Related.IDs()...)
	return &copied, nil
}

func (f *fakeTracker) get(id uuid.UUID) *domain.OpsItem {
	item, _ := f.Get(context.Background(), id)
	return item
}

type fakeWindows struct {
	mu       sync.Mutex
	windows  map[uuid.UUID]*domain.MaintenanceWindow
	payloads map[uuid.UUID][]byte
}

func newFakeWindows() *fakeWindows {
	return &fakeWindows{
		windows:  make(map[uuid.UUID]*domain.MaintenanceWindow),
		payloads: make(map[uuid.UUID][]byte),
	}
}

func (f *fakeWindows) FindActive(ctx context.Context, name string) (*domain.MaintenanceWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.windows {
		if w.Name == name && w.Enabled {
			copied := *w
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("window not found")
}

func (f *fakeWindows) Create(ctx context.Context, window domain.MaintenanceWindow) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	window.ID = id
	f.windows[id] = &window
	return id, nil
}

func (f *fakeWindows) Update(ctx context.Context, window domain.MaintenanceWindow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.windows[window.ID]; !ok {
		return apperr.NotFound("window not found")
	}
	f.windows[window.ID] = &window
	return nil
}

func (f *fakeWindows) RegisterTask(ctx context.Context, windowID uuid.UUID, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[windowID] = payload
	return nil
}

func (f *fakeWindows) Delete(ctx context.Context, windowID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.windows[windowID]; !ok {
		return apperr.NotFound("window not found")
	}
	delete(f.windows, windowID)
	delete(f.payloads, windowID)
	return nil
}

func (f *fakeWindows) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.windows)
}

type fakeStack struct {
	mu          sync.Mutex
	detectErr   error
	polls       []ports.DriftPoll
	pollErr     error
	updated     []string
	detectCalls int
	liveStatus  string
	statusErr   error
}

func (f *fakeStack) DetectDrift(ctx context.Context, stackID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detectCalls++
	if f.detectErr != nil {
		return "", f.detectErr
	}
	return "detection-1", nil
}

func (f *fakeStack) PollDrift(ctx context.Context, detectionID string) (ports.DriftPoll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return ports.DriftPoll{}, f.pollErr
	}
	if len(f.polls) == 0 {
		return ports.DriftPoll{DetectionStatus: ports.DetectionInProgress}, nil
	}
	poll := f.polls[0]
	if len(f.polls) > 1 {
		f.polls = f.polls[1:]
	}
	return poll, nil
}

func (f *fakeStack) Update(ctx context.Context, stackID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, stackID)
	return nil
}

func (f *fakeStack) Status(ctx context.Context, stackID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if f.liveStatus == "" {
		return "UPDATE_COMPLETE", nil
	}
	return f.liveStatus, nil
}

func (f *fakeStack) updates() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updated...)
}

type fakeTickets struct {
	mu        sync.Mutex
	nextID    int
	openErr   error
	opened    []map[string]string
	scheduled []string
	closed    []string
	cancelled []string
	updated   []map[string]string
	attached  []string
}

func (f *fakeTickets) Open(ctx context.Context, tags map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return "", f.openErr
	}
	f.nextID++
	f.opened = append(f.opened, tags)
	return fmt.Sprintf("CHG%04d", f.nextID), nil
}

func (f *fakeTickets) Schedule(ctx context.Context, ticketID string, window domain.MaintenanceWindow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, ticketID)
	return nil
}

func (f *fakeTickets) Close(ctx context.Context, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, ticketID)
	return nil
}

func (f *fakeTickets) Cancel(ctx context.Context, ticketID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ticketID)
	return nil
}

func (f *fakeTickets) Update(ctx context.Context, ticketID string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, fields)
	return nil
}

func (f *fakeTickets) Attach(ctx context.Context, ticketID, name string, content []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attached = append(f.attached, name)
	return nil
}

type fakeArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string][]byte)}
}

func (f *fakeArchive) Store(ctx context.Context, name string, content io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := "2026/08/" + name
	f.objects[path] = data
	return path, nil
}

func (f *fakeArchive) Fetch(ctx context.Context, path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, apperr.NotFound("report not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type testEnv struct {
	svc     *Service
	store   *fakeStore
	tracker *fakeTracker
	windows *fakeWindows
	stack   *fakeStack
	tickets *fakeTickets
}

func newTestEnv(cfg testConfig) *testEnv {
	env := &testEnv{
		store:   newFakeStore(),
		tracker: newFakeTracker(),
		windows: newFakeWindows(),
		stack:   &fakeStack{},
		tickets: &fakeTickets{},
	}
	env.svc = New(env.store, env.tracker, env.windows, env.stack, env.tickets, nil, cfg, logger.New("test"))
	return env
}

func computeInsight(resourceID, current, recommended string) domain.Insight {
	return domain.Insight{
		ResourceID:      resourceID,
		ServiceType:     domain.ServiceCompute,
		Region:          "eu-west-1",
		CurrentType:     current,
		RecommendedType: recommended,
		SavingsEstimate: "42.50",
		StackID:         "arn:aws:cloudformation:eu-west-1:1:stack/web-stack/abc",
		StackName:       "web-stack",
		LogicalID:       "WebInstance",
	}
}

// itemFor resolves the correlation item tagged onto the record at key.
func (e *testEnv) itemFor(t *testing.T, key string) *domain.OpsItem {
	t.Helper()
	tags, err := e.store.ListTags(context.Background(), key)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	id, ok := parseItemID(tags[domain.TagOpsItemID])
	if !ok {
		t.Fatalf("expected ops item id tag on %s", key)
	}
	return e.tracker.get(id)
}

// advance walks one record through the lifecycle up to the wanted label,
// running the label fan-out between transitions the way the bus would.
func (e *testEnv) advance(t *testing.T, insight domain.Insight, want domain.Label) {
	t.Helper()
	ctx := context.Background()
	key := insight.ParameterKey()

	if err := e.svc.trackNew(ctx, insight); err != nil {
		t.Fatalf("trackNew: %v", err)
	}
	if err := e.svc.OnRecordLabeled(ctx, key, domain.LabelInitialize); err != nil {
		t.Fatalf("fan-out initialize: %v", err)
	}
	if want == domain.LabelInitialize {
		return
	}

	if _, err := e.svc.Approve(ctx, insight.ServiceType, insight.ResourceID, insight.Name); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := e.svc.OnRecordLabeled(ctx, key, domain.LabelApproved); err != nil {
		t.Fatalf("fan-out approved: %v", err)
	}
	if want == domain.LabelApproved {
		return
	}

	tags, err := e.store.ListTags(ctx, key)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	itemID, err := uuid.Parse(tags[domain.TagOpsItemID])
	if err != nil {
		t.Fatalf("parse ops item id: %v", err)
	}
	if _, err := e.svc.Schedule(ctx, ScheduleRequest{
		OpsItemID:      itemID,
		CronExpression: "0 2 * * 6",
		Timezone:       "UTC",
		DurationHours:  2,
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if want == domain.LabelScheduled {
		return
	}

	e.stack.polls = []ports.DriftPoll{{
		DetectionStatus:  ports.DetectionComplete,
		StackDriftStatus: ports.StackInSync,
		CheckedAt:        time.Now().Add(time.Minute),
	}}
	if err := e.svc.OnWindowFired(ctx, itemID); err != nil {
		t.Fatalf("window fired: %v", err)
	}
}
