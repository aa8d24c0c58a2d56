package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/courtcapture/internal/api"
	"github.com/jonesrussell/courtcapture/internal/capture"
	"github.com/jonesrussell/courtcapture/internal/comms"
	"github.com/jonesrussell/courtcapture/internal/config"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
	"github.com/jonesrussell/courtcapture/internal/metrics"
)

type fakeCaptureService struct {
	mu       sync.Mutex
	requests []*capture.Request
	done     chan struct{}
}

func (f *fakeCaptureService) Capture(_ context.Context, req *capture.Request) (*capture.Outcome, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.done != nil {
		close(f.done)
	}
	return &capture.Outcome{}, nil
}

type fakeRunReader struct {
	runs map[string]*domain.CaptureRun
}

func (f *fakeRunReader) GetByID(_ context.Context, id string) (*domain.CaptureRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, fmt.Errorf("capture run %s: %w", id, domain.ErrNotFound)
	}
	return run, nil
}

func (f *fakeRunReader) List(_ context.Context, _ int64, _, _ int) ([]*domain.CaptureRun, error) {
	return nil, nil
}

type fakeRawLogReader struct {
	entries []*domain.RawLogEntry
}

func (f *fakeRawLogReader) Query(_ context.Context, _ domain.RawLogFilter, _, _ int) ([]*domain.RawLogEntry, error) {
	return f.entries, nil
}

func (f *fakeRawLogReader) Count(_ context.Context, _ domain.RawLogFilter) (int, error) {
	return len(f.entries), nil
}

func (f *fakeRawLogReader) AggregateByStatus(_ context.Context, _ domain.RawLogFilter) ([]*domain.StatusCount, error) {
	return []*domain.StatusCount{{Status: domain.RawLogSuccess, Count: len(f.entries)}}, nil
}

func (f *fakeRawLogReader) AggregateByJurisdiction(_ context.Context, _ domain.RawLogFilter) ([]*domain.JurisdictionStats, error) {
	return []*domain.JurisdictionStats{}, nil
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) AnalyzeGaps(_ context.Context, _ domain.RawLogFilter) ([]*domain.GapReport, error) {
	return []*domain.GapReport{{Kind: domain.KindGeneralDocket, Expected: 10, Retrieved: 8, Gap: 2}}, nil
}

type fakeScheduleStore struct {
	nextID    int64
	schedules map[int64]*domain.ScheduleDefinition
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{schedules: map[int64]*domain.ScheduleDefinition{}}
}

func (f *fakeScheduleStore) Create(_ context.Context, s *domain.ScheduleDefinition) error {
	f.nextID++
	s.ID = f.nextID
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeScheduleStore) GetByID(_ context.Context, id int64) (*domain.ScheduleDefinition, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, fmt.Errorf("schedule %d: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

func (f *fakeScheduleStore) List(_ context.Context, _ int64, _, _ int) ([]*domain.ScheduleDefinition, error) {
	out := make([]*domain.ScheduleDefinition, 0, len(f.schedules))
	for _, s := range f.schedules {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeScheduleStore) Update(_ context.Context, s *domain.ScheduleDefinition) error {
	if _, ok := f.schedules[s.ID]; !ok {
		return fmt.Errorf("schedule %d: %w", s.ID, domain.ErrNotFound)
	}
	f.schedules[s.ID] = s
	return nil
}

func (f *fakeScheduleStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.schedules[id]; !ok {
		return fmt.Errorf("schedule %d: %w", id, domain.ErrNotFound)
	}
	delete(f.schedules, id)
	return nil
}

type fakeGuard struct{ busy map[int64]bool }

func (f *fakeGuard) ScheduleBusy(id int64) bool { return f.busy[id] }

type fakeFeed struct{ notices []*comms.Notice }

func (f *fakeFeed) Fetch(_ context.Context, _ url.Values) ([]*comms.Notice, error) {
	return f.notices, nil
}

type fakeIngestor struct{}

func (fakeIngestor) Ingest(_ context.Context, _ int64, notices []*comms.Notice) (*comms.Stats, error) {
	return &comms.Stats{Total: len(notices), Novos: len(notices)}, nil
}

type testServerOptions struct {
	service *fakeCaptureService
	runs    *fakeRunReader
	store   *fakeScheduleStore
	guard   *fakeGuard
	rawLogs *fakeRawLogReader
	notices []*comms.Notice
}

func newTestServer(t *testing.T, opts *testServerOptions) *api.Server {
	t.Helper()

	if opts.service == nil {
		opts.service = &fakeCaptureService{}
	}
	if opts.runs == nil {
		opts.runs = &fakeRunReader{runs: map[string]*domain.CaptureRun{}}
	}
	if opts.store == nil {
		opts.store = newFakeScheduleStore()
	}
	if opts.guard == nil {
		opts.guard = &fakeGuard{busy: map[int64]bool{}}
	}
	if opts.rawLogs == nil {
		opts.rawLogs = &fakeRawLogReader{}
	}

	log := logger.NewNoOp()
	return api.NewServer(
		config.ServerConfig{Port: 0},
		api.Handlers{
			Captures:       api.NewCapturesHandler(opts.service, opts.runs, log),
			RawLogs:        api.NewRawLogsHandler(opts.rawLogs, fakeAnalyzer{}),
			Schedules:      api.NewSchedulesHandler(opts.store, opts.guard),
			Communications: api.NewCommunicationsHandler(&fakeFeed{notices: opts.notices}, fakeIngestor{}, log),
			Health:         api.NewHealthHandler(nil, metrics.NewCollector()),
		},
		log,
	)
}

func doJSON(t *testing.T, server *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Engine().ServeHTTP(recorder, req)
	return recorder
}

func TestTriggerCaptureReturnsRunID(t *testing.T) {
	service := &fakeCaptureService{done: make(chan struct{})}
	server := newTestServer(t, &testServerOptions{service: service})

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/captures", map[string]any{
		"kind":         "acervo_geral",
		"account_id":   7,
		"jurisdiction": "trt3",
		"instance":     "primeiro_grau",
	})
	require.Equal(t, http.StatusAccepted, recorder.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["run_id"])

	select {
	case <-service.done:
	case <-time.After(2 * time.Second):
		t.Fatal("capture never dispatched")
	}
	assert.Equal(t, resp["run_id"], service.requests[0].RunID)
}

func TestTriggerCaptureRejectsUnknownKind(t *testing.T) {
	server := newTestServer(t, &testServerOptions{})

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/captures", map[string]any{
		"kind":         "inexistente",
		"account_id":   7,
		"jurisdiction": "trt3",
		"instance":     "primeiro_grau",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGetCaptureRun(t *testing.T) {
	runs := &fakeRunReader{runs: map[string]*domain.CaptureRun{
		"run-1": {ID: "run-1", Status: domain.StatusDone, Outcome: domain.OutcomeSuccess},
	}}
	server := newTestServer(t, &testServerOptions{runs: runs})

	recorder := doJSON(t, server, http.MethodGet, "/api/v1/captures/run-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, server, http.MethodGet, "/api/v1/captures/missing", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestRawLogsListWithStatsAndGaps(t *testing.T) {
	rawLogs := &fakeRawLogReader{entries: []*domain.RawLogEntry{
		{RunID: "run-1", Status: domain.RawLogSuccess},
	}}
	server := newTestServer(t, &testServerOptions{rawLogs: rawLogs})

	recorder := doJSON(t, server, http.MethodGet, "/api/v1/rawlogs?stats=true&gaps=true", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Contains(t, resp, "status_stats")
	assert.Contains(t, resp, "gaps")
}

func TestCreateScheduleComputesNextRun(t *testing.T) {
	store := newFakeScheduleStore()
	server := newTestServer(t, &testServerOptions{store: store})

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/schedules", map[string]any{
		"account_id":     7,
		"credencial_ids": []int64{1},
		"kind":           "acervo_geral",
		"periodicidade":  "diaria",
		"horario":        "06:00",
	})
	require.Equal(t, http.StatusCreated, recorder.Code)

	var created domain.ScheduleDefinition
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	assert.False(t, created.NextRun.IsZero())
	assert.True(t, created.Active)
}

func TestCreateScheduleRejectsMissingInterval(t *testing.T) {
	server := newTestServer(t, &testServerOptions{})

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/schedules", map[string]any{
		"account_id":     7,
		"credencial_ids": []int64{1},
		"kind":           "acervo_geral",
		"periodicidade":  "intervalo_dias",
		"horario":        "06:00",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
}

func TestDeleteBusyScheduleConflicts(t *testing.T) {
	store := newFakeScheduleStore()
	def := &domain.ScheduleDefinition{
		AccountID: 7, CredentialIDs: []int64{1}, Kind: domain.KindGeneralDocket,
		Periodicity: domain.PeriodicityDaily, TimeOfDay: "06:00", Active: true,
	}
	require.NoError(t, store.Create(context.Background(), def))

	guard := &fakeGuard{busy: map[int64]bool{def.ID: true}}
	server := newTestServer(t, &testServerOptions{store: store, guard: guard})

	recorder := doJSON(t, server, http.MethodDelete, fmt.Sprintf("/api/v1/schedules/%d", def.ID), nil)
	assert.Equal(t, http.StatusConflict, recorder.Code)

	guard.busy[def.ID] = false
	recorder = doJSON(t, server, http.MethodDelete, fmt.Sprintf("/api/v1/schedules/%d", def.ID), nil)
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestCommunicationsIngest(t *testing.T) {
	server := newTestServer(t, &testServerOptions{notices: []*comms.Notice{
		{CaseNumber: "0001-11.2024.5.03.0001", Court: "trt3"},
	}})

	recorder := doJSON(t, server, http.MethodPost, "/api/v1/communications/ingest", map[string]any{
		"account_id": 7,
		"numero_oab": "123456",
		"uf_oab":     "MG",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var stats comms.Stats
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Novos)
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, &testServerOptions{})

	recorder := doJSON(t, server, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, server, http.MethodGet, "/api/v1/metrics", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}
