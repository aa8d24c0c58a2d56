package capture_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/courtcapture/internal/capture"
	"github.com/jonesrussell/courtcapture/internal/courts"
	"github.com/jonesrussell/courtcapture/internal/credentials"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

type mockRunStore struct {
	created   *domain.CaptureRun
	finalized *domain.CaptureRun
}

func (m *mockRunStore) Create(_ context.Context, run *domain.CaptureRun) error {
	copied := *run
	m.created = &copied
	return nil
}

func (m *mockRunStore) Finalize(_ context.Context, run *domain.CaptureRun) error {
	copied := *run
	m.finalized = &copied
	return nil
}

type mockRawLogStore struct {
	entries []*domain.RawLogEntry
}

func (m *mockRawLogStore) Append(_ context.Context, entry *domain.RawLogEntry) error {
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *mockRawLogStore) errorCount() int {
	n := 0
	for _, e := range m.entries {
		if e.Status == domain.RawLogError {
			n++
		}
	}
	return n
}

type mockResolver struct {
	err error
}

func (m *mockResolver) Resolve(
	_ context.Context, _ int64, _ string, _ domain.Instance,
) (*credentials.Decrypted, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &credentials.Decrypted{CredentialID: 1, Login: "12345678900"}, nil
}

type mockPortal struct {
	pages       []capture.Page
	total       int
	authErr     error
	totalsErr   error
	pageErr     error
	documents   map[int64][]byte
	downloadErr error

	fetchedPages []int
}

func (m *mockPortal) Authenticate(
	_ context.Context, _ *courts.Config, _ *credentials.Decrypted,
) (*capture.Session, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return &capture.Session{}, nil
}

func (m *mockPortal) FetchPage(
	_ context.Context, _ *capture.Session, _ domain.CaptureKind, pageIndex, _ int, _ url.Values,
) (*capture.Page, error) {
	if m.pageErr != nil {
		return nil, m.pageErr
	}
	m.fetchedPages = append(m.fetchedPages, pageIndex)
	if pageIndex > len(m.pages) {
		return &capture.Page{}, nil
	}
	page := m.pages[pageIndex-1]
	page.PageCount = len(m.pages)
	return &page, nil
}

func (m *mockPortal) FetchTotals(_ context.Context, _ *capture.Session, _ url.Values) (int, error) {
	if m.totalsErr != nil {
		return 0, m.totalsErr
	}
	return m.total, nil
}

func (m *mockPortal) DownloadDocument(_ context.Context, _ *capture.Session, id int64) ([]byte, error) {
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	return m.documents[id], nil
}

type mockDocumentStore struct {
	stored map[int64][]byte
}

func (m *mockDocumentStore) Store(_ context.Context, _ string, id int64, data []byte) error {
	if m.stored == nil {
		m.stored = map[int64][]byte{}
	}
	m.stored[id] = data
	return nil
}

func testRegistry(t *testing.T) *courts.Registry {
	t.Helper()

	reg := courts.NewRegistry()
	reg.Add(&courts.Config{
		Code:     "trt3",
		Instance: domain.InstanceFirst,
		BaseURL:  "https://pje.example",
		ListPaths: map[string]string{
			string(domain.KindGeneralDocket): "/processos",
			string(domain.KindTimeline):      "/timeline",
		},
	})
	reg.RegisterParser("trt3", domain.KindGeneralDocket, func(raw json.RawMessage) (domain.NormalizedRecord, error) {
		if bytes.Contains(raw, []byte("corrupt")) {
			return nil, errors.New("malformed item")
		}
		var d domain.DocketEntry
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		return &d, nil
	})
	reg.RegisterParser("trt3", domain.KindTimeline, func(raw json.RawMessage) (domain.NormalizedRecord, error) {
		var e domain.TimelineEvent
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		return &e, nil
	})
	return reg
}

func newTestExecutor(
	t *testing.T,
	portal *mockPortal,
	resolver *mockResolver,
	docs capture.DocumentStore,
) (*capture.Executor, *mockRunStore, *mockRawLogStore) {
	t.Helper()

	runs := &mockRunStore{}
	rawLog := &mockRawLogStore{}
	exec := capture.NewExecutor(
		testRegistry(t), resolver, portal, runs, rawLog, docs, nil,
		logger.NewNoOp(), capture.Config{PageSize: 2, RunTimeout: time.Minute},
	)
	return exec, runs, rawLog
}

func docketItem(caseNumber string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{"case_number": caseNumber})
	return raw
}

func docketRequest() *capture.Request {
	return &capture.Request{
		Kind:         domain.KindGeneralDocket,
		AccountID:    7,
		Jurisdiction: "trt3",
		Instance:     domain.InstanceFirst,
	}
}

func TestRunSuccess(t *testing.T) {
	portal := &mockPortal{
		pages: []capture.Page{
			{Items: []json.RawMessage{docketItem("0001"), docketItem("0002")}},
			{Items: []json.RawMessage{docketItem("0003")}},
		},
		total: 3,
	}
	exec, runs, rawLog := newTestExecutor(t, portal, &mockResolver{}, nil)

	result, err := exec.Run(context.Background(), docketRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, result.Run.Outcome)
	assert.Equal(t, 3, result.Run.Retrieved)
	assert.Equal(t, 3, result.Run.Totalizer)
	assert.Len(t, result.Records, 3)
	assert.Len(t, rawLog.entries, 3)
	assert.Equal(t, []int{1, 2}, portal.fetchedPages, "pages must be fetched in order")

	require.NotNil(t, runs.finalized)
	assert.Equal(t, domain.StatusDone, runs.finalized.Status)
	assert.NotNil(t, runs.finalized.FinishedAt)
}

func TestRunPartial(t *testing.T) {
	portal := &mockPortal{
		pages: []capture.Page{{Items: []json.RawMessage{docketItem("0001")}}},
		total: 5,
	}
	exec, runs, _ := newTestExecutor(t, portal, &mockResolver{}, nil)

	result, err := exec.Run(context.Background(), docketRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomePartial, result.Run.Outcome)
	assert.Equal(t, string(domain.CodePartialCapture), result.Run.ErrorCode)
	assert.Len(t, result.Records, 1, "partial runs still hand records downstream")
	assert.Equal(t, domain.StatusDone, runs.finalized.Status)
}

func TestRunTotalizerExceeded(t *testing.T) {
	portal := &mockPortal{
		pages: []capture.Page{{Items: []json.RawMessage{docketItem("0001"), docketItem("0002")}}},
		total: 1,
	}
	exec, runs, _ := newTestExecutor(t, portal, &mockResolver{}, nil)

	result, err := exec.Run(context.Background(), docketRequest())
	require.Error(t, err)

	assert.Equal(t, domain.CodeTotalizerExceeded, domain.CodeOf(err))
	assert.Equal(t, domain.OutcomeFailure, result.Run.Outcome)
	assert.Empty(t, result.Records, "untrusted data must not reach the synchronizer")
	assert.Equal(t, domain.StatusDone, runs.finalized.Status)
	assert.Equal(t, string(domain.CodeTotalizerExceeded), runs.finalized.ErrorCode)
}

func TestRunItemParseFailureIsIsolated(t *testing.T) {
	portal := &mockPortal{
		pages: []capture.Page{{Items: []json.RawMessage{
			docketItem("0001"),
			json.RawMessage(`{"case_number":"corrupt"`),
		}}},
		total: 1,
	}
	exec, _, rawLog := newTestExecutor(t, portal, &mockResolver{}, nil)

	result, err := exec.Run(context.Background(), docketRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, result.Run.Outcome)
	assert.Equal(t, 1, result.Run.Retrieved)
	assert.Len(t, result.Records, 1)
	assert.Len(t, rawLog.entries, 2, "failed items still land in the raw log")
	assert.Equal(t, 1, rawLog.errorCount())
}

func TestRunCredentialNotFound(t *testing.T) {
	resolver := &mockResolver{err: domain.ErrCredentialNotFound}
	exec, runs, _ := newTestExecutor(t, &mockPortal{}, resolver, nil)

	_, err := exec.Run(context.Background(), docketRequest())
	require.Error(t, err)

	assert.Equal(t, domain.CodeCredentialNotFound, domain.CodeOf(err))
	assert.Equal(t, domain.OutcomeFailure, runs.finalized.Outcome)
}

func TestRunAuthError(t *testing.T) {
	portal := &mockPortal{
		authErr: domain.NewCaptureError(domain.CodeAuthError, "senha expirada", nil),
	}
	exec, runs, _ := newTestExecutor(t, portal, &mockResolver{}, nil)

	_, err := exec.Run(context.Background(), docketRequest())
	require.Error(t, err)

	assert.Equal(t, domain.CodeAuthError, domain.CodeOf(err))
	assert.Equal(t, string(domain.CodeAuthError), runs.finalized.ErrorCode)
	assert.Contains(t, runs.finalized.ErrorMessage, "senha expirada")
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	exec, runs, _ := newTestExecutor(t, &mockPortal{}, &mockResolver{}, nil)

	_, err := exec.Run(context.Background(), &capture.Request{
		Kind:         "inexistente",
		AccountID:    7,
		Jurisdiction: "trt3",
		Instance:     domain.InstanceFirst,
	})
	require.Error(t, err)
	assert.Nil(t, runs.created, "no run record for rejected requests")
}

func timelineItem(t *testing.T, event domain.TimelineEvent) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func TestRunTimelineDocumentDownloads(t *testing.T) {
	signed := domain.TimelineEvent{
		CaseNumber: "0001", Title: "Sentença", OccurredAt: time.Now().UTC(),
		DocumentID: 10, Signed: true,
	}
	unsigned := domain.TimelineEvent{
		CaseNumber: "0001", Title: "Minuta", OccurredAt: time.Now().UTC(),
		DocumentID: 11, Signed: false,
	}

	portal := &mockPortal{
		pages: []capture.Page{{Items: []json.RawMessage{
			timelineItem(t, signed), timelineItem(t, unsigned),
		}}},
		total:     2,
		documents: map[int64][]byte{10: []byte("pdf"), 11: []byte("pdf")},
	}
	docs := &mockDocumentStore{}
	exec, _, _ := newTestExecutor(t, portal, &mockResolver{}, docs)

	req := &capture.Request{
		Kind:         domain.KindTimeline,
		AccountID:    7,
		Jurisdiction: "trt3",
		Instance:     domain.InstanceFirst,
		Documents:    capture.DocumentOptions{Download: true, SignedOnly: true},
	}

	result, err := exec.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DocumentsDownloaded)
	assert.Equal(t, 0, result.DocumentsFailed)
	assert.Contains(t, docs.stored, int64(10))
	assert.NotContains(t, docs.stored, int64(11), "unsigned documents are filtered out")
}

func TestRunDocumentFailureDoesNotFailRun(t *testing.T) {
	event := domain.TimelineEvent{
		CaseNumber: "0001", Title: "Sentença", OccurredAt: time.Now().UTC(),
		DocumentID: 10, Signed: true,
	}
	portal := &mockPortal{
		pages:       []capture.Page{{Items: []json.RawMessage{timelineItem(t, event)}}},
		total:       1,
		downloadErr: errors.New("portal timeout"),
	}
	docs := &mockDocumentStore{}
	exec, _, rawLog := newTestExecutor(t, portal, &mockResolver{}, docs)

	req := &capture.Request{
		Kind:         domain.KindTimeline,
		AccountID:    7,
		Jurisdiction: "trt3",
		Instance:     domain.InstanceFirst,
		Documents:    capture.DocumentOptions{Download: true},
	}

	result, err := exec.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, result.Run.Outcome)
	assert.Equal(t, 1, result.DocumentsFailed)
	assert.Equal(t, 1, rawLog.errorCount(), "download failure is recorded in the raw log")
}
