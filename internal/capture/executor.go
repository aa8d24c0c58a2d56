package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/courtcapture/internal/courts"
	"github.com/jonesrussell/courtcapture/internal/credentials"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// defaultPageSize is used when neither the request nor the jurisdiction
// configuration sets one.
const defaultPageSize = 100

// RunStore persists capture run lifecycle records.
type RunStore interface {
	Create(ctx context.Context, run *domain.CaptureRun) error
	Finalize(ctx context.Context, run *domain.CaptureRun) error
}

// RawLogStore appends entries to the raw capture log.
type RawLogStore interface {
	Append(ctx context.Context, entry *domain.RawLogEntry) error
}

// CredentialResolver resolves decrypted credentials for a capture scope.
type CredentialResolver interface {
	Resolve(ctx context.Context, accountID int64, jurisdiction string, instance domain.Instance) (*credentials.Decrypted, error)
}

// PortalClient is the portal transport the executor drives.
type PortalClient interface {
	Authenticate(ctx context.Context, cfg *courts.Config, cred *credentials.Decrypted) (*Session, error)
	FetchPage(ctx context.Context, session *Session, kind domain.CaptureKind, pageIndex, pageSize int, params url.Values) (*Page, error)
	FetchTotals(ctx context.Context, session *Session, params url.Values) (int, error)
	DownloadDocument(ctx context.Context, session *Session, documentID int64) ([]byte, error)
}

// DocumentStore persists downloaded case documents.
type DocumentStore interface {
	Store(ctx context.Context, caseNumber string, documentID int64, data []byte) error
}

// Recorder receives run-level measurements.
type Recorder interface {
	RecordRun(kind domain.CaptureKind, outcome domain.RunOutcome, retrieved int, elapsed time.Duration)
}

// Request describes one capture invocation.
type Request struct {
	Kind         domain.CaptureKind
	AccountID    int64
	Jurisdiction string
	Instance     domain.Instance

	// RunID pre-assigns the run identifier so async callers can hand it
	// out before the run starts. Empty means the executor generates one.
	RunID string

	// DeadlineFilter narrows pending-notice captures server-side so the
	// totalizer matches the filtered result set. Ignored for other kinds.
	DeadlineFilter domain.DeadlineFilter

	// DateFrom and DateTo bound timeline captures. Ignored for other kinds.
	DateFrom *time.Time
	DateTo   *time.Time

	// Documents controls attachment downloads for timeline captures.
	Documents DocumentOptions
}

// Validate rejects malformed requests before any run record is created.
func (r *Request) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("invalid capture kind %q", r.Kind)
	}
	if !r.Instance.Valid() {
		return fmt.Errorf("invalid instance %q", r.Instance)
	}
	if r.Jurisdiction == "" {
		return errors.New("jurisdiction is required")
	}
	if r.AccountID == 0 {
		return errors.New("account id is required")
	}
	return nil
}

// Result is the outcome of one capture run.
type Result struct {
	Run     *domain.CaptureRun
	Records []domain.NormalizedRecord

	// DocumentsDownloaded and DocumentsFailed count attachment downloads
	// for timeline captures with downloads enabled.
	DocumentsDownloaded int
	DocumentsFailed     int
}

// Config tunes executor behavior.
type Config struct {
	PageSize   int
	RunTimeout time.Duration
}

// Executor runs captures: it resolves the credential, authenticates,
// paginates the portal collection, streams every item into the raw log,
// validates the retrieved count against the portal totalizer and
// normalizes items into records for the synchronizer.
type Executor struct {
	registry  *courts.Registry
	resolver  CredentialResolver
	client    PortalClient
	runs      RunStore
	rawLog    RawLogStore
	documents DocumentStore
	recorder  Recorder
	log       logger.Interface
	cfg       Config
}

// NewExecutor creates an executor. documents and recorder may be nil;
// attachment downloads and measurements are then skipped.
func NewExecutor(
	registry *courts.Registry,
	resolver CredentialResolver,
	client PortalClient,
	runs RunStore,
	rawLog RawLogStore,
	documents DocumentStore,
	recorder Recorder,
	log logger.Interface,
	cfg Config,
) *Executor {
	return &Executor{
		registry:  registry,
		resolver:  resolver,
		client:    client,
		runs:      runs,
		rawLog:    rawLog,
		documents: documents,
		recorder:  recorder,
		log:       log,
		cfg:       cfg,
	}
}

// Run executes one capture. A non-nil Result is returned even on failure
// so callers can inspect the finalized run record. The returned error is
// the terminal error of failed runs; successful and partial runs return
// nil.
func (e *Executor) Run(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	run := &domain.CaptureRun{
		ID:           runID,
		Kind:         req.Kind,
		Jurisdiction: req.Jurisdiction,
		Instance:     req.Instance,
		AccountID:    req.AccountID,
		Status:       domain.StatusInProgress,
		StartedAt:    time.Now().UTC(),
	}
	if err := e.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create capture run: %w", err)
	}

	log := e.log.WithRunID(run.ID).With(
		"kind", string(req.Kind),
		"jurisdiction", req.Jurisdiction,
		"instance", string(req.Instance),
		"account_id", req.AccountID,
	)
	log.Info("capture run started")

	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	result, err := e.execute(ctx, log, run, req)
	if err != nil {
		return e.fail(log, run, err)
	}

	run.Status = domain.StatusDone
	now := time.Now().UTC()
	run.FinishedAt = &now
	if finalizeErr := e.runs.Finalize(context.WithoutCancel(ctx), run); finalizeErr != nil {
		log.Error("failed to finalize capture run", "error", finalizeErr)
		return result, finalizeErr
	}

	if e.recorder != nil {
		e.recorder.RecordRun(run.Kind, run.Outcome, run.Retrieved, now.Sub(run.StartedAt))
	}

	log.With(
		"outcome", string(run.Outcome),
		"retrieved", run.Retrieved,
		"totalizer", run.Totalizer,
	).Info("capture run finished")

	return result, nil
}

// execute runs the pagination, validation and normalization phases.
func (e *Executor) execute(
	ctx context.Context,
	log logger.Interface,
	run *domain.CaptureRun,
	req *Request,
) (*Result, error) {
	cfg, err := e.registry.Get(req.Jurisdiction, req.Instance)
	if err != nil {
		return nil, err
	}
	parse, err := e.registry.Parser(req.Jurisdiction, req.Kind)
	if err != nil {
		return nil, err
	}

	cred, err := e.resolver.Resolve(ctx, req.AccountID, req.Jurisdiction, req.Instance)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) {
			return nil, domain.NewCaptureError(domain.CodeCredentialNotFound,
				"no active credential for scope", err)
		}
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	defer cred.Close()

	session, err := e.client.Authenticate(ctx, cfg, cred)
	if err != nil {
		return nil, err
	}
	// Secret material is not needed past authentication.
	cred.Close()

	params := requestParams(req)

	records, retrieved, err := e.paginate(ctx, log, run, req, cfg, session, parse, params)
	if err != nil {
		return nil, err
	}
	run.Retrieved = retrieved

	total, err := e.client.FetchTotals(ctx, session, params)
	if err != nil {
		return nil, fmt.Errorf("failed to validate totals: %w", err)
	}
	run.Totalizer = total

	switch {
	case retrieved > total:
		// More items than the portal says exist means the pagination
		// contract broke; the data cannot be trusted.
		return nil, domain.NewCaptureError(domain.CodeTotalizerExceeded,
			fmt.Sprintf("retrieved %d items, portal reports %d", retrieved, total), nil)
	case retrieved < total:
		run.Outcome = domain.OutcomePartial
		run.ErrorCode = string(domain.CodePartialCapture)
		run.ErrorMessage = fmt.Sprintf("retrieved %d of %d items", retrieved, total)
		log.Warn("capture run is partial", "retrieved", retrieved, "totalizer", total)
	default:
		run.Outcome = domain.OutcomeSuccess
	}

	result := &Result{Run: run, Records: records}

	if req.Kind == domain.KindTimeline && req.Documents.Download && e.documents != nil {
		e.downloadDocuments(ctx, log, run, req, session, records, result)
	}

	return result, nil
}

// paginate walks the portal collection sequentially, appending every
// item to the raw log before the next page is requested. Items that fail
// to parse are logged as error entries and skipped; the page and run
// continue.
func (e *Executor) paginate(
	ctx context.Context,
	log logger.Interface,
	run *domain.CaptureRun,
	req *Request,
	cfg *courts.Config,
	session *Session,
	parse courts.ParseFunc,
	params url.Values,
) ([]domain.NormalizedRecord, int, error) {
	pageSize := e.cfg.PageSize
	if cfg.PageSize > 0 {
		pageSize = cfg.PageSize
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var records []domain.NormalizedRecord
	retrieved := 0

	for pageIndex := 1; ; pageIndex++ {
		page, err := e.client.FetchPage(ctx, session, req.Kind, pageIndex, pageSize, params)
		if err != nil {
			if pageIndex == 1 {
				return nil, 0, err
			}
			// A mid-run page failure keeps what was already captured; the
			// totalizer validation classifies the run partial and the gap
			// shows up in recovery analysis.
			log.Warn("page fetch failed, keeping retrieved items",
				"page", pageIndex, "error", err)
			break
		}

		for _, raw := range page.Items {
			entry := &domain.RawLogEntry{
				RunID:        run.ID,
				Kind:         run.Kind,
				Jurisdiction: run.Jurisdiction,
				Instance:     run.Instance,
				AccountID:    run.AccountID,
				ContentHash:  contentHash(raw),
			}

			record, parseErr := parse(raw)
			if parseErr != nil {
				entry.Status = domain.RawLogError
				entry.ErrorMessage = parseErr.Error()
				log.Warn("item failed to parse", "page", pageIndex, "error", parseErr)
			} else {
				entry.Status = domain.RawLogSuccess
				entry.Payload = rawPayload(raw)
			}

			// The raw log is the source of truth for recovery: every item
			// lands there before anything else happens to it.
			if appendErr := e.rawLog.Append(ctx, entry); appendErr != nil {
				return nil, 0, fmt.Errorf("failed to append raw log entry: %w", appendErr)
			}

			if parseErr == nil {
				records = append(records, record)
				retrieved++
			}
		}

		if len(page.Items) == 0 || (page.PageCount > 0 && pageIndex >= page.PageCount) {
			break
		}
	}

	return records, retrieved, nil
}

// fail finalizes the run as a failure and classifies the error.
func (e *Executor) fail(log logger.Interface, run *domain.CaptureRun, err error) (*Result, error) {
	run.Status = domain.StatusDone
	run.Outcome = domain.OutcomeFailure
	now := time.Now().UTC()
	run.FinishedAt = &now

	code := domain.CodeOf(err)
	if code == "" && errors.Is(err, context.DeadlineExceeded) {
		code = domain.CodeTimeout
	}
	run.ErrorCode = string(code)
	run.ErrorMessage = err.Error()

	// The run record must reach a terminal state even when the run
	// context is already dead.
	if finalizeErr := e.runs.Finalize(context.WithoutCancel(context.Background()), run); finalizeErr != nil {
		log.Error("failed to finalize failed capture run", "error", finalizeErr)
	}

	if e.recorder != nil {
		e.recorder.RecordRun(run.Kind, domain.OutcomeFailure, run.Retrieved, now.Sub(run.StartedAt))
	}

	log.With("error_code", run.ErrorCode).Error("capture run failed", "error", err)

	return &Result{Run: run}, err
}

// requestParams builds the kind-specific portal query parameters.
func requestParams(req *Request) url.Values {
	params := url.Values{}

	switch req.Kind {
	case domain.KindArchivedDocket:
		params.Set("situacao", "arquivado")
	case domain.KindPendingNotice:
		if p := req.DeadlineFilter.PortalParam(); p != "" {
			params.Set("agrupadorExpediente", p)
		}
	case domain.KindTimeline:
		if req.DateFrom != nil {
			params.Set("dataInicio", req.DateFrom.Format("2006-01-02"))
		}
		if req.DateTo != nil {
			params.Set("dataFim", req.DateTo.Format("2006-01-02"))
		}
	case domain.KindGeneralDocket, domain.KindHearings:
	}

	return params
}

// contentHash is the dedup identity of one raw item.
func contentHash(raw json.RawMessage) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// rawPayload preserves the portal item verbatim for the raw log.
func rawPayload(raw json.RawMessage) domain.JSONBMap {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return domain.JSONBMap{"raw": string(raw)}
	}
	return m
}
