package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/courtcapture/internal/capture"
	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// CaptureService runs the capture pipeline.
type CaptureService interface {
	Capture(ctx context.Context, req *capture.Request) (*capture.Outcome, error)
}

// RunReader reads capture run records.
type RunReader interface {
	GetByID(ctx context.Context, id string) (*domain.CaptureRun, error)
	List(ctx context.Context, accountID int64, limit, offset int) ([]*domain.CaptureRun, error)
}

// CapturesHandler handles capture trigger and status requests.
type CapturesHandler struct {
	service CaptureService
	runs    RunReader
	log     logger.Interface
}

// NewCapturesHandler creates a captures handler.
func NewCapturesHandler(service CaptureService, runs RunReader, log logger.Interface) *CapturesHandler {
	return &CapturesHandler{service: service, runs: runs, log: log.WithComponent("api")}
}

type triggerRequest struct {
	Kind         domain.CaptureKind `json:"kind" binding:"required"`
	AccountID    int64              `json:"account_id" binding:"required"`
	Jurisdiction string             `json:"jurisdiction" binding:"required"`
	Instance     domain.Instance    `json:"instance" binding:"required"`

	DeadlineFilter domain.DeadlineFilter `json:"filtro_prazo"`
	DateFrom       string                `json:"data_inicio"`
	DateTo         string                `json:"data_fim"`

	DownloadDocuments bool     `json:"capturar_documentos"`
	SignedOnly        bool     `json:"apenas_assinados"`
	SkipConfidential  bool     `json:"ignorar_sigilosos"`
	DocumentTypes     []string `json:"tipos_documento"`
}

func (t *triggerRequest) toCaptureRequest(runID string) (*capture.Request, error) {
	req := &capture.Request{
		Kind:           t.Kind,
		AccountID:      t.AccountID,
		Jurisdiction:   t.Jurisdiction,
		Instance:       t.Instance,
		RunID:          runID,
		DeadlineFilter: t.DeadlineFilter,
		Documents: capture.DocumentOptions{
			Download:         t.DownloadDocuments,
			SignedOnly:       t.SignedOnly,
			SkipConfidential: t.SkipConfidential,
			Types:            t.DocumentTypes,
		},
	}

	if t.DateFrom != "" {
		from, err := time.Parse("2006-01-02", t.DateFrom)
		if err != nil {
			return nil, err
		}
		req.DateFrom = &from
	}
	if t.DateTo != "" {
		to, err := time.Parse("2006-01-02", t.DateTo)
		if err != nil {
			return nil, err
		}
		req.DateTo = &to
	}

	return req, req.Validate()
}

// Trigger handles POST /api/v1/captures. The run id is handed out
// immediately; the capture executes in the background and clients poll
// the status endpoint.
func (h *CapturesHandler) Trigger(c *gin.Context) {
	var body triggerRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	runID := uuid.NewString()
	req, err := body.toCaptureRequest(runID)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	go func() {
		// Detached from the request context: the capture outlives the
		// HTTP exchange.
		if _, captureErr := h.service.Capture(context.Background(), req); captureErr != nil {
			h.log.Error("triggered capture failed", "run_id", runID, "error", captureErr)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID})
}

// Get handles GET /api/v1/captures/:id.
func (h *CapturesHandler) Get(c *gin.Context) {
	run, err := h.runs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
