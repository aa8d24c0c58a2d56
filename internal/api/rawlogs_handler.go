package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/courtcapture/internal/domain"
)

// RawLogReader queries the append-only raw capture log.
type RawLogReader interface {
	Query(ctx context.Context, filter domain.RawLogFilter, page, pageSize int) ([]*domain.RawLogEntry, error)
	Count(ctx context.Context, filter domain.RawLogFilter) (int, error)
	AggregateByStatus(ctx context.Context, filter domain.RawLogFilter) ([]*domain.StatusCount, error)
	AggregateByJurisdiction(ctx context.Context, filter domain.RawLogFilter) ([]*domain.JurisdictionStats, error)
}

// GapAnalyzer computes gap reports.
type GapAnalyzer interface {
	AnalyzeGaps(ctx context.Context, filter domain.RawLogFilter) ([]*domain.GapReport, error)
}

// RawLogsHandler handles raw-log listing and aggregation requests.
type RawLogsHandler struct {
	rawLogs  RawLogReader
	analyzer GapAnalyzer
}

// NewRawLogsHandler creates a raw-logs handler.
func NewRawLogsHandler(rawLogs RawLogReader, analyzer GapAnalyzer) *RawLogsHandler {
	return &RawLogsHandler{rawLogs: rawLogs, analyzer: analyzer}
}

type rawLogsResponse struct {
	Entries  []*domain.RawLogEntry `json:"entries"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`

	StatusStats       []*domain.StatusCount       `json:"status_stats,omitempty"`
	JurisdictionStats []*domain.JurisdictionStats `json:"jurisdiction_stats,omitempty"`
	Gaps              []*domain.GapReport         `json:"gaps,omitempty"`
}

// List handles GET /api/v1/rawlogs.
func (h *RawLogsHandler) List(c *gin.Context) {
	filter, err := rawLogFilter(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	page, pageSize := pagination(c)
	ctx := c.Request.Context()

	entries, err := h.rawLogs.Query(ctx, filter, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	total, err := h.rawLogs.Count(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := rawLogsResponse{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}

	if c.Query("stats") == "true" {
		resp.StatusStats, err = h.rawLogs.AggregateByStatus(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		resp.JurisdictionStats, err = h.rawLogs.AggregateByJurisdiction(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	if c.Query("gaps") == "true" {
		resp.Gaps, err = h.analyzer.AnalyzeGaps(ctx, filter)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

func rawLogFilter(c *gin.Context) (domain.RawLogFilter, error) {
	filter := domain.RawLogFilter{
		RunID:        c.Query("run_id"),
		Kind:         domain.CaptureKind(c.Query("kind")),
		Status:       domain.RawLogStatus(c.Query("status")),
		Jurisdiction: c.Query("jurisdiction"),
		Instance:     domain.Instance(c.Query("instance")),
		AccountID:    queryInt64(c, "account_id"),
	}

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, err
		}
		filter.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, err
		}
		// Inclusive end of day.
		filter.To = to.AddDate(0, 0, 1)
	}

	return filter, nil
}
