package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/courtcapture/internal/comms"
	"github.com/jonesrussell/courtcapture/internal/logger"
)

// NoticeFeed retrieves notices from the national feed.
type NoticeFeed interface {
	Fetch(ctx context.Context, filters url.Values) ([]*comms.Notice, error)
}

// NoticeIngestor ingests a batch of notices.
type NoticeIngestor interface {
	Ingest(ctx context.Context, accountID int64, notices []*comms.Notice) (*comms.Stats, error)
}

// CommunicationsHandler runs notice-feed ingestions.
type CommunicationsHandler struct {
	feed     NoticeFeed
	ingestor NoticeIngestor
	log      logger.Interface
}

// NewCommunicationsHandler creates a communications handler.
func NewCommunicationsHandler(feed NoticeFeed, ingestor NoticeIngestor, log logger.Interface) *CommunicationsHandler {
	return &CommunicationsHandler{feed: feed, ingestor: ingestor, log: log.WithComponent("api")}
}

type ingestRequest struct {
	AccountID int64  `json:"account_id" binding:"required"`
	OABNumber string `json:"numero_oab"`
	OABState  string `json:"uf_oab"`
	Court     string `json:"sigla_tribunal"`
	DateFrom  string `json:"data_inicio"`
	DateTo    string `json:"data_fim"`
}

func (r *ingestRequest) filters() url.Values {
	filters := url.Values{}
	if r.OABNumber != "" {
		filters.Set("numeroOab", r.OABNumber)
	}
	if r.OABState != "" {
		filters.Set("ufOab", r.OABState)
	}
	if r.Court != "" {
		filters.Set("siglaTribunal", r.Court)
	}
	if r.DateFrom != "" {
		filters.Set("dataDisponibilizacaoInicio", r.DateFrom)
	}
	if r.DateTo != "" {
		filters.Set("dataDisponibilizacaoFim", r.DateTo)
	}
	return filters
}

// Ingest handles POST /api/v1/communications/ingest: it fetches the
// feed synchronously and ingests the result.
func (h *CommunicationsHandler) Ingest(c *gin.Context) {
	var body ingestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := c.Request.Context()

	notices, err := h.feed.Fetch(ctx, body.filters())
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.ingestor.Ingest(ctx, body.AccountID, notices)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
