package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/courtcapture/internal/domain"
	"github.com/jonesrussell/courtcapture/internal/scheduler"
)

// ScheduleStore persists schedule definitions.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.ScheduleDefinition) error
	GetByID(ctx context.Context, id int64) (*domain.ScheduleDefinition, error)
	List(ctx context.Context, accountID int64, limit, offset int) ([]*domain.ScheduleDefinition, error)
	Update(ctx context.Context, s *domain.ScheduleDefinition) error
	Delete(ctx context.Context, id int64) error
}

// InFlightGuard reports whether a schedule has a capture running.
type InFlightGuard interface {
	ScheduleBusy(scheduleID int64) bool
}

// SchedulesHandler handles schedule CRUD.
type SchedulesHandler struct {
	store ScheduleStore
	guard InFlightGuard
	now   func() time.Time
}

// NewSchedulesHandler creates a schedules handler.
func NewSchedulesHandler(store ScheduleStore, guard InFlightGuard) *SchedulesHandler {
	return &SchedulesHandler{store: store, guard: guard, now: func() time.Time { return time.Now().UTC() }}
}

type scheduleBody struct {
	AccountID     int64              `json:"account_id" binding:"required"`
	CredentialIDs []int64            `json:"credencial_ids" binding:"required"`
	Kind          domain.CaptureKind `json:"kind" binding:"required"`
	Periodicity   domain.Periodicity `json:"periodicidade" binding:"required"`
	IntervalDays  *int               `json:"dias_intervalo"`
	TimeOfDay     string             `json:"horario" binding:"required"`
	Active        *bool              `json:"ativo"`
	ExtraParams   domain.JSONBMap    `json:"parametros_extras"`
}

func (b *scheduleBody) toDefinition() *domain.ScheduleDefinition {
	active := true
	if b.Active != nil {
		active = *b.Active
	}
	return &domain.ScheduleDefinition{
		AccountID:     b.AccountID,
		CredentialIDs: b.CredentialIDs,
		Kind:          b.Kind,
		Periodicity:   b.Periodicity,
		IntervalDays:  b.IntervalDays,
		TimeOfDay:     b.TimeOfDay,
		Active:        active,
		ExtraParams:   b.ExtraParams,
	}
}

// Create handles POST /api/v1/schedules.
func (h *SchedulesHandler) Create(c *gin.Context) {
	var body scheduleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	def := body.toDefinition()
	if err := scheduler.Validate(def); err != nil {
		respondError(c, err)
		return
	}

	now := h.now()
	next, err := scheduler.ComputeNextRun(def, now, now)
	if err != nil {
		respondError(c, err)
		return
	}
	def.NextRun = next

	if err := h.store.Create(c.Request.Context(), def); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, def)
}

// Get handles GET /api/v1/schedules/:id.
func (h *SchedulesHandler) Get(c *gin.Context) {
	id, err := scheduleID(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	def, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// List handles GET /api/v1/schedules.
func (h *SchedulesHandler) List(c *gin.Context) {
	page, pageSize := pagination(c)
	accountID := queryInt64(c, "account_id")

	defs, err := h.store.List(c.Request.Context(), accountID, pageSize, (page-1)*pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": defs, "page": page, "page_size": pageSize})
}

// Update handles PUT /api/v1/schedules/:id. Busy schedules cannot be
// mutated.
func (h *SchedulesHandler) Update(c *gin.Context) {
	id, err := scheduleID(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if h.guard.ScheduleBusy(id) {
		respondError(c, fmt.Errorf("schedule %d: %w", id, domain.ErrScheduleRunning))
		return
	}

	existing, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	var body scheduleBody
	if err = c.ShouldBindJSON(&body); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	def := body.toDefinition()
	def.ID = id
	def.LastRun = existing.LastRun
	if err = scheduler.Validate(def); err != nil {
		respondError(c, err)
		return
	}

	// The cadence may have changed; recompute from now.
	now := h.now()
	next, err := scheduler.ComputeNextRun(def, now, now)
	if err != nil {
		respondError(c, err)
		return
	}
	def.NextRun = next

	if err = h.store.Update(c.Request.Context(), def); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, def)
}

// Delete handles DELETE /api/v1/schedules/:id. Busy schedules cannot be
// deleted.
func (h *SchedulesHandler) Delete(c *gin.Context) {
	id, err := scheduleID(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if h.guard.ScheduleBusy(id) {
		respondError(c, fmt.Errorf("schedule %d: %w", id, domain.ErrScheduleRunning))
		return
	}

	if err = h.store.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func scheduleID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid schedule id %q", c.Param("id"))
	}
	return id, nil
}
