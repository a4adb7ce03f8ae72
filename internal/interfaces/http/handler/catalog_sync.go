package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/catalogsync/backend/internal/application/catalogsync"
	"github.com/catalogsync/backend/internal/domain/integration"
	"github.com/catalogsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// CatalogSyncService is the application service behind the catalog sync endpoints
type CatalogSyncService interface {
	Trigger(ctx context.Context, input catalogsync.TriggerInput) (*catalogsync.RunResult, error)
	ListRuns(ctx context.Context, input catalogsync.ListRunsInput) (*catalogsync.RunListResult, error)
	GetRun(ctx context.Context, id uuid.UUID) (*integration.SyncRun, error)
}

// CatalogSyncHandler handles catalog reconciliation API endpoints
type CatalogSyncHandler struct {
	BaseHandler
	service    CatalogSyncService
	runTimeout time.Duration
}

// NewCatalogSyncHandler creates a new CatalogSyncHandler. A run started over
// HTTP survives client disconnects and is bounded by runTimeout instead.
func NewCatalogSyncHandler(service CatalogSyncService, runTimeout time.Duration) *CatalogSyncHandler {
	return &CatalogSyncHandler{
		service:    service,
		runTimeout: runTimeout,
	}
}

// TriggerRun godoc
// @ID           triggerCatalogSyncRun
// @Summary      Run a catalog reconciliation
// @Description  Runs a full reconciliation of the remote catalog into the mirror and returns its counters
// @Tags         catalog-sync
// @Accept       json
// @Produce      json
// @Param        request body dto.TriggerSyncRequest true "Trigger"
// @Success      200 {object} dto.TriggerSyncResponse
// @Failure      400 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Failure      502 {object} dto.TriggerSyncResponse
// @Security     BearerAuth
// @Router       /catalog-sync/runs [post]
func (h *CatalogSyncHandler) TriggerRun(c *gin.Context) {
	var req dto.TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	input := catalogsync.TriggerInput{TriggerType: integration.TriggerType(req.SyncType)}
	if userID, err := getUserID(c); err == nil {
		input.TriggeredBy = &userID
	}

	ctx := context.WithoutCancel(c.Request.Context())
	if h.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.runTimeout)
		defer cancel()
	}

	result, err := h.service.Trigger(ctx, input)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	c.JSON(runResultStatus(result), dto.ToTriggerSyncResponse(result))
}

// ListRuns godoc
// @ID           listCatalogSyncRuns
// @Summary      List catalog sync runs
// @Tags         catalog-sync
// @Produce      json
// @Param        page      query int    false "Page number" default(1)
// @Param        page_size query int    false "Page size" default(20) maximum(100)
// @Param        status    query string false "Run status" Enums(running, success, failed)
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Security     BearerAuth
// @Router       /catalog-sync/runs [get]
func (h *CatalogSyncHandler) ListRuns(c *gin.Context) {
	var req dto.ListSyncRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.service.ListRuns(c.Request.Context(), catalogsync.ListRunsInput{
		Status:   req.Status,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	runs := lo.Map(result.Runs, func(run integration.SyncRun, _ int) dto.SyncRunResponse {
		return dto.ToSyncRunResponse(catalogsync.ToRunView(&run))
	})
	h.SuccessWithMeta(c, runs, result.Total, result.Page, result.PageSize)
}

// GetRun godoc
// @ID           getCatalogSyncRun
// @Summary      Get a catalog sync run
// @Tags         catalog-sync
// @Produce      json
// @Param        id path string true "Run ID" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      400 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Security     BearerAuth
// @Router       /catalog-sync/runs/{id} [get]
func (h *CatalogSyncHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID format")
		return
	}

	run, err := h.service.GetRun(c.Request.Context(), id)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}
	h.Success(c, dto.ToSyncRunResponse(catalogsync.ToRunView(run)))
}

func (h *CatalogSyncHandler) handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, integration.ErrInvalidTriggerType):
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, err.Error())
	case errors.Is(err, integration.ErrRunAlreadyInProgress):
		h.Conflict(c, dto.ErrCodeRunInProgress, "A catalog sync run is already in progress")
	case errors.Is(err, integration.ErrRunNotFound):
		h.NotFound(c, "Sync run not found")
	default:
		h.HandleError(c, err)
	}
}

// runResultStatus maps a finalized run to the HTTP status of the trigger call.
// Failures caused by the remote catalog answer 502.
func runResultStatus(result *catalogsync.RunResult) int {
	if result.Success {
		return http.StatusOK
	}
	switch result.ErrorKind {
	case integration.ErrorKindAuth,
		integration.ErrorKindAntiBot,
		integration.ErrorKindFirstPage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
