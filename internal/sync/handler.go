package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"tillpoint/internal/api"
	"tillpoint/internal/gate"
	"tillpoint/internal/logger"
	"tillpoint/internal/sale"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"
)

type Handler struct {
	reconciler *Reconciler
	queue      QueueStore
	gate       *gate.Checker
}

func NewHandler(reconciler *Reconciler, queue QueueStore, g *gate.Checker) *Handler {
	return &Handler{reconciler: reconciler, queue: queue, gate: g}
}

type SyncRequest struct {
	BranchID *string `json:"branch_id,omitempty"`
}

type SyncResponse struct {
	Success bool         `json:"success"`
	Results []ItemResult `json:"results"`
}

// Sync drains the store's pending offline entries. The whole call is a
// store-scoped action: a blocked store gets the typed rejection and no entry
// is touched.
//
// @Summary      Reconcile queued offline sales
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        request body sync.SyncRequest false "Optional branch filter"
// @Success      200 {object} sync.SyncResponse
// @Failure      402 {object} gate.BlockedResponse
// @Failure      503 {object} api.ErrorResponse
// @Security     BearerAuth
// @Router       /stores/{storeID}/sync [post]
func (h *Handler) Sync(c *gin.Context) {
	storeID := c.Param("storeID")

	var req SyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			api.RespondBindingError(c, err)
			return
		}
	}

	result, err := gate.Run(c.Request.Context(), h.gate, storeID, func(ctx context.Context) ([]ItemResult, error) {
		return h.reconciler.Reconcile(ctx, storeID, req.BranchID)
	})
	if err != nil {
		logger.Errorf("Sync failed for store %s: %v", storeID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync unavailable"})
		return
	}
	if !result.Allowed {
		c.JSON(http.StatusPaymentRequired, result.Blocked)
		return
	}

	c.JSON(http.StatusOK, SyncResponse{Success: true, Results: result.Value})
}

type QueueEntryRequest struct {
	LocalID  string       `json:"local_id" binding:"required"`
	DeviceID string       `json:"device_id" binding:"required"`
	BranchID *string      `json:"branch_id,omitempty"`
	SaleData sale.Payload `json:"sale_data" binding:"required"`
}

// Queue uploads one locally-captured sale into the server-side queue. The
// unique local id makes re-uploads harmless.
//
// @Summary      Upload an offline sale entry
// @Tags         sync
// @Accept       json
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        request body sync.QueueEntryRequest true "Offline sale entry"
// @Success      201 {object} sync.Entry
// @Failure      400 {object} api.ErrorResponse
// @Failure      402 {object} gate.BlockedResponse
// @Security     BearerAuth
// @Router       /stores/{storeID}/sync/queue [post]
func (h *Handler) Queue(c *gin.Context) {
	storeID := c.Param("storeID")

	var req QueueEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindingError(c, err)
		return
	}

	data, err := json.Marshal(req.SaleData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale data"})
		return
	}

	result, err := gate.Run(c.Request.Context(), h.gate, storeID, func(ctx context.Context) (*Entry, error) {
		return h.queue.Append(ctx, &Entry{
			LocalID:  req.LocalID,
			DeviceID: req.DeviceID,
			StoreID:  storeID,
			BranchID: req.BranchID,
			SaleData: types.JSONText(data),
		})
	})
	if err != nil {
		logger.Errorf("Failed to queue offline entry for store %s: %v", storeID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to queue entry"})
		return
	}
	if !result.Allowed {
		c.JSON(http.StatusPaymentRequired, result.Blocked)
		return
	}

	c.JSON(http.StatusCreated, result.Value)
}

// Pending lists a store's unreconciled entries for diagnostics.
//
// @Summary      List pending offline entries
// @Tags         sync
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        branch_id query string false "Branch filter"
// @Success      200 {array} sync.Entry
// @Security     BearerAuth
// @Router       /stores/{storeID}/sync/pending [get]
func (h *Handler) Pending(c *gin.Context) {
	storeID := c.Param("storeID")

	var branchID *string
	if b := c.Query("branch_id"); b != "" {
		branchID = &b
	}

	entries, err := h.queue.ListPending(c.Request.Context(), storeID, branchID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load entries"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// Purge removes a terminal entry once the device has confirmed it.
//
// @Summary      Remove an offline entry
// @Tags         sync
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        localID path string true "Entry local ID"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Security     BearerAuth
// @Router       /stores/{storeID}/sync/{localID} [delete]
func (h *Handler) Purge(c *gin.Context) {
	if err := h.queue.Remove(c.Request.Context(), c.Param("localID")); err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove entry"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "entry removed"})
}
