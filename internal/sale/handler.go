package sale

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"tillpoint/internal/api"
	"tillpoint/internal/auth"
	"tillpoint/internal/gate"
	"tillpoint/internal/logger"
	"tillpoint/internal/metrics"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
	gate    *gate.Checker
}

func NewHandler(service Service, g *gate.Checker) *Handler {
	return &Handler{service: service, gate: g}
}

type CreateSaleRequest struct {
	BranchID *string `json:"branch_id,omitempty"`
	Payload
}

type CreateSaleResponse struct {
	Success           bool     `json:"success"`
	Sale              *Sale    `json:"sale"`
	InventoryWarnings []string `json:"inventory_warnings,omitempty"`
}

// Create records a sale posted directly by an online terminal. The call is
// store-scoped and passes through the subscription gate first; a blocked
// store gets the typed rejection and the sale is never attempted.
//
// @Summary      Record a sale
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        request body sale.CreateSaleRequest true "Sale payload"
// @Success      201 {object} sale.CreateSaleResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      402 {object} gate.BlockedResponse
// @Failure      503 {object} api.ErrorResponse
// @Security     BearerAuth
// @Router       /stores/{storeID}/sales [post]
func (h *Handler) Create(c *gin.Context) {
	storeID := c.Param("storeID")

	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindingError(c, err)
		return
	}

	var userID *int
	if id, ok := auth.GetUserID(c); ok {
		userID = &id
	}

	result, err := gate.Run(c.Request.Context(), h.gate, storeID, func(ctx context.Context) (*CreateResult, error) {
		return h.service.Create(ctx, storeID, req.BranchID, userID, nil, req.Payload)
	})
	if err != nil {
		if errors.Is(err, ErrEmptySale) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.Errorf("Failed to create sale for store %s: %v", storeID, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "failed to record sale"})
		return
	}
	if !result.Allowed {
		c.JSON(http.StatusPaymentRequired, result.Blocked)
		return
	}

	metrics.RecordSale("direct")
	c.JSON(http.StatusCreated, CreateSaleResponse{
		Success:           true,
		Sale:              result.Value.Sale,
		InventoryWarnings: result.Value.InventoryWarnings,
	})
}

// Get returns a single sale with its line items.
//
// @Summary      Fetch a sale
// @Tags         sales
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        saleID path int true "Sale ID"
// @Success      200 {object} sale.Sale
// @Failure      404 {object} api.ErrorResponse
// @Security     BearerAuth
// @Router       /stores/{storeID}/sales/{saleID} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("saleID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
		return
	}

	s, err := h.service.GetSale(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sale"})
		return
	}

	if s.StoreID != c.Param("storeID") {
		c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
		return
	}

	c.JSON(http.StatusOK, s)
}

// List returns recent sales for a store.
//
// @Summary      List sales for a store
// @Tags         sales
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        limit query int false "Page size"
// @Param        offset query int false "Page offset"
// @Success      200 {array} sale.Sale
// @Security     BearerAuth
// @Router       /stores/{storeID}/sales [get]
func (h *Handler) List(c *gin.Context) {
	storeID := c.Param("storeID")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	sales, err := h.service.ListSales(c.Request.Context(), storeID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sales"})
		return
	}

	c.JSON(http.StatusOK, sales)
}

type UpdateStatusRequest struct {
	Status Status `json:"status" binding:"required,oneof=pending completed cancelled refunded"`
}

// UpdateStatus transitions a sale's status (cancel, refund).
//
// @Summary      Update sale status
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        saleID path int true "Sale ID"
// @Param        request body sale.UpdateStatusRequest true "New status"
// @Success      200 {object} api.MessageResponse
// @Failure      404 {object} api.ErrorResponse
// @Security     BearerAuth
// @Router       /stores/{storeID}/sales/{saleID}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("saleID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sale id"})
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindingError(c, err)
		return
	}

	if err := h.service.UpdateStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "sale not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update sale"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "sale updated"})
}
