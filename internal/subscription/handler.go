package subscription

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tillpoint/internal/api"
	"tillpoint/internal/clock"
	"tillpoint/internal/logger"
	"tillpoint/internal/metrics"
	"tillpoint/internal/user"

	"github.com/gin-gonic/gin"
)

// Notifier delivers billing emails. Satisfied by notify.Service.
type Notifier interface {
	SendRenewalReceipt(ctx context.Context, email, name, storeID string, newExpiry time.Time) error
}

// StaffDirectory resolves the store account that billing mail goes to.
type StaffDirectory interface {
	FindStoreAdmin(ctx context.Context, storeID string) (*user.User, error)
}

type Handler struct {
	repo     Repository
	clock    clock.Clock
	notifier Notifier
	staff    StaffDirectory
}

// NewHandler builds the billing handler. notifier and staff may be nil, in
// which case renewal receipts are skipped.
func NewHandler(repo Repository, clk clock.Clock, notifier Notifier, staff StaffDirectory) *Handler {
	return &Handler{repo: repo, clock: clk, notifier: notifier, staff: staff}
}

// Status reports the derived subscription status for a store. Any failure to
// load or resolve the record produces the documented fail-closed body, never
// an error payload: a store whose state is unknown must not be told it may
// transact.
//
// @Summary      Subscription status for a store
// @Tags         subscription
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Success      200 {object} subscription.Status
// @Security     BearerAuth
// @Router       /stores/{storeID}/subscription [get]
func (h *Handler) Status(c *gin.Context) {
	storeID := c.Param("storeID")

	rec, err := h.repo.GetByStoreID(c.Request.Context(), storeID)
	if err != nil {
		if !errors.Is(err, ErrRecordNotFound) {
			logger.Errorf("Failed to load subscription record for store %s: %v", storeID, err)
		}
		c.JSON(http.StatusOK, FallbackStatus())
		return
	}

	c.JSON(http.StatusOK, Resolve(rec, h.clock.Now()))
}

type RenewRequest struct {
	NewExpiry time.Time `json:"newExpiry" binding:"required"`
}

// Renew applies a verified "payment succeeded" event: extend the expiry,
// clear the block flag and mark the store paid in one atomic update.
//
// @Summary      Apply a subscription renewal event
// @Tags         subscription
// @Accept       json
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        request body subscription.RenewRequest true "Renewal event"
// @Success      200 {object} api.MessageResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      404 {object} api.ErrorResponse
// @Security     BearerAuth
// @Router       /stores/{storeID}/subscription/renew [post]
func (h *Handler) Renew(c *gin.Context) {
	storeID := c.Param("storeID")

	var req RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindingError(c, err)
		return
	}

	if err := h.repo.Renew(c.Request.Context(), storeID, req.NewExpiry); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "store not found"})
			return
		}
		logger.Errorf("Failed to renew subscription for store %s: %v", storeID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to renew subscription"})
		return
	}

	logger.Infof("Subscription renewed: Store=%s, NewExpiry=%s", storeID, req.NewExpiry.Format(time.RFC3339))
	metrics.RecordRenewal()

	// Send renewal receipt
	if h.notifier != nil && h.staff != nil {
		admin, _ := h.staff.FindStoreAdmin(c.Request.Context(), storeID)
		if admin != nil {
			if err := h.notifier.SendRenewalReceipt(c.Request.Context(), admin.Email, admin.Name, storeID, req.NewExpiry); err != nil {
				logger.Errorf("Failed to queue renewal receipt for store %s: %v", storeID, err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "subscription renewed"})
}

type CreateTrialRequest struct {
	TrialDays int `json:"trial_days" binding:"required,min=1,max=90"`
}

// CreateTrial provisions the subscription record for a new store.
//
// @Summary      Start a trial for a new store
// @Tags         subscription
// @Accept       json
// @Produce      json
// @Param        storeID path string true "Store ID"
// @Param        request body subscription.CreateTrialRequest true "Trial request"
// @Success      201 {object} subscription.Record
// @Failure      400 {object} api.ErrorResponse
// @Security     BearerAuth
// @Router       /stores/{storeID}/subscription/trial [post]
func (h *Handler) CreateTrial(c *gin.Context) {
	storeID := c.Param("storeID")

	var req CreateTrialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondBindingError(c, err)
		return
	}

	trialEndsAt := h.clock.Now().AddDate(0, 0, req.TrialDays)
	rec, err := h.repo.CreateTrial(c.Request.Context(), storeID, trialEndsAt)
	if err != nil {
		logger.Errorf("Failed to create trial for store %s: %v", storeID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create trial"})
		return
	}

	c.JSON(http.StatusCreated, rec)
}
