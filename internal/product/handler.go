package product

import (
	"errors"
	"net/http"
	"strconv"

	"tillpoint/internal/api"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// Get godoc
// @Summary      Get product
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        productID  path  int  true  "Product ID"
// @Success      200  {object}  Product
// @Failure      404  {object}  api.ErrorResponse
// @Router       /stores/{storeID}/products/{productID} [get]
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("productID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid product id"})
		return
	}

	product, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load product"})
		return
	}

	if product.StoreID != c.Param("storeID") {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "product not found"})
		return
	}

	c.JSON(http.StatusOK, product)
}

// Stock godoc
// @Summary      Get current stock level
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        productID  path  int  true  "Product ID"
// @Success      200  {object}  map[string]int
// @Failure      404  {object}  api.ErrorResponse
// @Router       /stores/{storeID}/products/{productID}/stock [get]
func (h *Handler) Stock(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("productID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid product id"})
		return
	}

	stock, err := h.repo.GetStock(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"product_id": id, "stock_quantity": stock})
}
