package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"tillpoint/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAuthMiddlewareHeaders(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
	}{
		{"Empty header", "", http.StatusUnauthorized},
		{"Invalid format", "Token abc", http.StatusUnauthorized},
		{"Empty token", "Bearer ", http.StatusUnauthorized},
		{"Garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			req := httptest.NewRequest("GET", "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			c.Request = req

			handler := AuthMiddleware("secret")
			handler(c)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		userRole       any
		permission     string
		expectedStatus int
	}{
		{"Cashier may create sales", "cashier", rbac.PermSalesCreate, http.StatusOK},
		{"Cashier may sync", "cashier", rbac.PermSalesSync, http.StatusOK},
		{"Cashier may not manage billing", "cashier", rbac.PermBillingManage, http.StatusForbidden},
		{"Admin may manage billing", "admin", rbac.PermBillingManage, http.StatusOK},
		{"Missing role", nil, rbac.PermSalesCreate, http.StatusUnauthorized},
		{"Wrong role type", 123, rbac.PermSalesCreate, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			if tt.userRole != nil {
				c.Set("user_role", tt.userRole)
			}
			c.Request = httptest.NewRequest("GET", "/", nil)

			handler := RequirePermission(tt.permission)
			handler(c)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		userRole       any
		requiredRole   string
		expectedStatus int
	}{
		{"Exact role", "admin", "admin", http.StatusOK},
		{"Higher role passes", "admin", "cashier", http.StatusOK},
		{"Missing role", nil, "admin", http.StatusUnauthorized},
		{"Wrong role type", 123, "admin", http.StatusUnauthorized},
		{"Lower role rejected", "cashier", "manager", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			if tt.userRole != nil {
				c.Set("user_role", tt.userRole)
			}
			c.Request = httptest.NewRequest("GET", "/", nil)

			handler := RequireRole(tt.requiredRole)
			handler(c)
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestGetStoreID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		storeID  any
		expected string
		ok       bool
	}{
		{"Valid store id", "store123", "store123", true},
		{"Missing store id", nil, "", false},
		{"Wrong type", 42, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			if tt.storeID != nil {
				c.Set("user_store_id", tt.storeID)
			}
			c.Request = httptest.NewRequest("GET", "/", nil)

			id, ok := GetStoreID(c)
			assert.Equal(t, tt.expected, id)
			assert.Equal(t, tt.ok, ok)
		})
	}
}
