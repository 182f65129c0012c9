package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kanzhen/bizmanage/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func TestAuthRequired_NoHeader(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_InvalidFormat(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	testCases := []string{
		"InvalidToken",
		"Basic token123",
		"Bearer",
	}

	for _, authHeader := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		req.Header.Set("Authorization", authHeader)
		router.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected status %d, got %d", authHeader, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestAuthRequired_InvalidToken(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAuthRequired_AttachesPrincipal(t *testing.T) {
	wsID := uint(7)
	token, _ := utils.GenerateTenantToken(1, "testuser", "admin", &wsID, nil, false, 24)

	router := gin.New()
	router.Use(AuthRequired())
	router.GET("/protected", func(c *gin.Context) {
		p := GetPrincipal(c)
		if p == nil {
			t.Fatal("principal missing from context")
		}
		if p.UserID != 1 || p.Username != "testuser" || p.Role != "admin" {
			t.Errorf("principal = %+v", p)
		}
		if p.WorkspaceID == nil || *p.WorkspaceID != wsID {
			t.Error("principal should carry the workspace id")
		}
		if GetUserID(c) != 1 || GetUsername(c) != "testuser" || GetRole(c) != "admin" {
			t.Error("identity keys missing from context")
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestSuperAdminRequired(t *testing.T) {
	router := gin.New()
	router.Use(AuthRequired(), SuperAdminRequired())
	router.GET("/platform", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	tenantToken, _ := utils.GenerateTenantToken(1, "admin", "admin", nil, nil, false, 24)
	operatorToken, _ := utils.GenerateTenantToken(2, "root", "admin", nil, nil, true, 24)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/platform", nil)
	req.Header.Set("Authorization", "Bearer "+tenantToken)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("tenant admin: expected status %d, got %d", http.StatusForbidden, w.Code)
	}

	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/platform", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("super admin: expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestGetPrincipal_Unauthenticated(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if p := GetPrincipal(c); p != nil {
		t.Errorf("expected nil principal, got %+v", p)
	}
	if id := GetUserID(c); id != 0 {
		t.Errorf("expected 0 for missing user_id, got %d", id)
	}
	if name := GetUsername(c); name != "" {
		t.Errorf("expected empty string for missing username, got %q", name)
	}
	if role := GetRole(c); role != "" {
		t.Errorf("expected empty string for missing role, got %q", role)
	}
}
