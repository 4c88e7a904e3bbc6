package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mototaxi-backend/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
)

// deletedUsers отвечает "удален" для перечисленных id
type deletedUsers map[uint]bool

func (d deletedUsers) IsActive(_ context.Context, userID uint) (bool, error) {
	return !d[userID], nil
}

type brokenLookup struct{}

func (brokenLookup) IsActive(context.Context, uint) (bool, error) {
	return false, errors.New("db down")
}

func setupRouter(t *testing.T) (*gin.Engine, *utils.JWTManager, *utils.TokenRevoker) {
	return setupRouterWithUsers(t, nil)
}

func setupRouterWithUsers(t *testing.T, users UserLookup) (*gin.Engine, *utils.JWTManager, *utils.TokenRevoker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	jwt := utils.NewJWTManager("test-secret", time.Hour)
	revoker := utils.NewTokenRevoker(client)

	r := gin.New()
	r.Use(RequestID())
	auth := r.Group("/", JWTAuth(jwt, revoker, users))
	auth.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint(ContextUserID), "role": c.GetString(ContextRole)})
	})
	auth.GET("/admin", RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r, jwt, revoker
}

func do(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r, jwt, revoker := setupRouter(t)
	token, claims, _ := jwt.GenerateJWT(7, "cliente")

	if w := do(r, "/me", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token: expected 401, got %d", w.Code)
	}
	if w := do(r, "/me", map[string]string{"Authorization": "Token " + token}); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong scheme: expected 401, got %d", w.Code)
	}
	if w := do(r, "/me", map[string]string{"Authorization": "Bearer garbage"}); w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: expected 401, got %d", w.Code)
	}

	w := do(r, "/me", map[string]string{"Authorization": "Bearer " + token})
	if w.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Error("request id header must be set")
	}

	if err := revoker.Revoke(context.Background(), claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if w := do(r, "/me", map[string]string{"Authorization": "Bearer " + token}); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: expected 401, got %d", w.Code)
	}
}

func TestQueryTokenOnlyForWebsocket(t *testing.T) {
	r, jwt, _ := setupRouter(t)
	token, _, _ := jwt.GenerateJWT(3, "motorista")

	if w := do(r, "/me?token="+token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("query token without upgrade: expected 401, got %d", w.Code)
	}
	if w := do(r, "/me?token="+token, map[string]string{"Upgrade": "websocket"}); w.Code != http.StatusOK {
		t.Errorf("query token with upgrade: expected 200, got %d", w.Code)
	}
}

func TestRequireRole(t *testing.T) {
	r, jwt, _ := setupRouter(t)
	client, _, _ := jwt.GenerateJWT(1, "cliente")
	admin, _, _ := jwt.GenerateJWT(2, "admin")

	if w := do(r, "/admin", map[string]string{"Authorization": "Bearer " + client}); w.Code != http.StatusForbidden {
		t.Errorf("client on admin route: expected 403, got %d", w.Code)
	}
	if w := do(r, "/admin", map[string]string{"Authorization": "Bearer " + admin}); w.Code != http.StatusNoContent {
		t.Errorf("admin on admin route: expected 204, got %d", w.Code)
	}
}

func TestJWTAuthRejectsDeletedUser(t *testing.T) {
	r, jwt, _ := setupRouterWithUsers(t, deletedUsers{5: true})
	deleted, _, _ := jwt.GenerateAdminJWT(5, 365*24*time.Hour)
	alive, _, _ := jwt.GenerateAdminJWT(6, 365*24*time.Hour)

	if w := do(r, "/me", map[string]string{"Authorization": "Bearer " + deleted}); w.Code != http.StatusUnauthorized {
		t.Errorf("deleted user: expected 401, got %d", w.Code)
	}
	if w := do(r, "/me", map[string]string{"Authorization": "Bearer " + alive}); w.Code != http.StatusOK {
		t.Errorf("active user: expected 200, got %d", w.Code)
	}
}

func TestJWTAuthLookupFailure(t *testing.T) {
	r, jwt, _ := setupRouterWithUsers(t, brokenLookup{})
	token, _, _ := jwt.GenerateJWT(1, "cliente")

	if w := do(r, "/me", map[string]string{"Authorization": "Bearer " + token}); w.Code != http.StatusServiceUnavailable {
		t.Errorf("lookup failure: expected 503, got %d", w.Code)
	}
}
