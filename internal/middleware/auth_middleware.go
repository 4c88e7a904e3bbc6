package middleware

import (
	"context"
	"net/http"
	"strings"

	"mototaxi-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

// Ключи контекста gin
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextClaims = "claims"
)

// bearerToken берет токен из заголовка Authorization. Для websocket
// допускается query-параметр token: браузер не умеет ставить заголовки.
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if token := c.Query("token"); token != "" {
				return token, true
			}
		}
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UserLookup проверяет, что владелец токена не удален
type UserLookup interface {
	IsActive(ctx context.Context, userID uint) (bool, error)
}

// JWTAuth проверяет подпись, отзыв и существование пользователя.
// users может быть nil, тогда последняя проверка пропускается.
func JWTAuth(jwt *utils.JWTManager, revoker *utils.TokenRevoker, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Отсутствует токен авторизации"})
			return
		}

		claims, err := jwt.ValidateToken(token)
		if err != nil || claims.UserID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Недействительный токен"})
			return
		}

		revoked, err := revoker.IsRevoked(c.Request.Context(), claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Не удалось проверить токен"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Токен отозван"})
			return
		}

		if users != nil {
			active, err := users.IsActive(c.Request.Context(), claims.UserID)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Не удалось проверить токен"})
				return
			}
			if !active {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Пользователь удален"})
				return
			}
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// CurrentClaims возвращает claims, положенные JWTAuth
func CurrentClaims(c *gin.Context) *utils.Claims {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return nil
	}
	claims, _ := v.(*utils.Claims)
	return claims
}
