package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenRevoker хранит отозванные токены (по jti) и отметки "все токены
// пользователя выданные до момента X недействительны".
type TokenRevoker struct {
	client *redis.Client
}

func NewTokenRevoker(client *redis.Client) *TokenRevoker {
	return &TokenRevoker{client: client}
}

func revokedKey(jti string) string        { return fmt.Sprintf("revoked_token:%s", jti) }
func revokedUserKey(userID uint) string { return fmt.Sprintf("revoked_user:%d", userID) }

// Revoke отзывает токен до истечения его срока
func (r *TokenRevoker) Revoke(ctx context.Context, claims *Claims) error {
	if r == nil || r.client == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKey(claims.ID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка при отзыве токена: %w", err)
	}
	return nil
}

// RevokeUser делает недействительными все токены пользователя, выданные до now.
// Ключ без срока: служебные токены администратора живут дольше обычных.
func (r *TokenRevoker) RevokeUser(ctx context.Context, userID uint) error {
	if r == nil || r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, revokedUserKey(userID), time.Now().Unix(), 0).Err(); err != nil {
		return fmt.Errorf("ошибка при отзыве токенов пользователя: %w", err)
	}
	return nil
}

// IsRevoked проверяет токен. Без Redis отзыв не поддерживается.
func (r *TokenRevoker) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	if r == nil || r.client == nil {
		return false, nil
	}

	n, err := r.client.Exists(ctx, revokedKey(claims.ID)).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки токена: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	cutoff, err := r.client.Get(ctx, revokedUserKey(claims.UserID)).Int64()
	if err == redis.Nil {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("ошибка проверки токена: %w", err)
	}
	return claims.IssuedAt != nil && claims.IssuedAt.Unix() <= cutoff, nil
}
