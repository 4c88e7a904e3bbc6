package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestRevokeToken(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := NewTokenRevoker(client)
	m := NewJWTManager("secret", time.Hour)

	_, claims, _ := m.GenerateJWT(5, "cliente")
	_, other, _ := m.GenerateJWT(5, "cliente")

	revoked, err := r.IsRevoked(ctx, claims)
	if err != nil || revoked {
		t.Fatalf("fresh token must be valid, revoked=%v err=%v", revoked, err)
	}

	if err := r.Revoke(ctx, claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := r.IsRevoked(ctx, claims); !revoked {
		t.Error("token should be revoked")
	}
	if revoked, _ := r.IsRevoked(ctx, other); revoked {
		t.Error("other token of the same user must stay valid")
	}
	if mr.TTL("revoked_token:"+claims.ID) <= 0 {
		t.Error("revocation key must expire with the token")
	}
}

func TestRevokeUser(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := NewTokenRevoker(client)
	_, claims, _ := NewJWTManager("secret", time.Hour).GenerateJWT(9, "motorista")

	if err := r.RevokeUser(ctx, 9); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	if revoked, _ := r.IsRevoked(ctx, claims); !revoked {
		t.Error("tokens issued before user revocation must be rejected")
	}
}

func TestRevokeUserOutlivesLongTokens(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	r := NewTokenRevoker(client)
	_, claims, err := NewJWTManager("secret", 24*time.Hour).GenerateAdminJWT(7, 365*24*time.Hour)
	if err != nil {
		t.Fatalf("generate admin token: %v", err)
	}

	if err := r.RevokeUser(ctx, 7); err != nil {
		t.Fatalf("revoke user: %v", err)
	}
	mr.FastForward(25 * time.Hour)

	if revoked, _ := r.IsRevoked(ctx, claims); !revoked {
		t.Error("long-lived admin token must stay revoked after the regular token TTL")
	}
	if ttl := mr.TTL(revokedUserKey(7)); ttl != 0 {
		t.Errorf("user revocation key must not expire, ttl=%s", ttl)
	}
}

func TestNilRevokerAcceptsEverything(t *testing.T) {
	var r *TokenRevoker
	_, claims, _ := NewJWTManager("secret", time.Hour).GenerateJWT(1, "cliente")
	if revoked, err := r.IsRevoked(context.Background(), claims); revoked || err != nil {
		t.Errorf("nil revoker: revoked=%v err=%v", revoked, err)
	}
}
