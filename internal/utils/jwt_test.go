package utils

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	token, claims, err := m.GenerateJWT(42, "motorista")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("expected jti to be set")
	}

	got, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got.UserID != 42 || got.Role != "motorista" || got.ID != claims.ID {
		t.Errorf("unexpected claims: %+v", got)
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	token, _, err := NewJWTManager("one", time.Hour).GenerateJWT(1, "cliente")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	_, err = NewJWTManager("two", time.Hour).ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	m := NewJWTManager("secret", -time.Minute)
	token, _, err := m.GenerateJWT(1, "cliente")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := m.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected expired token to fail, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Error("password should match its hash")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password must not match")
	}

	unusable, err := UnusableHash()
	if err != nil {
		t.Fatalf("unusable hash: %v", err)
	}
	if CheckPassword(unusable, "correct horse") || CheckPassword(unusable, "") {
		t.Error("unusable hash must not match anything guessable")
	}
}
