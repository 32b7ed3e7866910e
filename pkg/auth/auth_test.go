package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "correct horse battery staple" {
		t.Fatalf("hash equals plaintext")
	}
	if !CheckPassword("correct horse battery staple", hash) {
		t.Fatalf("correct password rejected")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("wrong password accepted")
	}
}

func TestSessionRoundtrip(t *testing.T) {
	store, err := NewSessionStore("test-secret", time.Hour, nil, SessionOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := store.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, err := store.UserID(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("subject = %q", userID)
	}
}

func TestSessionRejectsTamperedToken(t *testing.T) {
	store, err := NewSessionStore("test-secret", time.Hour, nil, SessionOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	other, err := NewSessionStore("other-secret", time.Hour, nil, SessionOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := other.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := store.UserID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	if _, err := store.UserID("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestSessionRequiresSecret(t *testing.T) {
	if _, err := NewSessionStore("  ", time.Hour, nil, SessionOptions{}); err == nil {
		t.Fatalf("expected error for blank secret")
	}
}

func TestRevokeBlocksToken(t *testing.T) {
	mr := miniredis.RunT(t)
	revoker := &RedisTokenRevoker{client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	store, err := NewSessionStore("test-secret", time.Hour, revoker, SessionOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	token, err := store.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := store.UserID(token); err != nil {
		t.Fatalf("verify before revoke: %v", err)
	}
	if err := store.Revoke(token); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := store.UserID(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("revoked token accepted, err = %v", err)
	}

	// A different token is unaffected.
	fresh, err := store.NewSession("user-2")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := store.UserID(fresh); err != nil {
		t.Fatalf("fresh token rejected: %v", err)
	}
}

func TestRevokeGarbageTokenIsNoOp(t *testing.T) {
	store, err := NewSessionStore("test-secret", time.Hour, nil, SessionOptions{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Revoke("garbage"); err != nil {
		t.Fatalf("revoke garbage: %v", err)
	}
}
