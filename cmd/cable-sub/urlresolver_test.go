package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cablehq/actioncable-go/pkg/actioncable"
	"github.com/cablehq/actioncable-go/pkg/config"
	"go.uber.org/zap"
)

func writeTestKeyPEM(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der := x509.MarshalPKCS1PrivateKey(key)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})

	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return path
}

func TestWithAuthToken_NoKeyConfiguredReturnsResolverUnchanged(t *testing.T) {
	cfg := &config.Config{}
	resolver := actioncable.StaticURL("wss://cable.example.com/cable")

	wrapped := withAuthToken(resolver, cfg, "ChatChannel", zap.NewNop())

	got, err := wrapped()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "wss://cable.example.com/cable" {
		t.Errorf("expected the url to pass through unmodified, got %q", got)
	}
}

func TestWithAuthToken_AppendsSignedToken(t *testing.T) {
	cfg := &config.Config{
		JWTPrivateKeyPath: writeTestKeyPEM(t),
		JWTIssuer:         "cable-sub",
		JWTTokenTTL:       time.Minute,
	}
	resolver := actioncable.StaticURL("wss://cable.example.com/cable")

	wrapped := withAuthToken(resolver, cfg, "ChatChannel", zap.NewNop())

	got, err := wrapped()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if u.Query().Get("token") == "" {
		t.Error("expected a signed token query param to be appended")
	}
}

func TestWithAuthToken_UnreadableKeyFallsBackToResolver(t *testing.T) {
	cfg := &config.Config{JWTPrivateKeyPath: filepath.Join(t.TempDir(), "missing.pem")}
	resolver := actioncable.StaticURL("wss://cable.example.com/cable")

	wrapped := withAuthToken(resolver, cfg, "ChatChannel", zap.NewNop())

	got, err := wrapped()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "wss://cable.example.com/cable" {
		t.Errorf("expected fallback to the unauthenticated url, got %q", got)
	}
}
