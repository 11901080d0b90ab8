package main

import (
	"os"

	"github.com/cablehq/actioncable-go/pkg/actioncable"
	"github.com/cablehq/actioncable-go/pkg/authtoken"
	"github.com/cablehq/actioncable-go/pkg/config"
	"go.uber.org/zap"
)

// withAuthToken wraps resolver so every resolution appends a freshly signed
// token to the query string, when cfg carries a JWT signing key. subject
// identifies the caller to the server's channel authorization logic — here,
// the channel being subscribed to. Falls back to resolver unchanged if no
// key is configured or the key fails to load, so a misconfigured signer
// degrades to an unauthenticated URL rather than refusing to connect.
func withAuthToken(resolver actioncable.URLResolver, cfg *config.Config, subject string, logger *zap.Logger) actioncable.URLResolver {
	if cfg.JWTPrivateKeyPath == "" {
		return resolver
	}

	keyPEM, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		logger.Warn("jwt-key-read-failed", zap.String("path", cfg.JWTPrivateKeyPath), zap.Error(err))
		return resolver
	}

	signer, err := authtoken.NewSigner(cfg.JWTIssuer, keyPEM, cfg.JWTTokenTTL)
	if err != nil {
		logger.Warn("jwt-signer-init-failed", zap.Error(err))
		return resolver
	}

	return func() (string, error) {
		raw, err := resolver()
		if err != nil {
			return "", err
		}
		return signer.AuthenticatedURL(raw, subject)
	}
}
