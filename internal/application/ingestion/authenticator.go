package ingestion

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/crm/backend/internal/domain/ingestion"
	"github.com/crm/backend/internal/domain/integration"
)

// TestPathSuffix marks a webhook path as a test call
const TestPathSuffix = "/test"

var testModeFlags = []string{"test", "test_mode"}

// Authenticator resolves webhook tokens to integration configs
type Authenticator struct {
	configs integration.ConfigRepository
}

// NewAuthenticator creates an Authenticator
func NewAuthenticator(configs integration.ConfigRepository) *Authenticator {
	return &Authenticator{configs: configs}
}

// Authenticate returns the config owning token, active or not. The token is
// matched exactly as received. An empty or unknown token is an auth error;
// store failures are unexpected errors.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (*integration.Config, error) {
	if token == "" {
		return nil, ingestion.NewError(ingestion.KindAuth, "missing integration token")
	}

	cfg, err := a.configs.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, integration.ErrConfigNotFound) {
			return nil, ingestion.ErrAuth
		}
		return nil, ingestion.WrapError(ingestion.KindUnexpected, "failed to look up integration", err)
	}
	return cfg, nil
}

// IsTestMode reports whether a call asks for test mode, either through the
// path suffix or one of the query flags
func IsTestMode(path string, query url.Values) bool {
	if strings.HasSuffix(strings.TrimRight(path, "/"), TestPathSuffix) {
		return true
	}
	for _, flag := range testModeFlags {
		values, ok := query[flag]
		if !ok {
			continue
		}
		if len(values) == 0 || isTruthy(values[0]) {
			return true
		}
	}
	return false
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
