package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/printmarket/backend/internal/domain/identity"
	"github.com/printmarket/backend/internal/infrastructure/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// verifyPath is the provider endpoint that validates a bearer token
const verifyPath = "/api/auth/verify"

// verifyResponse is the provider's answer
type verifyResponse struct {
	Success bool               `json:"success"`
	User    *identity.Identity `json:"user"`
	Error   string             `json:"error,omitempty"`
}

// RemoteVerifier asks the external identity provider to validate tokens
type RemoteVerifier struct {
	baseURL string
	client  *http.Client
}

// NewRemoteVerifier creates a verifier for cfg.URL
func NewRemoteVerifier(cfg config.IdentityConfig) *RemoteVerifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteVerifier{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Verify implements IdentityVerifier. A rejected token yields ErrInvalidToken;
// transport or server failures yield ErrProviderFailure.
func (v *RemoteVerifier) Verify(ctx context.Context, token string) (*identity.Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+verifyPath, strings.NewReader("{}"))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d", ErrProviderFailure, resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderFailure, err)
	}
	if !body.Success || body.User == nil {
		return nil, ErrInvalidToken
	}
	if !body.User.Role.IsValid() {
		return nil, ErrInvalidClaims
	}
	return body.User, nil
}

var _ IdentityVerifier = (*RemoteVerifier)(nil)

// NewVerifier builds the verifier selected by configuration
func NewVerifier(cfg *config.Config) IdentityVerifier {
	if cfg.Identity.Provider == "remote" {
		return NewCachingVerifier(NewRemoteVerifier(cfg.Identity), cfg.Identity.CacheTTL)
	}
	return NewJWTService(cfg.JWT)
}
