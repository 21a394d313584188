// Package auth provides the HTTP client for the external token-verification
// service. Token issuance and its business rules live entirely on that
// service; the session layer only asks "who is this token".
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/AlabamaMike/primoPokerServerlessCF-sub004/internal/domain"
)

const verifyTimeout = 10 * time.Second

// Client verifies bearer tokens against the authentication service.
type Client struct {
	verifyURL  string
	httpClient *http.Client
}

var _ domain.Authenticator = (*Client)(nil)

func NewClient(verifyURL string) *Client {
	return &Client{
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: verifyTimeout},
	}
}

type verifyResponse struct {
	Valid    bool   `json:"valid"`
	ClientID string `json:"clientId"`
}

// Verify resolves a bearer token to a client identity. Invalid tokens map to
// domain.ErrAuthenticationFailed; transport problems reaching the service
// are wrapped separately so callers can tell an outage from a bad token.
func (c *Client) Verify(ctx context.Context, token string) (domain.AuthResult, error) {
	if token == "" {
		return domain.AuthResult{}, domain.ErrAuthenticationFailed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.verifyURL, nil)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AuthResult{}, fmt.Errorf("auth service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return domain.AuthResult{}, domain.ErrAuthenticationFailed
	}
	if resp.StatusCode != http.StatusOK {
		return domain.AuthResult{}, fmt.Errorf("auth service returned %d", resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.AuthResult{}, fmt.Errorf("decode verify response: %w", err)
	}
	if !body.Valid || body.ClientID == "" {
		return domain.AuthResult{}, domain.ErrAuthenticationFailed
	}

	return domain.AuthResult{ClientID: body.ClientID}, nil
}
