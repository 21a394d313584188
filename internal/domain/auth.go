package domain

import "context"

// AuthResult is the verified identity behind a bearer token.
type AuthResult struct {
	ClientID string
}

// Authenticator is the external token-verification collaborator. The session
// layer never mints or inspects tokens itself.
type Authenticator interface {
	// Verify resolves a bearer token to a client identity. A bad token
	// returns ErrAuthenticationFailed.
	Verify(ctx context.Context, token string) (AuthResult, error)
}
