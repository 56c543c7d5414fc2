// Package auth acquires Microsoft Graph tokens for room mailbox access.
package auth

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultClientID is the Microsoft Edge public client, which is
	// pre-consented for Graph calendar scopes in most tenants.
	DefaultClientID = "d7b530a4-7680-4c23-a8bf-c52c121d2e87"

	// DefaultAuthority is used when no tenant is configured.
	DefaultAuthority = "https://login.microsoftonline.com/common"

	// refreshSkew is how long before expiry a cached token is replaced.
	refreshSkew = 5 * time.Minute
)

var (
	ErrNoAccounts = errors.New("no cached accounts")
	ErrAuthFailed = errors.New("authentication failed")
)

// Token is an OAuth2 access token.
type Token struct {
	AccessToken string
	ExpiresOn   time.Time
	AccountID   string
}

// Valid reports whether t can still be used at now.
func (t *Token) Valid(now time.Time) bool {
	return t != nil && t.AccessToken != "" && now.Add(refreshSkew).Before(t.ExpiresOn)
}

// TokenProvider acquires access tokens.
type TokenProvider interface {
	GetToken(ctx context.Context) (*Token, error)
	Close() error
}
