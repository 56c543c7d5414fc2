package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/cache"
	"github.com/AzureAD/microsoft-authentication-library-for-go/apps/public"
)

// DeviceCodeOptions configures NewDeviceCode.
type DeviceCodeOptions struct {
	// ClientID defaults to DefaultClientID.
	ClientID string
	// Authority defaults to DefaultAuthority. Set it to a tenant URL to
	// sign in against a single organization.
	Authority string
	// CachePath is the MSAL token cache file. Empty disables persistence.
	CachePath string
	// Prompt receives the sign-in instructions. Nil means stderr.
	Prompt io.Writer
}

// DeviceCode signs in with the OAuth device code flow and keeps the
// resulting refresh token in an MSAL cache file.
type DeviceCode struct {
	client public.Client
	scopes []string
	prompt io.Writer
	now    func() time.Time

	mu    sync.Mutex
	token *Token
}

// NewDeviceCode creates a device code token provider for scopes.
func NewDeviceCode(scopes []string, opts DeviceCodeOptions) (*DeviceCode, error) {
	if opts.ClientID == "" {
		opts.ClientID = DefaultClientID
	}
	if opts.Authority == "" {
		opts.Authority = DefaultAuthority
	}
	if opts.Prompt == nil {
		opts.Prompt = os.Stderr
	}

	clientOpts := []public.Option{public.WithAuthority(opts.Authority)}
	if opts.CachePath != "" {
		clientOpts = append(clientOpts, public.WithCache(&fileCache{path: opts.CachePath}))
	}

	client, err := public.New(opts.ClientID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create MSAL client: %w", err)
	}

	return &DeviceCode{
		client: client,
		scopes: scopes,
		prompt: opts.Prompt,
		now:    time.Now,
	}, nil
}

// GetToken returns a valid access token. It tries the in-memory token, then
// silent refresh for every cached account, then an interactive device code
// sign-in.
func (d *DeviceCode) GetToken(ctx context.Context) (*Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.token.Valid(d.now()) {
		return d.token, nil
	}

	token, err := d.silent(ctx)
	if err != nil {
		slog.Info("no usable cached credentials, starting device code sign-in", "reason", err)
		token, err = d.interactive(ctx)
		if err != nil {
			return nil, err
		}
	}

	d.token = token
	return token, nil
}

func (d *DeviceCode) silent(ctx context.Context) (*Token, error) {
	accounts, err := d.client.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cached accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	var errs []error
	for _, acct := range accounts {
		result, err := d.client.AcquireTokenSilent(ctx, d.scopes, public.WithSilentAccount(acct))
		if err != nil {
			slog.Debug("silent token refresh failed", "account", acct.PreferredUsername, "error", err)
			errs = append(errs, err)
			continue
		}
		return &Token{
			AccessToken: result.AccessToken,
			ExpiresOn:   result.ExpiresOn,
			AccountID:   acct.HomeAccountID,
		}, nil
	}
	return nil, errors.Join(errs...)
}

func (d *DeviceCode) interactive(ctx context.Context) (*Token, error) {
	dc, err := d.client.AcquireTokenByDeviceCode(ctx, d.scopes)
	if err != nil {
		return nil, fmt.Errorf("start device code flow: %w", err)
	}

	fmt.Fprintf(d.prompt, "\nTo read room calendars, open %s\nand enter the code %s\n\n",
		dc.Result.VerificationURL, dc.Result.UserCode)

	result, err := dc.AuthenticationResult(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	return &Token{
		AccessToken: result.AccessToken,
		ExpiresOn:   result.ExpiresOn,
		AccountID:   result.Account.HomeAccountID,
	}, nil
}

// Close is a no-op; the MSAL cache is written as tokens change.
func (d *DeviceCode) Close() error {
	return nil
}

// fileCache persists the MSAL token cache to a file.
type fileCache struct {
	path string
}

func (c *fileCache) Replace(ctx context.Context, u cache.Unmarshaler, hints cache.ReplaceHints) error {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token cache: %w", err)
	}
	return u.Unmarshal(data)
}

func (c *fileCache) Export(ctx context.Context, m cache.Marshaler, hints cache.ExportHints) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("marshal token cache: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("create token cache dir: %w", err)
	}
	return os.WriteFile(c.path, data, 0o600)
}

// DefaultCachePath returns the token cache location under the user cache dir.
func DefaultCachePath(name string) (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "roombar", name+"_msal_cache.json"), nil
}

var _ TokenProvider = (*DeviceCode)(nil)
