package sync

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"github.com/cpuguy83/roombar/internal/auth"
	"github.com/cpuguy83/roombar/internal/calendar"
	"github.com/cpuguy83/roombar/internal/config"
	"github.com/cpuguy83/roombar/internal/filter"
)

// createSources builds every configured source with its filter.
func createSources(ctx context.Context, cfgs []config.SourceConfig) ([]sourceWithFilter, error) {
	var sources []sourceWithFilter

	for _, cfg := range cfgs {
		src, err := NewSource(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
		}

		f, err := filter.New(cfg.Filters)
		if err != nil {
			return nil, fmt.Errorf("source %s filters: %w", cfg.Name, err)
		}

		sources = append(sources, sourceWithFilter{source: src, filter: f})
	}
	return sources, nil
}

// NewSource builds the source described by cfg.
func NewSource(ctx context.Context, cfg config.SourceConfig) (calendar.Source, error) {
	feed := calendar.RoomFeed{
		ID:              cfg.ID,
		BackgroundColor: cfg.BackgroundColor,
		ForegroundColor: cfg.ForegroundColor,
	}

	switch cfg.Type {
	case config.SourceICS:
		password, err := cfg.GetPassword()
		if err != nil {
			return nil, err
		}
		return calendar.NewICSSource(cfg.Name, cfg.URL, cfg.Username, password, feed), nil

	case config.SourceCalDAV:
		password, err := cfg.GetPassword()
		if err != nil {
			return nil, err
		}
		return calendar.NewCalDAVSource(cfg.Name, cfg.URL, cfg.Username, password, cfg.Calendars, feed), nil

	case config.SourceICloud:
		password, err := cfg.GetPassword()
		if err != nil {
			return nil, err
		}
		return calendar.NewICloudSource(cfg.Name, cfg.Username, password, cfg.Calendars, feed), nil

	case config.SourceMS365:
		tokens, err := MS365Tokens(cfg)
		if err != nil {
			return nil, err
		}
		return calendar.NewMS365Source(cfg.Name, cfg.Calendars, feed, tokens), nil

	case config.SourceGoogle:
		oauthCfg, err := auth.GoogleConfig(cfg.Credentials)
		if err != nil {
			return nil, err
		}
		ts, err := auth.GoogleTokenSource(ctx, oauthCfg, cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		return calendar.NewGoogleSource(cfg.Name, cfg.Calendars, feed, option.WithTokenSource(ts)), nil

	case config.SourceFile:
		return calendar.NewFileSource(cfg.Name, cfg.Path, feed), nil
	}

	return nil, fmt.Errorf("unknown source type %q", cfg.Type)
}

// MS365Tokens returns the device-code token provider of an ms365 source,
// backed by its on-disk MSAL cache.
func MS365Tokens(cfg config.SourceConfig) (*auth.DeviceCode, error) {
	cachePath, err := auth.DefaultCachePath(cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("token cache path: %w", err)
	}

	opts := auth.DeviceCodeOptions{
		ClientID:  cfg.ClientID,
		CachePath: cachePath,
	}
	if cfg.Tenant != "" {
		opts.Authority = "https://login.microsoftonline.com/" + cfg.Tenant
	}
	return auth.NewDeviceCode(calendar.MS365Scopes, opts)
}
