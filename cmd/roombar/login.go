package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cpuguy83/roombar/internal/auth"
	"github.com/cpuguy83/roombar/internal/config"
	"github.com/cpuguy83/roombar/internal/sync"
)

func loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a calendar provider",
	}
	cmd.AddCommand(loginGoogleCmd())
	cmd.AddCommand(loginMS365Cmd())
	return cmd
}

func loginGoogleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "google <source>",
		Short: "Authorize a Google source and store its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := findSource(args[0], config.SourceGoogle)
			if err != nil {
				return err
			}
			oauthCfg, err := auth.GoogleConfig(src.Credentials)
			if err != nil {
				return err
			}
			tok, err := auth.LoginGoogle(cmd.Context(), oauthCfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := auth.SaveGoogleToken(src.TokenFile, tok); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token saved to %s\n", src.TokenFile)
			return nil
		},
	}
}

func loginMS365Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ms365 <source>",
		Short: "Sign in a Microsoft 365 source with a device code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := findSource(args[0], config.SourceMS365)
			if err != nil {
				return err
			}
			tokens, err := sync.MS365Tokens(*src)
			if err != nil {
				return err
			}
			defer tokens.Close()

			if _, err := tokens.GetToken(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in %s\n", src.Name)
			return nil
		},
	}
}

// findSource returns the configured source called name, which must be of
// type typ.
func findSource(name, typ string) (*config.SourceConfig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return lookupSource(cfg, name, typ)
}

func lookupSource(cfg *config.Config, name, typ string) (*config.SourceConfig, error) {
	for i := range cfg.Sources {
		s := &cfg.Sources[i]
		if s.Name != name {
			continue
		}
		if s.Type != typ {
			return nil, fmt.Errorf("source %q is of type %s, not %s", name, s.Type, typ)
		}
		return s, nil
	}
	return nil, fmt.Errorf("no source named %q", name)
}
