package main

import (
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/conclave-hq/conclave/config"
	"github.com/conclave-hq/conclave/credentials"
	"github.com/conclave-hq/conclave/pkg/actor"
)

func newAuthCommand() *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage credentials",
		Long: `Manage the inference API key and actor tokens.

The API key is stored encrypted in ~/.conclave/credentials.yaml. The
encryption key comes from the system keyring when available, otherwise from
a passphrase. The ` + credentials.APIKeyEnvVar + ` environment variable takes
precedence over stored credentials.`,
	}

	authCmd.AddCommand(newAuthSetKeyCommand())
	authCmd.AddCommand(newAuthShowCommand())
	authCmd.AddCommand(newAuthClearCommand())
	authCmd.AddCommand(newAuthTokenCommand())
	return authCmd
}

func newAuthSetKeyCommand() *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store the inference API key",
		Long: `Store the inference API key in the encrypted credential file.

Examples:
  # Prompt for the key without echoing it
  conclave auth set-key

  # Non-interactive (key ends up in shell history; prefer the prompt)
  conclave auth set-key --api-key AIza...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if apiKey == "" {
				fmt.Fprint(cmd.OutOrStdout(), "API key: ")
				raw, err := term.ReadPassword(int(syscall.Stdin))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("reading key: %w", err)
				}
				apiKey = strings.TrimSpace(string(raw))
			}
			if apiKey == "" {
				return fmt.Errorf("no API key provided")
			}

			store, err := credentials.NewStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			if err := store.Save(&credentials.Credentials{APIKey: apiKey}); err != nil {
				return fmt.Errorf("saving credentials: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored API key %s\n", credentials.MaskAPIKey(apiKey))
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key (prompts when omitted)")
	return cmd
}

func newAuthShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the stored credential status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := credentials.NewStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}

			out := cmd.OutOrStdout()
			if !store.Exists() {
				fmt.Fprintln(out, "No credentials stored.")
				fmt.Fprintln(out, "Run 'conclave auth set-key' to store an API key.")
				return nil
			}

			creds, err := store.Load()
			if err != nil {
				return fmt.Errorf("loading credentials: %w", err)
			}
			fmt.Fprintf(out, "API key:      %s\n", credentials.MaskAPIKey(creds.APIKey))
			fmt.Fprintf(out, "Last updated: %s\n", creds.LastUpdated.Format(time.RFC3339))
			return nil
		},
	}
}

func newAuthClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := credentials.NewStore()
			if err != nil {
				return fmt.Errorf("initializing credential store: %w", err)
			}
			if err := store.Delete(); err != nil {
				return fmt.Errorf("deleting credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials cleared.")
			return nil
		},
	}
}

func newAuthTokenCommand() *cobra.Command {
	var (
		actorID   string
		actorName string
		ttl       time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an actor bearer token",
		Long: `Mint a JWT bearer token for the given actor, signed with the
configured server jwt_secret. Clients present it as an Authorization header
on the signaling endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("server jwt_secret is not configured")
			}

			resolver := actor.NewTokenResolver(cfg.Server.JWTSecret)
			token, err := resolver.Generate(actor.Identity{ID: actorID, DisplayName: actorName}, ttl)
			if err != nil {
				return fmt.Errorf("generating token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&actorID, "actor", "default_operator", "actor id embedded in the token")
	cmd.Flags().StringVar(&actorName, "name", "Operator", "actor display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
