package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/rzbill/stencil/pkg/cli/format"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the SCM API token",
	}
	cmd.AddCommand(newTokenSetCmd())
	cmd.AddCommand(newTokenShowCmd())
	return cmd
}

func newTokenSetCmd() *cobra.Command {
	var tokenFlag string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the SCM API token in the config file",
		Long: `Set prompts for the token without echoing it and writes it to the
stencil config file with owner-only permissions. Prefer the
STENCIL_SCM_TOKEN environment variable on shared machines.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			token := tokenFlag
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "SCM API token: ")
				raw, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(string(raw))
			}
			if token == "" {
				return fmt.Errorf("empty token")
			}

			path, err := configWritePath()
			if err != nil {
				return err
			}

			v := viper.New()
			v.SetConfigFile(path)
			// Existing settings survive; only the token changes.
			_ = v.ReadInConfig()
			v.Set("scm.token", token)

			if err := v.WriteConfigAs(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			if err := os.Chmod(path, 0o600); err != nil {
				return fmt.Errorf("restrict config permissions: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Token stored in %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenFlag, "token", "", "token value (prompted when omitted)")
	return cmd
}

func newTokenShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show where the SCM token comes from",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if cfg.SCM.Token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), format.Warning("No token configured; set %s or run 'stencil token set'", cfg.SCM.TokenEnv))
				return nil
			}

			source := "config file"
			if os.Getenv(cfg.SCM.TokenEnv) != "" {
				source = "environment (" + cfg.SCM.TokenEnv + ")"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token configured from %s: %s\n", source, maskToken(cfg.SCM.Token))
			return nil
		},
	}
}

// configWritePath is where token set writes: the --config flag when given,
// otherwise the default per-user config file.
func configWritePath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".stencil")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return filepath.Join(dir, "stencil.yaml"), nil
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + strings.Repeat("*", 8) + token[len(token)-4:]
}
