package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliptext/internal/config"
	"go.klb.dev/cliptext/internal/logging"
)

// envReplacer maps poll-interval to CLIPTEXT_POLL_INTERVAL.
var envReplacer = strings.NewReplacer("-", "_")

// bindViper wires a command's flags into a viper instance with the standard
// config file search order and CLIPTEXT_* env var prefix.
//
// Precedence (lowest → highest): defaults → config file → CLIPTEXT_* env vars → flags
func bindViper(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)

	configFlag, _ := cmd.Flags().GetString("config")
	if configFlag != "" {
		v.SetConfigFile(configFlag)
	} else {
		v.SetConfigName("cliptext")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc/cliptext/")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(fmt.Sprintf("%s/.config/cliptext", home))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: %w", err)
		}
	}

	v.SetEnvPrefix("CLIPTEXT")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// addLoggingFlags adds the standard logging flags to a command.
func addLoggingFlags(cmd *cobra.Command) {
	cmd.Flags().Bool(config.KeyNoBackground, false, "run interactively: tinter logs + debug level")
	cmd.Flags().String(config.KeyLogFormat, "auto", "log format: auto|text|json")
	cmd.Flags().String(config.KeyLogLevel, "", "log level: debug|info|warn|error (default: info for service, debug for interactive)")
}

// addConfigFlag adds the --config flag to a command.
func addConfigFlag(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "path to config file (overrides auto-discovery)")
}

// addClientFlags adds the flags every control-socket client needs.
func addClientFlags(cmd *cobra.Command) {
	cmd.Flags().String(config.KeySocket, "", "control socket path (default: $XDG_RUNTIME_DIR/cliptext.sock or $TMPDIR/cliptext.sock)")
	cmd.Flags().String(config.KeyToken, "", "shared secret (must match the daemon)")
	addConfigFlag(cmd)
}

// setupLogging reads logging flags from viper and configures slog.
func setupLogging(v *viper.Viper) {
	interactive := v.GetBool(config.KeyNoBackground) || logging.IsTTY(os.Stderr)
	logging.Setup(logging.Options{
		Format: logging.ParseFormat(v.GetString(config.KeyLogFormat)),
		Level:  logging.ParseLevel(v.GetString(config.KeyLogLevel), interactive),
	})
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Long: `Writes the built-in defaults as TOML to $HOME/.config/cliptext/cliptext.toml
(or --path). Edit it while the daemon runs: capacity, poll-interval and
settle-delay are applied live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				p, err := config.UserPath()
				if err != nil {
					return fmt.Errorf("locate config dir: %w", err)
				}
				path = p
			}
			if err := config.WriteFile(path, config.Default(), force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "where to write the file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
