package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliptext/internal/clip"
	"go.klb.dev/cliptext/internal/config"
	"go.klb.dev/cliptext/internal/control"
	"go.klb.dev/cliptext/internal/engine"
	"go.klb.dev/cliptext/internal/ipc"
	"go.klb.dev/cliptext/internal/paste"
)

func newDaemonCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Watch the clipboard and serve the history",
		Long: `Starts the clipboard history engine. The daemon polls the system clipboard,
records every new text, rich text, image or file list, and serves the history
on a local control socket.

Config file search order:
  /etc/cliptext/cliptext.toml
  $HOME/.config/cliptext/cliptext.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPTEXT_* env vars → flags

Changes to capacity, poll-interval and settle-delay in the config file are
applied without a restart.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runDaemon(v) },
	}

	d := config.Default()
	f := cmd.Flags()
	f.Int(config.KeyCapacity, d.Capacity, "unpinned entries to keep")
	f.Duration(config.KeyPollInterval, d.PollInterval, "how often to check the clipboard for changes")
	f.Duration(config.KeySettleDelay, d.SettleDelay, "delay between writing an entry back and sending the paste keystroke")
	f.Bool(config.KeyHeadless, false, "use an in-memory clipboard instead of the system one")
	f.String(config.KeySocket, "", "control socket path (default: $XDG_RUNTIME_DIR/cliptext.sock or $TMPDIR/cliptext.sock)")
	f.String(config.KeyToken, "", "shared secret for control clients (empty = no auth, no encryption)")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runDaemon(v *viper.Viper) error {
	setupLogging(v)

	cfg := config.FromViper(v)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var backend clip.Backend
	if cfg.Headless {
		backend = clip.NewMemory()
	} else {
		backend = clip.New()
	}
	defer backend.Close()

	eng := engine.New(engine.OptionsFrom(cfg, backend, paste.New()))

	socket := ipc.Resolve(cfg.Socket)
	ln, err := ipc.Listen(socket)
	if err != nil {
		return err
	}
	defer os.Remove(socket)

	srv, err := control.NewServer(eng, cfg.Token, Version)
	if err != nil {
		ln.Close()
		return err
	}

	watchConfig(v, eng)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng.Start()
	defer eng.Stop()

	slog.Info("cliptext daemon starting",
		"version", Version,
		"backend", backend.Name(),
		"socket", socket,
		"capacity", cfg.Capacity,
		"poll_interval", cfg.PollInterval,
		"auth", cfg.Token != "",
		"config", v.ConfigFileUsed(),
	)

	err = srv.Serve(ctx, ln)
	slog.Info("cliptext daemon stopped")
	return err
}

// watchConfig re-reads the config file on change and applies the
// live-reloadable settings. Invalid edits are logged and ignored.
func watchConfig(v *viper.Viper, eng *engine.Engine) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(ev fsnotify.Event) {
		if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
			return
		}
		cfg := config.FromViper(v)
		if err := cfg.Validate(); err != nil {
			slog.Warn("config reload rejected", "file", ev.Name, "err", err)
			return
		}
		eng.Apply(cfg)
	})
	v.WatchConfig()
}
