package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliptext/internal/message"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the history every time it changes",
		Long: `Streams history snapshots from the daemon until interrupted. With --json each
snapshot is one line of JSON, suitable for a launcher or tray script.`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(cmd *cobra.Command, _ []string) error { return runWatch(cmd, v) },
	}
	cmd.Flags().Bool("json", false, "one JSON snapshot per line")
	addClientFlags(cmd)
	return cmd
}

func runWatch(cmd *cobra.Command, v *viper.Viper) error {
	c, err := newClient(v)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	jsonOut := v.GetBool("json")
	enc := json.NewEncoder(out)

	err = c.Watch(ctx, func(h message.HistoryView) error {
		if jsonOut {
			return enc.Encode(h)
		}
		printHistory(out, h)
		fmt.Fprintln(out)
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
