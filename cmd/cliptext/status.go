package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliptext/internal/control"
)

func newStatusCmd() *cobra.Command {
	cmd := clientCmd(&cobra.Command{
		Use:   "status",
		Short: "Show daemon state and connected watchers",
		Args:  cobra.NoArgs,
	}, runStatus)
	cmd.Flags().Bool("json", false, "output raw JSON")
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, c *control.Client, v *viper.Viper, _ []string) error {
	resp, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if v.GetBool("json") {
		enc, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(enc))
		return nil
	}
	printStatus(cmd.OutOrStdout(), resp)
	return nil
}

func printStatus(out io.Writer, resp *control.StatusResponse) {
	w := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Version:\t%s\n", resp.Version)
	fmt.Fprintf(w, "State:\t%s\n", resp.State)
	fmt.Fprintf(w, "Backend:\t%s\n", resp.Backend)
	if !resp.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started:\t%s (%s)\n", resp.StartedAt.UTC().Format(time.RFC3339), fmtAge(resp.StartedAt))
	}
	fmt.Fprintf(w, "History:\t%d entries, %d pinned, capacity %d\n", resp.Entries, resp.Pinned, resp.Capacity)
	fmt.Fprintf(w, "Poll interval:\t%s\n", resp.PollInterval)
	fmt.Fprintf(w, "Settle delay:\t%s\n", resp.SettleDelay)
	fmt.Fprintf(w, "Suppressed:\t%t\n", resp.Suppressed)
	fmt.Fprintf(w, "Paste pending:\t%t\n", resp.PendingPaste)
	fmt.Fprintln(w)
	_ = w.Flush()

	if len(resp.Watchers) == 0 {
		fmt.Fprintln(out, "No watchers connected.")
		return
	}

	tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "ID\tSOURCE\tADDR\tCONNECTED\tLAST SEEN\n")
	_, _ = fmt.Fprintf(tw, "--\t------\t----\t---------\t---------\n")
	for _, p := range resp.Watchers {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Source, p.Addr, fmtAge(p.ConnectedAt), fmtAge(p.LastSeen),
		)
	}
	_ = tw.Flush()
}
