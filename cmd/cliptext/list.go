package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliptext/internal/control"
	"go.klb.dev/cliptext/internal/message"
)

func newListCmd() *cobra.Command {
	cmd := clientCmd(&cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the clipboard history",
		Long: `Lists the history newest first, pinned entries last. The # column is the
position other commands accept in place of an ID.`,
		Args: cobra.NoArgs,
	}, runList)
	cmd.Flags().Bool("json", false, "output raw JSON")
	return cmd
}

func runList(ctx context.Context, cmd *cobra.Command, c *control.Client, v *viper.Viper, _ []string) error {
	h, err := c.List(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	if v.GetBool("json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	}
	printHistory(cmd.OutOrStdout(), h)
	return nil
}

func printHistory(out io.Writer, h message.HistoryView) {
	if h.Len() == 0 {
		fmt.Fprintln(out, "History is empty.")
		return
	}
	tw := tabwriter.NewWriter(out, 1, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "#\tID\tKIND\tPIN\tCAPTURED\tLABEL\n")
	_, _ = fmt.Fprintf(tw, "-\t--\t----\t---\t--------\t-----\n")
	for i, e := range ordered(h) {
		pin := ""
		if e.Pinned {
			pin = "*"
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, shortID(e.ID), e.Kind, pin, fmtAge(e.CapturedAt), e.Label,
		)
	}
	_ = tw.Flush()
	fmt.Fprintf(out, "\n%d of %d unpinned, %d pinned\n", len(h.Unpinned), h.Capacity, len(h.Pinned))
}
