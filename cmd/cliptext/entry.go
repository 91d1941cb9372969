package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliptext/internal/control"
	"go.klb.dev/cliptext/internal/engine"
)

func newShowCmd() *cobra.Command {
	return clientCmd(&cobra.Command{
		Use:   "show <#|id>",
		Short: "Print the full text of an entry",
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, cmd *cobra.Command, c *control.Client, _ *viper.Viper, args []string) error {
		id, e, err := lookup(ctx, c, args[0])
		if err != nil {
			return err
		}
		text, err := c.Text(ctx, id)
		if err != nil {
			return fmt.Errorf("show %s: %w", e.Label, err)
		}
		_, err = io.WriteString(cmd.OutOrStdout(), text)
		return err
	})
}

func newPinCmd() *cobra.Command {
	return clientCmd(&cobra.Command{
		Use:   "pin <#|id>",
		Short: "Pin or unpin an entry",
		Long:  `Toggles the pin on an entry. Pinned entries are never evicted and survive "cliptext clear".`,
		Args:  cobra.ExactArgs(1),
	}, func(ctx context.Context, cmd *cobra.Command, c *control.Client, _ *viper.Viper, args []string) error {
		id, e, err := lookup(ctx, c, args[0])
		if err != nil {
			return err
		}
		pinned, err := c.TogglePin(ctx, id)
		if err != nil {
			return fmt.Errorf("pin: %w", err)
		}
		state := "unpinned"
		if pinned {
			state = "pinned"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", state, e.Label)
		return nil
	})
}

func newRemoveCmd() *cobra.Command {
	return clientCmd(&cobra.Command{
		Use:     "rm <#|id>",
		Aliases: []string{"remove"},
		Short:   "Remove an entry, pinned or not",
		Args:    cobra.ExactArgs(1),
	}, func(ctx context.Context, cmd *cobra.Command, c *control.Client, _ *viper.Viper, args []string) error {
		id, e, err := lookup(ctx, c, args[0])
		if err != nil {
			return err
		}
		if err := c.Remove(ctx, id); err != nil {
			return fmt.Errorf("remove: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", e.Label)
		return nil
	})
}

func newClearCmd() *cobra.Command {
	return clientCmd(&cobra.Command{
		Use:   "clear",
		Short: "Remove every unpinned entry",
		Args:  cobra.NoArgs,
	}, func(ctx context.Context, cmd *cobra.Command, c *control.Client, _ *viper.Viper, _ []string) error {
		n, err := c.Clear(ctx)
		if err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
		return nil
	})
}

func newPasteCmd() *cobra.Command {
	cmd := clientCmd(&cobra.Command{
		Use:   "paste <#|id>",
		Short: "Write an entry back to the clipboard and paste it",
		Long: `Writes the entry to the clipboard and, after the settle delay, sends the
paste keystroke. --target names the window to paste into: a window id for
xdotool, an application name on macOS, a window handle on Windows. Without it
the keystroke goes to whatever has focus.

--plain writes only the plain text of text and rich text entries. It does
nothing for images and file lists.`,
		Args: cobra.ExactArgs(1),
	}, runPaste)
	cmd.Flags().Bool("plain", false, "paste as plain text")
	cmd.Flags().String("target", "", "window to paste into")
	return cmd
}

func runPaste(ctx context.Context, cmd *cobra.Command, c *control.Client, v *viper.Viper, args []string) error {
	id, e, err := lookup(ctx, c, args[0])
	if err != nil {
		return err
	}
	err = c.Paste(ctx, id, v.GetBool("plain"), v.GetString("target"))
	switch {
	case errors.Is(err, engine.ErrNoPlainText):
		fmt.Fprintf(cmd.ErrOrStderr(), "%s has no plain text; nothing pasted\n", e.Label)
		return nil
	case err != nil:
		return fmt.Errorf("paste: %w", err)
	}
	return nil
}
