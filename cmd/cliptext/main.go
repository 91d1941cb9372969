// cliptext: clipboard history daemon and its command-line client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cliptext",
		Short: "Clipboard history daemon",
		Long: `cliptext keeps a bounded history of what you copy, lets you pin entries
so they survive eviction, and writes a chosen entry back to the clipboard
followed by a paste keystroke into the window you were using.

Run "cliptext daemon" once per session. The other commands talk to it over a
local control socket.

Config file search order (first found wins):
  /etc/cliptext/cliptext.toml
  $HOME/.config/cliptext/cliptext.toml
  path supplied via --config

All flags can be set via CLIPTEXT_<FLAG> env vars or config-file keys.
See "cliptext daemon --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newDaemonCmd(),
		newListCmd(),
		newShowCmd(),
		newPinCmd(),
		newRemoveCmd(),
		newClearCmd(),
		newPasteCmd(),
		newWatchCmd(),
		newStatusCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cliptext %s\n", Version)
		},
	}
}
