package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"go.klb.dev/cliptext/internal/config"
	"go.klb.dev/cliptext/internal/control"
	"go.klb.dev/cliptext/internal/ipc"
	"go.klb.dev/cliptext/internal/message"
)

const requestTimeout = 5 * time.Second

var (
	errNoDaemon  = errors.New("no cliptext daemon running")
	errNoMatch   = errors.New("no such entry")
	errAmbiguous = errors.New("ambiguous entry id")
)

// defaultSource names this client in daemon logs and watcher lists.
func defaultSource() string {
	if s := os.Getenv("CLIPTEXT_SOURCE"); s != "" {
		return s
	}
	h, err := os.Hostname()
	if err != nil {
		return "cli"
	}
	return "cli@" + h
}

// newClient connects to the daemon named by the socket/token settings in v.
func newClient(v *viper.Viper) (*control.Client, error) {
	socket := ipc.Resolve(v.GetString(config.KeySocket))
	if !ipc.IsRunning(socket) {
		return nil, fmt.Errorf("%w at %s (start one with \"cliptext daemon\")", errNoDaemon, socket)
	}
	return control.Dial(socket, v.GetString(config.KeyToken), defaultSource())
}

// clientCmd builds a command that runs fn against a connected client.
func clientCmd(cmd *cobra.Command, fn func(ctx context.Context, cmd *cobra.Command, c *control.Client, v *viper.Viper, args []string) error) *cobra.Command {
	v := viper.New()
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) }
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		c, err := newClient(v)
		if err != nil {
			return err
		}
		defer c.Close()
		ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
		defer cancel()
		return fn(ctx, cmd, c, v, args)
	}
	addClientFlags(cmd)
	return cmd
}

// ordered returns entries in display order: unpinned newest first, then
// pinned.
func ordered(v message.HistoryView) []message.EntryView {
	out := make([]message.EntryView, 0, v.Len())
	out = append(out, v.Unpinned...)
	return append(out, v.Pinned...)
}

// resolveEntry accepts a 1-based position from "cliptext list" or a unique
// ID prefix.
func resolveEntry(v message.HistoryView, arg string) (uuid.UUID, message.EntryView, error) {
	entries := ordered(v)
	if n, err := strconv.Atoi(arg); err == nil {
		if n < 1 || n > len(entries) {
			return uuid.Nil, message.EntryView{}, fmt.Errorf("%w: position %d (history has %d)", errNoMatch, n, len(entries))
		}
		e := entries[n-1]
		id, err := uuid.Parse(e.ID)
		return id, e, err
	}

	prefix := strings.ToLower(arg)
	var found []message.EntryView
	for _, e := range entries {
		if strings.HasPrefix(e.ID, prefix) {
			found = append(found, e)
		}
	}
	switch len(found) {
	case 0:
		return uuid.Nil, message.EntryView{}, fmt.Errorf("%w: %s", errNoMatch, arg)
	case 1:
		id, err := uuid.Parse(found[0].ID)
		return id, found[0], err
	default:
		return uuid.Nil, message.EntryView{}, fmt.Errorf("%w: %s matches %d entries", errAmbiguous, arg, len(found))
	}
}

// lookup fetches the history and resolves arg against it.
func lookup(ctx context.Context, c *control.Client, arg string) (uuid.UUID, message.EntryView, error) {
	v, err := c.List(ctx)
	if err != nil {
		return uuid.Nil, message.EntryView{}, fmt.Errorf("list: %w", err)
	}
	return resolveEntry(v, arg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func fmtAge(t time.Time) string {
	age := time.Since(t).Round(time.Second)
	if age < time.Minute {
		return fmt.Sprintf("%ds ago", int(age.Seconds()))
	}
	if age < time.Hour {
		return fmt.Sprintf("%dm ago", int(age.Minutes()))
	}
	return t.Format("15:04:05")
}
