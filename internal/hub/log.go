package hub

import (
	"context"
	"log/slog"

	"go.klb.dev/cliptext/internal/message"
)

// LogHistory logs a snapshot at INFO (entry counts) and DEBUG (one line per
// entry with its kind and label).
func LogHistory(event string, v message.HistoryView) {
	slog.Info(event, "unpinned", len(v.Unpinned), "pinned", len(v.Pinned), "capacity", v.Capacity)

	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, group := range [][]message.EntryView{v.Pinned, v.Unpinned} {
		for _, e := range group {
			slog.Debug("history entry", "id", e.ID, "kind", e.Kind, "pinned", e.Pinned, "label", e.Label)
		}
	}
}
