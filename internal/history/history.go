// Package history persists the conversation log: one durable, immutable
// record per turn, append-only, read back in chronological order. There are
// no update or delete operations; the log is an audit-style structure.
package history

import (
	"context"

	"github.com/inkgen/inkgen/internal/model"
)

// Log is the append-only conversation history.
type Log interface {
	// Append inserts a turn, assigning its ID and timestamp, and returns
	// the assigned ID.
	Append(ctx context.Context, turn model.ConversationTurn) (int64, error)

	// ListAll returns every turn ordered by timestamp ascending, with ties
	// broken by insertion order.
	ListAll(ctx context.Context) ([]model.ConversationTurn, error)
}
