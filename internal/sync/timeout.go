package sync

import (
	"context"
	"time"
)

// AdapterTimeout is the fixed timeout every git-adapter call is wrapped
// with, distinct from the configurable per-request network timeout.
const AdapterTimeout = 30 * time.Second

func withAdapterTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, AdapterTimeout)
}
