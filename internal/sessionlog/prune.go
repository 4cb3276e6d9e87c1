package sessionlog

import (
	"context"
	"fmt"

	"github.com/restbench/core/internal/store"
)

// DefaultHistoryRetentionDays is used when no retention setting is
// configured; store.HistoryRepo.Prune clamps any value to [1, 365].
const DefaultHistoryRetentionDays = 30

// PruneHistory deletes request-history rows older than retentionDays and
// pushes a system entry reporting how many were removed. Intended to run
// once at startup, per the prune policy.
func PruneHistory(ctx context.Context, s *store.Store, log *Log, retentionDays int) (int64, error) {
	n, err := s.History.Prune(ctx, retentionDays)
	if err != nil {
		log.Push(Entry{
			Category: CategorySystem, Type: "history_prune", Success: false,
			Message: err.Error(),
		})
		return 0, err
	}
	log.Push(Entry{
		Category: CategorySystem, Type: "history_prune", Success: true,
		Message: fmt.Sprintf("pruned %d history entries older than %d days", n, retentionDays),
	})
	return n, nil
}
