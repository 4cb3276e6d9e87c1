package sync

// decision is the outcome of classifying a single path's three-way state.
type decision struct {
	action  string // "pull" | "push" | "pull-delete" | "push-delete" | "noop" | "conflict"
	newBase *string
}

const (
	actionPull       = "pull"
	actionPush       = "push"
	actionPullDelete = "pull-delete"
	actionPushDelete = "push-delete"
	actionNoop       = "noop"
	actionConflict   = "conflict"
)

// classify applies the base/local/remote three-way merge table to a
// single path. nil means the path is absent on that side.
func classify(base, local, remote *string) decision {
	if base == nil {
		switch {
		case local == nil && remote != nil:
			return decision{action: actionPull, newBase: remote}
		case local != nil && remote == nil:
			return decision{action: actionPush, newBase: local}
		case local != nil && remote != nil:
			if *local == *remote {
				return decision{action: actionNoop, newBase: local}
			}
			return decision{action: actionConflict}
		default:
			return decision{action: actionNoop}
		}
	}

	switch {
	case local != nil && remote != nil:
		switch {
		case *local == *base && *remote == *base:
			return decision{action: actionNoop, newBase: base}
		case *local == *base && *remote != *base:
			return decision{action: actionPull, newBase: remote}
		case *local != *base && *remote == *base:
			return decision{action: actionPush, newBase: local}
		case *local == *remote:
			return decision{action: actionNoop, newBase: local}
		default:
			return decision{action: actionConflict}
		}
	case local == nil && remote != nil:
		if *remote == *base {
			return decision{action: actionPushDelete}
		}
		return decision{action: actionConflict} // local-delete vs remote-change
	case local != nil && remote == nil:
		if *local == *base {
			return decision{action: actionPullDelete}
		}
		return decision{action: actionConflict} // local-change vs remote-delete
	default:
		return decision{action: actionNoop}
	}
}
