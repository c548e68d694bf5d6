package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// WithLogger routes recorder failures to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithEnabledActions restricts auditing to the named actions. Without it
// every action is recorded.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) { e.only = actionSet(e.only, actions) }
}

// WithDisabledActions drops the named actions. It wins over
// WithEnabledActions when an action appears in both.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) { e.skip = actionSet(e.skip, actions) }
}

func actionSet(set map[string]struct{}, actions []string) map[string]struct{} {
	if set == nil {
		set = make(map[string]struct{}, len(actions))
	}
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// allows reports whether action passes the enabled and disabled filters.
func (e *Extension) allows(action string) bool {
	if _, skipped := e.skip[action]; skipped {
		return false
	}
	if e.only == nil {
		return true
	}
	_, ok := e.only[action]
	return ok
}
