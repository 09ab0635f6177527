package engine

import "github.com/celerix-dev/wardledger/pkg/schema"

// transitions is the complete lifecycle graph. A status absent from the map,
// or mapped to an empty list, is terminal.
var transitions = map[schema.Status][]schema.Status{
	schema.Upcoming:  {schema.Ongoing, schema.Cancelled},
	schema.Ongoing:   {schema.Completed, schema.Cancelled},
	schema.Cancelled: nil,
	schema.Completed: nil,
}

// Allowed reports whether a record at current may move to requested.
// Self-transitions and anything leaving a terminal status are rejected.
func Allowed(current, requested schema.Status) bool {
	for _, next := range transitions[current] {
		if next == requested {
			return true
		}
	}
	return false
}

// Successors returns the statuses reachable from s in one step.
func Successors(s schema.Status) []schema.Status {
	next := transitions[s]
	out := make([]schema.Status, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s schema.Status) bool {
	return len(transitions[s]) == 0
}
