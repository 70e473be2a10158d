// Package lifecycle defines the prospect funnel and its allowed moves.
package lifecycle

import "fmt"

// Status is a stage of the prospect funnel.
type Status string

const (
	StatusNew        Status = "new"
	StatusContacted  Status = "contacted"
	StatusQualified  Status = "qualified"
	StatusProposal   Status = "proposal"
	StatusClosedWon  Status = "closed_won"
	StatusClosedLost Status = "closed_lost"
)

// All lists statuses in funnel order.
var All = []Status{
	StatusNew,
	StatusContacted,
	StatusQualified,
	StatusProposal,
	StatusClosedWon,
	StatusClosedLost,
}

var transitions = map[Status][]Status{
	StatusNew:        {StatusContacted, StatusQualified, StatusClosedLost},
	StatusContacted:  {StatusQualified, StatusProposal, StatusClosedLost},
	StatusQualified:  {StatusProposal, StatusClosedWon, StatusClosedLost},
	StatusProposal:   {StatusClosedWon, StatusClosedLost, StatusQualified},
	StatusClosedWon:  {},
	StatusClosedLost: {},
}

// Parse validates a raw status.
func Parse(value string) (Status, error) {
	status := Status(value)
	if _, ok := transitions[status]; !ok {
		return "", fmt.Errorf("unknown prospect status %q", value)
	}
	return status, nil
}

// CanTransition reports whether from may move to to. Staying put is allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		_, known := transitions[from]
		return known
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next returns the statuses reachable from s.
func Next(s Status) []Status {
	out := make([]Status, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

// IsClosed reports a terminal status.
func IsClosed(s Status) bool {
	return s == StatusClosedWon || s == StatusClosedLost
}

// Strings returns every status as a string, for validator tags and SQL filters.
func Strings() []string {
	out := make([]string, len(All))
	for i, s := range All {
		out[i] = string(s)
	}
	return out
}
