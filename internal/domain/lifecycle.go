package domain

// ComplaintStatus enumerates lifecycle states for complaints.
type ComplaintStatus string

const (
	StatusSubmitted  ComplaintStatus = "submitted"
	StatusAssigned   ComplaintStatus = "assigned"
	StatusInProgress ComplaintStatus = "in-progress"
	StatusResolved   ComplaintStatus = "resolved"
	StatusEscalated  ComplaintStatus = "escalated"
	StatusClosed     ComplaintStatus = "closed"
)

// Statuses lists every lifecycle state.
var Statuses = []ComplaintStatus{
	StatusSubmitted,
	StatusAssigned,
	StatusInProgress,
	StatusResolved,
	StatusEscalated,
	StatusClosed,
}

// OpenStatuses are the states that count against a staff member's workload.
var OpenStatuses = []ComplaintStatus{StatusAssigned, StatusInProgress, StatusEscalated}

// EscalatableStatuses are the states the scheduler watches for deadline breaches.
var EscalatableStatuses = []ComplaintStatus{StatusAssigned, StatusInProgress}

var allowedTransitions = map[ComplaintStatus]map[ComplaintStatus]struct{}{
	StatusSubmitted:  {StatusAssigned: {}},
	StatusAssigned:   {StatusInProgress: {}, StatusEscalated: {}},
	StatusInProgress: {StatusResolved: {}, StatusEscalated: {}},
	StatusResolved:   {StatusClosed: {}},
	StatusEscalated:  {StatusClosed: {}},
	StatusClosed:     {},
}

// Valid reports whether s is a known lifecycle state.
func (s ComplaintStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsTerminal reports whether no transitions leave s.
func (s ComplaintStatus) IsTerminal() bool {
	return s == StatusClosed
}

// CanEscalateFrom reports whether an escalation may start from s.
func (s ComplaintStatus) CanEscalateFrom() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// CanTransition reports whether next is a legal successor of current.
func CanTransition(current, next ComplaintStatus) bool {
	_, ok := allowedTransitions[current][next]
	return ok
}

// Successors returns the legal next states of s.
func Successors(s ComplaintStatus) []ComplaintStatus {
	out := make([]ComplaintStatus, 0, len(allowedTransitions[s]))
	for _, candidate := range Statuses {
		if _, ok := allowedTransitions[s][candidate]; ok {
			out = append(out, candidate)
		}
	}
	return out
}

func containsStatus(list []ComplaintStatus, s ComplaintStatus) bool {
	for _, candidate := range list {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsOpen reports whether the complaint still counts as workload.
func (s ComplaintStatus) IsOpen() bool {
	return containsStatus(OpenStatuses, s)
}
