package document

import "fmt"

var (
	validTypes      = map[Type]bool{TypeLetter: true, TypeMemo: true, TypeCircular: true, TypeApproval: true, TypeReport: true}
	validPriorities = map[Priority]bool{PriorityNormal: true, PriorityUrgent: true, PriorityHigh: true}
	validStatuses   = map[Status]bool{StatusPending: true, StatusAccepted: true, StatusReviewed: true, StatusApproved: true, StatusRejected: true}
)

// transitions lists the statuses a receiver may move a document to from each
// state when strict transitions are enabled.
var transitions = map[Status][]Status{
	StatusPending:  {StatusAccepted},
	StatusAccepted: {StatusReviewed, StatusApproved, StatusRejected},
	StatusReviewed: nil,
	StatusApproved: nil,
	StatusRejected: nil,
}

func (t Type) Valid() bool     { return validTypes[t] }
func (p Priority) Valid() bool { return validPriorities[p] }

// Valid reports whether s is a persistable document status. Forwarded is not.
func (s Status) Valid() bool { return validStatuses[s] }

// Terminal reports whether no further action is expected on a document in s.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanForward reports whether a document in state s may be handed to a new
// receiver under strict transitions.
func CanForward(s Status) bool {
	return s == StatusPending || s == StatusAccepted
}

// Policy decides whether state changes are legal. The permissive policy
// accepts any valid status from any state.
type Policy struct {
	Strict bool
}

// CheckStatus validates moving from -> to.
func (p Policy) CheckStatus(from, to Status) error {
	if !to.Valid() {
		return Validation(fmt.Sprintf("invalid status %q", to))
	}
	if p.Strict && !CanTransition(from, to) {
		return Validation(fmt.Sprintf("cannot change status from %s to %s", from, to))
	}
	return nil
}

// CheckForward validates forwarding a document currently in from.
func (p Policy) CheckForward(from Status) error {
	if p.Strict && !CanForward(from) {
		return Validation(fmt.Sprintf("cannot forward a document that is %s", from))
	}
	return nil
}
