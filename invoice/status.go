package invoice

var transitions = map[Status][]Status{
	StatusDraft:   {StatusSent, StatusPaid, StatusCancelled},
	StatusSent:    {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

// CanTransition reports whether from may move to to. A status never
// transitions to itself.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// Outstanding reports whether the invoice is awaiting payment.
func (s Status) Outstanding() bool {
	return s == StatusSent || s == StatusOverdue
}
