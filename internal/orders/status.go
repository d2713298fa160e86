package orders

// transitions lists the moves allowed without admin override.
var transitions = map[string][]string{
	StatusPending:          {StatusProcessing, StatusApproved, StatusCancelled, StatusRejected},
	StatusProcessing:       {StatusApproved, StatusReadyForDelivery, StatusCancelled, StatusRejected},
	StatusApproved:         {StatusReadyForDelivery, StatusPickedUp, StatusCancelled},
	StatusReadyForDelivery: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:         {StatusOutForDelivery},
	StatusOutForDelivery:   {StatusDelivered},
}

var known = map[string]bool{
	StatusPending:          true,
	StatusProcessing:       true,
	StatusApproved:         true,
	StatusReadyForDelivery: true,
	StatusPickedUp:         true,
	StatusOutForDelivery:   true,
	StatusDelivered:        true,
	StatusCancelled:        true,
	StatusRejected:         true,
}

// KnownStatus reports whether s is one of the order statuses.
func KnownStatus(s string) bool {
	return known[s]
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no move may leave s.
func Terminal(s string) bool {
	return s == StatusDelivered
}
