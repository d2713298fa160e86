package orders

import "github.com/imrishuroy/pharmacy-orderflow/internal/users"

// Actor is the authenticated caller. A zero Actor is a guest.
type Actor struct {
	ID   string
	Role string
}

// IsAdmin reports whether the actor is an administrator.
func (a Actor) IsAdmin() bool { return a.Role == users.RoleAdmin }

// IsGuest reports whether the caller is unauthenticated.
func (a Actor) IsGuest() bool { return a.ID == "" }

func (a Actor) owns(o *Order) bool {
	return !a.IsGuest() && !o.IsGuest() && a.ID == o.UserID
}

func (a Actor) delivers(o *Order) bool {
	return !a.IsGuest() && a.Role == users.RoleDelivery && o.DeliveryPersonID == a.ID
}

func (a Actor) canView(o *Order) bool {
	return a.IsAdmin() || a.owns(o) || a.delivers(o)
}

// authorizeStatus decides whether actor may move o to next. It returns
// ErrForbidden or a *TransitionError.
func authorizeStatus(actor Actor, o *Order, next string) error {
	if Terminal(o.Status) {
		return &TransitionError{From: o.Status, To: next}
	}
	switch {
	case actor.IsAdmin():
		return nil
	case actor.delivers(o):
		if !CanTransition(o.Status, next) {
			return &TransitionError{From: o.Status, To: next}
		}
		return nil
	case actor.owns(o):
		if o.Status == StatusPending && next == StatusCancelled {
			return nil
		}
		return ErrForbidden
	}
	return ErrForbidden
}
