// Package workflow holds the outbound order state machine: which actions an
// order offers given its status, type, the caller's warehouse role and whether
// a driver is already assigned, and which status each action moves the order
// to. Handlers consult the same table that powers the UI's action buttons, so
// a request racing another tab gets a 409 instead of an illegal transition.
package workflow

import "fmt"

// Order statuses.
const (
	StatusNew               = "New"
	StatusPendingPick       = "Pending Pick"
	StatusPartiallyPicked   = "Partially Picked"
	StatusPicked            = "Picked"
	StatusStaged            = "Staged"
	StatusReadyForPickup    = "Ready for Pickup"
	StatusAssigned          = "Assigned"
	StatusOutForDelivery    = "Out for Delivery"
	StatusDeliveryFailed    = "Delivery Failed"
	StatusDelivered         = "Delivered"
	StatusShipped           = "Shipped"
	StatusCancelled         = "Cancelled"
	StatusReturned          = "Returned"
	StatusPartiallyReturned = "Partially Returned"
	StatusScrapped          = "Scrapped"
)

// Order types.
const (
	TypeCustomer = "Customer"
	TypeTransfer = "Transfer"
	TypeScrap    = "Scrap"
)

// Warehouse roles.
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleOperator = "operator"
	RoleDriver   = "driver"
	RoleViewer   = "viewer"
)

// Actions.
const (
	ActionPick           = "pick"
	ActionUnpick         = "unpick"
	ActionStage          = "stage"
	ActionScrap          = "scrap"
	ActionAssignDriver   = "assign_driver"
	ActionChangeDriver   = "change_driver"
	ActionShip           = "ship"
	ActionOutForDelivery = "out_for_delivery"
	ActionDeliver        = "deliver"
	ActionFailDelivery   = "fail_delivery"
	ActionCancel         = "cancel"
	ActionCreateReturn   = "create_return"
)

// Statuses lists every order status in lifecycle order.
var Statuses = []string{
	StatusNew, StatusPendingPick, StatusPartiallyPicked, StatusPicked,
	StatusStaged, StatusReadyForPickup, StatusAssigned, StatusOutForDelivery,
	StatusDeliveryFailed, StatusDelivered, StatusShipped, StatusCancelled,
	StatusReturned, StatusPartiallyReturned, StatusScrapped,
}

// Statuses past the point of no return: cancel is refused, only the return
// flow applies. A shipped order can still be cancelled before delivery.
var notCancellable = map[string]bool{
	StatusDelivered:         true,
	StatusCancelled:         true,
	StatusReturned:          true,
	StatusPartiallyReturned: true,
	StatusScrapped:          true,
}

// statusSet builds a membership set from a list.
func statusSet(ss ...string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}

// eligible maps each action to the statuses it may be invoked from.
var eligible = map[string]map[string]bool{
	ActionPick:           statusSet(StatusNew, StatusPendingPick, StatusPartiallyPicked),
	ActionUnpick:         statusSet(StatusPartiallyPicked, StatusPicked),
	ActionStage:          statusSet(StatusPicked),
	ActionScrap:          statusSet(StatusPicked),
	ActionAssignDriver:   statusSet(StatusStaged, StatusDeliveryFailed),
	ActionChangeDriver:   statusSet(StatusStaged, StatusAssigned, StatusOutForDelivery, StatusDeliveryFailed),
	ActionShip:           statusSet(StatusStaged, StatusAssigned, StatusReadyForPickup),
	ActionOutForDelivery: statusSet(StatusAssigned),
	ActionDeliver:        statusSet(StatusOutForDelivery),
	ActionFailDelivery:   statusSet(StatusOutForDelivery),
	ActionCreateReturn:   statusSet(StatusShipped, StatusDelivered, StatusPartiallyReturned),
}

// roleActions maps each warehouse role to the actions it may perform.
// admin/manager get everything.
var roleActions = map[string]map[string]bool{
	RoleOperator: statusSet(ActionPick, ActionUnpick, ActionStage, ActionScrap, ActionShip),
	RoleDriver:   statusSet(ActionOutForDelivery, ActionDeliver, ActionFailDelivery),
	RoleViewer:   {},
}

// OrderState is the tuple action visibility is derived from. FullyPicked
// reports whether every line's picked quantity equals its ordered quantity.
type OrderState struct {
	Status         string
	OrderType      string
	Role           string
	DriverAssigned bool
	FullyPicked    bool
}

// roleAllows reports whether the role may perform the action at all.
func roleAllows(role, action string) bool {
	if role == RoleAdmin || role == RoleManager {
		return true
	}
	allowed, ok := roleActions[role]
	return ok && allowed[action]
}

// Can reports whether the action is available for the given order state.
func Can(action string, st OrderState) bool {
	if !roleAllows(st.Role, action) {
		return false
	}
	switch action {
	case ActionCancel:
		return !notCancellable[st.Status]
	case ActionPick:
		return eligible[ActionPick][st.Status] && !st.FullyPicked
	case ActionStage:
		return eligible[ActionStage][st.Status] && st.OrderType != TypeScrap
	case ActionScrap:
		return eligible[ActionScrap][st.Status] && st.OrderType == TypeScrap
	case ActionAssignDriver:
		return eligible[ActionAssignDriver][st.Status] && !st.DriverAssigned
	case ActionChangeDriver:
		return eligible[ActionChangeDriver][st.Status] && st.DriverAssigned
	case ActionOutForDelivery, ActionDeliver, ActionFailDelivery:
		return eligible[action][st.Status] && st.DriverAssigned
	default:
		allowed, ok := eligible[action]
		return ok && allowed[st.Status]
	}
}

// Allowed returns every action available for the given order state, in a
// stable order.
func Allowed(st OrderState) []string {
	all := []string{
		ActionPick, ActionUnpick, ActionStage, ActionScrap,
		ActionAssignDriver, ActionChangeDriver, ActionShip,
		ActionOutForDelivery, ActionDeliver, ActionFailDelivery,
		ActionCancel, ActionCreateReturn,
	}
	var out []string
	for _, a := range all {
		if Can(a, st) {
			out = append(out, a)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

// TransitionError marks a rejected action so handlers can map it to 409.
type TransitionError struct {
	Action string
	Status string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("action %q is not allowed while order is %q", e.Action, e.Status)
}

// Apply returns the status the order moves to when the action succeeds, or a
// TransitionError when the action is not available. Pick and return outcomes
// depend on quantities, so callers pass the post-action facts in st.
func Apply(action string, st OrderState) (string, error) {
	ok := Can(action, st)
	if !ok && action == ActionPick {
		// A pick that completes the order arrives here with FullyPicked
		// already set; eligibility is judged on the status alone.
		ok = roleAllows(st.Role, ActionPick) && eligible[ActionPick][st.Status]
	}
	if !ok {
		return "", &TransitionError{Action: action, Status: st.Status}
	}
	switch action {
	case ActionPick:
		if st.FullyPicked {
			return StatusPicked, nil
		}
		return StatusPartiallyPicked, nil
	case ActionUnpick:
		return StatusPartiallyPicked, nil
	case ActionStage:
		return StatusStaged, nil
	case ActionScrap:
		return StatusScrapped, nil
	case ActionShip:
		return StatusShipped, nil
	case ActionOutForDelivery:
		return StatusOutForDelivery, nil
	case ActionDeliver:
		return StatusDelivered, nil
	case ActionFailDelivery:
		return StatusDeliveryFailed, nil
	case ActionCancel:
		return StatusCancelled, nil
	default:
		return "", &TransitionError{Action: action, Status: st.Status}
	}
}

// AssignmentStatus returns the status an order moves to when a driver is
// assigned: in-house drivers take the order out themselves, third-party
// companies collect it.
func AssignmentStatus(assignmentType string) string {
	if assignmentType == "third_party" {
		return StatusReadyForPickup
	}
	return StatusAssigned
}

// ReturnStatus returns the order status after return processing given how
// many units were shipped and how many have come back.
func ReturnStatus(shipped, returned int) string {
	if returned >= shipped && shipped > 0 {
		return StatusReturned
	}
	return StatusPartiallyReturned
}

// ValidStatus reports whether s is a known order status.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}
