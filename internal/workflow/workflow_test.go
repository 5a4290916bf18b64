package workflow

import (
	"reflect"
	"testing"
)

func adminState(status string) OrderState {
	return OrderState{Status: status, OrderType: TypeCustomer, Role: RoleAdmin}
}

func TestAllowedIsPureAndStable(t *testing.T) {
	for _, status := range Statuses {
		st := adminState(status)
		first := Allowed(st)
		for i := 0; i < 5; i++ {
			if got := Allowed(st); !reflect.DeepEqual(got, first) {
				t.Fatalf("Allowed(%q) not stable: %v vs %v", status, got, first)
			}
		}
	}
}

func TestAllowedNeverNil(t *testing.T) {
	st := OrderState{Status: StatusScrapped, OrderType: TypeCustomer, Role: RoleViewer}
	if got := Allowed(st); got == nil {
		t.Fatal("Allowed returned nil for a state with no actions")
	}
}

func TestPickedCustomerOrderActions(t *testing.T) {
	st := OrderState{Status: StatusPicked, OrderType: TypeCustomer, Role: RoleAdmin, FullyPicked: true}
	if !Can(ActionStage, st) {
		t.Error("stage should be available for a picked customer order")
	}
	if Can(ActionScrap, st) {
		t.Error("scrap should be hidden for a customer order")
	}
	if Can(ActionAssignDriver, st) {
		t.Error("assign driver should not be available before staging")
	}
	if Can(ActionPick, st) {
		t.Error("pick should be hidden once fully picked")
	}
}

func TestPickedScrapOrderActions(t *testing.T) {
	st := OrderState{Status: StatusPicked, OrderType: TypeScrap, Role: RoleAdmin, FullyPicked: true}
	if !Can(ActionScrap, st) {
		t.Error("scrap should be available for a picked scrap order")
	}
	if Can(ActionStage, st) {
		t.Error("stage should be hidden for a scrap order")
	}
}

func TestStagedOrderDriverActions(t *testing.T) {
	st := OrderState{Status: StatusStaged, OrderType: TypeCustomer, Role: RoleAdmin}
	if !Can(ActionAssignDriver, st) {
		t.Error("assign driver should be available for a staged order without a driver")
	}
	if Can(ActionChangeDriver, st) {
		t.Error("change driver should be hidden without an assignment")
	}

	st.DriverAssigned = true
	if Can(ActionAssignDriver, st) {
		t.Error("assign driver should be hidden once a driver is assigned")
	}
}

func TestAssignedOrderChangeDriver(t *testing.T) {
	st := OrderState{Status: StatusAssigned, OrderType: TypeCustomer, Role: RoleAdmin, DriverAssigned: true}
	if !Can(ActionChangeDriver, st) {
		t.Error("change driver should be available for an assigned order")
	}
	if !Can(ActionOutForDelivery, st) {
		t.Error("out for delivery should be available for an assigned order")
	}
}

func TestDeliveryActionsRequireDriver(t *testing.T) {
	st := OrderState{Status: StatusOutForDelivery, OrderType: TypeCustomer, Role: RoleAdmin}
	if Can(ActionDeliver, st) {
		t.Error("deliver should require an assigned driver")
	}
	st.DriverAssigned = true
	if !Can(ActionDeliver, st) {
		t.Error("deliver should be available out for delivery with a driver")
	}
	if !Can(ActionFailDelivery, st) {
		t.Error("fail delivery should be available out for delivery with a driver")
	}
}

func TestRoleRestrictions(t *testing.T) {
	base := OrderState{Status: StatusPendingPick, OrderType: TypeCustomer}

	base.Role = RoleViewer
	if got := Allowed(base); len(got) != 0 {
		t.Errorf("viewer should have no actions, got %v", got)
	}

	base.Role = RoleOperator
	if !Can(ActionPick, base) {
		t.Error("operator should be able to pick")
	}
	if Can(ActionCancel, base) {
		t.Error("operator should not be able to cancel")
	}

	driverState := OrderState{Status: StatusAssigned, OrderType: TypeCustomer, Role: RoleDriver, DriverAssigned: true}
	if !Can(ActionOutForDelivery, driverState) {
		t.Error("driver should be able to start delivery")
	}
	if Can(ActionAssignDriver, driverState) {
		t.Error("driver should not assign drivers")
	}
}

func TestCancelBoundaries(t *testing.T) {
	cancellable := []string{StatusNew, StatusPendingPick, StatusPartiallyPicked, StatusPicked, StatusStaged, StatusShipped}
	for _, status := range cancellable {
		if !Can(ActionCancel, adminState(status)) {
			t.Errorf("cancel should be available while %q", status)
		}
	}
	terminal := []string{StatusDelivered, StatusCancelled, StatusReturned, StatusPartiallyReturned, StatusScrapped}
	for _, status := range terminal {
		if Can(ActionCancel, adminState(status)) {
			t.Errorf("cancel should not be available while %q", status)
		}
	}
}

func TestApplyTransitions(t *testing.T) {
	cases := []struct {
		action string
		st     OrderState
		want   string
	}{
		{ActionPick, OrderState{Status: StatusPendingPick, OrderType: TypeCustomer, Role: RoleAdmin}, StatusPartiallyPicked},
		{ActionPick, OrderState{Status: StatusPartiallyPicked, OrderType: TypeCustomer, Role: RoleAdmin, FullyPicked: true}, StatusPicked},
		{ActionStage, OrderState{Status: StatusPicked, OrderType: TypeCustomer, Role: RoleAdmin, FullyPicked: true}, StatusStaged},
		{ActionScrap, OrderState{Status: StatusPicked, OrderType: TypeScrap, Role: RoleAdmin, FullyPicked: true}, StatusScrapped},
		{ActionShip, OrderState{Status: StatusStaged, OrderType: TypeTransfer, Role: RoleAdmin}, StatusShipped},
		{ActionOutForDelivery, OrderState{Status: StatusAssigned, OrderType: TypeCustomer, Role: RoleAdmin, DriverAssigned: true}, StatusOutForDelivery},
		{ActionDeliver, OrderState{Status: StatusOutForDelivery, OrderType: TypeCustomer, Role: RoleAdmin, DriverAssigned: true}, StatusDelivered},
		{ActionFailDelivery, OrderState{Status: StatusOutForDelivery, OrderType: TypeCustomer, Role: RoleAdmin, DriverAssigned: true}, StatusDeliveryFailed},
		{ActionCancel, OrderState{Status: StatusStaged, OrderType: TypeCustomer, Role: RoleAdmin}, StatusCancelled},
	}
	for _, c := range cases {
		got, err := Apply(c.action, c.st)
		if err != nil {
			t.Errorf("Apply(%s, %s): %v", c.action, c.st.Status, err)
			continue
		}
		if got != c.want {
			t.Errorf("Apply(%s, %s) = %q, want %q", c.action, c.st.Status, got, c.want)
		}
	}
}

func TestApplyRejectsBadTransitions(t *testing.T) {
	cases := []struct {
		action string
		st     OrderState
	}{
		{ActionStage, adminState(StatusNew)},
		{ActionShip, adminState(StatusPendingPick)},
		{ActionDeliver, adminState(StatusStaged)},
		{ActionCancel, adminState(StatusDelivered)},
		{ActionScrap, OrderState{Status: StatusPicked, OrderType: TypeCustomer, Role: RoleAdmin}},
	}
	for _, c := range cases {
		if _, err := Apply(c.action, c.st); err == nil {
			t.Errorf("Apply(%s, %s) should fail", c.action, c.st.Status)
		}
	}
}

func TestAssignmentStatus(t *testing.T) {
	if got := AssignmentStatus("in_house"); got != StatusAssigned {
		t.Errorf("in_house assignment = %q, want %q", got, StatusAssigned)
	}
	if got := AssignmentStatus("third_party"); got != StatusReadyForPickup {
		t.Errorf("third_party assignment = %q, want %q", got, StatusReadyForPickup)
	}
}

func TestReturnStatus(t *testing.T) {
	if got := ReturnStatus(10, 10); got != StatusReturned {
		t.Errorf("full return = %q, want %q", got, StatusReturned)
	}
	if got := ReturnStatus(10, 4); got != StatusPartiallyReturned {
		t.Errorf("partial return = %q, want %q", got, StatusPartiallyReturned)
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range Statuses {
		if !ValidStatus(s) {
			t.Errorf("%q should be a valid status", s)
		}
	}
	if ValidStatus("In Transit") {
		t.Error("unknown status should not validate")
	}
}
