package validation

// Common enum values - these MUST match DB CHECK constraints in db.go.
var (
	ValidOrderStatuses = []string{
		"New", "Pending Pick", "Partially Picked", "Picked", "Staged",
		"Ready for Pickup", "Assigned", "Out for Delivery", "Delivery Failed",
		"Delivered", "Shipped", "Cancelled", "Returned", "Partially Returned",
		"Scrapped",
	}
	ValidOrderTypes        = []string{"Customer", "Transfer", "Scrap"}
	ValidInboundStatuses   = []string{"Expected", "Arrived", "Receiving", "Received", "Put Away", "Cancelled"}
	ValidReturnStatuses    = []string{"Created", "Receiving", "Processed", "Cancelled"}
	ValidReturnConditions  = []string{"good", "damaged"}
	ValidTransferStatuses  = []string{"Draft", "Shipped", "Received", "Cancelled"}
	ValidLocationTypes     = []string{"receiving", "storage", "staging", "shipping"}
	ValidMovementTypes     = []string{"receive", "putaway", "adjust", "transfer", "pick", "unpick", "stage", "return", "scrap"}
	ValidAssignmentTypes   = []string{"in_house", "third_party"}
	ValidWarehouseRoles    = []string{"admin", "manager", "operator", "driver", "viewer"}
	ValidAssignmentStates  = []string{"active", "replaced"}
)
