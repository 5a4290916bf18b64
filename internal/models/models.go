package models

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

type Warehouse struct {
	ID        int    `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
}

type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      bool   `json:"active"`
	LastLogin   string `json:"last_login,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// WarehouseRole is a user's role within one warehouse.
type WarehouseRole struct {
	WarehouseID   int    `json:"warehouse_id"`
	WarehouseCode string `json:"warehouse_code"`
	WarehouseName string `json:"warehouse_name"`
	Role          string `json:"role"`
}

type Customer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Notes        string `json:"notes"`
	CreatedAt    string `json:"created_at"`
}

type Item struct {
	ItemNumber  string `json:"item_number"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Unit        string `json:"unit"`
	Barcode     string `json:"barcode"`
	CreatedAt   string `json:"created_at"`
}

// Location is a storage slot within a warehouse. MaxCapacityUnits is nil when
// the capacity was never configured — the capacity view must report "not set"
// rather than zero.
type Location struct {
	ID               int    `json:"id"`
	WarehouseID      int    `json:"warehouse_id"`
	Code             string `json:"code"`
	Type             string `json:"type"`
	MaxCapacityUnits *int   `json:"max_capacity_units"`
	OccupiedUnits    int    `json:"occupied_units"`
	AvailableUnits   *int   `json:"available_units"`
	CreatedAt        string `json:"created_at"`
}

// Available computes max - occupied, or nil when max capacity is unset.
func (l *Location) Available() *int {
	if l.MaxCapacityUnits == nil {
		return nil
	}
	a := *l.MaxCapacityUnits - l.OccupiedUnits
	return &a
}

// CanHold reports whether qty more units fit. Unset capacity rejects any
// positive quantity (the capacity badge reads "not set" and the option is
// disabled once a quantity is entered).
func (l *Location) CanHold(qty int) bool {
	if qty <= 0 {
		return false
	}
	a := l.Available()
	if a == nil {
		return false
	}
	return qty <= *a
}

// InventoryRecord is one stock slice: item at a location, keyed further by
// batch and DOT production code.
type InventoryRecord struct {
	ID           int    `json:"id"`
	WarehouseID  int    `json:"warehouse_id"`
	ItemNumber   string `json:"item_number"`
	LocationID   int    `json:"location_id"`
	LocationCode string `json:"location_code"`
	BatchNumber  string `json:"batch_number"`
	DotCode      string `json:"dot_code"`
	Quantity     int    `json:"quantity"`
	UpdatedAt    string `json:"updated_at"`
}

type InventoryMovement struct {
	ID           int    `json:"id"`
	WarehouseID  int    `json:"warehouse_id"`
	ItemNumber   string `json:"item_number"`
	Type         string `json:"type"`
	Quantity     int    `json:"quantity"`
	FromLocation string `json:"from_location"`
	ToLocation   string `json:"to_location"`
	BatchNumber  string `json:"batch_number"`
	DotCode      string `json:"dot_code"`
	Reference    string `json:"reference"`
	Notes        string `json:"notes"`
	CreatedBy    string `json:"created_by"`
	CreatedAt    string `json:"created_at"`
}

type InboundShipment struct {
	ID           string        `json:"id"`
	WarehouseID  int           `json:"warehouse_id"`
	Supplier     string        `json:"supplier"`
	Status       string        `json:"status"`
	ExpectedDate string        `json:"expected_date"`
	Notes        string        `json:"notes"`
	CreatedBy    string        `json:"created_by"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
	Items        []InboundItem `json:"items,omitempty"`
}

type InboundItem struct {
	ID               int    `json:"id"`
	ShipmentID       string `json:"shipment_id"`
	ItemNumber       string `json:"item_number"`
	ExpectedQuantity int    `json:"expected_quantity"`
	ReceivedQuantity int    `json:"received_quantity"`
	PutawayQuantity  int    `json:"putaway_quantity"`
	BatchNumber      string `json:"batch_number"`
	DotCode          string `json:"dot_code"`
}

type OutboundOrder struct {
	ID                string         `json:"id"`
	WarehouseID       int            `json:"warehouse_id"`
	CustomerID        string         `json:"customer_id"`
	CustomerName      string         `json:"customer_name,omitempty"`
	OrderType         string         `json:"order_type"`
	Status            string         `json:"status"`
	RequiredDate      string         `json:"required_date"`
	StagingLocationID *int           `json:"staging_location_id"`
	TrackingNumber    string         `json:"tracking_number,omitempty"`
	Notes             string         `json:"notes"`
	CreatedBy         string         `json:"created_by"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
	Items             []OutboundItem `json:"items,omitempty"`
	Assignment        *Assignment    `json:"assignment,omitempty"`
	AllowedActions    []string       `json:"allowed_actions,omitempty"`
}

type OutboundItem struct {
	ID              int    `json:"outbound_item_id"`
	OrderID         string `json:"order_id"`
	ItemNumber      string `json:"item_number"`
	OrderedQuantity int    `json:"ordered_quantity"`
	PickedQuantity  int    `json:"picked_quantity"`
	Picks           []Pick `json:"picks"`
}

// Remaining is the quantity still to pick for this line.
func (i *OutboundItem) Remaining() int {
	return i.OrderedQuantity - i.PickedQuantity
}

type Pick struct {
	ID             int    `json:"id"`
	OutboundItemID int    `json:"outbound_item_id"`
	LocationID     int    `json:"location_id"`
	LocationCode   string `json:"location_code"`
	BatchNumber    string `json:"batch_number"`
	DotCode        string `json:"dot_code"`
	PickedQuantity int    `json:"picked_quantity"`
	PickedBy       string `json:"picked_by"`
	CreatedAt      string `json:"created_at"`
}

// Assignment records who is delivering an order: an in-house driver or a
// third-party delivery company with its own crew.
type Assignment struct {
	ID             int                `json:"id"`
	OrderID        string             `json:"order_id"`
	Type           string             `json:"type"`
	DriverID       *int               `json:"driver_id"`
	DriverName     string             `json:"driver_name,omitempty"`
	CompanyID      *int               `json:"company_id"`
	CompanyName    string             `json:"company_name,omitempty"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
	Status         string             `json:"status"`
	CreatedAt      string             `json:"created_at"`
	Drivers        []AssignmentDriver `json:"drivers,omitempty"`
}

// AssignmentDriver is one crew member of a third-party assignment.
type AssignmentDriver struct {
	ID            int    `json:"id"`
	AssignmentID  int    `json:"assignment_id"`
	Name          string `json:"name"`
	Mobile        string `json:"mobile"`
	WaybillNumber string `json:"waybill_number"`
	IDFile        string `json:"id_file"`
	LicenseFile   string `json:"license_file"`
}

type Driver struct {
	ID            int    `json:"id"`
	WarehouseID   int    `json:"warehouse_id"`
	Name          string `json:"name"`
	Mobile        string `json:"mobile"`
	LicenseNumber string `json:"license_number"`
	Active        bool   `json:"active"`
	CreatedAt     string `json:"created_at"`
}

type DeliveryCompany struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
}

type ReturnOrder struct {
	ID        string       `json:"id"`
	OrderID   string       `json:"order_id"`
	Status    string       `json:"status"`
	Reason    string       `json:"reason"`
	CreatedBy string       `json:"created_by"`
	CreatedAt string       `json:"created_at"`
	UpdatedAt string       `json:"updated_at"`
	Items     []ReturnItem `json:"items,omitempty"`
}

type ReturnItem struct {
	ID                int    `json:"id"`
	ReturnID          string `json:"return_id"`
	OutboundItemID    int    `json:"outbound_item_id"`
	ItemNumber        string `json:"item_number"`
	Quantity          int    `json:"quantity"`
	Condition         string `json:"condition"`
	RestockLocationID *int   `json:"restock_location_id"`
	Processed         bool   `json:"processed"`
}

type TransferOrder struct {
	ID              string         `json:"id"`
	FromWarehouseID int            `json:"from_warehouse_id"`
	ToWarehouseID   int            `json:"to_warehouse_id"`
	Status          string         `json:"status"`
	Notes           string         `json:"notes"`
	CreatedBy       string         `json:"created_by"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	Items           []TransferItem `json:"items,omitempty"`
}

type TransferItem struct {
	ID          int    `json:"id"`
	TransferID  string `json:"transfer_id"`
	ItemNumber  string `json:"item_number"`
	Quantity    int    `json:"quantity"`
	BatchNumber string `json:"batch_number"`
	DotCode     string `json:"dot_code"`
}

type AuditEntry struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}
