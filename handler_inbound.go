package main

import (
	"fmt"
	"net/http"
	"time"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
)

func getInbound(id string) (*models.InboundShipment, error) {
	var s models.InboundShipment
	err := db.QueryRow(`SELECT id, warehouse_id, supplier, status, COALESCE(expected_date,''), notes, created_by, created_at, updated_at
		FROM inbound_shipments WHERE id = ?`, id).
		Scan(&s.ID, &s.WarehouseID, &s.Supplier, &s.Status, &s.ExpectedDate, &s.Notes, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT id, shipment_id, item_number, expected_quantity, received_quantity, putaway_quantity, batch_number, dot_code
		FROM inbound_items WHERE shipment_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it models.InboundItem
		rows.Scan(&it.ID, &it.ShipmentID, &it.ItemNumber, &it.ExpectedQuantity, &it.ReceivedQuantity, &it.PutawayQuantity, &it.BatchNumber, &it.DotCode)
		s.Items = append(s.Items, it)
	}
	return &s, nil
}

func setInboundStatus(id, status string) {
	now := time.Now().Format("2006-01-02 15:04:05")
	db.Exec("UPDATE inbound_shipments SET status = ?, updated_at = ? WHERE id = ?", status, now, id)
}

func handleListInbound(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	where := "warehouse_id = ?"
	args := []interface{}{currentWarehouseID(r)}
	if v := q.Get("status"); v != "" {
		where += " AND status = ?"
		args = append(args, v)
	}
	if v := q.Get("search"); v != "" {
		where += " AND (id LIKE ? OR supplier LIKE ?)"
		like := "%" + v + "%"
		args = append(args, like, like)
	}
	rows, err := db.Query(`SELECT id, warehouse_id, supplier, status, COALESCE(expected_date,''), notes, created_by, created_at, updated_at
		FROM inbound_shipments WHERE `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	shipments := []models.InboundShipment{}
	for rows.Next() {
		var s models.InboundShipment
		rows.Scan(&s.ID, &s.WarehouseID, &s.Supplier, &s.Status, &s.ExpectedDate, &s.Notes, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
		shipments = append(shipments, s)
	}
	jsonResp(w, shipments)
}

type InboundItemRequest struct {
	ItemNumber       string `json:"item_number"`
	ExpectedQuantity int    `json:"expected_quantity"`
	BatchNumber      string `json:"batch_number"`
	DotCode          string `json:"dot_code"`
}

type InboundRequest struct {
	Supplier     string               `json:"supplier"`
	ExpectedDate string               `json:"expected_date"`
	Notes        string               `json:"notes"`
	Items        []InboundItemRequest `json:"items"`
}

func handleCreateInbound(w http.ResponseWriter, r *http.Request) {
	var req InboundRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "supplier", req.Supplier)
	validation.ValidateDate(&ve, "expected_date", req.ExpectedDate)
	if len(req.Items) == 0 {
		ve.Add("items", "at least one item is required")
	}
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		validation.RequireField(&ve, field+".item_number", it.ItemNumber)
		validation.ValidatePositiveInt(&ve, field+".expected_quantity", it.ExpectedQuantity)
		validation.ValidateMaxQuantity(&ve, field+".expected_quantity", it.ExpectedQuantity)
		if it.DotCode != "" {
			validation.ValidateDotCode(&ve, field+".dot_code", it.DotCode)
		}
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	for i, it := range req.Items {
		var exists int
		if err := db.QueryRow("SELECT 1 FROM items WHERE item_number = ?", it.ItemNumber).Scan(&exists); err != nil {
			jsonErr(w, fmt.Sprintf("items[%d]: unknown item %q", i, it.ItemNumber), 400)
			return
		}
	}

	id := nextID("INB", "inbound_shipments", 4)
	username := currentUsername(r)

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO inbound_shipments (id, warehouse_id, supplier, expected_date, notes, created_by)
		VALUES (?,?,?,?,?,?)`,
		id, currentWarehouseID(r), req.Supplier, nullIfEmpty(req.ExpectedDate), req.Notes, username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	for _, it := range req.Items {
		if _, err := tx.Exec(`INSERT INTO inbound_items (shipment_id, item_number, expected_quantity, batch_number, dot_code)
			VALUES (?,?,?,?,?)`, id, it.ItemNumber, it.ExpectedQuantity, it.BatchNumber, it.DotCode); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, username, audit.ActionCreate, "inbound", id, "Created inbound shipment from "+req.Supplier)
	broadcast("inbound", "create", id)

	s, _ := getInbound(id)
	jsonResp(w, s)
}

func handleGetInbound(w http.ResponseWriter, r *http.Request, id string) {
	s, err := getInbound(id)
	if err != nil || s.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	jsonResp(w, s)
}

// ReceiveRequest books arrived stock into a receiving location.
type ReceiveRequest struct {
	InboundItemID int    `json:"inbound_item_id"`
	Quantity      int    `json:"quantity"`
	LocationID    int    `json:"location_id"`
	BatchNumber   string `json:"batch_number"`
	DotCode       string `json:"dot_code"`
}

func handleReceiveInbound(w http.ResponseWriter, r *http.Request, id string) {
	var req ReceiveRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	s, err := getInbound(id)
	if err != nil || s.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	switch s.Status {
	case "Expected", "Arrived", "Receiving":
	default:
		jsonErr(w, "shipment is "+s.Status+" and cannot receive", 409)
		return
	}

	var line *models.InboundItem
	for i := range s.Items {
		if s.Items[i].ID == req.InboundItemID {
			line = &s.Items[i]
		}
	}
	if line == nil {
		jsonErr(w, "inbound item not found on shipment", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.ValidatePositiveInt(&ve, "quantity", req.Quantity)
	validation.ValidateMaxQuantity(&ve, "quantity", req.Quantity)
	if req.LocationID == 0 {
		ve.Add("location_id", "location_id is required")
	}
	if req.DotCode != "" {
		validation.ValidateDotCode(&ve, "dot_code", req.DotCode)
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	// Over-receipt is allowed; short receipts are the common case.
	loc, err := getLocation(req.LocationID)
	if err != nil || loc.WarehouseID != s.WarehouseID {
		jsonErr(w, "location not found", 400)
		return
	}
	if loc.Type != "receiving" {
		jsonErr(w, "stock must be received into a receiving location", 400)
		return
	}
	if !loc.CanHold(req.Quantity) {
		jsonErr(w, "receiving location does not have capacity", 400)
		return
	}

	batch := req.BatchNumber
	if batch == "" {
		batch = line.BatchNumber
	}
	dot := req.DotCode
	if dot == "" {
		dot = line.DotCode
	}

	username := currentUsername(r)
	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if err := addStockTx(tx, s.WarehouseID, line.ItemNumber, req.LocationID, batch, dot, req.Quantity); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("UPDATE inbound_items SET received_quantity = received_quantity + ? WHERE id = ?",
		req.Quantity, req.InboundItemID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := recordMovementTx(tx, s.WarehouseID, line.ItemNumber, "receive", req.Quantity,
		"", loc.Code, batch, dot, id, username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	// Received once every line meets its expected quantity.
	updated, _ := getInbound(id)
	allReceived := true
	for _, it := range updated.Items {
		if it.ReceivedQuantity < it.ExpectedQuantity {
			allReceived = false
		}
	}
	status := "Receiving"
	if allReceived {
		status = "Received"
	}
	setInboundStatus(id, status)
	updated.Status = status

	audit.Log(db, username, audit.ActionUpdate, "inbound", id,
		fmt.Sprintf("Received %d x %s into %s", req.Quantity, line.ItemNumber, loc.Code))
	broadcast("inbound", "update", id)
	jsonResp(w, updated)
}

// PutawayRequest moves received stock from a receiving location to storage.
type PutawayRequest struct {
	InboundItemID  int    `json:"inbound_item_id"`
	Quantity       int    `json:"quantity"`
	FromLocationID int    `json:"from_location_id"`
	ToLocationID   int    `json:"to_location_id"`
	BatchNumber    string `json:"batch_number"`
	DotCode        string `json:"dot_code"`
}

func handlePutaway(w http.ResponseWriter, r *http.Request, id string) {
	var req PutawayRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	s, err := getInbound(id)
	if err != nil || s.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	if s.Status != "Receiving" && s.Status != "Received" {
		jsonErr(w, "shipment is "+s.Status+" and cannot put away", 409)
		return
	}

	var line *models.InboundItem
	for i := range s.Items {
		if s.Items[i].ID == req.InboundItemID {
			line = &s.Items[i]
		}
	}
	if line == nil {
		jsonErr(w, "inbound item not found on shipment", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.ValidatePositiveInt(&ve, "quantity", req.Quantity)
	if req.FromLocationID == 0 || req.ToLocationID == 0 {
		ve.Add("location", "from_location_id and to_location_id are required")
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	if req.Quantity > line.ReceivedQuantity-line.PutawayQuantity {
		jsonErr(w, fmt.Sprintf("only %d received units remain to put away", line.ReceivedQuantity-line.PutawayQuantity), 400)
		return
	}

	batch := req.BatchNumber
	if batch == "" {
		batch = line.BatchNumber
	}
	dot := req.DotCode
	if dot == "" {
		dot = line.DotCode
	}

	var invID, available int
	err = db.QueryRow(`SELECT id, quantity FROM inventory
		WHERE warehouse_id = ? AND item_number = ? AND location_id = ? AND batch_number = ? AND dot_code = ?`,
		s.WarehouseID, line.ItemNumber, req.FromLocationID, batch, dot).Scan(&invID, &available)
	if err != nil || available < req.Quantity {
		jsonErr(w, "not enough stock at the receiving location", 400)
		return
	}
	dest, err := getLocation(req.ToLocationID)
	if err != nil || dest.WarehouseID != s.WarehouseID {
		jsonErr(w, "destination location not found", 400)
		return
	}
	if dest.Type != "storage" {
		jsonErr(w, "stock must be put away into a storage location", 400)
		return
	}
	if !dest.CanHold(req.Quantity) {
		jsonErr(w, "destination location does not have capacity", 400)
		return
	}

	username := currentUsername(r)
	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if err := removeStockTx(tx, invID, req.Quantity); err != nil {
		jsonErr(w, err.Error(), 409)
		return
	}
	if err := addStockTx(tx, s.WarehouseID, line.ItemNumber, req.ToLocationID, batch, dot, req.Quantity); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("UPDATE inbound_items SET putaway_quantity = putaway_quantity + ? WHERE id = ?",
		req.Quantity, req.InboundItemID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	var fromCode string
	tx.QueryRow("SELECT code FROM locations WHERE id = ?", req.FromLocationID).Scan(&fromCode)
	if err := recordMovementTx(tx, s.WarehouseID, line.ItemNumber, "putaway", req.Quantity,
		fromCode, dest.Code, batch, dot, id, username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	updated, _ := getInbound(id)
	if updated.Status == "Received" {
		done := true
		for _, it := range updated.Items {
			if it.PutawayQuantity < it.ReceivedQuantity {
				done = false
			}
		}
		if done {
			setInboundStatus(id, "Put Away")
			updated.Status = "Put Away"
		}
	}

	audit.Log(db, username, audit.ActionUpdate, "inbound", id,
		fmt.Sprintf("Put away %d x %s to %s", req.Quantity, line.ItemNumber, dest.Code))
	broadcast("inbound", "update", id)
	jsonResp(w, updated)
}

func handleCancelInbound(w http.ResponseWriter, r *http.Request, id string) {
	s, err := getInbound(id)
	if err != nil || s.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	if s.Status != "Expected" && s.Status != "Arrived" {
		jsonErr(w, "shipment is "+s.Status+" and cannot be cancelled", 409)
		return
	}
	setInboundStatus(id, "Cancelled")
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "inbound", id, "Cancelled inbound shipment "+id)
	broadcast("inbound", "update", id)
	jsonResp(w, map[string]string{"status": "Cancelled"})
}
