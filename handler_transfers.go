package main

import (
	"fmt"
	"net/http"
	"time"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
)

func getTransfer(id string) (*models.TransferOrder, error) {
	var t models.TransferOrder
	err := db.QueryRow(`SELECT id, from_warehouse_id, to_warehouse_id, status, notes, created_by, created_at, updated_at
		FROM transfer_orders WHERE id = ?`, id).
		Scan(&t.ID, &t.FromWarehouseID, &t.ToWarehouseID, &t.Status, &t.Notes, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT id, transfer_id, item_number, quantity, batch_number, dot_code
		FROM transfer_items WHERE transfer_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it models.TransferItem
		rows.Scan(&it.ID, &it.TransferID, &it.ItemNumber, &it.Quantity, &it.BatchNumber, &it.DotCode)
		t.Items = append(t.Items, it)
	}
	return &t, nil
}

func handleListTransfers(w http.ResponseWriter, r *http.Request) {
	warehouseID := currentWarehouseID(r)
	where := "(from_warehouse_id = ? OR to_warehouse_id = ?)"
	args := []interface{}{warehouseID, warehouseID}
	if v := r.URL.Query().Get("status"); v != "" {
		where += " AND status = ?"
		args = append(args, v)
	}
	rows, err := db.Query(`SELECT id, from_warehouse_id, to_warehouse_id, status, notes, created_by, created_at, updated_at
		FROM transfer_orders WHERE `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	transfers := []models.TransferOrder{}
	for rows.Next() {
		var t models.TransferOrder
		rows.Scan(&t.ID, &t.FromWarehouseID, &t.ToWarehouseID, &t.Status, &t.Notes, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
		transfers = append(transfers, t)
	}
	jsonResp(w, transfers)
}

type TransferItemRequest struct {
	ItemNumber  string `json:"item_number"`
	Quantity    int    `json:"quantity"`
	BatchNumber string `json:"batch_number"`
	DotCode     string `json:"dot_code"`
}

type TransferRequest struct {
	ToWarehouseID int                   `json:"to_warehouse_id"`
	Notes         string                `json:"notes"`
	Items         []TransferItemRequest `json:"items"`
}

func handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	fromWarehouse := currentWarehouseID(r)

	var ve validation.ValidationErrors
	if req.ToWarehouseID == 0 {
		ve.Add("to_warehouse_id", "to_warehouse_id is required")
	}
	if req.ToWarehouseID == fromWarehouse {
		ve.Add("to_warehouse_id", "source and destination warehouses are the same")
	}
	if len(req.Items) == 0 {
		ve.Add("items", "at least one item is required")
	}
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		validation.RequireField(&ve, field+".item_number", it.ItemNumber)
		validation.ValidatePositiveInt(&ve, field+".quantity", it.Quantity)
		validation.ValidateMaxQuantity(&ve, field+".quantity", it.Quantity)
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	var exists int
	if err := db.QueryRow("SELECT 1 FROM warehouses WHERE id = ?", req.ToWarehouseID).Scan(&exists); err != nil {
		jsonErr(w, "destination warehouse not found", 400)
		return
	}

	id := nextID("TRF", "transfer_orders", 4)
	username := currentUsername(r)

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO transfer_orders (id, from_warehouse_id, to_warehouse_id, notes, created_by)
		VALUES (?,?,?,?,?)`, id, fromWarehouse, req.ToWarehouseID, req.Notes, username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	for _, it := range req.Items {
		if _, err := tx.Exec(`INSERT INTO transfer_items (transfer_id, item_number, quantity, batch_number, dot_code)
			VALUES (?,?,?,?,?)`, id, it.ItemNumber, it.Quantity, it.BatchNumber, it.DotCode); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, username, audit.ActionCreate, "transfers", id, "Created warehouse transfer "+id)
	broadcast("transfer", "create", id)

	t, _ := getTransfer(id)
	jsonResp(w, t)
}

func handleGetTransfer(w http.ResponseWriter, r *http.Request, id string) {
	t, err := getTransfer(id)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	warehouseID := currentWarehouseID(r)
	if t.FromWarehouseID != warehouseID && t.ToWarehouseID != warehouseID {
		jsonErr(w, "not found", 404)
		return
	}
	jsonResp(w, t)
}

// handleShipTransfer pulls the requested stock out of the source warehouse.
// Stock is taken from whichever locations hold the slice, largest first.
func handleShipTransfer(w http.ResponseWriter, r *http.Request, id string) {
	t, err := getTransfer(id)
	if err != nil || t.FromWarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	if t.Status != "Draft" {
		jsonErr(w, "transfer is "+t.Status+" and cannot ship", 409)
		return
	}

	username := currentUsername(r)
	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	for _, it := range t.Items {
		remaining := it.Quantity
		rows, err := tx.Query(`SELECT i.id, i.quantity, l.code FROM inventory i
			JOIN locations l ON l.id = i.location_id
			WHERE i.warehouse_id = ? AND i.item_number = ? AND i.batch_number = ? AND i.dot_code = ? AND i.quantity > 0
			ORDER BY i.quantity DESC`, t.FromWarehouseID, it.ItemNumber, it.BatchNumber, it.DotCode)
		if err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
		type slice struct {
			id, qty int
			code    string
		}
		var slices []slice
		for rows.Next() {
			var s slice
			rows.Scan(&s.id, &s.qty, &s.code)
			slices = append(slices, s)
		}
		rows.Close()

		for _, s := range slices {
			if remaining == 0 {
				break
			}
			take := remaining
			if take > s.qty {
				take = s.qty
			}
			if err := removeStockTx(tx, s.id, take); err != nil {
				jsonErr(w, err.Error(), 409)
				return
			}
			if err := recordMovementTx(tx, t.FromWarehouseID, it.ItemNumber, "transfer", take,
				s.code, "", it.BatchNumber, it.DotCode, id, username); err != nil {
				jsonErr(w, err.Error(), 500)
				return
			}
			remaining -= take
		}
		if remaining > 0 {
			jsonErr(w, fmt.Sprintf("not enough stock of %s: short %d units", it.ItemNumber, remaining), 400)
			return
		}
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := tx.Exec("UPDATE transfer_orders SET status = 'Shipped', updated_at = ? WHERE id = ?", now, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, username, audit.ActionUpdate, "transfers", id, "Shipped warehouse transfer "+id)
	broadcast("transfer", "update", id)
	jsonResp(w, map[string]string{"status": "Shipped"})
}

// ReceiveTransferRequest books the transferred stock into a receiving
// location of the destination warehouse.
type ReceiveTransferRequest struct {
	LocationID int `json:"location_id"`
}

func handleReceiveTransfer(w http.ResponseWriter, r *http.Request, id string) {
	var req ReceiveTransferRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	t, err := getTransfer(id)
	if err != nil || t.ToWarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	if t.Status != "Shipped" {
		jsonErr(w, "transfer is "+t.Status+" and cannot be received", 409)
		return
	}
	loc, err := getLocation(req.LocationID)
	if err != nil || loc.WarehouseID != t.ToWarehouseID {
		jsonErr(w, "location not found", 400)
		return
	}
	if loc.Type != "receiving" {
		jsonErr(w, "stock must be received into a receiving location", 400)
		return
	}
	totalUnits := 0
	for _, it := range t.Items {
		totalUnits += it.Quantity
	}
	if !loc.CanHold(totalUnits) {
		jsonErr(w, "receiving location does not have capacity", 400)
		return
	}

	username := currentUsername(r)
	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	for _, it := range t.Items {
		if err := addStockTx(tx, t.ToWarehouseID, it.ItemNumber, req.LocationID, it.BatchNumber, it.DotCode, it.Quantity); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
		if err := recordMovementTx(tx, t.ToWarehouseID, it.ItemNumber, "transfer", it.Quantity,
			"", loc.Code, it.BatchNumber, it.DotCode, id, username); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := tx.Exec("UPDATE transfer_orders SET status = 'Received', updated_at = ? WHERE id = ?", now, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, username, audit.ActionUpdate, "transfers", id, "Received warehouse transfer "+id)
	broadcast("transfer", "update", id)
	jsonResp(w, map[string]string{"status": "Received"})
}

func handleCancelTransfer(w http.ResponseWriter, r *http.Request, id string) {
	t, err := getTransfer(id)
	if err != nil || t.FromWarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	if t.Status != "Draft" {
		jsonErr(w, "transfer is "+t.Status+" and cannot be cancelled", 409)
		return
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := db.Exec("UPDATE transfer_orders SET status = 'Cancelled', updated_at = ? WHERE id = ?", now, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "transfers", id, "Cancelled warehouse transfer "+id)
	broadcast("transfer", "update", id)
	jsonResp(w, map[string]string{"status": "Cancelled"})
}
