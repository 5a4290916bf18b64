package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
)

// addStockTx adds quantity to the inventory slice, creating the row when it
// does not exist yet.
func addStockTx(tx *sql.Tx, warehouseID int, itemNumber string, locationID int, batchNumber, dotCode string, qty int) error {
	now := time.Now().Format("2006-01-02 15:04:05")
	res, err := tx.Exec(`UPDATE inventory SET quantity = quantity + ?, updated_at = ?
		WHERE warehouse_id = ? AND item_number = ? AND location_id = ? AND batch_number = ? AND dot_code = ?`,
		qty, now, warehouseID, itemNumber, locationID, batchNumber, dotCode)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = tx.Exec(`INSERT INTO inventory (warehouse_id, item_number, location_id, batch_number, dot_code, quantity, updated_at)
			VALUES (?,?,?,?,?,?,?)`,
			warehouseID, itemNumber, locationID, batchNumber, dotCode, qty, now)
	}
	return err
}

// removeStockTx subtracts quantity from an inventory row by id. The CHECK
// constraint rejects the update if it would go negative.
func removeStockTx(tx *sql.Tx, invID, qty int) error {
	now := time.Now().Format("2006-01-02 15:04:05")
	_, err := tx.Exec("UPDATE inventory SET quantity = quantity - ?, updated_at = ? WHERE id = ?", qty, now, invID)
	if err != nil {
		return fmt.Errorf("insufficient stock")
	}
	return nil
}

func recordMovementTx(tx *sql.Tx, warehouseID int, itemNumber, movType string, qty int, fromLoc, toLoc, batch, dot, reference, username string) error {
	_, err := tx.Exec(`INSERT INTO inventory_movements (warehouse_id, item_number, type, quantity, from_location, to_location, batch_number, dot_code, reference, created_by)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		warehouseID, itemNumber, movType, qty, fromLoc, toLoc, batch, dot, reference, username)
	return err
}

func recordMovement(warehouseID int, itemNumber, movType string, qty int, fromLoc, toLoc, batch, dot, reference, username string) {
	db.Exec(`INSERT INTO inventory_movements (warehouse_id, item_number, type, quantity, from_location, to_location, batch_number, dot_code, reference, created_by)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		warehouseID, itemNumber, movType, qty, fromLoc, toLoc, batch, dot, reference, username)
}

func handleListInventory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	where := "i.warehouse_id = ? AND i.quantity > 0"
	args := []interface{}{currentWarehouseID(r)}
	if v := q.Get("item"); v != "" {
		where += " AND i.item_number = ?"
		args = append(args, v)
	}
	if v := q.Get("location"); v != "" {
		where += " AND l.code = ?"
		args = append(args, v)
	}
	if v := q.Get("dot"); v != "" {
		where += " AND i.dot_code = ?"
		args = append(args, v)
	}
	if v := q.Get("search"); v != "" {
		where += " AND (i.item_number LIKE ? OR i.batch_number LIKE ? OR l.code LIKE ?)"
		like := "%" + v + "%"
		args = append(args, like, like, like)
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var total int
	db.QueryRow("SELECT COUNT(*) FROM inventory i JOIN locations l ON l.id = i.location_id WHERE "+where, args...).Scan(&total)

	args = append(args, limit, (page-1)*limit)
	rows, err := db.Query(`SELECT i.id, i.warehouse_id, i.item_number, i.location_id, l.code, i.batch_number, i.dot_code, i.quantity, i.updated_at
		FROM inventory i JOIN locations l ON l.id = i.location_id
		WHERE `+where+` ORDER BY i.item_number, l.code, i.dot_code LIMIT ? OFFSET ?`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	records := []models.InventoryRecord{}
	for rows.Next() {
		var rec models.InventoryRecord
		rows.Scan(&rec.ID, &rec.WarehouseID, &rec.ItemNumber, &rec.LocationID, &rec.LocationCode,
			&rec.BatchNumber, &rec.DotCode, &rec.Quantity, &rec.UpdatedAt)
		records = append(records, rec)
	}
	jsonRespMeta(w, records, total, page, limit)
}

// AdjustRequest corrects the on-hand quantity of one inventory slice.
type AdjustRequest struct {
	ItemNumber  string `json:"item_number"`
	LocationID  int    `json:"location_id"`
	BatchNumber string `json:"batch_number"`
	DotCode     string `json:"dot_code"`
	NewQuantity int    `json:"new_quantity"`
	Reason      string `json:"reason"`
}

func handleAdjustInventory(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "item_number", req.ItemNumber)
	validation.RequireField(&ve, "reason", req.Reason)
	validation.ValidateNonNegativeInt(&ve, "new_quantity", req.NewQuantity)
	validation.ValidateMaxQuantity(&ve, "new_quantity", req.NewQuantity)
	if req.LocationID == 0 {
		ve.Add("location_id", "location_id is required")
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	warehouseID := currentWarehouseID(r)
	var current int
	err := db.QueryRow(`SELECT quantity FROM inventory
		WHERE warehouse_id = ? AND item_number = ? AND location_id = ? AND batch_number = ? AND dot_code = ?`,
		warehouseID, req.ItemNumber, req.LocationID, req.BatchNumber, req.DotCode).Scan(&current)
	if err == sql.ErrNoRows {
		current = 0
	} else if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if req.NewQuantity == current {
		jsonErr(w, "new quantity equals the current quantity", 400)
		return
	}

	if req.NewQuantity > current {
		loc, err := getLocation(req.LocationID)
		if err != nil || loc.WarehouseID != warehouseID {
			jsonErr(w, "location not found", 400)
			return
		}
		if !loc.CanHold(req.NewQuantity - current) {
			jsonErr(w, "location does not have capacity for the adjustment", 400)
			return
		}
	}

	username := currentUsername(r)
	now := time.Now().Format("2006-01-02 15:04:05")
	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if current == 0 {
		if err := addStockTx(tx, warehouseID, req.ItemNumber, req.LocationID, req.BatchNumber, req.DotCode, req.NewQuantity); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	} else {
		if _, err := tx.Exec(`UPDATE inventory SET quantity = ?, updated_at = ?
			WHERE warehouse_id = ? AND item_number = ? AND location_id = ? AND batch_number = ? AND dot_code = ?`,
			req.NewQuantity, now, warehouseID, req.ItemNumber, req.LocationID, req.BatchNumber, req.DotCode); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	var locCode string
	tx.QueryRow("SELECT code FROM locations WHERE id = ?", req.LocationID).Scan(&locCode)
	delta := req.NewQuantity - current
	if _, err := tx.Exec(`INSERT INTO inventory_movements (warehouse_id, item_number, type, quantity, from_location, to_location, batch_number, dot_code, notes, created_by)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		warehouseID, req.ItemNumber, "adjust", delta, locCode, locCode, req.BatchNumber, req.DotCode, req.Reason, username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, username, audit.ActionUpdate, "inventory", req.ItemNumber,
		fmt.Sprintf("Adjusted %s at %s from %d to %d: %s", req.ItemNumber, locCode, current, req.NewQuantity, req.Reason))
	broadcast("inventory", "update", req.ItemNumber)
	jsonResp(w, map[string]interface{}{"item_number": req.ItemNumber, "quantity": req.NewQuantity, "delta": delta})
}

// MoveRequest moves stock between two locations in the same warehouse.
type MoveRequest struct {
	ItemNumber     string `json:"item_number"`
	FromLocationID int    `json:"from_location_id"`
	ToLocationID   int    `json:"to_location_id"`
	BatchNumber    string `json:"batch_number"`
	DotCode        string `json:"dot_code"`
	Quantity       int    `json:"quantity"`
}

func handleTransferInventory(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "item_number", req.ItemNumber)
	validation.ValidatePositiveInt(&ve, "quantity", req.Quantity)
	validation.ValidateMaxQuantity(&ve, "quantity", req.Quantity)
	if req.FromLocationID == 0 || req.ToLocationID == 0 {
		ve.Add("location", "from_location_id and to_location_id are required")
	}
	if req.FromLocationID == req.ToLocationID {
		ve.Add("location", "source and destination are the same location")
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	warehouseID := currentWarehouseID(r)
	var invID, available int
	err := db.QueryRow(`SELECT id, quantity FROM inventory
		WHERE warehouse_id = ? AND item_number = ? AND location_id = ? AND batch_number = ? AND dot_code = ?`,
		warehouseID, req.ItemNumber, req.FromLocationID, req.BatchNumber, req.DotCode).Scan(&invID, &available)
	if err != nil {
		jsonErr(w, "no stock at the source location", 400)
		return
	}
	if req.Quantity > available {
		jsonErr(w, fmt.Sprintf("only %d available at the source location", available), 400)
		return
	}
	dest, err := getLocation(req.ToLocationID)
	if err != nil || dest.WarehouseID != warehouseID {
		jsonErr(w, "destination location not found", 400)
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
	if err := addStockTx(tx, warehouseID, req.ItemNumber, req.ToLocationID, req.BatchNumber, req.DotCode, req.Quantity); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	var fromCode string
	tx.QueryRow("SELECT code FROM locations WHERE id = ?", req.FromLocationID).Scan(&fromCode)
	if err := recordMovementTx(tx, warehouseID, req.ItemNumber, "transfer", req.Quantity,
		fromCode, dest.Code, req.BatchNumber, req.DotCode, "", username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, username, audit.ActionUpdate, "inventory", req.ItemNumber,
		fmt.Sprintf("Moved %d x %s from %s to %s", req.Quantity, req.ItemNumber, fromCode, dest.Code))
	broadcast("inventory", "update", req.ItemNumber)
	jsonResp(w, map[string]interface{}{"item_number": req.ItemNumber, "quantity": req.Quantity, "to_location": dest.Code})
}

func handleInventoryHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	where := "warehouse_id = ?"
	args := []interface{}{currentWarehouseID(r)}
	if v := q.Get("item"); v != "" {
		where += " AND item_number = ?"
		args = append(args, v)
	}
	if v := q.Get("type"); v != "" {
		where += " AND type = ?"
		args = append(args, v)
	}
	if v := q.Get("reference"); v != "" {
		where += " AND reference = ?"
		args = append(args, v)
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := db.Query(`SELECT id, warehouse_id, item_number, type, quantity, from_location, to_location,
		batch_number, dot_code, reference, notes, created_by, created_at
		FROM inventory_movements WHERE `+where+` ORDER BY id DESC LIMIT ?`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	movements := []models.InventoryMovement{}
	for rows.Next() {
		var m models.InventoryMovement
		rows.Scan(&m.ID, &m.WarehouseID, &m.ItemNumber, &m.Type, &m.Quantity, &m.FromLocation, &m.ToLocation,
			&m.BatchNumber, &m.DotCode, &m.Reference, &m.Notes, &m.CreatedBy, &m.CreatedAt)
		movements = append(movements, m)
	}
	jsonResp(w, movements)
}
