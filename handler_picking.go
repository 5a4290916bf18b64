package main

import (
	"net/http"
	"strconv"
	"time"

	"wms/internal/audit"
	"wms/internal/cascade"
	"wms/internal/workflow"
)

// PickRequest is one pick entry: the narrowed inventory slice plus quantity.
type PickRequest struct {
	OutboundItemID int    `json:"outbound_item_id"`
	DotCode        string `json:"dot_code"`
	LocationID     int    `json:"location_id"`
	BatchNumber    string `json:"batch_number"`
	Quantity       int    `json:"quantity"`
}

func handlePick(w http.ResponseWriter, r *http.Request, orderID string) {
	var req PickRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}

	o, err := getOrder(orderID)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	st := orderState(o, currentRole(r))
	if !workflow.Can(workflow.ActionPick, st) {
		jsonErr(w, (&workflow.TransitionError{Action: workflow.ActionPick, Status: o.Status}).Error(), 409)
		return
	}

	var item *PickTarget
	for i := range o.Items {
		if o.Items[i].ID == req.OutboundItemID {
			item = &PickTarget{
				OutboundItemID: o.Items[i].ID,
				ItemNumber:     o.Items[i].ItemNumber,
				Remaining:      o.Items[i].Remaining(),
			}
			break
		}
	}
	if item == nil {
		jsonErr(w, "outbound item not found on order", 400)
		return
	}

	sel := cascade.Selection{
		ItemNumber:  item.ItemNumber,
		DotCode:     req.DotCode,
		LocationID:  req.LocationID,
		BatchNumber: req.BatchNumber,
	}
	if !sel.Complete() {
		jsonErr(w, "pick entry incomplete: item, DOT code, location and batch are all required", 400)
		return
	}

	var invID, available int
	err = db.QueryRow(`SELECT id, quantity FROM inventory
		WHERE warehouse_id = ? AND item_number = ? AND location_id = ? AND batch_number = ? AND dot_code = ?`,
		o.WarehouseID, item.ItemNumber, req.LocationID, req.BatchNumber, req.DotCode).
		Scan(&invID, &available)
	if err != nil {
		jsonErr(w, "no stock for that item/DOT/location/batch combination", 400)
		return
	}

	if err := cascade.ValidateQuantity(req.Quantity, available, item.Remaining); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}

	username := currentUsername(r)
	now := time.Now().Format("2006-01-02 15:04:05")

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
	if _, err := tx.Exec(`INSERT INTO picks (outbound_item_id, location_id, batch_number, dot_code, picked_quantity, picked_by, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		req.OutboundItemID, req.LocationID, req.BatchNumber, req.DotCode, req.Quantity, username, now); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("UPDATE outbound_items SET picked_quantity = picked_quantity + ? WHERE id = ?",
		req.Quantity, req.OutboundItemID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	var locCode string
	tx.QueryRow("SELECT code FROM locations WHERE id = ?", req.LocationID).Scan(&locCode)
	if err := recordMovementTx(tx, o.WarehouseID, item.ItemNumber, "pick", req.Quantity,
		locCode, "", req.BatchNumber, req.DotCode, orderID, username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	// Status follows the new pick totals.
	updated, err := getOrder(orderID)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	newStatus, err := workflow.Apply(workflow.ActionPick, orderState(updated, currentRole(r)))
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if newStatus != updated.Status {
		setOrderStatus(orderID, newStatus)
		updated.Status = newStatus
	}

	audit.Log(db, username, audit.ActionUpdate, "picking", orderID, "Picked "+strconv.Itoa(req.Quantity)+" x "+item.ItemNumber)
	broadcast("order", "update", orderID)

	updated.AllowedActions = workflow.Allowed(orderState(updated, currentRole(r)))
	jsonResp(w, updated)
}

// PickTarget is the order line a pick applies to.
type PickTarget struct {
	OutboundItemID int
	ItemNumber     string
	Remaining      int
}

func handleUnpick(w http.ResponseWriter, r *http.Request, orderID string) {
	var req struct {
		PickID int `json:"pick_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}

	o, err := getOrder(orderID)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	st := orderState(o, currentRole(r))
	if !workflow.Can(workflow.ActionUnpick, st) {
		jsonErr(w, (&workflow.TransitionError{Action: workflow.ActionUnpick, Status: o.Status}).Error(), 409)
		return
	}

	var pick *struct {
		ItemID     int
		ItemNumber string
		LocationID int
		Batch, Dot string
		Qty        int
	}
	for _, it := range o.Items {
		for _, p := range it.Picks {
			if p.ID == req.PickID {
				pick = &struct {
					ItemID     int
					ItemNumber string
					LocationID int
					Batch, Dot string
					Qty        int
				}{it.ID, it.ItemNumber, p.LocationID, p.BatchNumber, p.DotCode, p.PickedQuantity}
			}
		}
	}
	if pick == nil {
		jsonErr(w, "pick not found on order", 400)
		return
	}

	username := currentUsername(r)
	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if err := addStockTx(tx, o.WarehouseID, pick.ItemNumber, pick.LocationID, pick.Batch, pick.Dot, pick.Qty); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("DELETE FROM picks WHERE id = ?", req.PickID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if _, err := tx.Exec("UPDATE outbound_items SET picked_quantity = picked_quantity - ? WHERE id = ?",
		pick.Qty, pick.ItemID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	var locCode string
	tx.QueryRow("SELECT code FROM locations WHERE id = ?", pick.LocationID).Scan(&locCode)
	if err := recordMovementTx(tx, o.WarehouseID, pick.ItemNumber, "unpick", pick.Qty,
		"", locCode, pick.Batch, pick.Dot, orderID, username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	// Back to Pending Pick when nothing remains picked.
	updated, _ := getOrder(orderID)
	newStatus := workflow.StatusPartiallyPicked
	totalPicked := 0
	for _, it := range updated.Items {
		totalPicked += it.PickedQuantity
	}
	if totalPicked == 0 {
		newStatus = workflow.StatusPendingPick
	}
	setOrderStatus(orderID, newStatus)
	updated.Status = newStatus

	audit.Log(db, username, audit.ActionUpdate, "picking", orderID, "Unpicked pick entry")
	broadcast("order", "update", orderID)
	jsonResp(w, updated)
}

func handleStage(w http.ResponseWriter, r *http.Request, orderID string) {
	var req struct {
		StagingLocationID int `json:"staging_location_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}

	o, err := getOrder(orderID)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	st := orderState(o, currentRole(r))
	if !workflow.Can(workflow.ActionStage, st) {
		jsonErr(w, (&workflow.TransitionError{Action: workflow.ActionStage, Status: o.Status}).Error(), 409)
		return
	}

	loc, err := getLocation(req.StagingLocationID)
	if err != nil || loc.WarehouseID != o.WarehouseID {
		jsonErr(w, "staging location not found", 400)
		return
	}
	if loc.Type != "staging" {
		jsonErr(w, "location is not a staging area", 400)
		return
	}
	totalUnits := 0
	for _, it := range o.Items {
		totalUnits += it.PickedQuantity
	}
	if !loc.CanHold(totalUnits) {
		if loc.MaxCapacityUnits == nil {
			jsonErr(w, "staging location capacity is not set", 400)
			return
		}
		jsonErr(w, "staging location does not have capacity for the order", 400)
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := db.Exec("UPDATE outbound_orders SET status = ?, staging_location_id = ?, updated_at = ? WHERE id = ?",
		workflow.StatusStaged, req.StagingLocationID, now, orderID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	username := currentUsername(r)
	for _, it := range o.Items {
		if it.PickedQuantity > 0 {
			recordMovement(o.WarehouseID, it.ItemNumber, "stage", it.PickedQuantity, "", loc.Code, "", "", orderID, username)
		}
	}
	audit.Log(db, username, audit.ActionUpdate, "picking", orderID, "Staged order at "+loc.Code)
	broadcast("order", "update", orderID)
	jsonResp(w, map[string]string{"status": workflow.StatusStaged})
}

func handleScrapOrder(w http.ResponseWriter, r *http.Request, orderID string) {
	o := applyOrderAction(w, r, orderID, workflow.ActionScrap)
	if o == nil {
		return
	}
	username := currentUsername(r)
	for _, it := range o.Items {
		if it.PickedQuantity > 0 {
			recordMovement(o.WarehouseID, it.ItemNumber, "scrap", it.PickedQuantity, "", "", "", "", orderID, username)
		}
	}
	audit.Log(db, username, audit.ActionUpdate, "picking", orderID, "Scrapped order "+orderID)
	broadcast("order", "update", orderID)
	jsonResp(w, map[string]string{"status": o.Status})
}

// Cascade slice endpoints. Each one narrows the pickable inventory a level
// further; the UI clears downstream fields whenever an upstream one changes.

func handleCascadeDots(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		jsonErr(w, "item is required", 400)
		return
	}
	rows, err := db.Query(`SELECT dot_code, SUM(quantity) FROM inventory
		WHERE warehouse_id = ? AND item_number = ? AND quantity > 0
		GROUP BY dot_code`, currentWarehouseID(r), item)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	var opts []cascade.DotOption
	for rows.Next() {
		var o cascade.DotOption
		rows.Scan(&o.DotCode, &o.Quantity)
		opts = append(opts, o)
	}
	if opts == nil {
		opts = []cascade.DotOption{}
	}
	jsonResp(w, cascade.SortDotsFIFO(opts))
}

func handleCascadeLocations(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	dot := r.URL.Query().Get("dot")
	if item == "" || dot == "" {
		jsonErr(w, "item and dot are required", 400)
		return
	}
	rows, err := db.Query(`SELECT i.location_id, l.code, SUM(i.quantity)
		FROM inventory i JOIN locations l ON l.id = i.location_id
		WHERE i.warehouse_id = ? AND i.item_number = ? AND i.dot_code = ? AND i.quantity > 0
		GROUP BY i.location_id, l.code ORDER BY l.code`, currentWarehouseID(r), item, dot)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	type locOption struct {
		LocationID int    `json:"location_id"`
		Code       string `json:"code"`
		Quantity   int    `json:"quantity"`
	}
	var opts []locOption
	for rows.Next() {
		var o locOption
		rows.Scan(&o.LocationID, &o.Code, &o.Quantity)
		opts = append(opts, o)
	}
	if opts == nil {
		opts = []locOption{}
	}
	jsonResp(w, opts)
}

func handleCascadeBatches(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	dot := r.URL.Query().Get("dot")
	locStr := r.URL.Query().Get("location")
	locID, _ := strconv.Atoi(locStr)
	if item == "" || dot == "" || locID == 0 {
		jsonErr(w, "item, dot and location are required", 400)
		return
	}
	rows, err := db.Query(`SELECT batch_number, quantity FROM inventory
		WHERE warehouse_id = ? AND item_number = ? AND dot_code = ? AND location_id = ? AND quantity > 0
		ORDER BY batch_number`, currentWarehouseID(r), item, dot, locID)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	type batchOption struct {
		BatchNumber string `json:"batch_number"`
		Quantity    int    `json:"quantity"`
	}
	var opts []batchOption
	for rows.Next() {
		var o batchOption
		rows.Scan(&o.BatchNumber, &o.Quantity)
		opts = append(opts, o)
	}
	if opts == nil {
		opts = []batchOption{}
	}
	jsonResp(w, opts)
}
