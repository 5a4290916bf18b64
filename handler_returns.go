package main

import (
	"fmt"
	"net/http"
	"time"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
	"wms/internal/workflow"
)

func getReturn(id string) (*models.ReturnOrder, error) {
	var ret models.ReturnOrder
	err := db.QueryRow(`SELECT id, order_id, status, reason, created_by, created_at, updated_at
		FROM returns WHERE id = ?`, id).
		Scan(&ret.ID, &ret.OrderID, &ret.Status, &ret.Reason, &ret.CreatedBy, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT id, return_id, outbound_item_id, item_number, quantity, condition, restock_location_id, processed
		FROM return_items WHERE return_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it models.ReturnItem
		rows.Scan(&it.ID, &it.ReturnID, &it.OutboundItemID, &it.ItemNumber, &it.Quantity, &it.Condition, &it.RestockLocationID, &it.Processed)
		ret.Items = append(ret.Items, it)
	}
	return &ret, nil
}

func handleListReturns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	where := "o.warehouse_id = ?"
	args := []interface{}{currentWarehouseID(r)}
	if v := q.Get("status"); v != "" {
		where += " AND ret.status = ?"
		args = append(args, v)
	}
	if v := q.Get("order"); v != "" {
		where += " AND ret.order_id = ?"
		args = append(args, v)
	}
	rows, err := db.Query(`SELECT ret.id, ret.order_id, ret.status, ret.reason, ret.created_by, ret.created_at, ret.updated_at
		FROM returns ret JOIN outbound_orders o ON o.id = ret.order_id
		WHERE `+where+` ORDER BY ret.created_at DESC`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	returns := []models.ReturnOrder{}
	for rows.Next() {
		var ret models.ReturnOrder
		rows.Scan(&ret.ID, &ret.OrderID, &ret.Status, &ret.Reason, &ret.CreatedBy, &ret.CreatedAt, &ret.UpdatedAt)
		returns = append(returns, ret)
	}
	jsonResp(w, returns)
}

type ReturnItemRequest struct {
	OutboundItemID int    `json:"outbound_item_id"`
	Quantity       int    `json:"quantity"`
	Condition      string `json:"condition"`
}

type ReturnRequest struct {
	OrderID string              `json:"order_id"`
	Reason  string              `json:"reason"`
	Items   []ReturnItemRequest `json:"items"`
}

// returnedSoFar sums prior non-cancelled return quantities per outbound item.
func returnedSoFar(orderID string) map[int]int {
	out := map[int]int{}
	rows, err := db.Query(`SELECT ri.outbound_item_id, SUM(ri.quantity)
		FROM return_items ri JOIN returns ret ON ret.id = ri.return_id
		WHERE ret.order_id = ? AND ret.status != 'Cancelled'
		GROUP BY ri.outbound_item_id`, orderID)
	if err != nil {
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var id, qty int
		rows.Scan(&id, &qty)
		out[id] = qty
	}
	return out
}

func handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req ReturnRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	o, err := getOrder(req.OrderID)
	if err != nil || o.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "order not found", 404)
		return
	}
	st := orderState(o, currentRole(r))
	if !workflow.Can(workflow.ActionCreateReturn, st) {
		jsonErr(w, (&workflow.TransitionError{Action: workflow.ActionCreateReturn, Status: o.Status}).Error(), 409)
		return
	}

	var ve validation.ValidationErrors
	validation.RequireField(&ve, "reason", req.Reason)
	if len(req.Items) == 0 {
		ve.Add("items", "at least one item is required")
	}
	prior := returnedSoFar(o.ID)
	for i, it := range req.Items {
		field := fmt.Sprintf("items[%d]", i)
		validation.ValidatePositiveInt(&ve, field+".quantity", it.Quantity)
		validation.ValidateEnum(&ve, field+".condition", it.Condition, validation.ValidReturnConditions)
		var line *models.OutboundItem
		for j := range o.Items {
			if o.Items[j].ID == it.OutboundItemID {
				line = &o.Items[j]
			}
		}
		if line == nil {
			ve.Add(field+".outbound_item_id", "item is not on the order")
			continue
		}
		returnable := line.PickedQuantity - prior[it.OutboundItemID]
		if it.Quantity > returnable {
			ve.Add(field+".quantity", fmt.Sprintf("only %d units are returnable", returnable))
		}
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	id := nextID("RET", "returns", 4)
	username := currentUsername(r)

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO returns (id, order_id, reason, created_by) VALUES (?,?,?,?)`,
		id, o.ID, req.Reason, username); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	for _, it := range req.Items {
		var itemNumber string
		for _, line := range o.Items {
			if line.ID == it.OutboundItemID {
				itemNumber = line.ItemNumber
			}
		}
		if _, err := tx.Exec(`INSERT INTO return_items (return_id, outbound_item_id, item_number, quantity, condition)
			VALUES (?,?,?,?,?)`, id, it.OutboundItemID, itemNumber, it.Quantity, it.Condition); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, username, audit.ActionCreate, "returns", id, "Created return for order "+o.ID)
	broadcast("return", "create", id)

	ret, _ := getReturn(id)
	jsonResp(w, ret)
}

func handleGetReturn(w http.ResponseWriter, r *http.Request, id string) {
	ret, err := getReturn(id)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	jsonResp(w, ret)
}

// ProcessRequest restocks good units to a location; damaged units are
// written off without a restock.
type ProcessRequest struct {
	RestockLocationID int `json:"restock_location_id"`
}

func handleProcessReturn(w http.ResponseWriter, r *http.Request, id string) {
	var req ProcessRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	ret, err := getReturn(id)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	if ret.Status != "Created" && ret.Status != "Receiving" {
		jsonErr(w, "return is "+ret.Status+" and cannot be processed", 409)
		return
	}
	o, err := getOrder(ret.OrderID)
	if err != nil {
		jsonErr(w, "order not found", 500)
		return
	}

	restockGood := false
	goodUnits := 0
	for _, it := range ret.Items {
		if it.Condition == "good" {
			restockGood = true
			goodUnits += it.Quantity
		}
	}
	var loc *models.Location
	if restockGood {
		if req.RestockLocationID == 0 {
			jsonErr(w, "restock_location_id is required for good-condition items", 400)
			return
		}
		loc, err = getLocation(req.RestockLocationID)
		if err != nil || loc.WarehouseID != o.WarehouseID {
			jsonErr(w, "restock location not found", 400)
			return
		}
		if !loc.CanHold(goodUnits) {
			jsonErr(w, "restock location does not have capacity", 400)
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

	for _, it := range ret.Items {
		if it.Condition == "good" {
			if err := addStockTx(tx, o.WarehouseID, it.ItemNumber, req.RestockLocationID, "", "", it.Quantity); err != nil {
				jsonErr(w, err.Error(), 500)
				return
			}
			if err := recordMovementTx(tx, o.WarehouseID, it.ItemNumber, "return", it.Quantity,
				"", loc.Code, "", "", id, username); err != nil {
				jsonErr(w, err.Error(), 500)
				return
			}
			if _, err := tx.Exec("UPDATE return_items SET processed = 1, restock_location_id = ? WHERE id = ?",
				req.RestockLocationID, it.ID); err != nil {
				jsonErr(w, err.Error(), 500)
				return
			}
		} else {
			if _, err := tx.Exec("UPDATE return_items SET processed = 1 WHERE id = ?", it.ID); err != nil {
				jsonErr(w, err.Error(), 500)
				return
			}
		}
	}
	if _, err := tx.Exec("UPDATE returns SET status = 'Processed', updated_at = ? WHERE id = ?", now, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	// The order moves to Returned when every shipped unit has come back.
	shipped := 0
	for _, line := range o.Items {
		shipped += line.PickedQuantity
	}
	returned := 0
	for _, qty := range returnedSoFar(o.ID) {
		returned += qty
	}
	orderStatus := workflow.ReturnStatus(shipped, returned)
	if _, err := tx.Exec("UPDATE outbound_orders SET status = ?, updated_at = ? WHERE id = ?",
		orderStatus, now, o.ID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, username, audit.ActionUpdate, "returns", id, "Processed return "+id)
	broadcast("return", "update", id)
	broadcast("order", "update", o.ID)

	updated, _ := getReturn(id)
	jsonResp(w, map[string]interface{}{"return": updated, "order_status": orderStatus})
}

func handleCancelReturn(w http.ResponseWriter, r *http.Request, id string) {
	ret, err := getReturn(id)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	if ret.Status == "Processed" {
		jsonErr(w, "return is already processed", 409)
		return
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	if _, err := db.Exec("UPDATE returns SET status = 'Cancelled', updated_at = ? WHERE id = ?", now, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "returns", id, "Cancelled return "+id)
	broadcast("return", "update", id)
	jsonResp(w, map[string]string{"status": "Cancelled"})
}
