package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
	"wms/internal/workflow"
)

func handleListOrders(w http.ResponseWriter, r *http.Request) {
	whID := currentWarehouseID(r)
	status := r.URL.Query().Get("status")
	orderType := r.URL.Query().Get("type")
	search := r.URL.Query().Get("search")

	query := `SELECT o.id, o.warehouse_id, COALESCE(o.customer_id,''), COALESCE(c.name,''),
		o.order_type, o.status, COALESCE(o.required_date,''), o.staging_location_id,
		COALESCE(o.tracking_number,''), COALESCE(o.notes,''), COALESCE(o.created_by,''),
		o.created_at, o.updated_at
		FROM outbound_orders o LEFT JOIN customers c ON c.id = o.customer_id
		WHERE o.warehouse_id = ?`
	args := []interface{}{whID}

	if status != "" {
		query += " AND o.status = ?"
		args = append(args, status)
	}
	if orderType != "" {
		query += " AND o.order_type = ?"
		args = append(args, orderType)
	}
	if search != "" {
		query += " AND (o.id LIKE ? OR c.name LIKE ? OR o.tracking_number LIKE ?)"
		term := "%" + search + "%"
		args = append(args, term, term, term)
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	var orders []models.OutboundOrder
	for rows.Next() {
		var o models.OutboundOrder
		rows.Scan(&o.ID, &o.WarehouseID, &o.CustomerID, &o.CustomerName, &o.OrderType, &o.Status,
			&o.RequiredDate, &o.StagingLocationID, &o.TrackingNumber, &o.Notes, &o.CreatedBy,
			&o.CreatedAt, &o.UpdatedAt)
		orders = append(orders, o)
	}
	if orders == nil {
		orders = []models.OutboundOrder{}
	}
	jsonResp(w, orders)
}

// getOrder loads an order with its items, nested picks and active assignment.
func getOrder(id string) (*models.OutboundOrder, error) {
	var o models.OutboundOrder
	err := db.QueryRow(`SELECT o.id, o.warehouse_id, COALESCE(o.customer_id,''), COALESCE(c.name,''),
		o.order_type, o.status, COALESCE(o.required_date,''), o.staging_location_id,
		COALESCE(o.tracking_number,''), COALESCE(o.notes,''), COALESCE(o.created_by,''),
		o.created_at, o.updated_at
		FROM outbound_orders o LEFT JOIN customers c ON c.id = o.customer_id
		WHERE o.id = ?`, id).
		Scan(&o.ID, &o.WarehouseID, &o.CustomerID, &o.CustomerName, &o.OrderType, &o.Status,
			&o.RequiredDate, &o.StagingLocationID, &o.TrackingNumber, &o.Notes, &o.CreatedBy,
			&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Items = getOrderItems(id)
	o.Assignment = getActiveAssignment(id)
	return &o, nil
}

func getOrderItems(orderID string) []models.OutboundItem {
	rows, err := db.Query(`SELECT id, order_id, item_number, ordered_quantity, picked_quantity
		FROM outbound_items WHERE order_id = ? ORDER BY id`, orderID)
	if err != nil {
		return []models.OutboundItem{}
	}
	defer rows.Close()
	var items []models.OutboundItem
	for rows.Next() {
		var it models.OutboundItem
		rows.Scan(&it.ID, &it.OrderID, &it.ItemNumber, &it.OrderedQuantity, &it.PickedQuantity)
		it.Picks = getItemPicks(it.ID)
		items = append(items, it)
	}
	if items == nil {
		items = []models.OutboundItem{}
	}
	return items
}

func getItemPicks(outboundItemID int) []models.Pick {
	rows, err := db.Query(`SELECT p.id, p.outbound_item_id, p.location_id, l.code,
		COALESCE(p.batch_number,''), COALESCE(p.dot_code,''), p.picked_quantity,
		COALESCE(p.picked_by,''), p.created_at
		FROM picks p JOIN locations l ON l.id = p.location_id
		WHERE p.outbound_item_id = ? ORDER BY p.id`, outboundItemID)
	if err != nil {
		return []models.Pick{}
	}
	defer rows.Close()
	var picks []models.Pick
	for rows.Next() {
		var p models.Pick
		rows.Scan(&p.ID, &p.OutboundItemID, &p.LocationID, &p.LocationCode,
			&p.BatchNumber, &p.DotCode, &p.PickedQuantity, &p.PickedBy, &p.CreatedAt)
		picks = append(picks, p)
	}
	if picks == nil {
		picks = []models.Pick{}
	}
	return picks
}

// orderState assembles the tuple the workflow table is evaluated against.
func orderState(o *models.OutboundOrder, role string) workflow.OrderState {
	fullyPicked := len(o.Items) > 0
	for _, it := range o.Items {
		if it.PickedQuantity < it.OrderedQuantity {
			fullyPicked = false
			break
		}
	}
	return workflow.OrderState{
		Status:         o.Status,
		OrderType:      o.OrderType,
		Role:           role,
		DriverAssigned: o.Assignment != nil,
		FullyPicked:    fullyPicked,
	}
}

func handleGetOrder(w http.ResponseWriter, r *http.Request, id string) {
	o, err := getOrder(id)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	o.AllowedActions = workflow.Allowed(orderState(o, currentRole(r)))
	jsonResp(w, o)
}

// handleOrderActions exposes the action-visibility table for one order, so
// the UI renders exactly the buttons the server will accept.
func handleOrderActions(w http.ResponseWriter, r *http.Request, id string) {
	o, err := getOrder(id)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	jsonResp(w, map[string]interface{}{
		"status":          o.Status,
		"order_type":      o.OrderType,
		"driver_assigned": o.Assignment != nil,
		"allowed_actions": workflow.Allowed(orderState(o, currentRole(r))),
	})
}

func handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var o models.OutboundOrder
	if err := decodeBody(r, &o); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}

	ve := &validation.ValidationErrors{}
	if o.OrderType == "" {
		o.OrderType = workflow.TypeCustomer
	}
	validation.ValidateEnum(ve, "order_type", o.OrderType, validation.ValidOrderTypes)
	if o.OrderType == workflow.TypeCustomer {
		validation.RequireField(ve, "customer_id", o.CustomerID)
	}
	validation.ValidateDate(ve, "required_date", o.RequiredDate)
	if len(o.Items) == 0 {
		ve.Add("items", "at least one item is required")
	}
	for i, it := range o.Items {
		validation.RequireField(ve, fmt.Sprintf("items[%d].item_number", i), it.ItemNumber)
		validation.ValidatePositiveInt(ve, fmt.Sprintf("items[%d].ordered_quantity", i), it.OrderedQuantity)
		validation.ValidateMaxQuantity(ve, fmt.Sprintf("items[%d].ordered_quantity", i), it.OrderedQuantity)
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	if o.CustomerID != "" {
		var n int
		db.QueryRow("SELECT COUNT(*) FROM customers WHERE id = ?", o.CustomerID).Scan(&n)
		if n == 0 {
			jsonErr(w, "customer not found", 400)
			return
		}
	}

	o.ID = nextID("ORD", "outbound_orders", 4)
	o.WarehouseID = currentWarehouseID(r)
	o.Status = workflow.StatusNew
	o.CreatedBy = currentUsername(r)
	now := time.Now().Format("2006-01-02 15:04:05")

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO outbound_orders
		(id, warehouse_id, customer_id, order_type, status, required_date, notes, created_by, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.WarehouseID, o.CustomerID, o.OrderType, o.Status,
		nullIfEmpty(o.RequiredDate), o.Notes, o.CreatedBy, now, now)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	for _, it := range o.Items {
		if _, err := tx.Exec(`INSERT INTO outbound_items (order_id, item_number, ordered_quantity)
			VALUES (?,?,?)`, o.ID, it.ItemNumber, it.OrderedQuantity); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, o.CreatedBy, audit.ActionCreate, "orders", o.ID, "Created outbound order "+o.ID)
	broadcast("order", "create", o.ID)

	created, err := getOrder(o.ID)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	jsonResp(w, created)
}

func handleUpdateOrder(w http.ResponseWriter, r *http.Request, id string) {
	o, err := getOrder(id)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	// Only header fields are editable, and only before picking starts.
	if o.Status != workflow.StatusNew && o.Status != workflow.StatusPendingPick {
		jsonErr(w, "order can no longer be edited", 409)
		return
	}

	var req struct {
		CustomerID   string `json:"customer_id"`
		RequiredDate string `json:"required_date"`
		Notes        string `json:"notes"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	ve := &validation.ValidationErrors{}
	validation.ValidateDate(ve, "required_date", req.RequiredDate)
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	_, err = db.Exec(`UPDATE outbound_orders SET customer_id = ?, required_date = ?, notes = ?, updated_at = ?
		WHERE id = ?`, req.CustomerID, nullIfEmpty(req.RequiredDate), req.Notes, now, id)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, currentUsername(r), audit.ActionUpdate, "orders", id, "Updated outbound order "+id)
	broadcast("order", "update", id)

	updated, _ := getOrder(id)
	jsonResp(w, updated)
}

// applyOrderAction runs the shared action plumbing: load the order, check the
// workflow table, write the new status. Returns the reloaded order or nil on
// a handled error.
func applyOrderAction(w http.ResponseWriter, r *http.Request, id, action string) *models.OutboundOrder {
	o, err := getOrder(id)
	if err != nil {
		jsonErr(w, "not found", 404)
		return nil
	}
	st := orderState(o, currentRole(r))
	newStatus, err := workflow.Apply(action, st)
	if err != nil {
		jsonErr(w, err.Error(), 409)
		return nil
	}
	if err := setOrderStatus(id, newStatus); err != nil {
		jsonErr(w, err.Error(), 500)
		return nil
	}
	o.Status = newStatus
	return o
}

func setOrderStatus(id, status string) error {
	now := time.Now().Format("2006-01-02 15:04:05")
	_, err := db.Exec("UPDATE outbound_orders SET status = ?, updated_at = ? WHERE id = ?", status, now, id)
	return err
}

func handleCancelOrder(w http.ResponseWriter, r *http.Request, id string) {
	var prior string
	db.QueryRow("SELECT status FROM outbound_orders WHERE id = ?", id).Scan(&prior)
	o := applyOrderAction(w, r, id, workflow.ActionCancel)
	if o == nil {
		return
	}
	// Picked stock goes back to where it came from. Stock on a shipped
	// order has already left the warehouse and stays out.
	if prior != workflow.StatusShipped {
		if err := restorePickedStock(o); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "orders", id, "Cancelled order "+id)
	broadcast("order", "update", id)
	jsonResp(w, map[string]string{"status": o.Status})
}

// restorePickedStock returns every pick of the order to its source location
// and clears the pick records.
func restorePickedStock(o *models.OutboundOrder) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, it := range o.Items {
		for _, p := range it.Picks {
			if err := addStockTx(tx, o.WarehouseID, it.ItemNumber, p.LocationID, p.BatchNumber, p.DotCode, p.PickedQuantity); err != nil {
				return err
			}
			if _, err := tx.Exec("DELETE FROM picks WHERE id = ?", p.ID); err != nil {
				return err
			}
		}
		if _, err := tx.Exec("UPDATE outbound_items SET picked_quantity = 0 WHERE id = ?", it.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func handleShipOrder(w http.ResponseWriter, r *http.Request, id string) {
	o := applyOrderAction(w, r, id, workflow.ActionShip)
	if o == nil {
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "orders", id, "Shipped order "+id)
	broadcast("order", "update", id)
	jsonResp(w, map[string]string{"status": o.Status})
}

func handleOutForDelivery(w http.ResponseWriter, r *http.Request, id string) {
	o := applyOrderAction(w, r, id, workflow.ActionOutForDelivery)
	if o == nil {
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "orders", id, "Order "+id+" out for delivery")
	broadcast("order", "update", id)
	jsonResp(w, map[string]string{"status": o.Status})
}

func handleDeliverOrder(w http.ResponseWriter, r *http.Request, id string) {
	o := applyOrderAction(w, r, id, workflow.ActionDeliver)
	if o == nil {
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "orders", id, "Order "+id+" delivered")
	broadcast("order", "update", id)
	jsonResp(w, map[string]string{"status": o.Status})
}

func handleFailDelivery(w http.ResponseWriter, r *http.Request, id string) {
	var req struct {
		Reason string `json:"reason"`
	}
	decodeBody(r, &req)
	o := applyOrderAction(w, r, id, workflow.ActionFailDelivery)
	if o == nil {
		return
	}
	summary := "Delivery failed for order " + id
	if req.Reason != "" {
		summary += ": " + req.Reason
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "orders", id, summary)
	broadcast("order", "update", id)
	jsonResp(w, map[string]string{"status": o.Status})
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
