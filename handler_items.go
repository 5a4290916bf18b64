package main

import (
	"net/http"
	"strings"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
)

func handleListItems(w http.ResponseWriter, r *http.Request) {
	where := "1=1"
	args := []interface{}{}
	if v := r.URL.Query().Get("search"); v != "" {
		where = "(item_number LIKE ? OR description LIKE ? OR barcode LIKE ?)"
		like := "%" + v + "%"
		args = append(args, like, like, like)
	}
	rows, err := db.Query(`SELECT item_number, description, brand, model, unit, barcode, created_at
		FROM items WHERE `+where+` ORDER BY item_number`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	items := []models.Item{}
	for rows.Next() {
		var it models.Item
		rows.Scan(&it.ItemNumber, &it.Description, &it.Brand, &it.Model, &it.Unit, &it.Barcode, &it.CreatedAt)
		items = append(items, it)
	}
	jsonResp(w, items)
}

type ItemRequest struct {
	ItemNumber  string `json:"item_number"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Model       string `json:"model"`
	Unit        string `json:"unit"`
	Barcode     string `json:"barcode"`
}

func validateItemRequest(req *ItemRequest) *validation.ValidationErrors {
	var ve validation.ValidationErrors
	req.ItemNumber = strings.TrimSpace(req.ItemNumber)
	validation.RequireField(&ve, "item_number", req.ItemNumber)
	validation.ValidateMaxLength(&ve, "item_number", req.ItemNumber, 50)
	validation.ValidateMaxLength(&ve, "description", req.Description, 500)
	return &ve
}

func handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	if ve := validateItemRequest(&req); ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	if req.Unit == "" {
		req.Unit = "unit"
	}
	if _, err := db.Exec(`INSERT INTO items (item_number, description, brand, model, unit, barcode) VALUES (?,?,?,?,?,?)`,
		req.ItemNumber, req.Description, req.Brand, req.Model, req.Unit, req.Barcode); err != nil {
		jsonErr(w, "item number already exists", 409)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionCreate, "items", req.ItemNumber, "Created item "+req.ItemNumber)
	broadcast("item", "create", req.ItemNumber)
	jsonResp(w, req)
}

func handleGetItem(w http.ResponseWriter, r *http.Request, itemNumber string) {
	var it models.Item
	err := db.QueryRow(`SELECT item_number, description, brand, model, unit, barcode, created_at
		FROM items WHERE item_number = ?`, itemNumber).
		Scan(&it.ItemNumber, &it.Description, &it.Brand, &it.Model, &it.Unit, &it.Barcode, &it.CreatedAt)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}

	// Stock across the current warehouse, per location slice.
	rows, err := db.Query(`SELECT i.id, i.warehouse_id, i.item_number, i.location_id, l.code, i.batch_number, i.dot_code, i.quantity, i.updated_at
		FROM inventory i JOIN locations l ON l.id = i.location_id
		WHERE i.warehouse_id = ? AND i.item_number = ? AND i.quantity > 0
		ORDER BY l.code, i.dot_code`, currentWarehouseID(r), itemNumber)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()
	stock := []models.InventoryRecord{}
	total := 0
	for rows.Next() {
		var rec models.InventoryRecord
		rows.Scan(&rec.ID, &rec.WarehouseID, &rec.ItemNumber, &rec.LocationID, &rec.LocationCode,
			&rec.BatchNumber, &rec.DotCode, &rec.Quantity, &rec.UpdatedAt)
		total += rec.Quantity
		stock = append(stock, rec)
	}
	jsonResp(w, map[string]interface{}{"item": it, "stock": stock, "total_on_hand": total})
}

func handleUpdateItem(w http.ResponseWriter, r *http.Request, itemNumber string) {
	var exists int
	if err := db.QueryRow("SELECT 1 FROM items WHERE item_number = ?", itemNumber).Scan(&exists); err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	var req ItemRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	// The item number is the key held by inventory and order lines; it does
	// not change on update.
	if _, err := db.Exec(`UPDATE items SET description = ?, brand = ?, model = ?, unit = ?, barcode = ? WHERE item_number = ?`,
		req.Description, req.Brand, req.Model, req.Unit, req.Barcode, itemNumber); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "items", itemNumber, "Updated item "+itemNumber)
	broadcast("item", "update", itemNumber)
	jsonResp(w, map[string]string{"item_number": itemNumber})
}
