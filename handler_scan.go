package main

import (
	"net/http"

	"wms/internal/models"
)

// handleScanLookup resolves a scanned barcode or code to whatever record it
// identifies: an item, a location, an order or a tracking number.
func handleScanLookup(w http.ResponseWriter, r *http.Request, code string) {
	warehouseID := currentWarehouseID(r)

	var it models.Item
	err := db.QueryRow(`SELECT item_number, description, brand, model, unit, barcode, created_at
		FROM items WHERE item_number = ? OR barcode = ?`, code, code).
		Scan(&it.ItemNumber, &it.Description, &it.Brand, &it.Model, &it.Unit, &it.Barcode, &it.CreatedAt)
	if err == nil {
		var onHand int
		db.QueryRow("SELECT COALESCE(SUM(quantity),0) FROM inventory WHERE warehouse_id = ? AND item_number = ?",
			warehouseID, it.ItemNumber).Scan(&onHand)
		jsonResp(w, map[string]interface{}{"type": "item", "item": it, "on_hand": onHand})
		return
	}

	var locID int
	err = db.QueryRow("SELECT id FROM locations WHERE warehouse_id = ? AND code = ?", warehouseID, code).Scan(&locID)
	if err == nil {
		loc, err := getLocation(locID)
		if err == nil {
			jsonResp(w, map[string]interface{}{"type": "location", "location": loc})
			return
		}
	}

	if o, err := getOrder(code); err == nil && o.WarehouseID == warehouseID {
		o.AllowedActions = []string{}
		jsonResp(w, map[string]interface{}{"type": "order", "order": o})
		return
	}

	var orderID string
	err = db.QueryRow("SELECT order_id FROM assignments WHERE tracking_number = ? AND status = 'active'", code).Scan(&orderID)
	if err == nil {
		if o, err := getOrder(orderID); err == nil && o.WarehouseID == warehouseID {
			jsonResp(w, map[string]interface{}{"type": "tracking", "order": o})
			return
		}
	}

	jsonErr(w, "nothing matches the scanned code", 404)
}
