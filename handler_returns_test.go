package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"wms/internal/models"
)

func shippedTestOrder(t *testing.T, qty int) (orderID string, itemID int) {
	t.Helper()
	orderID = createTestOrder(t, "Customer", "Shipped", map[string]int{"TYRE-205": qty})
	db.Exec("UPDATE outbound_items SET picked_quantity = ordered_quantity WHERE order_id = ?", orderID)
	db.QueryRow("SELECT id FROM outbound_items WHERE order_id = ?", orderID).Scan(&itemID)
	return
}

func TestCreateReturn(t *testing.T) {
	setupTestDB(t)
	orderID, itemID := shippedTestOrder(t, 10)

	body := jsonBody(t, map[string]interface{}{
		"order_id": orderID, "reason": "customer complaint",
		"items": []map[string]interface{}{{"outbound_item_id": itemID, "quantity": 4, "condition": "good"}},
	})
	rec := httptest.NewRecorder()
	handleCreateReturn(rec, authRequest("POST", "/api/v1/returns", body))
	if rec.Code != 200 {
		t.Fatalf("create return: %d %s", rec.Code, rec.Body.String())
	}
	var ret models.ReturnOrder
	decodeData(t, rec, &ret)
	if ret.ID != "RET-0001" || ret.Status != "Created" || len(ret.Items) != 1 {
		t.Errorf("return = %+v", ret)
	}
}

func TestCreateReturnGatedByOrderStatus(t *testing.T) {
	setupTestDB(t)
	orderID := createTestOrder(t, "Customer", "Staged", map[string]int{"TYRE-205": 5})
	var itemID int
	db.QueryRow("SELECT id FROM outbound_items WHERE order_id = ?", orderID).Scan(&itemID)

	body := jsonBody(t, map[string]interface{}{
		"order_id": orderID, "reason": "wrong size",
		"items": []map[string]interface{}{{"outbound_item_id": itemID, "quantity": 1, "condition": "good"}},
	})
	rec := httptest.NewRecorder()
	handleCreateReturn(rec, authRequest("POST", "/api/v1/returns", body))
	if rec.Code != 409 {
		t.Fatalf("return on staged order: got %d, want 409", rec.Code)
	}
}

func TestCreateReturnOverQuantity(t *testing.T) {
	setupTestDB(t)
	orderID, itemID := shippedTestOrder(t, 10)

	// A first return takes 6 of the 10; only 4 remain returnable.
	body := jsonBody(t, map[string]interface{}{
		"order_id": orderID, "reason": "damaged in transit",
		"items": []map[string]interface{}{{"outbound_item_id": itemID, "quantity": 6, "condition": "damaged"}},
	})
	rec := httptest.NewRecorder()
	handleCreateReturn(rec, authRequest("POST", "/api/v1/returns", body))
	if rec.Code != 200 {
		t.Fatalf("first return: %d %s", rec.Code, rec.Body.String())
	}

	db.Exec("UPDATE outbound_orders SET status = 'Partially Returned' WHERE id = ?", orderID)
	body = jsonBody(t, map[string]interface{}{
		"order_id": orderID, "reason": "damaged in transit",
		"items": []map[string]interface{}{{"outbound_item_id": itemID, "quantity": 5, "condition": "damaged"}},
	})
	rec = httptest.NewRecorder()
	handleCreateReturn(rec, authRequest("POST", "/api/v1/returns", body))
	if rec.Code != 400 {
		t.Fatalf("over-return: got %d", rec.Code)
	}
	msg := responseError(t, rec)
	if !strings.Contains(msg, "items[0].quantity") || !strings.Contains(msg, "only 4 units are returnable") {
		t.Errorf("error = %q", msg)
	}
}

func TestProcessReturnRestocksGoodUnits(t *testing.T) {
	setupTestDB(t)
	orderID, itemID := shippedTestOrder(t, 10)

	body := jsonBody(t, map[string]interface{}{
		"order_id": orderID, "reason": "customer complaint",
		"items": []map[string]interface{}{{"outbound_item_id": itemID, "quantity": 4, "condition": "good"}},
	})
	rec := httptest.NewRecorder()
	handleCreateReturn(rec, authRequest("POST", "/api/v1/returns", body))
	var ret models.ReturnOrder
	decodeData(t, rec, &ret)

	rec = httptest.NewRecorder()
	handleProcessReturn(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"restock_location_id": 2})), ret.ID)
	if rec.Code != 200 {
		t.Fatalf("process: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		OrderStatus string `json:"order_status"`
	}
	decodeData(t, rec, &out)
	if out.OrderStatus != "Partially Returned" {
		t.Errorf("order status = %q, want Partially Returned", out.OrderStatus)
	}

	var qty int
	db.QueryRow("SELECT quantity FROM inventory WHERE item_number='TYRE-205' AND location_id=2 AND batch_number='' AND dot_code=''").Scan(&qty)
	if qty != 4 {
		t.Errorf("restocked = %d, want 4", qty)
	}
}

func TestProcessFullReturn(t *testing.T) {
	setupTestDB(t)
	orderID, itemID := shippedTestOrder(t, 6)

	body := jsonBody(t, map[string]interface{}{
		"order_id": orderID, "reason": "order refused",
		"items": []map[string]interface{}{{"outbound_item_id": itemID, "quantity": 6, "condition": "damaged"}},
	})
	rec := httptest.NewRecorder()
	handleCreateReturn(rec, authRequest("POST", "/api/v1/returns", body))
	var ret models.ReturnOrder
	decodeData(t, rec, &ret)

	// Damaged units need no restock location.
	rec = httptest.NewRecorder()
	handleProcessReturn(rec, authRequest("POST", "/", jsonBody(t, map[string]int{})), ret.ID)
	if rec.Code != 200 {
		t.Fatalf("process: %d %s", rec.Code, rec.Body.String())
	}
	var status string
	db.QueryRow("SELECT status FROM outbound_orders WHERE id = ?", orderID).Scan(&status)
	if status != "Returned" {
		t.Errorf("order status = %q, want Returned", status)
	}

	// Damaged stock never re-enters inventory.
	var count int
	db.QueryRow("SELECT COUNT(*) FROM inventory_movements WHERE type = 'return'").Scan(&count)
	if count != 0 {
		t.Errorf("damaged return recorded %d restock movements", count)
	}
}

func TestCancelReturn(t *testing.T) {
	setupTestDB(t)
	orderID, itemID := shippedTestOrder(t, 5)

	body := jsonBody(t, map[string]interface{}{
		"order_id": orderID, "reason": "mistake",
		"items": []map[string]interface{}{{"outbound_item_id": itemID, "quantity": 2, "condition": "good"}},
	})
	rec := httptest.NewRecorder()
	handleCreateReturn(rec, authRequest("POST", "/api/v1/returns", body))
	var ret models.ReturnOrder
	decodeData(t, rec, &ret)

	rec = httptest.NewRecorder()
	handleCancelReturn(rec, authRequest("POST", "/", nil), ret.ID)
	if rec.Code != 200 {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}

	// Processed returns stay processed.
	orderID2, itemID2 := shippedTestOrder(t, 5)
	body = jsonBody(t, map[string]interface{}{
		"order_id": orderID2, "reason": "mistake",
		"items": []map[string]interface{}{{"outbound_item_id": itemID2, "quantity": 2, "condition": "damaged"}},
	})
	rec = httptest.NewRecorder()
	handleCreateReturn(rec, authRequest("POST", "/api/v1/returns", body))
	decodeData(t, rec, &ret)
	rec = httptest.NewRecorder()
	handleProcessReturn(rec, authRequest("POST", "/", jsonBody(t, map[string]int{})), ret.ID)
	if rec.Code != 200 {
		t.Fatalf("process: %d %s", rec.Code, rec.Body.String())
	}
	rec = httptest.NewRecorder()
	handleCancelReturn(rec, authRequest("POST", "/", nil), ret.ID)
	if rec.Code != 409 {
		t.Fatalf("cancel processed return: got %d, want 409", rec.Code)
	}
}
