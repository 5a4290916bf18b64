package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"wms/internal/models"
)

func seedSecondWarehouse(t *testing.T) {
	t.Helper()
	if _, err := db.Exec("INSERT INTO warehouses (code, name) VALUES ('WH2', 'Second Warehouse')"); err != nil {
		t.Fatalf("warehouse fixture: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO locations (warehouse_id, code, type, max_capacity_units) VALUES (2, 'REC2-01', 'receiving', 500)`); err != nil {
		t.Fatalf("location fixture: %v", err)
	}
}

func createWarehouseTransfer(t *testing.T, qty int) string {
	t.Helper()
	body := jsonBody(t, map[string]interface{}{
		"to_warehouse_id": 2,
		"items": []map[string]interface{}{
			{"item_number": "TYRE-205", "quantity": qty, "batch_number": "B1", "dot_code": "0124"},
		},
	})
	rec := httptest.NewRecorder()
	handleCreateTransfer(rec, authRequest("POST", "/api/v1/transfers", body))
	if rec.Code != 200 {
		t.Fatalf("create transfer: %d %s", rec.Code, rec.Body.String())
	}
	var tr models.TransferOrder
	decodeData(t, rec, &tr)
	return tr.ID
}

func TestCreateTransfer(t *testing.T) {
	setupTestDB(t)
	seedSecondWarehouse(t)
	id := createWarehouseTransfer(t, 10)
	if id != "TRF-0001" {
		t.Errorf("id = %q, want TRF-0001", id)
	}
	tr, err := getTransfer(id)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Status != "Draft" || tr.FromWarehouseID != 1 || tr.ToWarehouseID != 2 {
		t.Errorf("transfer = %+v", tr)
	}
}

func TestCreateTransferUnknownWarehouse(t *testing.T) {
	setupTestDB(t)
	body := jsonBody(t, map[string]interface{}{
		"to_warehouse_id": 9,
		"items":           []map[string]interface{}{{"item_number": "TYRE-205", "quantity": 1}},
	})
	rec := httptest.NewRecorder()
	handleCreateTransfer(rec, authRequest("POST", "/api/v1/transfers", body))
	if rec.Code != 400 {
		t.Fatalf("unknown destination: got %d", rec.Code)
	}
}

func TestShipAndReceiveTransfer(t *testing.T) {
	setupTestDB(t)
	seedSecondWarehouse(t)
	id := createWarehouseTransfer(t, 10)

	rec := httptest.NewRecorder()
	handleShipTransfer(rec, authRequest("POST", "/", nil), id)
	if rec.Code != 200 {
		t.Fatalf("ship: %d %s", rec.Code, rec.Body.String())
	}
	var srcQty int
	db.QueryRow("SELECT quantity FROM inventory WHERE warehouse_id=1 AND item_number='TYRE-205' AND batch_number='B1'").Scan(&srcQty)
	if srcQty != 30 {
		t.Errorf("source stock = %d, want 30", srcQty)
	}

	// The destination warehouse books the stock in.
	body := jsonBody(t, map[string]int{"location_id": 5})
	r := authRequestAs("POST", "/", body, "admin", "admin", 2)
	rec = httptest.NewRecorder()
	handleReceiveTransfer(rec, r, id)
	if rec.Code != 200 {
		t.Fatalf("receive: %d %s", rec.Code, rec.Body.String())
	}

	var dstQty int
	db.QueryRow("SELECT quantity FROM inventory WHERE warehouse_id=2 AND item_number='TYRE-205'").Scan(&dstQty)
	if dstQty != 10 {
		t.Errorf("destination stock = %d, want 10", dstQty)
	}
	tr, _ := getTransfer(id)
	if tr.Status != "Received" {
		t.Errorf("status = %q, want Received", tr.Status)
	}
}

func TestShipTransferShortStock(t *testing.T) {
	setupTestDB(t)
	seedSecondWarehouse(t)
	id := createWarehouseTransfer(t, 45)

	rec := httptest.NewRecorder()
	handleShipTransfer(rec, authRequest("POST", "/", nil), id)
	if rec.Code != 400 {
		t.Fatalf("short stock: got %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(responseError(t, rec), "short 5 units") {
		t.Errorf("error = %q", responseError(t, rec))
	}
	// The rollback leaves the source stock untouched.
	var qty int
	db.QueryRow("SELECT quantity FROM inventory WHERE warehouse_id=1 AND item_number='TYRE-205' AND batch_number='B1'").Scan(&qty)
	if qty != 40 {
		t.Errorf("source stock after failed ship = %d, want 40", qty)
	}
}

func TestReceiveTransferWrongWarehouse(t *testing.T) {
	setupTestDB(t)
	seedSecondWarehouse(t)
	id := createWarehouseTransfer(t, 5)
	rec := httptest.NewRecorder()
	handleShipTransfer(rec, authRequest("POST", "/", nil), id)
	if rec.Code != 200 {
		t.Fatalf("ship: %d", rec.Code)
	}

	// The source warehouse cannot receive its own outbound transfer.
	rec = httptest.NewRecorder()
	handleReceiveTransfer(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"location_id": 1})), id)
	if rec.Code != 404 {
		t.Fatalf("receive at source: got %d, want 404", rec.Code)
	}
}

func TestCancelTransfer(t *testing.T) {
	setupTestDB(t)
	seedSecondWarehouse(t)
	id := createWarehouseTransfer(t, 5)

	rec := httptest.NewRecorder()
	handleCancelTransfer(rec, authRequest("POST", "/", nil), id)
	if rec.Code != 200 {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}

	id2 := createWarehouseTransfer(t, 5)
	rec = httptest.NewRecorder()
	handleShipTransfer(rec, authRequest("POST", "/", nil), id2)
	rec = httptest.NewRecorder()
	handleCancelTransfer(rec, authRequest("POST", "/", nil), id2)
	if rec.Code != 409 {
		t.Fatalf("cancel shipped transfer: got %d, want 409", rec.Code)
	}
}
