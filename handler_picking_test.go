package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"wms/internal/cascade"
)

func TestCascadeDotsFIFO(t *testing.T) {
	setupTestDB(t)

	rec := httptest.NewRecorder()
	handleCascadeDots(rec, authRequest("GET", "/api/v1/picking/dots?item=TYRE-205", nil))
	if rec.Code != 200 {
		t.Fatalf("dots: %d %s", rec.Code, rec.Body.String())
	}
	var opts []cascade.DotOption
	decodeData(t, rec, &opts)
	if len(opts) != 2 {
		t.Fatalf("dot options = %d, want 2", len(opts))
	}
	// 4823 (week 48 of 2023) is older than 0124 (week 1 of 2024).
	if opts[0].DotCode != "4823" || !opts[0].Oldest {
		t.Errorf("FIFO head = %+v, want 4823 flagged oldest", opts[0])
	}
	if opts[1].Oldest {
		t.Errorf("only the head should be flagged oldest: %+v", opts[1])
	}
}

func TestCascadeDotsRequiresItem(t *testing.T) {
	setupTestDB(t)
	rec := httptest.NewRecorder()
	handleCascadeDots(rec, authRequest("GET", "/api/v1/picking/dots", nil))
	if rec.Code != 400 {
		t.Fatalf("expected 400 without item, got %d", rec.Code)
	}
}

func TestCascadeLocationsAndBatches(t *testing.T) {
	setupTestDB(t)

	rec := httptest.NewRecorder()
	handleCascadeLocations(rec, authRequest("GET", "/api/v1/picking/locations?item=TYRE-205&dot=0124", nil))
	var locs []struct {
		LocationID int    `json:"location_id"`
		Code       string `json:"code"`
		Quantity   int    `json:"quantity"`
	}
	decodeData(t, rec, &locs)
	if len(locs) != 1 || locs[0].Code != "A-01" || locs[0].Quantity != 40 {
		t.Fatalf("locations = %+v", locs)
	}

	rec = httptest.NewRecorder()
	handleCascadeBatches(rec, authRequest("GET", "/api/v1/picking/batches?item=TYRE-205&dot=0124&location=2", nil))
	var batches []struct {
		BatchNumber string `json:"batch_number"`
		Quantity    int    `json:"quantity"`
	}
	decodeData(t, rec, &batches)
	if len(batches) != 1 || batches[0].BatchNumber != "B1" {
		t.Fatalf("batches = %+v", batches)
	}
}

func TestPickPartialThenComplete(t *testing.T) {
	setupTestDB(t)
	id := createTestOrder(t, "Customer", "Pending Pick", map[string]int{"TYRE-205": 12})
	var itemID int
	db.QueryRow("SELECT id FROM outbound_items WHERE order_id = ?", id).Scan(&itemID)

	pick := func(dot, batch string, qty int) *httptest.ResponseRecorder {
		body := jsonBody(t, map[string]interface{}{
			"outbound_item_id": itemID, "dot_code": dot, "location_id": 2, "batch_number": batch, "quantity": qty,
		})
		rec := httptest.NewRecorder()
		handlePick(rec, authRequest("POST", "/", body), id)
		return rec
	}

	// Partial pick from the older DOT first.
	if rec := pick("4823", "B2", 10); rec.Code != 200 {
		t.Fatalf("first pick: %d %s", rec.Code, rec.Body.String())
	}
	var status string
	db.QueryRow("SELECT status FROM outbound_orders WHERE id = ?", id).Scan(&status)
	if status != "Partially Picked" {
		t.Fatalf("after partial pick status = %q", status)
	}

	if rec := pick("0124", "B1", 2); rec.Code != 200 {
		t.Fatalf("second pick: %d %s", rec.Code, rec.Body.String())
	}
	db.QueryRow("SELECT status FROM outbound_orders WHERE id = ?", id).Scan(&status)
	if status != "Picked" {
		t.Fatalf("after full pick status = %q", status)
	}

	var picked int
	db.QueryRow("SELECT picked_quantity FROM outbound_items WHERE id = ?", itemID).Scan(&picked)
	if picked != 12 {
		t.Errorf("picked_quantity = %d, want 12", picked)
	}
}

func TestPickQuantityBounds(t *testing.T) {
	setupTestDB(t)
	id := createTestOrder(t, "Customer", "Pending Pick", map[string]int{"TYRE-205": 5})
	var itemID int
	db.QueryRow("SELECT id FROM outbound_items WHERE order_id = ?", id).Scan(&itemID)

	cases := []struct {
		qty  int
		want int
	}{
		{0, 400},   // below the bound
		{41, 400},  // more than the batch holds
		{6, 400},   // more than the line needs
		{5, 200},   // exactly the remaining need
	}
	for _, c := range cases {
		body := jsonBody(t, map[string]interface{}{
			"outbound_item_id": itemID, "dot_code": "0124", "location_id": 2, "batch_number": "B1", "quantity": c.qty,
		})
		rec := httptest.NewRecorder()
		handlePick(rec, authRequest("POST", "/", body), id)
		if rec.Code != c.want {
			t.Errorf("pick qty %d: got %d, want %d (%s)", c.qty, rec.Code, c.want, rec.Body.String())
		}
	}
}

func TestPickIncompleteCascade(t *testing.T) {
	setupTestDB(t)
	id := createTestOrder(t, "Customer", "Pending Pick", map[string]int{"TYRE-205": 5})
	var itemID int
	db.QueryRow("SELECT id FROM outbound_items WHERE order_id = ?", id).Scan(&itemID)

	body := jsonBody(t, map[string]interface{}{
		"outbound_item_id": itemID, "dot_code": "0124", "quantity": 2,
	})
	rec := httptest.NewRecorder()
	handlePick(rec, authRequest("POST", "/", body), id)
	if rec.Code != 400 {
		t.Fatalf("expected 400 for incomplete pick entry, got %d", rec.Code)
	}
	if !strings.Contains(responseError(t, rec), "incomplete") {
		t.Errorf("error should say the entry is incomplete: %s", rec.Body.String())
	}
}

func TestUnpickReturnsStock(t *testing.T) {
	setupTestDB(t)
	id := createTestOrder(t, "Customer", "Pending Pick", map[string]int{"TYRE-205": 4})
	var itemID int
	db.QueryRow("SELECT id FROM outbound_items WHERE order_id = ?", id).Scan(&itemID)

	body := jsonBody(t, map[string]interface{}{
		"outbound_item_id": itemID, "dot_code": "0124", "location_id": 2, "batch_number": "B1", "quantity": 3,
	})
	rec := httptest.NewRecorder()
	handlePick(rec, authRequest("POST", "/", body), id)
	if rec.Code != 200 {
		t.Fatalf("pick: %d %s", rec.Code, rec.Body.String())
	}

	var pickID int
	db.QueryRow("SELECT id FROM picks WHERE outbound_item_id = ?", itemID).Scan(&pickID)
	rec = httptest.NewRecorder()
	handleUnpick(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"pick_id": pickID})), id)
	if rec.Code != 200 {
		t.Fatalf("unpick: %d %s", rec.Code, rec.Body.String())
	}

	var qty, picked int
	db.QueryRow("SELECT quantity FROM inventory WHERE item_number='TYRE-205' AND batch_number='B1'").Scan(&qty)
	db.QueryRow("SELECT picked_quantity FROM outbound_items WHERE id = ?", itemID).Scan(&picked)
	if qty != 40 || picked != 0 {
		t.Errorf("after unpick stock = %d (want 40), picked = %d (want 0)", qty, picked)
	}
	var status string
	db.QueryRow("SELECT status FROM outbound_orders WHERE id = ?", id).Scan(&status)
	if status != "Pending Pick" {
		t.Errorf("status = %q, want Pending Pick once nothing is picked", status)
	}
}

func TestStageChecksCapacityAndType(t *testing.T) {
	setupTestDB(t)
	id := createTestOrder(t, "Customer", "Picked", map[string]int{"TYRE-205": 10})
	db.Exec("UPDATE outbound_items SET picked_quantity = 10 WHERE order_id = ?", id)

	// A storage location is not a staging area.
	rec := httptest.NewRecorder()
	handleStage(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"staging_location_id": 2})), id)
	if rec.Code != 400 {
		t.Fatalf("staging at storage location: got %d", rec.Code)
	}

	// STG-01 holds 50; a 10-unit order fits.
	rec = httptest.NewRecorder()
	handleStage(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"staging_location_id": 4})), id)
	if rec.Code != 200 {
		t.Fatalf("stage: %d %s", rec.Code, rec.Body.String())
	}
	var status string
	db.QueryRow("SELECT status FROM outbound_orders WHERE id = ?", id).Scan(&status)
	if status != "Staged" {
		t.Errorf("status = %q, want Staged", status)
	}
}

func TestStageOverCapacity(t *testing.T) {
	setupTestDB(t)
	id := createTestOrder(t, "Customer", "Picked", map[string]int{"TYRE-205": 10})
	db.Exec("UPDATE outbound_items SET picked_quantity = 10 WHERE order_id = ?", id)
	// Fill the staging area to 45 of its 50 units.
	db.Exec(`INSERT INTO inventory (warehouse_id, item_number, location_id, quantity) VALUES (1, 'TYRE-225', 4, 45)`)

	rec := httptest.NewRecorder()
	handleStage(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"staging_location_id": 4})), id)
	if rec.Code != 400 {
		t.Fatalf("expected 400 when the order exceeds staging capacity, got %d", rec.Code)
	}
}

func TestScrapOrderRequiresScrapType(t *testing.T) {
	setupTestDB(t)
	customer := createTestOrder(t, "Customer", "Picked", map[string]int{"TYRE-205": 1})
	db.Exec("UPDATE outbound_items SET picked_quantity = 1 WHERE order_id = ?", customer)

	rec := httptest.NewRecorder()
	handleScrapOrder(rec, authRequest("POST", "/", nil), customer)
	if rec.Code != 409 {
		t.Fatalf("scrapping a customer order: got %d, want 409", rec.Code)
	}

	scrap := createTestOrder(t, "Scrap", "Picked", map[string]int{"TYRE-205": 1})
	db.Exec("UPDATE outbound_items SET picked_quantity = 1 WHERE order_id = ?", scrap)
	rec = httptest.NewRecorder()
	handleScrapOrder(rec, authRequest("POST", "/", nil), scrap)
	if rec.Code != 200 {
		t.Fatalf("scrap: %d %s", rec.Code, rec.Body.String())
	}
	var status string
	db.QueryRow("SELECT status FROM outbound_orders WHERE id = ?", scrap).Scan(&status)
	if status != "Scrapped" {
		t.Errorf("status = %q, want Scrapped", status)
	}
}
