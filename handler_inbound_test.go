package main

import (
	"net/http/httptest"
	"strings"
	"testing"

	"wms/internal/models"
)

func createTestInbound(t *testing.T, lines map[string]int) string {
	t.Helper()
	items := []map[string]interface{}{}
	for item, qty := range lines {
		items = append(items, map[string]interface{}{"item_number": item, "expected_quantity": qty, "batch_number": "B9", "dot_code": "1224"})
	}
	body := jsonBody(t, map[string]interface{}{
		"supplier": "Acme Tyres", "expected_date": "2026-09-15", "items": items,
	})
	rec := httptest.NewRecorder()
	handleCreateInbound(rec, authRequest("POST", "/api/v1/inbound", body))
	if rec.Code != 200 {
		t.Fatalf("create inbound: %d %s", rec.Code, rec.Body.String())
	}
	var s models.InboundShipment
	decodeData(t, rec, &s)
	return s.ID
}

func TestCreateInbound(t *testing.T) {
	setupTestDB(t)
	id := createTestInbound(t, map[string]int{"TYRE-205": 30})
	if id != "INB-0001" {
		t.Errorf("id = %q, want INB-0001", id)
	}
	s, err := getInbound(id)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status != "Expected" || len(s.Items) != 1 {
		t.Errorf("shipment = %+v", s)
	}
}

func TestCreateInboundValidation(t *testing.T) {
	setupTestDB(t)
	body := jsonBody(t, map[string]interface{}{
		"supplier": "Acme Tyres",
		"items": []map[string]interface{}{
			{"item_number": "TYRE-205", "expected_quantity": 10},
			{"item_number": "", "expected_quantity": 0},
		},
	})
	rec := httptest.NewRecorder()
	handleCreateInbound(rec, authRequest("POST", "/api/v1/inbound", body))
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	msg := responseError(t, rec)
	for _, want := range []string{"items[1].item_number", "items[1].expected_quantity"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should name %s", msg, want)
		}
	}
}

func TestCreateInboundUnknownItem(t *testing.T) {
	setupTestDB(t)
	body := jsonBody(t, map[string]interface{}{
		"supplier": "Acme Tyres",
		"items":    []map[string]interface{}{{"item_number": "TYRE-999", "expected_quantity": 5}},
	})
	rec := httptest.NewRecorder()
	handleCreateInbound(rec, authRequest("POST", "/api/v1/inbound", body))
	if rec.Code != 400 || !strings.Contains(responseError(t, rec), "items[0]") {
		t.Fatalf("unknown item: %d %s", rec.Code, rec.Body.String())
	}
}

func TestReceiveInbound(t *testing.T) {
	setupTestDB(t)
	id := createTestInbound(t, map[string]int{"TYRE-205": 30})
	s, _ := getInbound(id)
	lineID := s.Items[0].ID

	receive := func(qty int) *httptest.ResponseRecorder {
		body := jsonBody(t, map[string]interface{}{"inbound_item_id": lineID, "quantity": qty, "location_id": 1})
		rec := httptest.NewRecorder()
		handleReceiveInbound(rec, authRequest("POST", "/", body), id)
		return rec
	}

	if rec := receive(20); rec.Code != 200 {
		t.Fatalf("receive: %d %s", rec.Code, rec.Body.String())
	}
	s, _ = getInbound(id)
	if s.Status != "Receiving" {
		t.Fatalf("after short receipt status = %q", s.Status)
	}

	if rec := receive(10); rec.Code != 200 {
		t.Fatalf("receive: %d %s", rec.Code, rec.Body.String())
	}
	s, _ = getInbound(id)
	if s.Status != "Received" || s.Items[0].ReceivedQuantity != 30 {
		t.Fatalf("shipment = %+v", s)
	}

	// Line defaults carry onto the stock record.
	var qty int
	db.QueryRow(`SELECT quantity FROM inventory WHERE item_number='TYRE-205' AND location_id=1 AND batch_number='B9' AND dot_code='1224'`).Scan(&qty)
	if qty != 30 {
		t.Errorf("received stock = %d, want 30", qty)
	}
}

func TestReceiveRejectsStorageLocation(t *testing.T) {
	setupTestDB(t)
	id := createTestInbound(t, map[string]int{"TYRE-205": 10})
	s, _ := getInbound(id)
	body := jsonBody(t, map[string]interface{}{"inbound_item_id": s.Items[0].ID, "quantity": 10, "location_id": 2})
	rec := httptest.NewRecorder()
	handleReceiveInbound(rec, authRequest("POST", "/", body), id)
	if rec.Code != 400 || !strings.Contains(responseError(t, rec), "receiving location") {
		t.Fatalf("receive into storage: %d %s", rec.Code, rec.Body.String())
	}
}

func TestPutaway(t *testing.T) {
	setupTestDB(t)
	id := createTestInbound(t, map[string]int{"TYRE-225": 25})
	s, _ := getInbound(id)
	lineID := s.Items[0].ID

	body := jsonBody(t, map[string]interface{}{"inbound_item_id": lineID, "quantity": 25, "location_id": 1})
	rec := httptest.NewRecorder()
	handleReceiveInbound(rec, authRequest("POST", "/", body), id)
	if rec.Code != 200 {
		t.Fatalf("receive: %d %s", rec.Code, rec.Body.String())
	}

	// Putting away more than was received fails.
	body = jsonBody(t, map[string]interface{}{"inbound_item_id": lineID, "quantity": 26, "from_location_id": 1, "to_location_id": 3})
	rec = httptest.NewRecorder()
	handlePutaway(rec, authRequest("POST", "/", body), id)
	if rec.Code != 400 {
		t.Fatalf("over-putaway: got %d", rec.Code)
	}

	// A-02 has no capacity set, so it cannot accept stock.
	body = jsonBody(t, map[string]interface{}{"inbound_item_id": lineID, "quantity": 25, "from_location_id": 1, "to_location_id": 3})
	rec = httptest.NewRecorder()
	handlePutaway(rec, authRequest("POST", "/", body), id)
	if rec.Code != 400 {
		t.Fatalf("putaway to location without capacity set: got %d %s", rec.Code, rec.Body.String())
	}

	// A-01 holds 100 with 70 already slotted; 25 more fits.
	body = jsonBody(t, map[string]interface{}{"inbound_item_id": lineID, "quantity": 25, "from_location_id": 1, "to_location_id": 2})
	rec = httptest.NewRecorder()
	handlePutaway(rec, authRequest("POST", "/", body), id)
	if rec.Code != 200 {
		t.Fatalf("putaway: %d %s", rec.Code, rec.Body.String())
	}

	s, _ = getInbound(id)
	if s.Status != "Put Away" {
		t.Errorf("status = %q, want Put Away", s.Status)
	}
	var recQty int
	db.QueryRow(`SELECT COALESCE(SUM(quantity),0) FROM inventory WHERE location_id = 1 AND item_number = 'TYRE-225'`).Scan(&recQty)
	if recQty != 0 {
		t.Errorf("receiving location still holds %d units", recQty)
	}
}

func TestCancelInbound(t *testing.T) {
	setupTestDB(t)
	id := createTestInbound(t, map[string]int{"TYRE-205": 10})

	rec := httptest.NewRecorder()
	handleCancelInbound(rec, authRequest("POST", "/", nil), id)
	if rec.Code != 200 {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}

	// Once receiving has begun the shipment cannot be cancelled.
	id2 := createTestInbound(t, map[string]int{"TYRE-205": 10})
	setInboundStatus(id2, "Receiving")
	rec = httptest.NewRecorder()
	handleCancelInbound(rec, authRequest("POST", "/", nil), id2)
	if rec.Code != 409 {
		t.Fatalf("cancel while receiving: got %d, want 409", rec.Code)
	}
}
