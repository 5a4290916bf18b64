package main

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func seedDriverFixtures(t *testing.T) {
	t.Helper()
	stmts := []string{
		`INSERT INTO drivers (warehouse_id, name, mobile, license_number, active) VALUES (1, 'Sam Porter', '0501234567', 'DL-100', 1)`,
		`INSERT INTO drivers (warehouse_id, name, mobile, license_number, active) VALUES (1, 'Idle Driver', '0507654321', 'DL-101', 0)`,
		`INSERT INTO delivery_companies (name, contact_name, phone, active) VALUES ('Swift Freight', 'Dispatch', '0509999999', 1)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("driver fixture: %v", err)
		}
	}
}

func TestAssignInHouseDriver(t *testing.T) {
	setupTestDB(t)
	seedDriverFixtures(t)
	id := createTestOrder(t, "Customer", "Staged", map[string]int{"TYRE-205": 5})

	rec := httptest.NewRecorder()
	handleAssignDriver(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"driver_id": 1})), id)
	if rec.Code != 200 {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Status string `json:"status"`
		Driver string `json:"driver"`
	}
	decodeData(t, rec, &out)
	if out.Status != "Assigned" || out.Driver != "Sam Porter" {
		t.Errorf("assign response = %+v", out)
	}

	a := getActiveAssignment(id)
	if a == nil || a.Type != "in_house" || a.DriverName != "Sam Porter" {
		t.Errorf("assignment = %+v", a)
	}
}

func TestAssignInactiveDriver(t *testing.T) {
	setupTestDB(t)
	seedDriverFixtures(t)
	id := createTestOrder(t, "Customer", "Staged", map[string]int{"TYRE-205": 5})

	rec := httptest.NewRecorder()
	handleAssignDriver(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"driver_id": 2})), id)
	if rec.Code != 400 || !strings.Contains(responseError(t, rec), "not active") {
		t.Fatalf("inactive driver: %d %s", rec.Code, rec.Body.String())
	}
}

func TestAssignDriverRequiresStagedOrder(t *testing.T) {
	setupTestDB(t)
	seedDriverFixtures(t)
	id := createTestOrder(t, "Customer", "New", map[string]int{"TYRE-205": 5})

	rec := httptest.NewRecorder()
	handleAssignDriver(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"driver_id": 1})), id)
	if rec.Code != 409 {
		t.Fatalf("assign on new order: got %d, want 409", rec.Code)
	}
}

func TestAssignThirdPartyCrew(t *testing.T) {
	setupTestDB(t)
	seedDriverFixtures(t)
	id := createTestOrder(t, "Customer", "Staged", map[string]int{"TYRE-205": 5})

	body, ct := multipartUpload(t, map[string]string{
		"company_id":   "1",
		"driver_count": "2",
		"drivers[0][name]":           "Lee Chan",
		"drivers[0][mobile]":         "0502223344",
		"drivers[0][waybill_number]": "WB-001",
		"drivers[1][name]":           "Ana Cruz",
		"drivers[1][mobile]":         "0503334455",
		"drivers[1][waybill_number]": "WB-002",
	}, map[string]string{
		"drivers[0][id_file]":      "id0.jpg",
		"drivers[0][license_file]": "lic0.pdf",
		"drivers[1][id_file]":      "id1.jpg",
		"drivers[1][license_file]": "lic1.pdf",
	})
	r := authRequest("POST", "/", body)
	r.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	handleAssignDriver(rec, r, id)
	if rec.Code != 200 {
		t.Fatalf("assign third party: %d %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Status         string `json:"status"`
		TrackingNumber string `json:"tracking_number"`
		PickupURL      string `json:"pickup_url"`
	}
	decodeData(t, rec, &out)
	if out.Status != "Ready for Pickup" {
		t.Errorf("status = %q, want Ready for Pickup", out.Status)
	}
	if out.TrackingNumber == "" || !strings.Contains(out.PickupURL, out.TrackingNumber) {
		t.Errorf("tracking links = %+v", out)
	}

	a := getActiveAssignment(id)
	if a == nil || a.Type != "third_party" || len(a.Drivers) != 2 {
		t.Fatalf("assignment = %+v", a)
	}
	if a.Drivers[1].WaybillNumber != "WB-002" {
		t.Errorf("crew = %+v", a.Drivers)
	}
}

func TestAssignThirdPartyCrewValidation(t *testing.T) {
	setupTestDB(t)
	seedDriverFixtures(t)
	id := createTestOrder(t, "Customer", "Staged", map[string]int{"TYRE-205": 5})

	// The second crew member has no waybill, a bad mobile and no documents.
	body, ct := multipartUpload(t, map[string]string{
		"company_id":   "1",
		"driver_count": "2",
		"drivers[0][name]":           "Lee Chan",
		"drivers[0][mobile]":         "0502223344",
		"drivers[0][waybill_number]": "WB-001",
		"drivers[1][name]":           "Ana Cruz",
		"drivers[1][mobile]":         "abc",
	}, map[string]string{
		"drivers[0][id_file]":      "id0.jpg",
		"drivers[0][license_file]": "lic0.pdf",
	})
	r := authRequest("POST", "/", body)
	r.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	handleAssignDriver(rec, r, id)
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
	}
	msg := responseError(t, rec)
	wants := []string{
		"drivers[1].mobile",
		"drivers[1].waybill_number",
		"drivers[1].id_file",
		"drivers[1].license_file",
	}
	for _, want := range wants {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q should name %s", msg, want)
		}
	}
}

func TestChangeDriverReplacesAssignment(t *testing.T) {
	setupTestDB(t)
	seedDriverFixtures(t)
	db.Exec(`INSERT INTO drivers (warehouse_id, name, mobile, license_number, active) VALUES (1, 'Backup Driver', '0508887766', 'DL-102', 1)`)
	id := createTestOrder(t, "Customer", "Staged", map[string]int{"TYRE-205": 5})

	rec := httptest.NewRecorder()
	handleAssignDriver(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"driver_id": 1})), id)
	if rec.Code != 200 {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	handleChangeDriver(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"driver_id": 3})), id)
	if rec.Code != 200 {
		t.Fatalf("change: %d %s", rec.Code, rec.Body.String())
	}

	a := getActiveAssignment(id)
	if a == nil || a.DriverName != "Backup Driver" {
		t.Fatalf("active assignment = %+v", a)
	}
	var replaced int
	db.QueryRow("SELECT COUNT(*) FROM assignments WHERE order_id = ? AND status = 'replaced'", id).Scan(&replaced)
	if replaced != 1 {
		t.Errorf("replaced assignments = %d, want 1", replaced)
	}
}

func TestChangeDriverRejectedKeepsOriginal(t *testing.T) {
	setupTestDB(t)
	seedDriverFixtures(t)
	id := createTestOrder(t, "Customer", "Staged", map[string]int{"TYRE-205": 5})

	rec := httptest.NewRecorder()
	handleAssignDriver(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"driver_id": 1})), id)
	if rec.Code != 200 {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}

	// A replacement that fails validation must leave the original assignment
	// untouched.
	rec = httptest.NewRecorder()
	handleChangeDriver(rec, authRequest("POST", "/", jsonBody(t, map[string]int{"driver_id": 99})), id)
	if rec.Code != 400 || !strings.Contains(responseError(t, rec), "driver not found") {
		t.Fatalf("change to unknown driver: %d %s", rec.Code, rec.Body.String())
	}

	a := getActiveAssignment(id)
	if a == nil || a.DriverName != "Sam Porter" {
		t.Fatalf("active assignment after rejected change = %+v", a)
	}
	var replaced int
	db.QueryRow("SELECT COUNT(*) FROM assignments WHERE order_id = ? AND status = 'replaced'", id).Scan(&replaced)
	if replaced != 0 {
		t.Errorf("replaced assignments = %d, want 0", replaced)
	}
}

func TestTrackingPage(t *testing.T) {
	setupTestDB(t)
	seedDriverFixtures(t)
	id := createTestOrder(t, "Customer", "Staged", map[string]int{"TYRE-205": 5})

	body, ct := multipartUpload(t, map[string]string{
		"company_id": "1", "driver_count": "1",
		"drivers[0][name]":           "Lee Chan",
		"drivers[0][mobile]":         "0502223344",
		"drivers[0][waybill_number]": "WB-001",
	}, map[string]string{
		"drivers[0][id_file]":      "id0.jpg",
		"drivers[0][license_file]": "lic0.pdf",
	})
	r := authRequest("POST", "/", body)
	r.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	handleAssignDriver(rec, r, id)
	var out struct {
		TrackingNumber string `json:"tracking_number"`
	}
	decodeData(t, rec, &out)

	// The tracking page is public; no session context attached.
	rec = httptest.NewRecorder()
	handleTracking(rec, httptest.NewRequest("GET", "/track/pickup?tn="+out.TrackingNumber, nil), "pickup")
	if rec.Code != 200 {
		t.Fatalf("tracking: %d", rec.Code)
	}
	page := rec.Body.String()
	if !strings.Contains(page, id) || !strings.Contains(page, "Pickup") {
		t.Errorf("tracking page missing order details")
	}

	rec = httptest.NewRecorder()
	handleTracking(rec, httptest.NewRequest("GET", "/track/pickup?tn=nope", nil), "pickup")
	if rec.Code != 404 {
		t.Errorf("unknown tracking number: got %d, want 404", rec.Code)
	}
}
