package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

// setupTestDB initializes a throwaway per-test database with the full schema and the
// seed admin/MAIN warehouse, then layers the common fixtures on top:
// locations of each type, two items, a customer and stock slices across two
// DOT codes.
func setupTestDB(t *testing.T) {
	t.Helper()
	if err := initDB(filepath.Join(t.TempDir(), "test.db")); err != nil {
		t.Fatalf("initDB: %v", err)
	}
	seedDB()

	fixtures := []string{
		`INSERT INTO locations (warehouse_id, code, type, max_capacity_units) VALUES (1, 'REC-01', 'receiving', 1000)`,
		`INSERT INTO locations (warehouse_id, code, type, max_capacity_units) VALUES (1, 'A-01', 'storage', 100)`,
		`INSERT INTO locations (warehouse_id, code, type, max_capacity_units) VALUES (1, 'A-02', 'storage', NULL)`,
		`INSERT INTO locations (warehouse_id, code, type, max_capacity_units) VALUES (1, 'STG-01', 'staging', 50)`,
		`INSERT INTO items (item_number, description, brand) VALUES ('TYRE-205', '205/55R16 all-season', 'Acme')`,
		`INSERT INTO items (item_number, description, brand) VALUES ('TYRE-225', '225/45R17 summer', 'Acme')`,
		`INSERT INTO customers (id, name, city) VALUES ('CUST-0001', 'City Motors', 'Springfield')`,
		`INSERT INTO inventory (warehouse_id, item_number, location_id, batch_number, dot_code, quantity)
			VALUES (1, 'TYRE-205', 2, 'B1', '0124', 40)`,
		`INSERT INTO inventory (warehouse_id, item_number, location_id, batch_number, dot_code, quantity)
			VALUES (1, 'TYRE-205', 2, 'B2', '4823', 10)`,
		`INSERT INTO inventory (warehouse_id, item_number, location_id, batch_number, dot_code, quantity)
			VALUES (1, 'TYRE-225', 2, 'B1', '0224', 20)`,
	}
	for _, f := range fixtures {
		if _, err := db.Exec(f); err != nil {
			t.Fatalf("fixture failed: %v\n%s", err, f)
		}
	}
	uploadsDir = t.TempDir()
}

// authRequest builds a request carrying the session context the middleware
// would have attached.
func authRequest(method, path string, body io.Reader) *http.Request {
	return authRequestAs(method, path, body, "admin", "admin", 1)
}

func authRequestAs(method, path string, body io.Reader, username, role string, warehouseID int) *http.Request {
	r := httptest.NewRequest(method, path, body)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	ctx := context.WithValue(r.Context(), ctxUserID, 1)
	ctx = context.WithValue(ctx, ctxUsername, username)
	ctx = context.WithValue(ctx, ctxRole, role)
	ctx = context.WithValue(ctx, ctxWarehouseID, warehouseID)
	return r.WithContext(ctx)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return &buf
}

// decodeData unmarshals the data field of the standard response envelope.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v\n%s", err, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v\n%s", err, rec.Body.String())
		}
	}
}

func responseError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error string `json:"error"`
	}
	json.Unmarshal(rec.Body.Bytes(), &envelope)
	return envelope.Error
}

// createTestOrder inserts an outbound order directly and returns its ID.
func createTestOrder(t *testing.T, orderType, status string, lines map[string]int) string {
	t.Helper()
	id := nextID("ORD", "outbound_orders", 4)
	_, err := db.Exec(`INSERT INTO outbound_orders (id, warehouse_id, customer_id, order_type, status, created_by)
		VALUES (?, 1, 'CUST-0001', ?, ?, 'admin')`, id, orderType, status)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	for item, qty := range lines {
		if _, err := db.Exec(`INSERT INTO outbound_items (order_id, item_number, ordered_quantity) VALUES (?,?,?)`,
			id, item, qty); err != nil {
			t.Fatalf("create order line: %v", err)
		}
	}
	return id
}

// multipartUpload builds a multipart form from fields plus file parts, each
// file holding a small stand-in payload under the given filename.
func multipartUpload(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, filename := range files {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("write file part: %v", err)
		}
		fw.Write([]byte("document bytes"))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}
