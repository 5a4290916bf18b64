package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func scanType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out struct {
		Type string `json:"type"`
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	json.Unmarshal(rec.Body.Bytes(), &envelope)
	json.Unmarshal(envelope.Data, &out)
	return out.Type
}

func TestScanLookup(t *testing.T) {
	setupTestDB(t)
	orderID := createTestOrder(t, "Customer", "New", map[string]int{"TYRE-205": 1})

	cases := []struct {
		code string
		want string
	}{
		{"TYRE-205", "item"},
		{"A-01", "location"},
		{orderID, "order"},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		handleScanLookup(rec, authRequest("GET", "/", nil), c.code)
		if rec.Code != 200 {
			t.Errorf("scan %q: %d %s", c.code, rec.Code, rec.Body.String())
			continue
		}
		if got := scanType(t, rec); got != c.want {
			t.Errorf("scan %q resolved to %q, want %q", c.code, got, c.want)
		}
	}

	rec := httptest.NewRecorder()
	handleScanLookup(rec, authRequest("GET", "/", nil), "UNKNOWN-CODE")
	if rec.Code != 404 {
		t.Errorf("unknown code: got %d, want 404", rec.Code)
	}
}

func TestScanLookupItemOnHand(t *testing.T) {
	setupTestDB(t)
	rec := httptest.NewRecorder()
	handleScanLookup(rec, authRequest("GET", "/", nil), "TYRE-205")
	var out struct {
		OnHand int `json:"on_hand"`
	}
	decodeData(t, rec, &out)
	if out.OnHand != 50 {
		t.Errorf("on_hand = %d, want 50", out.OnHand)
	}
}
