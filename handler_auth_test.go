package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func loginAs(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := jsonBody(t, map[string]string{"username": username, "password": password})
	r := httptest.NewRequest("POST", "/api/v1/auth/login", body)
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handleLogin(rec, r)
	return rec
}

func TestLogin(t *testing.T) {
	setupTestDB(t)

	rec := loginAs(t, "admin", "admin123")
	if rec.Code != 200 {
		t.Fatalf("login: %d %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		User       UserResponse `json:"user"`
		Warehouses []struct {
			WarehouseCode string `json:"warehouse_code"`
		} `json:"warehouses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.User.Username != "admin" || resp.User.Role != "admin" {
		t.Errorf("user = %+v", resp.User)
	}
	if len(resp.Warehouses) != 1 || resp.Warehouses[0].WarehouseCode != "MAIN" {
		t.Errorf("warehouses = %+v", resp.Warehouses)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "wms_session" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" || !sessionCookie.HttpOnly {
		t.Error("session cookie missing or not HttpOnly")
	}
}

func TestLoginBadPassword(t *testing.T) {
	setupTestDB(t)
	rec := loginAs(t, "admin", "nope")
	if rec.Code != 401 {
		t.Fatalf("bad password: got %d, want 401", rec.Code)
	}
	var attempts int
	db.QueryRow("SELECT failed_login_attempts FROM users WHERE username='admin'").Scan(&attempts)
	if attempts != 1 {
		t.Errorf("failed_login_attempts = %d, want 1", attempts)
	}
}

func TestLoginLockout(t *testing.T) {
	setupTestDB(t)
	for i := 0; i < 10; i++ {
		loginAs(t, "admin", "nope")
	}
	rec := loginAs(t, "admin", "admin123")
	if rec.Code != 403 {
		t.Fatalf("locked account: got %d, want 403", rec.Code)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	setupTestDB(t)
	rec := loginAs(t, "ghost", "whatever")
	if rec.Code != 401 {
		t.Fatalf("unknown user: got %d, want 401", rec.Code)
	}
}

func TestSelectWarehouse(t *testing.T) {
	setupTestDB(t)
	rec := loginAs(t, "admin", "admin123")
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "wms_session" {
			token = c.Value
		}
	}

	body := jsonBody(t, map[string]int{"warehouse_id": 1})
	r := authRequest("POST", "/api/v1/auth/warehouse", body)
	r.AddCookie(&http.Cookie{Name: "wms_session", Value: token})
	out := httptest.NewRecorder()
	handleSelectWarehouse(out, r)
	if out.Code != 200 {
		t.Fatalf("select warehouse: %d %s", out.Code, out.Body.String())
	}

	var sel struct {
		Name string `json:"current_warehouse_name"`
		Role string `json:"current_warehouse_role"`
	}
	decodeData(t, out, &sel)
	if sel.Role != "admin" {
		t.Errorf("selection = %+v", sel)
	}

	var whID int
	db.QueryRow("SELECT warehouse_id FROM sessions WHERE token = ?", token).Scan(&whID)
	if whID != 1 {
		t.Errorf("session warehouse = %d, want 1", whID)
	}
}

func TestSelectWarehouseRequiresMembership(t *testing.T) {
	setupTestDB(t)
	db.Exec("INSERT INTO warehouses (code, name) VALUES ('WH2', 'Second')")
	rec := loginAs(t, "admin", "admin123")
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "wms_session" {
			token = c.Value
		}
	}

	body := jsonBody(t, map[string]int{"warehouse_id": 2})
	r := authRequest("POST", "/api/v1/auth/warehouse", body)
	r.AddCookie(&http.Cookie{Name: "wms_session", Value: token})
	out := httptest.NewRecorder()
	handleSelectWarehouse(out, r)
	if out.Code != 403 {
		t.Fatalf("non-member warehouse: got %d, want 403", out.Code)
	}
}

func TestLogout(t *testing.T) {
	setupTestDB(t)
	rec := loginAs(t, "admin", "admin123")
	var token string
	for _, c := range rec.Result().Cookies() {
		if c.Name == "wms_session" {
			token = c.Value
		}
	}

	r := httptest.NewRequest("POST", "/api/v1/auth/logout", nil)
	r.AddCookie(&http.Cookie{Name: "wms_session", Value: token})
	out := httptest.NewRecorder()
	handleLogout(out, r)

	var count int
	db.QueryRow("SELECT COUNT(*) FROM sessions WHERE token = ?", token).Scan(&count)
	if count != 0 {
		t.Errorf("session survived logout")
	}
}
