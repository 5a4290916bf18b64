package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"wms/internal/audit"
	"wms/internal/auth"
	"wms/internal/models"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	if locked, _ := auth.IsAccountLocked(db, req.Username); locked {
		jsonErr(w, "Account is temporarily locked, try again later", 403)
		return
	}

	var id int
	var passwordHash, displayName, role string
	var active int
	err := db.QueryRow("SELECT id, password_hash, display_name, role, active FROM users WHERE username = ?", req.Username).
		Scan(&id, &passwordHash, &displayName, &role, &active)
	if err != nil {
		jsonErr(w, "Invalid username or password", 401)
		return
	}

	if !auth.CheckPassword(passwordHash, req.Password) {
		auth.IncrementFailedLoginAttempts(db, req.Username)
		jsonErr(w, "Invalid username or password", 401)
		return
	}

	if active == 0 {
		jsonErr(w, "Account deactivated", 403)
		return
	}

	auth.ResetFailedLoginAttempts(db, req.Username)

	// Clean expired sessions
	db.Exec("DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP")

	// Create session with retry
	var token string
	expires := time.Now().Add(24 * time.Hour)
	for i := 0; i < 3; i++ {
		token = generateToken()
		_, err = db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
			token, id, expires.Format("2006-01-02 15:04:05"))
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		jsonErr(w, "Failed to create session", 500)
		return
	}

	db.Exec("UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?", id)
	audit.Log(db, req.Username, audit.ActionLogin, "auth", req.Username, "User logged in")

	http.SetCookie(w, &http.Cookie{
		Name:     "wms_session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"user":       UserResponse{ID: id, Username: req.Username, DisplayName: displayName, Role: role},
		"warehouses": userWarehouses(id),
	})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("wms_session"); err == nil {
		db.Exec("DELETE FROM sessions WHERE token = ?", cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "wms_session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleMe returns the logged-in user plus the selected warehouse context the
// UI keeps across pages (warehouse id, name, and the caller's role in it).
func handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int)
	if userID == 0 {
		jsonErr(w, "Unauthorized", 401)
		return
	}

	var u UserResponse
	err := db.QueryRow("SELECT id, username, COALESCE(display_name,''), role FROM users WHERE id = ?", userID).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role)
	if err != nil {
		jsonErr(w, "Unauthorized", 401)
		return
	}

	resp := map[string]interface{}{
		"user":       u,
		"warehouses": userWarehouses(userID),
	}

	whID := currentWarehouseID(r)
	if whID != 0 {
		var wh models.Warehouse
		if err := db.QueryRow("SELECT id, code, name FROM warehouses WHERE id = ?", whID).
			Scan(&wh.ID, &wh.Code, &wh.Name); err == nil {
			resp["current_warehouse_id"] = wh.ID
			resp["current_warehouse_name"] = wh.Name
			resp["current_warehouse_role"] = currentRole(r)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleSelectWarehouse pins the session to one warehouse. The caller must be
// a member of it.
func handleSelectWarehouse(w http.ResponseWriter, r *http.Request) {
	userID, _ := r.Context().Value(ctxUserID).(int)
	var req struct {
		WarehouseID int `json:"warehouse_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}

	var role string
	err := db.QueryRow("SELECT role FROM warehouse_users WHERE warehouse_id = ? AND user_id = ?",
		req.WarehouseID, userID).Scan(&role)
	if err != nil {
		jsonErr(w, "not a member of that warehouse", 403)
		return
	}

	cookie, err := r.Cookie("wms_session")
	if err != nil {
		jsonErr(w, "Unauthorized", 401)
		return
	}
	if _, err := db.Exec("UPDATE sessions SET warehouse_id = ? WHERE token = ?", req.WarehouseID, cookie.Value); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	var name string
	db.QueryRow("SELECT name FROM warehouses WHERE id = ?", req.WarehouseID).Scan(&name)
	jsonResp(w, map[string]interface{}{
		"current_warehouse_id":   req.WarehouseID,
		"current_warehouse_name": name,
		"current_warehouse_role": role,
	})
}

func userWarehouses(userID int) []models.WarehouseRole {
	rows, err := db.Query(`SELECT w.id, w.code, w.name, wu.role
		FROM warehouse_users wu JOIN warehouses w ON w.id = wu.warehouse_id
		WHERE wu.user_id = ? ORDER BY w.code`, userID)
	if err != nil {
		return []models.WarehouseRole{}
	}
	defer rows.Close()
	var whs []models.WarehouseRole
	for rows.Next() {
		var wr models.WarehouseRole
		rows.Scan(&wr.WarehouseID, &wr.WarehouseCode, &wr.WarehouseName, &wr.Role)
		whs = append(whs, wr)
	}
	if whs == nil {
		whs = []models.WarehouseRole{}
	}
	return whs
}
