package main

import (
	"net/http"
	"strconv"

	"wms/internal/audit"
	"wms/internal/auth"
	"wms/internal/models"
	"wms/internal/validation"
)

func handleListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := db.Query(`SELECT id, username, display_name, role, active, COALESCE(last_login,''), created_at
		FROM users ORDER BY username`)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var u models.User
		rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role, &u.Active, &u.LastLogin, &u.CreatedAt)
		users = append(users, u)
	}
	jsonResp(w, users)
}

type UserRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Active      *bool  `json:"active"`
	// Warehouse memberships with per-warehouse roles.
	Warehouses []struct {
		WarehouseID int    `json:"warehouse_id"`
		Role        string `json:"role"`
	} `json:"warehouses"`
}

func handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "username", req.Username)
	validation.ValidateEnum(&ve, "role", req.Role, validation.ValidWarehouseRoles)
	for i, m := range req.Warehouses {
		validation.ValidateEnum(&ve, "warehouses["+strconv.Itoa(i)+"].role", m.Role, validation.ValidWarehouseRoles)
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		ve.Add("password", err.Error())
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO users (username, password_hash, display_name, role) VALUES (?,?,?,?)`,
		req.Username, hash, req.DisplayName, req.Role)
	if err != nil {
		jsonErr(w, "username already exists", 409)
		return
	}
	id, _ := res.LastInsertId()
	for _, m := range req.Warehouses {
		if _, err := tx.Exec(`INSERT INTO warehouse_users (warehouse_id, user_id, role) VALUES (?,?,?)`,
			m.WarehouseID, id, m.Role); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, currentUsername(r), audit.ActionCreate, "users", strconv.FormatInt(id, 10), "Created user "+req.Username)
	jsonResp(w, map[string]interface{}{"id": id, "username": req.Username})
}

func handleUpdateUser(w http.ResponseWriter, r *http.Request, idStr string) {
	id, _ := strconv.Atoi(idStr)
	var current models.User
	err := db.QueryRow("SELECT id, username, active FROM users WHERE id = ?", id).
		Scan(&current.ID, &current.Username, &current.Active)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	var req UserRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.ValidateEnum(&ve, "role", req.Role, validation.ValidWarehouseRoles)
	for i, m := range req.Warehouses {
		validation.ValidateEnum(&ve, "warehouses["+strconv.Itoa(i)+"].role", m.Role, validation.ValidWarehouseRoles)
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	active := current.Active
	if req.Active != nil {
		active = *req.Active
	}

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE users SET display_name = ?, role = ?, active = ? WHERE id = ?`,
		req.DisplayName, req.Role, active, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if req.Warehouses != nil {
		if _, err := tx.Exec("DELETE FROM warehouse_users WHERE user_id = ?", id); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
		for _, m := range req.Warehouses {
			if _, err := tx.Exec(`INSERT INTO warehouse_users (warehouse_id, user_id, role) VALUES (?,?,?)`,
				m.WarehouseID, id, m.Role); err != nil {
				jsonErr(w, err.Error(), 500)
				return
			}
		}
	}
	if !active {
		// Deactivation kills any live sessions.
		if _, err := tx.Exec("DELETE FROM sessions WHERE user_id = ?", id); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, currentUsername(r), audit.ActionUpdate, "users", idStr, "Updated user "+current.Username)
	jsonResp(w, map[string]string{"status": "updated"})
}

func handleResetPassword(w http.ResponseWriter, r *http.Request, idStr string) {
	id, _ := strconv.Atoi(idStr)
	var username string
	if err := db.QueryRow("SELECT username FROM users WHERE id = ?", id).Scan(&username); err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	var req struct {
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if _, err := db.Exec(`UPDATE users SET password_hash = ?, failed_login_attempts = 0, locked_until = NULL WHERE id = ?`,
		hash, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	// Force a fresh login everywhere.
	db.Exec("DELETE FROM sessions WHERE user_id = ?", id)

	audit.Log(db, currentUsername(r), audit.ActionUpdate, "users", idStr, "Reset password for "+username)
	jsonResp(w, map[string]string{"status": "password reset"})
}
