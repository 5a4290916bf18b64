package main

import (
	"net/http"
	"strconv"
	"strings"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
)

func handleListWarehouses(w http.ResponseWriter, r *http.Request) {
	rows, err := db.Query("SELECT id, code, name, address, created_at FROM warehouses ORDER BY code")
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	warehouses := []models.Warehouse{}
	for rows.Next() {
		var wh models.Warehouse
		rows.Scan(&wh.ID, &wh.Code, &wh.Name, &wh.Address, &wh.CreatedAt)
		warehouses = append(warehouses, wh)
	}
	jsonResp(w, warehouses)
}

func handleCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code    string `json:"code"`
		Name    string `json:"name"`
		Address string `json:"address"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "code", req.Code)
	validation.RequireField(&ve, "name", req.Name)
	validation.ValidateMaxLength(&ve, "code", req.Code, 20)
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	res, err := db.Exec("INSERT INTO warehouses (code, name, address) VALUES (?,?,?)",
		req.Code, req.Name, req.Address)
	if err != nil {
		jsonErr(w, "warehouse code already exists", 409)
		return
	}
	id, _ := res.LastInsertId()

	audit.Log(db, currentUsername(r), audit.ActionCreate, "warehouses", strconv.FormatInt(id, 10), "Created warehouse "+req.Code)
	broadcast("warehouse", "create", id)
	jsonResp(w, map[string]interface{}{"id": id, "code": req.Code})
}
