package main

import (
	"net/http"
	"strconv"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
)

func handleListDeliveryCompanies(w http.ResponseWriter, r *http.Request) {
	rows, err := db.Query(`SELECT id, name, contact_name, phone, email, active, created_at
		FROM delivery_companies ORDER BY name`)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	companies := []models.DeliveryCompany{}
	for rows.Next() {
		var c models.DeliveryCompany
		rows.Scan(&c.ID, &c.Name, &c.ContactName, &c.Phone, &c.Email, &c.Active, &c.CreatedAt)
		companies = append(companies, c)
	}
	jsonResp(w, companies)
}

type DeliveryCompanyRequest struct {
	Name        string `json:"name"`
	ContactName string `json:"contact_name"`
	Phone       string `json:"phone"`
	Email       string `json:"email"`
	Active      *bool  `json:"active"`
}

func handleCreateDeliveryCompany(w http.ResponseWriter, r *http.Request) {
	var req DeliveryCompanyRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "name", req.Name)
	validation.ValidateEmail(&ve, "email", req.Email)
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	res, err := db.Exec(`INSERT INTO delivery_companies (name, contact_name, phone, email) VALUES (?,?,?,?)`,
		req.Name, req.ContactName, req.Phone, req.Email)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	id, _ := res.LastInsertId()
	audit.Log(db, currentUsername(r), audit.ActionCreate, "delivery_companies", strconv.FormatInt(id, 10), "Created delivery company "+req.Name)
	broadcast("delivery_company", "create", id)
	jsonResp(w, map[string]interface{}{"id": id})
}

func handleUpdateDeliveryCompany(w http.ResponseWriter, r *http.Request, idStr string) {
	id, _ := strconv.Atoi(idStr)
	var current models.DeliveryCompany
	err := db.QueryRow("SELECT id, active FROM delivery_companies WHERE id = ?", id).Scan(&current.ID, &current.Active)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	var req DeliveryCompanyRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "name", req.Name)
	validation.ValidateEmail(&ve, "email", req.Email)
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	active := current.Active
	if req.Active != nil {
		active = *req.Active
	}
	if _, err := db.Exec(`UPDATE delivery_companies SET name = ?, contact_name = ?, phone = ?, email = ?, active = ? WHERE id = ?`,
		req.Name, req.ContactName, req.Phone, req.Email, active, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "delivery_companies", idStr, "Updated delivery company "+req.Name)
	broadcast("delivery_company", "update", id)
	jsonResp(w, map[string]string{"status": "updated"})
}
