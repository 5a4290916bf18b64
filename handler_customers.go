package main

import (
	"net/http"
	"strings"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
)

func handleListCustomers(w http.ResponseWriter, r *http.Request) {
	where := "1=1"
	args := []interface{}{}
	if v := r.URL.Query().Get("search"); v != "" {
		where = "(id LIKE ? OR name LIKE ? OR city LIKE ?)"
		like := "%" + v + "%"
		args = append(args, like, like, like)
	}
	rows, err := db.Query(`SELECT id, name, contact_name, contact_phone, contact_email, address, city, notes, created_at
		FROM customers WHERE `+where+` ORDER BY name`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	customers := []models.Customer{}
	for rows.Next() {
		var c models.Customer
		rows.Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactPhone, &c.ContactEmail, &c.Address, &c.City, &c.Notes, &c.CreatedAt)
		customers = append(customers, c)
	}
	jsonResp(w, customers)
}

type CustomerRequest struct {
	Name         string `json:"name"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Notes        string `json:"notes"`
}

func validateCustomerRequest(req *CustomerRequest) *validation.ValidationErrors {
	var ve validation.ValidationErrors
	req.Name = strings.TrimSpace(req.Name)
	validation.RequireField(&ve, "name", req.Name)
	validation.ValidateMaxLength(&ve, "name", req.Name, 200)
	validation.ValidateEmail(&ve, "contact_email", req.ContactEmail)
	return &ve
}

func handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	if ve := validateCustomerRequest(&req); ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	id := nextID("CUST", "customers", 4)
	if _, err := db.Exec(`INSERT INTO customers (id, name, contact_name, contact_phone, contact_email, address, city, notes)
		VALUES (?,?,?,?,?,?,?,?)`,
		id, req.Name, req.ContactName, req.ContactPhone, req.ContactEmail, req.Address, req.City, req.Notes); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionCreate, "customers", id, "Created customer "+req.Name)
	broadcast("customer", "create", id)
	jsonResp(w, map[string]string{"id": id})
}

func handleGetCustomer(w http.ResponseWriter, r *http.Request, id string) {
	var c models.Customer
	err := db.QueryRow(`SELECT id, name, contact_name, contact_phone, contact_email, address, city, notes, created_at
		FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.ContactName, &c.ContactPhone, &c.ContactEmail, &c.Address, &c.City, &c.Notes, &c.CreatedAt)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	jsonResp(w, c)
}

func handleUpdateCustomer(w http.ResponseWriter, r *http.Request, id string) {
	var exists int
	if err := db.QueryRow("SELECT 1 FROM customers WHERE id = ?", id).Scan(&exists); err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	var req CustomerRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	if ve := validateCustomerRequest(&req); ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	if _, err := db.Exec(`UPDATE customers SET name = ?, contact_name = ?, contact_phone = ?, contact_email = ?,
		address = ?, city = ?, notes = ? WHERE id = ?`,
		req.Name, req.ContactName, req.ContactPhone, req.ContactEmail, req.Address, req.City, req.Notes, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "customers", id, "Updated customer "+req.Name)
	broadcast("customer", "update", id)
	jsonResp(w, map[string]string{"id": id})
}

func handleDeleteCustomer(w http.ResponseWriter, r *http.Request, id string) {
	var open int
	db.QueryRow(`SELECT COUNT(*) FROM outbound_orders WHERE customer_id = ?
		AND status NOT IN ('Delivered','Shipped','Cancelled','Returned','Partially Returned','Scrapped')`, id).Scan(&open)
	if open > 0 {
		jsonErr(w, "customer has open orders", 409)
		return
	}
	res, err := db.Exec("DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "not found", 404)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionDelete, "customers", id, "Deleted customer "+id)
	broadcast("customer", "delete", id)
	jsonResp(w, map[string]string{"status": "deleted"})
}
