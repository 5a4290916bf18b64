package main

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
	"wms/internal/workflow"
)

func handleListDrivers(w http.ResponseWriter, r *http.Request) {
	rows, err := db.Query(`SELECT id, warehouse_id, name, mobile, license_number, active, created_at
		FROM drivers WHERE warehouse_id = ? ORDER BY name`, currentWarehouseID(r))
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	drivers := []models.Driver{}
	for rows.Next() {
		var d models.Driver
		rows.Scan(&d.ID, &d.WarehouseID, &d.Name, &d.Mobile, &d.LicenseNumber, &d.Active, &d.CreatedAt)
		drivers = append(drivers, d)
	}
	jsonResp(w, drivers)
}

type DriverRequest struct {
	Name          string `json:"name"`
	Mobile        string `json:"mobile"`
	LicenseNumber string `json:"license_number"`
	Active        *bool  `json:"active"`
}

func handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	var req DriverRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "name", req.Name)
	validation.ValidateMobile(&ve, "mobile", req.Mobile)
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	res, err := db.Exec(`INSERT INTO drivers (warehouse_id, name, mobile, license_number) VALUES (?,?,?,?)`,
		currentWarehouseID(r), req.Name, req.Mobile, req.LicenseNumber)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	id, _ := res.LastInsertId()
	audit.Log(db, currentUsername(r), audit.ActionCreate, "drivers", strconv.FormatInt(id, 10), "Created driver "+req.Name)
	broadcast("driver", "create", id)
	jsonResp(w, map[string]interface{}{"id": id})
}

func handleUpdateDriver(w http.ResponseWriter, r *http.Request, idStr string) {
	id, _ := strconv.Atoi(idStr)
	var d models.Driver
	err := db.QueryRow("SELECT id, warehouse_id, name, mobile, license_number, active FROM drivers WHERE id = ?", id).
		Scan(&d.ID, &d.WarehouseID, &d.Name, &d.Mobile, &d.LicenseNumber, &d.Active)
	if err != nil || d.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	var req DriverRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var ve validation.ValidationErrors
	validation.RequireField(&ve, "name", req.Name)
	validation.ValidateMobile(&ve, "mobile", req.Mobile)
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	active := d.Active
	if req.Active != nil {
		active = *req.Active
	}
	if _, err := db.Exec(`UPDATE drivers SET name = ?, mobile = ?, license_number = ?, active = ? WHERE id = ?`,
		req.Name, req.Mobile, req.LicenseNumber, active, id); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionUpdate, "drivers", idStr, "Updated driver "+req.Name)
	broadcast("driver", "update", id)
	jsonResp(w, map[string]string{"status": "updated"})
}

// getActiveAssignment returns the order's active assignment with its crew,
// or nil when no driver is assigned.
func getActiveAssignment(orderID string) *models.Assignment {
	var a models.Assignment
	err := db.QueryRow(`SELECT a.id, a.order_id, a.type, a.driver_id, COALESCE(d.name,''), a.company_id, COALESCE(c.name,''),
		a.tracking_number, a.status, a.created_at
		FROM assignments a
		LEFT JOIN drivers d ON d.id = a.driver_id
		LEFT JOIN delivery_companies c ON c.id = a.company_id
		WHERE a.order_id = ? AND a.status = 'active'`, orderID).
		Scan(&a.ID, &a.OrderID, &a.Type, &a.DriverID, &a.DriverName, &a.CompanyID, &a.CompanyName,
			&a.TrackingNumber, &a.Status, &a.CreatedAt)
	if err != nil {
		return nil
	}
	rows, err := db.Query(`SELECT id, assignment_id, name, mobile, waybill_number, id_file, license_file
		FROM assignment_drivers WHERE assignment_id = ? ORDER BY id`, a.ID)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var d models.AssignmentDriver
			rows.Scan(&d.ID, &d.AssignmentID, &d.Name, &d.Mobile, &d.WaybillNumber, &d.IDFile, &d.LicenseFile)
			a.Drivers = append(a.Drivers, d)
		}
	}
	return &a
}

// crewDriver is one third-party crew member parsed from the multipart form.
type crewDriver struct {
	Name          string
	Mobile        string
	WaybillNumber string
	IDFile        string
	LicenseFile   string
}

func saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile {
			return "", nil
		}
		return "", err
	}
	defer file.Close()

	var ve validation.ValidationErrors
	validation.ValidateFileUpload(&ve, field, header.Filename, header.Size)
	if ve.HasErrors() {
		return "", &ve
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(validation.SanitizeFilename(header.Filename)))
	dst, err := os.Create(filepath.Join(uploadsDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", err
	}
	return name, nil
}

func handleAssignDriver(w http.ResponseWriter, r *http.Request, orderID string) {
	o, err := getOrder(orderID)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	st := orderState(o, currentRole(r))
	if !workflow.Can(workflow.ActionAssignDriver, st) {
		jsonErr(w, (&workflow.TransitionError{Action: workflow.ActionAssignDriver, Status: o.Status}).Error(), 409)
		return
	}

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		assignThirdParty(w, r, o, 0)
		return
	}
	assignInHouse(w, r, o, 0)
}

// assignInHouse assigns an employed driver. A non-zero replaceID retires that
// assignment in the same transaction, so a rejected replacement leaves the
// original active.
func assignInHouse(w http.ResponseWriter, r *http.Request, o *models.OutboundOrder, replaceID int) {
	var req struct {
		DriverID int `json:"driver_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	var d models.Driver
	err := db.QueryRow("SELECT id, warehouse_id, name, active FROM drivers WHERE id = ?", req.DriverID).
		Scan(&d.ID, &d.WarehouseID, &d.Name, &d.Active)
	if err != nil || d.WarehouseID != o.WarehouseID {
		jsonErr(w, "driver not found", 400)
		return
	}
	if !d.Active {
		jsonErr(w, "driver is not active", 400)
		return
	}

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()
	if replaceID != 0 {
		if _, err := tx.Exec("UPDATE assignments SET status = 'replaced' WHERE id = ?", replaceID); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	if _, err := tx.Exec(`INSERT INTO assignments (order_id, type, driver_id) VALUES (?, 'in_house', ?)`,
		o.ID, req.DriverID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	newStatus := workflow.AssignmentStatus("in_house")
	setOrderStatus(o.ID, newStatus)

	audit.Log(db, currentUsername(r), audit.ActionUpdate, "drivers", o.ID, "Assigned driver "+d.Name+" to "+o.ID)
	broadcast("order", "update", o.ID)
	jsonResp(w, map[string]interface{}{"status": newStatus, "driver": d.Name})
}

func assignThirdParty(w http.ResponseWriter, r *http.Request, o *models.OutboundOrder, replaceID int) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonErr(w, "invalid multipart form", 400)
		return
	}
	companyID, _ := strconv.Atoi(r.FormValue("company_id"))
	driverCount, _ := strconv.Atoi(r.FormValue("driver_count"))

	var ve validation.ValidationErrors
	if companyID == 0 {
		ve.Add("company_id", "company_id is required")
	}
	if driverCount < 1 {
		ve.Add("driver_count", "at least one crew driver is required")
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	var company models.DeliveryCompany
	err := db.QueryRow("SELECT id, name, active FROM delivery_companies WHERE id = ?", companyID).
		Scan(&company.ID, &company.Name, &company.Active)
	if err != nil {
		jsonErr(w, "delivery company not found", 400)
		return
	}
	if !company.Active {
		jsonErr(w, "delivery company is not active", 400)
		return
	}

	crew := make([]crewDriver, driverCount)
	for i := 0; i < driverCount; i++ {
		prefix := fmt.Sprintf("drivers[%d]", i)
		crew[i].Name = strings.TrimSpace(r.FormValue(prefix + "[name]"))
		crew[i].Mobile = strings.TrimSpace(r.FormValue(prefix + "[mobile]"))
		crew[i].WaybillNumber = strings.TrimSpace(r.FormValue(prefix + "[waybill_number]"))

		validation.RequireField(&ve, prefix+".name", crew[i].Name)
		validation.ValidateMobile(&ve, prefix+".mobile", crew[i].Mobile)
		validation.RequireField(&ve, prefix+".waybill_number", crew[i].WaybillNumber)
		if _, _, err := r.FormFile(prefix + "[id_file]"); err == http.ErrMissingFile {
			ve.Add(prefix+".id_file", "ID document is required")
		}
		if _, _, err := r.FormFile(prefix + "[license_file]"); err == http.ErrMissingFile {
			ve.Add(prefix+".license_file", "license document is required")
		}
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	for i := 0; i < driverCount; i++ {
		prefix := fmt.Sprintf("drivers[%d]", i)
		idFile, err := saveUpload(r, prefix+"[id_file]")
		if err != nil {
			jsonErr(w, err.Error(), 400)
			return
		}
		licenseFile, err := saveUpload(r, prefix+"[license_file]")
		if err != nil {
			jsonErr(w, err.Error(), 400)
			return
		}
		crew[i].IDFile = idFile
		crew[i].LicenseFile = licenseFile
	}

	trackingNumber := uuid.NewString()

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer tx.Rollback()

	if replaceID != 0 {
		if _, err := tx.Exec("UPDATE assignments SET status = 'replaced' WHERE id = ?", replaceID); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	res, err := tx.Exec(`INSERT INTO assignments (order_id, type, company_id, tracking_number) VALUES (?, 'third_party', ?, ?)`,
		o.ID, companyID, trackingNumber)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	assignmentID, _ := res.LastInsertId()
	for _, c := range crew {
		if _, err := tx.Exec(`INSERT INTO assignment_drivers (assignment_id, name, mobile, waybill_number, id_file, license_file)
			VALUES (?,?,?,?,?,?)`,
			assignmentID, c.Name, c.Mobile, c.WaybillNumber, c.IDFile, c.LicenseFile); err != nil {
			jsonErr(w, err.Error(), 500)
			return
		}
	}
	now := time.Now().Format("2006-01-02 15:04:05")
	newStatus := workflow.AssignmentStatus("third_party")
	if _, err := tx.Exec("UPDATE outbound_orders SET status = ?, tracking_number = ?, updated_at = ? WHERE id = ?",
		newStatus, trackingNumber, now, o.ID); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}

	audit.Log(db, currentUsername(r), audit.ActionUpdate, "drivers", o.ID,
		fmt.Sprintf("Assigned %s with %d drivers to %s", company.Name, driverCount, o.ID))
	broadcast("order", "update", o.ID)

	jsonResp(w, map[string]interface{}{
		"status":          newStatus,
		"company":         company.Name,
		"tracking_number": trackingNumber,
		"pickup_url":      publicBaseURL + "/track/pickup?tn=" + trackingNumber,
		"delivery_url":    publicBaseURL + "/track/delivery?tn=" + trackingNumber,
	})
}

func handleChangeDriver(w http.ResponseWriter, r *http.Request, orderID string) {
	o, err := getOrder(orderID)
	if err != nil {
		jsonErr(w, "not found", 404)
		return
	}
	st := orderState(o, currentRole(r))
	if !workflow.Can(workflow.ActionChangeDriver, st) {
		jsonErr(w, (&workflow.TransitionError{Action: workflow.ActionChangeDriver, Status: o.Status}).Error(), 409)
		return
	}
	active := getActiveAssignment(orderID)
	if active == nil {
		jsonErr(w, "order has no active assignment", 409)
		return
	}
	// The replacement goes through the same paths as the first assignment;
	// the old assignment is retired only once the new one is accepted.
	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		assignThirdParty(w, r, o, active.ID)
		return
	}
	assignInHouse(w, r, o, active.ID)
}

var trackingTmpl = template.Must(template.New("tracking").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Company}} - Order {{.OrderID}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 0; background: #f5f5f5; }
.card { max-width: 480px; margin: 40px auto; background: #fff; border-radius: 8px; padding: 24px; box-shadow: 0 1px 4px rgba(0,0,0,.15); }
h1 { font-size: 18px; margin: 0 0 4px; }
.status { display: inline-block; padding: 4px 12px; border-radius: 12px; background: #e8f0fe; color: #1a56db; font-size: 13px; margin: 8px 0 16px; }
table { width: 100%; border-collapse: collapse; font-size: 14px; }
td { padding: 6px 0; border-bottom: 1px solid #eee; }
td:first-child { color: #666; width: 40%; }
.driver { margin-top: 12px; padding: 10px; background: #fafafa; border-radius: 6px; font-size: 14px; }
</style>
</head>
<body>
<div class="card">
<h1>{{.Company}} - {{.Kind}}</h1>
<div class="status">{{.Status}}</div>
<table>
<tr><td>Order</td><td>{{.OrderID}}</td></tr>
<tr><td>Tracking number</td><td>{{.TrackingNumber}}</td></tr>
{{if .CustomerName}}<tr><td>Customer</td><td>{{.CustomerName}}</td></tr>{{end}}
<tr><td>Last update</td><td>{{.UpdatedAt}}</td></tr>
</table>
{{range .Drivers}}
<div class="driver"><strong>{{.Name}}</strong> &middot; {{.Mobile}}<br>Waybill {{.WaybillNumber}}</div>
{{end}}
</div>
</body>
</html>`))

// handleTracking serves the public pickup/delivery page for third-party
// assignments. No session is required; the tracking number is the key.
func handleTracking(w http.ResponseWriter, r *http.Request, kind string) {
	tn := r.URL.Query().Get("tn")
	if tn == "" {
		http.NotFound(w, r)
		return
	}
	var a models.Assignment
	err := db.QueryRow(`SELECT id, order_id FROM assignments WHERE tracking_number = ? AND status = 'active'`, tn).
		Scan(&a.ID, &a.OrderID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	o, err := getOrder(a.OrderID)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	full := getActiveAssignment(a.OrderID)

	kindLabel := "Pickup"
	if kind == "delivery" {
		kindLabel = "Delivery"
	}
	data := struct {
		Company        string
		Kind           string
		OrderID        string
		Status         string
		TrackingNumber string
		CustomerName   string
		UpdatedAt      string
		Drivers        []models.AssignmentDriver
	}{
		Company:        companyName,
		Kind:           kindLabel,
		OrderID:        o.ID,
		Status:         o.Status,
		TrackingNumber: tn,
		CustomerName:   o.CustomerName,
		UpdatedAt:      o.UpdatedAt,
	}
	if full != nil {
		data.Drivers = full.Drivers
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	trackingTmpl.Execute(w, data)
}

func handleServeFile(w http.ResponseWriter, r *http.Request, filename string) {
	clean := validation.SanitizeFilename(filename)
	if clean != filename {
		http.NotFound(w, r)
		return
	}
	path := filepath.Join(uploadsDir, clean)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}
