package main

import (
	"net/http"
	"strconv"
	"strings"

	"wms/internal/audit"
	"wms/internal/models"
	"wms/internal/validation"
)

func getLocation(id int) (*models.Location, error) {
	var l models.Location
	err := db.QueryRow(`SELECT id, warehouse_id, code, type, max_capacity_units, created_at
		FROM locations WHERE id = ?`, id).
		Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Type, &l.MaxCapacityUnits, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	db.QueryRow("SELECT COALESCE(SUM(quantity),0) FROM inventory WHERE location_id = ?", l.ID).Scan(&l.OccupiedUnits)
	l.AvailableUnits = l.Available()
	return &l, nil
}

func handleListLocations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	where := "l.warehouse_id = ?"
	args := []interface{}{currentWarehouseID(r)}
	if v := q.Get("type"); v != "" {
		where += " AND l.type = ?"
		args = append(args, v)
	}
	if v := q.Get("search"); v != "" {
		where += " AND l.code LIKE ?"
		args = append(args, "%"+v+"%")
	}
	rows, err := db.Query(`SELECT l.id, l.warehouse_id, l.code, l.type, l.max_capacity_units,
		COALESCE(SUM(i.quantity),0), l.created_at
		FROM locations l LEFT JOIN inventory i ON i.location_id = l.id
		WHERE `+where+` GROUP BY l.id ORDER BY l.code`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	locations := []models.Location{}
	for rows.Next() {
		var l models.Location
		rows.Scan(&l.ID, &l.WarehouseID, &l.Code, &l.Type, &l.MaxCapacityUnits, &l.OccupiedUnits, &l.CreatedAt)
		l.AvailableUnits = l.Available()
		locations = append(locations, l)
	}
	jsonResp(w, locations)
}

// LocationRequest creates or updates a location. MaxCapacityUnits stays nil
// when the field is omitted, which the capacity view reports as "not set".
type LocationRequest struct {
	Code             string `json:"code"`
	Type             string `json:"type"`
	MaxCapacityUnits *int   `json:"max_capacity_units"`
}

func validateLocationRequest(req *LocationRequest) *validation.ValidationErrors {
	var ve validation.ValidationErrors
	req.Code = strings.TrimSpace(req.Code)
	validation.RequireField(&ve, "code", req.Code)
	validation.ValidateEnum(&ve, "type", req.Type, validation.ValidLocationTypes)
	validation.ValidateMaxLength(&ve, "code", req.Code, 50)
	if req.MaxCapacityUnits != nil && *req.MaxCapacityUnits < 0 {
		ve.Add("max_capacity_units", "max_capacity_units must not be negative")
	}
	return &ve
}

func handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	if ve := validateLocationRequest(&req); ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	warehouseID := currentWarehouseID(r)

	res, err := db.Exec(`INSERT INTO locations (warehouse_id, code, type, max_capacity_units) VALUES (?,?,?,?)`,
		warehouseID, req.Code, req.Type, req.MaxCapacityUnits)
	if err != nil {
		jsonErr(w, "location code already exists in this warehouse", 409)
		return
	}
	id, _ := res.LastInsertId()

	audit.Log(db, currentUsername(r), audit.ActionCreate, "locations", strconv.FormatInt(id, 10), "Created location "+req.Code)
	broadcast("location", "create", id)

	loc, _ := getLocation(int(id))
	jsonResp(w, loc)
}

func handleGetLocation(w http.ResponseWriter, r *http.Request, idStr string) {
	id, _ := strconv.Atoi(idStr)
	loc, err := getLocation(id)
	if err != nil || loc.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	jsonResp(w, loc)
}

func handleUpdateLocation(w http.ResponseWriter, r *http.Request, idStr string) {
	id, _ := strconv.Atoi(idStr)
	loc, err := getLocation(id)
	if err != nil || loc.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	var req LocationRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "invalid body", 400)
		return
	}
	if ve := validateLocationRequest(&req); ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}
	if req.MaxCapacityUnits != nil && *req.MaxCapacityUnits < loc.OccupiedUnits {
		jsonErr(w, "max_capacity_units is below the current occupancy", 400)
		return
	}

	if _, err := db.Exec(`UPDATE locations SET code = ?, type = ?, max_capacity_units = ? WHERE id = ?`,
		req.Code, req.Type, req.MaxCapacityUnits, id); err != nil {
		jsonErr(w, "location code already exists in this warehouse", 409)
		return
	}

	audit.Log(db, currentUsername(r), audit.ActionUpdate, "locations", idStr, "Updated location "+req.Code)
	broadcast("location", "update", id)

	updated, _ := getLocation(id)
	jsonResp(w, updated)
}

func handleDeleteLocation(w http.ResponseWriter, r *http.Request, idStr string) {
	id, _ := strconv.Atoi(idStr)
	loc, err := getLocation(id)
	if err != nil || loc.WarehouseID != currentWarehouseID(r) {
		jsonErr(w, "not found", 404)
		return
	}
	if loc.OccupiedUnits > 0 {
		jsonErr(w, "location still holds stock", 409)
		return
	}
	if _, err := db.Exec("DELETE FROM locations WHERE id = ?", id); err != nil {
		jsonErr(w, "location is referenced by other records", 409)
		return
	}
	audit.Log(db, currentUsername(r), audit.ActionDelete, "locations", idStr, "Deleted location "+loc.Code)
	broadcast("location", "delete", id)
	jsonResp(w, map[string]string{"status": "deleted"})
}
