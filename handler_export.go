package main

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"wms/internal/audit"
)

func handleExportInventory(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	query := `SELECT i.item_number, COALESCE(it.description,''), l.code, i.batch_number, i.dot_code, i.quantity, i.updated_at
		FROM inventory i
		JOIN locations l ON l.id = i.location_id
		LEFT JOIN items it ON it.item_number = i.item_number
		WHERE i.warehouse_id = ? AND i.quantity > 0`
	args := []interface{}{currentWarehouseID(r)}
	if v := r.URL.Query().Get("item"); v != "" {
		query += " AND i.item_number = ?"
		args = append(args, v)
	}
	query += " ORDER BY i.item_number, l.code"

	rows, err := db.Query(query, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"Item Number", "Description", "Location", "Batch", "DOT Code", "Quantity", "Updated At"}
	var data [][]string
	for rows.Next() {
		var item, description, loc, batch, dot, updatedAt string
		var qty int
		rows.Scan(&item, &description, &loc, &batch, &dot, &qty, &updatedAt)
		data = append(data, []string{item, description, loc, batch, dot, strconv.Itoa(qty), updatedAt})
	}

	audit.Log(db, currentUsername(r), audit.ActionExport, "inventory", "", fmt.Sprintf("Exported %d inventory rows as %s", len(data), format))

	if format == "xlsx" {
		ExportExcel(w, "Inventory", headers, data)
	} else {
		ExportCSV(w, "inventory.csv", headers, data)
	}
}

func handleExportOrders(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	query := `SELECT o.id, COALESCE(c.name,''), o.order_type, o.status, COALESCE(o.required_date,''), o.created_by, o.created_at
		FROM outbound_orders o
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE o.warehouse_id = ?`
	args := []interface{}{currentWarehouseID(r)}
	if v := r.URL.Query().Get("status"); v != "" {
		query += " AND o.status = ?"
		args = append(args, v)
	}
	query += " ORDER BY o.created_at DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	headers := []string{"Order", "Customer", "Type", "Status", "Required Date", "Created By", "Created At"}
	var data [][]string
	for rows.Next() {
		var id, customer, orderType, status, requiredDate, createdBy, createdAt string
		rows.Scan(&id, &customer, &orderType, &status, &requiredDate, &createdBy, &createdAt)
		data = append(data, []string{id, customer, orderType, status, requiredDate, createdBy, createdAt})
	}

	audit.Log(db, currentUsername(r), audit.ActionExport, "orders", "", fmt.Sprintf("Exported %d orders as %s", len(data), format))

	if format == "xlsx" {
		ExportExcel(w, "Orders", headers, data)
	} else {
		ExportCSV(w, "orders.csv", headers, data)
	}
}

// handleImportItems bulk-creates item masters from an uploaded xlsx. Columns:
// item number, description, brand, model, unit, barcode. Existing items are
// left untouched.
func handleImportItems(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonErr(w, "invalid multipart form", 400)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonErr(w, "file is required", 400)
		return
	}
	defer file.Close()
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
		jsonErr(w, "only .xlsx files are supported", 400)
		return
	}

	f, err := excelize.OpenReader(file)
	if err != nil {
		jsonErr(w, "could not read workbook", 400)
		return
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		jsonErr(w, err.Error(), 400)
		return
	}

	cell := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	imported, skipped := 0, 0
	var errors []string
	for i, row := range rows {
		if i == 0 {
			continue // header row
		}
		itemNumber := cell(row, 0)
		if itemNumber == "" {
			continue
		}
		unit := cell(row, 4)
		if unit == "" {
			unit = "unit"
		}
		_, err := db.Exec(`INSERT INTO items (item_number, description, brand, model, unit, barcode) VALUES (?,?,?,?,?,?)`,
			itemNumber, cell(row, 1), cell(row, 2), cell(row, 3), unit, cell(row, 5))
		if err != nil {
			skipped++
			if len(errors) < 10 {
				errors = append(errors, fmt.Sprintf("row %d: %s already exists", i+1, itemNumber))
			}
			continue
		}
		imported++
	}

	audit.Log(db, currentUsername(r), audit.ActionImport, "items", "", fmt.Sprintf("Imported %d items, skipped %d", imported, skipped))
	broadcast("item", "import", "")
	jsonResp(w, map[string]interface{}{"imported": imported, "skipped": skipped, "errors": errors})
}

// ExportCSV writes data to CSV format.
func ExportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "Failed to write CSV headers", 500)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "Failed to write CSV row", 500)
			return
		}
	}
}

// ExportExcel writes data to Excel format.
func ExportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "Failed to create Excel sheet", 500)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "Failed to create header style", 500)
		return
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+i)))
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell := fmt.Sprintf("%s%d", string(rune('A'+colIdx)), rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 15)
	}

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ToLower(sheetName)))

	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write Excel file", 500)
		return
	}
}
