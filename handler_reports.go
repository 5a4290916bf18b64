package main

import (
	"fmt"
	"html"
	"net/http"
)

const itemsPerPrintPage = 10

const printCSS = `
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: Arial, Helvetica, sans-serif; font-size: 11pt; color: #000; padding: 0.5in; }
  h1 { font-size: 18pt; margin-bottom: 2pt; }
  h2 { font-size: 13pt; margin: 16pt 0 6pt; border-bottom: 2px solid #000; padding-bottom: 3pt; }
  table { width: 100%; border-collapse: collapse; margin-bottom: 12pt; }
  th, td { border: 1px solid #000; padding: 4pt 6pt; text-align: left; font-size: 10pt; }
  th { background: #eee; font-weight: bold; }
  .header { display: flex; justify-content: space-between; align-items: flex-start; border-bottom: 3px solid #000; padding-bottom: 8pt; margin-bottom: 12pt; }
  .header-right { text-align: right; font-size: 10pt; }
  .info-grid { display: grid; grid-template-columns: 1fr 1fr; gap: 4pt 20pt; margin-bottom: 12pt; font-size: 10pt; }
  .info-grid dt { font-weight: bold; }
  .signoff td { height: 40pt; vertical-align: bottom; }
  .signoff td.label-cell { width: 120pt; font-weight: bold; }
  .page-break { page-break-before: always; }
  @media print { body { padding: 0; } @page { margin: 0.5in; } }
`

func writePrintHTML(w http.ResponseWriter, out string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; script-src 'unsafe-inline'; style-src 'unsafe-inline'")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Write([]byte(out))
}

// handlePickSheet renders the printable pick sheet for an order. Lines are
// paginated ten to a page so long orders break cleanly.
func handlePickSheet(w http.ResponseWriter, r *http.Request, orderID string) {
	o, err := getOrder(orderID)
	if err != nil || o.WarehouseID != currentWarehouseID(r) {
		http.NotFound(w, r)
		return
	}

	date := o.CreatedAt
	if len(date) > 10 {
		date = date[:10]
	}

	type pickLine struct {
		ItemNumber, Description, Location, Batch, Dot string
		Qty                                           int
	}
	var lines []pickLine
	for _, it := range o.Items {
		var desc string
		db.QueryRow("SELECT description FROM items WHERE item_number = ?", it.ItemNumber).Scan(&desc)
		if len(it.Picks) == 0 {
			lines = append(lines, pickLine{it.ItemNumber, desc, "", "", "", it.OrderedQuantity})
			continue
		}
		for _, p := range it.Picks {
			lines = append(lines, pickLine{it.ItemNumber, desc, p.LocationCode, p.BatchNumber, p.DotCode, p.PickedQuantity})
		}
	}

	body := ""
	for start := 0; start < len(lines) || start == 0; start += itemsPerPrintPage {
		if start > 0 {
			body += `<div class="page-break"></div>`
		}
		rows := ""
		end := start + itemsPerPrintPage
		if end > len(lines) {
			end = len(lines)
		}
		for _, ln := range lines[start:end] {
			rows += fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td style="text-align:center">%d</td></tr>`,
				html.EscapeString(ln.ItemNumber), html.EscapeString(ln.Description),
				html.EscapeString(ln.Location), html.EscapeString(ln.Batch), html.EscapeString(ln.Dot), ln.Qty)
		}
		if rows == "" {
			rows = `<tr><td colspan="6" style="text-align:center;color:#999">No lines</td></tr>`
		}
		body += fmt.Sprintf(`<table>
  <thead><tr><th>Item</th><th>Description</th><th>Location</th><th>Batch</th><th>DOT</th><th>Qty</th></tr></thead>
  <tbody>%s</tbody>
</table>`, rows)
		if len(lines) == 0 {
			break
		}
	}

	out := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Pick Sheet %s</title>
<style>%s</style>
</head><body>
<div class="header">
  <div>
    <h1>Pick Sheet</h1>
    <div style="font-size:10pt;color:#555">%s</div>
  </div>
  <div class="header-right">
    <div><strong>Order:</strong> %s</div>
    <div><strong>Date:</strong> %s</div>
    <div><strong>Status:</strong> %s</div>
    <div><strong>Type:</strong> %s</div>
  </div>
</div>

<div class="info-grid">
  <dt>Customer:</dt><dd>%s</dd>
  <dt>Required date:</dt><dd>%s</dd>
</div>

%s

<h2>Sign-Off</h2>
<table class="signoff">
  <thead><tr><th style="width:120pt">Step</th><th>Name</th><th style="width:100pt">Date</th><th>Signature</th></tr></thead>
  <tbody>
    <tr><td class="label-cell">Picked by</td><td></td><td></td><td></td></tr>
    <tr><td class="label-cell">Checked by</td><td></td><td></td><td></td></tr>
  </tbody>
</table>

<script>window.onload = () => window.print()</script>
</body></html>`,
		html.EscapeString(o.ID), printCSS, html.EscapeString(companyName),
		html.EscapeString(o.ID), html.EscapeString(date), html.EscapeString(o.Status), html.EscapeString(o.OrderType),
		html.EscapeString(o.CustomerName), html.EscapeString(o.RequiredDate), body)

	writePrintHTML(w, out)
}

// handleDeliveryReport renders the printable delivery note handed to the
// driver, including the assigned crew and receiver sign-off.
func handleDeliveryReport(w http.ResponseWriter, r *http.Request, orderID string) {
	o, err := getOrder(orderID)
	if err != nil || o.WarehouseID != currentWarehouseID(r) {
		http.NotFound(w, r)
		return
	}

	var customerAddress, customerCity, customerPhone string
	if o.CustomerID != "" {
		db.QueryRow("SELECT address, city, contact_phone FROM customers WHERE id = ?", o.CustomerID).
			Scan(&customerAddress, &customerCity, &customerPhone)
	}

	itemRows := ""
	totalUnits := 0
	for _, it := range o.Items {
		var desc string
		db.QueryRow("SELECT description FROM items WHERE item_number = ?", it.ItemNumber).Scan(&desc)
		itemRows += fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td style="text-align:center">%d</td></tr>`,
			html.EscapeString(it.ItemNumber), html.EscapeString(desc), it.PickedQuantity)
		totalUnits += it.PickedQuantity
	}
	if itemRows == "" {
		itemRows = `<tr><td colspan="3" style="text-align:center;color:#999">No items</td></tr>`
	}

	crewRows := ""
	assignment := getActiveAssignment(o.ID)
	if assignment != nil {
		if assignment.Type == "in_house" {
			crewRows = fmt.Sprintf(`<tr><td>%s</td><td colspan="2">In-house driver</td></tr>`,
				html.EscapeString(assignment.DriverName))
		} else {
			for _, d := range assignment.Drivers {
				crewRows += fmt.Sprintf(`<tr><td>%s</td><td>%s</td><td>%s</td></tr>`,
					html.EscapeString(d.Name), html.EscapeString(d.Mobile), html.EscapeString(d.WaybillNumber))
			}
		}
	}
	if crewRows == "" {
		crewRows = `<tr><td colspan="3" style="text-align:center;color:#999">No driver assigned</td></tr>`
	}

	date := o.UpdatedAt
	if len(date) > 10 {
		date = date[:10]
	}

	out := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Delivery Note %s</title>
<style>%s</style>
</head><body>
<div class="header">
  <div>
    <h1>Delivery Note</h1>
    <div style="font-size:10pt;color:#555">%s</div>
  </div>
  <div class="header-right">
    <div><strong>Order:</strong> %s</div>
    <div><strong>Date:</strong> %s</div>
    <div><strong>Status:</strong> %s</div>
  </div>
</div>

<h2>Deliver To</h2>
<div class="info-grid">
  <dt>Customer:</dt><dd>%s</dd>
  <dt>Phone:</dt><dd>%s</dd>
  <dt>Address:</dt><dd>%s</dd>
  <dt>City:</dt><dd>%s</dd>
</div>

<h2>Items</h2>
<table>
  <thead><tr><th>Item</th><th>Description</th><th>Qty</th></tr></thead>
  <tbody>%s
  <tr><th colspan="2" style="text-align:right">Total units</th><th style="text-align:center">%d</th></tr>
  </tbody>
</table>

<h2>Drivers</h2>
<table>
  <thead><tr><th>Name</th><th>Mobile</th><th>Waybill</th></tr></thead>
  <tbody>%s</tbody>
</table>

<h2>Receipt</h2>
<table class="signoff">
  <thead><tr><th style="width:120pt">Step</th><th>Name</th><th style="width:100pt">Date</th><th>Signature</th></tr></thead>
  <tbody>
    <tr><td class="label-cell">Delivered by</td><td></td><td></td><td></td></tr>
    <tr><td class="label-cell">Received by</td><td></td><td></td><td></td></tr>
  </tbody>
</table>

<script>window.onload = () => window.print()</script>
</body></html>`,
		html.EscapeString(o.ID), printCSS, html.EscapeString(companyName),
		html.EscapeString(o.ID), html.EscapeString(date), html.EscapeString(o.Status),
		html.EscapeString(o.CustomerName), html.EscapeString(customerPhone),
		html.EscapeString(customerAddress), html.EscapeString(customerCity),
		itemRows, totalUnits, crewRows)

	writePrintHTML(w, out)
}
