package main

import (
	"net/http"
	"strconv"

	"wms/internal/models"
)

func handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	where := "1=1"
	args := []interface{}{}
	if v := q.Get("module"); v != "" {
		where += " AND module = ?"
		args = append(args, v)
	}
	if v := q.Get("username"); v != "" {
		where += " AND username = ?"
		args = append(args, v)
	}
	if v := q.Get("record"); v != "" {
		where += " AND record_id = ?"
		args = append(args, v)
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := db.Query(`SELECT id, username, action, module, record_id, summary, created_at
		FROM audit_log WHERE `+where+` ORDER BY id DESC LIMIT ?`, args...)
	if err != nil {
		jsonErr(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	entries := []models.AuditEntry{}
	for rows.Next() {
		var e models.AuditEntry
		rows.Scan(&e.ID, &e.Username, &e.Action, &e.Module, &e.RecordID, &e.Summary, &e.CreatedAt)
		entries = append(entries, e)
	}
	jsonResp(w, entries)
}
