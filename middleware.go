package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const (
	ctxUserID      contextKey = "userID"
	ctxUsername    contextKey = "username"
	ctxRole        contextKey = "role"
	ctxWarehouseID contextKey = "warehouseID"
)

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(401)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized", "code": "UNAUTHORIZED"})
}

// requireAuth resolves the session cookie into user and warehouse context.
// The selected warehouse and the caller's role in it ride on the session, so
// every request is evaluated against the warehouse the user is working in.
func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Exempt paths
		if path == "/auth/login" || path == "/healthz" || strings.HasPrefix(path, "/track/") {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie("wms_session")
		if err != nil {
			unauthorized(w)
			return
		}

		var userID int
		var username, globalRole string
		var active int
		var warehouseID *int
		err = db.QueryRow(`SELECT s.user_id, u.username, u.role, u.active, s.warehouse_id
			FROM sessions s JOIN users u ON s.user_id = u.id
			WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP`, cookie.Value).
			Scan(&userID, &username, &globalRole, &active, &warehouseID)
		if err != nil {
			unauthorized(w)
			return
		}

		if active == 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(403)
			json.NewEncoder(w).Encode(map[string]string{"error": "Account deactivated", "code": "FORBIDDEN"})
			return
		}

		// Warehouse-scoped role overrides the global one once a warehouse
		// is selected.
		role := globalRole
		whID := 0
		if warehouseID != nil {
			whID = *warehouseID
			var whRole string
			if err := db.QueryRow("SELECT role FROM warehouse_users WHERE warehouse_id=? AND user_id=?",
				whID, userID).Scan(&whRole); err == nil {
				role = whRole
			}
		}

		// Sliding window: extend session expiry on each authenticated request
		newExpiry := time.Now().Add(24 * time.Hour)
		db.Exec("UPDATE sessions SET expires_at = ? WHERE token = ?",
			newExpiry.Format("2006-01-02 15:04:05"), cookie.Value)
		http.SetCookie(w, &http.Cookie{
			Name:     "wms_session",
			Value:    cookie.Value,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  newExpiry,
		})

		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxUsername, username)
		ctx = context.WithValue(ctx, ctxRole, role)
		ctx = context.WithValue(ctx, ctxWarehouseID, whID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// isAdminOnly returns true if the API path (after /api/v1/) is restricted to
// admin/manager roles.
func isAdminOnly(apiPath string) bool {
	seg := strings.SplitN(apiPath, "/", 2)[0]
	switch seg {
	case "users", "warehouses", "delivery-companies":
		return true
	}
	return false
}

// driverAllowed lists the only mutating endpoints a driver role may hit:
// their own delivery status updates.
func driverAllowed(apiPath string) bool {
	if !strings.HasPrefix(apiPath, "orders/") {
		return false
	}
	return strings.HasSuffix(apiPath, "/out-for-delivery") ||
		strings.HasSuffix(apiPath, "/deliver") ||
		strings.HasSuffix(apiPath, "/fail-delivery")
}

// requireRBAC enforces role-based access control on /api/v1/ routes.
func requireRBAC(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !strings.HasPrefix(path, "/api/v1/") {
			next.ServeHTTP(w, r)
			return
		}

		role, _ := r.Context().Value(ctxRole).(string)
		if role == "admin" || role == "manager" {
			next.ServeHTTP(w, r)
			return
		}

		method := r.Method
		apiPath := strings.TrimPrefix(path, "/api/v1/")
		apiPath = strings.TrimSuffix(apiPath, "/")

		forbidden := func(msg string) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(403)
			json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": "FORBIDDEN"})
		}

		switch role {
		case "viewer":
			if method != "GET" {
				forbidden("Read-only access")
				return
			}
		case "driver":
			if method != "GET" && !driverAllowed(apiPath) {
				forbidden("Drivers may only update delivery status")
				return
			}
		default: // operator
			if isAdminOnly(apiPath) && method != "GET" {
				forbidden("Admin access required")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// request context accessors

func currentUsername(r *http.Request) string {
	u, _ := r.Context().Value(ctxUsername).(string)
	if u == "" {
		return "system"
	}
	return u
}

func currentRole(r *http.Request) string {
	role, _ := r.Context().Value(ctxRole).(string)
	return role
}

func currentWarehouseID(r *http.Request) int {
	id, _ := r.Context().Value(ctxWarehouseID).(int)
	return id
}
