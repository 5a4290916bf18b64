package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

var publicBaseURL string
var companyName string
var uploadsDir string

func main() {
	_ = godotenv.Load()

	port := flag.Int("port", 9000, "HTTP port")
	dbPath := flag.String("db", "wms.db", "SQLite database path")
	uploads := flag.String("uploads", "uploads", "Directory for uploaded driver documents")
	flag.Parse()

	uploadsDir = *uploads

	publicBaseURL = os.Getenv("WMS_PUBLIC_URL")
	if publicBaseURL == "" {
		publicBaseURL = fmt.Sprintf("http://localhost:%d", *port)
	}
	companyName = os.Getenv("WMS_COMPANY_NAME")
	if companyName == "" {
		companyName = "Warehouse"
	}

	if err := initDB(*dbPath); err != nil {
		log.Fatal("DB init failed:", err)
	}
	seedDB()

	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		log.Fatal("uploads dir:", err)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	// Auth routes
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogin(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleLogout(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})
	mux.HandleFunc("/auth/me", handleMe)
	mux.HandleFunc("/auth/warehouse", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "POST" {
			handleSelectWarehouse(w, r)
		} else {
			http.Error(w, "Method not allowed", 405)
		}
	})

	// Realtime change feed
	mux.HandleFunc("/ws", handleWebSocket)

	// Public tracking pages for third-party deliveries
	mux.HandleFunc("/track/pickup", func(w http.ResponseWriter, r *http.Request) {
		handleTracking(w, r, "pickup")
	})
	mux.HandleFunc("/track/delivery", func(w http.ResponseWriter, r *http.Request) {
		handleTracking(w, r, "delivery")
	})

	// Uploaded driver documents
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		filename := strings.TrimPrefix(r.URL.Path, "/files/")
		if filename == "" {
			http.NotFound(w, r)
			return
		}
		handleServeFile(w, r, filename)
	})

	// API routes - using a simple router
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		switch {
		// Warehouses
		case parts[0] == "warehouses" && len(parts) == 1 && r.Method == "GET":
			handleListWarehouses(w, r)
		case parts[0] == "warehouses" && len(parts) == 1 && r.Method == "POST":
			handleCreateWarehouse(w, r)

		// Outbound orders
		case parts[0] == "orders" && len(parts) == 2 && parts[1] == "export" && r.Method == "GET":
			handleExportOrders(w, r)
		case parts[0] == "orders" && len(parts) == 1 && r.Method == "GET":
			handleListOrders(w, r)
		case parts[0] == "orders" && len(parts) == 1 && r.Method == "POST":
			handleCreateOrder(w, r)
		case parts[0] == "orders" && len(parts) == 2 && r.Method == "GET":
			handleGetOrder(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateOrder(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "actions" && r.Method == "GET":
			handleOrderActions(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "pick" && r.Method == "POST":
			handlePick(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "unpick" && r.Method == "POST":
			handleUnpick(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "stage" && r.Method == "POST":
			handleStage(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "scrap" && r.Method == "POST":
			handleScrapOrder(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "assign-driver" && r.Method == "POST":
			handleAssignDriver(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "change-driver" && r.Method == "POST":
			handleChangeDriver(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "ship" && r.Method == "POST":
			handleShipOrder(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "out-for-delivery" && r.Method == "POST":
			handleOutForDelivery(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "deliver" && r.Method == "POST":
			handleDeliverOrder(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "fail-delivery" && r.Method == "POST":
			handleFailDelivery(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "cancel" && r.Method == "POST":
			handleCancelOrder(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "pick-sheet" && r.Method == "GET":
			handlePickSheet(w, r, parts[1])
		case parts[0] == "orders" && len(parts) == 3 && parts[2] == "delivery-report" && r.Method == "GET":
			handleDeliveryReport(w, r, parts[1])

		// Pick entry cascade: item -> DOT -> location -> batch
		case parts[0] == "picking" && len(parts) == 2 && parts[1] == "dots" && r.Method == "GET":
			handleCascadeDots(w, r)
		case parts[0] == "picking" && len(parts) == 2 && parts[1] == "locations" && r.Method == "GET":
			handleCascadeLocations(w, r)
		case parts[0] == "picking" && len(parts) == 2 && parts[1] == "batches" && r.Method == "GET":
			handleCascadeBatches(w, r)

		// Inbound shipments
		case parts[0] == "inbound" && len(parts) == 1 && r.Method == "GET":
			handleListInbound(w, r)
		case parts[0] == "inbound" && len(parts) == 1 && r.Method == "POST":
			handleCreateInbound(w, r)
		case parts[0] == "inbound" && len(parts) == 2 && r.Method == "GET":
			handleGetInbound(w, r, parts[1])
		case parts[0] == "inbound" && len(parts) == 3 && parts[2] == "receive" && r.Method == "POST":
			handleReceiveInbound(w, r, parts[1])
		case parts[0] == "inbound" && len(parts) == 3 && parts[2] == "putaway" && r.Method == "POST":
			handlePutaway(w, r, parts[1])
		case parts[0] == "inbound" && len(parts) == 3 && parts[2] == "cancel" && r.Method == "POST":
			handleCancelInbound(w, r, parts[1])

		// Inventory
		case parts[0] == "inventory" && len(parts) == 2 && parts[1] == "export" && r.Method == "GET":
			handleExportInventory(w, r)
		case parts[0] == "inventory" && len(parts) == 2 && parts[1] == "adjust" && r.Method == "POST":
			handleAdjustInventory(w, r)
		case parts[0] == "inventory" && len(parts) == 2 && parts[1] == "transfer" && r.Method == "POST":
			handleTransferInventory(w, r)
		case parts[0] == "inventory" && len(parts) == 2 && parts[1] == "history" && r.Method == "GET":
			handleInventoryHistory(w, r)
		case parts[0] == "inventory" && len(parts) == 1 && r.Method == "GET":
			handleListInventory(w, r)

		// Items
		case parts[0] == "items" && len(parts) == 2 && parts[1] == "import" && r.Method == "POST":
			handleImportItems(w, r)
		case parts[0] == "items" && len(parts) == 1 && r.Method == "GET":
			handleListItems(w, r)
		case parts[0] == "items" && len(parts) == 1 && r.Method == "POST":
			handleCreateItem(w, r)
		case parts[0] == "items" && len(parts) == 2 && r.Method == "GET":
			handleGetItem(w, r, parts[1])
		case parts[0] == "items" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateItem(w, r, parts[1])

		// Locations
		case parts[0] == "locations" && len(parts) == 1 && r.Method == "GET":
			handleListLocations(w, r)
		case parts[0] == "locations" && len(parts) == 1 && r.Method == "POST":
			handleCreateLocation(w, r)
		case parts[0] == "locations" && len(parts) == 2 && r.Method == "GET":
			handleGetLocation(w, r, parts[1])
		case parts[0] == "locations" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateLocation(w, r, parts[1])
		case parts[0] == "locations" && len(parts) == 2 && r.Method == "DELETE":
			handleDeleteLocation(w, r, parts[1])

		// Customers
		case parts[0] == "customers" && len(parts) == 1 && r.Method == "GET":
			handleListCustomers(w, r)
		case parts[0] == "customers" && len(parts) == 1 && r.Method == "POST":
			handleCreateCustomer(w, r)
		case parts[0] == "customers" && len(parts) == 2 && r.Method == "GET":
			handleGetCustomer(w, r, parts[1])
		case parts[0] == "customers" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateCustomer(w, r, parts[1])
		case parts[0] == "customers" && len(parts) == 2 && r.Method == "DELETE":
			handleDeleteCustomer(w, r, parts[1])

		// Returns
		case parts[0] == "returns" && len(parts) == 1 && r.Method == "GET":
			handleListReturns(w, r)
		case parts[0] == "returns" && len(parts) == 1 && r.Method == "POST":
			handleCreateReturn(w, r)
		case parts[0] == "returns" && len(parts) == 2 && r.Method == "GET":
			handleGetReturn(w, r, parts[1])
		case parts[0] == "returns" && len(parts) == 3 && parts[2] == "process" && r.Method == "POST":
			handleProcessReturn(w, r, parts[1])
		case parts[0] == "returns" && len(parts) == 3 && parts[2] == "cancel" && r.Method == "POST":
			handleCancelReturn(w, r, parts[1])

		// Drivers
		case parts[0] == "drivers" && len(parts) == 1 && r.Method == "GET":
			handleListDrivers(w, r)
		case parts[0] == "drivers" && len(parts) == 1 && r.Method == "POST":
			handleCreateDriver(w, r)
		case parts[0] == "drivers" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateDriver(w, r, parts[1])

		// Delivery companies
		case parts[0] == "delivery-companies" && len(parts) == 1 && r.Method == "GET":
			handleListDeliveryCompanies(w, r)
		case parts[0] == "delivery-companies" && len(parts) == 1 && r.Method == "POST":
			handleCreateDeliveryCompany(w, r)
		case parts[0] == "delivery-companies" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateDeliveryCompany(w, r, parts[1])

		// Transfer orders
		case parts[0] == "transfers" && len(parts) == 1 && r.Method == "GET":
			handleListTransfers(w, r)
		case parts[0] == "transfers" && len(parts) == 1 && r.Method == "POST":
			handleCreateTransfer(w, r)
		case parts[0] == "transfers" && len(parts) == 2 && r.Method == "GET":
			handleGetTransfer(w, r, parts[1])
		case parts[0] == "transfers" && len(parts) == 3 && parts[2] == "ship" && r.Method == "POST":
			handleShipTransfer(w, r, parts[1])
		case parts[0] == "transfers" && len(parts) == 3 && parts[2] == "receive" && r.Method == "POST":
			handleReceiveTransfer(w, r, parts[1])
		case parts[0] == "transfers" && len(parts) == 3 && parts[2] == "cancel" && r.Method == "POST":
			handleCancelTransfer(w, r, parts[1])

		// Users
		case parts[0] == "users" && len(parts) == 1 && r.Method == "GET":
			handleListUsers(w, r)
		case parts[0] == "users" && len(parts) == 1 && r.Method == "POST":
			handleCreateUser(w, r)
		case parts[0] == "users" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateUser(w, r, parts[1])
		case parts[0] == "users" && len(parts) == 3 && parts[2] == "password" && r.Method == "PUT":
			handleResetPassword(w, r, parts[1])

		// Scan lookup
		case parts[0] == "scan" && len(parts) == 2 && r.Method == "GET":
			handleScanLookup(w, r, parts[1])

		// Audit
		case parts[0] == "audit" && len(parts) == 1 && r.Method == "GET":
			handleAuditLog(w, r)

		default:
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("WMS server starting on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, logging(requireAuth(requireRBAC(mux)))))
}
