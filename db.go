package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"wms/internal/auth"
	_ "modernc.org/sqlite"
)

var db *sql.DB

func initDB(path string) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err = sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return err
	}

	// SQLite can handle 1 writer + multiple readers with WAL mode
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Some drivers don't parse connection string params correctly
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return runMigrations()
}

func runMigrations() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS warehouses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT UNIQUE NOT NULL, name TEXT NOT NULL,
			address TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT DEFAULT '',
			role TEXT DEFAULT 'operator' CHECK(role IN ('admin','manager','operator','driver','viewer')),
			active INTEGER DEFAULT 1,
			failed_login_attempts INTEGER DEFAULT 0,
			locked_until DATETIME,
			last_login DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS warehouse_users (
			warehouse_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('admin','manager','operator','driver','viewer')),
			PRIMARY KEY (warehouse_id, user_id),
			FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			warehouse_id INTEGER,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			id TEXT PRIMARY KEY, name TEXT NOT NULL,
			contact_name TEXT DEFAULT '', contact_phone TEXT DEFAULT '',
			contact_email TEXT DEFAULT '', address TEXT DEFAULT '',
			city TEXT DEFAULT '', notes TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS items (
			item_number TEXT PRIMARY KEY,
			description TEXT DEFAULT '', brand TEXT DEFAULT '',
			model TEXT DEFAULT '', unit TEXT DEFAULT 'unit',
			barcode TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS locations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			warehouse_id INTEGER NOT NULL,
			code TEXT NOT NULL,
			type TEXT DEFAULT 'storage' CHECK(type IN ('receiving','storage','staging','shipping')),
			max_capacity_units INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (warehouse_id, code),
			FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS inventory (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			warehouse_id INTEGER NOT NULL,
			item_number TEXT NOT NULL,
			location_id INTEGER NOT NULL,
			batch_number TEXT DEFAULT '',
			dot_code TEXT DEFAULT '',
			quantity INTEGER NOT NULL DEFAULT 0 CHECK(quantity >= 0),
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (warehouse_id, item_number, location_id, batch_number, dot_code),
			FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE,
			FOREIGN KEY (item_number) REFERENCES items(item_number) ON DELETE RESTRICT,
			FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE RESTRICT
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_movements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			warehouse_id INTEGER NOT NULL,
			item_number TEXT NOT NULL,
			type TEXT NOT NULL CHECK(type IN ('receive','putaway','adjust','transfer','pick','unpick','stage','return','scrap')),
			quantity INTEGER NOT NULL,
			from_location TEXT DEFAULT '', to_location TEXT DEFAULT '',
			batch_number TEXT DEFAULT '', dot_code TEXT DEFAULT '',
			reference TEXT DEFAULT '', notes TEXT DEFAULT '',
			created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS inbound_shipments (
			id TEXT PRIMARY KEY,
			warehouse_id INTEGER NOT NULL,
			supplier TEXT NOT NULL,
			status TEXT DEFAULT 'Expected' CHECK(status IN ('Expected','Arrived','Receiving','Received','Put Away','Cancelled')),
			expected_date DATE,
			notes TEXT DEFAULT '', created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS inbound_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			shipment_id TEXT NOT NULL,
			item_number TEXT NOT NULL,
			expected_quantity INTEGER NOT NULL CHECK(expected_quantity > 0),
			received_quantity INTEGER DEFAULT 0 CHECK(received_quantity >= 0),
			putaway_quantity INTEGER DEFAULT 0 CHECK(putaway_quantity >= 0),
			batch_number TEXT DEFAULT '', dot_code TEXT DEFAULT '',
			FOREIGN KEY (shipment_id) REFERENCES inbound_shipments(id) ON DELETE CASCADE,
			FOREIGN KEY (item_number) REFERENCES items(item_number) ON DELETE RESTRICT
		)`,
		`CREATE TABLE IF NOT EXISTS outbound_orders (
			id TEXT PRIMARY KEY,
			warehouse_id INTEGER NOT NULL,
			customer_id TEXT DEFAULT '',
			order_type TEXT DEFAULT 'Customer' CHECK(order_type IN ('Customer','Transfer','Scrap')),
			status TEXT DEFAULT 'New' CHECK(status IN ('New','Pending Pick','Partially Picked','Picked','Staged','Ready for Pickup','Assigned','Out for Delivery','Delivery Failed','Delivered','Shipped','Cancelled','Returned','Partially Returned','Scrapped')),
			required_date DATE,
			staging_location_id INTEGER,
			tracking_number TEXT DEFAULT '',
			notes TEXT DEFAULT '', created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE,
			FOREIGN KEY (staging_location_id) REFERENCES locations(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbound_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			item_number TEXT NOT NULL,
			ordered_quantity INTEGER NOT NULL CHECK(ordered_quantity > 0),
			picked_quantity INTEGER DEFAULT 0 CHECK(picked_quantity >= 0),
			FOREIGN KEY (order_id) REFERENCES outbound_orders(id) ON DELETE CASCADE,
			FOREIGN KEY (item_number) REFERENCES items(item_number) ON DELETE RESTRICT
		)`,
		`CREATE TABLE IF NOT EXISTS picks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			outbound_item_id INTEGER NOT NULL,
			location_id INTEGER NOT NULL,
			batch_number TEXT DEFAULT '', dot_code TEXT DEFAULT '',
			picked_quantity INTEGER NOT NULL CHECK(picked_quantity > 0),
			picked_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (outbound_item_id) REFERENCES outbound_items(id) ON DELETE CASCADE,
			FOREIGN KEY (location_id) REFERENCES locations(id) ON DELETE RESTRICT
		)`,
		`CREATE TABLE IF NOT EXISTS drivers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			warehouse_id INTEGER NOT NULL,
			name TEXT NOT NULL, mobile TEXT DEFAULT '',
			license_number TEXT DEFAULT '',
			active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS delivery_companies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			contact_name TEXT DEFAULT '', phone TEXT DEFAULT '',
			email TEXT DEFAULT '',
			active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS assignments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			type TEXT NOT NULL CHECK(type IN ('in_house','third_party')),
			driver_id INTEGER,
			company_id INTEGER,
			tracking_number TEXT DEFAULT '',
			status TEXT DEFAULT 'active' CHECK(status IN ('active','replaced')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (order_id) REFERENCES outbound_orders(id) ON DELETE CASCADE,
			FOREIGN KEY (driver_id) REFERENCES drivers(id) ON DELETE SET NULL,
			FOREIGN KEY (company_id) REFERENCES delivery_companies(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS assignment_drivers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			assignment_id INTEGER NOT NULL,
			name TEXT NOT NULL, mobile TEXT NOT NULL,
			waybill_number TEXT NOT NULL,
			id_file TEXT DEFAULT '', license_file TEXT DEFAULT '',
			FOREIGN KEY (assignment_id) REFERENCES assignments(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS returns (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL,
			status TEXT DEFAULT 'Created' CHECK(status IN ('Created','Receiving','Processed','Cancelled')),
			reason TEXT DEFAULT '', created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (order_id) REFERENCES outbound_orders(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS return_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			return_id TEXT NOT NULL,
			outbound_item_id INTEGER NOT NULL,
			item_number TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK(quantity > 0),
			condition TEXT DEFAULT 'good' CHECK(condition IN ('good','damaged')),
			restock_location_id INTEGER,
			processed INTEGER DEFAULT 0,
			FOREIGN KEY (return_id) REFERENCES returns(id) ON DELETE CASCADE,
			FOREIGN KEY (outbound_item_id) REFERENCES outbound_items(id) ON DELETE CASCADE,
			FOREIGN KEY (restock_location_id) REFERENCES locations(id) ON DELETE SET NULL
		)`,
		`CREATE TABLE IF NOT EXISTS transfer_orders (
			id TEXT PRIMARY KEY,
			from_warehouse_id INTEGER NOT NULL,
			to_warehouse_id INTEGER NOT NULL,
			status TEXT DEFAULT 'Draft' CHECK(status IN ('Draft','Shipped','Received','Cancelled')),
			notes TEXT DEFAULT '', created_by TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (from_warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE,
			FOREIGN KEY (to_warehouse_id) REFERENCES warehouses(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS transfer_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			transfer_id TEXT NOT NULL,
			item_number TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK(quantity > 0),
			batch_number TEXT DEFAULT '', dot_code TEXT DEFAULT '',
			FOREIGN KEY (transfer_id) REFERENCES transfer_orders(id) ON DELETE CASCADE,
			FOREIGN KEY (item_number) REFERENCES items(item_number) ON DELETE RESTRICT
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT DEFAULT '',
			action TEXT NOT NULL, module TEXT NOT NULL,
			record_id TEXT DEFAULT '', summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("migration: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_inventory_item ON inventory(warehouse_id, item_number)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_location ON inventory(location_id)`,
		`CREATE INDEX IF NOT EXISTS idx_movements_item ON inventory_movements(warehouse_id, item_number)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON outbound_orders(warehouse_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_picks_item ON picks(outbound_item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_order ON assignments(order_id, status)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("index migration: %w", err)
		}
	}
	return nil
}

// seedDB creates the default admin user and warehouse on first run.
func seedDB() {
	var count int
	db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	if count == 0 {
		hash, err := auth.HashPassword("admin123")
		if err != nil {
			log.Printf("seed: hash password: %v", err)
			return
		}
		db.Exec("INSERT INTO users (username, password_hash, display_name, role) VALUES (?,?,?,?)",
			"admin", hash, "Administrator", "admin")
		log.Println("seed: created default admin user")
	}

	db.QueryRow("SELECT COUNT(*) FROM warehouses").Scan(&count)
	if count == 0 {
		db.Exec("INSERT INTO warehouses (code, name) VALUES (?,?)", "MAIN", "Main Warehouse")
		db.Exec(`INSERT INTO warehouse_users (warehouse_id, user_id, role)
			SELECT w.id, u.id, 'admin' FROM warehouses w, users u WHERE w.code='MAIN' AND u.username='admin'`)
	}
}

// nextID generates a sequential record ID like ORD-0001 by scanning the
// current maximum for the prefix.
func nextID(prefix, table string, digits int) string {
	var maxID sql.NullString
	query := fmt.Sprintf("SELECT MAX(id) FROM %s WHERE id LIKE ?", table)
	db.QueryRow(query, prefix+"-%").Scan(&maxID)
	n := 0
	if maxID.Valid {
		fmt.Sscanf(strings.TrimPrefix(maxID.String, prefix+"-"), "%d", &n)
	}
	return fmt.Sprintf("%s-%0*d", prefix, digits, n+1)
}
