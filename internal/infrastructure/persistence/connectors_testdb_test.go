package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// connectorsSchemaSQLite mirrors the migrations with SQLite types
var connectorsSchemaSQLite = []string{
	`CREATE TABLE bank_connectors (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		name TEXT NOT NULL,
		bank_type TEXT NOT NULL,
		sandbox_mode BOOLEAN NOT NULL DEFAULT 0,
		company_id TEXT,
		bank_ref TEXT,
		client_id TEXT NOT NULL,
		client_secret TEXT NOT NULL,
		scope TEXT,
		is_corporate BOOLEAN NOT NULL DEFAULT 0,
		corporate_customer_no TEXT,
		access_token TEXT,
		refresh_token TEXT,
		token_expires_at DATETIME,
		state TEXT NOT NULL DEFAULT 'draft',
		last_error TEXT,
		last_sync DATETIME,
		auto_sync_enabled BOOLEAN NOT NULL DEFAULT 1,
		sync_interval_minutes INTEGER NOT NULL DEFAULT 60
	)`,
	`CREATE TABLE bank_accounts (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		connector_id TEXT NOT NULL,
		acc_number TEXT NOT NULL,
		holder_name TEXT,
		currency TEXT NOT NULL DEFAULT 'TRY',
		iban TEXT,
		account_type TEXT,
		external_account_id TEXT,
		last_sync DATETIME,
		UNIQUE (connector_id, acc_number)
	)`,
	`CREATE TABLE statement_lines (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		reference TEXT NOT NULL,
		value_date DATETIME NOT NULL,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		description TEXT,
		counterparty_name TEXT,
		counterparty_iban TEXT,
		balance_after TEXT,
		partner_id TEXT,
		bank_import_ref TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE currency_rates (
		id TEXT PRIMARY KEY,
		currency TEXT NOT NULL,
		rate TEXT NOT NULL,
		buy_rate TEXT NOT NULL,
		effective_date DATETIME NOT NULL,
		source TEXT NOT NULL,
		connector_id TEXT,
		updated_at DATETIME NOT NULL,
		UNIQUE (currency, effective_date, source)
	)`,
	`CREATE TABLE partners (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		name TEXT NOT NULL,
		tax_id TEXT
	)`,
	`CREATE TABLE partner_bank_accounts (
		id TEXT PRIMARY KEY,
		partner_id TEXT NOT NULL,
		iban TEXT NOT NULL
	)`,
	`CREATE TABLE xml_product_sources (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		name TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'draft',
		feed_url TEXT,
		username TEXT,
		password TEXT,
		upload_key TEXT,
		declared_encoding TEXT,
		product_path TEXT,
		template TEXT NOT NULL DEFAULT 'custom',
		supplier_id TEXT,
		markup_percent TEXT NOT NULL DEFAULT '0',
		markup_fixed TEXT NOT NULL DEFAULT '0',
		min_price TEXT,
		max_price TEXT,
		currency TEXT,
		rounding TEXT NOT NULL DEFAULT 'none',
		create_new BOOLEAN NOT NULL DEFAULT 1,
		update_existing BOOLEAN NOT NULL DEFAULT 1,
		update_price BOOLEAN NOT NULL DEFAULT 1,
		update_stock BOOLEAN NOT NULL DEFAULT 1,
		update_images BOOLEAN NOT NULL DEFAULT 1,
		update_description BOOLEAN NOT NULL DEFAULT 1,
		update_category BOOLEAN NOT NULL DEFAULT 1,
		deactivate_zero_stock BOOLEAN NOT NULL DEFAULT 0,
		auto_create_category BOOLEAN NOT NULL DEFAULT 1,
		category_separator TEXT,
		default_category TEXT,
		auto_sync BOOLEAN NOT NULL DEFAULT 0,
		sync_interval_minutes INTEGER NOT NULL DEFAULT 360,
		last_sync DATETIME,
		last_error TEXT
	)`,
	`CREATE TABLE xml_field_mappings (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		sequence INTEGER NOT NULL DEFAULT 10,
		target TEXT NOT NULL,
		xml_path TEXT NOT NULL,
		transform TEXT NOT NULL DEFAULT 'none',
		regex_pattern TEXT,
		regex_replace TEXT,
		default_value TEXT,
		is_required BOOLEAN NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE xml_category_mappings (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL,
		sequence INTEGER NOT NULL DEFAULT 10,
		xml_category TEXT NOT NULL,
		category TEXT NOT NULL,
		match_type TEXT NOT NULL DEFAULT 'exact',
		active BOOLEAN NOT NULL DEFAULT 1,
		UNIQUE (source_id, xml_category)
	)`,
	`CREATE TABLE product_categories (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		name TEXT NOT NULL,
		parent_id TEXT,
		complete_name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		sku TEXT,
		barcode TEXT UNIQUE,
		name TEXT NOT NULL,
		description TEXT,
		list_price TEXT NOT NULL DEFAULT '0',
		cost TEXT NOT NULL DEFAULT '0',
		currency TEXT,
		stock TEXT NOT NULL DEFAULT '0',
		brand TEXT,
		category TEXT,
		model TEXT,
		color TEXT,
		size TEXT,
		weight TEXT NOT NULL DEFAULT '0',
		tax_rate TEXT NOT NULL DEFAULT '0',
		image_url TEXT,
		image_urls TEXT,
		supplier_id TEXT,
		supplier_sku TEXT,
		source_id TEXT,
		locked_from_feeds BOOLEAN NOT NULL DEFAULT 0,
		sale_ok BOOLEAN NOT NULL DEFAULT 1,
		last_sync_source TEXT,
		last_sync_time DATETIME
	)`,
	`CREATE TABLE xml_product_exports (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		access_token TEXT NOT NULL UNIQUE,
		password TEXT,
		filter TEXT NOT NULL DEFAULT 'all',
		categories TEXT,
		supplier_id TEXT,
		product_ids TEXT,
		include_zero_stock BOOLEAN NOT NULL DEFAULT 0,
		min_stock INTEGER NOT NULL DEFAULT 0,
		price_field TEXT NOT NULL DEFAULT 'list_price',
		adjustment TEXT NOT NULL DEFAULT 'none',
		adjustment_value TEXT NOT NULL DEFAULT '0',
		currency TEXT,
		format TEXT NOT NULL DEFAULT 'standard',
		root_element TEXT,
		product_element TEXT,
		include_images BOOLEAN NOT NULL DEFAULT 1,
		include_description BOOLEAN NOT NULL DEFAULT 1,
		last_access DATETIME,
		access_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE xml_export_field_mappings (
		id TEXT PRIMARY KEY,
		export_id TEXT NOT NULL,
		sequence INTEGER NOT NULL DEFAULT 10,
		name TEXT NOT NULL,
		field TEXT NOT NULL,
		element TEXT NOT NULL,
		use_cdata BOOLEAN NOT NULL DEFAULT 0,
		default_value TEXT
	)`,
	`CREATE TABLE run_logs (
		id TEXT PRIMARY KEY,
		source_kind TEXT NOT NULL,
		source_id TEXT NOT NULL,
		source_name TEXT,
		operation TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME,
		state TEXT NOT NULL,
		total INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error_details TEXT,
		duration_seconds REAL NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX uq_run_logs_running ON run_logs (source_kind, source_id) WHERE state = 'running'`,
	`CREATE TABLE qcommerce_channels (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		name TEXT NOT NULL,
		platform TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		merchant_id TEXT,
		api_key TEXT,
		webhook_secret TEXT,
		shop_id TEXT,
		last_sync DATETIME
	)`,
}

// setupConnectorsTestDB opens an in-memory SQLite database with the connectors schema.
// A single connection keeps every statement on the same in-memory database.
func setupConnectorsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range connectorsSchemaSQLite {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}
