package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"bazaar-economy-api/internal/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
)

// SQLiteStore implements Store using SQLite. Thread-safe with WAL mode
// for high-concurrency reads; the single-writer limit of SQLite is
// enforced through the connection pool.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (and migrates) a SQLite marketplace store.
// dbPath is the path to the database file (e.g. "./data/bazaar.db").
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// SQLite only supports 1 writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createSQLiteTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

func createSQLiteTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS auction_listings (
		id TEXT PRIMARY KEY,
		seller TEXT NOT NULL,
		item_registry_id TEXT NOT NULL,
		item_hash TEXT NOT NULL,
		item_payload BLOB NOT NULL,
		count INTEGER NOT NULL,
		starting_price INTEGER NOT NULL,
		buyout_price INTEGER NOT NULL DEFAULT 0,
		bid_increment INTEGER NOT NULL DEFAULT 1,
		currency_id TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		highest_bidder TEXT NOT NULL DEFAULT '',
		highest_bid INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_listings_status_expiry ON auction_listings(status, expires_at);
	CREATE INDEX IF NOT EXISTS idx_listings_seller ON auction_listings(seller, status);

	CREATE TABLE IF NOT EXISTS shop_offers (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		item_registry_id TEXT NOT NULL,
		item_hash TEXT NOT NULL,
		item_payload BLOB NOT NULL,
		count INTEGER NOT NULL,
		price INTEGER NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		infinite_stock INTEGER NOT NULL DEFAULT 0,
		buy_enabled INTEGER NOT NULL DEFAULT 1,
		sell_enabled INTEGER NOT NULL DEFAULT 1,
		category TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_offers_shop ON shop_offers(shop_id, category);
	CREATE INDEX IF NOT EXISTS idx_offers_item ON shop_offers(shop_id, item_registry_id, item_hash);

	CREATE TABLE IF NOT EXISTS deliveries (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		type TEXT NOT NULL,
		item_hash TEXT NOT NULL DEFAULT '',
		item_payload BLOB,
		item_count INTEGER NOT NULL DEFAULT 0,
		currency_id TEXT NOT NULL DEFAULT '',
		amount INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_owner ON deliveries(owner, status);

	CREATE TABLE IF NOT EXISTS trade_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		actor TEXT NOT NULL,
		counterparty TEXT NOT NULL DEFAULT '',
		item_registry_id TEXT NOT NULL DEFAULT '',
		item_count INTEGER NOT NULL DEFAULT 0,
		amount INTEGER NOT NULL DEFAULT 0,
		currency_id TEXT NOT NULL DEFAULT '',
		message_key TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trade_logs_created ON trade_logs(created_at);
	`
	_, err := db.Exec(query)
	return err
}

const listingColumns = `id, seller, item_registry_id, item_hash, item_payload, count,
	starting_price, buyout_price, bid_increment, currency_id, created_at, expires_at,
	status, highest_bidder, highest_bid, version`

func scanListing(row interface{ Scan(...interface{}) error }) (*model.AuctionListing, error) {
	var l model.AuctionListing
	var status string
	err := row.Scan(&l.ID, &l.Seller, &l.ItemRegistryID, &l.ItemHash, &l.ItemPayload,
		&l.Count, &l.StartingPrice, &l.BuyoutPrice, &l.BidIncrement, &l.CurrencyID,
		&l.CreatedAt, &l.ExpiresAt, &status, &l.HighestBidder, &l.HighestBid, &l.Version)
	if err != nil {
		return nil, err
	}
	l.Status = model.ListingStatus(status)
	return &l, nil
}

// CreateListing inserts a new listing with version 1.
func (s *SQLiteStore) CreateListing(ctx context.Context, l *model.AuctionListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.Version = 1
	query := `INSERT INTO auction_listings (` + listingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, l.ID, l.Seller, l.ItemRegistryID, l.ItemHash,
		l.ItemPayload, l.Count, l.StartingPrice, l.BuyoutPrice, l.BidIncrement, l.CurrencyID,
		l.CreatedAt, l.ExpiresAt, string(l.Status), l.HighestBidder, l.HighestBid, l.Version)
	if err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

// GetListing retrieves a listing by id, (nil, nil) when absent.
func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.AuctionListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + listingColumns + ` FROM auction_listings WHERE id = ?`
	l, err := scanListing(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return l, nil
}

// UpdateListing applies a version-checked update. Only the mutable
// fields are written; the version column is bumped atomically.
func (s *SQLiteStore) UpdateListing(ctx context.Context, l *model.AuctionListing, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE auction_listings
		SET status = ?, highest_bidder = ?, highest_bid = ?, version = version + 1
		WHERE id = ? AND version = ?`
	res, err := s.db.ExecContext(ctx, query, string(l.Status), l.HighestBidder, l.HighestBid,
		l.ID, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to update listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n != 1 {
		return false, nil
	}
	l.Version = expectedVersion + 1
	return true, nil
}

// ListOpenListings returns a page of OPEN listings ordered by soonest expiry.
func (s *SQLiteStore) ListOpenListings(ctx context.Context, query string, page, limit int) ([]model.AuctionListing, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	pattern := "%" + query + "%"

	var total int64
	countQ := `SELECT COUNT(*) FROM auction_listings WHERE status = 'OPEN' AND item_registry_id LIKE ?`
	if err := s.db.QueryRowContext(ctx, countQ, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count listings: %w", err)
	}

	listQ := `SELECT ` + listingColumns + ` FROM auction_listings
		WHERE status = 'OPEN' AND item_registry_id LIKE ?
		ORDER BY expires_at ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, listQ, pattern, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	out := make([]model.AuctionListing, 0, limit)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

// CountOpenListings counts OPEN listings for one seller.
func (s *SQLiteStore) CountOpenListings(ctx context.Context, seller string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	query := `SELECT COUNT(*) FROM auction_listings WHERE seller = ? AND status = 'OPEN'`
	if err := s.db.QueryRowContext(ctx, query, seller).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count open listings: %w", err)
	}
	return n, nil
}

// ListExpiredListings returns up to limit OPEN listings past expiry.
func (s *SQLiteStore) ListExpiredListings(ctx context.Context, before time.Time, limit int) ([]model.AuctionListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + listingColumns + ` FROM auction_listings
		WHERE status = 'OPEN' AND expires_at < ?
		ORDER BY expires_at ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired listings: %w", err)
	}
	defer rows.Close()

	out := make([]model.AuctionListing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

const offerColumns = `id, shop_id, item_registry_id, item_hash, item_payload, count, price,
	stock, infinite_stock, buy_enabled, sell_enabled, category, version, created_at`

func scanOffer(row interface{ Scan(...interface{}) error }) (*model.ShopOffer, error) {
	var o model.ShopOffer
	var infinite, buy, sell int64
	err := row.Scan(&o.ID, &o.ShopID, &o.ItemRegistryID, &o.ItemHash, &o.ItemPayload,
		&o.Count, &o.Price, &o.Stock, &infinite, &buy, &sell,
		&o.Category, &o.Version, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.InfiniteStock = infinite != 0
	o.BuyEnabled = buy != 0
	o.SellEnabled = sell != 0
	return &o, nil
}

// CreateOffer inserts a new offer with version 1.
func (s *SQLiteStore) CreateOffer(ctx context.Context, o *model.ShopOffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.Version = 1
	query := `INSERT INTO shop_offers (` + offerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, o.ID, o.ShopID, o.ItemRegistryID, o.ItemHash,
		o.ItemPayload, o.Count, o.Price, o.Stock, o.InfiniteStock, o.BuyEnabled,
		o.SellEnabled, o.Category, o.Version, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}

// GetOffer retrieves an offer by id, (nil, nil) when absent.
func (s *SQLiteStore) GetOffer(ctx context.Context, id string) (*model.ShopOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + offerColumns + ` FROM shop_offers WHERE id = ?`
	o, err := scanOffer(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return o, nil
}

// FindOffer looks an offer up by shop and item key.
func (s *SQLiteStore) FindOffer(ctx context.Context, shopID, registryID, hash, category string) (*model.ShopOffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + offerColumns + ` FROM shop_offers
		WHERE shop_id = ? AND item_registry_id = ? AND item_hash = ?
		AND (? = '' OR category = ?) LIMIT 1`
	o, err := scanOffer(s.db.QueryRowContext(ctx, query, shopID, registryID, hash, category, category))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find offer: %w", err)
	}
	return o, nil
}

// UpdateOfferStock applies a version-checked stock write.
func (s *SQLiteStore) UpdateOfferStock(ctx context.Context, id string, newStock int64, expectedVersion int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE shop_offers SET stock = ?, version = version + 1
		WHERE id = ? AND version = ?`
	res, err := s.db.ExecContext(ctx, query, newStock, id, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("failed to update offer stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListOffers returns a page of offers for a shop.
func (s *SQLiteStore) ListOffers(ctx context.Context, shopID string, page, limit int) ([]model.ShopOffer, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shop_offers WHERE shop_id = ?`, shopID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count offers: %w", err)
	}

	query := `SELECT ` + offerColumns + ` FROM shop_offers WHERE shop_id = ?
		ORDER BY category ASC, id ASC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, shopID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	out := make([]model.ShopOffer, 0, limit)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

// InsertDelivery appends a delivery row.
func (s *SQLiteStore) InsertDelivery(ctx context.Context, d *model.Delivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO deliveries (id, owner, type, item_hash, item_payload, item_count,
		currency_id, amount, status, created_at, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, d.ID, d.Owner, string(d.Type), d.ItemHash,
		d.ItemBlob, d.ItemCount, d.CurrencyID, d.Amount, string(d.Status), d.CreatedAt, d.Attempts)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

// ListPendingDeliveries returns PENDING deliveries in creation order.
// rowid breaks ties between rows created in the same instant.
func (s *SQLiteStore) ListPendingDeliveries(ctx context.Context, owner string, limit int) ([]model.Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, owner, type, item_hash, item_payload, item_count, currency_id,
		amount, status, created_at, attempts
		FROM deliveries WHERE owner = ? AND status = 'PENDING'
		ORDER BY created_at ASC, rowid ASC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deliveries: %w", err)
	}
	defer rows.Close()

	out := make([]model.Delivery, 0, limit)
	for rows.Next() {
		var d model.Delivery
		var typ, status string
		if err := rows.Scan(&d.ID, &d.Owner, &typ, &d.ItemHash, &d.ItemBlob, &d.ItemCount,
			&d.CurrencyID, &d.Amount, &status, &d.CreatedAt, &d.Attempts); err != nil {
			return nil, err
		}
		d.Type = model.DeliveryType(typ)
		d.Status = model.DeliveryStatus(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

// MarkDeliveryClaimed transitions a delivery to CLAIMED.
func (s *SQLiteStore) MarkDeliveryClaimed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE deliveries SET status = 'CLAIMED' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark delivery claimed: %w", err)
	}
	return nil
}

// UpdateDeliveryAttempt records a failed claim attempt.
func (s *SQLiteStore) UpdateDeliveryAttempt(ctx context.Context, id string, attempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE deliveries SET attempts = ? WHERE id = ?`, attempts, id)
	if err != nil {
		return fmt.Errorf("failed to update delivery attempts: %w", err)
	}
	return nil
}

// CountPendingDeliveries counts PENDING deliveries for an owner.
func (s *SQLiteStore) CountPendingDeliveries(ctx context.Context, owner string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	query := `SELECT COUNT(*) FROM deliveries WHERE owner = ? AND status = 'PENDING'`
	if err := s.db.QueryRowContext(ctx, query, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending deliveries: %w", err)
	}
	return n, nil
}

// InsertTradeLog appends a trade log row.
func (s *SQLiteStore) InsertTradeLog(ctx context.Context, entry *model.TradeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO trade_logs (kind, actor, counterparty, item_registry_id, item_count,
		amount, currency_id, message_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, entry.Kind, entry.Actor, entry.Counterparty,
		entry.ItemRegistryID, entry.ItemCount, entry.Amount, entry.CurrencyID,
		entry.MessageKey, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert trade log: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListTradeLogs returns trade logs newest first.
func (s *SQLiteStore) ListTradeLogs(ctx context.Context, page, limit int) ([]model.TradeLog, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trade_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trade logs: %w", err)
	}

	query := `SELECT id, kind, actor, counterparty, item_registry_id, item_count, amount,
		currency_id, message_key, created_at
		FROM trade_logs ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trade logs: %w", err)
	}
	defer rows.Close()

	out := make([]model.TradeLog, 0, limit)
	for rows.Next() {
		var e model.TradeLog
		if err := rows.Scan(&e.ID, &e.Kind, &e.Actor, &e.Counterparty, &e.ItemRegistryID,
			&e.ItemCount, &e.Amount, &e.CurrencyID, &e.MessageKey, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

// Stats returns statistics about the marketplace database.
func (s *SQLiteStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{"backend": "sqlite"}

	for name, query := range map[string]string{
		"listings":           `SELECT COUNT(*) FROM auction_listings`,
		"open_listings":      `SELECT COUNT(*) FROM auction_listings WHERE status = 'OPEN'`,
		"offers":             `SELECT COUNT(*) FROM shop_offers`,
		"pending_deliveries": `SELECT COUNT(*) FROM deliveries WHERE status = 'PENDING'`,
		"trade_logs":         `SELECT COUNT(*) FROM trade_logs`,
	} {
		var n int64
		if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, err
		}
		stats[name] = n
	}

	// Database file size (approximate from page count)
	var pageCount, pageSize int64
	s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
