package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"bazaar-economy-api/internal/model"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
)

// MySQLStore implements Store using MySQL, for deployments that share
// the marketplace database across several game nodes. Connection
// pooling is tuned for sustained traffic; the version-CAS contract is
// identical to the SQLite backend.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens (and migrates) a MySQL marketplace store.
// dsn format: "user:pass@tcp(host:port)/dbname?parseTime=true"
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if err := createMySQLTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	log.Printf("[MySQLStore] Initialized with pool: max=%d, idle=%d", 25, 10)
	return &MySQLStore{db: db}, nil
}

func createMySQLTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS auction_listings (
			id VARCHAR(36) PRIMARY KEY,
			seller VARCHAR(64) NOT NULL,
			item_registry_id VARCHAR(128) NOT NULL,
			item_hash VARCHAR(64) NOT NULL,
			item_payload BLOB NOT NULL,
			count BIGINT NOT NULL,
			starting_price BIGINT NOT NULL,
			buyout_price BIGINT NOT NULL DEFAULT 0,
			bid_increment BIGINT NOT NULL DEFAULT 1,
			currency_id VARCHAR(64) NOT NULL,
			created_at DATETIME(3) NOT NULL,
			expires_at DATETIME(3) NOT NULL,
			status VARCHAR(16) NOT NULL,
			highest_bidder VARCHAR(64) NOT NULL DEFAULT '',
			highest_bid BIGINT NOT NULL DEFAULT 0,
			version BIGINT NOT NULL,
			INDEX idx_listings_status_expiry (status, expires_at),
			INDEX idx_listings_seller (seller, status)
		)`,
		`CREATE TABLE IF NOT EXISTS shop_offers (
			id VARCHAR(36) PRIMARY KEY,
			shop_id VARCHAR(64) NOT NULL,
			item_registry_id VARCHAR(128) NOT NULL,
			item_hash VARCHAR(64) NOT NULL,
			item_payload BLOB NOT NULL,
			count BIGINT NOT NULL,
			price BIGINT NOT NULL,
			stock BIGINT NOT NULL DEFAULT 0,
			infinite_stock TINYINT(1) NOT NULL DEFAULT 0,
			buy_enabled TINYINT(1) NOT NULL DEFAULT 1,
			sell_enabled TINYINT(1) NOT NULL DEFAULT 1,
			category VARCHAR(64) NOT NULL DEFAULT '',
			version BIGINT NOT NULL,
			created_at DATETIME(3) NOT NULL,
			INDEX idx_offers_shop (shop_id, category),
			INDEX idx_offers_item (shop_id, item_registry_id, item_hash)
		)`,
		`CREATE TABLE IF NOT EXISTS deliveries (
			id VARCHAR(36) PRIMARY KEY,
			owner VARCHAR(64) NOT NULL,
			type VARCHAR(8) NOT NULL,
			item_hash VARCHAR(64) NOT NULL DEFAULT '',
			item_payload BLOB,
			item_count BIGINT NOT NULL DEFAULT 0,
			currency_id VARCHAR(64) NOT NULL DEFAULT '',
			amount BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL,
			seq BIGINT AUTO_INCREMENT UNIQUE,
			created_at DATETIME(3) NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			INDEX idx_deliveries_owner (owner, status)
		)`,
		`CREATE TABLE IF NOT EXISTS trade_logs (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			kind VARCHAR(32) NOT NULL,
			actor VARCHAR(64) NOT NULL,
			counterparty VARCHAR(64) NOT NULL DEFAULT '',
			item_registry_id VARCHAR(128) NOT NULL DEFAULT '',
			item_count BIGINT NOT NULL DEFAULT 0,
			amount BIGINT NOT NULL DEFAULT 0,
			currency_id VARCHAR(64) NOT NULL DEFAULT '',
			message_key VARCHAR(64) NOT NULL,
			created_at DATETIME(3) NOT NULL,
			INDEX idx_trade_logs_created (created_at)
		)`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// CreateListing inserts a new listing with version 1.
func (s *MySQLStore) CreateListing(ctx context.Context, l *model.AuctionListing) error {
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
func (s *MySQLStore) GetListing(ctx context.Context, id string) (*model.AuctionListing, error) {
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

// UpdateListing applies a version-checked update.
func (s *MySQLStore) UpdateListing(ctx context.Context, l *model.AuctionListing, expectedVersion int64) (bool, error) {
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
func (s *MySQLStore) ListOpenListings(ctx context.Context, query string, page, limit int) ([]model.AuctionListing, int64, error) {
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
func (s *MySQLStore) CountOpenListings(ctx context.Context, seller string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM auction_listings WHERE seller = ? AND status = 'OPEN'`
	if err := s.db.QueryRowContext(ctx, query, seller).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count open listings: %w", err)
	}
	return n, nil
}

// ListExpiredListings returns up to limit OPEN listings past expiry.
func (s *MySQLStore) ListExpiredListings(ctx context.Context, before time.Time, limit int) ([]model.AuctionListing, error) {
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

// CreateOffer inserts a new offer with version 1.
func (s *MySQLStore) CreateOffer(ctx context.Context, o *model.ShopOffer) error {
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
func (s *MySQLStore) GetOffer(ctx context.Context, id string) (*model.ShopOffer, error) {
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
func (s *MySQLStore) FindOffer(ctx context.Context, shopID, registryID, hash, category string) (*model.ShopOffer, error) {
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
func (s *MySQLStore) UpdateOfferStock(ctx context.Context, id string, newStock int64, expectedVersion int64) (bool, error) {
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
func (s *MySQLStore) ListOffers(ctx context.Context, shopID string, page, limit int) ([]model.ShopOffer, int64, error) {
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
func (s *MySQLStore) InsertDelivery(ctx context.Context, d *model.Delivery) error {
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
func (s *MySQLStore) ListPendingDeliveries(ctx context.Context, owner string, limit int) ([]model.Delivery, error) {
	query := `SELECT id, owner, type, item_hash, item_payload, item_count, currency_id,
		amount, status, created_at, attempts
		FROM deliveries WHERE owner = ? AND status = 'PENDING'
		ORDER BY seq ASC LIMIT ?`
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
func (s *MySQLStore) MarkDeliveryClaimed(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE deliveries SET status = 'CLAIMED' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark delivery claimed: %w", err)
	}
	return nil
}

// UpdateDeliveryAttempt records a failed claim attempt.
func (s *MySQLStore) UpdateDeliveryAttempt(ctx context.Context, id string, attempts int) error {
	_, err := s.db.ExecContext(ctx, `UPDATE deliveries SET attempts = ? WHERE id = ?`, attempts, id)
	if err != nil {
		return fmt.Errorf("failed to update delivery attempts: %w", err)
	}
	return nil
}

// CountPendingDeliveries counts PENDING deliveries for an owner.
func (s *MySQLStore) CountPendingDeliveries(ctx context.Context, owner string) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM deliveries WHERE owner = ? AND status = 'PENDING'`
	if err := s.db.QueryRowContext(ctx, query, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending deliveries: %w", err)
	}
	return n, nil
}

// InsertTradeLog appends a trade log row.
func (s *MySQLStore) InsertTradeLog(ctx context.Context, entry *model.TradeLog) error {
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
func (s *MySQLStore) ListTradeLogs(ctx context.Context, page, limit int) ([]model.TradeLog, int64, error) {
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
func (s *MySQLStore) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats := map[string]interface{}{"backend": "mysql"}

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

	return stats, nil
}

// Close closes the database connection.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

// Ensure MySQLStore implements Store
var _ Store = (*MySQLStore)(nil)
