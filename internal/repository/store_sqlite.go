package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"baro-tracker-api/internal/canonical"
	"baro-tracker-api/internal/logger"
	"baro-tracker-api/internal/model"

	"modernc.org/sqlite" // Pure Go SQLite driver - no CGO required
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	tokenSeparator = "\x1f"

	// timeLayout is fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteStore implements Store using SQLite.
// Writes are serialized; WAL mode keeps reads concurrent.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the database at dbPath, e.g. "./data/baro.db".
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports 1 writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Log.Infof("[SQLiteStore] Initialized with database: %s", dbPath)
	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		canonical_path TEXT NOT NULL DEFAULT '',
		canonical_segment TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'Unknown',
		credit_price INTEGER NOT NULL DEFAULT 0,
		ducat_price INTEGER NOT NULL DEFAULT 0,
		image TEXT NOT NULL DEFAULT '',
		link TEXT NOT NULL DEFAULT ''
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_items_canonical_path ON items(canonical_path) WHERE canonical_path <> '';
	CREATE INDEX IF NOT EXISTS idx_items_segment ON items(canonical_segment);
	CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);

	CREATE TABLE IF NOT EXISTS item_offering_dates (
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		date TEXT NOT NULL,
		PRIMARY KEY (item_id, date)
	);

	CREATE TABLE IF NOT EXISTS item_wishlist (
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		token TEXT NOT NULL,
		PRIMARY KEY (item_id, token)
	);
	CREATE INDEX IF NOT EXISTS idx_wishlist_token ON item_wishlist(token);

	CREATE TABLE IF NOT EXISTS unknown_items (
		unique_name TEXT PRIMARY KEY,
		item TEXT NOT NULL,
		ducats INTEGER NOT NULL DEFAULT 0,
		credits INTEGER NOT NULL DEFAULT 0,
		first_seen_at TEXT NOT NULL,
		last_seen_at TEXT NOT NULL,
		is_suspected_new INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS vendor_status (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		is_active INTEGER NOT NULL,
		activation TEXT NOT NULL,
		expiry TEXT NOT NULL,
		location TEXT NOT NULL,
		inventory TEXT NOT NULL DEFAULT '[]',
		source TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL,
		notified_activation TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS likes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		uid TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (item_id, uid)
	);

	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		author TEXT NOT NULL,
		content TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL DEFAULT '',
		uid TEXT NOT NULL,
		report_count INTEGER NOT NULL DEFAULT 0,
		UNIQUE (item_id, uid)
	);

	CREATE TABLE IF NOT EXISTS market_data (
		item_id INTEGER PRIMARY KEY REFERENCES items(id) ON DELETE CASCADE,
		data TEXT NOT NULL DEFAULT '[]',
		last_updated TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS push_tokens (
		token TEXT PRIMARY KEY,
		device_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		last_used TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1
	);
	`
	if _, err := db.Exec(query); err != nil {
		return err
	}
	return addColumns(db)
}

// addColumns brings databases created by older builds up to the current schema.
func addColumns(db *sql.DB) error {
	columns := []struct{ table, name, def string }{
		{"vendor_status", "notified_activation", "TEXT NOT NULL DEFAULT ''"},
	}
	for _, c := range columns {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.name).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to inspect %s: %w", c.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, c.def)); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", c.table, c.name, err)
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

// itemSelect derives the like and review id lists from their tables.
const itemSelect = `
	SELECT i.id, i.name, i.canonical_path, i.type, i.credit_price, i.ducat_price, i.image, i.link,
		COALESCE((SELECT group_concat(l.id, ',') FROM likes l WHERE l.item_id = i.id), ''),
		COALESCE((SELECT group_concat(v.id, ',') FROM reviews v WHERE v.item_id = i.id), ''),
		COALESCE((SELECT group_concat(d.date, ',') FROM item_offering_dates d WHERE d.item_id = i.id), ''),
		COALESCE((SELECT group_concat(w.token, char(31)) FROM item_wishlist w WHERE w.item_id = i.id), '')
	FROM items i`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*model.CatalogItem, error) {
	var (
		id                   int64
		item                 model.CatalogItem
		likes, reviews       string
		datesList, tokenList string
	)
	err := row.Scan(&id, &item.Name, &item.CanonicalPath, &item.Type, &item.CreditPrice, &item.DucatPrice,
		&item.Image, &item.Link, &likes, &reviews, &datesList, &tokenList)
	if err != nil {
		return nil, err
	}
	item.ID = strconv.FormatInt(id, 10)
	item.OfferingDates = splitList(datesList, ",")
	item.WishlistTokens = splitList(tokenList, tokenSeparator)
	item.WishlistCount = len(item.WishlistTokens)
	item.LikeRefs = splitList(likes, ",")
	item.ReviewRefs = splitList(reviews, ",")
	return &item, nil
}

func splitList(s, sep string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, sep)
}

func decodeList(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

func encodeList(in []string) string {
	data, err := json.Marshal(nonNil(in))
	if err != nil {
		return "[]"
	}
	return string(data)
}

func (r *SQLiteStore) queryOne(ctx context.Context, where string, args ...interface{}) (*model.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, err := scanItem(r.db.QueryRowContext(ctx, itemSelect+" WHERE "+where+" LIMIT 1", args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

func (r *SQLiteStore) queryMany(ctx context.Context, where string, args ...interface{}) ([]*model.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := itemSelect
	if where != "" {
		query += " WHERE " + where
	}
	rows, err := r.db.QueryContext(ctx, query+" ORDER BY i.id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	items := []*model.CatalogItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FindBySegment matches on the stored final segment and verifies the full path.
func (r *SQLiteStore) FindBySegment(ctx context.Context, segment string) (*model.CatalogItem, error) {
	if segment == "" {
		return nil, nil
	}
	items, err := r.queryMany(ctx, "i.canonical_segment = ?", segment)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if canonical.Path(item.CanonicalPath).EndsWithSegment(segment) {
			return item, nil
		}
	}
	return nil, nil
}

func (r *SQLiteStore) FindLegacyByName(ctx context.Context, name string) (*model.CatalogItem, error) {
	return r.queryOne(ctx, "i.canonical_path = '' AND i.name = ?", name)
}

func (r *SQLiteStore) FindMissingCanonicalPath(ctx context.Context) ([]*model.CatalogItem, error) {
	return r.queryMany(ctx, "i.canonical_path = ''")
}

func (r *SQLiteStore) FindByID(ctx context.Context, id string) (*model.CatalogItem, error) {
	n, err := parseID(id)
	if err != nil {
		return nil, err
	}
	item, err := r.queryOne(ctx, "i.id = ?", n)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, nil
}

func (r *SQLiteStore) FindByIDs(ctx context.Context, ids []string) ([]*model.CatalogItem, error) {
	var args []interface{}
	for _, id := range uniqueStrings(ids) {
		if n, err := strconv.ParseInt(id, 10, 64); err == nil {
			args = append(args, n)
		}
	}
	if len(args) == 0 {
		return []*model.CatalogItem{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	return r.queryMany(ctx, "i.id IN ("+placeholders+")", args...)
}

func (r *SQLiteStore) ListItems(ctx context.Context) ([]*model.CatalogItem, error) {
	return r.queryMany(ctx, "")
}

func (r *SQLiteStore) InsertItem(ctx context.Context, item *model.CatalogItem) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	itemType := item.Type
	if itemType == "" {
		itemType = model.TypeUnknown
	}
	segment := ""
	if item.CanonicalPath != "" {
		segment = canonical.SegmentOf(item.CanonicalPath)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO items (name, canonical_path, canonical_segment, type, credit_price, ducat_price, image, link)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Name, item.CanonicalPath, segment, itemType, item.CreditPrice, item.DucatPrice,
		item.Image, item.Link)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("%w: %s", ErrDuplicateCanonicalPath, item.CanonicalPath)
	}
	if err != nil {
		return "", fmt.Errorf("failed to insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("failed to read item id: %w", err)
	}

	for _, date := range item.OfferingDates {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO item_offering_dates (item_id, date) VALUES (?, ?)`, id, date); err != nil {
			return "", fmt.Errorf("failed to insert offering date: %w", err)
		}
	}
	for _, token := range item.WishlistTokens {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO item_wishlist (item_id, token) VALUES (?, ?)`, id, token); err != nil {
			return "", fmt.Errorf("failed to insert wishlist token: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (r *SQLiteStore) itemExists(ctx context.Context, id int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, id).Scan(&n)
	return n > 0, err
}

// execOnItem runs query with (id, arg) after checking the item exists.
func (r *SQLiteStore) execOnItem(ctx context.Context, id, arg, query string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ok, err := r.itemExists(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to check item: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err := r.db.ExecContext(ctx, query, n, arg); err != nil {
		return fmt.Errorf("failed to update item %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteStore) AppendOfferingDate(ctx context.Context, id, date string) error {
	return r.execOnItem(ctx, id, date, `INSERT OR IGNORE INTO item_offering_dates (item_id, date) VALUES (?, ?)`)
}

func (r *SQLiteStore) SetCanonicalPath(ctx context.Context, id, path string) (bool, error) {
	n, err := parseID(id)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx,
		`UPDATE items SET canonical_path = ?, canonical_segment = ? WHERE id = ? AND canonical_path = ''`,
		path, canonical.SegmentOf(path), n)
	if isUniqueViolation(err) {
		return false, fmt.Errorf("%w: %s", ErrDuplicateCanonicalPath, path)
	}
	if err != nil {
		return false, fmt.Errorf("failed to set canonical path: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *SQLiteStore) AddWishlistToken(ctx context.Context, id, token string) error {
	return r.execOnItem(ctx, id, token, `INSERT OR IGNORE INTO item_wishlist (item_id, token) VALUES (?, ?)`)
}

func (r *SQLiteStore) RemoveWishlistToken(ctx context.Context, id, token string) error {
	return r.execOnItem(ctx, id, token, `DELETE FROM item_wishlist WHERE item_id = ? AND token = ?`)
}

func (r *SQLiteStore) ReplaceWishlistToken(ctx context.Context, oldToken, newToken string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO item_wishlist (item_id, token)
		SELECT item_id, ? FROM item_wishlist WHERE token = ?`, newToken, oldToken)
	if err != nil {
		return 0, fmt.Errorf("failed to copy wishlist token: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM item_wishlist WHERE token = ?`, oldToken); err != nil {
		return 0, fmt.Errorf("failed to remove old wishlist token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UpsertSighting keys on the raw path and keeps the first-seen time and suspicion flag sticky.
func (r *SQLiteStore) UpsertSighting(ctx context.Context, s model.Sighting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := formatTime(s.SeenAt)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO unknown_items (unique_name, item, ducats, credits, first_seen_at, last_seen_at, is_suspected_new)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(unique_name) DO UPDATE SET
			item = excluded.item,
			ducats = excluded.ducats,
			credits = excluded.credits,
			last_seen_at = excluded.last_seen_at,
			is_suspected_new = MAX(is_suspected_new, excluded.is_suspected_new)`,
		s.CanonicalPathRaw, s.DisplayName, s.Ducats, s.Credits, seen, seen, boolInt(s.IsNewCandidate))
	if err != nil {
		return fmt.Errorf("failed to upsert unknown item: %w", err)
	}
	return nil
}

func (r *SQLiteStore) ListUnknown(ctx context.Context) ([]model.UnknownItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `
		SELECT unique_name, item, ducats, credits, first_seen_at, last_seen_at, is_suspected_new
		FROM unknown_items ORDER BY last_seen_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unknown items: %w", err)
	}
	defer rows.Close()

	out := []model.UnknownItem{}
	for rows.Next() {
		var (
			u           model.UnknownItem
			first, last string
			suspected   int
		)
		if err := rows.Scan(&u.CanonicalPathRaw, &u.DisplayName, &u.Ducats, &u.Credits, &first, &last, &suspected); err != nil {
			return nil, fmt.Errorf("failed to scan unknown item: %w", err)
		}
		u.FirstSeenAt = parseTime(first)
		u.LastSeenAt = parseTime(last)
		u.IsSuspectedNew = suspected != 0
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteStore) GetStatus(ctx context.Context) (*model.VendorStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		st                                    model.VendorStatus
		active                                int
		activation, expiry, inventory, source string
		updated, notified                     string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT is_active, activation, expiry, location, inventory, source, updated_at, notified_activation
		FROM vendor_status WHERE id = 1`).Scan(&active, &activation, &expiry, &st.Location, &inventory, &source, &updated, &notified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	st.IsActive = active != 0
	st.Activation = parseTime(activation)
	st.Expiry = parseTime(expiry)
	st.InventoryIDs = decodeList(inventory)
	st.Source = model.Source(source)
	st.UpdatedAt = parseTime(updated)
	st.NotifiedActivation = parseTime(notified)
	return &st, nil
}

func (r *SQLiteStore) UpsertStatus(ctx context.Context, st model.VendorStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO vendor_status (id, is_active, activation, expiry, location, inventory, source, updated_at, notified_activation)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			is_active = excluded.is_active,
			activation = excluded.activation,
			expiry = excluded.expiry,
			location = excluded.location,
			inventory = excluded.inventory,
			source = excluded.source,
			updated_at = excluded.updated_at,
			notified_activation = excluded.notified_activation`,
		boolInt(st.IsActive), formatTime(st.Activation), formatTime(st.Expiry), st.Location,
		encodeList(st.InventoryIDs), string(st.Source), formatTime(st.UpdatedAt), formatTime(st.NotifiedActivation))
	if err != nil {
		return fmt.Errorf("failed to upsert status: %w", err)
	}
	return nil
}

func (r *SQLiteStore) UpsertToken(ctx context.Context, token, deviceID string, now time.Time) (*model.PushToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := formatTime(now)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO push_tokens (token, device_id, created_at, last_used, is_active)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(token) DO UPDATE SET
			device_id = excluded.device_id,
			last_used = excluded.last_used,
			is_active = 1`, token, deviceID, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert push token: %w", err)
	}

	var (
		pt            model.PushToken
		created, used string
		active        int
	)
	err = r.db.QueryRowContext(ctx, `SELECT token, device_id, created_at, last_used, is_active FROM push_tokens WHERE token = ?`, token).
		Scan(&pt.Token, &pt.DeviceID, &created, &used, &active)
	if err != nil {
		return nil, fmt.Errorf("failed to read push token: %w", err)
	}
	pt.CreatedAt = parseTime(created)
	pt.LastUsed = parseTime(used)
	pt.IsActive = active != 0
	return &pt, nil
}

func (r *SQLiteStore) DeleteToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	return nil
}

func (r *SQLiteStore) DeactivateToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.db.ExecContext(ctx, `UPDATE push_tokens SET is_active = 0 WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to deactivate push token: %w", err)
	}
	return nil
}

func (r *SQLiteStore) ActiveTokens(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows, err := r.db.QueryContext(ctx, `SELECT token FROM push_tokens WHERE is_active = 1 ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list push tokens: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteStore) DeleteInactiveTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	result, err := r.db.ExecContext(ctx, `DELETE FROM push_tokens WHERE is_active = 0 AND last_used < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive push tokens: %w", err)
	}
	return result.RowsAffected()
}

// checkItem parses id and verifies the item exists. Callers hold r.mu.
func (r *SQLiteStore) checkItem(ctx context.Context, id string) (int64, error) {
	n, err := parseID(id)
	if err != nil {
		return 0, err
	}
	ok, err := r.itemExists(ctx, n)
	if err != nil {
		return 0, fmt.Errorf("failed to check item: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n, nil
}

func (r *SQLiteStore) InsertLike(ctx context.Context, itemID, uid string, now time.Time) (*model.Like, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.checkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO likes (item_id, uid, created_at) VALUES (?, ?, ?)
		ON CONFLICT(item_id, uid) DO NOTHING`, n, uid, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to insert like: %w", err)
	}

	var (
		id      int64
		created string
	)
	err = r.db.QueryRowContext(ctx, `SELECT id, created_at FROM likes WHERE item_id = ? AND uid = ?`, n, uid).Scan(&id, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to read like: %w", err)
	}
	return &model.Like{ID: strconv.FormatInt(id, 10), ItemID: itemID, UID: uid, CreatedAt: parseTime(created)}, nil
}

func (r *SQLiteStore) DeleteLike(ctx context.Context, itemID, uid string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.checkItem(ctx, itemID)
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM likes WHERE item_id = ? AND uid = ?`, n, uid)
	if err != nil {
		return false, fmt.Errorf("failed to delete like: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *SQLiteStore) ListLikes(ctx context.Context, itemID string) ([]model.Like, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, err := r.checkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, uid, created_at FROM likes WHERE item_id = ? ORDER BY id`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query likes: %w", err)
	}
	defer rows.Close()

	out := []model.Like{}
	for rows.Next() {
		var (
			id      int64
			l       model.Like
			created string
		)
		if err := rows.Scan(&id, &l.UID, &created); err != nil {
			return nil, fmt.Errorf("failed to scan like: %w", err)
		}
		l.ID = strconv.FormatInt(id, 10)
		l.ItemID = itemID
		l.CreatedAt = parseTime(created)
		out = append(out, l)
	}
	return out, rows.Err()
}

const reviewSelect = `SELECT id, item_id, author, content, date, time, uid, report_count FROM reviews`

func scanReview(row rowScanner) (model.Review, error) {
	var (
		rv         model.Review
		id, itemID int64
	)
	err := row.Scan(&id, &itemID, &rv.User, &rv.Content, &rv.Date, &rv.Time, &rv.UID, &rv.ReportCount)
	rv.ID = strconv.FormatInt(id, 10)
	rv.ItemID = strconv.FormatInt(itemID, 10)
	return rv, err
}

func (r *SQLiteStore) InsertReview(ctx context.Context, rv model.Review) (*model.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.checkItem(ctx, rv.ItemID)
	if err != nil {
		return nil, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (item_id, author, content, date, time, uid)
		VALUES (?, ?, ?, ?, ?, ?)`, n, rv.User, rv.Content, rv.Date, rv.Time, rv.UID)
	if isUniqueViolation(err) {
		return nil, ErrReviewExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert review: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read review id: %w", err)
	}
	rv.ID = strconv.FormatInt(id, 10)
	rv.ReportCount = 0
	return &rv, nil
}

func (r *SQLiteStore) UpdateReview(ctx context.Context, id, uid string, edit model.ReviewEdit) (*model.Review, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `UPDATE reviews SET content = ?, date = ?, time = ? WHERE id = ? AND uid = ?`,
		edit.Content, edit.Date, edit.Time, n, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to update review: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return nil, nil
	}
	rv, err := scanReview(r.db.QueryRowContext(ctx, reviewSelect+` WHERE id = ?`, n))
	if err != nil {
		return nil, fmt.Errorf("failed to read review: %w", err)
	}
	return &rv, nil
}

func (r *SQLiteStore) DeleteReview(ctx context.Context, id, uid string) (bool, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ? AND uid = ?`, n, uid)
	if err != nil {
		return false, fmt.Errorf("failed to delete review: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *SQLiteStore) ReportReview(ctx context.Context, id string) (bool, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.db.ExecContext(ctx, `UPDATE reviews SET report_count = report_count + 1 WHERE id = ?`, n)
	if err != nil {
		return false, fmt.Errorf("failed to report review: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, err
}

func (r *SQLiteStore) ListReviews(ctx context.Context, itemID string) ([]model.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, err := r.checkItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, reviewSelect+` WHERE item_id = ? ORDER BY date DESC, time DESC, id`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	out := []model.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

func (r *SQLiteStore) UpsertMarketData(ctx context.Context, m model.MarketData) error {
	n, err := parseID(m.ItemID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(m.Data)
	if err != nil {
		return fmt.Errorf("failed to encode market data: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO market_data (item_id, data, last_updated) VALUES (?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			data = excluded.data,
			last_updated = excluded.last_updated`, n, string(data), formatTime(m.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to upsert market data: %w", err)
	}
	return nil
}

func (r *SQLiteStore) GetMarketData(ctx context.Context, itemID string) (*model.MarketData, error) {
	n, err := strconv.ParseInt(itemID, 10, 64)
	if err != nil {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var data, updated string
	err = r.db.QueryRowContext(ctx, `SELECT data, last_updated FROM market_data WHERE item_id = ?`, n).Scan(&data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market data: %w", err)
	}
	m := &model.MarketData{ItemID: itemID, Data: []model.MarketPoint{}, LastUpdated: parseTime(updated)}
	if err := json.Unmarshal([]byte(data), &m.Data); err != nil {
		return nil, fmt.Errorf("failed to decode market data: %w", err)
	}
	return m, nil
}

// GetStats returns row counts and the approximate database size.
func (r *SQLiteStore) GetStats(ctx context.Context) (map[string]interface{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := map[string]interface{}{"backend": "sqlite"}

	counts := map[string]string{
		"total_items":                  "SELECT COUNT(*) FROM items",
		"items_missing_canonical_path": "SELECT COUNT(*) FROM items WHERE canonical_path = ''",
		"unknown_items":                "SELECT COUNT(*) FROM unknown_items",
		"push_tokens":                  "SELECT COUNT(*) FROM push_tokens",
		"likes":                        "SELECT COUNT(*) FROM likes",
		"reviews":                      "SELECT COUNT(*) FROM reviews",
		"market_items":                 "SELECT COUNT(*) FROM market_data",
	}
	for key, query := range counts {
		var n int64
		if err := r.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return nil, err
		}
		stats[key] = n
	}

	var pageCount, pageSize int64
	r.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	r.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
	stats["db_size_bytes"] = pageCount * pageSize

	return stats, nil
}

// Close closes the database connection.
func (r *SQLiteStore) Close() error {
	return r.db.Close()
}

var _ Store = (*SQLiteStore)(nil)
