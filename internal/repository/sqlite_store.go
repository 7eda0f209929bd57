package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"WalletMirror/internal/domain/models"
	domrepo "WalletMirror/internal/domain/repository"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS balances (
		session_id TEXT PRIMARY KEY,
		balance    REAL NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS positions (
		session_id TEXT PRIMARY KEY,
		doc        TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		signature  TEXT NOT NULL,
		action     TEXT NOT NULL,
		mint       TEXT NOT NULL,
		doc        TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_session_sig ON trades(session_id, signature)`,
	`CREATE TABLE IF NOT EXISTS processed_txs (
		session_id TEXT NOT NULL,
		signature  TEXT NOT NULL,
		doc        TEXT NOT NULL,
		PRIMARY KEY (session_id, signature)
	)`,
	`CREATE TABLE IF NOT EXISTS balance_history (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		doc        TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS anchors (
		wallet    TEXT PRIMARY KEY,
		signature TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT PRIMARY KEY,
		wallet     TEXT NOT NULL,
		status     TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		doc        TEXT NOT NULL
	)`,
}

// SQLiteStore implements PersistenceStore in a single SQLite file. Nested
// documents are stored as JSON next to the columns used for lookups.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (and creates if needed) the database at path and
// applies the schema. ":memory:" gives a private in-memory database.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer
	if path != ":memory:" {
		db.SetConnMaxLifetime(time.Hour)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) LoadBalance(ctx context.Context, sessionID string) (float64, bool, error) {
	var b float64
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM balances WHERE session_id = ?`, sessionID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load balance: %w", err)
	}
	return b, true, nil
}

func (s *SQLiteStore) SaveBalance(ctx context.Context, sessionID string, balance float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO balances (session_id, balance) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET balance = excluded.balance`,
		sessionID, balance)
	if err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadPositions(ctx context.Context, sessionID string) (map[string]*models.Position, error) {
	out := make(map[string]*models.Position)
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT doc FROM positions WHERE session_id = ?`, sessionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	if err := json.Unmarshal([]byte(doc), &out); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) SavePositions(ctx context.Context, sessionID string, positions map[string]*models.Position) error {
	if positions == nil {
		positions = map[string]*models.Position{}
	}
	doc, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("encode positions: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO positions (session_id, doc) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET doc = excluded.doc`,
		sessionID, string(doc))
	if err != nil {
		return fmt.Errorf("save positions: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AppendTrade(ctx context.Context, rec *models.TradeRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode trade: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trades (id, session_id, signature, action, mint, doc, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Signature, string(rec.Action), rec.Mint, string(doc), rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// LoadTrades returns matching trades oldest first; Limit keeps the newest.
func (s *SQLiteStore) LoadTrades(ctx context.Context, sessionID string, filter models.TradeFilter) ([]*models.TradeRecord, error) {
	where := []string{"session_id = ?"}
	args := []interface{}{sessionID}
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Mint != "" {
		where = append(where, "mint = ?")
		args = append(args, filter.Mint)
	}
	if !filter.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	q := fmt.Sprintf(`SELECT doc FROM trades WHERE %s ORDER BY seq DESC`, strings.Join(where, " AND "))
	if filter.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	docs, err := s.queryDocs(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	out := make([]*models.TradeRecord, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		var rec models.TradeRecord
		if err := json.Unmarshal([]byte(docs[i]), &rec); err != nil {
			return nil, fmt.Errorf("decode trade: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (s *SQLiteStore) HasTrade(ctx context.Context, sessionID, signature string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM trades WHERE session_id = ? AND signature = ? LIMIT 1`, sessionID, signature)
}

func (s *SQLiteStore) AppendTransaction(ctx context.Context, sessionID string, tx *models.ProcessedTx) error {
	doc, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO processed_txs (session_id, signature, doc) VALUES (?, ?, ?)`,
		sessionID, tx.Signature, string(doc))
	if err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) HasTransaction(ctx context.Context, sessionID, signature string) (bool, error) {
	return s.exists(ctx, `SELECT 1 FROM processed_txs WHERE session_id = ? AND signature = ?`, sessionID, signature)
}

func (s *SQLiteStore) AppendBalanceHistory(ctx context.Context, sessionID string, entry *models.BalanceEntry) error {
	doc, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode balance entry: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO balance_history (session_id, doc) VALUES (?, ?)`, sessionID, string(doc)); err != nil {
		return fmt.Errorf("append balance history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadBalanceHistory(ctx context.Context, sessionID string, limit int) ([]*models.BalanceEntry, error) {
	q := `SELECT doc FROM balance_history WHERE session_id = ? ORDER BY seq DESC`
	args := []interface{}{sessionID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	docs, err := s.queryDocs(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("load balance history: %w", err)
	}
	out := make([]*models.BalanceEntry, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		var e models.BalanceEntry
		if err := json.Unmarshal([]byte(docs[i]), &e); err != nil {
			return nil, fmt.Errorf("decode balance entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, nil
}

func (s *SQLiteStore) LoadAnchor(ctx context.Context, wallet string) (string, error) {
	var sig string
	err := s.db.QueryRowContext(ctx, `SELECT signature FROM anchors WHERE wallet = ?`, wallet).Scan(&sig)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load anchor: %w", err)
	}
	return sig, nil
}

func (s *SQLiteStore) SaveAnchor(ctx context.Context, wallet, signature string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO anchors (wallet, signature) VALUES (?, ?)
		 ON CONFLICT(wallet) DO UPDATE SET signature = excluded.signature`,
		wallet, signature)
	if err != nil {
		return fmt.Errorf("save anchor: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ActiveSession(ctx context.Context, wallet string) (*models.SessionMeta, error) {
	docs, err := s.queryDocs(ctx,
		`SELECT doc FROM sessions WHERE wallet = ? AND status = ? ORDER BY created_at DESC LIMIT 1`,
		wallet, string(models.SessionActive))
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	if len(docs) == 0 {
		return nil, domrepo.ErrNotFound
	}
	var meta models.SessionMeta
	if err := json.Unmarshal([]byte(docs[0]), &meta); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &meta, nil
}

func (s *SQLiteStore) SaveSession(ctx context.Context, meta *models.SessionMeta) error {
	doc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, wallet, status, created_at, doc) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, doc = excluded.doc`,
		meta.ID, meta.Wallet, string(meta.Status), meta.CreatedAt.UnixNano(), string(doc))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, wallet string) ([]*models.SessionMeta, error) {
	docs, err := s.queryDocs(ctx, `SELECT doc FROM sessions WHERE wallet = ? ORDER BY created_at ASC`, wallet)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*models.SessionMeta, 0, len(docs))
	for _, d := range docs {
		var meta models.SessionMeta
		if err := json.Unmarshal([]byte(d), &meta); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		out = append(out, &meta)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) queryDocs(ctx context.Context, q string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) exists(ctx context.Context, q string, args ...interface{}) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, q, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ domrepo.PersistenceStore = (*SQLiteStore)(nil)
