package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"WalletMirror/internal/domain/models"
	domrepo "WalletMirror/internal/domain/repository"
	applogger "WalletMirror/pkg/logger"
)

const (
	TradesTable  = "paper_trades"
	BalanceTable = "paper_balance_history"
)

// ClickHouseSchema returns the DDL for the analytics tables.
func ClickHouseSchema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + TradesTable + ` (
			ts            DateTime64(3),
			id            String,
			wallet        String,
			session_id    String,
			signature     String,
			trigger_kind  LowCardinality(String),
			action        LowCardinality(String),
			mint          String,
			symbol        String,
			quantity      Float64,
			price         Float64,
			quoted_price  Float64,
			cash_delta    Float64,
			slippage_bps  Int32,
			realized_pnl  Nullable(Float64),
			balance_after Float64
		) ENGINE = ReplacingMergeTree
		ORDER BY (wallet, session_id, ts, id)`,
		`CREATE TABLE IF NOT EXISTS ` + BalanceTable + ` (
			ts             DateTime64(3),
			wallet         String,
			session_id     String,
			balance        Float64,
			change         Float64,
			reason         LowCardinality(String),
			position_value Float64,
			trade_id       String,
			note           String
		) ENGINE = MergeTree
		ORDER BY (wallet, session_id, ts)`,
	}
}

// ClickHouseTradeLog mirrors trades and balance entries into ClickHouse.
type ClickHouseTradeLog struct {
	db     *sql.DB
	wallet string
	l      *applogger.Logger
}

// NewClickHouseTradeLog binds the log to db. wallet tags rows written through
// StoreTrade, which carry no wallet of their own.
func NewClickHouseTradeLog(db *sql.DB, wallet string, l *applogger.Logger) *ClickHouseTradeLog {
	if l == nil {
		l = applogger.Nop()
	}
	return &ClickHouseTradeLog{db: db, wallet: wallet, l: l}
}

func (s *ClickHouseTradeLog) StoreTrade(ctx context.Context, rec *models.TradeRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (ts, id, wallet, session_id, signature, trigger_kind, action, mint, symbol,
		quantity, price, quoted_price, cash_delta, slippage_bps, realized_pnl, balance_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, TradesTable)

	var pnl sql.NullFloat64
	if rec.Result.RealizedPnL != nil {
		pnl = sql.NullFloat64{Float64: *rec.Result.RealizedPnL, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, q,
		rec.CreatedAt.UTC(),
		rec.ID,
		s.wallet,
		rec.SessionID,
		rec.Signature,
		rec.Trigger,
		string(rec.Action),
		rec.Mint,
		rec.Symbol,
		rec.Result.Quantity,
		rec.Result.ExecutedPrice,
		rec.Result.QuotedPrice,
		rec.Result.CashDelta,
		int32(rec.Result.SlippageBps),
		pnl,
		rec.Result.BalanceAfter,
	)
	if err != nil {
		s.l.Error("clickhouse insert trade error",
			applogger.String("table", TradesTable),
			applogger.String("trade_id", rec.ID),
			applogger.Error(err),
		)
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *ClickHouseTradeLog) StoreBalance(ctx context.Context, wallet, sessionID string, e *models.BalanceEntry) error {
	if wallet == "" {
		wallet = s.wallet
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	q := fmt.Sprintf(`INSERT INTO %s (ts, wallet, session_id, balance, change, reason, position_value, trade_id, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, BalanceTable)
	_, err := s.db.ExecContext(ctx, q,
		ts.UTC(), wallet, sessionID, e.Balance, e.Change, string(e.Reason), e.PositionValue, e.TradeID, e.Note)
	if err != nil {
		s.l.Error("clickhouse insert balance error",
			applogger.String("table", BalanceTable),
			applogger.String("session_id", sessionID),
			applogger.Error(err),
		)
		return fmt.Errorf("insert balance: %w", err)
	}
	return nil
}

// SessionPnL sums realized PnL of the session's closed trades.
func (s *ClickHouseTradeLog) SessionPnL(ctx context.Context, sessionID string) (float64, int, error) {
	q := fmt.Sprintf(`SELECT COALESCE(SUM(realized_pnl), 0), COUNT(*) FROM %s
		WHERE wallet = ? AND session_id = ? AND realized_pnl IS NOT NULL`, TradesTable)
	var pnl float64
	var n int
	if err := s.db.QueryRowContext(ctx, q, s.wallet, sessionID).Scan(&pnl, &n); err != nil {
		return 0, 0, fmt.Errorf("session pnl: %w", err)
	}
	return pnl, n, nil
}

func (s *ClickHouseTradeLog) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseTradeLog) Close() error {
	return nil // Managed by pkg
}

var _ domrepo.TradeSink = (*ClickHouseTradeLog)(nil)
