package repository

import (
	"context"
	"errors"

	"WalletMirror/internal/domain/models"
)

// ErrNotFound is returned by stores for absent single records.
var ErrNotFound = errors.New("record not found")

// ChainDataSource reads the watched wallet's chain state.
type ChainDataSource interface {
	// RecentTransactions returns up to limit enhanced transactions, newest first.
	RecentTransactions(ctx context.Context, wallet string, limit int) ([]models.RawTx, error)
	// TransactionsBefore pages older history, newest first, starting strictly
	// before the given signature.
	TransactionsBefore(ctx context.Context, wallet, before string, limit int) ([]models.RawTx, error)
	AssetBalances(ctx context.Context, wallet string) ([]models.RawAsset, error)
	SpotPrice(ctx context.Context, mint string) (float64, error)
}

// ActivityStream pushes a wake-up whenever the watched account changes.
type ActivityStream interface {
	Run(ctx context.Context, wake func()) error
}

// PersistenceStore keeps one wallet's paper account durable. Every single
// record write is atomic.
type PersistenceStore interface {
	LoadBalance(ctx context.Context, sessionID string) (float64, bool, error)
	SaveBalance(ctx context.Context, sessionID string, balance float64) error

	LoadPositions(ctx context.Context, sessionID string) (map[string]*models.Position, error)
	SavePositions(ctx context.Context, sessionID string, positions map[string]*models.Position) error

	AppendTrade(ctx context.Context, rec *models.TradeRecord) error
	LoadTrades(ctx context.Context, sessionID string, filter models.TradeFilter) ([]*models.TradeRecord, error)
	HasTrade(ctx context.Context, sessionID, signature string) (bool, error)

	AppendTransaction(ctx context.Context, sessionID string, tx *models.ProcessedTx) error
	HasTransaction(ctx context.Context, sessionID, signature string) (bool, error)

	AppendBalanceHistory(ctx context.Context, sessionID string, entry *models.BalanceEntry) error
	LoadBalanceHistory(ctx context.Context, sessionID string, limit int) ([]*models.BalanceEntry, error)

	LoadAnchor(ctx context.Context, wallet string) (string, error)
	SaveAnchor(ctx context.Context, wallet, signature string) error

	// ActiveSession returns ErrNotFound when the wallet has no active session.
	ActiveSession(ctx context.Context, wallet string) (*models.SessionMeta, error)
	SaveSession(ctx context.Context, meta *models.SessionMeta) error
	ListSessions(ctx context.Context, wallet string) ([]*models.SessionMeta, error)

	Close() error
}

// TradeSink mirrors trade activity to an analytics backend.
type TradeSink interface {
	StoreTrade(ctx context.Context, rec *models.TradeRecord) error
	StoreBalance(ctx context.Context, wallet, sessionID string, entry *models.BalanceEntry) error
	Close() error
}

// Presenter is a one-way status sink for operators.
type Presenter interface {
	Signal(sig *models.TradeSignal)
	Decision(d *models.TradeDecision)
	Execution(r *models.ExecutionResult)
	Assets(assets []models.RawAsset, total float64)
	Status(lines map[string]string)
	Alert(kind, message string)
}

type Metrics interface {
	RecordTransactions(n int)
	RecordGap()
	RecordSignal(action string)
	RecordDecision(action string, executed bool)
	RecordExecution(action string, success bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordPortfolio(balance, totalValue float64, positions int)
	RecordRiskPaused(paused bool)
	RecordPriceLookup(source string, hit bool)
	RecordJournal(backend string)
}
