package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
)

// fakeChain serves a newest-first history.
type fakeChain struct {
	mu          sync.Mutex
	history     []models.RawTx
	err         error
	assets      []models.RawAsset
	assetErr    error
	assetFails  int
	assetCalls  int
	spot        map[string]float64
	recentCalls int
}

func sigs(names ...string) []models.RawTx {
	out := make([]models.RawTx, len(names))
	for i, n := range names {
		out[i] = models.RawTx{Signature: n, Type: "SWAP"}
	}
	return out
}

func (f *fakeChain) RecentTransactions(_ context.Context, _ string, limit int) ([]models.RawTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recentCalls++
	if f.err != nil {
		return nil, f.err
	}
	n := limit
	if n > len(f.history) {
		n = len(f.history)
	}
	return append([]models.RawTx(nil), f.history[:n]...), nil
}

func (f *fakeChain) TransactionsBefore(_ context.Context, _ string, before string, limit int) ([]models.RawTx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.history {
		if f.history[i].Signature == before {
			rest := f.history[i+1:]
			if limit < len(rest) {
				rest = rest[:limit]
			}
			return append([]models.RawTx(nil), rest...), nil
		}
	}
	return nil, nil
}

func (f *fakeChain) AssetBalances(context.Context, string) ([]models.RawAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assetCalls++
	if f.assetCalls <= f.assetFails {
		return nil, errors.New("rpc unavailable")
	}
	if f.assetErr != nil {
		return nil, f.assetErr
	}
	return f.assets, nil
}

func (f *fakeChain) SpotPrice(_ context.Context, mint string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spot[mint], nil
}

// memStore is a map-backed PersistenceStore.
type memStore struct {
	mu        sync.Mutex
	balances  map[string]float64
	positions map[string]map[string]*models.Position
	trades    map[string][]*models.TradeRecord
	txs       map[string]map[string]*models.ProcessedTx
	history   map[string][]*models.BalanceEntry
	anchors   map[string]string
	sessions  map[string]*models.SessionMeta
	saveErr   error
	lookupErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		balances:  map[string]float64{},
		positions: map[string]map[string]*models.Position{},
		trades:    map[string][]*models.TradeRecord{},
		txs:       map[string]map[string]*models.ProcessedTx{},
		history:   map[string][]*models.BalanceEntry{},
		anchors:   map[string]string{},
		sessions:  map[string]*models.SessionMeta{},
		lookupErr: map[string]error{},
	}
}

// failLookup makes duplicate checks for sig fail with err; nil clears it.
func (s *memStore) failLookup(sig string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.lookupErr, sig)
		return
	}
	s.lookupErr[sig] = err
}

func (s *memStore) LoadBalance(_ context.Context, id string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.balances[id]
	return b, ok, nil
}

func (s *memStore) SaveBalance(_ context.Context, id string, b float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.balances[id] = b
	return nil
}

func (s *memStore) LoadPositions(_ context.Context, id string) (map[string]*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]*models.Position{}
	for k, p := range s.positions[id] {
		out[k] = p.Clone()
	}
	return out, nil
}

func (s *memStore) SavePositions(_ context.Context, id string, ps map[string]*models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := map[string]*models.Position{}
	for k, p := range ps {
		cp[k] = p.Clone()
	}
	s.positions[id] = cp
	return nil
}

func (s *memStore) AppendTrade(_ context.Context, rec *models.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[rec.SessionID] = append(s.trades[rec.SessionID], rec)
	return nil
}

func (s *memStore) LoadTrades(_ context.Context, id string, f models.TradeFilter) ([]*models.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.TradeRecord
	for _, r := range s.trades[id] {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memStore) HasTrade(_ context.Context, id, sig string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lookupErr[sig]; err != nil {
		return false, err
	}
	for _, r := range s.trades[id] {
		if r.Signature == sig {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) AppendTransaction(_ context.Context, id string, tx *models.ProcessedTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txs[id] == nil {
		s.txs[id] = map[string]*models.ProcessedTx{}
	}
	s.txs[id][tx.Signature] = tx
	return nil
}

func (s *memStore) HasTransaction(_ context.Context, id, sig string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lookupErr[sig]; err != nil {
		return false, err
	}
	_, ok := s.txs[id][sig]
	return ok, nil
}

func (s *memStore) AppendBalanceHistory(_ context.Context, id string, e *models.BalanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[id] = append(s.history[id], e)
	return nil
}

func (s *memStore) LoadBalanceHistory(_ context.Context, id string, limit int) ([]*models.BalanceEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[id]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]*models.BalanceEntry(nil), h...), nil
}

func (s *memStore) LoadAnchor(_ context.Context, wallet string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.anchors[wallet], nil
}

func (s *memStore) SaveAnchor(_ context.Context, wallet, sig string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[wallet] = sig
	return nil
}

func (s *memStore) ActiveSession(_ context.Context, wallet string) (*models.SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.sessions {
		if m.Wallet == wallet && m.Status == models.SessionActive {
			cp := *m
			return &cp, nil
		}
	}
	return nil, drepo.ErrNotFound
}

func (s *memStore) SaveSession(_ context.Context, meta *models.SessionMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *meta
	cp.Operations = append([]models.Operation(nil), meta.Operations...)
	s.sessions[meta.ID] = &cp
	return nil
}

func (s *memStore) ListSessions(_ context.Context, wallet string) ([]*models.SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.SessionMeta
	for _, m := range s.sessions {
		if m.Wallet == wallet {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) Close() error { return nil }

type alert struct{ kind, message string }

// recordingPresenter keeps alerts and executions for assertions.
type recordingPresenter struct {
	mu         sync.Mutex
	alerts     []alert
	executions []*models.ExecutionResult
	assets     [][]models.RawAsset
	statuses   []map[string]string
}

func (p *recordingPresenter) Signal(*models.TradeSignal)     {}
func (p *recordingPresenter) Decision(*models.TradeDecision) {}

func (p *recordingPresenter) Status(lines map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, lines)
}

func (p *recordingPresenter) Statuses() []map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]string(nil), p.statuses...)
}

func (p *recordingPresenter) Execution(r *models.ExecutionResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.executions = append(p.executions, r)
}

func (p *recordingPresenter) Assets(a []models.RawAsset, _ float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.assets = append(p.assets, a)
}

func (p *recordingPresenter) Alert(kind, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, alert{kind, message})
}

func (p *recordingPresenter) Alerts() []alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]alert(nil), p.alerts...)
}

// fixedSlippage always returns the same bps.
type fixedSlippage int

func (f fixedSlippage) SampleBps(int, int) int { return int(f) }
