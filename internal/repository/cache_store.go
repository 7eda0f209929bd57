package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"WalletMirror/internal/domain/models"
	domrepo "WalletMirror/internal/domain/repository"
	pkgcache "WalletMirror/pkg/cache"
)

// CacheStore implements PersistenceStore on a key/value cache. Keys:
//
//	{wallet}:anchor               last processed signature
//	{wallet}:session:active       active session id
//	{wallet}:sessions             ordered session ids
//	session:{id}:meta             session metadata
//	session:{id}:balance          cash balance
//	session:{id}:positions        position map
//	session:{id}:trades           trade counter, records at :trades:{n}
//	session:{id}:tradesig:{sig}   trade marker per signature
//	session:{id}:tx:{sig}         processed transaction
//	session:{id}:balhist          history counter, entries at :balhist:{n}
type CacheStore struct {
	cache  pkgcache.Service
	closer func() error
	// guards read-modify-write of the session index
	mu sync.Mutex
}

// NewCacheStore wraps c. closer, when non-nil, is called by Close.
func NewCacheStore(c pkgcache.Service, closer func() error) *CacheStore {
	return &CacheStore{cache: c, closer: closer}
}

func sessionKey(id string, parts ...interface{}) string {
	return pkgcache.GenerateKeyWithParams("session", append([]interface{}{id}, parts...)...)
}

func (s *CacheStore) get(ctx context.Context, key string, dest interface{}) (bool, error) {
	err := s.cache.Get(ctx, key, dest)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return true, nil
}

func (s *CacheStore) set(ctx context.Context, key string, value interface{}) error {
	if err := s.cache.Set(ctx, key, value, 0); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *CacheStore) LoadBalance(ctx context.Context, sessionID string) (float64, bool, error) {
	var b float64
	ok, err := s.get(ctx, sessionKey(sessionID, "balance"), &b)
	return b, ok, err
}

func (s *CacheStore) SaveBalance(ctx context.Context, sessionID string, balance float64) error {
	return s.set(ctx, sessionKey(sessionID, "balance"), balance)
}

func (s *CacheStore) LoadPositions(ctx context.Context, sessionID string) (map[string]*models.Position, error) {
	out := make(map[string]*models.Position)
	if _, err := s.get(ctx, sessionKey(sessionID, "positions"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *CacheStore) SavePositions(ctx context.Context, sessionID string, positions map[string]*models.Position) error {
	if positions == nil {
		positions = map[string]*models.Position{}
	}
	return s.set(ctx, sessionKey(sessionID, "positions"), positions)
}

// AppendTrade stores the record and its signature marker in one step.
func (s *CacheStore) AppendTrade(ctx context.Context, rec *models.TradeRecord) error {
	var marker map[string]interface{}
	if rec.Signature != "" {
		marker = map[string]interface{}{sessionKey(rec.SessionID, "tradesig", rec.Signature): rec.ID}
	}
	if _, err := s.cache.AppendSeq(ctx, sessionKey(rec.SessionID, "trades"), rec, marker); err != nil {
		return fmt.Errorf("append trade: %w", err)
	}
	return nil
}

// counted loads the records stored at base:1..base:n in order.
func counted[T any](ctx context.Context, c pkgcache.Service, base string) ([]T, error) {
	var n int64
	err := c.Get(ctx, base, &n)
	if errors.Is(err, pkgcache.ErrCacheMiss) || n == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", base, err)
	}

	keys := make([]string, 0, n)
	for i := int64(1); i <= n; i++ {
		keys = append(keys, pkgcache.GenerateKeyWithParams(base, i))
	}
	byKey, err := pkgcache.MGetTyped[T](ctx, c, keys...)
	if err != nil {
		return nil, fmt.Errorf("mget %s: %w", base, err)
	}
	out := make([]T, 0, len(byKey))
	for _, k := range keys {
		if v, ok := byKey[k]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// LoadTrades returns matching trades oldest first; Limit keeps the newest.
func (s *CacheStore) LoadTrades(ctx context.Context, sessionID string, filter models.TradeFilter) ([]*models.TradeRecord, error) {
	all, err := counted[*models.TradeRecord](ctx, s.cache, sessionKey(sessionID, "trades"))
	if err != nil {
		return nil, err
	}
	out := make([]*models.TradeRecord, 0, len(all))
	for _, r := range all {
		if r != nil && filter.Match(r) {
			out = append(out, r)
		}
	}
	return tail(out, filter.Limit), nil
}

func (s *CacheStore) HasTrade(ctx context.Context, sessionID, signature string) (bool, error) {
	return s.cache.Exists(ctx, sessionKey(sessionID, "tradesig", signature))
}

func (s *CacheStore) AppendTransaction(ctx context.Context, sessionID string, tx *models.ProcessedTx) error {
	return s.set(ctx, sessionKey(sessionID, "tx", tx.Signature), tx)
}

func (s *CacheStore) HasTransaction(ctx context.Context, sessionID, signature string) (bool, error) {
	return s.cache.Exists(ctx, sessionKey(sessionID, "tx", signature))
}

func (s *CacheStore) AppendBalanceHistory(ctx context.Context, sessionID string, entry *models.BalanceEntry) error {
	if _, err := s.cache.AppendSeq(ctx, sessionKey(sessionID, "balhist"), entry, nil); err != nil {
		return fmt.Errorf("append balance history: %w", err)
	}
	return nil
}

func (s *CacheStore) LoadBalanceHistory(ctx context.Context, sessionID string, limit int) ([]*models.BalanceEntry, error) {
	all, err := counted[*models.BalanceEntry](ctx, s.cache, sessionKey(sessionID, "balhist"))
	if err != nil {
		return nil, err
	}
	return tail(all, limit), nil
}

func (s *CacheStore) LoadAnchor(ctx context.Context, wallet string) (string, error) {
	var sig string
	_, err := s.get(ctx, pkgcache.GenerateKey(wallet, "anchor"), &sig)
	return sig, err
}

func (s *CacheStore) SaveAnchor(ctx context.Context, wallet, signature string) error {
	return s.set(ctx, pkgcache.GenerateKey(wallet, "anchor"), signature)
}

func (s *CacheStore) ActiveSession(ctx context.Context, wallet string) (*models.SessionMeta, error) {
	var id string
	ok, err := s.get(ctx, pkgcache.GenerateKeyWithParams(wallet, "session", "active"), &id)
	if err != nil {
		return nil, err
	}
	if !ok || id == "" {
		return nil, domrepo.ErrNotFound
	}
	var meta models.SessionMeta
	ok, err = s.get(ctx, sessionKey(id, "meta"), &meta)
	if err != nil {
		return nil, err
	}
	if !ok || meta.Status != models.SessionActive {
		return nil, domrepo.ErrNotFound
	}
	return &meta, nil
}

// SaveSession writes the metadata and keeps the wallet's session index and
// active pointer in step with it.
func (s *CacheStore) SaveSession(ctx context.Context, meta *models.SessionMeta) error {
	if err := s.set(ctx, sessionKey(meta.ID, "meta"), meta); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	indexKey := pkgcache.GenerateKey(meta.Wallet, "sessions")
	var ids []string
	if _, err := s.get(ctx, indexKey, &ids); err != nil {
		return err
	}
	known := false
	for _, id := range ids {
		if id == meta.ID {
			known = true
			break
		}
	}
	if !known {
		ids = append(ids, meta.ID)
		if err := s.set(ctx, indexKey, ids); err != nil {
			return err
		}
	}

	activeKey := pkgcache.GenerateKeyWithParams(meta.Wallet, "session", "active")
	if meta.Status == models.SessionActive {
		return s.set(ctx, activeKey, meta.ID)
	}
	var current string
	if _, err := s.get(ctx, activeKey, &current); err != nil {
		return err
	}
	if current == meta.ID {
		return s.cache.Delete(ctx, activeKey)
	}
	return nil
}

func (s *CacheStore) ListSessions(ctx context.Context, wallet string) ([]*models.SessionMeta, error) {
	var ids []string
	if _, err := s.get(ctx, pkgcache.GenerateKey(wallet, "sessions"), &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id, "meta")
	}
	metas, err := pkgcache.MGetTyped[models.SessionMeta](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	out := make([]*models.SessionMeta, 0, len(metas))
	for _, k := range keys {
		if m, ok := metas[k]; ok {
			m := m
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *CacheStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

func tail[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[len(items)-limit:]
	}
	return items
}

var _ domrepo.PersistenceStore = (*CacheStore)(nil)
