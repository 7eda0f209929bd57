package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	dsvc "WalletMirror/internal/domain/service"
	"WalletMirror/internal/service/cache"
	"WalletMirror/pkg/logger"
)

const (
	StrategySingle   = "single"
	StrategyFallback = "fallback"
)

// PriceOracle resolves quotes through a priority list of sources behind a
// per-mint TTL cache.
type PriceOracle struct {
	strategy string
	cache    *cache.TTLCache[*models.PriceQuote]
	logger   *logger.Logger
	metrics  drepo.Metrics

	mu      sync.RWMutex
	sources []dsvc.PriceSource
}

func NewPriceOracle(strategy string, ttl time.Duration, l *logger.Logger, m drepo.Metrics, sources ...dsvc.PriceSource) *PriceOracle {
	if strategy != StrategySingle {
		strategy = StrategyFallback
	}
	return &PriceOracle{
		strategy: strategy,
		cache:    cache.NewTTLCache[*models.PriceQuote](ttl),
		logger:   l,
		metrics:  m,
		sources:  sources,
	}
}

// AddSource appends a lower-priority source.
func (o *PriceOracle) AddSource(src dsvc.PriceSource) {
	o.mu.Lock()
	o.sources = append(o.sources, src)
	o.mu.Unlock()
}

// GetPrice returns a usable quote or nil when no source has one.
func (o *PriceOracle) GetPrice(ctx context.Context, mint string) *models.PriceQuote {
	if q, ok := o.cache.Get(mint); ok {
		return q
	}

	o.mu.RLock()
	sources := o.sources
	o.mu.RUnlock()
	if o.strategy == StrategySingle && len(sources) > 1 {
		sources = sources[:1]
	}

	for _, src := range sources {
		q := o.query(ctx, src, mint)
		o.metrics.RecordPriceLookup(src.Name(), q.Usable())
		if q.Usable() {
			o.cache.Set(mint, q)
			return q
		}
	}

	o.logger.Debug("no price available", logger.String("mint", mint))
	return nil
}

// GetBatch looks up each mint; mints without a price are left out.
func (o *PriceOracle) GetBatch(ctx context.Context, mints []string) map[string]*models.PriceQuote {
	out := make(map[string]*models.PriceQuote, len(mints))
	for _, mint := range mints {
		if q := o.GetPrice(ctx, mint); q != nil {
			out[mint] = q
		}
	}
	return out
}

func (o *PriceOracle) ClearCache() {
	o.cache.Clear()
}

func (o *PriceOracle) CacheStats() cache.Stats {
	return o.cache.Stats()
}

// query isolates one source call: errors and panics count as a miss.
func (o *PriceOracle) query(ctx context.Context, src dsvc.PriceSource, mint string) (q *models.PriceQuote) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.RecordError("price_source_panic")
			o.logger.Error("price source panicked",
				logger.String("source", src.Name()),
				logger.String("mint", mint),
				logger.Error(fmt.Errorf("%v", r)))
			q = nil
		}
	}()

	start := time.Now()
	q, err := src.Query(ctx, mint)
	o.metrics.RecordLatency("price_"+src.Name(), time.Since(start).Seconds())
	if err != nil {
		o.metrics.RecordError("price_source")
		o.logger.Warn("price source failed",
			logger.String("source", src.Name()),
			logger.String("mint", mint),
			logger.Error(err))
		return nil
	}
	if q != nil && q.Source == "" {
		q.Source = src.Name()
	}
	return q
}
