package usecase

import (
	"math"
	"sort"
	"time"

	"WalletMirror/internal/domain/models"
)

// positionDust is the amount at or below which a position counts as closed.
const positionDust = 1e-9

// PositionManager holds per-mint positions with VWAP cost basis.
// It is not safe for concurrent use; the Executor guards it.
type PositionManager struct {
	positions map[string]*models.Position
	now       func() time.Time
}

func NewPositionManager(initial map[string]*models.Position) *PositionManager {
	pm := &PositionManager{positions: make(map[string]*models.Position), now: time.Now}
	for mint, p := range initial {
		if p != nil && p.Amount > positionDust {
			pm.positions[mint] = p.Clone()
		}
	}
	return pm
}

// Add folds a buy of qty for a total cost into the position.
func (pm *PositionManager) Add(mint, symbol string, qty, cost float64) *models.Position {
	if qty <= 0 {
		return pm.Get(mint)
	}
	now := pm.now()
	p, ok := pm.positions[mint]
	if !ok {
		price := cost / qty
		p = &models.Position{
			Mint:         mint,
			Symbol:       symbol,
			CurrentPrice: price,
			EntryTime:    now,
		}
		pm.positions[mint] = p
	}
	p.Amount += qty
	p.TotalCost += cost
	p.CostBasis = p.TotalCost / p.Amount
	p.LastUpdate = now
	revalue(p)
	return p.Clone()
}

// Reduce removes qty at the unchanged cost basis and returns the realized PnL
// at exitPrice. Reducing to (near) zero deletes the position.
func (pm *PositionManager) Reduce(mint string, qty, exitPrice float64) (float64, bool) {
	p, ok := pm.positions[mint]
	if !ok || qty <= 0 || qty > p.Amount+positionDust {
		return 0, false
	}
	if qty > p.Amount {
		qty = p.Amount
	}
	realized := (exitPrice - p.CostBasis) * qty

	p.Amount -= qty
	if p.Amount <= positionDust {
		delete(pm.positions, mint)
		return realized, true
	}
	p.TotalCost = p.CostBasis * p.Amount
	p.CurrentPrice = exitPrice
	p.LastUpdate = pm.now()
	revalue(p)
	return realized, true
}

func (pm *PositionManager) Get(mint string) *models.Position {
	return pm.positions[mint].Clone()
}

// All returns snapshots ordered by entry time.
func (pm *PositionManager) All() []*models.Position {
	out := make([]*models.Position, 0, len(pm.positions))
	for _, p := range pm.positions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].Mint < out[j].Mint
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out
}

// Map returns a copy keyed by mint, suitable for persistence.
func (pm *PositionManager) Map() map[string]*models.Position {
	out := make(map[string]*models.Position, len(pm.positions))
	for mint, p := range pm.positions {
		out[mint] = p.Clone()
	}
	return out
}

func (pm *PositionManager) Mints() []string {
	out := make([]string, 0, len(pm.positions))
	for mint := range pm.positions {
		out = append(out, mint)
	}
	sort.Strings(out)
	return out
}

// UpdatePrices marks positions to the given prices; unknown mints are ignored.
func (pm *PositionManager) UpdatePrices(prices map[string]float64) {
	now := pm.now()
	for mint, price := range prices {
		p, ok := pm.positions[mint]
		if !ok || price <= 0 || math.IsNaN(price) {
			continue
		}
		p.CurrentPrice = price
		p.LastUpdate = now
		revalue(p)
	}
}

func (pm *PositionManager) TotalValue() float64 {
	var v float64
	for _, p := range pm.positions {
		v += p.MarketValue()
	}
	return v
}

func (pm *PositionManager) Len() int { return len(pm.positions) }

func (pm *PositionManager) Clear() {
	pm.positions = make(map[string]*models.Position)
}

func revalue(p *models.Position) {
	p.UnrealizedPnL = (p.CurrentPrice - p.CostBasis) * p.Amount
	if p.CostBasis > 0 {
		p.UnrealizedPnLPct = (p.CurrentPrice - p.CostBasis) / p.CostBasis
	} else {
		p.UnrealizedPnLPct = 0
	}
}
