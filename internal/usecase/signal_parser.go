package usecase

import (
	"fmt"
	"math"
	"strings"

	"WalletMirror/internal/domain/models"
	"WalletMirror/pkg/logger"
)

// dust below which a net token delta counts as zero
const deltaEpsilon = 1e-12

// SignalParser reconstructs trade signals from one wallet's balance deltas.
type SignalParser struct {
	wallet string
	logger *logger.Logger
}

func NewSignalParser(wallet string, l *logger.Logger) *SignalParser {
	return &SignalParser{wallet: wallet, logger: l}
}

// Parse returns one signal per mint whose net balance moved in a swap.
// Non-swap and malformed records yield nil.
func (p *SignalParser) Parse(tx *models.RawTx) (signals []*models.TradeSignal) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("signal parse failed", logger.Error(fmt.Errorf("%v", r)))
			signals = nil
		}
	}()

	if tx == nil || tx.Signature == "" {
		p.logger.Warn("skipping malformed transaction record")
		return nil
	}
	if !strings.Contains(strings.ToUpper(tx.Type), "SWAP") {
		return nil
	}

	native := p.nativeDelta(tx.NativeTransfers)
	mints, deltas := p.tokenDeltas(tx.TokenTransfers)

	ts := tx.Time()
	for _, mint := range mints {
		d := deltas[mint]
		if math.Abs(d) <= deltaEpsilon || math.IsNaN(d) {
			continue
		}
		action := models.ActionBuy
		if d < 0 {
			action = models.ActionSell
		}
		signals = append(signals, &models.TradeSignal{
			Signature:   tx.Signature,
			Action:      action,
			Mint:        mint,
			Symbol:      models.ShortMint(mint),
			TokenAmount: math.Abs(d),
			SOLAmount:   math.Abs(native),
			Timestamp:   ts,
		})
	}
	return signals
}

func (p *SignalParser) nativeDelta(transfers []models.NativeTransfer) float64 {
	var lamports int64
	for _, t := range transfers {
		if t.ToUserAccount == p.wallet {
			lamports += t.Amount
		}
		if t.FromUserAccount == p.wallet {
			lamports -= t.Amount
		}
	}
	return float64(lamports) / models.LamportsPerSOL
}

// tokenDeltas nets token movements per mint, keeping first-seen order.
func (p *SignalParser) tokenDeltas(transfers []models.TokenTransfer) ([]string, map[string]float64) {
	var order []string
	deltas := make(map[string]float64)
	for _, t := range transfers {
		if t.Mint == "" || t.Mint == models.WrappedSOLMint {
			continue
		}
		var d float64
		if t.ToUserAccount == p.wallet {
			d += t.TokenAmount
		}
		if t.FromUserAccount == p.wallet {
			d -= t.TokenAmount
		}
		if d == 0 {
			continue
		}
		if _, seen := deltas[t.Mint]; !seen {
			order = append(order, t.Mint)
		}
		deltas[t.Mint] += d
	}
	return order, deltas
}
