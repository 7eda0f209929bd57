package usecase

import (
	"context"
	"fmt"
	"sync"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
	"WalletMirror/pkg/logger"
)

// TransactionPoller returns the unseen prefix of a wallet's newest-first
// transaction list, tracking the last seen signature as its anchor.
type TransactionPoller struct {
	source      drepo.ChainDataSource
	wallet      string
	gapBackfill int
	logger      *logger.Logger
	metrics     drepo.Metrics

	mu     sync.Mutex
	anchor string
}

type PollerOption func(*TransactionPoller)

// WithGapBackfill pages older history after a gap, up to n extra items,
// looking for the previous anchor. Zero disables it.
func WithGapBackfill(n int) PollerOption {
	return func(p *TransactionPoller) {
		if n > 0 {
			p.gapBackfill = n
		}
	}
}

func NewTransactionPoller(source drepo.ChainDataSource, wallet string, l *logger.Logger, m drepo.Metrics, opts ...PollerOption) *TransactionPoller {
	p := &TransactionPoller{source: source, wallet: wallet, logger: l, metrics: m}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *TransactionPoller) Anchor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.anchor
}

// SetAnchor restores a persisted anchor.
func (p *TransactionPoller) SetAnchor(sig string) {
	p.mu.Lock()
	p.anchor = sig
	p.mu.Unlock()
}

// Poll fetches up to limit recent transactions and returns the new ones,
// newest first, plus whether a gap was detected.
//
// With no anchor the newest transaction is adopted and nothing is returned.
// When the anchor is not within the fetched window every fetched item is
// treated as new, the gap flag is set and the anchor jumps to the newest.
func (p *TransactionPoller) Poll(ctx context.Context, limit int) ([]models.RawTx, bool, error) {
	txs, err := p.source.RecentTransactions(ctx, p.wallet, limit)
	if err != nil {
		return nil, false, fmt.Errorf("fetch recent transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, false, nil
	}

	p.mu.Lock()
	anchor := p.anchor
	p.mu.Unlock()

	if anchor == "" {
		p.SetAnchor(txs[0].Signature)
		p.logger.Info("poller anchor initialised",
			logger.String("wallet", p.wallet),
			logger.String("anchor", txs[0].Signature))
		return nil, false, nil
	}

	fresh, found := splitAtAnchor(txs, anchor)
	gap := !found
	if gap {
		p.metrics.RecordGap()
		p.logger.Warn("transaction gap detected: anchor not in latest window",
			logger.String("wallet", p.wallet),
			logger.String("anchor", anchor),
			logger.Int("window", len(txs)))
		if p.gapBackfill > 0 {
			fresh = append(fresh, p.backfill(ctx, txs[len(txs)-1].Signature, anchor)...)
		}
	}

	if len(fresh) == 0 {
		return nil, false, nil
	}

	p.SetAnchor(fresh[0].Signature)
	p.metrics.RecordTransactions(len(fresh))
	return fresh, gap, nil
}

// Bootstrap fetches up to n of the newest transactions and adopts the newest
// as anchor. It is used for a one-time replay when no anchor was persisted.
func (p *TransactionPoller) Bootstrap(ctx context.Context, n int) ([]models.RawTx, error) {
	fetch := n
	if fetch < 1 {
		fetch = 1
	}
	txs, err := p.source.RecentTransactions(ctx, p.wallet, fetch)
	if err != nil {
		return nil, fmt.Errorf("fetch recent transactions: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil
	}
	p.SetAnchor(txs[0].Signature)
	if n <= 0 {
		return nil, nil
	}
	return txs, nil
}

// backfill pages older history starting before `from` until the anchor shows
// up or the budget is spent. Failures end the backfill early.
func (p *TransactionPoller) backfill(ctx context.Context, from, anchor string) []models.RawTx {
	var out []models.RawTx
	cursor := from
	for budget := p.gapBackfill; budget > 0; {
		page, err := p.source.TransactionsBefore(ctx, p.wallet, cursor, budget)
		if err != nil {
			p.logger.Warn("gap backfill aborted", logger.Error(err))
			return out
		}
		if len(page) == 0 {
			return out
		}
		older, found := splitAtAnchor(page, anchor)
		out = append(out, older...)
		if found {
			p.logger.Info("gap backfill reached anchor", logger.Int("recovered", len(out)))
			return out
		}
		budget -= len(page)
		cursor = page[len(page)-1].Signature
	}
	p.logger.Warn("gap backfill budget exhausted before anchor", logger.Int("recovered", len(out)))
	return out
}

func splitAtAnchor(txs []models.RawTx, anchor string) ([]models.RawTx, bool) {
	for i := range txs {
		if txs[i].Signature == anchor {
			return txs[:i], true
		}
	}
	return txs, false
}
