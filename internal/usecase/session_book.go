package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"WalletMirror/internal/domain/models"
	drepo "WalletMirror/internal/domain/repository"
)

// SessionBook owns the active session's metadata document. Every mutation is
// written through to the store.
type SessionBook struct {
	store drepo.PersistenceStore

	mu   sync.Mutex
	meta *models.SessionMeta
}

// OpenSessionBook loads the wallet's active session or starts a new one.
func OpenSessionBook(ctx context.Context, store drepo.PersistenceStore, wallet, nickname string, initialBalance float64, now time.Time) (*SessionBook, error) {
	meta, err := store.ActiveSession(ctx, wallet)
	switch {
	case errors.Is(err, drepo.ErrNotFound):
		meta = models.NewSession(wallet, nickname, initialBalance, now)
		if err := store.SaveSession(ctx, meta); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load active session: %w", err)
	}
	return &SessionBook{store: store, meta: meta}, nil
}

func (b *SessionBook) ID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.meta.ID
}

// Snapshot returns a copy of the metadata.
func (b *SessionBook) Snapshot() models.SessionMeta {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyMeta(b.meta)
}

// Update applies fn and persists the result. On a store error the in-memory
// document keeps the change; the next successful write carries it.
func (b *SessionBook) Update(ctx context.Context, fn func(*models.SessionMeta)) error {
	b.mu.Lock()
	fn(b.meta)
	snap := copyMeta(b.meta)
	b.mu.Unlock()
	if err := b.store.SaveSession(ctx, &snap); err != nil {
		return fmt.Errorf("save session %s: %w", snap.ID, err)
	}
	return nil
}

// Rotate archives the current session and makes next the active one.
func (b *SessionBook) Rotate(ctx context.Context, next *models.SessionMeta, now time.Time) (models.SessionMeta, error) {
	b.mu.Lock()
	prev := b.meta
	prev.Status = models.SessionArchived
	archivedAt := now
	prev.ArchivedAt = &archivedAt
	archived := copyMeta(prev)
	b.meta = next
	b.mu.Unlock()

	if err := b.store.SaveSession(ctx, &archived); err != nil {
		return archived, fmt.Errorf("archive session %s: %w", archived.ID, err)
	}
	fresh := b.Snapshot()
	if err := b.store.SaveSession(ctx, &fresh); err != nil {
		return archived, fmt.Errorf("save session %s: %w", fresh.ID, err)
	}
	return archived, nil
}

// ObservePeak raises the recorded peak value and returns the peak.
func (b *SessionBook) ObservePeak(ctx context.Context, value float64) (float64, error) {
	b.mu.Lock()
	if value <= b.meta.Stats.PeakValue {
		peak := b.meta.Stats.PeakValue
		b.mu.Unlock()
		return peak, nil
	}
	b.mu.Unlock()

	var peak float64
	err := b.Update(ctx, func(m *models.SessionMeta) {
		if value > m.Stats.PeakValue {
			m.Stats.PeakValue = value
		}
		peak = m.Stats.PeakValue
	})
	return peak, err
}

func copyMeta(m *models.SessionMeta) models.SessionMeta {
	c := *m
	c.Operations = append([]models.Operation(nil), m.Operations...)
	if m.ArchivedAt != nil {
		t := *m.ArchivedAt
		c.ArchivedAt = &t
	}
	return c
}
