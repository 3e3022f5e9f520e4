package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/georgemunganga/retail-billing/internal/modules/ledger"
)

var (
	ErrNothingToSave = errors.New("bill is empty: nothing to save")
	ErrBillNotFound  = errors.New("saved bill not found")
)

// Service is the saved-bill archive.
type Service interface {
	// Save archives the current bill and clears it. An empty bill is not saved.
	Save(ctx context.Context) (SavedBill, error)
	// List returns saved bills, most recent first.
	List(ctx context.Context) []SavedBill
	Get(ctx context.Context, id int64) (SavedBill, error)
	// Load replaces the in-progress bill with a saved one. The archive is unchanged.
	Load(ctx context.Context, id int64) (ledger.Snapshot, error)
	Delete(ctx context.Context, id int64) error
}

type service struct {
	mu     sync.Mutex
	store  Store
	bills  ledger.Service
	clock  *IDClock
	logger *zap.Logger
	saved  []SavedBill
}

// Option customises Open.
type Option func(*service)

// WithClock replaces the id clock.
func WithClock(c *IDClock) Option {
	return func(s *service) { s.clock = c }
}

// Open reads the archive from store. A missing slot is an empty archive; an unreadable or
// corrupt slot is logged and also treated as empty. Individually invalid records are dropped.
func Open(ctx context.Context, store Store, bills ledger.Service, logger *zap.Logger, opts ...Option) Service {
	s := &service{store: store, bills: bills, logger: logger, clock: NewIDClock(nil)}
	for _, opt := range opts {
		opt(s)
	}
	s.saved = s.read(ctx)
	for _, b := range s.saved {
		s.clock.Observe(b.ID)
	}
	return s
}

func (s *service) read(ctx context.Context) []SavedBill {
	value, ok, err := s.store.Get(ctx, SlotKey)
	if err != nil {
		s.logger.Error("failed to read saved bills, starting empty", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	bills, err := decodeSlot(value, func(i int, err error) {
		s.logger.Warn("dropping invalid saved bill", zap.Int("index", i), zap.Error(err))
	})
	if err != nil {
		s.logger.Error("saved bills slot is corrupt, starting empty", zap.Error(err))
		return nil
	}
	s.logger.Info("saved bills loaded", zap.Int("count", len(bills)))
	return bills
}

// persist writes the whole list under the slot key.
func (s *service) persist(ctx context.Context, bills []SavedBill) error {
	value, err := encodeSlot(bills)
	if err != nil {
		return fmt.Errorf("encoding saved bills: %w", err)
	}
	if err := s.store.Set(ctx, SlotKey, value); err != nil {
		return fmt.Errorf("persisting saved bills: %w", err)
	}
	return nil
}

func (s *service) Save(ctx context.Context) (SavedBill, error) {
	var saved SavedBill
	_, err := s.bills.Checkout(ctx, func(snap ledger.Snapshot) error {
		if snap.IsEmpty() {
			return ErrNothingToSave
		}
		s.mu.Lock()
		defer s.mu.Unlock()

		id, created := s.clock.Next()
		bill := SavedBill{
			ID:         id,
			CreatedAt:  created,
			Items:      snap.Items,
			FeeApplied: snap.FeeApplied,
			Subtotal:   snap.Totals.Subtotal,
			Tax:        snap.Totals.Tax,
			Total:      snap.Totals.Total,
		}
		next := append([]SavedBill{bill}, s.saved...)
		if err := s.persist(ctx, next); err != nil {
			s.logger.Error("failed to save bill", zap.Int64("bill_id", id), zap.Error(err))
			return err
		}
		s.saved = next
		saved = bill.clone()
		return nil
	})
	if err != nil {
		return SavedBill{}, err
	}
	s.logger.Info("bill saved",
		zap.Int64("bill_id", saved.ID),
		zap.Int("lines", len(saved.Items)),
		zap.String("total", saved.Total.String()))
	return saved, nil
}

func (s *service) List(ctx context.Context) []SavedBill {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SavedBill, 0, len(s.saved))
	for _, b := range s.saved {
		out = append(out, b.clone())
	}
	return out
}

func (s *service) Get(ctx context.Context, id int64) (SavedBill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.saved {
		if b.ID == id {
			return b.clone(), nil
		}
	}
	return SavedBill{}, ErrBillNotFound
}

func (s *service) Load(ctx context.Context, id int64) (ledger.Snapshot, error) {
	// The archive lock is released before touching the ledger; Save takes them in the other order.
	b, err := s.Get(ctx, id)
	if err != nil {
		return s.bills.Current(ctx), err
	}
	snap := s.bills.Replace(ctx, b.Items, b.FeeApplied)
	s.logger.Info("saved bill loaded into ledger", zap.Int64("bill_id", id))
	return snap, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, b := range s.saved {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrBillNotFound
	}
	next := make([]SavedBill, 0, len(s.saved)-1)
	next = append(next, s.saved[:idx]...)
	next = append(next, s.saved[idx+1:]...)
	if err := s.persist(ctx, next); err != nil {
		s.logger.Error("failed to delete bill", zap.Int64("bill_id", id), zap.Error(err))
		return err
	}
	s.saved = next
	s.logger.Info("saved bill deleted", zap.Int64("bill_id", id))
	return nil
}
