package ledger

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
)

// Observer is told about every bill change, after the change is committed.
type Observer func(Snapshot)

// Service defines the bill ledger operations of the terminal.
type Service interface {
	Current(ctx context.Context) Snapshot
	Policy() Policy

	// Add puts one unit of a catalog product on the bill.
	Add(ctx context.Context, productID int) (Snapshot, error)
	Increment(ctx context.Context, productID int) (Snapshot, error)
	// Decrement lowers the quantity by one; at zero the line is removed.
	Decrement(ctx context.Context, productID int) (Snapshot, error)
	SetQuantity(ctx context.Context, productID, quantity int) Snapshot
	// EditQuantity applies text typed into a quantity field. Invalid text leaves the bill unchanged.
	EditQuantity(ctx context.Context, productID int, raw string) (Snapshot, error)
	Remove(ctx context.Context, productID int) Snapshot
	ToggleFee(ctx context.Context) Snapshot
	Clear(ctx context.Context) Snapshot
	Replace(ctx context.Context, items []LineItem, feeApplied bool) Snapshot
	// Checkout hands the current bill to settle and clears it once settle succeeds.
	// The bill cannot change while settle runs.
	Checkout(ctx context.Context, settle func(Snapshot) error) (Snapshot, error)

	Subscribe(o Observer)
}

type service struct {
	mu        sync.Mutex
	bill      *Bill
	policy    Policy
	products  catalog.Service
	logger    *zap.Logger
	observers []Observer
	version   uint64
}

func NewService(policy Policy, products catalog.Service, logger *zap.Logger) Service {
	return &service{bill: NewBill(policy), policy: policy, products: products, logger: logger}
}

func (s *service) Policy() Policy { return s.policy }

func (s *service) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

func (s *service) Current(ctx context.Context) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.bill.Snapshot()
	snap.Version = s.version
	return snap
}

// mutate runs fn under the lock and notifies observers once the lock is released.
// Observers may see snapshots out of order; Version gives the commit order.
func (s *service) mutate(fn func(b *Bill) error) (Snapshot, error) {
	s.mu.Lock()
	err := fn(s.bill)
	if err == nil {
		s.version++
	}
	snap := s.bill.Snapshot()
	snap.Version = s.version
	observers := append([]Observer(nil), s.observers...)
	s.mu.Unlock()

	if err != nil {
		return snap, err
	}
	for _, o := range observers {
		o(snap)
	}
	return snap, nil
}

func (s *service) Add(ctx context.Context, productID int) (Snapshot, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return s.Current(ctx), err
	}
	return s.mutate(func(b *Bill) error {
		b.AddItem(p)
		return nil
	})
}

func (s *service) Increment(ctx context.Context, productID int) (Snapshot, error) {
	return s.mutate(func(b *Bill) error {
		q, ok := b.Quantity(productID)
		if !ok {
			return ErrItemNotInBill
		}
		b.SetQuantity(productID, q+1)
		return nil
	})
}

func (s *service) Decrement(ctx context.Context, productID int) (Snapshot, error) {
	return s.mutate(func(b *Bill) error {
		q, ok := b.Quantity(productID)
		if !ok {
			return ErrItemNotInBill
		}
		b.SetQuantity(productID, q-1)
		return nil
	})
}

func (s *service) SetQuantity(ctx context.Context, productID, quantity int) Snapshot {
	snap, _ := s.mutate(func(b *Bill) error {
		b.SetQuantity(productID, quantity)
		return nil
	})
	return snap
}

func (s *service) EditQuantity(ctx context.Context, productID int, raw string) (Snapshot, error) {
	return s.mutate(func(b *Bill) error {
		if _, ok := b.Quantity(productID); !ok {
			return ErrItemNotInBill
		}
		n, err := ParseQuantity(raw)
		if err != nil {
			s.logger.Debug("rejected quantity input", zap.Int("product_id", productID), zap.String("input", raw))
			return err
		}
		b.SetQuantity(productID, n)
		return nil
	})
}

func (s *service) Remove(ctx context.Context, productID int) Snapshot {
	snap, _ := s.mutate(func(b *Bill) error {
		b.RemoveItem(productID)
		return nil
	})
	return snap
}

func (s *service) ToggleFee(ctx context.Context) Snapshot {
	snap, _ := s.mutate(func(b *Bill) error {
		b.ToggleFee()
		return nil
	})
	return snap
}

func (s *service) Clear(ctx context.Context) Snapshot {
	snap, _ := s.mutate(func(b *Bill) error {
		b.Clear()
		return nil
	})
	return snap
}

func (s *service) Replace(ctx context.Context, items []LineItem, feeApplied bool) Snapshot {
	snap, _ := s.mutate(func(b *Bill) error {
		b.Replace(items, feeApplied)
		return nil
	})
	return snap
}

func (s *service) Checkout(ctx context.Context, settle func(Snapshot) error) (Snapshot, error) {
	return s.mutate(func(b *Bill) error {
		if err := settle(b.Snapshot()); err != nil {
			return err
		}
		b.Clear()
		return nil
	})
}
