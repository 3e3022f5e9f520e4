package catalog

import (
	"context"
	"sync"
)

type memoryRepo struct {
	mu       sync.RWMutex
	products []Product
}

// NewMemoryRepository returns a repository holding a copy of products in the given order.
func NewMemoryRepository(products []Product) Repository {
	return &memoryRepo{products: append([]Product(nil), products...)}
}

func (r *memoryRepo) List(ctx context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Product(nil), r.products...), nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id int) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func (r *memoryRepo) Update(ctx context.Context, p Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.products {
		if r.products[i].ID == p.ID {
			r.products[i] = p
			return nil
		}
	}
	return ErrProductNotFound
}
