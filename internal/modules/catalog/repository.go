package catalog

import "context"

// Repository defines the interface for product storage.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int) (Product, error)
	Update(ctx context.Context, p Product) error
}
