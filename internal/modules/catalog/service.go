package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidPrice    = errors.New("price must be a number greater than zero")
	ErrImageRequired   = errors.New("imageUrl is required")
)

// Service defines catalog business logic.
type Service interface {
	ListProducts(ctx context.Context, f Filter) ([]Product, error)
	Categories(ctx context.Context) ([]string, error)
	GetProduct(ctx context.Context, id int) (Product, error)
	// UpdatePrice parses raw and replaces the price. On ErrInvalidPrice the product is unchanged.
	UpdatePrice(ctx context.Context, id int, raw string) (Product, error)
	SetImage(ctx context.Context, id int, url string) (Product, error)
	MissingImages(ctx context.Context) ([]Product, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

func NewService(repo Repository, logger *zap.Logger) Service {
	return &service{repo: repo, logger: logger}
}

// ParsePrice accepts only a positive decimal number.
func ParsePrice(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return d, nil
}

func (s *service) ListProducts(ctx context.Context, f Filter) ([]Product, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))
	matchAll := f.Category == "" || f.Category == AllCategories

	out := make([]Product, 0, len(all))
	for _, p := range all {
		if !matchAll && p.Category != f.Category {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *service) Categories(ctx context.Context) ([]string, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	cats := []string{AllCategories}
	for _, p := range all {
		if !seen[p.Category] {
			seen[p.Category] = true
			cats = append(cats, p.Category)
		}
	}
	return cats, nil
}

func (s *service) GetProduct(ctx context.Context, id int) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) UpdatePrice(ctx context.Context, id int, raw string) (Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Product{}, err
	}
	price, err := ParsePrice(raw)
	if err != nil {
		return p, err
	}
	if price.Equal(p.Price) {
		return p, nil
	}
	old := p.Price
	p.Price = price
	if err := s.repo.Update(ctx, p); err != nil {
		return Product{}, fmt.Errorf("updating price of product %d: %w", id, err)
	}
	s.logger.Info("product price changed",
		zap.Int("product_id", id),
		zap.String("old", old.String()),
		zap.String("new", price.String()))
	return p, nil
}

func (s *service) SetImage(ctx context.Context, id int, url string) (Product, error) {
	if strings.TrimSpace(url) == "" {
		return Product{}, ErrImageRequired
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.ImageURL = url
	if err := s.repo.Update(ctx, p); err != nil {
		return Product{}, fmt.Errorf("setting image of product %d: %w", id, err)
	}
	return p, nil
}

func (s *service) MissingImages(ctx context.Context) ([]Product, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	var missing []Product
	for _, p := range all {
		if p.ImageURL == "" {
			missing = append(missing, p)
		}
	}
	return missing, nil
}
