package catalog

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is an item the terminal can sell. ID is stable for the product's lifetime.
type Product struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	ImageURL string          `json:"imageUrl,omitempty"`
}

// MarshalJSON writes the price as a JSON number rather than decimal's default string.
func (p Product) MarshalJSON() ([]byte, error) {
	type alias Product
	return json.Marshal(struct {
		alias
		Price json.Number `json:"price"`
	}{alias: alias(p), Price: json.Number(p.Price.String())})
}

// Filter narrows ListProducts. Empty fields match everything.
type Filter struct {
	Category string
	Search   string
}

// AllCategories is the pseudo-category that disables category filtering.
const AllCategories = "All"

// UpdatePriceRequest carries the raw text typed into the price field.
type UpdatePriceRequest struct {
	Price string `json:"price"`
}

// SetImageRequest assigns an image to a product.
type SetImageRequest struct {
	ImageURL string `json:"imageUrl"`
}
