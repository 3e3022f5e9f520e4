package ledger

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
	"github.com/georgemunganga/retail-billing/internal/modules/receipt"
)

// LineItem is one product on the bill. Quantity is always at least 1.
type LineItem struct {
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

// LineTotal is price × quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.Product.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Policy holds the fixed pricing constants of the terminal.
type Policy struct {
	TaxRate   decimal.Decimal
	FeeAmount decimal.Decimal
}

// DefaultPolicy is 18% GST and a flat fee of 50.
func DefaultPolicy() Policy {
	return Policy{TaxRate: decimal.RequireFromString("0.18"), FeeAmount: decimal.NewFromInt(50)}
}

// Totals are derived from a bill; they are never stored on it.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Fee      decimal.Decimal
	Total    decimal.Decimal
}

// MarshalJSON renders amounts as JSON numbers.
func (t Totals) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]json.Number{
		"subtotal": json.Number(t.Subtotal.String()),
		"tax":      json.Number(t.Tax.String()),
		"fee":      json.Number(t.Fee.String()),
		"total":    json.Number(t.Total.String()),
	})
}

// Snapshot is a detached copy of the bill plus its totals at the time of the read.
// Version increases with every committed change; zero means the snapshot did not come from a Service.
type Snapshot struct {
	Items      []LineItem `json:"items"`
	FeeApplied bool       `json:"feeApplied"`
	Totals     Totals     `json:"totals"`
	Version    uint64     `json:"version"`
}

// IsEmpty reports whether there is nothing to bill.
func (s Snapshot) IsEmpty() bool {
	return len(s.Items) == 0 && !s.FeeApplied
}

// LastAdded returns the most recently appended line, if any.
func (s Snapshot) LastAdded() (LineItem, bool) {
	if len(s.Items) == 0 {
		return LineItem{}, false
	}
	return s.Items[len(s.Items)-1], true
}

// AddItemRequest adds one unit of a catalog product.
type AddItemRequest struct {
	ProductID int `json:"product_id"`
}

// EditQuantityRequest carries the raw text typed into the quantity field.
type EditQuantityRequest struct {
	Quantity string `json:"quantity"`
}

// Receipt converts the snapshot into a printable receipt.
func (s Snapshot) Receipt(policy Policy) receipt.Receipt {
	return ReceiptFor(s.Items, s.FeeApplied, s.Totals, policy.TaxRate)
}

// ReceiptFor builds a receipt from lines and already-computed totals.
func ReceiptFor(items []LineItem, feeApplied bool, t Totals, taxRate decimal.Decimal) receipt.Receipt {
	lines := make([]receipt.Line, 0, len(items))
	for _, li := range items {
		lines = append(lines, receipt.Line{
			Name:      li.Product.Name,
			Quantity:  li.Quantity,
			UnitPrice: li.Product.Price,
			Amount:    li.LineTotal(),
		})
	}
	return receipt.Receipt{
		Lines:      lines,
		TaxRate:    taxRate,
		FeeApplied: feeApplied,
		Subtotal:   t.Subtotal,
		Tax:        t.Tax,
		Fee:        t.Fee,
		Total:      t.Total,
	}
}
