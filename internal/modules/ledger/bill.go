package ledger

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be a whole number greater than zero")
	ErrItemNotInBill   = errors.New("item not in bill")
)

// Bill is the in-progress bill. It holds at most one line per product id, in first-add order.
// A Bill is not safe for concurrent use; Service serialises access to one.
type Bill struct {
	policy     Policy
	items      []LineItem
	feeApplied bool
}

// NewBill returns an empty bill priced with policy.
func NewBill(policy Policy) *Bill {
	return &Bill{policy: policy}
}

func (b *Bill) indexOf(productID int) int {
	for i := range b.items {
		if b.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// AddItem increments the line for p, or appends a new line with quantity 1.
func (b *Bill) AddItem(p catalog.Product) {
	if i := b.indexOf(p.ID); i >= 0 {
		b.items[i].Quantity++
		return
	}
	b.items = append(b.items, LineItem{Product: p, Quantity: 1})
}

// SetQuantity replaces the quantity of a line. n <= 0 removes the line.
func (b *Bill) SetQuantity(productID, n int) {
	if n <= 0 {
		b.RemoveItem(productID)
		return
	}
	if i := b.indexOf(productID); i >= 0 {
		b.items[i].Quantity = n
	}
}

// RemoveItem deletes the line for productID if present.
func (b *Bill) RemoveItem(productID int) {
	if i := b.indexOf(productID); i >= 0 {
		b.items = append(b.items[:i], b.items[i+1:]...)
	}
}

// Quantity returns the current quantity of a line.
func (b *Bill) Quantity(productID int) (int, bool) {
	if i := b.indexOf(productID); i >= 0 {
		return b.items[i].Quantity, true
	}
	return 0, false
}

// ToggleFee flips whether the flat fee applies.
func (b *Bill) ToggleFee() {
	b.feeApplied = !b.feeApplied
}

// FeeApplied reports whether the flat fee applies.
func (b *Bill) FeeApplied() bool { return b.feeApplied }

// Clear empties the bill and removes the fee.
func (b *Bill) Clear() {
	b.items = nil
	b.feeApplied = false
}

// IsEmpty reports whether there are no lines and no fee.
func (b *Bill) IsEmpty() bool {
	return len(b.items) == 0 && !b.feeApplied
}

// Totals computes subtotal, tax and total from the current lines.
func (b *Bill) Totals() Totals {
	return ComputeTotals(b.items, b.feeApplied, b.policy)
}

// Items returns a copy of the lines.
func (b *Bill) Items() []LineItem {
	return copyItems(b.items)
}

// Snapshot returns a detached copy of the bill and its totals.
func (b *Bill) Snapshot() Snapshot {
	return Snapshot{Items: b.Items(), FeeApplied: b.feeApplied, Totals: b.Totals()}
}

// Replace discards the current state and installs copies of items.
func (b *Bill) Replace(items []LineItem, feeApplied bool) {
	b.items = copyItems(items)
	b.feeApplied = feeApplied
}

// ComputeTotals is the pricing formula shared by the live bill and archived bills.
func ComputeTotals(items []LineItem, feeApplied bool, policy Policy) Totals {
	subtotal := decimal.Zero
	for _, li := range items {
		subtotal = subtotal.Add(li.LineTotal())
	}
	tax := subtotal.Mul(policy.TaxRate)
	fee := decimal.Zero
	if feeApplied {
		fee = policy.FeeAmount
	}
	return Totals{
		Subtotal: subtotal,
		Tax:      tax,
		Fee:      fee,
		Total:    subtotal.Add(tax).Add(fee),
	}
}

// ParseQuantity validates text from an editable quantity field.
func ParseQuantity(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, ErrInvalidQuantity
	}
	return n, nil
}

func copyItems(items []LineItem) []LineItem {
	if len(items) == 0 {
		return []LineItem{}
	}
	return append([]LineItem(nil), items...)
}
