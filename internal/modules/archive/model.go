package archive

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/georgemunganga/retail-billing/internal/modules/catalog"
	"github.com/georgemunganga/retail-billing/internal/modules/ledger"
	"github.com/georgemunganga/retail-billing/internal/modules/receipt"
)

// SlotKey is the store key holding the whole archive.
const SlotKey = "retailBillingApp-savedBills"

// dateLayout matches JavaScript's Date.toISOString.
const dateLayout = "2006-01-02T15:04:05.000Z07:00"

// SavedBill is an immutable snapshot of a finished bill. Totals are the ones captured at save time.
type SavedBill struct {
	ID         int64
	CreatedAt  time.Time
	Items      []ledger.LineItem
	FeeApplied bool
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Total      decimal.Decimal
}

// Fee is the surcharge included in Total.
func (b SavedBill) Fee() decimal.Decimal {
	return b.Total.Sub(b.Subtotal).Sub(b.Tax)
}

// Totals returns the captured totals.
func (b SavedBill) Totals() ledger.Totals {
	return ledger.Totals{Subtotal: b.Subtotal, Tax: b.Tax, Fee: b.Fee(), Total: b.Total}
}

func (b SavedBill) clone() SavedBill {
	b.Items = append([]ledger.LineItem(nil), b.Items...)
	return b
}

// MarshalJSON writes the persisted record shape.
func (b SavedBill) MarshalJSON() ([]byte, error) {
	return json.Marshal(toRecord(b))
}

// ── Persisted shape ──────────────────────────────────────────────────────────

type recordItem struct {
	ID       int         `json:"id"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Category string      `json:"category"`
	Quantity int         `json:"quantity"`
	ImageURL string      `json:"imageUrl,omitempty"`
}

type record struct {
	ID                       int64        `json:"id"`
	Date                     string       `json:"date"`
	Items                    []recordItem `json:"items"`
	Subtotal                 json.Number  `json:"subtotal"`
	GSTAmount                json.Number  `json:"gstAmount"`
	Total                    json.Number  `json:"total"`
	IsInstallationFeeApplied bool         `json:"isInstallationFeeApplied,omitempty"`
}

func toRecord(b SavedBill) record {
	items := make([]recordItem, 0, len(b.Items))
	for _, li := range b.Items {
		items = append(items, recordItem{
			ID:       li.Product.ID,
			Name:     li.Product.Name,
			Price:    json.Number(li.Product.Price.String()),
			Category: li.Product.Category,
			Quantity: li.Quantity,
			ImageURL: li.Product.ImageURL,
		})
	}
	return record{
		ID:                       b.ID,
		Date:                     b.CreatedAt.UTC().Format(dateLayout),
		Items:                    items,
		Subtotal:                 json.Number(b.Subtotal.String()),
		GSTAmount:                json.Number(b.Tax.String()),
		Total:                    json.Number(b.Total.String()),
		IsInstallationFeeApplied: b.FeeApplied,
	}
}

func amount(field string, n json.Number) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %w", field, err)
	}
	if d.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%s must not be negative", field)
	}
	return d, nil
}

// fromRecord validates one persisted record.
func fromRecord(r record) (SavedBill, error) {
	if r.ID <= 0 {
		return SavedBill{}, fmt.Errorf("id must be positive")
	}
	created, err := time.Parse(time.RFC3339Nano, r.Date)
	if err != nil {
		return SavedBill{}, fmt.Errorf("date: %w", err)
	}

	seen := map[int]bool{}
	items := make([]ledger.LineItem, 0, len(r.Items))
	for i, it := range r.Items {
		if seen[it.ID] {
			return SavedBill{}, fmt.Errorf("items[%d]: duplicate product id %d", i, it.ID)
		}
		seen[it.ID] = true
		if strings.TrimSpace(it.Name) == "" {
			return SavedBill{}, fmt.Errorf("items[%d]: name is required", i)
		}
		if it.Quantity < 1 {
			return SavedBill{}, fmt.Errorf("items[%d]: quantity must be at least 1", i)
		}
		price, err := amount(fmt.Sprintf("items[%d].price", i), it.Price)
		if err != nil {
			return SavedBill{}, err
		}
		items = append(items, ledger.LineItem{
			Product: catalog.Product{
				ID:       it.ID,
				Name:     it.Name,
				Price:    price,
				Category: it.Category,
				ImageURL: it.ImageURL,
			},
			Quantity: it.Quantity,
		})
	}

	subtotal, err := amount("subtotal", r.Subtotal)
	if err != nil {
		return SavedBill{}, err
	}
	tax, err := amount("gstAmount", r.GSTAmount)
	if err != nil {
		return SavedBill{}, err
	}
	total, err := amount("total", r.Total)
	if err != nil {
		return SavedBill{}, err
	}

	return SavedBill{
		ID:         r.ID,
		CreatedAt:  created,
		Items:      items,
		FeeApplied: r.IsInstallationFeeApplied,
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      total,
	}, nil
}

// ── Slot codec ───────────────────────────────────────────────────────────────

// decodeSlot parses the archive slot. A value that is not a JSON array fails as a whole;
// inside the array, each bad record is reported through reject and skipped.
func decodeSlot(value string, reject func(index int, err error)) ([]SavedBill, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return nil, err
	}
	bills := make([]SavedBill, 0, len(raw))
	ids := map[int64]bool{}
	for i, msg := range raw {
		var r record
		if err := json.Unmarshal(msg, &r); err != nil {
			reject(i, err)
			continue
		}
		b, err := fromRecord(r)
		if err != nil {
			reject(i, err)
			continue
		}
		if ids[b.ID] {
			reject(i, fmt.Errorf("duplicate bill id %d", b.ID))
			continue
		}
		ids[b.ID] = true
		bills = append(bills, b)
	}
	return bills, nil
}

func encodeSlot(bills []SavedBill) (string, error) {
	records := make([]record, 0, len(bills))
	for _, b := range bills {
		records = append(records, toRecord(b))
	}
	data, err := json.Marshal(records)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Receipt builds the printable receipt from the captured totals.
func (b SavedBill) Receipt(policy ledger.Policy) receipt.Receipt {
	r := ledger.ReceiptFor(b.Items, b.FeeApplied, b.Totals(), policy.TaxRate)
	r.Title = "Saved Bill"
	r.Number = b.ID
	r.IssuedAt = b.CreatedAt
	return r
}
