// Package receipt renders printable bills.
package receipt

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// Line is one printed row.
type Line struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Amount    decimal.Decimal
}

// Receipt is everything printed on a bill.
type Receipt struct {
	Title      string
	Number     int64 // 0 for an unsaved bill
	IssuedAt   time.Time
	Lines      []Line
	TaxRate    decimal.Decimal
	FeeApplied bool
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Fee        decimal.Decimal
	Total      decimal.Decimal
}

const currency = "₹"

func money(d decimal.Decimal) string {
	return currency + d.StringFixed(2)
}

// Render writes a plain-text receipt.
func Render(w io.Writer, r Receipt) error {
	title := r.Title
	if title == "" {
		title = "Bill"
	}
	fmt.Fprintln(w, title)
	if r.Number != 0 {
		fmt.Fprintf(w, "Bill #%d\n", r.Number)
	}
	if !r.IssuedAt.IsZero() {
		fmt.Fprintln(w, r.IssuedAt.Format("02 Jan 2006, 15:04"))
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if len(r.Lines) == 0 {
		fmt.Fprintln(tw, "Your bill is empty.\t")
	}
	for _, l := range r.Lines {
		fmt.Fprintf(tw, "%s\t%d x %s\t%s\t\n", l.Name, l.Quantity, money(l.UnitPrice), money(l.Amount))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(w, strings.Repeat("-", 40))

	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "Subtotal\t%s\t\n", money(r.Subtotal))
	fmt.Fprintf(tw, "GST (%s%%)\t%s\t\n", r.TaxRate.Shift(2).String(), money(r.Tax))
	if r.FeeApplied {
		fmt.Fprintf(tw, "Installation Fee\t%s\t\n", money(r.Fee))
	}
	fmt.Fprintf(tw, "Total\t%s\t\n", money(r.Total))
	return tw.Flush()
}

// String renders the receipt to a string.
func (r Receipt) String() string {
	var buf bytes.Buffer
	Render(&buf, r)
	return buf.String()
}

var boxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

var titleStyle = lipgloss.NewStyle().Bold(true)

// Styled renders the receipt inside a rounded border for terminals.
func Styled(r Receipt) string {
	body := r.String()
	if i := strings.IndexByte(body, '\n'); i > 0 {
		body = titleStyle.Render(body[:i]) + body[i:]
	}
	return boxStyle.Render(strings.TrimRight(body, "\n"))
}
