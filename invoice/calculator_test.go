package invoice_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/invoice"
	"github.com/xraph/tally/types"
)

func item(qty string, rate int64) invoice.LineItem {
	return invoice.LineItem{
		Description: "work",
		Quantity:    decimal.RequireFromString(qty),
		Rate:        types.USD(rate),
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name     string
		items    []invoice.LineItem
		tax      string
		discount int64
		subtotal int64
		taxAmt   int64
		total    int64
	}{
		{
			name:     "tax and discount",
			items:    []invoice.LineItem{item("2", 5000), item("1", 3000)},
			tax:      "10",
			discount: 500,
			subtotal: 13000,
			taxAmt:   1300,
			total:    13800,
		},
		{
			name:     "no items",
			tax:      "0",
			subtotal: 0,
			total:    0,
		},
		{
			name:     "fractional hours",
			items:    []invoice.LineItem{item("1.5", 10000)},
			tax:      "0",
			subtotal: 15000,
			total:    15000,
		},
		{
			name:     "half cent rounds to even once",
			items:    []invoice.LineItem{item("0.5", 1), item("0.5", 2)},
			tax:      "0",
			subtotal: 2,
			total:    2,
		},
		{
			name:     "discount exceeds subtotal clamps at zero",
			items:    []invoice.LineItem{item("1", 1000)},
			tax:      "0",
			discount: 5000,
			subtotal: 1000,
			total:    0,
		},
		{
			name:     "fractional tax",
			items:    []invoice.LineItem{item("1", 999)},
			tax:      "7.25",
			subtotal: 999,
			taxAmt:   72,
			total:    1071,
		},
	}

	calc := invoice.NewCalculator("usd")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got, err := calc.Compute(tt.items, decimal.RequireFromString(tt.tax), types.USD(tt.discount))
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got.Subtotal.Amount != tt.subtotal {
				t.Errorf("subtotal: got %d, want %d", got.Subtotal.Amount, tt.subtotal)
			}
			if got.TaxAmount.Amount != tt.taxAmt {
				t.Errorf("tax: got %d, want %d", got.TaxAmount.Amount, tt.taxAmt)
			}
			if got.Total.Amount != tt.total {
				t.Errorf("total: got %d, want %d", got.Total.Amount, tt.total)
			}
		})
	}
}

func TestComputeRecomputesItemAmounts(t *testing.T) {
	in := item("3", 2500)
	in.Amount = types.USD(1)

	items, _, err := invoice.NewCalculator("usd").Compute([]invoice.LineItem{in}, decimal.Zero, types.Zero("usd"))
	if err != nil {
		t.Fatal(err)
	}
	if items[0].Amount.Amount != 7500 {
		t.Errorf("amount: got %d, want 7500", items[0].Amount.Amount)
	}
}

func TestComputeWithoutClamp(t *testing.T) {
	calc := invoice.NewCalculator("usd")
	calc.Clamp = false

	_, got, err := calc.Compute([]invoice.LineItem{item("1", 1000)}, decimal.Zero, types.USD(1500))
	if err != nil {
		t.Fatal(err)
	}
	if got.Total.Amount != -500 {
		t.Errorf("total: got %d, want -500", got.Total.Amount)
	}
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	calc := invoice.NewCalculator("usd")

	tests := []struct {
		name     string
		items    []invoice.LineItem
		tax      string
		discount types.Money
		field    string
	}{
		{"negative quantity", []invoice.LineItem{item("-1", 100)}, "0", types.Zero("usd"), "line_items[0].quantity"},
		{"negative rate", []invoice.LineItem{item("1", -100)}, "0", types.Zero("usd"), "line_items[0].rate"},
		{"negative tax", nil, "-1", types.Zero("usd"), "tax"},
		{"negative discount", nil, "0", types.USD(-1), "discount"},
		{"currency mismatch", []invoice.LineItem{{Quantity: decimal.NewFromInt(1), Rate: types.EUR(100)}}, "0", types.Zero("usd"), "line_items[0].rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := calc.Compute(tt.items, decimal.RequireFromString(tt.tax), tt.discount)
			var fe *invoice.FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field: got %s, want %s", fe.Field, tt.field)
			}
		})
	}
}

func TestApply(t *testing.T) {
	inv := &invoice.Invoice{
		LineItems:  []invoice.LineItem{item("2", 5000), item("1", 3000)},
		TaxPercent: decimal.NewFromInt(10),
		Discount:   types.USD(500),
	}
	if err := invoice.NewCalculator("usd").Apply(inv); err != nil {
		t.Fatal(err)
	}
	if !inv.Total.Equal(types.USD(13800)) {
		t.Errorf("total: got %v", inv.Total)
	}
	if inv.Currency != "usd" {
		t.Errorf("currency: got %q", inv.Currency)
	}
}
