package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/tally/types"
)

var hundred = decimal.NewFromInt(100)

// FieldError reports an invalid calculator input.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invoice: %s: %s", e.Field, e.Message)
}

// Totals is the result of Compute.
type Totals struct {
	Subtotal  types.Money `json:"subtotal"`
	TaxAmount types.Money `json:"tax_amount"`
	Total     types.Money `json:"total"`
}

// Calculator derives invoice totals. Intermediate values are exact decimals
// in minor units; rounding is half-even and happens once per reported figure.
type Calculator struct {
	Currency string
	// Floor is the lowest total Compute returns while Clamp is set.
	Floor types.Money
	Clamp bool
}

// NewCalculator returns a calculator clamping totals at zero.
func NewCalculator(currency string) Calculator {
	return Calculator{
		Currency: currency,
		Floor:    types.Zero(currency),
		Clamp:    true,
	}
}

// Compute recomputes every line amount and the invoice totals.
//
// The returned items are copies of items with Amount filled in and Rate
// normalised to the calculator currency.
func (c Calculator) Compute(items []LineItem, taxPercent decimal.Decimal, discount types.Money) ([]LineItem, Totals, error) {
	if taxPercent.IsNegative() {
		return nil, Totals{}, &FieldError{Field: "tax", Message: "must not be negative"}
	}
	if discount.IsNegative() {
		return nil, Totals{}, &FieldError{Field: "discount", Message: "must not be negative"}
	}
	if !types.Zero(c.Currency).SameCurrency(discount) {
		return nil, Totals{}, &FieldError{Field: "discount", Message: fmt.Sprintf("currency %s does not match %s", discount.Currency, c.Currency)}
	}

	out := make([]LineItem, len(items))
	subtotal := decimal.Zero
	for i, it := range items {
		field := fmt.Sprintf("line_items[%d]", i)
		switch {
		case it.Quantity.IsNegative():
			return nil, Totals{}, &FieldError{Field: field + ".quantity", Message: "must not be negative"}
		case it.Rate.IsNegative():
			return nil, Totals{}, &FieldError{Field: field + ".rate", Message: "must not be negative"}
		case !types.Zero(c.Currency).SameCurrency(it.Rate):
			return nil, Totals{}, &FieldError{Field: field + ".rate", Message: fmt.Sprintf("currency %s does not match %s", it.Rate.Currency, c.Currency)}
		}

		amount := it.Quantity.Mul(it.Rate.Minor())
		subtotal = subtotal.Add(amount)

		it.Rate = types.NewMoney(it.Rate.Amount, c.Currency)
		it.Amount = types.MoneyFromMinor(amount, c.Currency)
		out[i] = it
	}

	tax := subtotal.Mul(taxPercent).Div(hundred)
	total := types.MoneyFromMinor(subtotal.Add(tax).Sub(discount.Minor()), c.Currency)
	if c.Clamp && total.Amount < c.Floor.Amount {
		total = types.NewMoney(c.Floor.Amount, c.Currency)
	}

	return out, Totals{
		Subtotal:  types.MoneyFromMinor(subtotal, c.Currency),
		TaxAmount: types.MoneyFromMinor(tax, c.Currency),
		Total:     total,
	}, nil
}

// Apply recomputes inv in place.
func (c Calculator) Apply(inv *Invoice) error {
	items, totals, err := c.Compute(inv.LineItems, inv.TaxPercent, inv.Discount)
	if err != nil {
		return err
	}
	inv.Currency = c.Currency
	inv.LineItems = items
	inv.Discount = types.NewMoney(inv.Discount.Amount, c.Currency)
	inv.Subtotal = totals.Subtotal
	inv.TaxAmount = totals.TaxAmount
	inv.Total = totals.Total
	return nil
}
