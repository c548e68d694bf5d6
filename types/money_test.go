package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestMoneyDisplay(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		display string
	}{
		{"USD", USD(4900), "$49.00"},
		{"EUR", EUR(19900), "€199.00"},
		{"JPY", NewMoney(100, "JPY"), "¥100"},
		{"Negative", USD(-1250), "-$12.50"},
		{"Unknown currency", NewMoney(705, "chf"), "CHF 7.05"},
		{"Zero", Zero("USD"), "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.money.String(); got != tt.display {
				t.Errorf("String: got %s, want %s", got, tt.display)
			}
		})
	}
}

func TestMoneyFromDecimalRoundsHalfEven(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12.345", 1234},
		{"12.355", 1236},
		{"0.005", 0},
		{"0.015", 2},
		{"-1.005", -100},
		{"138", 13800},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := MoneyFromDecimal(decimal.RequireFromString(tt.in), "usd")
			if got.Amount != tt.want {
				t.Errorf("got %d, want %d", got.Amount, tt.want)
			}
		})
	}
}

func TestMoneyFromMinor(t *testing.T) {
	if got := MoneyFromMinor(decimal.RequireFromString("1234.5"), "usd"); got.Amount != 1234 {
		t.Errorf("1234.5 cents: got %d, want 1234", got.Amount)
	}
	if got := MoneyFromMinor(decimal.RequireFromString("1235.5"), "usd"); got.Amount != 1236 {
		t.Errorf("1235.5 cents: got %d, want 1236", got.Amount)
	}
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney(" 49.95 ", "USD")
	if err != nil {
		t.Fatalf("ParseMoney: %v", err)
	}
	if !m.Equal(USD(4995)) {
		t.Errorf("got %v, want $49.95", m)
	}

	if _, err := ParseMoney("abc", "usd"); err == nil {
		t.Error("expected parse error")
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		got      Money
		expected Money
	}{
		{"Add", USD(100).Add(USD(200)), USD(300)},
		{"Subtract", USD(500).Subtract(USD(200)), USD(300)},
		{"Negate", USD(100).Negate(), USD(-100)},
		{"Sum", Sum("usd", USD(100), USD(250), USD(-50)), USD(300)},
		{"Sum empty", Sum("usd"), USD(0)},
		{"Add untyped zero", USD(100).Add(Money{}), USD(100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Equal(tt.expected) {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	_ = USD(100).Add(EUR(100))
}

func TestMoneyDecimal(t *testing.T) {
	if got := USD(13800).Decimal().String(); got != "138" {
		t.Errorf("Decimal: got %s, want 138", got)
	}
	if got := USD(13800).FormatMajor(); got != "138.00" {
		t.Errorf("FormatMajor: got %s, want 138.00", got)
	}
}

func TestMoneyMarshalJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatal(err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["display"] != "$49.00" {
		t.Errorf("display: got %v", out["display"])
	}
	if out["amount"] != float64(4900) {
		t.Errorf("amount: got %v", out["amount"])
	}
}

func TestHours(t *testing.T) {
	tests := []struct {
		minutes int64
		places  int32
		want    string
	}{
		{90, 2, "1.5"},
		{100, 2, "1.67"},
		{100, 1, "1.7"},
		{0, 1, "0"},
	}
	for _, tt := range tests {
		if got := Hours(tt.minutes, tt.places).String(); got != tt.want {
			t.Errorf("Hours(%d, %d): got %s, want %s", tt.minutes, tt.places, got, tt.want)
		}
	}
}
