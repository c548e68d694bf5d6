package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/tally/id"
)

var kinds = []struct {
	prefix id.Prefix
	newFn  func() id.ID
	parse  func(string) (id.ID, error)
}{
	{id.PrefixClient, id.NewClientID, id.ParseClientID},
	{id.PrefixProject, id.NewProjectID, id.ParseProjectID},
	{id.PrefixInvoice, id.NewInvoiceID, id.ParseInvoiceID},
	{id.PrefixLineItem, id.NewLineItemID, id.ParseLineItemID},
	{id.PrefixTimeEntry, id.NewTimeEntryID, id.ParseTimeEntryID},
	{id.PrefixPayment, id.NewPaymentID, id.ParsePaymentID},
	{id.PrefixSyncFailure, id.NewSyncFailureID, id.ParseSyncFailureID},
}

func TestKinds(t *testing.T) {
	for i, k := range kinds {
		t.Run(string(k.prefix), func(t *testing.T) {
			if !k.prefix.Known() {
				t.Errorf("%q should be known", k.prefix)
			}

			v := k.newFn()
			if !strings.HasPrefix(v.String(), string(k.prefix)+"_") || v.Prefix() != k.prefix {
				t.Fatalf("generated %q for prefix %q", v, k.prefix)
			}

			parsed, err := k.parse(v.String())
			if err != nil {
				t.Fatalf("parse own id: %v", err)
			}
			if parsed != v {
				t.Errorf("parsed %q, want %q", parsed, v)
			}

			other := kinds[(i+1)%len(kinds)].newFn()
			if _, err := k.parse(other.String()); err == nil {
				t.Errorf("accepted foreign id %q", other)
			}
		})
	}
}

func TestUnknownPrefix(t *testing.T) {
	if id.Prefix("usr").Known() {
		t.Error("usr is not a ledger prefix")
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "not an id", "cli_"} {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestParseOptional(t *testing.T) {
	got, err := id.ParseOptional("", id.PrefixProject)
	if err != nil || !got.IsNil() {
		t.Fatalf("empty input: got %q, %v", got, err)
	}

	p := id.NewProjectID()
	got, err = id.ParseOptional(p.String(), id.PrefixProject)
	if err != nil || got != p {
		t.Fatalf("got %q, %v; want %q", got, err, p)
	}

	if _, err := id.ParseOptional(p.String(), id.PrefixClient); err == nil {
		t.Error("expected prefix mismatch error")
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse of garbage should panic")
		}
	}()
	id.MustParse("garbage")
}

func TestNil(t *testing.T) {
	var zero id.ID
	if !zero.IsNil() || zero != id.Nil || zero.String() != "" || zero.Prefix() != "" {
		t.Errorf("zero value is not Nil: %#v", zero)
	}
}

func TestTextEncoding(t *testing.T) {
	for _, in := range []id.ID{id.NewInvoiceID(), id.Nil} {
		data, err := in.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var out id.ID
		if err := out.UnmarshalText(data); err != nil {
			t.Fatal(err)
		}
		if out != in {
			t.Errorf("text round trip: got %q, want %q", out, in)
		}
	}
}

func TestSQL(t *testing.T) {
	te := id.NewTimeEntryID()

	val, err := te.Value()
	if err != nil {
		t.Fatal(err)
	}
	if nilVal, _ := id.Nil.Value(); nilVal != nil {
		t.Errorf("Nil should store as NULL, got %v", nilVal)
	}

	tests := []struct {
		name string
		src  any
		want id.ID
	}{
		{"string", val, te},
		{"bytes", []byte(te.String()), te},
		{"null", nil, id.Nil},
		{"empty", "", id.Nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got id.ID
			if err := got.Scan(tt.src); err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("scanning an int should fail")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[id.ID]bool)
	for range 100 {
		v := id.NewClientID()
		if seen[v] {
			t.Fatalf("duplicate id %q", v)
		}
		seen[v] = true
	}
}
