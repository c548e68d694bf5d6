// Package id defines the TypeID identifiers used by every Tally entity.
//
// All entities share one ID type; the prefix ("cli", "inv", ...) tells them
// apart. IDs are UUIDv7 based, so they sort by creation time.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the entity type encoded in a TypeID.
type Prefix string

const (
	PrefixClient      Prefix = "cli"
	PrefixProject     Prefix = "proj"
	PrefixInvoice     Prefix = "inv"
	PrefixLineItem    Prefix = "li"
	PrefixTimeEntry   Prefix = "te"
	PrefixPayment     Prefix = "pay"
	PrefixSyncFailure Prefix = "asf" // aggregate sync failure
)

// Known reports whether p is one of the prefixes above.
func (p Prefix) Known() bool {
	switch p {
	case PrefixClient, PrefixProject, PrefixInvoice, PrefixLineItem,
		PrefixTimeEntry, PrefixPayment, PrefixSyncFailure:
		return true
	}
	return false
}

// ID is a prefix-qualified identifier such as
// "inv_01h455vb4pex5vsknk084sn02q". The zero value is Nil.
//
//nolint:recvcheck // UnmarshalText and Scan need pointer receivers.
type ID struct {
	tid typeid.TypeID
	set bool
}

// Nil is the zero-value ID. It marshals as "" and stores as NULL.
var Nil ID

// Entity aliases. They document which prefix a field carries; the type
// system does not enforce it.
type (
	ClientID      = ID
	ProjectID     = ID
	InvoiceID     = ID
	LineItemID    = ID
	TimeEntryID   = ID
	PaymentID     = ID
	SyncFailureID = ID
)

// New generates an ID with prefix. An invalid prefix is a programming
// error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: generate %q: %v", prefix, err))
	}
	return ID{tid: tid, set: true}
}

func NewClientID() ID      { return New(PrefixClient) }
func NewProjectID() ID     { return New(PrefixProject) }
func NewInvoiceID() ID     { return New(PrefixInvoice) }
func NewLineItemID() ID    { return New(PrefixLineItem) }
func NewTimeEntryID() ID   { return New(PrefixTimeEntry) }
func NewPaymentID() ID     { return New(PrefixPayment) }
func NewSyncFailureID() ID { return New(PrefixSyncFailure) }

// Parse parses any TypeID string. Empty input is an error; use
// ParseOptional for nullable references.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse: empty string")
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{tid: tid, set: true}, nil
}

// ParseWithPrefix parses s and requires the expected prefix.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != expected {
		return Nil, fmt.Errorf("id: %q: expected prefix %q, got %q", s, expected, got)
	}
	return parsed, nil
}

// ParseOptional is ParseWithPrefix that maps "" to Nil, for optional
// foreign keys such as an invoice's project.
func ParseOptional(s string, expected Prefix) (ID, error) {
	if s == "" {
		return Nil, nil
	}
	return ParseWithPrefix(s, expected)
}

// MustParse is Parse that panics, for fixtures and constants.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func ParseClientID(s string) (ID, error)      { return ParseWithPrefix(s, PrefixClient) }
func ParseProjectID(s string) (ID, error)     { return ParseWithPrefix(s, PrefixProject) }
func ParseInvoiceID(s string) (ID, error)     { return ParseWithPrefix(s, PrefixInvoice) }
func ParseLineItemID(s string) (ID, error)    { return ParseWithPrefix(s, PrefixLineItem) }
func ParseTimeEntryID(s string) (ID, error)   { return ParseWithPrefix(s, PrefixTimeEntry) }
func ParsePaymentID(s string) (ID, error)     { return ParseWithPrefix(s, PrefixPayment) }
func ParseSyncFailureID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSyncFailure) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.set {
		return ""
	}
	return i.tid.String()
}

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.set {
		return ""
	}
	return Prefix(i.tid.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool { return !i.set }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Empty input yields Nil.
func (i *ID) UnmarshalText(data []byte) error {
	return i.setFrom(string(data))
}

// Value implements driver.Valuer. Nil stores as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.set {
		return nil, nil //nolint:nilnil // NULL column
	}
	return i.tid.String(), nil
}

// Scan implements sql.Scanner. NULL and "" scan as Nil.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.setFrom(v)
	case []byte:
		return i.setFrom(string(v))
	}
	return fmt.Errorf("id: cannot scan %T into ID", src)
}

func (i *ID) setFrom(s string) error {
	if s == "" {
		*i = Nil
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
