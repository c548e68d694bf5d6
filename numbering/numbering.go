// Package numbering issues human-readable invoice numbers from an atomic
// counter.
package numbering

import (
	"context"
	"fmt"
	"log/slog"
)

// DefaultSequence is the counter name used for invoice numbers.
const DefaultSequence = "invoice_number"

// Sequence is an atomic counter. Next increments and returns the new value.
// Release decrements the counter only if its current value is still n, and
// reports whether it did.
type Sequence interface {
	NextSequence(ctx context.Context, name string) (int64, error)
	ReleaseSequence(ctx context.Context, name string, n int64) (bool, error)
}

// Authority formats sequence values as invoice numbers such as INV-00001.
type Authority struct {
	seq    Sequence
	name   string
	prefix string
	width  int
	logger *slog.Logger
}

// Option configures an Authority.
type Option func(*Authority)

// WithPrefix sets the number prefix. Defaults to "INV-".
func WithPrefix(prefix string) Option {
	return func(a *Authority) { a.prefix = prefix }
}

// WithWidth sets the zero padded digit count. Defaults to 5.
func WithWidth(width int) Option {
	return func(a *Authority) { a.width = width }
}

// WithName selects the counter. Defaults to DefaultSequence.
func WithName(name string) Option {
	return func(a *Authority) { a.name = name }
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authority) { a.logger = logger }
}

func New(seq Sequence, opts ...Option) *Authority {
	a := &Authority{
		seq:    seq,
		name:   DefaultSequence,
		prefix: "INV-",
		width:  5,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Number is an issued invoice number.
type Number struct {
	Value int64
	Text  string
}

// Next issues the next number. Numbers are unique and strictly increasing
// across concurrent callers.
func (a *Authority) Next(ctx context.Context) (Number, error) {
	n, err := a.seq.NextSequence(ctx, a.name)
	if err != nil {
		return Number{}, fmt.Errorf("numbering: next %s: %w", a.name, err)
	}
	return Number{Value: n, Text: a.Format(n)}, nil
}

// Release hands back a number whose invoice was never stored. When a later
// number has already been issued the gap stays and is logged.
func (a *Authority) Release(ctx context.Context, num Number) {
	ok, err := a.seq.ReleaseSequence(ctx, a.name, num.Value)
	switch {
	case err != nil:
		a.logger.Warn("invoice number gap: release failed",
			"number", num.Text,
			"error", err,
		)
	case !ok:
		a.logger.Warn("invoice number gap: later number already issued",
			"number", num.Text,
		)
	}
}

// Format renders n with the authority's prefix, zero padded to the width.
// Values wider than the width are rendered in full.
func (a *Authority) Format(n int64) string {
	return fmt.Sprintf("%s%0*d", a.prefix, a.width, n)
}
