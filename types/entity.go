package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity carries the audit timestamps embedded in every stored record.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates a new Entity stamped with now.
func NewEntity(now time.Time) Entity {
	now = now.UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}

// Hours converts whole minutes to hours, rounded half-even to places.
func Hours(minutes int64, places int32) decimal.Decimal {
	return decimal.NewFromInt(minutes).Div(decimal.NewFromInt(60)).RoundBank(places)
}
