package tally

import "github.com/xraph/tally/types"

// Re-export common types for convenience so users don't have to import types package.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Re-export Money constructors
var (
	USD        = types.USD
	EUR        = types.EUR
	NewMoney   = types.NewMoney
	ParseMoney = types.ParseMoney
	Zero       = types.Zero
	Sum        = types.Sum
)

// Hours converts whole minutes to decimal hours.
var Hours = types.Hours
