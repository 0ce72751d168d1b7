package common

import (
	"fmt"
	"time"
)

type Order struct {
	ID        uint64    // Monotonic engine sequence, defines chronology
	UUID      string    // External reference
	Owner     string    // Who owns this order
	Side      Side      // Order side
	Asset     Asset     // Traded asset
	Price     int64     // Limit price in cash units
	Quantity  int64     // Total quantity requested
	Remaining int64     // Unfilled quantity
	Timestamp time.Time // Time of arrival into the engine
}

// Filled reports whether nothing remains to trade.
func (order Order) Filled() bool {
	return order.Remaining == 0
}

// Cost is the cash needed to cover the remaining quantity at the limit price.
func (order Order) Cost() int64 {
	return order.Remaining * order.Price
}

// String renders the order the way the venue lists it,
// e.g. "Buy 10 AAPL at 100 USD by alice".
func (order Order) String() string {
	return fmt.Sprintf("%v %d %s at %d USD by %s",
		order.Side,
		order.Remaining,
		order.Asset,
		order.Price,
		order.Owner,
	)
}
