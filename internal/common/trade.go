package common

import (
	"fmt"
	"time"
)

// Trade accounts for the two parties who matched.
type Trade struct {
	UUID        string
	Buyer       string
	Seller      string
	Asset       Asset
	Quantity    int64
	Price       int64 // Execution price, always the incoming order's limit
	BuyOrderID  uint64
	SellOrderID uint64
	Timestamp   time.Time
}

// Notional is the cash that changed hands.
func (t Trade) Notional() int64 {
	return t.Quantity * t.Price
}

func (t Trade) String() string {
	return fmt.Sprintf("%s Bought %d of %s From %s for %d USD",
		t.Buyer,
		t.Quantity,
		t.Asset,
		t.Seller,
		t.Price,
	)
}

// Fill is one party's side of an execution.
type Fill struct {
	OrderID   uint64
	Owner     string
	Side      Side
	Asset     Asset
	Quantity  int64
	Price     int64
	Timestamp time.Time
}

func (f Fill) String() string {
	return fmt.Sprintf("%v %d %s at %d USD by %s",
		f.Side,
		f.Quantity,
		f.Asset,
		f.Price,
		f.Owner,
	)
}
