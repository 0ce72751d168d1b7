package engine

import (
	. "bourse/internal/common"

	"github.com/tidwall/btree"
)

type PriceLevel struct {
	priceLevel int64
	orders     []*Order
}

type PriceLevels = btree.BTreeG[*PriceLevel]

// OrderBook holds the resting orders of a single asset. The orders tree,
// keyed by order ID, owns every resting order and is the chronological view.
// The bid and ask price levels index the same *Order values, so a quantity
// change is visible through every view at once; insertion and removal go
// through Insert and Remove, which update all indices together.
//
// OrderBook is not safe for concurrent use, the engine serialises access per
// asset.
type OrderBook struct {
	asset Asset

	// Resting orders sorted by ID (time of arrival).
	orders *btree.BTreeG[*Order]

	// Price levels to orders sat on the price level, sorted by time added
	// as they will be push-back'd.
	bids *PriceLevels
	asks *PriceLevels

	// Some book keeping
	nBuyOrders   int   // Track the number of bids in the book.
	nSellOrders  int   // Track the number of asks in the book.
	buyQuantity  int64 // Track the bid-side liquidity of the book.
	sellQuantity int64 // Track the ask-side liquidity of the book.
}

func NewOrderBook(asset Asset) *OrderBook {
	orders := btree.NewBTreeG(func(a, b *Order) bool {
		return a.ID < b.ID
	})
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.priceLevel > b.priceLevel
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.priceLevel < b.priceLevel
	})
	return &OrderBook{
		asset:  asset,
		orders: orders,
		bids:   bids,
		asks:   asks,
	}
}

func (book *OrderBook) levels(side Side) *PriceLevels {
	if side == Buy {
		return book.bids
	}
	return book.asks
}

// Insert rests an order at its limit price, behind every order already on
// that level.
func (book *OrderBook) Insert(order *Order) {
	book.orders.Set(order)

	levels := book.levels(order.Side)
	// Levels comparator only accounts for price levels, so we create a dummy
	// price level for the search.
	level, ok := levels.GetMut(&PriceLevel{priceLevel: order.Price})
	if ok {
		level.orders = append(level.orders, order)
	} else {
		levels.Set(&PriceLevel{
			priceLevel: order.Price,
			orders:     []*Order{order},
		})
	}

	switch order.Side {
	case Buy:
		book.nBuyOrders++
		book.buyQuantity += order.Remaining
	case Sell:
		book.nSellOrders++
		book.sellQuantity += order.Remaining
	}
}

// Remove lifts an order out of every view. It reports false if the order is
// not resting in this book.
func (book *OrderBook) Remove(order *Order) bool {
	if _, ok := book.orders.Delete(order); !ok {
		return false
	}

	levels := book.levels(order.Side)
	if level, ok := levels.GetMut(&PriceLevel{priceLevel: order.Price}); ok {
		for i, resting := range level.orders {
			if resting.ID == order.ID {
				level.orders = append(level.orders[:i], level.orders[i+1:]...)
				break
			}
		}
		// Full consumption cases (i.e. empty levels).
		if len(level.orders) == 0 {
			levels.Delete(level)
		}
	}

	switch order.Side {
	case Buy:
		book.nBuyOrders--
		book.buyQuantity -= order.Remaining
	case Sell:
		book.nSellOrders--
		book.sellQuantity -= order.Remaining
	}
	return true
}

// Reduce takes qty off a resting order, removing it once nothing remains.
func (book *OrderBook) Reduce(order *Order, qty int64) {
	qty = min(qty, order.Remaining)
	order.Remaining -= qty

	switch order.Side {
	case Buy:
		book.buyQuantity -= qty
	case Sell:
		book.sellQuantity -= qty
	}

	if order.Filled() {
		book.Remove(order)
	}
}

// BestCounter finds the resting order an incoming order would trade with:
// the lowest ask priced at or below a buy's limit, or the highest bid priced
// at or above a sell's limit. Within the level the earliest order wins.
func (book *OrderBook) BestCounter(order *Order) *Order {
	level, ok := book.levels(order.Side.Opposite()).Min()
	if !ok || len(level.orders) == 0 {
		return nil
	}

	switch order.Side {
	case Buy:
		if level.priceLevel > order.Price {
			return nil
		}
	case Sell:
		if level.priceLevel < order.Price {
			return nil
		}
	}
	return level.orders[0]
}

// BestBid is the highest resting buy price.
func (book *OrderBook) BestBid() (int64, bool) {
	level, ok := book.bids.Min()
	if !ok {
		return 0, false
	}
	return level.priceLevel, true
}

// BestAsk is the lowest resting sell price.
func (book *OrderBook) BestAsk() (int64, bool) {
	level, ok := book.asks.Min()
	if !ok {
		return 0, false
	}
	return level.priceLevel, true
}

// Orders copies the resting orders out in chronological order.
func (book *OrderBook) Orders() []Order {
	orders := make([]Order, 0, book.orders.Len())
	book.orders.Scan(func(order *Order) bool {
		orders = append(orders, *order)
		return true
	})
	return orders
}

// Count is the number of resting orders on one side.
func (book *OrderBook) Count(side Side) int {
	if side == Buy {
		return book.nBuyOrders
	}
	return book.nSellOrders
}

// Depth is the resting quantity on one side.
func (book *OrderBook) Depth(side Side) int64 {
	if side == Buy {
		return book.buyQuantity
	}
	return book.sellQuantity
}

// FlatPriceLevel is a copy of a price level, used to inspect the book.
type FlatPriceLevel struct {
	PriceLevel int64
	Orders     []Order
}

// Bids flattens the bid side, best price first.
func (book *OrderBook) Bids() []FlatPriceLevel {
	return FlattenLevels(book.bids.Items())
}

// Asks flattens the ask side, best price first.
func (book *OrderBook) Asks() []FlatPriceLevel {
	return FlattenLevels(book.asks.Items())
}

func FlattenLevels(levels []*PriceLevel) []FlatPriceLevel {
	flat := make([]FlatPriceLevel, 0, len(levels))
	for _, level := range levels {
		orders := make([]Order, len(level.orders))
		for i, order := range level.orders {
			orders[i] = *order
		}
		flat = append(flat, FlatPriceLevel{
			PriceLevel: level.priceLevel,
			Orders:     orders,
		})
	}
	return flat
}
