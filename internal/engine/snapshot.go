package engine

import (
	"sort"

	. "bourse/internal/common"
)

// Quote is the top of one asset's book, with the resting quantity per side.
type Quote struct {
	Asset    Asset
	Bid      int64
	HasBid   bool
	BidDepth int64
	Ask      int64
	HasAsk   bool
	AskDepth int64
}

// Snapshot is a consistent, read-only copy of the venue's state.
type Snapshot struct {
	Balances   map[string]map[Asset]int64 // Zero balances omitted.
	Users      []string                   // Every user the ledger has seen, sorted.
	OpenOrders []Order                    // Resting orders, chronological.
	ByAsset    map[Asset][]Order          // Resting orders per asset, chronological.
	Quotes     []Quote                    // One per active asset, alphabetical.
	Trades     []Trade
	Fills      []Fill
}

// Snapshot copies the whole venue. Every market is locked while copying, so
// no execution is observed half-way.
func (engine *Engine) Snapshot() Snapshot {
	markets := engine.sortedMarkets()
	for _, mkt := range markets {
		mkt.Lock()
	}
	defer func() {
		for _, mkt := range markets {
			mkt.Unlock()
		}
	}()

	snapshot := Snapshot{
		Balances: engine.ledger.Snapshot(),
		Users:    engine.ledger.Users(),
		ByAsset:  make(map[Asset][]Order),
		Trades:   engine.log.Trades(),
		Fills:    engine.log.Fills(),
	}
	for _, mkt := range markets {
		if !mkt.active {
			continue
		}
		orders := mkt.book.Orders()
		snapshot.ByAsset[mkt.book.asset] = orders
		snapshot.OpenOrders = append(snapshot.OpenOrders, orders...)
		snapshot.Quotes = append(snapshot.Quotes, quoteOf(mkt.book))
	}
	sortChronological(snapshot.OpenOrders)

	return snapshot
}

// OpenOrders lists every resting order across assets in arrival order.
func (engine *Engine) OpenOrders() []Order {
	var orders []Order
	for _, mkt := range engine.sortedMarkets() {
		mkt.Lock()
		orders = append(orders, mkt.book.Orders()...)
		mkt.Unlock()
	}
	sortChronological(orders)
	return orders
}

// OpenOrdersByAsset groups resting orders by asset, each group in arrival
// order.
func (engine *Engine) OpenOrdersByAsset() map[Asset][]Order {
	grouped := make(map[Asset][]Order)
	for _, mkt := range engine.sortedMarkets() {
		mkt.Lock()
		if mkt.active {
			grouped[mkt.book.asset] = mkt.book.Orders()
		}
		mkt.Unlock()
	}
	return grouped
}

// Quotes returns the best bid and ask of every active asset, alphabetically.
func (engine *Engine) Quotes() []Quote {
	var quotes []Quote
	for _, mkt := range engine.sortedMarkets() {
		mkt.Lock()
		if mkt.active {
			quotes = append(quotes, quoteOf(mkt.book))
		}
		mkt.Unlock()
	}
	return quotes
}

// Book calls fn with the asset's book locked. It reports false if the asset
// has never traded.
func (engine *Engine) Book(asset Asset, fn func(book *OrderBook)) bool {
	engine.marketsLock.RLock()
	mkt, ok := engine.markets[asset]
	engine.marketsLock.RUnlock()
	if !ok {
		return false
	}

	mkt.Lock()
	defer mkt.Unlock()
	fn(mkt.book)
	return true
}

func (engine *Engine) Balance(user string, asset Asset) int64 {
	return engine.ledger.Balance(user, asset)
}

func (engine *Engine) Balances() map[string]map[Asset]int64 {
	return engine.ledger.Snapshot()
}

// Supply is everything the venue holds of an asset: balances plus what
// resting orders have reserved.
func (engine *Engine) Supply(asset Asset) int64 {
	return engine.ledger.Total(asset)
}

func (engine *Engine) Users() []string {
	return engine.ledger.Users()
}

func (engine *Engine) Trades() []Trade {
	return engine.log.Trades()
}

func (engine *Engine) Fills() []Fill {
	return engine.log.Fills()
}

func (engine *Engine) TradesFor(user string) []Trade {
	return engine.log.TradesFor(user)
}

func (engine *Engine) FillsFor(user string) []Fill {
	return engine.log.FillsFor(user)
}

func quoteOf(book *OrderBook) Quote {
	quote := Quote{Asset: book.asset}
	quote.Bid, quote.HasBid = book.BestBid()
	quote.Ask, quote.HasAsk = book.BestAsk()
	quote.BidDepth = book.Depth(Buy)
	quote.AskDepth = book.Depth(Sell)
	return quote
}

func sortChronological(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].ID < orders[j].ID
	})
}

// Reserved is the amount of asset locked in resting orders: the remaining
// quantity of sells for a traded asset, remaining*price of buys for cash.
func (s Snapshot) Reserved(asset, cash Asset) int64 {
	var reserved int64
	for _, order := range s.OpenOrders {
		switch {
		case asset == cash && order.Side == Buy:
			reserved += order.Cost()
		case order.Asset == asset && order.Side == Sell:
			reserved += order.Remaining
		}
	}
	return reserved
}

// Supply is everything held of an asset: balances plus reservations.
func (s Snapshot) Supply(asset, cash Asset) int64 {
	supply := s.Reserved(asset, cash)
	for _, holdings := range s.Balances {
		supply += holdings[asset]
	}
	return supply
}
