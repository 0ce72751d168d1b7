package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "bourse/internal/common"
	"bourse/internal/history"
	"bourse/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// This is the main matching engine. It owns the ledger, one order book per
// asset and the execution log; all mutation goes through its methods.

// market pairs a book with the lock that serialises matching on its asset.
type market struct {
	sync.Mutex
	book   *OrderBook
	active bool // Set once an order has been accepted, or for supported assets.
}

type Engine struct {
	cash      Asset
	supported map[Asset]struct{} // Empty means any valid asset may trade.

	ledger   *ledger.Ledger
	log      *history.Log
	reporter Reporter
	seq      atomic.Uint64

	marketsLock sync.RWMutex
	markets     map[Asset]*market
}

// New creates an engine settling in the given cash asset. If supported
// assets are given, orders are only accepted for those assets and their
// books exist from the start.
func New(cash Asset, supportedAssets ...Asset) *Engine {
	engine := &Engine{
		cash:      cash,
		supported: make(map[Asset]struct{}),
		ledger:    ledger.New(),
		log:       history.New(),
		reporter:  LogReporter{},
		markets:   make(map[Asset]*market),
	}

	for _, asset := range supportedAssets {
		engine.supported[asset] = struct{}{}
		engine.markets[asset] = &market{book: NewOrderBook(asset), active: true}
	}

	return engine
}

// SetReporter replaces the trade and rejection reporter.
func (engine *Engine) SetReporter(reporter Reporter) {
	engine.reporter = reporter
}

func (engine *Engine) CashAsset() Asset {
	return engine.cash
}

// Deposit credits a user's holding of any asset, cash included.
func (engine *Engine) Deposit(user string, asset Asset, amount int64) error {
	if err := validUser(user); err != nil {
		return err
	}
	if err := validAsset(asset); err != nil {
		return err
	}
	return engine.ledger.Deposit(user, asset, amount)
}

// Withdraw debits a user's holding. Funds locked in resting orders are not
// available.
func (engine *Engine) Withdraw(user string, asset Asset, amount int64) error {
	if err := validUser(user); err != nil {
		return err
	}
	if err := validAsset(asset); err != nil {
		return err
	}
	return engine.ledger.Withdraw(user, asset, amount)
}

// Result describes what happened to a submitted order.
type Result struct {
	Order  Order   // The order as it stands after matching.
	Trades []Trade // Executions, in order.
}

// Resting reports whether part of the order is left on the book.
func (r Result) Resting() bool {
	return r.Order.Remaining > 0
}

// SubmitOrder places a limit order which can either (fully or partially):
// 1. Execute immediately
// 2. Rest in the book
//
// The order's cost is reserved up front: quantity*price of cash for a buy,
// quantity of the asset for a sell. A rejected order leaves every balance,
// book and log untouched.
func (engine *Engine) SubmitOrder(user string, side Side, asset Asset, quantity, price int64) (Result, error) {
	order := Order{
		UUID:      uuid.NewString(),
		Owner:     user,
		Side:      side,
		Asset:     asset,
		Price:     price,
		Quantity:  quantity,
		Remaining: quantity,
		Timestamp: time.Now(),
	}

	if err := engine.validateOrder(order); err != nil {
		engine.reject(order, err)
		return Result{Order: order}, err
	}

	mkt := engine.market(asset)
	mkt.Lock()
	defer mkt.Unlock()

	if err := engine.reserve(order); err != nil {
		engine.reject(order, err)
		return Result{Order: order}, err
	}

	// IDs are handed out under the market lock so that chronology within a
	// book follows arrival.
	order.ID = engine.seq.Add(1)
	mkt.active = true
	resting := &order
	mkt.book.Insert(resting)

	trades := engine.match(mkt.book, resting, mkt.book.Count(side.Opposite())+1)

	log.Debug().
		Uint64("id", order.ID).
		Str("owner", user).
		Str("side", side.String()).
		Str("asset", asset.String()).
		Int64("quantity", quantity).
		Int64("price", price).
		Int("trades", len(trades)).
		Int64("remaining", resting.Remaining).
		Msg("order processed")

	return Result{Order: *resting, Trades: trades}, nil
}

func (engine *Engine) validateOrder(order Order) error {
	if err := validUser(order.Owner); err != nil {
		return err
	}
	if err := validAsset(order.Asset); err != nil {
		return err
	}
	if order.Asset == engine.cash {
		return fmt.Errorf("%s is the cash asset: %w", order.Asset, ErrInvalidAsset)
	}
	if len(engine.supported) > 0 {
		if _, ok := engine.supported[order.Asset]; !ok {
			return fmt.Errorf("%s is not traded: %w", order.Asset, ErrInvalidAsset)
		}
	}
	if order.Side != Buy && order.Side != Sell {
		return ErrInvalidSide
	}
	if order.Quantity <= 0 || order.Price <= 0 {
		return fmt.Errorf("quantity %d at price %d: %w", order.Quantity, order.Price, ErrInvalidAmount)
	}
	if order.Quantity > math.MaxInt64/order.Price {
		return fmt.Errorf("quantity %d at price %d overflows: %w", order.Quantity, order.Price, ErrInvalidAmount)
	}
	return nil
}

// reserve locks what the order may need to settle: cash for a buy, the asset
// for a sell. A resting order can therefore always be honoured.
func (engine *Engine) reserve(order Order) error {
	var err error
	switch order.Side {
	case Buy:
		err = engine.ledger.Debit(order.Owner, engine.cash, order.Cost())
	case Sell:
		err = engine.ledger.Debit(order.Owner, order.Asset, order.Remaining)
	}
	if err != nil {
		return fmt.Errorf("reserve for %v %d %s at %d: %w",
			order.Side, order.Quantity, order.Asset, order.Price, err)
	}
	return nil
}

// match trades the incoming order against the best compatible resting order
// until it is filled or nothing compatible is left. Each pass re-selects the
// best counter order, so the remainder can reach further price levels, but
// every execution happens at the incoming order's limit price.
//
// Every pass that leaves a remainder fully consumes one resting order, so
// SubmitOrder passes the opposite side's size plus one as maxPasses. Once the
// bound is hit the remainder rests.
func (engine *Engine) match(book *OrderBook, order *Order, maxPasses int) []Trade {
	var trades []Trade

	for pass := 0; !order.Filled(); pass++ {
		if pass >= maxPasses {
			log.Error().
				Uint64("id", order.ID).
				Int("passes", pass).
				Msg("match pass limit reached, resting remainder")
			break
		}

		counter := book.BestCounter(order)
		if counter == nil {
			break
		}

		quantity := min(order.Remaining, counter.Remaining)
		trade := engine.settle(order, counter, quantity)

		book.Reduce(counter, quantity)
		book.Reduce(order, quantity)

		trades = append(trades, trade)
	}

	return trades
}

// settle moves balances for one execution and records it. Both orders had
// their side reserved on entry, so only credits happen here.
func (engine *Engine) settle(taker, maker *Order, quantity int64) Trade {
	price := taker.Price

	buy, sell := taker, maker
	if taker.Side == Sell {
		buy, sell = maker, taker
	}

	now := time.Now()
	trade := Trade{
		UUID:        uuid.NewString(),
		Buyer:       buy.Owner,
		Seller:      sell.Owner,
		Asset:       taker.Asset,
		Quantity:    quantity,
		Price:       price,
		BuyOrderID:  buy.ID,
		SellOrderID: sell.ID,
		Timestamp:   now,
	}

	engine.ledger.Credit(buy.Owner, buy.Asset, quantity)
	engine.ledger.Credit(sell.Owner, engine.cash, trade.Notional())
	// A resting buy reserved at its own, higher, limit.
	if refund := quantity * (buy.Price - price); refund > 0 {
		engine.ledger.Credit(buy.Owner, engine.cash, refund)
	}

	engine.log.AppendTrade(trade)
	engine.log.AppendFill(fillOf(maker, quantity, price, now), fillOf(taker, quantity, price, now))

	if err := engine.reporter.ReportTrade(trade); err != nil {
		log.Error().Err(err).Str("trade", trade.UUID).Msg("unable to report trade")
	}
	return trade
}

func fillOf(order *Order, quantity, price int64, at time.Time) Fill {
	return Fill{
		OrderID:   order.ID,
		Owner:     order.Owner,
		Side:      order.Side,
		Asset:     order.Asset,
		Quantity:  quantity,
		Price:     price,
		Timestamp: at,
	}
}

func (engine *Engine) reject(order Order, cause error) {
	if err := engine.reporter.ReportRejection(order, cause); err != nil {
		log.Error().Err(err).Msg("unable to report rejection")
	}
}

// market returns the asset's market, creating it on first use.
func (engine *Engine) market(asset Asset) *market {
	engine.marketsLock.RLock()
	mkt, ok := engine.markets[asset]
	engine.marketsLock.RUnlock()
	if ok {
		return mkt
	}

	engine.marketsLock.Lock()
	defer engine.marketsLock.Unlock()
	if mkt, ok = engine.markets[asset]; !ok {
		mkt = &market{book: NewOrderBook(asset)}
		engine.markets[asset] = mkt
	}
	return mkt
}

// sortedMarkets lists the markets in asset order.
func (engine *Engine) sortedMarkets() []*market {
	engine.marketsLock.RLock()
	defer engine.marketsLock.RUnlock()

	markets := make([]*market, 0, len(engine.markets))
	for _, mkt := range engine.markets {
		markets = append(markets, mkt)
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].book.asset < markets[j].book.asset
	})
	return markets
}

func validUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return ErrInvalidUser
	}
	return nil
}

func validAsset(asset Asset) error {
	parsed, err := ParseAsset(string(asset))
	if err != nil || parsed != asset {
		return fmt.Errorf("%q: %w", string(asset), ErrInvalidAsset)
	}
	return nil
}
