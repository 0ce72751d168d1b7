package engine

import (
	"math"
	"sync"
	"testing"

	. "bourse/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

type recordingReporter struct {
	mu         sync.Mutex
	trades     []Trade
	rejections []error
}

func (r *recordingReporter) ReportTrade(trade Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, trade)
	return nil
}

func (r *recordingReporter) ReportRejection(order Order, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejections = append(r.rejections, err)
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *recordingReporter) {
	t.Helper()
	eng := New(USD)
	reporter := &recordingReporter{}
	eng.SetReporter(reporter)
	return eng, reporter
}

func fund(t *testing.T, eng *Engine, user string, asset Asset, amount int64) {
	t.Helper()
	require.NoError(t, eng.Deposit(user, asset, amount))
}

func submit(t *testing.T, eng *Engine, user string, side Side, asset Asset, quantity, price int64) Result {
	t.Helper()
	res, err := eng.SubmitOrder(user, side, asset, quantity, price)
	require.NoError(t, err)
	return res
}

func assertConserved(t *testing.T, eng *Engine, supply map[Asset]int64) {
	t.Helper()
	snap := eng.Snapshot()
	for asset, want := range supply {
		assert.Equal(t, want, snap.Supply(asset, USD), "supply of %s", asset)
		assert.Equal(t, want, eng.Supply(asset), "ledger supply of %s", asset)
	}
}

// --- Tests ------------------------------------------------------------------

func TestSubmitOrder_ReservesCashForBuy(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, 1000)

	res := submit(t, eng, "alice", Buy, "AAPL", 3, 100)

	assert.True(t, res.Resting())
	assert.Empty(t, res.Trades)
	assert.Equal(t, int64(700), eng.Balance("alice", USD))
}

func TestSubmitOrder_ReservesAssetForSell(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "bob", "AAPL", 10)

	submit(t, eng, "bob", Sell, "AAPL", 4, 100)

	assert.Equal(t, int64(6), eng.Balance("bob", "AAPL"))
	assert.ErrorIs(t, eng.Withdraw("bob", "AAPL", 7), ErrInsufficientFunds, "reserved units cannot be withdrawn")
}

func TestSubmitOrder_InsufficientFundsLeavesStateUnchanged(t *testing.T) {
	eng, reporter := newTestEngine(t)
	fund(t, eng, "alice", USD, 99)
	fund(t, eng, "bob", "AAPL", 1)
	submit(t, eng, "bob", Sell, "AAPL", 1, 150)

	before := eng.Snapshot()

	_, err := eng.SubmitOrder("alice", Buy, "AAPL", 1, 100)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = eng.SubmitOrder("bob", Sell, "AAPL", 1, 100)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	_, err = eng.SubmitOrder("carol", Sell, "MSFT", 1, 100)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, before, eng.Snapshot())
	assert.Len(t, reporter.rejections, 3)
}

func TestSubmitOrder_InvalidInput(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, 1000)

	tests := []struct {
		name     string
		user     string
		side     Side
		asset    Asset
		quantity int64
		price    int64
		err      error
	}{
		{"zero quantity", "alice", Buy, "AAPL", 0, 10, ErrInvalidAmount},
		{"negative quantity", "alice", Buy, "AAPL", -1, 10, ErrInvalidAmount},
		{"zero price", "alice", Buy, "AAPL", 1, 0, ErrInvalidAmount},
		{"overflow", "alice", Buy, "AAPL", math.MaxInt64, 2, ErrInvalidAmount},
		{"cash asset", "alice", Buy, USD, 1, 1, ErrInvalidAsset},
		{"bad symbol", "alice", Buy, "aapl", 1, 1, ErrInvalidAsset},
		{"empty user", " ", Buy, "AAPL", 1, 1, ErrInvalidUser},
		{"unknown side", "alice", Side(7), "AAPL", 1, 1, ErrInvalidSide},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.SubmitOrder(tt.user, tt.side, tt.asset, tt.quantity, tt.price)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Equal(t, int64(1000), eng.Balance("alice", USD))
	assert.Empty(t, eng.OpenOrders())
	assert.Empty(t, eng.Quotes())
}

func TestSubmitOrder_NoMatchOnlyRests(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, 1000)
	fund(t, eng, "bob", "AAPL", 10)
	submit(t, eng, "bob", Sell, "AAPL", 5, 120)

	res := submit(t, eng, "alice", Buy, "AAPL", 5, 110)

	assert.Empty(t, res.Trades)
	assert.Empty(t, eng.Trades())
	orders := eng.OpenOrders()
	require.Len(t, orders, 2)
	assert.Equal(t, res.Order.ID, orders[1].ID)
	assert.Equal(t, int64(5), orders[1].Remaining)
}

func TestSubmitOrder_PriceTimePriority(t *testing.T) {
	eng, _ := newTestEngine(t)
	for _, seller := range []string{"s1", "s2", "s3"} {
		fund(t, eng, seller, "AAPL", 1)
	}
	fund(t, eng, "buyer", USD, 1000)

	submit(t, eng, "s1", Sell, "AAPL", 1, 105)
	earliestBest := submit(t, eng, "s2", Sell, "AAPL", 1, 100)
	submit(t, eng, "s3", Sell, "AAPL", 1, 100)

	res := submit(t, eng, "buyer", Buy, "AAPL", 1, 110)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, "s2", trade.Seller)
	assert.Equal(t, earliestBest.Order.ID, trade.SellOrderID)
	// Executions happen at the incoming order's limit.
	assert.Equal(t, int64(110), trade.Price)
	assert.Equal(t, int64(110), eng.Balance("s2", USD))
	assert.Equal(t, int64(1), eng.Balance("buyer", "AAPL"))
	assert.Equal(t, int64(890), eng.Balance("buyer", USD))

	var remaining []string
	for _, order := range eng.OpenOrders() {
		remaining = append(remaining, order.Owner)
	}
	assert.Equal(t, []string{"s1", "s3"}, remaining)
}

func TestSubmitOrder_PartialFillRests(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, 1000)
	fund(t, eng, "bob", "AAPL", 4)
	submit(t, eng, "bob", Sell, "AAPL", 4, 95)

	res := submit(t, eng, "alice", Buy, "AAPL", 10, 100)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(4), res.Trades[0].Quantity)
	assert.Equal(t, int64(100), res.Trades[0].Price)
	assert.True(t, res.Resting())

	orders := eng.OpenOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, "alice", orders[0].Owner)
	assert.Equal(t, Buy, orders[0].Side)
	assert.Equal(t, int64(6), orders[0].Remaining)
	assert.Equal(t, int64(100), orders[0].Price)

	assert.Equal(t, int64(0), eng.Balance("alice", USD))
	assert.Equal(t, int64(4), eng.Balance("alice", "AAPL"))
	assert.Equal(t, int64(400), eng.Balance("bob", USD))
}

func TestSubmitOrder_PartialFillOfRestingOrder(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, 1000)
	fund(t, eng, "bob", "AAPL", 10)
	resting := submit(t, eng, "bob", Sell, "AAPL", 10, 50)

	res := submit(t, eng, "alice", Buy, "AAPL", 3, 50)

	assert.False(t, res.Resting())
	orders := eng.OpenOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, resting.Order.ID, orders[0].ID)
	assert.Equal(t, int64(7), orders[0].Remaining)
	assert.Equal(t, int64(10), orders[0].Quantity)
}

func TestSubmitOrder_SellRefundsRestingBuyer(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, 550)
	fund(t, eng, "bob", "AAPL", 5)
	submit(t, eng, "alice", Buy, "AAPL", 5, 110)

	res := submit(t, eng, "bob", Sell, "AAPL", 5, 100)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(100), res.Trades[0].Price)
	assert.Equal(t, "alice", res.Trades[0].Buyer)
	assert.Equal(t, int64(500), eng.Balance("bob", USD))
	assert.Equal(t, int64(5), eng.Balance("alice", "AAPL"))
	assert.Equal(t, int64(50), eng.Balance("alice", USD))
	assertConserved(t, eng, map[Asset]int64{USD: 550, "AAPL": 5})
}

func TestSubmitOrder_RemainderReachesNextLevel(t *testing.T) {
	eng, reporter := newTestEngine(t)
	fund(t, eng, "s1", "AAPL", 2)
	fund(t, eng, "s2", "AAPL", 2)
	fund(t, eng, "buyer", USD, 1000)
	submit(t, eng, "s2", Sell, "AAPL", 2, 101)
	submit(t, eng, "s1", Sell, "AAPL", 2, 100)

	res := submit(t, eng, "buyer", Buy, "AAPL", 5, 105)

	require.Len(t, res.Trades, 2)
	assert.Equal(t, "s1", res.Trades[0].Seller)
	assert.Equal(t, "s2", res.Trades[1].Seller)
	for _, trade := range res.Trades {
		assert.Equal(t, int64(105), trade.Price)
	}
	assert.Equal(t, int64(1), res.Order.Remaining)
	assert.Len(t, reporter.trades, 2)

	var quote Quote
	for _, q := range eng.Quotes() {
		quote = q
	}
	assert.True(t, quote.HasBid)
	assert.Equal(t, int64(105), quote.Bid)
	assert.Equal(t, int64(1), quote.BidDepth)
	assert.False(t, quote.HasAsk)
	assert.Zero(t, quote.AskDepth)
	assertConserved(t, eng, map[Asset]int64{USD: 1000, "AAPL": 4})
}

func TestSubmitOrder_RecordsFills(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, 1000)
	fund(t, eng, "bob", "AAPL", 10)
	maker := submit(t, eng, "bob", Sell, "AAPL", 10, 90)

	taker := submit(t, eng, "alice", Buy, "AAPL", 4, 100)

	fills := eng.Fills()
	require.Len(t, fills, 2)
	assert.Equal(t, maker.Order.ID, fills[0].OrderID)
	assert.Equal(t, "bob", fills[0].Owner)
	assert.Equal(t, taker.Order.ID, fills[1].OrderID)
	assert.Equal(t, "alice", fills[1].Owner)
	for _, fill := range fills {
		assert.Equal(t, int64(4), fill.Quantity)
		assert.Equal(t, int64(100), fill.Price)
	}
	assert.Len(t, eng.FillsFor("alice"), 1)
	assert.Len(t, eng.TradesFor("bob"), 1)
	assert.Empty(t, eng.TradesFor("carol"))
}

func TestSubmitOrder_DuplicateOrdersKeepIdentity(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "bob", "AAPL", 10)
	fund(t, eng, "alice", USD, 1000)
	first := submit(t, eng, "bob", Sell, "AAPL", 5, 100)
	second := submit(t, eng, "bob", Sell, "AAPL", 5, 100)
	assert.NotEqual(t, first.Order.ID, second.Order.ID)
	assert.NotEqual(t, first.Order.UUID, second.Order.UUID)

	submit(t, eng, "alice", Buy, "AAPL", 5, 100)

	orders := eng.OpenOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, second.Order.ID, orders[0].ID)
}

func TestSupportedAssets(t *testing.T) {
	eng := New(USD, "AAPL", "MSFT")
	require.NoError(t, eng.Deposit("alice", USD, 100))

	_, err := eng.SubmitOrder("alice", Buy, "TSLA", 1, 1)
	assert.ErrorIs(t, err, ErrInvalidAsset)

	quotes := eng.Quotes()
	require.Len(t, quotes, 2)
	assert.Equal(t, Asset("AAPL"), quotes[0].Asset)
	assert.Equal(t, Asset("MSFT"), quotes[1].Asset)
}

func TestDepositWithdrawThroughEngine(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", "AAPL", 5)

	require.NoError(t, eng.Deposit("alice", "AAPL", 10))
	require.NoError(t, eng.Withdraw("alice", "AAPL", 10))
	assert.Equal(t, int64(5), eng.Balance("alice", "AAPL"))

	assert.ErrorIs(t, eng.Withdraw("alice", "AAPL", 6), ErrInsufficientFunds)
	assert.ErrorIs(t, eng.Deposit("alice", "AAPL", 0), ErrInvalidAmount)
	assert.ErrorIs(t, eng.Deposit("", "AAPL", 1), ErrInvalidUser)
	assert.ErrorIs(t, eng.Deposit("alice", "a a", 1), ErrInvalidAsset)
}

func TestDeposit_SupplyLimit(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, math.MaxInt64)

	assert.ErrorIs(t, eng.Deposit("alice", USD, 1), ErrInvalidAmount)
	assert.ErrorIs(t, eng.Deposit("bob", USD, 1), ErrInvalidAmount)
	assert.Equal(t, int64(math.MaxInt64), eng.Balance("alice", USD))
	assert.Zero(t, eng.Balance("bob", USD))
}

func TestSettlement_CreditsStayWithinSupply(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "bob", USD, math.MaxInt64-10)
	fund(t, eng, "bob", "AAPL", 1)

	// The buyer cannot bring in cash that would push bob's proceeds past the
	// int64 range.
	assert.ErrorIs(t, eng.Deposit("alice", USD, 50), ErrInvalidAmount)
	fund(t, eng, "alice", USD, 10)

	submit(t, eng, "alice", Buy, "AAPL", 1, 10)
	res := submit(t, eng, "bob", Sell, "AAPL", 1, 10)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, int64(math.MaxInt64), eng.Balance("bob", USD))
	assert.Equal(t, int64(1), eng.Balance("alice", "AAPL"))
	assertConserved(t, eng, map[Asset]int64{USD: math.MaxInt64, "AAPL": 1})
}

func TestMatch_PassLimitRestsRemainder(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "bob", "AAPL", 2)
	submit(t, eng, "bob", Sell, "AAPL", 1, 100)
	submit(t, eng, "bob", Sell, "AAPL", 1, 100)

	mkt := eng.market("AAPL")
	mkt.Lock()
	defer mkt.Unlock()

	order := &Order{ID: 100, Owner: "alice", Side: Buy, Asset: "AAPL", Price: 100, Quantity: 2, Remaining: 2}
	mkt.book.Insert(order)

	trades := eng.match(mkt.book, order, 1)

	require.Len(t, trades, 1)
	assert.Equal(t, int64(1), order.Remaining)
	assert.Equal(t, 1, mkt.book.Count(Buy))
	assert.Equal(t, 1, mkt.book.Count(Sell))
	assert.Equal(t, int64(1), mkt.book.Depth(Buy))
}

func TestOpenOrdersViewsAgree(t *testing.T) {
	eng, _ := newTestEngine(t)
	fund(t, eng, "alice", USD, 10_000)
	fund(t, eng, "bob", "AAPL", 100)
	fund(t, eng, "bob", "MSFT", 100)

	submit(t, eng, "bob", Sell, "MSFT", 10, 30)
	submit(t, eng, "bob", Sell, "AAPL", 10, 20)
	submit(t, eng, "alice", Buy, "AAPL", 4, 20)
	submit(t, eng, "alice", Buy, "MSFT", 2, 10)

	chron := eng.OpenOrders()
	grouped := eng.OpenOrdersByAsset()

	var fromGroups int
	for asset, orders := range grouped {
		fromGroups += len(orders)
		for i := 1; i < len(orders); i++ {
			assert.Less(t, orders[i-1].ID, orders[i].ID, "chronological within %s", asset)
		}
	}
	assert.Equal(t, len(chron), fromGroups)
	for i := 1; i < len(chron); i++ {
		assert.Less(t, chron[i-1].ID, chron[i].ID)
	}
	assert.Equal(t, int64(6), grouped["AAPL"][0].Remaining)
}

func TestConcurrentMarkets(t *testing.T) {
	eng := New(USD)
	assets := []Asset{"AAPL", "MSFT", "NVDA"}
	supply := map[Asset]int64{USD: 0}
	for _, asset := range assets {
		require.NoError(t, eng.Deposit("seller-"+string(asset), asset, 1000))
		require.NoError(t, eng.Deposit("buyer-"+string(asset), USD, 100_000))
		supply[asset] = 1000
		supply[USD] += 100_000
	}

	var wg sync.WaitGroup
	for _, asset := range assets {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range 100 {
				_, _ = eng.SubmitOrder("seller-"+string(asset), Sell, asset, 5, int64(90+i%10))
			}
		}()
		go func() {
			defer wg.Done()
			for i := range 100 {
				_, _ = eng.SubmitOrder("buyer-"+string(asset), Buy, asset, 5, int64(95+i%10))
			}
		}()
	}
	wg.Wait()

	assert.NotEmpty(t, eng.Trades())
	assertConserved(t, eng, supply)
}
