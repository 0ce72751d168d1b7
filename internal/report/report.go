// Package report renders read-only listings of the venue: portfolios, trade
// history, top of book and per-user orders. Every function works from an
// engine.Snapshot and never touches the engine itself.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	. "bourse/internal/common"
	"bourse/internal/engine"
)

// Portfolios lists every user alphabetically with their positive holdings,
// also alphabetical.
func Portfolios(w io.Writer, snap engine.Snapshot) error {
	ew := &errWriter{w: w}
	ew.printf("User Portfolios (in alphabetical order):\n")

	for _, user := range snap.Users {
		holdings := snap.Balances[user]
		assets := make([]string, 0, len(holdings))
		for asset, amount := range holdings {
			if amount > 0 {
				assets = append(assets, string(asset))
			}
		}
		sort.Strings(assets)

		ew.printf("%s's Portfolio: ", user)
		if len(assets) == 0 {
			ew.printf("\n")
			continue
		}
		for _, asset := range assets {
			ew.printf("%d %s, ", holdings[Asset(asset)], asset)
		}
		ew.printf("\n")
	}
	return ew.err
}

// TradeHistory lists every trade in execution order.
func TradeHistory(w io.Writer, snap engine.Snapshot) error {
	ew := &errWriter{w: w}
	ew.printf("Trade History (in chronological order):\n")
	for _, trade := range snap.Trades {
		ew.printf("%s\n", trade)
	}
	return ew.err
}

// BidAskSpread lists the highest open buy and lowest open sell of every
// asset that has had a book, alphabetically. A missing side prints NA.
func BidAskSpread(w io.Writer, snap engine.Snapshot) error {
	ew := &errWriter{w: w}
	ew.printf("Asset Bid Ask Spread (in alphabetical order):\n")
	for _, quote := range snap.Quotes {
		ew.printf("%s: Highest Open Buy = %s USD and Lowest Open Sell = %s USD\n",
			quote.Asset,
			priceOrNA(quote.Bid, quote.HasBid),
			priceOrNA(quote.Ask, quote.HasAsk),
		)
	}
	return ew.err
}

// UserOrders lists, per user alphabetically, their open orders and then
// their fills, each in chronological order.
func UserOrders(w io.Writer, snap engine.Snapshot) error {
	ew := &errWriter{w: w}
	ew.printf("Users Orders (in alphabetical order):\n")
	for _, user := range snap.Users {
		ew.printf("%s's Open Orders (in chronological order):\n", user)
		for _, order := range snap.OpenOrders {
			if order.Owner == user {
				ew.printf("%s\n", order)
			}
		}

		ew.printf("%s's Filled Orders (in chronological order):\n", user)
		for _, fill := range snap.Fills {
			if fill.Owner == user {
				ew.printf("%s\n", fill)
			}
		}
	}
	return ew.err
}

// All writes every listing, one after another.
func All(w io.Writer, snap engine.Snapshot) error {
	for _, render := range []func(io.Writer, engine.Snapshot) error{
		Portfolios,
		UserOrders,
		TradeHistory,
		BidAskSpread,
	} {
		if err := render(w, snap); err != nil {
			return err
		}
	}
	return nil
}

func priceOrNA(price int64, ok bool) string {
	if !ok {
		return "NA"
	}
	return strconv.FormatInt(price, 10)
}

// errWriter keeps the first write error and drops everything after it.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
