// Package history is the venue's append-only execution log.
package history

import (
	"sync"

	. "bourse/internal/common"
)

type Log struct {
	mu     sync.RWMutex
	trades []Trade
	fills  []Fill
}

func New() *Log {
	return &Log{
		trades: make([]Trade, 0, 1024),
		fills:  make([]Fill, 0, 2048),
	}
}

func (l *Log) AppendTrade(trade Trade) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.trades = append(l.trades, trade)
}

func (l *Log) AppendFill(fills ...Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fills = append(l.fills, fills...)
}

// Trades returns every trade in execution order.
func (l *Log) Trades() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	trades := make([]Trade, len(l.trades))
	copy(trades, l.trades)
	return trades
}

// Fills returns every fill in execution order.
func (l *Log) Fills() []Fill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fills := make([]Fill, len(l.fills))
	copy(fills, l.fills)
	return fills
}

// TradesFor returns the trades the user took part in, on either side.
func (l *Log) TradesFor(user string) []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var trades []Trade
	for _, trade := range l.trades {
		if trade.Buyer == user || trade.Seller == user {
			trades = append(trades, trade)
		}
	}
	return trades
}

func (l *Log) FillsFor(user string) []Fill {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var fills []Fill
	for _, fill := range l.fills {
		if fill.Owner == user {
			fills = append(fills, fill)
		}
	}
	return fills
}
