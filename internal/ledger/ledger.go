package ledger

import (
	"fmt"
	"math"
	"sort"
	"sync"

	. "bourse/internal/common"

	"github.com/rs/zerolog/log"
)

// Ledger holds per-user asset balances. Balances are never negative and an
// asset whose balance reaches zero is dropped from the user's holdings.
// Users are created lazily and, once seen, stay listed.
//
// The supply of an asset only moves with deposits and withdrawals; debits and
// credits shift value between users and reservations. Deposits are capped so
// the supply fits in an int64, which bounds every balance and credit too.
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[Asset]int64
	supply   map[Asset]int64
}

func New() *Ledger {
	return &Ledger{
		balances: make(map[string]map[Asset]int64),
		supply:   make(map[Asset]int64),
	}
}

// Deposit adds a strictly positive amount to the user's holding. It fails
// with ErrInvalidAmount if the asset's supply would overflow.
func (l *Ledger) Deposit(user string, asset Asset, amount int64) error {
	if amount <= 0 {
		log.Warn().
			Str("user", user).
			Str("asset", asset.String()).
			Int64("amount", amount).
			Msg("rejected deposit")
		return fmt.Errorf("deposit %d %s: %w", amount, asset, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if amount > math.MaxInt64-l.supply[asset] {
		log.Warn().
			Str("user", user).
			Str("asset", asset.String()).
			Int64("amount", amount).
			Int64("supply", l.supply[asset]).
			Msg("rejected deposit over supply limit")
		return fmt.Errorf("deposit %d %s exceeds supply limit: %w", amount, asset, ErrInvalidAmount)
	}

	l.holdings(user)[asset] += amount
	l.supply[asset] += amount
	return nil
}

// Withdraw removes amount from the user's holding. Nothing changes on error.
func (l *Ledger) Withdraw(user string, asset Asset, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("withdraw %d %s: %w", amount, asset, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debit(user, asset, amount); err != nil {
		return fmt.Errorf("withdraw %d %s: %w", amount, asset, err)
	}
	l.supply[asset] -= amount
	return nil
}

// Credit unconditionally increases a balance. Used by settlement, which only
// hands back value that was debited on reservation.
func (l *Ledger) Credit(user string, asset Asset, amount int64) {
	if amount == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	holdings := l.holdings(user)
	holdings[asset] += amount
}

// Debit atomically checks and decreases a balance. It returns
// ErrInsufficientFunds, leaving the ledger untouched, rather than going
// negative.
func (l *Ledger) Debit(user string, asset Asset, amount int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.debit(user, asset, amount)
}

// debit must be called with the lock held.
func (l *Ledger) debit(user string, asset Asset, amount int64) error {
	holdings, ok := l.balances[user]
	if !ok || holdings[asset] < amount {
		return ErrInsufficientFunds
	}

	holdings[asset] -= amount
	if holdings[asset] == 0 {
		delete(holdings, asset)
	}
	return nil
}

// Balance returns the held quantity, zero for unknown users or assets.
func (l *Ledger) Balance(user string, asset Asset) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.balances[user][asset]
}

// Users lists every user the ledger has seen, sorted.
func (l *Ledger) Users() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	users := make([]string, 0, len(l.balances))
	for user := range l.balances {
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}

// Total is the supply of an asset: deposits less withdrawals. It includes
// whatever is debited into reservations and not yet credited back.
func (l *Ledger) Total(asset Asset) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.supply[asset]
}

// Snapshot deep copies the ledger. Users with no holdings map to an empty
// (non-nil) map.
func (l *Ledger) Snapshot() map[string]map[Asset]int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make(map[string]map[Asset]int64, len(l.balances))
	for user, holdings := range l.balances {
		copied := make(map[Asset]int64, len(holdings))
		for asset, amount := range holdings {
			if amount > 0 {
				copied[asset] = amount
			}
		}
		snapshot[user] = copied
	}
	return snapshot
}

// holdings must be called with the lock held.
func (l *Ledger) holdings(user string) map[Asset]int64 {
	holdings, ok := l.balances[user]
	if !ok {
		holdings = make(map[Asset]int64)
		l.balances[user] = holdings
	}
	return holdings
}
