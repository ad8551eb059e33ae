// Package ledger holds the authoritative in-memory map of accounts.
//
// The coarse mutex guards whole-map operations only (insertion, iteration
// for display). Balance mutation during settlement uses the per-account
// locks, never the coarse lock, so pipeline workers do not contend on a
// global lock.
package ledger

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mwita/settlepay/internal/core/domain"
)

// AccountView is a read-only copy of an account, safe to hand to callers.
type AccountView struct {
	ID       int64  `json:"id"`
	Owner    string `json:"owner"`
	Balance  int64  `json:"balance"`
	Verified bool   `json:"verified"`
}

type Ledger struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
}

func New() *Ledger {
	return &Ledger{accounts: make(map[int64]*domain.Account)}
}

// Get resolves an account by id.
func (l *Ledger) Get(id int64) (*domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, domain.ErrAccountNotFound)
	}
	return acc, nil
}

// Seed creates count test accounts with ids 1..count, each with the given
// balance. Every even-numbered account is verified.
func (l *Ledger) Seed(count int, balance int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 1; i <= count; i++ {
		id := int64(i)
		acc, _ := domain.NewAccount(id, fmt.Sprintf("User%d", i), balance, i%2 == 0)
		l.accounts[id] = acc
	}
}

// Add creates a new account under the next unused id (max existing id + 1,
// or 1 when the ledger is empty) and returns that id.
func (l *Ledger) Add(owner string, balance int64, verified bool) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var id int64 = 1
	for existing := range l.accounts {
		if existing >= id {
			id = existing + 1
		}
	}
	acc, err := domain.NewAccount(id, owner, balance, verified)
	if err != nil {
		return 0, err
	}
	l.accounts[id] = acc
	return id, nil
}

// Restore inserts an account with an explicit id, replacing any existing
// entry. Used when bootstrapping the ledger from the credentials file.
func (l *Ledger) Restore(id int64, owner string, balance int64, verified bool) error {
	acc, err := domain.NewAccount(id, owner, balance, verified)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[id] = acc
	return nil
}

// Snapshot returns a consistent copy of every account, ordered by id.
// The coarse lock pins the account set; each balance is read under its
// account lock so a concurrent settlement is never observed half-applied.
func (l *Ledger) Snapshot() []AccountView {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AccountView, 0, len(l.accounts))
	for _, acc := range l.accounts {
		acc.Lock()
		out = append(out, AccountView{
			ID:       acc.ID,
			Owner:    acc.Owner,
			Balance:  acc.Balance,
			Verified: acc.Verified,
		})
		acc.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
