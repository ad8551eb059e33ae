package domain

import "sync"

// Account is a single ledger entry. Balance is stored in minor units (cents)
// and is only ever mutated by the settlement stage while the account lock is
// held. Accounts are never destroyed during the process lifetime.
type Account struct {
	ID       int64
	Owner    string
	Balance  int64
	Verified bool

	mu sync.Mutex
}

// NewAccount creates an account. The initial balance cannot be negative.
func NewAccount(id int64, owner string, balance int64, verified bool) (*Account, error) {
	if balance < 0 {
		return nil, ErrNegativeBalance
	}
	return &Account{ID: id, Owner: owner, Balance: balance, Verified: verified}, nil
}

// Lock acquires the account's exclusive lock. When two account locks are
// needed together, callers must acquire them in ascending ID order.
func (a *Account) Lock() { a.mu.Lock() }

// Unlock releases the account's exclusive lock.
func (a *Account) Unlock() { a.mu.Unlock() }
