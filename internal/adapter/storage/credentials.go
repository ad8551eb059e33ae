// Package storage persists state the engine shares with its external
// collaborators: the credentials/balance file the front-end authenticates
// against. Password hashes pass through opaquely; hashing lives outside the
// engine.
package storage

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/mwita/settlepay/internal/core/ledger"
)

// Credential is one entry of the credentials file, keyed by account owner.
type Credential struct {
	ID       int64  `json:"id"`
	Password string `json:"password"`
	Balance  int64  `json:"balance"`
	Verified bool   `json:"verified"`
}

// CredentialStore rewrites the credentials file wholesale so the balances it
// carries track approved transactions. Rewrites are coalesced: approvals
// kick a single writer goroutine instead of rewriting inline, so a burst of
// N approvals costs one or two rewrites and settlement workers never touch
// the file while holding account locks.
type CredentialStore struct {
	path string

	mu        sync.Mutex
	passwords map[string]string

	kick chan struct{}
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewCredentialStore(path string) *CredentialStore {
	return &CredentialStore{
		path:      path,
		passwords: make(map[string]string),
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// Load reads the credentials file. A missing file is an empty store, not an
// error. Loaded password hashes are remembered so later rewrites carry them
// forward.
func (s *CredentialStore) Load() (map[string]Credential, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]Credential{}, nil
	}
	if err != nil {
		return nil, err
	}
	var creds map[string]Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, err
	}
	s.mu.Lock()
	for owner, c := range creds {
		s.passwords[owner] = c.Password
	}
	s.mu.Unlock()
	return creds, nil
}

// Rewrite replaces the whole file with the given account snapshot, carrying
// known password hashes through. The write goes to a temp file first and is
// renamed over the original, so a crash mid-write never corrupts the file.
func (s *CredentialStore) Rewrite(accounts []ledger.AccountView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := make(map[string]Credential, len(accounts))
	for _, acc := range accounts {
		creds[acc.Owner] = Credential{
			ID:       acc.ID,
			Password: s.passwords[acc.Owner],
			Balance:  acc.Balance,
			Verified: acc.Verified,
		}
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// SetPassword records an owner's password hash for inclusion in rewrites.
func (s *CredentialStore) SetPassword(owner, hash string) {
	s.mu.Lock()
	s.passwords[owner] = hash
	s.mu.Unlock()
}

// Kick marks the file stale. Never blocks; pending kicks coalesce.
func (s *CredentialStore) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// StartWriter launches the coalescing writer. snapshot is called outside any
// engine lock to capture current balances.
func (s *CredentialStore) StartWriter(snapshot func() []ledger.AccountView) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				return
			case <-s.kick:
				if err := s.Rewrite(snapshot()); err != nil {
					slog.Error("credentials rewrite failed", "error", err, "path", s.path)
				}
			}
		}
	}()
}

// Close stops the writer. A kick that has not been picked up yet is
// dropped; the transaction log, not this file, is the durable record.
func (s *CredentialStore) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}
