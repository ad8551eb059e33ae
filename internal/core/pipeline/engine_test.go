package pipeline

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mwita/settlepay/internal/core/domain"
	"github.com/mwita/settlepay/internal/core/ledger"
	"github.com/mwita/settlepay/internal/core/txlog"
)

// waitFor polls cond until it holds or the timeout passes. Pipeline outcomes
// are observed through the log, so every async assertion goes through here.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func newTestEngine(t *testing.T, antifraud, settlement int) (*Engine, *ledger.Ledger, *txlog.Log) {
	t.Helper()
	led := ledger.New()
	led.Seed(2, 10000) // account 1 unverified, account 2 verified
	log := txlog.NewMemory()
	e := New(led, log, Options{
		AntifraudWorkers:  antifraud,
		SettlementWorkers: settlement,
		QueueCapacity:     64,
		AdmissionDelay:    5 * time.Millisecond,
	})
	t.Cleanup(e.Close)
	return e, led, log
}

func balance(t *testing.T, led *ledger.Ledger, id int64) int64 {
	t.Helper()
	acc, err := led.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	acc.Lock()
	defer acc.Unlock()
	return acc.Balance
}

func hasEntry(log *txlog.Log, status, reason string) func() bool {
	return func() bool {
		for _, e := range log.Entries() {
			if e.Status == status && (reason == "" || e.Reason == reason) {
				return true
			}
		}
		return false
	}
}

func TestSuccessfulPayment(t *testing.T) {
	e, led, log := newTestEngine(t, 1, 2)
	if err := e.Submit(1, 2, 500); err != nil {
		t.Fatal(err)
	}
	e.Start()

	if !waitFor(t, 2*time.Second, hasEntry(log, domain.StatusApproved, "")) {
		t.Fatal("no approved entry appeared")
	}
	e.Stop()

	if got := balance(t, led, 1); got != 9500 {
		t.Fatalf("account 1 balance=%d want 9500", got)
	}
	if got := balance(t, led, 2); got != 10500 {
		t.Fatalf("account 2 balance=%d want 10500", got)
	}
}

func TestInsufficientFundsDeclined(t *testing.T) {
	e, led, log := newTestEngine(t, 1, 2)
	if err := e.Submit(2, 1, 20000); err != nil {
		t.Fatal(err)
	}
	e.Start()

	if !waitFor(t, 2*time.Second, hasEntry(log, domain.StatusDeclined, domain.ReasonInsufficientFunds)) {
		t.Fatal("no declined entry appeared")
	}
	e.Stop()

	if balance(t, led, 1) != 10000 || balance(t, led, 2) != 10000 {
		t.Fatal("declined transfer must leave balances unchanged")
	}
}

func TestUnverifiedLimitRejected(t *testing.T) {
	e, led, log := newTestEngine(t, 1, 2)
	// Account 1 is unverified; 20000 is over the limit.
	if err := e.Submit(1, 2, 20000); err != nil {
		t.Fatal(err)
	}
	e.Start()

	if !waitFor(t, 2*time.Second, hasEntry(log, domain.StatusRejected, domain.ReasonUnverifiedLimit)) {
		t.Fatal("no rejected entry with reason unverified_limit appeared")
	}
	e.Stop()

	if balance(t, led, 1) != 10000 || balance(t, led, 2) != 10000 {
		t.Fatal("rejected transfer must leave balances unchanged")
	}
}

func TestMultipleConcurrentPayments(t *testing.T) {
	e, led, log := newTestEngine(t, 1, 2)
	const payments = 10
	const amount = 500

	for i := 0; i < payments; i++ {
		if err := e.Submit(1, 2, amount); err != nil {
			t.Fatal(err)
		}
	}
	e.Start()

	if !waitFor(t, 5*time.Second, func() bool { return e.Processed() >= payments }) {
		t.Fatalf("processed=%d want >=%d", e.Processed(), payments)
	}
	e.Stop()

	if got := balance(t, led, 1); got != 10000-payments*amount {
		t.Fatalf("account 1 balance=%d want %d", got, 10000-payments*amount)
	}
	if got := balance(t, led, 2); got != 10000+payments*amount {
		t.Fatalf("account 2 balance=%d want %d", got, 10000+payments*amount)
	}

	approved := 0
	for _, entry := range log.Entries() {
		if entry.Status == domain.StatusApproved {
			approved++
		}
	}
	if approved < payments {
		t.Fatalf("approved=%d want >=%d", approved, payments)
	}
}

// Crossed transfers between the same pair exercise the lock-ordering rule:
// with direction-of-transfer locking this pattern deadlocks almost
// immediately.
func TestCrossedTransfersConserveAndTerminate(t *testing.T) {
	e, led, _ := newTestEngine(t, 2, 4)
	const perDirection = 50
	const amount = 100

	e.Start()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perDirection; i++ {
			if err := e.Submit(1, 2, amount); err != nil {
				t.Errorf("1->2: %v", err)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perDirection; i++ {
			if err := e.Submit(2, 1, amount); err != nil {
				t.Errorf("2->1: %v", err)
			}
		}
	}()
	wg.Wait()

	if !waitFor(t, 10*time.Second, func() bool { return e.Processed() >= 2*perDirection }) {
		t.Fatalf("pipeline did not drain: processed=%d want %d", e.Processed(), 2*perDirection)
	}
	e.Stop()

	// Flows are symmetric and never exceed either balance, so the
	// deterministic sequential result is the starting state.
	if got := balance(t, led, 1); got != 10000 {
		t.Fatalf("account 1 balance=%d want 10000", got)
	}
	if got := balance(t, led, 2); got != 10000 {
		t.Fatalf("account 2 balance=%d want 10000", got)
	}

	total := int64(0)
	for _, v := range led.Snapshot() {
		total += v.Balance
	}
	if total != 20000 {
		t.Fatalf("total=%d want 20000", total)
	}
}

func TestSubmitValidation(t *testing.T) {
	e, _, log := newTestEngine(t, 1, 1)

	if err := e.Submit(1, 99, 100); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("unknown receiver: want ErrAccountNotFound, got %v", err)
	}
	if err := e.Submit(99, 1, 100); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("unknown sender: want ErrAccountNotFound, got %v", err)
	}
	if err := e.Submit(1, 2, 0); !errors.Is(err, domain.ErrBadAmount) {
		t.Fatalf("zero amount: want ErrBadAmount, got %v", err)
	}
	if err := e.Submit(1, 1, 100); !errors.Is(err, domain.ErrSameAccount) {
		t.Fatalf("same account: want ErrSameAccount, got %v", err)
	}

	// Failed validation must not queue or log anything.
	if n := len(log.Entries()); n != 0 {
		t.Fatalf("log has %d entries after rejected submissions, want 0", n)
	}
}

func TestStopIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t, 1, 1)

	e.Stop() // stop before start is a no-op
	e.Start()
	e.Stop()
	e.Stop() // double stop must not panic or deadlock

	e.Start()
	e.Stop()
}

func TestProcessedCountsEveryTerminalOutcome(t *testing.T) {
	e, _, log := newTestEngine(t, 1, 1)

	submissions := []struct {
		from, to, amount int64
	}{
		{1, 2, 500},   // approved
		{2, 1, 20000}, // declined, insufficient funds
		{1, 2, 20000}, // rejected, unverified limit
	}
	for _, s := range submissions {
		if err := e.Submit(s.from, s.to, s.amount); err != nil {
			t.Fatal(err)
		}
	}
	e.Start()

	if !waitFor(t, 5*time.Second, func() bool { return e.Processed() == len(submissions) }) {
		t.Fatalf("processed=%d want %d: every terminal outcome counts once", e.Processed(), len(submissions))
	}
	e.Stop()

	terminal := 0
	for _, entry := range log.Entries() {
		if entry.Status != domain.StatusPending {
			terminal++
		}
	}
	if terminal != len(submissions) {
		t.Fatalf("terminal entries=%d want %d", terminal, len(submissions))
	}
}

func TestCounterResumesFromReplayedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transactions.log")

	log, err := txlog.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	log.Record(txlog.NewEntry(7, 1, 2, 100, domain.StatusApproved, domain.ReasonCompleted))
	if err := log.Close(); err != nil {
		t.Fatal(err)
	}

	replayed, err := txlog.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer replayed.Close()

	led := ledger.New()
	led.Seed(2, 10000)
	e := New(led, replayed, Options{AdmissionDelay: time.Millisecond})
	defer e.Close()

	if err := e.Submit(1, 2, 100); err != nil {
		t.Fatal(err)
	}
	entries := replayed.Entries()
	pending := entries[len(entries)-1]
	if pending.Status != domain.StatusPending || pending.TxID != 8 {
		t.Fatalf("first id after replay=%d want 8 (max seen + 1)", pending.TxID)
	}
}
