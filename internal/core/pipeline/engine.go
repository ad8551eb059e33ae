// Package pipeline is the two-stage transaction processor: antifraud workers
// drain the admission queue and forward every transaction to the settlement
// queue, where settlement workers apply balance effects under ordered
// account locks and write the terminal log entry.
package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mwita/settlepay/internal/core/domain"
	"github.com/mwita/settlepay/internal/core/ledger"
	"github.com/mwita/settlepay/internal/core/txlog"
)

// Unverified senders cannot move more than this in one transaction.
const unverifiedLimit = 10000

// Options sizes the worker pools and queues.
type Options struct {
	AntifraudWorkers  int
	SettlementWorkers int
	QueueCapacity     int
	AdmissionDelay    time.Duration
}

// Engine owns the queues, worker pools and counters. Ledger and log are
// passed in at construction; the engine holds no account state of its own.
type Engine struct {
	ledger *ledger.Ledger
	log    *txlog.Log
	sched  *Scheduler
	opts   Options

	admitQ  chan *domain.Transaction
	settleQ chan *domain.Transaction

	txMu      sync.Mutex
	txCounter int64

	countMu   sync.Mutex
	processed int

	runMu   sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New wires an engine over the given ledger and log. The transaction id
// counter resumes from the highest id the log has seen, so replayed history
// never collides with new submissions.
func New(led *ledger.Ledger, log *txlog.Log, opts Options) *Engine {
	if opts.AntifraudWorkers <= 0 {
		opts.AntifraudWorkers = 2
	}
	if opts.SettlementWorkers <= 0 {
		opts.SettlementWorkers = 4
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = 300
	}
	return &Engine{
		ledger:    led,
		log:       log,
		sched:     NewScheduler(),
		opts:      opts,
		admitQ:    make(chan *domain.Transaction, opts.QueueCapacity),
		settleQ:   make(chan *domain.Transaction, opts.QueueCapacity),
		txCounter: log.MaxTxID(),
	}
}

// Submit validates a transfer request and admits it into the pipeline after
// the configured delay. Validation failures return synchronously; nothing is
// queued. The caller observes the outcome by polling the transaction log.
func (e *Engine) Submit(from, to, amount int64) error {
	if _, err := e.ledger.Get(from); err != nil {
		return err
	}
	if _, err := e.ledger.Get(to); err != nil {
		return err
	}
	if amount <= 0 {
		return fmt.Errorf("amount %d: %w", amount, domain.ErrBadAmount)
	}
	if from == to {
		return domain.ErrSameAccount
	}

	e.txMu.Lock()
	e.txCounter++
	id := e.txCounter
	e.txMu.Unlock()

	tx, err := domain.NewTransaction(id, from, to, amount)
	if err != nil {
		return err
	}

	e.log.Record(txlog.NewEntry(id, from, to, amount, domain.StatusPending, domain.ReasonProcessing))

	// The deferred admission blocks on a full queue; the caller never does.
	e.sched.Schedule(e.opts.AdmissionDelay, func() {
		e.admitQ <- tx
	})
	return nil
}

// Start launches the worker pools. Calling Start on a running engine is a
// no-op.
func (e *Engine) Start() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return
	}
	e.stop = make(chan struct{})
	for i := 0; i < e.opts.AntifraudWorkers; i++ {
		e.wg.Add(1)
		go e.antifraudWorker()
	}
	for i := 0; i < e.opts.SettlementWorkers; i++ {
		e.wg.Add(1)
		go e.settlementWorker()
	}
	e.running = true
	slog.Info("👷 pipeline started",
		"antifraud_workers", e.opts.AntifraudWorkers,
		"settlement_workers", e.opts.SettlementWorkers,
		"queue_capacity", e.opts.QueueCapacity)
}

// Stop signals the workers and waits for every one to exit. A transaction
// already picked up by a settlement worker runs to its terminal state first.
// Stop is idempotent: double-stop and stop-before-start are no-ops.
func (e *Engine) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if !e.running {
		return
	}
	close(e.stop)
	e.wg.Wait()
	e.running = false
	slog.Info("🛑 pipeline stopped")
}

// Close stops the engine and its admission scheduler.
func (e *Engine) Close() {
	e.Stop()
	e.sched.Close()
}

// Processed reports how many transactions reached a terminal state in the
// settlement stage. Every terminal outcome counts exactly once, regardless
// of status.
func (e *Engine) Processed() int {
	e.countMu.Lock()
	defer e.countMu.Unlock()
	return e.processed
}

func (e *Engine) antifraudWorker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		case tx := <-e.admitQ:
			if ok, reason := e.screen(tx); !ok {
				tx.Reject(reason)
			}
			// Rejected transactions are forwarded too; settlement is the
			// single place terminal entries get written.
			select {
			case e.settleQ <- tx:
			case <-e.stop:
				return
			}
		}
	}
}

// screen applies the risk rule. The sending account is known to exist:
// submission validated it and accounts are never destroyed.
func (e *Engine) screen(tx *domain.Transaction) (bool, string) {
	sender, err := e.ledger.Get(tx.From)
	if err != nil {
		return false, domain.ReasonInternalError
	}
	if !sender.Verified && tx.Amount > unverifiedLimit {
		return false, domain.ReasonUnverifiedLimit
	}
	return true, tx.Reason
}

func (e *Engine) settlementWorker() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		case tx := <-e.settleQ:
			e.settle(tx)
		}
	}
}

// settle drives one transaction to its terminal state. A panic anywhere in
// the sequence is recovered and recorded as rejected/internal_error; it must
// never kill the worker or leave an account locked.
func (e *Engine) settle(tx *domain.Transaction) {
	defer e.incProcessed()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("settlement fault", "tx_id", tx.ID, "panic", r)
			e.log.Record(txlog.NewEntry(tx.ID, tx.From, tx.To, tx.Amount,
				domain.StatusRejected, domain.ReasonInternalError))
		}
	}()

	if !tx.OK {
		e.log.Record(txlog.NewEntry(tx.ID, tx.From, tx.To, tx.Amount,
			domain.StatusRejected, tx.Reason))
		return
	}

	from, err := e.ledger.Get(tx.From)
	if err == nil {
		var to *domain.Account
		to, err = e.ledger.Get(tx.To)
		if err == nil {
			e.applyTransfer(tx, from, to)
			return
		}
	}
	// Both accounts were validated at submission and accounts are never
	// destroyed; a miss here is a systemic fault.
	slog.Error("settlement fault", "tx_id", tx.ID, "error", err)
	e.log.Record(txlog.NewEntry(tx.ID, tx.From, tx.To, tx.Amount,
		domain.StatusRejected, domain.ReasonInternalError))
}

// applyTransfer performs the atomic two-account balance move.
func (e *Engine) applyTransfer(tx *domain.Transaction, from, to *domain.Account) {
	// Always lock the lower account id first, regardless of transfer
	// direction. Two workers settling opposite transfers between the same
	// pair then agree on acquisition order and cannot circular-wait.
	first, second := from, to
	if second.ID < first.ID {
		first, second = second, first
	}
	first.Lock()
	second.Lock()

	// Balances may have moved since submission; re-check under both locks.
	if from.Balance < tx.Amount {
		second.Unlock()
		first.Unlock()
		e.log.Record(txlog.NewEntry(tx.ID, tx.From, tx.To, tx.Amount,
			domain.StatusDeclined, domain.ReasonInsufficientFunds))
		return
	}
	from.Balance -= tx.Amount
	to.Balance += tx.Amount
	second.Unlock()
	first.Unlock()

	e.log.Record(txlog.NewEntry(tx.ID, tx.From, tx.To, tx.Amount,
		domain.StatusApproved, domain.ReasonCompleted))
}

func (e *Engine) incProcessed() {
	e.countMu.Lock()
	e.processed++
	e.countMu.Unlock()
}
