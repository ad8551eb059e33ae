// Package txlog is the append-only record of transaction outcomes. Entries
// live in an in-memory ordered slice, which is authoritative for the running
// process, and are mirrored line-by-line as JSON to a durable file. On
// startup the file is replayed to rebuild the in-memory log.
package txlog

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// Entry is the persisted projection of a transaction outcome. One entry is
// written per terminal outcome, plus the transient "pending" snapshot at
// admission. Entries are never edited or removed.
type Entry struct {
	Timestamp string `json:"timestamp"`
	TxID      int64  `json:"tx_id"`
	From      int64  `json:"from"`
	To        int64  `json:"to"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
}

// NewEntry stamps an entry with the current time.
func NewEntry(txID, from, to, amount int64, status, reason string) Entry {
	return Entry{
		Timestamp: time.Now().Format(timestampLayout),
		TxID:      txID,
		From:      from,
		To:        to,
		Amount:    amount,
		Status:    status,
		Reason:    reason,
	}
}

// Log serializes all writers on a single mutex. A write to the durable
// mirror may be lost on I/O error without aborting the pipeline; the error
// is logged and surfaced on Errors.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	file    *os.File
	maxTxID int64

	errs   chan error
	notify func(Entry)
}

// Open replays the durable file at path (creating it if absent) and returns
// a log that appends to it. Malformed lines are skipped silently; file order
// is preserved.
func Open(path string) (*Log, error) {
	l := NewMemory()
	if f, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			var e Entry
			if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
				continue
			}
			l.entries = append(l.entries, e)
			if e.TxID > l.maxTxID {
				l.maxTxID = e.TxID
			}
		}
		f.Close()
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l.file = f
	return l, nil
}

// NewMemory returns a log with no durable mirror. Used in tests and by the
// replay inspection command.
func NewMemory() *Log {
	return &Log{errs: make(chan error, 16)}
}

// SetNotify registers a hook invoked once per recorded entry, outside the
// log lock. Used to kick the credentials writer and webhook dispatch.
func (l *Log) SetNotify(fn func(Entry)) { l.notify = fn }

// Record appends the entry to the in-memory log and the durable mirror.
func (l *Log) Record(e Entry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	if e.TxID > l.maxTxID {
		l.maxTxID = e.TxID
	}
	var werr error
	if l.file != nil {
		line, err := json.Marshal(e)
		if err == nil {
			line = append(line, '\n')
			_, werr = l.file.Write(line)
		} else {
			werr = err
		}
	}
	l.mu.Unlock()

	if werr != nil {
		slog.Error("transaction log write failed", "error", werr, "tx_id", e.TxID)
		select {
		case l.errs <- werr:
		default:
		}
	}
	if l.notify != nil {
		l.notify(e)
	}
}

// Entries returns a copy of the full log in record order.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesFor returns the entries in which the account participates, as
// sender or receiver.
func (l *Log) EntriesFor(accountID int64) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Entry
	for _, e := range l.entries {
		if e.From == accountID || e.To == accountID {
			out = append(out, e)
		}
	}
	return out
}

// MaxTxID returns the highest transaction id seen, across replayed and
// newly recorded entries. The id counter is reseeded from this, not from
// the entry count, so gaps in the file can never cause id collisions.
func (l *Log) MaxTxID() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxTxID
}

// Errors exposes durable-write failures. The channel is buffered and writes
// to it never block the pipeline; when nobody drains it, errors are dropped
// after the slog record.
func (l *Log) Errors() <-chan error { return l.errs }

// Close closes the durable mirror, if any.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
