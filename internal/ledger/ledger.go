// Package ledger holds the cancellation and approval records: consumed
// nonces, per-account cancel-before watermarks, and on-chain order
// approvals. Mutations are journaled so a failed settlement leaves no
// trace, and are flushed to a Backend only on Commit.
package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/GoPolymarket/tradegate/internal/state"
	"github.com/ethereum/go-ethereum/common"
)

type Ledger struct {
	backend Backend
	journal *state.Journal

	used       map[common.Address]map[string]struct{}
	watermarks map[common.Address]uint64
	approved   map[common.Address]map[common.Hash]bool

	pending Changeset
}

func New(backend Backend, journal *state.Journal) *Ledger {
	return &Ledger{
		backend:    backend,
		journal:    journal,
		used:       make(map[common.Address]map[string]struct{}),
		watermarks: make(map[common.Address]uint64),
		approved:   make(map[common.Address]map[common.Hash]bool),
	}
}

// Restore replays the backend's persisted state into memory. It must run
// before the ledger serves any request.
func (l *Ledger) Restore(ctx context.Context) error {
	cs, err := l.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	for _, r := range cs.Nonces {
		l.markUsed(r.Account, r.Nonce)
	}
	for _, r := range cs.Watermarks {
		l.watermarks[r.Account] = r.Timestamp
	}
	for _, r := range cs.Approvals {
		l.setApproval(r.Account, r.ContentHash, r.Approved)
	}
	return nil
}

func (l *Ledger) NonceUsed(account common.Address, nonce *big.Int) bool {
	_, ok := l.used[account][nonce.String()]
	return ok
}

// ConsumeNonce marks nonce used for account. It returns false, changing
// nothing, if the nonce was already used.
func (l *Ledger) ConsumeNonce(account common.Address, nonce *big.Int) bool {
	if l.NonceUsed(account, nonce) {
		return false
	}
	key := nonce.String()
	l.markUsed(account, nonce)
	l.record(func() { l.pending.Nonces = append(l.pending.Nonces, NonceRecord{Account: account, Nonce: new(big.Int).Set(nonce)}) })
	l.journal.Append(func() { delete(l.used[account], key) })
	return true
}

func (l *Ledger) Watermark(account common.Address) uint64 {
	return l.watermarks[account]
}

func (l *Ledger) SetWatermark(account common.Address, ts uint64) {
	prev, had := l.watermarks[account]
	l.watermarks[account] = ts
	l.record(func() { l.pending.Watermarks = append(l.pending.Watermarks, WatermarkRecord{Account: account, Timestamp: ts}) })
	l.journal.Append(func() {
		if had {
			l.watermarks[account] = prev
		} else {
			delete(l.watermarks, account)
		}
	})
}

func (l *Ledger) IsApproved(account common.Address, contentHash common.Hash) bool {
	return l.approved[account][contentHash]
}

func (l *Ledger) SetApproved(account common.Address, contentHash common.Hash, approved bool) {
	prev := l.IsApproved(account, contentHash)
	l.setApproval(account, contentHash, approved)
	l.record(func() {
		l.pending.Approvals = append(l.pending.Approvals, ApprovalRecord{Account: account, ContentHash: contentHash, Approved: approved})
	})
	l.journal.Append(func() { l.setApproval(account, contentHash, prev) })
}

// Commit writes every mutation made since the last commit to the backend.
// The caller resets the journal once all stores have committed.
func (l *Ledger) Commit(ctx context.Context) error {
	if l.pending.Empty() {
		return nil
	}
	cs := l.pending
	if err := l.backend.Apply(ctx, &cs); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	l.pending = Changeset{}
	return nil
}

// Pending reports the number of uncommitted writes.
func (l *Ledger) Pending() int {
	return len(l.pending.Nonces) + len(l.pending.Watermarks) + len(l.pending.Approvals)
}

// record appends to the pending changeset and journals the truncation that
// drops it again.
func (l *Ledger) record(add func()) {
	n, w, a := len(l.pending.Nonces), len(l.pending.Watermarks), len(l.pending.Approvals)
	add()
	l.journal.Append(func() {
		l.pending.Nonces = l.pending.Nonces[:n]
		l.pending.Watermarks = l.pending.Watermarks[:w]
		l.pending.Approvals = l.pending.Approvals[:a]
	})
}

func (l *Ledger) markUsed(account common.Address, nonce *big.Int) {
	set, ok := l.used[account]
	if !ok {
		set = make(map[string]struct{})
		l.used[account] = set
	}
	set[nonce.String()] = struct{}{}
}

func (l *Ledger) setApproval(account common.Address, contentHash common.Hash, approved bool) {
	if !approved {
		delete(l.approved[account], contentHash)
		return
	}
	set, ok := l.approved[account]
	if !ok {
		set = make(map[common.Hash]bool)
		l.approved[account] = set
	}
	set[contentHash] = true
}
