package ledger

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// NonceRecord marks one nonce consumed for an account.
type NonceRecord struct {
	Account common.Address
	Nonce   *big.Int
}

type WatermarkRecord struct {
	Account   common.Address
	Timestamp uint64
}

type ApprovalRecord struct {
	Account     common.Address
	ContentHash common.Hash
	Approved    bool
}

// Changeset is a batch of ledger writes. Loading a backend yields the full
// state as one changeset; committing the ledger applies the delta since
// the previous commit.
type Changeset struct {
	Nonces     []NonceRecord
	Watermarks []WatermarkRecord
	Approvals  []ApprovalRecord
}

func (c *Changeset) Empty() bool {
	return c == nil || len(c.Nonces)+len(c.Watermarks)+len(c.Approvals) == 0
}

// Backend is durable storage for cancellation and approval records.
type Backend interface {
	Load(ctx context.Context) (*Changeset, error)
	Apply(ctx context.Context, cs *Changeset) error
}

// MemoryBackend keeps records in process memory. Used when no redis is
// configured and in tests.
type MemoryBackend struct {
	mu         sync.RWMutex
	nonces     map[common.Address]map[string]*big.Int
	watermarks map[common.Address]uint64
	approvals  map[common.Address]map[common.Hash]bool
	applies    int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		nonces:     make(map[common.Address]map[string]*big.Int),
		watermarks: make(map[common.Address]uint64),
		approvals:  make(map[common.Address]map[common.Hash]bool),
	}
}

func (b *MemoryBackend) Load(ctx context.Context) (*Changeset, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cs := &Changeset{}
	for account, set := range b.nonces {
		for _, n := range set {
			cs.Nonces = append(cs.Nonces, NonceRecord{Account: account, Nonce: new(big.Int).Set(n)})
		}
	}
	for account, ts := range b.watermarks {
		cs.Watermarks = append(cs.Watermarks, WatermarkRecord{Account: account, Timestamp: ts})
	}
	for account, set := range b.approvals {
		for h, ok := range set {
			if ok {
				cs.Approvals = append(cs.Approvals, ApprovalRecord{Account: account, ContentHash: h, Approved: true})
			}
		}
	}
	return cs, nil
}

func (b *MemoryBackend) Apply(ctx context.Context, cs *Changeset) error {
	if cs.Empty() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, r := range cs.Nonces {
		set, ok := b.nonces[r.Account]
		if !ok {
			set = make(map[string]*big.Int)
			b.nonces[r.Account] = set
		}
		set[r.Nonce.String()] = new(big.Int).Set(r.Nonce)
	}
	for _, r := range cs.Watermarks {
		b.watermarks[r.Account] = r.Timestamp
	}
	for _, r := range cs.Approvals {
		set, ok := b.approvals[r.Account]
		if !ok {
			set = make(map[common.Hash]bool)
			b.approvals[r.Account] = set
		}
		if r.Approved {
			set[r.ContentHash] = true
		} else {
			delete(set, r.ContentHash)
		}
	}
	b.applies++
	return nil
}

// Applies reports how many non-empty changesets have been written.
func (b *MemoryBackend) Applies() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.applies
}
