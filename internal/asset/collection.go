package asset

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Collection is an ERC-721 style non-fungible token contract.
type Collection struct {
	chain     *Chain
	address   common.Address
	owners    map[string]common.Address
	approvals map[string]common.Address
	operators map[common.Address]map[common.Address]bool
}

func (c *Collection) Address() common.Address {
	return c.address
}

func (c *Collection) Mint(to common.Address, tokenID *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	key := tokenID.String()
	if _, ok := c.owners[key]; ok {
		return fmt.Errorf("%w: %s", ErrTokenExists, key)
	}
	c.setOwner(key, to)
	return nil
}

func (c *Collection) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	owner, ok := c.owners[tokenID.String()]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownToken, tokenID)
	}
	return owner, nil
}

func (c *Collection) GetApproved(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	key := tokenID.String()
	if _, ok := c.owners[key]; !ok {
		return common.Address{}, fmt.Errorf("%w: %s", ErrUnknownToken, key)
	}
	return c.approvals[key], nil
}

func (c *Collection) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	return c.operators[owner][operator], nil
}

// Approve lets to transfer tokenID. caller must be the owner or one of the
// owner's operators.
func (c *Collection) Approve(caller, to common.Address, tokenID *big.Int) error {
	key := tokenID.String()
	owner, ok := c.owners[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, key)
	}
	if caller != owner && !c.operators[owner][caller] {
		return ErrNotAuthorized
	}
	c.setApproval(key, to)
	return nil
}

func (c *Collection) SetApprovalForAll(owner, operator common.Address, approved bool) {
	set, ok := c.operators[owner]
	if !ok {
		set = make(map[common.Address]bool)
		c.operators[owner] = set
	}
	prev, had := set[operator]
	set[operator] = approved
	c.chain.journal.Append(func() {
		if had {
			set[operator] = prev
		} else {
			delete(set, operator)
		}
	})
}

func (c *Collection) SafeTransferFrom(ctx context.Context, operator, from, to common.Address, tokenID *big.Int) error {
	key := tokenID.String()
	owner, ok := c.owners[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, key)
	}
	if owner != from {
		return ErrNotOwner
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if operator != owner && c.approvals[key] != operator && !c.operators[owner][operator] {
		return ErrNotAuthorized
	}

	if _, ok := c.approvals[key]; ok {
		c.setApproval(key, common.Address{})
	}
	c.setOwner(key, to)

	if hook, ok := c.chain.tokenHooks[to]; ok {
		if err := hook(ctx, operator, from, new(big.Int).Set(tokenID)); err != nil {
			return fmt.Errorf("%w: %v", ErrReceiverRejected, err)
		}
	}
	return nil
}

// TokensOf lists the ids owned by account in ascending order.
func (c *Collection) TokensOf(account common.Address) []*big.Int {
	var ids []*big.Int
	for key, owner := range c.owners {
		if owner != account {
			continue
		}
		id, _ := new(big.Int).SetString(key, 10)
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Cmp(ids[j]) < 0 })
	return ids
}

func (c *Collection) setOwner(key string, owner common.Address) {
	prev, had := c.owners[key]
	c.owners[key] = owner
	c.chain.journal.Append(func() {
		if had {
			c.owners[key] = prev
		} else {
			delete(c.owners, key)
		}
	})
}

func (c *Collection) setApproval(key string, to common.Address) {
	prev, had := c.approvals[key]
	if to == (common.Address{}) {
		delete(c.approvals, key)
	} else {
		c.approvals[key] = to
	}
	c.chain.journal.Append(func() {
		if had {
			c.approvals[key] = prev
		} else {
			delete(c.approvals, key)
		}
	})
}
