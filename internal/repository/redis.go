package repository

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/GoPolymarket/tradegate/internal/config"
	"github.com/GoPolymarket/tradegate/internal/ledger"
	"github.com/GoPolymarket/tradegate/internal/middleware"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// RedisLedgerBackend stores cancellation and approval records:
//
//	<prefix>:nonces:<account>     set of consumed nonces (decimal)
//	<prefix>:approvals:<account>  set of approved content hashes
//	<prefix>:watermarks           hash account -> cancelBefore timestamp
type RedisLedgerBackend struct {
	client *redis.Client
	prefix string
}

var _ ledger.Backend = (*RedisLedgerBackend)(nil)

func NewRedisLedgerBackend(client *redis.Client, prefix string) *RedisLedgerBackend {
	if prefix == "" {
		prefix = "tradegate"
	}
	return &RedisLedgerBackend{client: client, prefix: prefix}
}

func (b *RedisLedgerBackend) noncesKey(account common.Address) string {
	return fmt.Sprintf("%s:nonces:%s", b.prefix, strings.ToLower(account.Hex()))
}

func (b *RedisLedgerBackend) approvalsKey(account common.Address) string {
	return fmt.Sprintf("%s:approvals:%s", b.prefix, strings.ToLower(account.Hex()))
}

func (b *RedisLedgerBackend) watermarksKey() string {
	return b.prefix + ":watermarks"
}

// Apply writes the changeset in one MULTI/EXEC transaction.
func (b *RedisLedgerBackend) Apply(ctx context.Context, cs *ledger.Changeset) error {
	if cs.Empty() {
		return nil
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, r := range cs.Nonces {
			pipe.SAdd(ctx, b.noncesKey(r.Account), r.Nonce.String())
		}
		for _, r := range cs.Watermarks {
			pipe.HSet(ctx, b.watermarksKey(), strings.ToLower(r.Account.Hex()), r.Timestamp)
		}
		for _, r := range cs.Approvals {
			if r.Approved {
				pipe.SAdd(ctx, b.approvalsKey(r.Account), r.ContentHash.Hex())
			} else {
				pipe.SRem(ctx, b.approvalsKey(r.Account), r.ContentHash.Hex())
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis ledger apply: %w", err)
	}
	return nil
}

func (b *RedisLedgerBackend) Load(ctx context.Context) (*ledger.Changeset, error) {
	cs := &ledger.Changeset{}

	err := b.scanSets(ctx, b.prefix+":nonces:*", func(account common.Address, members []string) error {
		for _, m := range members {
			n, ok := new(big.Int).SetString(m, 10)
			if !ok {
				return fmt.Errorf("corrupt nonce %q for %s", m, account.Hex())
			}
			cs.Nonces = append(cs.Nonces, ledger.NonceRecord{Account: account, Nonce: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = b.scanSets(ctx, b.prefix+":approvals:*", func(account common.Address, members []string) error {
		for _, m := range members {
			cs.Approvals = append(cs.Approvals, ledger.ApprovalRecord{
				Account:     account,
				ContentHash: common.HexToHash(m),
				Approved:    true,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	marks, err := b.client.HGetAll(ctx, b.watermarksKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ledger load watermarks: %w", err)
	}
	for account, raw := range marks {
		ts, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || !common.IsHexAddress(account) {
			return nil, fmt.Errorf("corrupt watermark %s=%q", account, raw)
		}
		cs.Watermarks = append(cs.Watermarks, ledger.WatermarkRecord{Account: common.HexToAddress(account), Timestamp: ts})
	}
	return cs, nil
}

func (b *RedisLedgerBackend) scanSets(ctx context.Context, pattern string, fn func(common.Address, []string) error) error {
	iter := b.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		account := key[strings.LastIndex(key, ":")+1:]
		if !common.IsHexAddress(account) {
			continue
		}
		members, err := b.client.SMembers(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("redis ledger load %s: %w", key, err)
		}
		if err := fn(common.HexToAddress(account), members); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis ledger scan: %w", err)
	}
	return nil
}

// RedisReplayGuard shares seen request signatures across instances.
type RedisReplayGuard struct {
	client *redis.Client
	prefix string
}

var _ middleware.ReplayGuard = (*RedisReplayGuard)(nil)

func NewRedisReplayGuard(client *redis.Client, prefix string) *RedisReplayGuard {
	if prefix == "" {
		prefix = "tradegate"
	}
	return &RedisReplayGuard{client: client, prefix: prefix}
}

func (g *RedisReplayGuard) replayKey(key string) string {
	return g.prefix + ":replay:" + key
}

func (g *RedisReplayGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.replayKey(key), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis replay claim: %w", err)
	}
	return ok, nil
}
