package middleware

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/GoPolymarket/tradegate/internal/pkg/apperrors"
	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
)

const (
	HeaderAccount   = "X-Account"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"

	ContextAccountKey = "account"
)

// RequestDigest is the message an account signs (personal_sign) to
// authenticate a request: keccak256(method || path || timestamp || body).
func RequestDigest(method, path, timestamp string, body []byte) []byte {
	return crypto.Keccak256([]byte(method), []byte(path), []byte(timestamp), body)
}

// AccountAuthMiddleware authenticates the account named in X-Account by
// its signature over the request. Timestamps further than maxAge from now
// in either direction are rejected, and each signed request is accepted
// once. A nil guard uses a MemoryReplayGuard.
func AccountAuthMiddleware(maxAge time.Duration, now func() time.Time, guard ReplayGuard) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	if guard == nil {
		guard = NewMemoryReplayGuard(now)
	}
	return func(c *gin.Context) {
		fail := func(msg string, cause error) {
			c.Error(apperrors.New(apperrors.ErrAuthFailed, msg, cause))
			c.Abort()
		}

		accountHex := c.GetHeader(HeaderAccount)
		if !common.IsHexAddress(accountHex) {
			fail("missing or invalid "+HeaderAccount, nil)
			return
		}
		tsRaw := c.GetHeader(HeaderTimestamp)
		ts, err := strconv.ParseInt(tsRaw, 10, 64)
		if err != nil {
			fail("missing or invalid "+HeaderTimestamp, err)
			return
		}
		if age := now().Sub(time.Unix(ts, 0)); age > maxAge || age < -maxAge {
			fail("request timestamp outside accepted window", nil)
			return
		}
		sig, err := hexutil.Decode(c.GetHeader(HeaderSignature))
		if err != nil {
			fail("missing or invalid "+HeaderSignature, err)
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				c.Error(apperrors.NewInvalidRequest("unreadable body"))
				c.Abort()
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		digest := RequestDigest(c.Request.Method, c.Request.URL.Path, tsRaw, body)
		author, err := signer.RecoverText(digest, sig)
		if err != nil {
			fail("invalid request signature", err)
			return
		}
		account := common.HexToAddress(accountHex)
		if author != account {
			fail("request signed by "+author.Hex()+", not "+account.Hex(), nil)
			return
		}
		// Held for the whole window the timestamp could still be accepted in.
		fresh, err := guard.Claim(c.Request.Context(), ReplayKey(account, digest), 2*maxAge)
		if err != nil {
			c.Error(apperrors.New(apperrors.ErrInternal, "replay check failed", err))
			c.Abort()
			return
		}
		if !fresh {
			fail("request already used", nil)
			return
		}
		c.Set(ContextAccountKey, account)
		c.Next()
	}
}

// ReplayKey identifies one signed request of account.
func ReplayKey(account common.Address, digest []byte) string {
	return strings.ToLower(account.Hex()) + ":" + hexutil.Encode(digest)
}

// AccountFrom returns the authenticated account, if any.
func AccountFrom(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(ContextAccountKey)
	if !ok {
		return common.Address{}, false
	}
	account, ok := v.(common.Address)
	return account, ok
}
