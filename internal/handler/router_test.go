package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/GoPolymarket/tradegate/internal/config"
	"github.com/GoPolymarket/tradegate/internal/middleware"
	"github.com/GoPolymarket/tradegate/internal/model"
	"github.com/GoPolymarket/tradegate/internal/service"
	"github.com/GoPolymarket/tradegate/internal/signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testMarket     = common.HexToAddress("0x000000000000000000000000000000000000e0e0")
	testCurrency   = common.HexToAddress("0x00000000000000000000000000000000000000e7")
	testCollection = common.HexToAddress("0x0000000000000000000000000000000000000721")
	testNow        = time.Unix(1_750_000_000, 0)
)

const adminKey = "admin-secret"

type apiFixture struct {
	t      *testing.T
	router *gin.Engine
	svc    *service.ExchangeService
	buyer  *signer.Signer
	seller *signer.Signer
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clock := func() time.Time { return testNow }

	trades := service.NewTradeService(nil, 100)
	t.Cleanup(trades.Close)
	svc, err := service.NewExchangeService(context.Background(), service.ExchangeOptions{
		ChainID:     1337,
		Market:      testMarket,
		Currency:    testCurrency,
		Decimals:    18,
		Collections: []common.Address{testCollection},
		TradeSink:   trades,
		Clock:       clock,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		Auth:    config.AuthConfig{AdminKey: adminKey, MaxAgeSeconds: 300},
		Metrics: config.MetricsConfig{Enabled: true},
	}
	f := &apiFixture{
		t:      t,
		router: NewRouter(RouterDeps{Config: cfg, Exchange: svc, Trades: trades, Clock: clock}),
		svc:    svc,
	}
	for _, s := range []**signer.Signer{&f.buyer, &f.seller} {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		*s = signer.NewSignerFromKey(key, svc.Domain())
	}
	return f
}

func (f *apiFixture) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	f.t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(f.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) admin(method, path string, body any) *httptest.ResponseRecorder {
	return f.do(method, path, body, map[string]string{middleware.HeaderAdminKey: adminKey})
}

func (f *apiFixture) signed(s *signer.Signer, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(f.t, err)
	ts := strconv.FormatInt(testNow.Unix(), 10)
	sig, err := s.SignText(middleware.RequestDigest(http.MethodPost, path, ts, raw))
	require.NoError(f.t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderAccount, s.Address().Hex())
	req.Header.Set(middleware.HeaderTimestamp, ts)
	req.Header.Set(middleware.HeaderSignature, hexutil.Encode(sig))
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) setupMarket() {
	f.t.Helper()
	w := f.admin(http.MethodPost, "/v1/admin/faucet", model.FaucetRequest{Account: f.buyer.Address(), Amount: big.NewInt(5000), Wrapped: true})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	w = f.admin(http.MethodPost, "/v1/admin/mint", model.MintRequest{Collection: testCollection, To: f.seller.Address(), TokenID: big.NewInt(9)})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())

	w = f.signed(f.buyer, "/v1/wallet/allowance", model.AllowanceRequest{Amount: big.NewInt(5000)})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	w = f.signed(f.seller, "/v1/wallet/operator", model.OperatorRequest{Collection: testCollection, Approved: true})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
}

func (f *apiFixture) fillRequest(price, nonce, tokenID int64) *model.FillRequest {
	agreement := model.OrderAgreement{CurrencyAddress: testCurrency, Price: big.NewInt(price), TokenAddress: testCollection}
	h := signer.HashAgreement(&agreement)
	bid := &model.Bid{
		AgreementHash: h, Nonce: big.NewInt(nonce), TokenID: big.NewInt(tokenID),
		Created: model.Unix(testNow) - 5, Deadline: model.Unix(testNow) + 5,
	}
	ask := &model.Ask{
		AgreementHash: h, Nonce: big.NewInt(nonce), TokenID: big.NewInt(tokenID),
		Created: model.Unix(testNow) - 5, Deadline: model.Unix(testNow) + 5,
	}
	sb, err := f.buyer.SignBid(bid, model.SignatureEIP712)
	require.NoError(f.t, err)
	sa, err := f.seller.SignAsk(ask, model.SignatureEIP712)
	require.NoError(f.t, err)
	return &model.FillRequest{Agreement: agreement, Bid: sb, Ask: sa}
}

func TestFillOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.setupMarket()

	w := f.do(http.MethodPost, "/v1/fills", f.fillRequest(1500, 1, 9), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view struct {
		TradeID      common.Hash    `json:"tradeId"`
		Buyer        common.Address `json:"buyer"`
		Price        *big.Int       `json:"price"`
		PriceDisplay string         `json:"priceDisplay"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, f.buyer.Address(), view.Buyer)
	assert.Equal(t, "1500", view.Price.String())
	assert.Equal(t, "0.0000000000000015", view.PriceDisplay)

	// Replaying the same pair is stale.
	w = f.do(http.MethodPost, "/v1/fills", f.fillRequest(1500, 1, 9), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ORDER_STALE")

	w = f.do(http.MethodGet, "/v1/trades?account="+f.seller.Address().Hex(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Trades []json.RawMessage `json:"trades"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Trades, 1)

	w = f.do(http.MethodGet, "/v1/accounts/"+f.buyer.Address().Hex()+"/nonces/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"used":true`)

	w = f.do(http.MethodGet, "/v1/accounts/"+f.buyer.Address().Hex()+"/tokens/"+testCollection.Hex(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tokens":[9]`)
}

func TestCancellationOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.setupMarket()

	w := f.signed(f.seller, "/v1/nonces/cancel", model.CancelNoncesRequest{Nonces: []*big.Int{big.NewInt(1)}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/v1/fills", f.fillRequest(1500, 1, 9), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.signed(f.seller, "/v1/cancel-before", model.CancelBeforeRequest{Timestamp: model.Unix(testNow) + 100})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.signed(f.seller, "/v1/cancel-before", model.CancelBeforeRequest{Timestamp: model.Unix(testNow)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do(http.MethodGet, "/v1/accounts/"+f.seller.Address().Hex()+"/watermark", nil, nil)
	assert.Contains(t, w.Body.String(), strconv.FormatUint(model.Unix(testNow), 10))

	w = f.do(http.MethodPost, "/v1/nonces/cancel", model.CancelNoncesRequest{Nonces: []*big.Int{big.NewInt(2)}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApprovalPathOverHTTP(t *testing.T) {
	f := newAPIFixture(t)
	f.setupMarket()

	req := f.fillRequest(700, 3, 9)
	req.Ask = model.SignedAsk{Ask: req.Ask.Ask, Signature: f.seller.Address().Bytes(), SignatureKind: model.SignatureNone}

	w := f.do(http.MethodPost, "/v1/fills", req, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.signed(f.seller, "/v1/approvals", model.ApprovalRequest{ContentHash: signer.HashAsk(&req.Ask.Ask), Approved: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/v1/fills", req, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestFillRequiresSignatureKind(t *testing.T) {
	f := newAPIFixture(t)
	f.setupMarket()

	raw, err := json.Marshal(f.fillRequest(700, 4, 9))
	require.NoError(t, err)
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	delete(body["bid"], "signatureKind")

	w := f.do(http.MethodPost, "/v1/fills", body, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
	assert.NotContains(t, w.Body.String(), "approval")
}

func TestAdminOverHTTP(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodPost, "/v1/admin/emergency", model.EmergencyRequest{Enabled: true}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.admin(http.MethodPost, "/v1/admin/emergency", model.EmergencyRequest{Enabled: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"emergencyShutdown":true`)

	w = f.do(http.MethodPost, "/v1/fills", f.fillRequest(10, 1, 9), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "SYSTEM_PANIC")

	capMicros, micros := uint32(60_000), uint32(0)
	w = f.admin(http.MethodPut, "/v1/admin/royalty", model.RoyaltyConfigRequest{CapMicros: &capMicros, Micros: &micros})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	capMicros, micros = 20_000, 10_000
	w = f.admin(http.MethodPut, "/v1/admin/royalty", model.RoyaltyConfigRequest{CapMicros: &capMicros, Micros: &micros})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"micros":10000`)

	w = f.admin(http.MethodPut, "/v1/admin/oracle-signer", model.OracleSignerRequest{Signer: f.buyer.Address()})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHashAndHealth(t *testing.T) {
	f := newAPIFixture(t)

	req := f.fillRequest(10, 1, 9)
	w := f.do(http.MethodPost, "/v1/orders/hash", model.HashRequest{Ask: &req.Ask.Ask}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), signer.HashAsk(&req.Ask.Ask).Hex())

	w = f.do(http.MethodPost, "/v1/orders/hash", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/v1/accounts/not-an-address/watermark", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
