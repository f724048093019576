package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/chainsafe/switchly-settlement/pkg/app/errors"
	"github.com/chainsafe/switchly-settlement/pkg/quote"
	"github.com/chainsafe/switchly-settlement/pkg/settlement"
	"github.com/chainsafe/switchly-settlement/pkg/swap"
)

type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func newTestRouter(svc Service, guard func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	RegisterRoutes(r, svc, guard, zap.NewNop())
	return r
}

func serve(handler http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var got errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return got
}

func TestQuoteHTTP(t *testing.T) {
	svc := new(mockService)
	svc.On("Quote", mock.Anything, &swap.QuoteRequest{From: "BTC.BTC", To: "ETH.ETH", Amount: decimal.RequireFromString("1.5")}).
		Return(&swap.QuoteResponse{Available: true, Quote: &quote.Quote{From: "BTC.BTC", To: "ETH.ETH", OutputAmount: decimal.RequireFromString("2.5")}}, nil)

	rec := serve(newTestRouter(svc, nil), http.MethodGet, "/quote?from=BTC.BTC&to=ETH.ETH&amount=1.5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got swap.QuoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Available)
	assert.True(t, got.Quote.OutputAmount.Equal(decimal.RequireFromString("2.5")))
	svc.AssertExpectations(t)
}

func TestQuoteHTTP_NoLiquidityIsNotAnError(t *testing.T) {
	svc := new(mockService)
	svc.On("Quote", mock.Anything, mock.Anything).Return(&swap.QuoteResponse{Reason: swap.ReasonNoLiquidity}, nil)

	rec := serve(newTestRouter(svc, nil), http.MethodGet, "/quote?from=BTC.BTC&to=XLM.XLM&amount=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":false,"reason":"no liquidity"}`, rec.Body.String())
}

func TestQuoteHTTP_InvalidAmount(t *testing.T) {
	svc := new(mockService)

	rec := serve(newTestRouter(svc, nil), http.MethodGet, "/quote?from=BTC.BTC&to=ETH.ETH&amount=lots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid amount", decodeError(t, rec).Error)
	svc.AssertNotCalled(t, "Quote", mock.Anything, mock.Anything)
}

func TestQuoteHTTP_BridgeDown(t *testing.T) {
	svc := new(mockService)
	svc.On("Quote", mock.Anything, mock.Anything).Return(nil, apperrors.DependencyError(nil, "bridge network unavailable"))

	rec := serve(newTestRouter(svc, nil), http.MethodGet, "/quote?from=BTC.BTC&to=ETH.ETH&amount=1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "bridge network unavailable", decodeError(t, rec).Error)
}

func TestPoolsAndRateHTTP(t *testing.T) {
	svc := new(mockService)
	svc.On("ListPools", mock.Anything).Return(&swap.PoolsResponse{Bridge: "SWITCH.SWITCH", Pools: []swap.Pool{{Ticker: "BTC.BTC"}}}, nil)
	svc.On("Rate", mock.Anything, "BTC.BTC", "ETH.ETH").Return(&swap.RateResponse{From: "BTC.BTC", To: "ETH.ETH", Available: true, Rate: decimal.RequireFromString("1.8")}, nil)
	router := newTestRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/pools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pools swap.PoolsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pools))
	assert.Equal(t, "SWITCH.SWITCH", pools.Bridge)
	assert.Len(t, pools.Pools, 1)

	rec = serve(router, http.MethodGet, "/rate?from=BTC.BTC&to=ETH.ETH", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rate swap.RateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rate))
	assert.True(t, rate.Rate.Equal(decimal.RequireFromString("1.8")))
	svc.AssertExpectations(t)
}

func TestMatchMemoHTTP(t *testing.T) {
	svc := new(mockService)
	svc.On("MatchMemo", mock.Anything, &swap.MatchRequest{Memo: "OUT:ABCD", SourceHash: "0xabcd"}).
		Return(&swap.MatchResponse{Match: true, Kind: "OUT", Truncated: "ABCD"}, nil)

	rec := serve(newTestRouter(svc, nil), http.MethodGet, "/memo/match?memo=OUT:ABCD&hash=0xabcd", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"match":true,"kind":"OUT","truncated":"ABCD"}`, rec.Body.String())
}

func TestStartSettlementHTTP(t *testing.T) {
	id := uuid.New()
	svc := new(mockService)
	svc.On("StartSettlement", mock.Anything, &settlement.Request{SourceChain: "ETH", SourceHash: "0xaa", Memo: "SWAP:XLM.XLM:GDEST"}).
		Return(&settlement.Status{ID: id, State: settlement.StateSent}, nil)

	body := []byte(`{"source_chain":"ETH","source_hash":"0xaa","memo":"SWAP:XLM.XLM:GDEST"}`)
	rec := serve(newTestRouter(svc, nil), http.MethodPost, "/settlements", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var got settlement.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, settlement.StateSent, got.State)
	svc.AssertExpectations(t)
}

func TestStartSettlementHTTP_InvalidJSON(t *testing.T) {
	svc := new(mockService)

	rec := serve(newTestRouter(svc, nil), http.MethodPost, "/settlements", []byte("{invalid"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON", decodeError(t, rec).Error)
}

func TestSettlementHTTP_Guard(t *testing.T) {
	svc := new(mockService)
	svc.On("ListSettlements", mock.Anything, 0).Return([]*settlement.Status{}, nil)

	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	router := newTestRouter(svc, deny)

	rec := serve(router, http.MethodPost, "/settlements", []byte(`{}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = serve(router, http.MethodDelete, "/settlements/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(router, http.MethodGet, "/settlements", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertNotCalled(t, "StartSettlement", mock.Anything, mock.Anything)
}

func TestGetAndCancelSettlementHTTP(t *testing.T) {
	id := uuid.New()
	svc := new(mockService)
	svc.On("GetSettlement", mock.Anything, id).Return(&settlement.Status{ID: id, State: settlement.StateCompleted}, nil)
	svc.On("CancelSettlement", mock.Anything, id).Return(&settlement.Status{ID: id, State: settlement.StateSent, Cancelled: true}, nil)
	missing := uuid.New()
	svc.On("GetSettlement", mock.Anything, missing).Return(nil, apperrors.ResourceNotFoundError(nil, "settlement not found"))
	router := newTestRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/settlements/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(router, http.MethodDelete, "/settlements/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got settlement.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Cancelled)

	rec = serve(router, http.MethodGet, "/settlements/"+missing.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, http.MethodGet, "/settlements/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid settlement id", decodeError(t, rec).Error)
}

func TestListSettlementsHTTP(t *testing.T) {
	svc := new(mockService)
	svc.On("ListSettlements", mock.Anything, 5).Return([]*settlement.Status{{ID: uuid.New()}}, nil)
	router := newTestRouter(svc, nil)

	rec := serve(router, http.MethodGet, "/settlements?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []settlement.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)

	rec = serve(router, http.MethodGet, "/settlements?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
