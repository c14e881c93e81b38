package trading

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) Invalidate(userID string) {
	f.invalidated = append(f.invalidated, userID)
}

func newTestHandlers(t *testing.T) (*testEnv, *Handlers, *fakeInvalidator) {
	t.Helper()
	env := newTestEnv(t, "FIFO")
	cache := &fakeInvalidator{}
	handlers := NewHandlers(env.service, env.profiles, cache, zerolog.Nop())
	return env, handlers, cache
}

func tradePost(path, body string) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("X-User-ID", "u1")
	return req
}

func TestHandleBuy_InvalidatesCachedPortfolio(t *testing.T) {
	env, handlers, cache := newTestHandlers(t)
	env.setPrice("TSLA", "150.00")

	w := httptest.NewRecorder()
	handlers.HandleBuy(w, tradePost("/api/trades/buy", `{"symbol":"TSLA","shares":2}`))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var created Transaction
	require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
	assert.Equal(t, "TSLA", created.Symbol)
	assert.Equal(t, KindBuy, created.Kind)

	assert.Equal(t, []string{"u1"}, cache.invalidated, "a buy must drop the cached portfolio")
}

func TestHandleSell_InvalidatesCachedPortfolio(t *testing.T) {
	env, handlers, cache := newTestHandlers(t)
	env.setPrice("TSLA", "100.00")

	_, err := env.service.Buy("u1", "TSLA", 5)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	handlers.HandleSell(w, tradePost("/api/trades/sell", `{"symbol":"TSLA","shares":3}`))

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"u1"}, cache.invalidated, "a sell must drop the cached portfolio")
}

func TestHandleBuy_InsufficientCashKeepsCache(t *testing.T) {
	env, handlers, cache := newTestHandlers(t)
	env.setPrice("TSLA", "150.00")

	w := httptest.NewRecorder()
	handlers.HandleBuy(w, tradePost("/api/trades/buy", `{"symbol":"TSLA","shares":1000}`))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient cash")
	assert.Empty(t, cache.invalidated, "a rejected trade must not touch the cache")
}

func TestHandleSell_InsufficientSharesKeepsCache(t *testing.T) {
	env, handlers, cache := newTestHandlers(t)
	env.setPrice("TSLA", "150.00")

	w := httptest.NewRecorder()
	handlers.HandleSell(w, tradePost("/api/trades/sell", `{"symbol":"TSLA","shares":5}`))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "insufficient shares")
	assert.Empty(t, cache.invalidated)
}

func TestHandleTrade_MissingUserHeader(t *testing.T) {
	_, handlers, cache := newTestHandlers(t)

	req := httptest.NewRequest("POST", "/api/trades/buy", strings.NewReader(`{"symbol":"TSLA","shares":1}`))
	w := httptest.NewRecorder()
	handlers.HandleBuy(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, cache.invalidated)
}

func TestHandleTrade_InvalidBody(t *testing.T) {
	_, handlers, cache := newTestHandlers(t)

	w := httptest.NewRecorder()
	handlers.HandleBuy(w, tradePost("/api/trades/buy", `{not json`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, cache.invalidated)
}

func TestHandleHistory_AnnotatesSells(t *testing.T) {
	env, handlers, _ := newTestHandlers(t)
	env.setPrice("TSLA", "100.00")

	_, err := env.service.Buy("u1", "TSLA", 10)
	require.NoError(t, err)

	env.setPrice("TSLA", "120.00")
	_, err = env.service.Sell("u1", "TSLA", 4)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/api/trades", nil)
	req.Header.Set("X-User-ID", "u1")
	w := httptest.NewRecorder()
	handlers.HandleHistory(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var entries []historyEntry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
	require.Len(t, entries, 2)

	// Most recent first: the sell, annotated
	sell := entries[0]
	assert.Equal(t, KindSell, sell.Kind)
	require.NotNil(t, sell.TotalCGPreTax)
	assert.True(t, sell.TotalCGPreTax.Equal(dec("80.00")), "pre-tax CG = %s", sell.TotalCGPreTax)
	require.NotNil(t, sell.TotalCGTax)
	assert.True(t, sell.TotalCGTax.Equal(dec("24.00")))
	require.NotNil(t, sell.TotalCGPostTax)
	assert.True(t, sell.TotalCGPostTax.Equal(dec("56.00")), "post-tax CG = %s", sell.TotalCGPostTax)
	require.NotNil(t, sell.TotalCGPreTaxPercent)
	pct, ok := sell.TotalCGPreTaxPercent.Decimal()
	require.True(t, ok)
	assert.True(t, pct.Equal(dec("0.1667")), "pre-tax pct = %s", pct)

	// The buy carries no annotations
	buy := entries[1]
	assert.Equal(t, KindBuy, buy.Kind)
	assert.Nil(t, buy.TotalCGPreTax)
	assert.Nil(t, buy.TotalCGPreTaxPercent)
}
