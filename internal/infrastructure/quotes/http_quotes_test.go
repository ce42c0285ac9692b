package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPQuoteSource_GetCurrentPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/price/TCS":
			w.Write([]byte(`{"symbol":"TCS","price":3500.55}`))
		case "/api/price/ZERO":
			w.Write([]byte(`{"symbol":"ZERO","price":0}`))
		default:
			http.Error(w, "unknown symbol", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	q := NewHTTPQuoteSource(srv.URL+"/", time.Second)
	ctx := context.Background()

	price, err := q.GetCurrentPrice(ctx, "TCS")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("3500.55")), "got %s", price)

	_, err = q.GetCurrentPrice(ctx, "ZERO")
	assert.Error(t, err)

	_, err = q.GetCurrentPrice(ctx, "NOPE")
	assert.ErrorContains(t, err, "404")
}
