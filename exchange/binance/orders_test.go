package binance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"unitflow/models"
)

func TestPlaceOrderZeroSize(t *testing.T) {
	var requests atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		serveExchangeInfo(t, w)
	}))

	_, err := client.PlaceOrder(context.Background(), OrderRequest{Contract: "BTC_USDT", Size: 0})
	if !errors.Is(err, ErrZeroSize) {
		t.Fatalf("expected ErrZeroSize, got %v", err)
	}
	if got := requests.Load(); got != 0 {
		t.Errorf("venue requests = %d, want 0", got)
	}
}

func TestPlaceOrderSizeBounds(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serveExchangeInfo(t, w)
	}))
	ctx := context.Background()

	_, err := client.PlaceOrder(ctx, OrderRequest{Contract: "BTC_USDT", Size: 2000000, Price: 50000})
	if !errors.Is(err, ErrSizeAboveMax) {
		t.Fatalf("expected ErrSizeAboveMax, got %v", err)
	}
}

func TestPlaceOrderMarketNotionalTooLow(t *testing.T) {
	var orderRequests atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "exchangeInfo") {
			serveExchangeInfo(t, w)
			return
		}
		orderRequests.Add(1)
		http.NotFound(w, r)
	}))

	// Feed the notional check from an attached stream so the rejection
	// happens entirely before order submission.
	stream := NewMarkPriceStream("", []string{"BTCUSDT"}, client.log)
	stream.handleMessage([]byte(`{"stream":"btcusdt@markPrice@1s","data":{"s":"BTCUSDT","p":"50000"}}`))
	client.AttachStream(stream)

	// 1 unit * 0.001 step * 50000 = 50 notional, below the 100 minimum.
	_, err := client.PlaceOrder(context.Background(), OrderRequest{Contract: "BTC_USDT", Size: 1})
	if !errors.Is(err, ErrNotionalTooLow) {
		t.Fatalf("expected ErrNotionalTooLow, got %v", err)
	}
	if got := orderRequests.Load(); got != 0 {
		t.Errorf("order endpoint requests = %d, want 0", got)
	}
}

func TestPlaceOrderLimit(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "exchangeInfo") {
			serveExchangeInfo(t, w)
			return
		}
		if r.Method != http.MethodPost {
			t.Errorf("order request method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse order form: %v", err)
		}
		if got := r.Form.Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", got)
		}
		if got := r.Form.Get("side"); got != "SELL" {
			t.Errorf("side = %q, want SELL", got)
		}
		if got := r.Form.Get("type"); got != "LIMIT" {
			t.Errorf("type = %q, want LIMIT", got)
		}
		if got := r.Form.Get("quantity"); got != "0.005" {
			t.Errorf("quantity = %q, want 0.005", got)
		}
		if got := r.Form.Get("price"); got != "50000.1" {
			t.Errorf("price = %q, want 50000.1", got)
		}
		if got := r.Form.Get("timeInForce"); got != "GTC" {
			t.Errorf("timeInForce = %q, want GTC", got)
		}
		if got := r.Form.Get("newClientOrderId"); got == "" {
			t.Error("expected a generated client order id")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"orderId": 283194212,
			"symbol": "BTCUSDT",
			"status": "NEW",
			"clientOrderId": "` + r.Form.Get("newClientOrderId") + `",
			"price": "50000.1",
			"avgPrice": "0.00",
			"origQty": "0.005",
			"executedQty": "0",
			"cumQuote": "0",
			"timeInForce": "GTC",
			"type": "LIMIT",
			"reduceOnly": false,
			"side": "SELL",
			"updateTime": 1700000001000
		}`))
	}))

	// The raw price sits between ticks and must floor to 50000.1.
	summary, err := client.PlaceOrder(context.Background(), OrderRequest{
		Contract: "BTC_USDT",
		Size:     -5,
		Price:    50000.19,
	})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}

	if summary.ID != "BTCUSDT:283194212" {
		t.Errorf("id = %q, want BTCUSDT:283194212", summary.ID)
	}
	if summary.Status != models.OrderStatusOpen {
		t.Errorf("status = %q, want %q", summary.Status, models.OrderStatusOpen)
	}
	if summary.Size != 5 {
		t.Errorf("size = %d, want 5", summary.Size)
	}
	if summary.Left != 5 {
		t.Errorf("left = %d, want 5", summary.Left)
	}
	if summary.Side != "SELL" {
		t.Errorf("side = %q, want SELL", summary.Side)
	}
	if summary.CreateTime != 1700000001000 {
		t.Errorf("create time = %d, want update time fallback", summary.CreateTime)
	}
}

func TestGetOrderInvalidID(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))

	for _, id := range []string{"", "283194212", "BTCUSDT:", ":283194212", "BTCUSDT:abc"} {
		if _, err := client.GetOrder(context.Background(), id); !errors.Is(err, ErrInvalidOrderID) {
			t.Errorf("GetOrder(%q): expected ErrInvalidOrderID, got %v", id, err)
		}
	}
}

func TestCancelOrder(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "exchangeInfo") {
			serveExchangeInfo(t, w)
			return
		}
		if r.Method != http.MethodDelete {
			t.Errorf("cancel request method = %s, want DELETE", r.Method)
		}
		// The venue client sends signed DELETE params in the body, so
		// ParseForm would miss them.
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("failed to read cancel body: %v", err)
		}
		params, err := url.ParseQuery(string(body))
		if err != nil {
			t.Fatalf("failed to parse cancel body: %v", err)
		}
		if got := params.Get("orderId"); got != "283194212" {
			t.Errorf("orderId = %q, want 283194212", got)
		}
		if got := params.Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol = %q, want BTCUSDT", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"orderId": 283194212,
			"symbol": "BTCUSDT",
			"status": "CANCELED",
			"clientOrderId": "abc",
			"price": "50000.1",
			"origQty": "0.005",
			"executedQty": "0.002",
			"cumQuote": "100",
			"timeInForce": "GTC",
			"type": "LIMIT",
			"reduceOnly": false,
			"side": "SELL"
		}`))
	}))

	summary, err := client.CancelOrder(context.Background(), "BTCUSDT:283194212")
	if err != nil {
		t.Fatalf("CancelOrder returned error: %v", err)
	}
	if summary.Status != models.OrderStatusCancelled {
		t.Errorf("status = %q, want %q", summary.Status, models.OrderStatusCancelled)
	}
	if summary.ExecutedSize != 2 {
		t.Errorf("executed size = %d, want 2", summary.ExecutedSize)
	}
	if summary.Left != 3 {
		t.Errorf("left = %d, want 3", summary.Left)
	}
}

func TestGetOpenOrders(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "exchangeInfo") {
			serveExchangeInfo(t, w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"orderId": 1,
				"symbol": "BTCUSDT",
				"status": "NEW",
				"clientOrderId": "a",
				"price": "50000",
				"avgPrice": "0",
				"origQty": "0.010",
				"executedQty": "0",
				"timeInForce": "GTC",
				"type": "LIMIT",
				"reduceOnly": false,
				"side": "BUY",
				"time": 1700000000000,
				"updateTime": 1700000000000
			},
			{
				"orderId": 2,
				"symbol": "ETHUSDT",
				"status": "PARTIALLY_FILLED",
				"clientOrderId": "b",
				"price": "3000",
				"avgPrice": "2999.5",
				"origQty": "0.500",
				"executedQty": "0.200",
				"timeInForce": "GTC",
				"type": "LIMIT",
				"reduceOnly": false,
				"side": "SELL",
				"time": 1700000000000,
				"updateTime": 1700000002000
			}
		]`))
	}))

	orders, err := client.GetOpenOrders(context.Background(), "")
	if err != nil {
		t.Fatalf("GetOpenOrders returned error: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("open orders = %d, want 2", len(orders))
	}
	if orders[0].ID != "BTCUSDT:1" || orders[1].ID != "ETHUSDT:2" {
		t.Errorf("ids = %q, %q", orders[0].ID, orders[1].ID)
	}
	if orders[0].Size != 10 {
		t.Errorf("first order size = %d, want 10", orders[0].Size)
	}
	if orders[1].Status != models.OrderStatusOpen {
		t.Errorf("partial fill status = %q, want %q", orders[1].Status, models.OrderStatusOpen)
	}
	if orders[1].Left != 300 {
		t.Errorf("partial fill left = %d, want 300", orders[1].Left)
	}
}

func TestGetPositions(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "exchangeInfo") {
			serveExchangeInfo(t, w)
			return
		}
		if strings.Contains(r.URL.Path, "account") {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"totalWalletBalance": "1000",
				"positions": [
					{"symbol": "BTCUSDT", "positionAmt": "-0.005", "updateTime": 1700000005000},
					{"symbol": "ETHUSDT", "positionAmt": "0", "updateTime": 0}
				]
			}`))
			return
		}
		if !strings.Contains(r.URL.Path, "positionRisk") {
			t.Errorf("unexpected request to %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"symbol": "BTCUSDT",
				"positionAmt": "-0.005",
				"entryPrice": "50000",
				"markPrice": "49000",
				"unRealizedProfit": "5.0",
				"liquidationPrice": "120000",
				"leverage": "10",
				"marginType": "cross",
				"isolatedMargin": "0"
			},
			{
				"symbol": "ETHUSDT",
				"positionAmt": "0",
				"entryPrice": "0",
				"markPrice": "3000",
				"unRealizedProfit": "0",
				"liquidationPrice": "0",
				"leverage": "20",
				"marginType": "cross",
				"isolatedMargin": "0"
			},
			{
				"symbol": "BTCUSDT_250926",
				"positionAmt": "0.010",
				"entryPrice": "51000",
				"markPrice": "51500",
				"unRealizedProfit": "5.0",
				"liquidationPrice": "10000",
				"leverage": "5",
				"marginType": "cross",
				"isolatedMargin": "0"
			}
		]`))
	}))

	positions, err := client.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions returned error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("positions = %d, want 1 (flat and delivery entries skipped)", len(positions))
	}

	p := positions[0]
	if p.Contract != "BTC_USDT" {
		t.Errorf("contract = %q, want BTC_USDT", p.Contract)
	}
	if p.Size != -5 {
		t.Errorf("size = %d, want -5", p.Size)
	}
	if p.EntryPrice != 50000 {
		t.Errorf("entry price = %v, want 50000", p.EntryPrice)
	}
	if p.UnrealizedPnL != 5 {
		t.Errorf("unrealized pnl = %v, want 5", p.UnrealizedPnL)
	}
	if p.Leverage != 10 {
		t.Errorf("leverage = %v, want 10", p.Leverage)
	}
	if p.UpdateTime != 1700000005000 {
		t.Errorf("update time = %d, want account-endpoint timestamp", p.UpdateTime)
	}
}

func TestPlaceOrderBelowMinimum(t *testing.T) {
	body := strings.Replace(exchangeInfoBody, `"minQty": "0.001", "maxQty": "1000", "stepSize": "0.001"`,
		`"minQty": "0.010", "maxQty": "1000", "stepSize": "0.001"`, 1)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))

	// minQty 0.010 over a 0.001 step means ten units minimum.
	_, err := client.PlaceOrder(context.Background(), OrderRequest{Contract: "BTC_USDT", Size: 5, Price: 50000})
	if !errors.Is(err, ErrSizeBelowMin) {
		t.Fatalf("expected ErrSizeBelowMin, got %v", err)
	}
}

func TestPlaceOrderMarketNotionalRestLookup(t *testing.T) {
	var premiumRequests, orderRequests atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "exchangeInfo"):
			serveExchangeInfo(t, w)
		case strings.Contains(r.URL.Path, "premiumIndex"):
			premiumRequests.Add(1)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{
				"symbol": "BTCUSDT",
				"markPrice": "50000",
				"indexPrice": "50001",
				"lastFundingRate": "0.0001",
				"nextFundingTime": 1700000008000,
				"time": 1700000000000
			}]`))
		default:
			orderRequests.Add(1)
			http.NotFound(w, r)
		}
	}))

	// No stream attached, so the notional check resolves the mark price
	// over REST: 1 unit * 0.001 * 50000 = 50, below the 100 minimum.
	_, err := client.PlaceOrder(context.Background(), OrderRequest{Contract: "BTC_USDT", Size: 1})
	if !errors.Is(err, ErrNotionalTooLow) {
		t.Fatalf("expected ErrNotionalTooLow, got %v", err)
	}
	if got := premiumRequests.Load(); got != 1 {
		t.Errorf("premium index requests = %d, want 1", got)
	}
	if got := orderRequests.Load(); got != 0 {
		t.Errorf("order endpoint requests = %d, want 0", got)
	}
}

func TestPlaceOrderMarket(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.Contains(r.URL.Path, "exchangeInfo"):
			serveExchangeInfo(t, w)
		case strings.Contains(r.URL.Path, "premiumIndex"):
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"symbol": "BTCUSDT", "markPrice": "50000"}]`))
		default:
			if err := r.ParseForm(); err != nil {
				t.Fatalf("failed to parse order form: %v", err)
			}
			if got := r.Form.Get("type"); got != "MARKET" {
				t.Errorf("type = %q, want MARKET", got)
			}
			if got := r.Form.Get("quantity"); got != "0.01" {
				t.Errorf("quantity = %q, want 0.01", got)
			}
			if got := r.Form.Get("price"); got != "" {
				t.Errorf("market order carried price %q", got)
			}
			if got := r.Form.Get("timeInForce"); got != "" {
				t.Errorf("market order carried timeInForce %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"orderId": 283194300,
				"symbol": "BTCUSDT",
				"status": "FILLED",
				"clientOrderId": "m",
				"price": "0",
				"avgPrice": "50005.3",
				"origQty": "0.010",
				"executedQty": "0.010",
				"timeInForce": "GTC",
				"type": "MARKET",
				"reduceOnly": false,
				"side": "BUY",
				"updateTime": 1700000003000
			}`))
		}
	}))

	// 10 units * 0.001 * 50000 = 500 notional, clears the 100 minimum.
	summary, err := client.PlaceOrder(context.Background(), OrderRequest{Contract: "BTC_USDT", Size: 10})
	if err != nil {
		t.Fatalf("PlaceOrder returned error: %v", err)
	}
	if summary.Status != models.OrderStatusFinished {
		t.Errorf("status = %q, want %q", summary.Status, models.OrderStatusFinished)
	}
	if summary.ExecutedSize != 10 || summary.Left != 0 {
		t.Errorf("executed = %d, left = %d; want 10, 0", summary.ExecutedSize, summary.Left)
	}
	if summary.FillPrice != 50005.3 {
		t.Errorf("fill price = %v, want 50005.3", summary.FillPrice)
	}
}
