// Package binance implements the venue-facing client: contract metadata
// resolution, order normalization and the typed order-lifecycle surface
// over Binance USDT-margined perpetual futures.
package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	futures "github.com/adshao/go-binance/v2/futures"
	"golang.org/x/time/rate"

	"unitflow/config"
	"unitflow/internal/numutil"
	"unitflow/logger"
	"unitflow/models"
)

// ErrMissingCredentials is returned by New when no API key/secret pair
// is configured. Construction never proceeds without credentials.
var ErrMissingCredentials = errors.New("venue API key and secret are required")

// Client owns the contract metadata cache, the quanto multiplier cache
// and every order-lifecycle operation. A single instance is constructed
// by the application's composition root and shared; all methods are safe
// for concurrent use.
type Client struct {
	cfg     *config.Config
	api     *futures.Client
	limiter *rate.Limiter
	log     *logger.Log
	stream  *MarkPriceStream

	mu        sync.Mutex
	contracts map[string]*models.ContractInfo
	refreshed bool

	quantoMu sync.Mutex
	quanto   map[string]float64
}

// New builds a client from the provided configuration. Missing
// credentials are a hard construction-time failure.
func New(cfg *config.Config) (*Client, error) {
	log := logger.GetLogger()

	if cfg.Venue.APIKey == "" || cfg.Venue.APISecret == "" {
		return nil, ErrMissingCredentials
	}

	futures.UseTestnet = cfg.Venue.Testnet

	transport := &http.Transport{
		MaxIdleConns:        cfg.Venue.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Venue.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Venue.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Venue.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Venue.Timeout,
	}

	api := futures.NewClient(cfg.Venue.APIKey, cfg.Venue.APISecret)
	api.HTTPClient = httpClient
	if cfg.Venue.BaseURL != "" {
		api.SetApiEndpoint(cfg.Venue.BaseURL)
	}

	client := &Client{
		cfg:       cfg,
		api:       api,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Venue.RateLimit.RequestsPerSecond), cfg.Venue.RateLimit.BurstSize),
		log:       log,
		contracts: make(map[string]*models.ContractInfo),
		quanto:    make(map[string]float64),
	}

	log.WithComponent("binance_client").WithFields(logger.Fields{
		"testnet":            cfg.Venue.Testnet,
		"timeout":            cfg.Venue.Timeout,
		"max_idle_conns":     cfg.Venue.ConnectionPool.MaxIdleConns,
		"max_conns_per_host": cfg.Venue.ConnectionPool.MaxConnsPerHost,
	}).Info("binance client initialized")

	return client, nil
}

// AttachStream wires a mark price stream into the client. When present
// the stream's last price is preferred over a REST lookup during the
// market-order notional check.
func (c *Client) AttachStream(s *MarkPriceStream) {
	c.stream = s
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// GetFuturesTicker returns the venue's 24h ticker for one contract.
func (c *Client) GetFuturesTicker(ctx context.Context, contract string) (*models.FuturesTicker, error) {
	log := c.log.WithComponent("binance_market").WithFields(logger.Fields{"contract": contract})

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	info := c.EnsureContractInfo(ctx, contract)
	stats, err := c.api.NewListPriceChangeStatsService().Symbol(info.Symbol).Do(ctx)
	if err != nil {
		logger.RecordOperation("ticker", true)
		log.WithError(err).Warn("failed to fetch ticker")
		return nil, err
	}
	logger.RecordOperation("ticker", false)
	if len(stats) == 0 {
		return nil, fmt.Errorf("no ticker returned for %s", info.Symbol)
	}

	s := stats[0]
	return &models.FuturesTicker{
		Contract:      info.Contract,
		Last:          numutil.SafeParseFloat(s.LastPrice, 0),
		High:          numutil.SafeParseFloat(s.HighPrice, 0),
		Low:           numutil.SafeParseFloat(s.LowPrice, 0),
		Volume:        numutil.SafeParseFloat(s.Volume, 0),
		ChangePercent: numutil.SafeParseFloat(s.PriceChangePercent, 0),
	}, nil
}

// GetFuturesCandles returns up to limit klines for the given interval.
func (c *Client) GetFuturesCandles(ctx context.Context, contract, interval string, limit int) ([]models.Candle, error) {
	log := c.log.WithComponent("binance_market").WithFields(logger.Fields{"contract": contract, "interval": interval})

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	info := c.EnsureContractInfo(ctx, contract)
	svc := c.api.NewKlinesService().Symbol(info.Symbol).Interval(interval)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		logger.RecordOperation("candles", true)
		log.WithError(err).Warn("failed to fetch candles")
		return nil, err
	}
	logger.RecordOperation("candles", false)

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, models.Candle{
			OpenTime:  k.OpenTime,
			Open:      numutil.SafeParseFloat(k.Open, 0),
			High:      numutil.SafeParseFloat(k.High, 0),
			Low:       numutil.SafeParseFloat(k.Low, 0),
			Close:     numutil.SafeParseFloat(k.Close, 0),
			Volume:    numutil.SafeParseFloat(k.Volume, 0),
			CloseTime: k.CloseTime,
		})
	}
	return candles, nil
}

// GetFundingRate returns the latest funding state for one contract.
func (c *Client) GetFundingRate(ctx context.Context, contract string) (*models.FundingRate, error) {
	log := c.log.WithComponent("binance_market").WithFields(logger.Fields{"contract": contract})

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	info := c.EnsureContractInfo(ctx, contract)
	premiums, err := c.api.NewPremiumIndexService().Symbol(info.Symbol).Do(ctx)
	if err != nil {
		logger.RecordOperation("funding_rate", true)
		log.WithError(err).Warn("failed to fetch funding rate")
		return nil, err
	}
	logger.RecordOperation("funding_rate", false)
	if len(premiums) == 0 {
		return nil, fmt.Errorf("no premium index returned for %s", info.Symbol)
	}

	p := premiums[0]
	return &models.FundingRate{
		Contract:        info.Contract,
		Rate:            numutil.SafeParseFloat(p.LastFundingRate, 0),
		MarkPrice:       numutil.SafeParseFloat(p.MarkPrice, 0),
		IndexPrice:      numutil.SafeParseFloat(p.IndexPrice, 0),
		NextFundingTime: p.NextFundingTime,
	}, nil
}

// GetFuturesAccount returns a typed view of the futures account.
func (c *Client) GetFuturesAccount(ctx context.Context) (*models.AccountSummary, error) {
	log := c.log.WithComponent("binance_account")

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	acct, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		logger.RecordOperation("account", true)
		log.WithError(err).Warn("failed to fetch account")
		return nil, err
	}
	logger.RecordOperation("account", false)

	summary := &models.AccountSummary{
		TotalWalletBalance: numutil.SafeParseFloat(acct.TotalWalletBalance, 0),
		TotalUnrealizedPnL: numutil.SafeParseFloat(acct.TotalUnrealizedProfit, 0),
		AvailableBalance:   numutil.SafeParseFloat(acct.AvailableBalance, 0),
	}
	for _, a := range acct.Assets {
		summary.Assets = append(summary.Assets, models.AccountAsset{
			Asset:            a.Asset,
			WalletBalance:    numutil.SafeParseFloat(a.WalletBalance, 0),
			UnrealizedPnL:    numutil.SafeParseFloat(a.UnrealizedProfit, 0),
			AvailableBalance: numutil.SafeParseFloat(a.AvailableBalance, 0),
		})
	}
	return summary, nil
}

// GetOrderBook returns a depth snapshot for one contract.
func (c *Client) GetOrderBook(ctx context.Context, contract string, limit int) (*models.OrderBook, error) {
	log := c.log.WithComponent("binance_market").WithFields(logger.Fields{"contract": contract})

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	info := c.EnsureContractInfo(ctx, contract)
	svc := c.api.NewDepthService().Symbol(info.Symbol)
	if limit > 0 {
		svc = svc.Limit(limit)
	}
	depth, err := svc.Do(ctx)
	if err != nil {
		logger.RecordOperation("order_book", true)
		log.WithError(err).Warn("failed to fetch order book")
		return nil, err
	}
	logger.RecordOperation("order_book", false)

	book := &models.OrderBook{
		Contract:     info.Contract,
		LastUpdateID: depth.LastUpdateID,
		Timestamp:    time.UnixMilli(depth.Time),
	}
	for _, b := range depth.Bids {
		book.Bids = append(book.Bids, models.OrderBookLevel{
			Price:    numutil.SafeParseFloat(b.Price, 0),
			Quantity: numutil.SafeParseFloat(b.Quantity, 0),
		})
	}
	for _, a := range depth.Asks {
		book.Asks = append(book.Asks, models.OrderBookLevel{
			Price:    numutil.SafeParseFloat(a.Price, 0),
			Quantity: numutil.SafeParseFloat(a.Quantity, 0),
		})
	}
	return book, nil
}

// SetLeverage changes the leverage for one contract. A venue failure is
// treated as non-fatal: it is logged and a nil result is returned so the
// caller's flow continues.
func (c *Client) SetLeverage(ctx context.Context, contract string, leverage int) *models.LeverageSetting {
	log := c.log.WithComponent("binance_account").WithFields(logger.Fields{"contract": contract, "leverage": leverage})

	if err := c.wait(ctx); err != nil {
		log.WithError(err).Warn("leverage change aborted")
		return nil
	}
	info := c.EnsureContractInfo(ctx, contract)
	res, err := c.api.NewChangeLeverageService().Symbol(info.Symbol).Leverage(leverage).Do(ctx)
	if err != nil {
		logger.RecordOperation("set_leverage", true)
		log.WithError(err).Warn("failed to set leverage")
		return nil
	}
	logger.RecordOperation("set_leverage", false)

	return &models.LeverageSetting{
		Contract:    info.Contract,
		Leverage:    res.Leverage,
		MaxNotional: numutil.SafeParseFloat(res.MaxNotionalValue, 0),
	}
}

// markPrice resolves the current mark price for a symbol, preferring the
// attached websocket stream over a REST lookup.
func (c *Client) markPrice(ctx context.Context, info *models.ContractInfo) (float64, error) {
	if c.stream != nil {
		if p, ok := c.stream.Price(info.Symbol); ok {
			return p, nil
		}
	}

	funding, err := c.GetFundingRate(ctx, info.Contract)
	if err != nil {
		return 0, err
	}
	return funding.MarkPrice, nil
}
