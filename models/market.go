package models

import "time"

// FuturesTicker is a thin typed view of the venue's 24h ticker.
type FuturesTicker struct {
	Contract      string  `json:"contract"`
	Last          float64 `json:"last"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Volume        float64 `json:"volume"`
	ChangePercent float64 `json:"change_percent"`
}

// Candle is one kline bar.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	CloseTime int64   `json:"close_time"`
}

// OrderBookLevel represents a single price level.
type OrderBookLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// OrderBook is a depth snapshot for one contract.
type OrderBook struct {
	Contract     string           `json:"contract"`
	Bids         []OrderBookLevel `json:"bids"`
	Asks         []OrderBookLevel `json:"asks"`
	LastUpdateID int64            `json:"last_update_id"`
	Timestamp    time.Time        `json:"timestamp"`
}

// FundingRate carries the current funding state for one contract.
type FundingRate struct {
	Contract        string  `json:"contract"`
	Rate            float64 `json:"rate"`
	MarkPrice       float64 `json:"mark_price"`
	IndexPrice      float64 `json:"index_price"`
	NextFundingTime int64   `json:"next_funding_time"`
}

// AccountAsset is one asset balance within the futures account.
type AccountAsset struct {
	Asset            string  `json:"asset"`
	WalletBalance    float64 `json:"wallet_balance"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	AvailableBalance float64 `json:"available_balance"`
}

// AccountSummary is a typed view of the futures account endpoint.
type AccountSummary struct {
	TotalWalletBalance float64        `json:"total_wallet_balance"`
	TotalUnrealizedPnL float64        `json:"total_unrealized_pnl"`
	AvailableBalance   float64        `json:"available_balance"`
	Assets             []AccountAsset `json:"assets"`
}

// LeverageSetting is the result of a leverage change.
type LeverageSetting struct {
	Contract    string  `json:"contract"`
	Leverage    int     `json:"leverage"`
	MaxNotional float64 `json:"max_notional"`
}
