package models

// OrderStatus is the closed three-state projection of the venue's
// richer status enum.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusFinished  OrderStatus = "finished"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// RawOrder is the union of the order fields the venue returns across
// its create/get/cancel/list endpoints. Numeric quantities stay in the
// venue's string form until the summary builder normalizes them.
type RawOrder struct {
	OrderID          int64
	Symbol           string
	ClientOrderID    string
	Price            string
	AvgPrice         string
	OrigQuantity     string
	ExecutedQuantity string
	Status           string
	TimeInForce      string
	Type             string
	Side             string
	ReduceOnly       bool
	Time             int64
	UpdateTime       int64
}

// OrderSummary is the canonical order representation handed to callers.
// Sizes are unit counts (base quantity divided by step size); direction
// is conveyed by Side, not by sign.
type OrderSummary struct {
	ID            string      `json:"id"`
	Contract      string      `json:"contract"`
	Status        OrderStatus `json:"status"`
	Size          int64       `json:"size"`
	Left          int64       `json:"left"`
	ExecutedSize  int64       `json:"executed_size"`
	Price         float64     `json:"price"`
	FillPrice     float64     `json:"fill_price"`
	Side          string      `json:"side"`
	Type          string      `json:"type"`
	TimeInForce   string      `json:"time_in_force"`
	ReduceOnly    bool        `json:"reduce_only"`
	ClientOrderID string      `json:"client_order_id"`
	CreateTime    int64       `json:"create_time"`
	UpdateTime    int64       `json:"update_time"`
}

// PositionSummary is rebuilt on every query and never cached.
// Size is a signed unit count.
type PositionSummary struct {
	Contract         string  `json:"contract"`
	Size             int64   `json:"size"`
	EntryPrice       float64 `json:"entry_price"`
	MarkPrice        float64 `json:"mark_price"`
	Leverage         float64 `json:"leverage"`
	LiquidationPrice float64 `json:"liquidation_price"`
	UnrealizedPnL    float64 `json:"unrealized_pnl"`
	RealizedPnL      float64 `json:"realized_pnl"`
	Margin           float64 `json:"margin"`
	MarginType       string  `json:"margin_type"`
	UpdateTime       int64   `json:"update_time"`
}
