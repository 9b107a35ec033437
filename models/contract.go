package models

// ContractInfo holds the venue trading rules for one perpetual contract.
// Instances are immutable once constructed; the metadata cache replaces
// them wholesale on refresh.
type ContractInfo struct {
	Contract          string  `json:"contract"`
	Symbol            string  `json:"symbol"`
	StepSize          float64 `json:"step_size"`
	TickSize          float64 `json:"tick_size"`
	QuantoMultiplier  float64 `json:"quanto_multiplier"`
	OrderSizeMin      int64   `json:"order_size_min"`
	OrderSizeMax      int64   `json:"order_size_max"`
	MinNotional       float64 `json:"min_notional"`
	PricePrecision    int     `json:"price_precision"`
	QuantityPrecision int     `json:"quantity_precision"`
	BaseAsset         string  `json:"base_asset"`
	QuoteAsset        string  `json:"quote_asset"`
	Fallback          bool    `json:"fallback"`
}

// Valid reports whether the trading rules satisfy the cache invariants.
func (c *ContractInfo) Valid() bool {
	return c.StepSize > 0 && c.TickSize > 0 &&
		c.OrderSizeMin <= c.OrderSizeMax &&
		c.QuantoMultiplier == c.StepSize
}
