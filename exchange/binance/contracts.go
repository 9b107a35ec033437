package binance

import (
	"context"
	"math"
	"strings"

	"unitflow/internal/numutil"
	"unitflow/internal/symbols"
	"unitflow/logger"
	"unitflow/models"
)

const (
	fallbackStepSize    = 0.001
	fallbackTickSize    = 0.01
	fallbackMinNotional = 5
	fallbackSizeMin     = 1
	fallbackSizeMax     = 1_000_000
)

// staticStepSizes covers the common base assets so trading can continue
// with sane step sizes when the metadata endpoint is unavailable.
var staticStepSizes = map[string]float64{
	"BTC":  0.001,
	"ETH":  0.001,
	"BNB":  0.01,
	"SOL":  1,
	"XRP":  0.1,
	"DOGE": 1,
	"ADA":  1,
	"AVAX": 1,
	"LINK": 0.01,
	"LTC":  0.001,
	"DOT":  0.1,
}

// EnsureContractInfo resolves the trading rules for a contract. The
// result is always non-nil: a cache hit is returned directly, a miss
// triggers at most one bulk metadata refresh per process, and contracts
// the venue does not list degrade to a cached static fallback entry.
// Refresh failures are recovered locally and never surfaced as errors.
func (c *Client) EnsureContractInfo(ctx context.Context, contract string) *models.ContractInfo {
	c.mu.Lock()
	info, ok := c.contracts[contract]
	refreshed := c.refreshed
	c.mu.Unlock()
	if ok {
		return info
	}

	if !refreshed {
		if err := c.refreshContracts(ctx); err != nil {
			c.log.WithComponent("binance_contracts").WithFields(logger.Fields{
				"contract": contract,
			}).WithError(err).Warn("metadata refresh failed, using fallback")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.contracts[contract]; ok {
		return info
	}

	// Venue does not list the contract (or the refresh failed). Cache
	// the fallback so a failing venue call is not retried on every
	// subsequent reference.
	info = fallbackContractInfo(contract)
	c.contracts[contract] = info
	logger.IncrementFallbackHit()
	c.log.WithComponent("binance_contracts").WithFields(logger.Fields{
		"contract":  contract,
		"step_size": info.StepSize,
	}).Warn("contract not in venue metadata, cached static fallback")
	return info
}

// GetContractInfo exposes contract metadata resolution to callers.
func (c *Client) GetContractInfo(ctx context.Context, contract string) *models.ContractInfo {
	return c.EnsureContractInfo(ctx, contract)
}

// ResetContractCache clears every cached entry and re-arms the bulk
// refresh. Test and ops hook; entries are otherwise process-lifetime.
func (c *Client) ResetContractCache() {
	c.mu.Lock()
	c.contracts = make(map[string]*models.ContractInfo)
	c.refreshed = false
	c.mu.Unlock()
}

// refreshContracts performs the single bulk exchange-info fetch and
// populates the cache for every perpetual USDT-quoted contract returned.
// There is no TTL: one successful refresh serves the process lifetime.
func (c *Client) refreshContracts(ctx context.Context) error {
	log := c.log.WithComponent("binance_contracts")

	if err := c.wait(ctx); err != nil {
		return err
	}
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		logger.RecordOperation("metadata_refresh", true)
		return err
	}
	logger.IncrementMetadataRefresh()

	entries := make(map[string]*models.ContractInfo, len(info.Symbols))
	for i := range info.Symbols {
		s := &info.Symbols[i]
		if s.ContractType != "PERPETUAL" || s.QuoteAsset != "USDT" {
			continue
		}

		step := fallbackStepSize
		sizeMin := int64(fallbackSizeMin)
		sizeMax := int64(fallbackSizeMax)
		if lot := s.LotSizeFilter(); lot != nil {
			if v := numutil.SafeParseFloat(lot.StepSize, 0); v > 0 {
				step = v
			}
			if v := numutil.SafeParseFloat(lot.MinQuantity, 0); v > 0 {
				sizeMin = int64(math.Round(v / step))
			}
			if v := numutil.SafeParseFloat(lot.MaxQuantity, 0); v > 0 {
				sizeMax = int64(math.Round(v / step))
			}
		}
		if sizeMin < 1 {
			sizeMin = 1
		}
		if sizeMax < sizeMin {
			sizeMax = sizeMin
		}

		tick := fallbackTickSize
		if pf := s.PriceFilter(); pf != nil {
			if v := numutil.SafeParseFloat(pf.TickSize, 0); v > 0 {
				tick = v
			}
		}

		minNotional := 0.0
		if mn := s.MinNotionalFilter(); mn != nil {
			minNotional = numutil.SafeParseFloat(mn.Notional, 0)
		}

		pricePrecision := s.PricePrecision
		if pricePrecision <= 0 {
			pricePrecision = numutil.PrecisionFromStep(tick)
		}
		quantityPrecision := s.QuantityPrecision
		if quantityPrecision <= 0 {
			quantityPrecision = numutil.PrecisionFromStep(step)
		}

		contract := symbols.SymbolToContract(s.Symbol)
		entries[contract] = &models.ContractInfo{
			Contract:          contract,
			Symbol:            s.Symbol,
			StepSize:          step,
			TickSize:          tick,
			QuantoMultiplier:  step,
			OrderSizeMin:      sizeMin,
			OrderSizeMax:      sizeMax,
			MinNotional:       minNotional,
			PricePrecision:    pricePrecision,
			QuantityPrecision: quantityPrecision,
			BaseAsset:         s.BaseAsset,
			QuoteAsset:        s.QuoteAsset,
		}
	}

	c.mu.Lock()
	for contract, entry := range entries {
		c.contracts[contract] = entry
	}
	c.refreshed = true
	c.mu.Unlock()

	log.WithFields(logger.Fields{"contracts": len(entries)}).Info("contract metadata refreshed")
	return nil
}

// fallbackContractInfo synthesizes trading rules for a contract the
// venue did not report, from the static per-base-asset table.
func fallbackContractInfo(contract string) *models.ContractInfo {
	base, quote, found := strings.Cut(contract, "_")
	if !found {
		base = contract
		quote = "USDT"
	}

	step := fallbackStepSize
	if v, ok := staticStepSizes[base]; ok {
		step = v
	}

	return &models.ContractInfo{
		Contract:          contract,
		Symbol:            symbols.ContractToSymbol(contract),
		StepSize:          step,
		TickSize:          fallbackTickSize,
		QuantoMultiplier:  step,
		OrderSizeMin:      fallbackSizeMin,
		OrderSizeMax:      fallbackSizeMax,
		MinNotional:       fallbackMinNotional,
		PricePrecision:    numutil.PrecisionFromStep(fallbackTickSize),
		QuantityPrecision: numutil.PrecisionFromStep(step),
		BaseAsset:         base,
		QuoteAsset:        quote,
		Fallback:          true,
	}
}
