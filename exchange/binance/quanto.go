package binance

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"unitflow/logger"
)

const defaultQuantoMultiplier = 0.01

// staticQuantoMultipliers is the offline table used when the venue
// cannot be reached. Values mirror the contract step sizes but live in
// their own table so the resolver stays usable on its own.
var staticQuantoMultipliers = map[string]float64{
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

// QuantoMultiplier resolves the contract multiplier, the quote value of
// one contract unit. The resolver keeps its own cache, separate from
// the contract metadata cache, so preloaded multipliers survive a
// metadata reset.
func (c *Client) QuantoMultiplier(ctx context.Context, contract string, useCache bool) float64 {
	if useCache {
		c.quantoMu.Lock()
		mult, ok := c.quanto[contract]
		c.quantoMu.Unlock()
		if ok {
			return mult
		}
	}

	mult, _ := c.quantoMultiplier(ctx, contract)

	c.quantoMu.Lock()
	c.quanto[contract] = mult
	c.quantoMu.Unlock()
	return mult
}

// quantoMultiplier performs one resolution attempt against the venue,
// falling back to the static table. The second return reports whether
// the venue supplied the value.
func (c *Client) quantoMultiplier(ctx context.Context, contract string) (float64, bool) {
	info := c.EnsureContractInfo(ctx, contract)
	if !info.Fallback && info.QuantoMultiplier > 0 {
		return info.QuantoMultiplier, true
	}

	base, _, _ := strings.Cut(contract, "_")
	mult, ok := staticQuantoMultipliers[base]
	if !ok {
		mult = defaultQuantoMultiplier
	}
	c.log.WithComponent("binance_quanto").WithFields(logger.Fields{
		"contract":   contract,
		"multiplier": mult,
	}).Warn("using static quanto multiplier")
	logger.IncrementFallbackHit()
	return mult, false
}

// ClearQuantoCache drops cached multipliers. With no arguments the
// whole cache is cleared.
func (c *Client) ClearQuantoCache(contracts ...string) {
	c.quantoMu.Lock()
	defer c.quantoMu.Unlock()
	if len(contracts) == 0 {
		c.quanto = make(map[string]float64)
		return
	}
	for _, contract := range contracts {
		delete(c.quanto, contract)
	}
}

// PreloadResult summarizes a concurrent multiplier preload.
type PreloadResult struct {
	Resolved int
	FromAPI  int
}

// PreloadQuantoMultipliers resolves multipliers for a set of contracts
// concurrently and caches every result. Each contract resolves to a
// usable value even when the venue is unreachable.
func (c *Client) PreloadQuantoMultipliers(ctx context.Context, contracts []string) PreloadResult {
	var wg sync.WaitGroup
	var fromAPI atomic.Int64

	for _, contract := range contracts {
		wg.Add(1)
		go func(contract string) {
			defer wg.Done()
			mult, api := c.quantoMultiplier(ctx, contract)
			if api {
				fromAPI.Add(1)
			}
			c.quantoMu.Lock()
			c.quanto[contract] = mult
			c.quantoMu.Unlock()
		}(contract)
	}
	wg.Wait()

	res := PreloadResult{Resolved: len(contracts), FromAPI: int(fromAPI.Load())}
	c.log.WithComponent("binance_quanto").WithFields(logger.Fields{
		"contracts": res.Resolved,
		"from_api":  res.FromAPI,
	}).Info("quanto multipliers preloaded")
	return res
}
