// Package symbols maps between the canonical BASE_QUOTE contract naming
// and the venue's native symbol naming, and owns the composite order id
// format that qualifies venue order ids with their symbol.
package symbols

import (
	"fmt"
	"strings"
)

const quoteSuffix = "USDT"

// ContractToSymbol converts a canonical contract name to the venue's
// native symbol by stripping the separator: BTC_USDT -> BTCUSDT.
// Empty input yields empty output.
func ContractToSymbol(contract string) string {
	return strings.ReplaceAll(contract, "_", "")
}

// SymbolToContract converts a native symbol back to canonical form by
// inserting the separator before a trailing USDT: BTCUSDT -> BTC_USDT.
// This is a heuristic, not a full reverse mapping: symbols outside the
// USDT quote family pass through unchanged, and the metadata fallback
// path depends on exactly that behaviour.
func SymbolToContract(symbol string) string {
	if base, ok := strings.CutSuffix(symbol, quoteSuffix); ok && base != "" {
		return base + "_" + quoteSuffix
	}
	return symbol
}

// ComposeOrderID builds the composite order identifier that uniquely
// addresses an order across symbols: "BTCUSDT:12345". The format is a
// public, stable wire contract.
func ComposeOrderID(symbol string, orderID int64) string {
	return fmt.Sprintf("%s:%d", symbol, orderID)
}

// ParseOrderID splits a composite order id into its venue symbol and
// venue order id. Bare venue ids are rejected: composite ids are
// mandatory so order addressing stays unambiguous across symbols.
func ParseOrderID(id string) (symbol, orderID string, err error) {
	symbol, orderID, ok := strings.Cut(id, ":")
	if !ok || symbol == "" || orderID == "" {
		return "", "", fmt.Errorf("order id %q is not in SYMBOL:orderId form", id)
	}
	return symbol, orderID, nil
}
