package binance

import (
	"math"

	futures "github.com/adshao/go-binance/v2/futures"

	"unitflow/internal/numutil"
	"unitflow/internal/symbols"
	"unitflow/models"
)

// venueStatus projects the venue's status enum onto the closed
// three-state model. The mapping is one-directional; unrecognized
// statuses stay open so an unknown-but-live order is never dropped.
var venueStatus = map[string]models.OrderStatus{
	"NEW":              models.OrderStatusOpen,
	"PARTIALLY_FILLED": models.OrderStatusOpen,
	"PENDING_CANCEL":   models.OrderStatusOpen,
	"FILLED":           models.OrderStatusFinished,
	"CANCELED":         models.OrderStatusCancelled,
	"REJECTED":         models.OrderStatusCancelled,
	"EXPIRED":          models.OrderStatusCancelled,
}

func normalizeStatus(status string) models.OrderStatus {
	if s, ok := venueStatus[status]; ok {
		return s
	}
	return models.OrderStatusOpen
}

// unitsFromQuantity converts a base-asset quantity into integer units by
// dividing by the step size and rounding to the nearest unit.
func unitsFromQuantity(quantity, step float64) int64 {
	if step <= 0 {
		return 0
	}
	return int64(math.Round(quantity / step))
}

// buildOrderSummary normalizes a raw venue order into the canonical
// representation. Sizes come out as unit counts; the remaining quantity
// is clamped at zero.
func buildOrderSummary(raw models.RawOrder, info *models.ContractInfo) *models.OrderSummary {
	size := unitsFromQuantity(numutil.SafeParseFloat(raw.OrigQuantity, 0), info.StepSize)
	executed := unitsFromQuantity(numutil.SafeParseFloat(raw.ExecutedQuantity, 0), info.StepSize)
	left := size - executed
	if left < 0 {
		left = 0
	}

	createTime := raw.Time
	if createTime == 0 {
		createTime = raw.UpdateTime
	}

	return &models.OrderSummary{
		ID:            symbols.ComposeOrderID(raw.Symbol, raw.OrderID),
		Contract:      info.Contract,
		Status:        normalizeStatus(raw.Status),
		Size:          size,
		Left:          left,
		ExecutedSize:  executed,
		Price:         numutil.SafeParseFloat(raw.Price, 0),
		FillPrice:     numutil.SafeParseFloat(raw.AvgPrice, 0),
		Side:          raw.Side,
		Type:          raw.Type,
		TimeInForce:   raw.TimeInForce,
		ReduceOnly:    raw.ReduceOnly,
		ClientOrderID: raw.ClientOrderID,
		CreateTime:    createTime,
		UpdateTime:    raw.UpdateTime,
	}
}

// buildPositionSummary converts a raw position record into signed units.
// The position-risk endpoint carries no timestamp, so updateTime comes
// from the account endpoint's per-position record; the venue reports no
// realized PnL on either, so that field stays zero.
func buildPositionSummary(p *futures.PositionRisk, info *models.ContractInfo, updateTime int64) models.PositionSummary {
	amount := numutil.SafeParseFloat(p.PositionAmt, 0)
	units := int64(0)
	if info.StepSize > 0 {
		units = int64(math.Round(amount / info.StepSize))
	}

	return models.PositionSummary{
		Contract:         info.Contract,
		Size:             units,
		EntryPrice:       numutil.SafeParseFloat(p.EntryPrice, 0),
		MarkPrice:        numutil.SafeParseFloat(p.MarkPrice, 0),
		Leverage:         numutil.SafeParseFloat(p.Leverage, 0),
		LiquidationPrice: numutil.SafeParseFloat(p.LiquidationPrice, 0),
		UnrealizedPnL:    numutil.SafeParseFloat(p.UnRealizedProfit, 0),
		Margin:           numutil.SafeParseFloat(p.IsolatedMargin, 0),
		MarginType:       p.MarginType,
		UpdateTime:       updateTime,
	}
}

// rawFromOrder adapts the venue's get/list order payload.
func rawFromOrder(o *futures.Order) models.RawOrder {
	return models.RawOrder{
		OrderID:          o.OrderID,
		Symbol:           o.Symbol,
		ClientOrderID:    o.ClientOrderID,
		Price:            o.Price,
		AvgPrice:         o.AvgPrice,
		OrigQuantity:     o.OrigQuantity,
		ExecutedQuantity: o.ExecutedQuantity,
		Status:           string(o.Status),
		TimeInForce:      string(o.TimeInForce),
		Type:             string(o.Type),
		Side:             string(o.Side),
		ReduceOnly:       o.ReduceOnly,
		Time:             o.Time,
		UpdateTime:       o.UpdateTime,
	}
}

// rawFromCreate adapts the order placement response, which carries no
// separate creation timestamp.
func rawFromCreate(o *futures.CreateOrderResponse) models.RawOrder {
	return models.RawOrder{
		OrderID:          o.OrderID,
		Symbol:           o.Symbol,
		ClientOrderID:    o.ClientOrderID,
		Price:            o.Price,
		AvgPrice:         o.AvgPrice,
		OrigQuantity:     o.OrigQuantity,
		ExecutedQuantity: o.ExecutedQuantity,
		Status:           string(o.Status),
		TimeInForce:      string(o.TimeInForce),
		Type:             string(o.Type),
		Side:             string(o.Side),
		ReduceOnly:       o.ReduceOnly,
		UpdateTime:       o.UpdateTime,
	}
}

// rawFromCancel adapts the cancellation response. The venue omits the
// average fill price and update timestamp on this endpoint.
func rawFromCancel(o *futures.CancelOrderResponse) models.RawOrder {
	return models.RawOrder{
		OrderID:          o.OrderID,
		Symbol:           o.Symbol,
		ClientOrderID:    o.ClientOrderID,
		Price:            o.Price,
		OrigQuantity:     o.OrigQuantity,
		ExecutedQuantity: o.ExecutedQuantity,
		Status:           string(o.Status),
		TimeInForce:      string(o.TimeInForce),
		Type:             string(o.Type),
		Side:             string(o.Side),
		ReduceOnly:       o.ReduceOnly,
	}
}
