package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	futures "github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"

	"unitflow/internal/numutil"
	"unitflow/internal/symbols"
	"unitflow/logger"
	"unitflow/models"
)

// Validation errors are raised synchronously, before any network call,
// and are never retried.
var (
	ErrZeroSize       = errors.New("order size must be a non-zero unit count")
	ErrSizeBelowMin   = errors.New("order size below contract minimum")
	ErrSizeAboveMax   = errors.New("order size above contract maximum")
	ErrNotionalTooLow = errors.New("order notional below contract minimum")
	ErrInvalidOrderID = errors.New("invalid composite order id")
)

// OrderRequest describes an order in the venue-agnostic contract/units
// model. Size is a signed unit count: positive buys, negative sells.
// Price zero means a market order.
type OrderRequest struct {
	Contract      string
	Size          int64
	Price         float64
	TimeInForce   string
	ReduceOnly    bool
	ClientOrderID string
}

// PlaceOrder validates, normalizes and submits an order, returning the
// canonical summary of the created order. Validation failures surface
// before any network call; venue rejections propagate unmodified.
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*models.OrderSummary, error) {
	log := c.log.WithComponent("binance_orders").WithFields(logger.Fields{
		"contract": req.Contract,
		"size":     req.Size,
	})

	if req.Size == 0 {
		return nil, fmt.Errorf("%w: contract %s", ErrZeroSize, req.Contract)
	}

	info := c.EnsureContractInfo(ctx, req.Contract)

	units := req.Size
	side := futures.SideTypeBuy
	if units < 0 {
		units = -units
		side = futures.SideTypeSell
	}
	if units < info.OrderSizeMin {
		return nil, fmt.Errorf("%w: %d units < min %d for %s", ErrSizeBelowMin, units, info.OrderSizeMin, info.Contract)
	}
	if units > info.OrderSizeMax {
		return nil, fmt.Errorf("%w: %d units > max %d for %s", ErrSizeAboveMax, units, info.OrderSizeMax, info.Contract)
	}

	quantity := numutil.FloorToStep(float64(units)*info.StepSize, info.StepSize)
	quantityStr := numutil.FormatNumber(quantity, info.QuantityPrecision)

	clientOrderID := req.ClientOrderID
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}

	svc := c.api.NewCreateOrderService().
		Symbol(info.Symbol).
		Side(side).
		Quantity(quantityStr).
		ReduceOnly(req.ReduceOnly).
		NewClientOrderID(clientOrderID)

	if req.Price == 0 {
		// Market order: reject locally when the notional cannot clear
		// the venue minimum, instead of paying for a guaranteed remote
		// rejection.
		mark, err := c.markPrice(ctx, info)
		if err != nil {
			log.WithError(err).Warn("failed to resolve mark price for notional check")
			return nil, err
		}
		if notional := quantity * mark; notional < info.MinNotional {
			return nil, fmt.Errorf("%w: %s*%s = %.8f < %.2f for %s",
				ErrNotionalTooLow, quantityStr, numutil.FormatNumber(mark, info.PricePrecision), notional, info.MinNotional, info.Contract)
		}
		svc = svc.Type(futures.OrderTypeMarket)
	} else {
		price := numutil.FloorToStep(req.Price, info.TickSize)
		priceStr := numutil.FormatNumber(price, info.PricePrecision)

		tif := strings.ToUpper(req.TimeInForce)
		if tif == "" {
			tif = string(futures.TimeInForceTypeGTC)
		}

		svc = svc.Type(futures.OrderTypeLimit).
			Price(priceStr).
			TimeInForce(futures.TimeInForceType(tif))
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, err := svc.Do(ctx)
	if err != nil {
		logger.RecordOperation("place_order", true)
		log.WithError(err).Error("order rejected by venue")
		return nil, err
	}
	logger.IncrementOrderPlaced()

	summary := buildOrderSummary(rawFromCreate(res), info)
	log.WithFields(logger.Fields{
		"id":     summary.ID,
		"side":   summary.Side,
		"type":   summary.Type,
		"status": summary.Status,
	}).Info("order placed")
	return summary, nil
}

// GetOrder fetches one order by its composite id.
func (c *Client) GetOrder(ctx context.Context, id string) (*models.OrderSummary, error) {
	symbol, orderID, err := c.parseOrderID(id)
	if err != nil {
		return nil, err
	}
	info := c.EnsureContractInfo(ctx, symbols.SymbolToContract(symbol))

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.api.NewGetOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		logger.RecordOperation("get_order", true)
		c.log.WithComponent("binance_orders").WithFields(logger.Fields{"id": id}).WithError(err).Warn("failed to fetch order")
		return nil, err
	}
	logger.RecordOperation("get_order", false)

	return buildOrderSummary(rawFromOrder(res), info), nil
}

// CancelOrder cancels one order by its composite id and returns the
// normalized final state.
func (c *Client) CancelOrder(ctx context.Context, id string) (*models.OrderSummary, error) {
	symbol, orderID, err := c.parseOrderID(id)
	if err != nil {
		return nil, err
	}
	info := c.EnsureContractInfo(ctx, symbols.SymbolToContract(symbol))

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	res, err := c.api.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		logger.RecordOperation("cancel_order", true)
		c.log.WithComponent("binance_orders").WithFields(logger.Fields{"id": id}).WithError(err).Warn("failed to cancel order")
		return nil, err
	}
	logger.IncrementOrderCanceled()

	return buildOrderSummary(rawFromCancel(res), info), nil
}

// GetOpenOrders lists open orders, optionally filtered to one contract,
// resolving metadata per distinct symbol encountered.
func (c *Client) GetOpenOrders(ctx context.Context, contract string) ([]*models.OrderSummary, error) {
	log := c.log.WithComponent("binance_orders")

	svc := c.api.NewListOpenOrdersService()
	if contract != "" {
		info := c.EnsureContractInfo(ctx, contract)
		svc = svc.Symbol(info.Symbol)
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	orders, err := svc.Do(ctx)
	if err != nil {
		logger.RecordOperation("open_orders", true)
		log.WithError(err).Warn("failed to list open orders")
		return nil, err
	}
	logger.RecordOperation("open_orders", false)

	summaries := make([]*models.OrderSummary, 0, len(orders))
	for _, o := range orders {
		info := c.EnsureContractInfo(ctx, symbols.SymbolToContract(o.Symbol))
		summaries = append(summaries, buildOrderSummary(rawFromOrder(o), info))
	}
	return summaries, nil
}

// GetPositions lists all open positions on perpetual USDT-quoted
// contracts as signed unit counts. Summaries are rebuilt on every call.
func (c *Client) GetPositions(ctx context.Context) ([]models.PositionSummary, error) {
	log := c.log.WithComponent("binance_positions")

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	positions, err := c.api.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		logger.RecordOperation("positions", true)
		log.WithError(err).Warn("failed to list positions")
		return nil, err
	}
	logger.RecordOperation("positions", false)

	updateTimes := c.positionUpdateTimes(ctx)

	summaries := make([]models.PositionSummary, 0, len(positions))
	for _, p := range positions {
		// Delivery contracts carry a settlement suffix (BTCUSDT_250926)
		// and are not part of the perpetual USDT universe.
		if strings.Contains(p.Symbol, "_") || !strings.HasSuffix(p.Symbol, "USDT") {
			continue
		}
		if numutil.SafeParseFloat(p.PositionAmt, 0) == 0 {
			continue
		}
		info := c.EnsureContractInfo(ctx, symbols.SymbolToContract(p.Symbol))
		summaries = append(summaries, buildPositionSummary(p, info, updateTimes[p.Symbol]))
	}
	return summaries, nil
}

// positionUpdateTimes fetches the account's per-position update
// timestamps, which the position-risk endpoint does not report.
// Best-effort: on failure the summaries carry a zero timestamp.
func (c *Client) positionUpdateTimes(ctx context.Context) map[string]int64 {
	if err := c.wait(ctx); err != nil {
		return nil
	}
	acct, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		logger.RecordOperation("account", true)
		c.log.WithComponent("binance_positions").WithError(err).Warn("failed to fetch position timestamps")
		return nil
	}
	logger.RecordOperation("account", false)

	times := make(map[string]int64, len(acct.Positions))
	for _, p := range acct.Positions {
		times[p.Symbol] = p.UpdateTime
	}
	return times
}

// parseOrderID decomposes a composite id and converts the venue order
// id to its numeric form.
func (c *Client) parseOrderID(id string) (string, int64, error) {
	symbol, rawID, err := symbols.ParseOrderID(id)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrInvalidOrderID, err)
	}
	orderID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: order id %q is not numeric", ErrInvalidOrderID, rawID)
	}
	return symbol, orderID, nil
}
