package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "Buy"
	OrderSideSell OrderSide = "Sell"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "Market"
	OrderTypeLimit  OrderType = "Limit"
)

// Order represents a trading order as reported by Bybit.
type Order struct {
	OrderID      string    `json:"orderId"`
	OrderLinkID  string    `json:"orderLinkId"`
	Symbol       string    `json:"symbol"`
	Side         OrderSide `json:"side"`
	OrderType    OrderType `json:"orderType"`
	Qty          string    `json:"qty"`
	Price        string    `json:"price"`
	OrderStatus  string    `json:"orderStatus"`
	CumExecQty   string    `json:"cumExecQty"`
	CumExecValue string    `json:"cumExecValue"`
	AvgPrice     string    `json:"avgPrice"`
	CreatedTime  time.Time `json:"createdTime"`
	UpdatedTime  time.Time `json:"updatedTime"`
}

// PlaceOrderParams holds parameters for placing an order.
type PlaceOrderParams struct {
	Category  string    // "spot", "linear", "inverse"
	Symbol    string    // trading pair symbol
	Side      OrderSide // Buy or Sell
	OrderType OrderType // Market or Limit
	Qty       string    // order quantity
	Price     string    // price, limit orders only
}

// PlaceOrder places a new order.
func (c *Client) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*Order, error) {
	if params.Category == "" {
		params.Category = "linear"
	}
	if params.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if params.Side == "" {
		return nil, fmt.Errorf("side is required")
	}
	if params.Qty == "" {
		return nil, fmt.Errorf("qty is required")
	}
	if params.OrderType == OrderTypeLimit && params.Price == "" {
		return nil, fmt.Errorf("price is required for limit orders")
	}

	apiParams := map[string]interface{}{
		"category":  params.Category,
		"symbol":    params.Symbol,
		"side":      string(params.Side),
		"orderType": string(params.OrderType),
		"qty":       params.Qty,
	}
	if params.Price != "" {
		apiParams["price"] = params.Price
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to place order: %w", err)
	}

	order, err := c.parseOrderResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order response: %w", err)
	}

	return order, nil
}

// PlaceMarketOrder places a market order (simplified method).
func (c *Client) PlaceMarketOrder(ctx context.Context, category, symbol string, side OrderSide, qty string) (*Order, error) {
	return c.PlaceOrder(ctx, PlaceOrderParams{
		Category:  category,
		Symbol:    symbol,
		Side:      side,
		OrderType: OrderTypeMarket,
		Qty:       qty,
	})
}

// GetOrder retrieves a specific order from the recent order history. Market
// orders fill immediately, so this is how execution details are fetched
// right after placement.
func (c *Client) GetOrder(ctx context.Context, category, symbol, orderID string) (*Order, error) {
	params := map[string]interface{}{
		"category": category,
		"symbol":   symbol,
		"orderId":  orderID,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetOrderHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	orders, err := c.parseOrdersResponse(result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse order history response: %w", err)
	}

	for i := range orders {
		if orders[i].OrderID == orderID {
			return &orders[i], nil
		}
	}

	return nil, fmt.Errorf("order with ID %s not found", orderID)
}

// SetTradingStop sets the take profit and stop loss for a position in one
// request. Bybit applies both levels atomically: the call either attaches
// the full pair or fails without touching the position.
func (c *Client) SetTradingStop(ctx context.Context, category, symbol string, takeProfit, stopLoss string) error {
	if category == "" {
		category = "linear"
	}
	if takeProfit == "" || stopLoss == "" {
		return fmt.Errorf("both takeProfit and stopLoss are required")
	}

	params := map[string]interface{}{
		"category":    category,
		"symbol":      symbol,
		"positionIdx": 0, // one-way position mode
		"takeProfit":  takeProfit,
		"stopLoss":    stopLoss,
	}

	result, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionTradingStop(ctx)
	if err != nil {
		return fmt.Errorf("failed to set trading stop: %w", err)
	}

	if result != nil && result.RetCode != 0 {
		return &APIError{Code: result.RetCode, Message: result.RetMsg}
	}

	return nil
}

// parseOrderResponse parses the order placement API response.
func (c *Client) parseOrderResponse(response interface{}) (*Order, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return nil, &APIError{Code: serverResp.RetCode, Message: serverResp.RetMsg}
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var orderResult struct {
		OrderID      string `json:"orderId"`
		OrderLinkID  string `json:"orderLinkId"`
		Symbol       string `json:"symbol"`
		Side         string `json:"side"`
		OrderType    string `json:"orderType"`
		Qty          string `json:"qty"`
		Price        string `json:"price"`
		OrderStatus  string `json:"orderStatus"`
		CumExecQty   string `json:"cumExecQty"`
		CumExecValue string `json:"cumExecValue"`
		AvgPrice     string `json:"avgPrice"`
		CreatedTime  string `json:"createdTime"`
		UpdatedTime  string `json:"updatedTime"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order result: %w", err)
	}

	return &Order{
		OrderID:      orderResult.OrderID,
		OrderLinkID:  orderResult.OrderLinkID,
		Symbol:       orderResult.Symbol,
		Side:         OrderSide(orderResult.Side),
		OrderType:    OrderType(orderResult.OrderType),
		Qty:          orderResult.Qty,
		Price:        orderResult.Price,
		OrderStatus:  orderResult.OrderStatus,
		CumExecQty:   orderResult.CumExecQty,
		CumExecValue: orderResult.CumExecValue,
		AvgPrice:     orderResult.AvgPrice,
		CreatedTime:  parseTimestamp(orderResult.CreatedTime),
		UpdatedTime:  parseTimestamp(orderResult.UpdatedTime),
	}, nil
}

// parseOrdersResponse parses an order list API response.
func (c *Client) parseOrdersResponse(response interface{}) ([]Order, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}

	if serverResp.RetCode != 0 {
		return nil, &APIError{Code: serverResp.RetCode, Message: serverResp.RetMsg}
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	var listResult struct {
		List []struct {
			OrderID      string `json:"orderId"`
			OrderLinkID  string `json:"orderLinkId"`
			Symbol       string `json:"symbol"`
			Side         string `json:"side"`
			OrderType    string `json:"orderType"`
			Qty          string `json:"qty"`
			Price        string `json:"price"`
			OrderStatus  string `json:"orderStatus"`
			CumExecQty   string `json:"cumExecQty"`
			CumExecValue string `json:"cumExecValue"`
			AvgPrice     string `json:"avgPrice"`
			CreatedTime  string `json:"createdTime"`
			UpdatedTime  string `json:"updatedTime"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &listResult); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order list: %w", err)
	}

	orders := make([]Order, 0, len(listResult.List))
	for _, o := range listResult.List {
		orders = append(orders, Order{
			OrderID:      o.OrderID,
			OrderLinkID:  o.OrderLinkID,
			Symbol:       o.Symbol,
			Side:         OrderSide(o.Side),
			OrderType:    OrderType(o.OrderType),
			Qty:          o.Qty,
			Price:        o.Price,
			OrderStatus:  o.OrderStatus,
			CumExecQty:   o.CumExecQty,
			CumExecValue: o.CumExecValue,
			AvgPrice:     o.AvgPrice,
			CreatedTime:  parseTimestamp(o.CreatedTime),
			UpdatedTime:  parseTimestamp(o.UpdatedTime),
		})
	}

	return orders, nil
}

func parseTimestamp(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
