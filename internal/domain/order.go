package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderKind is the order type. The simulator matches limit orders; market
// orders are accepted for completeness and treated as marketable limits at
// their stated price.
type OrderKind string

const (
	OrderKindLimit  OrderKind = "limit"
	OrderKindMarket OrderKind = "market"
)

// OrderStatus tracks the simulated order lifecycle:
//
//	Pending → {PartiallyFilled → Filled | Filled} | Cancelled
//
// Filled and Cancelled are terminal; a terminal order is never mutated again.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
)

// Order is a simulated limit order working its way through the fill engine.
// Money and quantity fields use decimal arithmetic so fee and partial-fill
// accumulation stays exact across long runs.
type Order struct {
	ID             string
	Exchange       string
	Symbol         string
	Side           OrderSide
	Kind           OrderKind
	Quantity       decimal.Decimal
	Price          decimal.Decimal
	Status         OrderStatus
	FilledQuantity decimal.Decimal
	AvgFillPrice   decimal.Decimal
	SignalID       string
	SubmittedAt    time.Time
	FilledAt       time.Time
}

// Remaining returns the unfilled quantity.
func (o *Order) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.FilledQuantity)
}

// Terminal reports whether the order reached a terminal state.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusFilled || o.Status == OrderStatusCancelled
}

// RecordFill applies a fill of qty at price to the order's filled quantity
// and volume-weighted average fill price, and advances the status. The
// caller guarantees qty ≤ Remaining().
func (o *Order) RecordFill(qty, price decimal.Decimal, at time.Time) {
	prevNotional := o.AvgFillPrice.Mul(o.FilledQuantity)
	o.FilledQuantity = o.FilledQuantity.Add(qty)
	o.AvgFillPrice = prevNotional.Add(price.Mul(qty)).DivRound(o.FilledQuantity, 12)
	if o.FilledQuantity.GreaterThanOrEqual(o.Quantity) {
		o.Status = OrderStatusFilled
		o.FilledAt = at
	} else {
		o.Status = OrderStatusPartiallyFilled
	}
}
