package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrTimeReversal  = errors.New("event time went backward")
	ErrRiskRejected  = errors.New("rejected by risk limits")
	ErrNoMarketData  = errors.New("no market data loaded")
)
