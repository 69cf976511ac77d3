package domain

import "github.com/shopspring/decimal"

// Direction represents the price movement direction
type Direction int

const (
	DirectionSame Direction = 0
	DirectionUp   Direction = +1
	DirectionDown Direction = -1
)

// PriceState tracks the last seen price of one book side and its movement
type PriceState struct {
	Value     decimal.Decimal
	HasValue  bool
	Direction Direction
}

// Update applies a new price; returns true when the displayed value changed
func (ps *PriceState) Update(price float64) bool {
	n := decimal.NewFromFloat(price)
	if !ps.HasValue {
		ps.Value = n
		ps.HasValue = true
		ps.Direction = DirectionSame
		return true
	}
	if n.Equal(ps.Value) {
		return false
	}
	if n.GreaterThan(ps.Value) {
		ps.Direction = DirectionUp
	} else {
		ps.Direction = DirectionDown
	}
	ps.Value = n
	return true
}

// String formats the price, "--" when nothing seen yet
func (ps *PriceState) String() string {
	if !ps.HasValue {
		return "--"
	}
	return ps.Value.String()
}
