package pricing

import "github.com/shopspring/decimal"

const moneyPlaces = 2

// Line is one (unit price, quantity) pair to be priced.
type Line struct {
	UnitPrice float64
	Quantity  int
}

// Quote is the priced result for a set of lines.
type Quote struct {
	Subtotal    float64 `json:"subtotal"`
	DeliveryFee float64 `json:"deliveryFee"`
	Total       float64 `json:"total"`
}

// Rules holds the flat delivery fee policy.
type Rules struct {
	FreeDeliveryThreshold float64
	DeliveryFee           float64
}

func DefaultRules() Rules {
	return Rules{FreeDeliveryThreshold: 5000, DeliveryFee: 500}
}

// Quote prices lines. Every amount is rounded to cents the same way so the
// cart view, direct orders and checkout always agree.
func (r Rules) Quote(lines []Line) Quote {
	subtotal := decimal.Zero
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		amount := decimal.NewFromFloat(line.UnitPrice).Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(amount)
	}
	subtotal = subtotal.Round(moneyPlaces)

	fee := decimal.Zero
	if subtotal.LessThan(decimal.NewFromFloat(r.FreeDeliveryThreshold)) {
		fee = decimal.NewFromFloat(r.DeliveryFee).Round(moneyPlaces)
	}

	return Quote{
		Subtotal:    subtotal.InexactFloat64(),
		DeliveryFee: fee.InexactFloat64(),
		Total:       subtotal.Add(fee).InexactFloat64(),
	}
}

// Round applies the money rounding used by Quote.
func Round(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(moneyPlaces).InexactFloat64()
}
