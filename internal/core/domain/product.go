package domain

import "github.com/shopspring/decimal"

type Product struct {
	Name     string          `json:"productName"`
	Quantity int             `json:"productQuantity"`
	Price    decimal.Decimal `json:"productValue"`
}

func (p Product) Available() bool {
	return p.Quantity > 0
}
