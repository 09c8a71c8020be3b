package domain

import "slices"

// Account holds a user's active product names, one entry per active order.
type Account struct {
	UserName string   `json:"userName"`
	Products []string `json:"userProductNames"`
}

func (a Account) Has(productName string) bool {
	return slices.Contains(a.Products, productName)
}

// WithoutFirst returns the product list with the first occurrence of productName
// removed, and whether anything was removed.
func (a Account) WithoutFirst(productName string) ([]string, bool) {
	i := slices.Index(a.Products, productName)
	if i < 0 {
		return a.Products, false
	}
	out := make([]string, 0, len(a.Products)-1)
	out = append(out, a.Products[:i]...)
	return append(out, a.Products[i+1:]...), true
}
