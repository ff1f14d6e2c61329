//go:build cartdebug

package cart

import (
	"fmt"

	"github.com/fairyhunter13/storefront-cart-service/internal/model"
)

// checkInvariants panics when the bounds or uniqueness of the lines are broken.
func checkInvariants(items []model.LineItem, index map[int64]int) {
	if len(items) != len(index) {
		panic(fmt.Sprintf("cart: %d items but %d index entries", len(items), len(index)))
	}
	for i, it := range items {
		if it.Quantity < 1 || it.Quantity > it.MaxQuantity {
			panic(fmt.Sprintf("cart: product %d quantity %d outside [1,%d]", it.ProductID, it.Quantity, it.MaxQuantity))
		}
		if j, ok := index[it.ProductID]; !ok || j != i {
			panic(fmt.Sprintf("cart: product %d index mismatch", it.ProductID))
		}
	}
}
