package cart

import (
	"github.com/shopspring/decimal"

	cartdto "github.com/mylagoscommunity/cart-service/api/controllers/cart/dto"
	cartsvc "github.com/mylagoscommunity/cart-service/internal/cart"
)

const displayPlaces = 2

func newCartView(snapshot cartsvc.Snapshot) cartdto.CartView {
	lines := make([]cartdto.CartLine, 0, len(snapshot.Lines))
	for _, line := range snapshot.Lines {
		lines = append(lines, cartdto.CartLine{
			LineID:   line.LineID(),
			Source:   line.Ref.Source(),
			Product:  newCartProduct(line.Product),
			Quantity: line.Quantity,
			Subtotal: line.Subtotal(),
		})
	}

	return cartdto.CartView{
		Lines:          lines,
		CartCount:      snapshot.CartCount,
		Total:          snapshot.Total,
		TotalDisplay:   decimal.NewFromInt(snapshot.Total).StringFixed(displayPlaces),
		IsLoading:      snapshot.IsLoading,
		Authenticated:  snapshot.Identity.Authenticated,
		MigrationState: snapshot.MigrationState,
	}
}

func newCartProduct(p cartsvc.Product) cartdto.CartProduct {
	image := p.Image
	if image == nil {
		image = []string{}
	}
	return cartdto.CartProduct{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Image:    image,
		Category: p.Category,
		Quantity: p.Quantity,
	}
}
