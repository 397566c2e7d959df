package cart

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	cartsvc "github.com/mylagoscommunity/cart-service/internal/cart"
	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
)

func lineRefFromRequest(r *http.Request) (cartsvc.LineRef, error) {
	raw := chi.URLParam(r, "lineID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid line id")
	}
	return cartsvc.ParseLineID(id)
}
