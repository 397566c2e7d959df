package cart

import (
	"context"
	"net/http"

	cartdto "github.com/mylagoscommunity/cart-service/api/controllers/cart/dto"
	"github.com/mylagoscommunity/cart-service/api/middleware"
	"github.com/mylagoscommunity/cart-service/api/responses"
	"github.com/mylagoscommunity/cart-service/api/validators"
	cartsvc "github.com/mylagoscommunity/cart-service/internal/cart"
	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
	"github.com/mylagoscommunity/cart-service/pkg/logger"
)

// EngineSource hands out the cart engine of a session.
type EngineSource interface {
	Acquire(ctx context.Context, sessionID string, identity cartsvc.Identity) (*cartsvc.Engine, error)
}

// ProductLookup resolves the product snapshot stored with a new line.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (cartsvc.Product, error)
}

// CartView returns the session's current cart.
func CartView(engines EngineSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := engineFor(r, engines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartView(engine.Snapshot()))
	}
}

// CartReload forces a refresh from the backing store.
func CartReload(engines EngineSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := engineFor(r, engines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		engine.Load(r.Context())
		responses.WriteSuccess(w, newCartView(engine.Snapshot()))
	}
}

// CartAddItem adds a catalog product to the cart.
func CartAddItem(engines EngineSource, products ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if products == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := products.GetProduct(r.Context(), payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		engine, err := engineFor(r, engines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		engine.AddItem(r.Context(), product, payload.Quantity)
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartView(engine.Snapshot()))
	}
}

// CartUpdateItem sets the quantity of one line.
func CartUpdateItem(engines EngineSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := lineRefFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.UpdateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		engine, err := engineFor(r, engines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		engine.UpdateQuantity(r.Context(), ref, *payload.Quantity)
		responses.WriteSuccess(w, newCartView(engine.Snapshot()))
	}
}

// CartRemoveItem deletes one line.
func CartRemoveItem(engines EngineSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := lineRefFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		engine, err := engineFor(r, engines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		engine.RemoveItem(r.Context(), ref)
		responses.WriteSuccess(w, newCartView(engine.Snapshot()))
	}
}

// CartClear empties the cart view.
func CartClear(engines EngineSource, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		engine, err := engineFor(r, engines)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		engine.ClearCart(r.Context())
		responses.WriteSuccess(w, newCartView(engine.Snapshot()))
	}
}

func engineFor(r *http.Request, engines EngineSource) (*cartsvc.Engine, error) {
	if engines == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart registry unavailable")
	}
	ctx := r.Context()
	engine, err := engines.Acquire(ctx, middleware.MustSessionID(ctx), middleware.IdentityFromContext(ctx))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquire cart")
	}
	return engine, nil
}
