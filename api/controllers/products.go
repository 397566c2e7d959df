package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mylagoscommunity/cart-service/api/responses"
	"github.com/mylagoscommunity/cart-service/api/validators"
	productsvc "github.com/mylagoscommunity/cart-service/internal/products"
	pkgerrors "github.com/mylagoscommunity/cart-service/pkg/errors"
	"github.com/mylagoscommunity/cart-service/pkg/logger"
	"github.com/mylagoscommunity/cart-service/pkg/pagination"
)

const maxFilterLen = 120

// ProductList pages through the catalog with optional category and name filters.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := r.URL.Query()
		result, err := svc.Browse(r.Context(), productsvc.BrowseInput{
			Category: validators.SanitizeString(query.Get("category"), maxFilterLen),
			Query:    validators.SanitizeString(query.Get("q"), maxFilterLen),
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: query.Get("cursor"),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ProductDetail returns one catalog product.
func ProductDetail(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}

		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, product)
	}
}
