package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Cheertaboi/jewelry-storefront/internal/backend"
	"github.com/Cheertaboi/jewelry-storefront/internal/models"
)

// CatalogHandler proxies read-only catalog and account lookups
type CatalogHandler struct {
	backend Backend
}

func NewCatalogHandler(b Backend) *CatalogHandler {
	return &CatalogHandler{backend: b}
}

// ListProducts handles GET /catalog/products?category=&q=&page=&limit=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := backend.ProductQuery{
		Category: q.Get("category"),
		Search:   q.Get("q"),
	}
	var err error
	if v := q.Get("page"); v != "" {
		if query.Page, err = strconv.Atoi(v); err != nil || query.Page < 1 {
			badRequest(w, "page must be a positive integer")
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		if query.Limit, err = strconv.Atoi(v); err != nil || query.Limit < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
	}

	products, err := h.backend.ListProducts(r.Context(), query)
	if err != nil {
		fail(w, r, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	ok(w, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.backend.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, p)
}

func (h *CatalogHandler) ListBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := h.backend.ListBanners(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if banners == nil {
		banners = []models.Banner{}
	}
	ok(w, banners)
}

// Me handles GET /me
func (h *CatalogHandler) Me(w http.ResponseWriter, r *http.Request) {
	if !requireLogin(w, r, "/account") {
		return
	}
	u, err := h.backend.CurrentUser(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, u)
}

// Addresses handles GET /me/addresses
func (h *CatalogHandler) Addresses(w http.ResponseWriter, r *http.Request) {
	if !requireLogin(w, r, "/account") {
		return
	}
	list, err := h.backend.ListAddresses(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.Address{}
	}
	ok(w, list)
}
