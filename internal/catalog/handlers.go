package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/toko-cart/internal/common"
)

// ProductView is the public representation of a product.
type ProductView struct {
	ID        string   `json:"id"`
	SKU       string   `json:"sku,omitempty"`
	Name      string   `json:"name"`
	Price     string   `json:"price"`
	VatRate   string   `json:"vatRate"`
	InStock   bool     `json:"inStock"`
	Campaigns []string `json:"campaigns,omitempty"`
}

// MethodView is the public representation of a shipment method.
type MethodView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Model string `json:"model"`
	Price string `json:"price"`
}

// Handler exposes read-only catalog endpoints.
type Handler struct {
	snapshot      *Snapshot
	infiniteStock bool
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Snapshot      *Snapshot
	InfiniteStock bool
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{snapshot: cfg.Snapshot, infiniteStock: cfg.InfiniteStock}
}

// Routes mounts the catalog endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/products", h.Products)
	r.Get("/products/{id}", h.ProductDetail)
	r.Get("/shipping-methods", h.ShippingMethods)
}

// Products handles GET /products with search and pagination.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	if h.snapshot == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	page := common.ParsePagination(r, 20)
	matches := h.snapshot.Search(r.URL.Query().Get("q"))
	start, end := page.Window(len(matches))
	views := make([]ProductView, 0, end-start)
	for _, p := range matches[start:end] {
		views = append(views, h.view(p))
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(len(matches)))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       views,
		"pagination": page,
	})
}

// ProductDetail handles GET /products/{id}.
func (h *Handler) ProductDetail(w http.ResponseWriter, r *http.Request) {
	p, err := h.snapshot.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "product not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(p)})
}

// ShippingMethods handles GET /shipping-methods.
func (h *Handler) ShippingMethods(w http.ResponseWriter, r *http.Request) {
	methods := h.snapshot.Methods()
	views := make([]MethodView, 0, len(methods))
	for _, m := range methods {
		views = append(views, MethodView{ID: m.ID, Name: m.Name, Model: string(m.Model), Price: m.Price.StringFixed(2)})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

func (h *Handler) view(p Product) ProductView {
	v := ProductView{
		ID:      p.ID,
		SKU:     p.SKU,
		Name:    p.Name,
		Price:   p.PriceVat.StringFixed(2),
		VatRate: p.VatRate.String(),
		InStock: h.infiniteStock || p.Stock > 0,
	}
	for _, c := range p.Campaigns {
		v.Campaigns = append(v.Campaigns, c.ID)
	}
	return v
}
