package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/card"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/money"
	"github.com/noah-isme/toko-cart/internal/shipping"
)

// SessionHeader is the default header carrying the session key.
const SessionHeader = "X-Session-Key"

// Handler wires the cart manager to HTTP.
type Handler struct {
	manager  *Manager
	validate *validator.Validate
	header   string
	mutMW    []func(http.Handler) http.Handler
	doneMW   []func(http.Handler) http.Handler
}

// HandlerConfig configures NewHandler.
type HandlerConfig struct {
	Manager   *Manager
	Validator *validator.Validate
	// SessionHeader overrides SessionHeader.
	SessionHeader string
	// Mutations wraps every state changing route, e.g. with a rate limiter.
	Mutations []func(http.Handler) http.Handler
	// Completion additionally wraps POST /cart/complete.
	Completion []func(http.Handler) http.Handler
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	h := &Handler{
		manager:  cfg.Manager,
		validate: cfg.Validator,
		header:   cfg.SessionHeader,
		mutMW:    cfg.Mutations,
		doneMW:   cfg.Completion,
	}
	if h.validate == nil {
		h.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	if h.header == "" {
		h.header = SessionHeader
	}
	return h
}

func (h *Handler) session(r *http.Request) string { return r.Header.Get(h.header) }

func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := h.session(r); key != "" {
			r = r.WithContext(common.WithSession(r.Context(), key))
		}
		next.ServeHTTP(w, r)
	})
}

// Routes mounts the cart endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(h.withSession)
		r.Get("/", h.Get)
		r.Group(func(r chi.Router) {
			r.Use(h.mutMW...)
			r.Delete("/", h.Destroy)
			r.Post("/items", h.AddItem)
			r.Patch("/items/{itemId}", h.UpdateItem)
			r.Delete("/items/{itemId}", h.RemoveItem)
			r.Put("/coupon", h.AttachCoupon)
			r.Delete("/coupon", h.DetachCoupon)
			r.Put("/shipping", h.SetShipping)
			r.Put("/card", h.SetCard)
			r.Delete("/card", h.RemoveCard)
			r.Post("/merge", h.Merge)
			r.Post("/checkout", h.Checkout)
			r.With(h.doneMW...).Post("/complete", h.Complete)
		})
	})
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

type updateItemRequest struct {
	Qty int `json:"qty" validate:"gte=0"`
}

type couponRequest struct {
	Code string `json:"code" validate:"required"`
}

type shippingRequest struct {
	MethodID   string `json:"methodId" validate:"required"`
	Country    string `json:"country" validate:"omitempty,len=2"`
	PostalCode string `json:"postalCode" validate:"omitempty,max=16"`
}

type cardRequest struct {
	Number  string `json:"number" validate:"required"`
	Balance string `json:"balance" validate:"required,numeric"`
}

type mergeRequest struct {
	PreviousSession string `json:"previousSession" validate:"required"`
}

// Get returns the session cart.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	var view View
	err := h.manager.View(r.Context(), h.session(r), func(_ context.Context, c *Cart) error {
		view = NewView(c)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// Destroy abandons the session cart.
func (h *Handler) Destroy(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Close(r.Context(), h.session(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds or increments a line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		return h.manager.Service().AddItem(r.Context(), c, payload.ProductID, payload.Qty)
	})
}

// UpdateItem replaces the quantity of a line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload updateItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		return h.manager.Service().SetQuantity(r.Context(), c, itemID, payload.Qty)
	})
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemId")
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		return nil, h.manager.Service().RemoveItem(r.Context(), c, itemID)
	})
}

// AttachCoupon attaches a coupon by code.
func (h *Handler) AttachCoupon(w http.ResponseWriter, r *http.Request) {
	var payload couponRequest
	if !h.decode(w, r, &payload) {
		return
	}
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		_, err := h.manager.Service().AttachCoupon(r.Context(), c, payload.Code)
		return nil, err
	})
}

// DetachCoupon removes the coupon.
func (h *Handler) DetachCoupon(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		return nil, h.manager.Service().DetachCoupon(r.Context(), c)
	})
}

// SetShipping selects the shipping method and destination.
func (h *Handler) SetShipping(w http.ResponseWriter, r *http.Request) {
	var payload shippingRequest
	if !h.decode(w, r, &payload) {
		return
	}
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		return nil, h.manager.Service().SetShipping(r.Context(), c, Destination{
			MethodID:   payload.MethodID,
			Country:    payload.Country,
			PostalCode: payload.PostalCode,
		})
	})
}

// SetCard attaches a loyalty card.
func (h *Handler) SetCard(w http.ResponseWriter, r *http.Request) {
	var payload cardRequest
	if !h.decode(w, r, &payload) {
		return
	}
	balance, err := money.Parse(payload.Balance)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid balance", nil)
		return
	}
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		return nil, h.manager.Service().SetCard(r.Context(), c, &card.Card{Number: payload.Number, Balance: balance})
	})
}

// RemoveCard detaches the loyalty card.
func (h *Handler) RemoveCard(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		return nil, h.manager.Service().SetCard(r.Context(), c, nil)
	})
}

// Merge folds a previous session cart into the current one.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	var payload mergeRequest
	if !h.decode(w, r, &payload) {
		return
	}
	_, warnings, err := h.manager.Merge(r.Context(), h.session(r), payload.PreviousSession)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var view View
	err = h.manager.View(r.Context(), h.session(r), func(_ context.Context, c *Cart) error {
		view = NewView(c)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, view, warnings)
}

// Checkout moves the cart into checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(c *Cart) ([]string, error) {
		return nil, h.manager.Service().Checkout(r.Context(), c)
	})
}

// Complete turns the cart into an order.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	order, err := h.manager.Complete(r.Context(), h.session(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	view := NewView(order)
	view.ID = order.ID
	common.JSON(w, http.StatusCreated, map[string]any{"data": view})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var details []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details = append(details, fe.Field()+" "+fe.Tag())
			}
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid payload", details)
		return false
	}
	return true
}

// mutate renders the view before the session lock is released, so the
// response never observes a concurrent mutation.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, fn func(*Cart) ([]string, error)) {
	var (
		view     View
		warnings []string
	)
	err := h.manager.Do(r.Context(), h.session(r), func(_ context.Context, c *Cart) error {
		var err error
		if warnings, err = fn(c); err != nil {
			return err
		}
		view = NewView(c)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.respond(w, view, warnings)
}

func (h *Handler) respond(w http.ResponseWriter, view View, warnings []string) {
	view.Warnings = warnings
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

var errorRules = []common.ErrorRule{
	{Status: http.StatusBadRequest, Code: "BAD_REQUEST", Errs: []error{ErrSessionRequired, ErrInvalidInput, ErrInvalidConfiguration}},
	{Status: http.StatusNotFound, Code: "NOT_FOUND", Errs: []error{
		ErrNotFound, ErrItemNotFound, catalog.ErrProductNotFound, catalog.ErrCouponNotFound, catalog.ErrMethodNotFound,
	}},
	{Status: http.StatusConflict, Code: "CONFLICT", Errs: []error{ErrNotEditable, ErrEmptyCart}},
	{Status: http.StatusUnprocessableEntity, Code: "UNPROCESSABLE", Errs: []error{ErrNotSimpleProduct}},
	{Status: http.StatusUnprocessableEntity, Code: "SHIPPING_UNAVAILABLE", Errs: []error{
		shipping.ErrNoZone, shipping.ErrNoWeightBand, shipping.ErrPostalCodeIneligible,
	}},
	{Status: http.StatusBadGateway, Code: "SHIPPING_ERROR", Errs: []error{shipping.ErrDirectoryUnavailable}},
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, "unable to update cart", errorRules...)
}

// View is the public representation of a cart or order.
type View struct {
	ID          string            `json:"id"`
	State       string            `json:"state,omitempty"`
	Items       []LineView        `json:"items"`
	Adjustments []AdjustmentView  `json:"adjustments"`
	Totals      TotalsView        `json:"totals"`
	Coupon      *CouponView       `json:"coupon,omitempty"`
	Shipping    *ShippingView     `json:"shipping,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Conflicts   []string          `json:"conflictingDiscounts,omitempty"`
	ByType      map[string]string `json:"adjustmentTotals,omitempty"`
}

// LineView renders a display line.
type LineView struct {
	ItemID    string `json:"itemId"`
	ProductID string `json:"productId,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Name      string `json:"name"`
	Qty       int    `json:"qty"`
	UnitPrice string `json:"unitPrice"`
	Total     string `json:"total"`
	Free      bool   `json:"free,omitempty"`
}

// AdjustmentView renders a ledger entry.
type AdjustmentView struct {
	Type   string `json:"type"`
	Owner  string `json:"owner"`
	Label  string `json:"label"`
	Amount string `json:"amount"`
}

// TotalsView renders the derived totals.
type TotalsView struct {
	SubTotal   string `json:"subtotal"`
	ItemsTotal string `json:"itemsTotal"`
	Shipping   string `json:"shipping"`
	Discount   string `json:"discount"`
	Coupon     string `json:"coupon"`
	Vat        string `json:"vat"`
	Total      string `json:"total"`
}

// CouponView renders the attached coupon and its validation outcome.
type CouponView struct {
	Code    string `json:"code"`
	Active  bool   `json:"active"`
	Rule    string `json:"rule,omitempty"`
	Message string `json:"message,omitempty"`
}

// ShippingView renders the shipping selection.
type ShippingView struct {
	MethodID   string `json:"methodId"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

func amount(d decimal.Decimal) string { return d.StringFixed(money.Places) }

// NewView renders any Adjustable.
func NewView(a Adjustable) View {
	view := View{
		Items:       []LineView{},
		Adjustments: []AdjustmentView{},
		ByType:      map[string]string{},
	}
	for _, l := range a.ItemsDisplay() {
		view.Items = append(view.Items, LineView{
			ItemID:    l.ItemID,
			ProductID: l.ProductID,
			SKU:       l.SKU,
			Name:      l.Name,
			Qty:       l.Quantity,
			UnitPrice: amount(l.UnitPrice),
			Total:     amount(l.Total),
			Free:      l.Free,
		})
	}
	for _, adj := range a.Adjustments() {
		view.Adjustments = append(view.Adjustments, AdjustmentView{
			Type:   string(adj.Type),
			Owner:  adj.Owner.String(),
			Label:  adj.Label,
			Amount: amount(adj.Amount),
		})
	}
	for t, total := range a.AdjustmentTotals() {
		view.ByType[string(t)] = amount(total)
	}
	_, shippingDisplay, _ := a.ShippingAdjustment()
	view.Totals = TotalsView{
		SubTotal:   amount(a.SubTotal()),
		ItemsTotal: amount(a.ItemsTotal()),
		Shipping:   amount(shippingDisplay),
		Discount:   amount(a.DiscountTotal()),
		Coupon:     amount(a.CouponDiscount()),
		Vat:        amount(a.VatTotal()),
		Total:      amount(a.Total()),
	}
	switch v := a.(type) {
	case *Cart:
		view.ID = v.ID
		view.State = string(v.State)
		view.Conflicts = v.ConflictingDiscounts()
		if cp := v.Coupon(); cp != nil {
			cv := &CouponView{Code: cp.Code, Active: v.ActiveCoupon() != nil}
			if res, ok := v.CouponResult(); ok && !res.Passed {
				cv.Rule = res.Rule
				cv.Message = res.Message
			}
			view.Coupon = cv
		}
		if v.Shipping.MethodID != "" {
			view.Shipping = &ShippingView{MethodID: v.Shipping.MethodID, Country: v.Shipping.Country, PostalCode: v.Shipping.PostalCode}
		}
	case *Order:
		view.ID = v.ID
		view.State = string(StateCompleted)
		if v.Coupon != nil {
			view.Coupon = &CouponView{Code: v.Coupon.Code, Active: true}
		}
	}
	return view
}
