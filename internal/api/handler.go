package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/tackle-shop/internal/auditlog"
	"github.com/safar/tackle-shop/internal/catalog"
	"github.com/safar/tackle-shop/internal/events"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/safar/tackle-shop/internal/session"
	"github.com/safar/tackle-shop/internal/shop"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxBodyBytes    = 1 << 20
)

type Handler struct {
	shop     *shop.Service
	sessions *session.Manager
	badges   *events.BadgeCounter
	history  auditlog.Repository // nil disables the history endpoint
	logger   *slog.Logger
}

func NewHandler(svc *shop.Service, sessions *session.Manager, badges *events.BadgeCounter, history auditlog.Repository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		shop:     svc,
		sessions: sessions,
		badges:   badges,
		history:  history,
		logger:   logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	s, err := h.sessions.Login(r.Context(), req.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "session opened", "user_id", s.UserID, "role", s.Role)
	writeJSON(w, http.StatusCreated, SessionResponse{
		Token:     s.Token,
		UserID:    s.UserID,
		Role:      s.Role,
		ExpiresAt: s.ExpiresAt,
	})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	if err := h.sessions.Logout(r.Context(), s.Token); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProducts accepts repeated category parameters; a comma-separated value
// matches any of its categories.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := catalog.Filter{
		Categories: catalog.ParseCategories(q["category"]),
		Query:      q.Get("q"),
	}
	if v := q.Get("store_id"); v != "" {
		id, err := parseID(v)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.StoreID = id
	}

	products, err := h.shop.Catalog().List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = mapProduct(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	p, err := h.shop.Catalog().Lookup(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(*p))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.shop.Cart(r.Context(), mustSession(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(snap))
}

// CartCount serves the badge from the last CartChanged event and falls back
// to the stored cart when none was seen since startup.
func (h *Handler) CartCount(w http.ResponseWriter, r *http.Request) {
	customerID := mustSession(r).UserID
	if n, ok := h.badges.Count(customerID); ok {
		writeJSON(w, http.StatusOK, CountResponse{Count: n})
		return
	}

	snap, err := h.shop.Cart(r.Context(), customerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: snap.ItemCount()})
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	snap, err := h.shop.AddItem(r.Context(), mustSession(r).UserID, req.ProductID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(snap))
}

func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req SetQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	snap, err := h.shop.SetItemQuantity(r.Context(), mustSession(r).UserID, productID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(snap))
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(chi.URLParam(r, "productID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	snap, err := h.shop.RemoveItem(r.Context(), mustSession(r).UserID, productID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(snap))
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.shop.ClearCart(r.Context(), mustSession(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapCart(snap))
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	o, err := h.shop.Checkout(r.Context(), mustSession(r).UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapOrder(o, models.RoleCustomer))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	q, err := orderQuery(s, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	page, err := h.shop.Orders(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := OrderPageResponse{
		Orders:     make([]OrderResponse, len(page.Orders)),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}
	for i := range page.Orders {
		out.Orders[i] = mapOrder(&page.Orders[i], s.Role)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	o, err := h.visibleOrder(r, s)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(o, s.Role))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	var req StatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	o, err := h.visibleOrder(r, s)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	updated, err := h.shop.TransitionOrder(r.Context(), o.OrderNumber, req.Status, shop.Actor{
		UserID: s.UserID,
		Role:   s.Role,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(updated, s.Role))
}

func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	s := mustSession(r)
	o, err := h.visibleOrder(r, s)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.history == nil {
		writeJSON(w, http.StatusOK, []auditlog.Entry{})
		return
	}
	entries, err := h.history.List(r.Context(), o.OrderNumber)
	if err != nil {
		h.fail(w, r, &models.PersistenceError{Op: "list order history", Err: err})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// visibleOrder loads the order named in the path. Orders outside the
// session's scope are reported as not found.
func (h *Handler) visibleOrder(r *http.Request, s *session.Session) (*models.Order, error) {
	o, err := h.shop.Order(r.Context(), chi.URLParam(r, "orderNo"))
	if err != nil {
		return nil, err
	}
	if !canView(s, o) {
		return nil, fmt.Errorf("order %s: %w", o.OrderNumber, models.ErrOrderNotFound)
	}
	return o, nil
}

func canView(s *session.Session, o *models.Order) bool {
	switch s.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return o.CustomerID == s.UserID
	case models.RoleStaff:
		if s.StoreID == 0 {
			return true
		}
		for _, it := range o.Items {
			if it.StoreID == s.StoreID {
				return true
			}
		}
	case models.RoleSupplier:
		for _, it := range o.Items {
			if it.SupplierID == s.SupplierID {
				return true
			}
		}
	}
	return false
}

// orderQuery scopes a listing to what the session's role may see. Only
// admins may pick the scope through query parameters.
func orderQuery(s *session.Session, r *http.Request) (models.OrderQuery, error) {
	v := r.URL.Query()
	q := models.OrderQuery{
		Cursor: v.Get("cursor"),
		Limit:  defaultPageSize,
	}

	if l := v.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			return q, fmt.Errorf("%w: limit %q", errBadRequest, l)
		}
		q.Limit = min(n, maxPageSize)
	}
	if st := v.Get("status"); st != "" {
		q.Status = models.OrderStatus(st)
		if !q.Status.Valid() {
			return q, fmt.Errorf("%w: status %q", errBadRequest, st)
		}
	}

	switch s.Role {
	case models.RoleCustomer:
		q.CustomerID = s.UserID
	case models.RoleStaff:
		q.StoreID = s.StoreID
	case models.RoleSupplier:
		if s.SupplierID == 0 {
			return q, models.ErrForbidden
		}
		q.SupplierID = s.SupplierID
	case models.RoleAdmin:
		for param, dst := range map[string]*int64{
			"customer_id": &q.CustomerID,
			"store_id":    &q.StoreID,
			"supplier_id": &q.SupplierID,
		} {
			if raw := v.Get(param); raw != "" {
				id, err := parseID(raw)
				if err != nil {
					return q, err
				}
				*dst = id
			}
		}
	default:
		return q, models.ErrForbidden
	}
	return q, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit is %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: id %q", errBadRequest, raw)
	}
	return id, nil
}
