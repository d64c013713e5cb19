package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/safar/tackle-shop/internal/models"
	"github.com/safar/tackle-shop/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// NewRouter wires the routes behind a server span per request, so logs and
// order history entries carry the request's trace id.
func NewRouter(h *Handler, tp trace.TracerProvider) http.Handler {
	r := chi.NewRouter()
	r.Use(otelhttp.NewMiddleware("tackle-shop",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	r.Post("/sessions", h.Login)
	r.Get("/products", h.ListProducts)
	r.Get("/products/{id}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)

		r.Delete("/sessions", h.Logout)

		r.Route("/cart", func(r chi.Router) {
			r.Use(requireRole(models.RoleCustomer))
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Get("/count", h.CartCount)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{productID}", h.SetCartItem)
			r.Delete("/items/{productID}", h.RemoveCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(requireRole(models.RoleCustomer)).Post("/", h.Checkout)
			r.Get("/", h.ListOrders)
			r.Get("/{orderNo}", h.GetOrder)
			r.Patch("/{orderNo}/status", h.UpdateOrderStatus)
			r.Get("/{orderNo}/history", h.OrderHistory)
		})
	})

	return r
}

// authenticate resolves the bearer token to a session and stores it in the
// request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		s, err := h.sessions.Resolve(r.Context(), token)
		if err != nil {
			h.fail(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
	})
}

func requireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := mustSession(r)
			for _, role := range roles {
				if s.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "forbidden", models.ErrForbidden.Error())
		})
	}
}

// mustSession is only called behind authenticate.
func mustSession(r *http.Request) *session.Session {
	s, ok := session.FromContext(r.Context())
	if !ok {
		panic("api: no session in request context")
	}
	return s
}
