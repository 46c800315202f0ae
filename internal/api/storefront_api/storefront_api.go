package storefront_api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/StoreFront/internal/integrations/shop"
	"github.com/BearBump/StoreFront/internal/integrations/shop/shophttp"
	"github.com/BearBump/StoreFront/internal/metrics"
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/BearBump/StoreFront/internal/services/cart"
	"github.com/BearBump/StoreFront/internal/services/history"
	"github.com/BearBump/StoreFront/internal/services/reviews"
	"github.com/BearBump/StoreFront/internal/services/storefront"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

const SessionHeader = "X-Session-ID"

type StoreFrontAPI struct {
	svc     *storefront.Service
	metrics *metrics.Registry
}

func New(svc *storefront.Service, m *metrics.Registry) *StoreFrontAPI {
	return &StoreFrontAPI{svc: svc, metrics: m}
}

type Options struct {
	AllowedOrigins []string
	// Пустой путь: без /swagger.json и /docs.
	SwaggerPath string
}

func (a *StoreFrontAPI) Routes(opts Options) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", SessionHeader},
		ExposedHeaders: []string{SessionHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if a.metrics != nil {
		r.Handle("/metrics", a.metrics.Handler())
	}
	if opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.SwaggerPath)
		})
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/swagger.json")))
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", a.login)
		r.Post("/auth/register", a.register)
		r.Post("/auth/logout", a.logout)
		r.Get("/auth/me", a.me)

		r.Get("/orders", a.orders)

		r.Get("/notifications", a.notifications)
		r.Post("/notifications/read-all", a.markAllRead)
		r.Post("/notifications/{id}/read", a.markRead)

		r.Get("/reviews/mine", a.myReviews)
		r.Post("/reviews", a.submitReview)

		r.Get("/products", a.products)

		r.Get("/cart", a.cart)
		r.Delete("/cart", a.clearCart)
		r.Post("/cart/items", a.addCartItem)
		r.Patch("/cart/items/{productId}", a.updateCartItem)
		r.Delete("/cart/items/{productId}", a.removeCartItem)
		r.Post("/cart/checkout", a.checkout)
	})
	return r
}

func (a *StoreFrontAPI) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		d := time.Since(start)
		if a.metrics != nil {
			a.metrics.ObserveHTTP(r.Method, route, status, d)
		}
		slog.Info("http request",
			"method", r.Method, "route", route, "status", status,
			"duration_ms", d.Milliseconds(), "request_id", middleware.GetReqID(r.Context()))
	})
}

func sessionID(r *http.Request) string {
	return r.Header.Get(SessionHeader)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(storefront.ErrInvalidInput, "malformed JSON body")
	}
	return nil
}

func statusFor(err error) int {
	var httpErr *shophttp.HTTPError
	switch {
	case errors.Is(err, storefront.ErrSessionExpired),
		errors.Is(err, storefront.ErrNotAuthenticated),
		errors.Is(err, shop.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, storefront.ErrInvalidInput),
		errors.Is(err, storefront.ErrPasswordMismatch),
		errors.Is(err, reviews.ErrInvalidRating),
		errors.Is(err, reviews.ErrEmptyComment),
		errors.Is(err, reviews.ErrNotPurchased),
		errors.Is(err, reviews.ErrAlreadyReviewed),
		errors.Is(err, cart.ErrEmptyCart),
		errors.Is(err, cart.ErrNoAddress):
		return http.StatusBadRequest
	case errors.Is(err, storefront.ErrNotificationNotFound),
		errors.Is(err, storefront.ErrProductNotFound),
		errors.Is(err, cart.ErrUnknownProduct):
		return http.StatusNotFound
	case errors.Is(err, storefront.ErrNoOrderHistoryLoaded):
		return http.StatusConflict
	case errors.As(err, &httpErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		slog.Error("request failed", "path", r.URL.Path, "err", err)
		msg = "internal error"
	case http.StatusBadGateway:
		slog.Warn("backend error", "path", r.URL.Path, "err", err)
		msg = "backend unavailable"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	SessionID string      `json:"sessionId"`
	User      models.User `json:"user"`
}

func (a *StoreFrontAPI) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := a.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set(SessionHeader, sess.ID)
	writeJSON(w, http.StatusOK, loginResponse{SessionID: sess.ID, User: sess.User})
}

func (a *StoreFrontAPI) register(w http.ResponseWriter, r *http.Request) {
	var in models.RegisterInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.svc.Register(r.Context(), in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"registered": true})
}

func (a *StoreFrontAPI) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Logout(r.Context(), sessionID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *StoreFrontAPI) me(w http.ResponseWriter, r *http.Request) {
	u, err := a.svc.Me(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// orders: ?q=&status=&page=; история всегда грузится заново.
func (a *StoreFrontAPI) orders(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	page := 1
	if p := qs.Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			writeError(w, r, errors.Wrap(storefront.ErrInvalidInput, "page must be a number"))
			return
		}
		page = n
	}
	view, err := a.svc.Orders(r.Context(), sessionID(r), history.Query{Search: qs.Get("q"), Status: qs.Get("status")}, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *StoreFrontAPI) notifications(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	view, err := a.svc.Notifications(r.Context(), sessionID(r), refresh)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *StoreFrontAPI) markRead(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.MarkNotificationRead(r.Context(), sessionID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *StoreFrontAPI) markAllRead(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.MarkAllNotificationsRead(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *StoreFrontAPI) myReviews(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.Reviews(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *StoreFrontAPI) submitReview(w http.ResponseWriter, r *http.Request) {
	var in models.ReviewInput
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := a.svc.SubmitReview(r.Context(), sessionID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (a *StoreFrontAPI) products(w http.ResponseWriter, r *http.Request) {
	ps, err := a.svc.Products(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ps == nil {
		ps = []models.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ps})
}

func (a *StoreFrontAPI) cart(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.Cart(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type addCartItemRequest struct {
	ProductID string `json:"productId"`
}

func (a *StoreFrontAPI) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addCartItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ProductID == "" {
		writeError(w, r, errors.Wrap(storefront.ErrInvalidInput, "productId is required"))
		return
	}
	view, err := a.svc.AddToCart(r.Context(), sessionID(r), req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (a *StoreFrontAPI) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateCartItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Quantity == nil {
		writeError(w, r, errors.Wrap(storefront.ErrInvalidInput, "quantity is required"))
		return
	}
	view, err := a.svc.UpdateCartItem(r.Context(), sessionID(r), chi.URLParam(r, "productId"), *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *StoreFrontAPI) removeCartItem(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.RemoveCartItem(r.Context(), sessionID(r), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *StoreFrontAPI) clearCart(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.ClearCart(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type checkoutRequest struct {
	ShippingAddress string `json:"shippingAddress"`
}

func (a *StoreFrontAPI) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := a.svc.Checkout(r.Context(), sessionID(r), req.ShippingAddress)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
