package api

import (
	"net/http"
	"time"

	"github.com/example/ec-shop-core/internal/api/middleware"
	"github.com/example/ec-shop-core/internal/auth"
	"github.com/example/ec-shop-core/internal/domain/user"
	"github.com/example/ec-shop-core/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouterOptions carries the cross-cutting dependencies of the router.
type RouterOptions struct {
	Tokens         *auth.TokenService
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	AllowedOrigins []string
	// RequestTimeout bounds handler time when positive. Zero leaves requests
	// to the store client's own timeouts.
	RequestTimeout time.Duration
	// TracerProvider receives the server spans. Nil uses the global provider.
	TracerProvider trace.TracerProvider
}

func NewRouter(handlers *Handlers, authHandlers *AuthHandlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(opts.Logger, opts.Metrics))
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}
	r.Use(cors.Handler(corsOptions(opts.AllowedOrigins)))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondSuccess(w, http.StatusOK, "Server is running", nil)
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Auth
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandlers.Register)
			r.Post("/login", authHandlers.Login)
			r.Get("/me", authHandlers.Me)
			r.Put("/change-password", authHandlers.ChangePassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(opts.Tokens))
			adminOnly := middleware.RequireRole(user.RoleAdmin)

			// Cart
			r.Route("/carts/{user_id}", func(r chi.Router) {
				r.Get("/", handlers.GetCart)
				r.Delete("/", handlers.ClearCart)
				r.Post("/items", handlers.AddCartItem)
				r.Put("/items/{product_id}", handlers.UpdateCartItem)
				r.Delete("/items/{product_id}", handlers.RemoveCartItem)
			})

			// Orders
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", handlers.GetOrders)
				r.Post("/", handlers.PlaceOrder)
				r.Get("/{id}", handlers.GetOrder)
				r.With(adminOnly).Put("/{id}", handlers.UpdateOrder)
				r.With(adminOnly).Delete("/{id}", handlers.DeleteOrder)
			})

			// Users
			r.Route("/users/{id}", func(r chi.Router) {
				r.Get("/", authHandlers.GetUser)
				r.With(adminOnly).Put("/", authHandlers.UpdateUser)
				r.With(adminOnly).Post("/block", authHandlers.BlockUser)
				r.With(adminOnly).Post("/activate", authHandlers.ActivateUser)
			})
		})
	})

	return otelhttp.NewHandler(r, "ec-shop-api", otelOptions(opts.TracerProvider)...)
}

// otelOptions names server spans by method until the route is known and
// leaves the scrape endpoint untraced.
func otelOptions(tp trace.TracerProvider) []otelhttp.Option {
	opts := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		}),
	}
	if tp != nil {
		opts = append(opts, otelhttp.WithTracerProvider(tp))
	}
	return opts
}

func corsOptions(origins []string) cors.Options {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}
}
