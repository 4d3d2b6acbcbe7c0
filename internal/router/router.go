package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"tokensite-backend/internal/handlers"
	"tokensite-backend/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	DefaultOrigin  string
	ChatRatePerMin int
}

func New(
	jwtAuth *middleware.JWTAuth,
	walletHandler *handlers.WalletHandler,
	chatHandler *handlers.ChatHandler,
	opts Options,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(opts.AllowedOrigins, opts.DefaultOrigin))

	r.MethodNotAllowed(handlers.MethodNotAllowed)

	// Wallet login limiter (10 req/min per IP)
	walletLimiter := middleware.NewRateLimiter(10, time.Minute)
	chatLimiter := middleware.NewRateLimiter(opts.ChatRatePerMin, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Wallet Routes ────
		r.Route("/wallet", func(r chi.Router) {
			r.Get("/message", walletHandler.Message)
			r.Post("/verify-signature", walletHandler.VerifySignature)
			r.Post("/verify", walletHandler.Verify)

			r.With(walletLimiter.Middleware).Post("/login", walletHandler.Login)

			// Session requires a wallet token
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/session", walletHandler.Session)
			})
		})

		// ──── Chat Routes ────
		r.With(chatLimiter.Middleware).Post("/chat", chatHandler.Chat)
	})

	return r
}
