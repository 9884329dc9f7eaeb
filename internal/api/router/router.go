package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wellhavenhq/telehealth-platform/internal/availability"
	"github.com/wellhavenhq/telehealth-platform/internal/bookings"
	"github.com/wellhavenhq/telehealth-platform/internal/credits"
	httpmiddleware "github.com/wellhavenhq/telehealth-platform/internal/http/middleware"
	"github.com/wellhavenhq/telehealth-platform/internal/payments"
	"github.com/wellhavenhq/telehealth-platform/internal/workflow"
	"github.com/wellhavenhq/telehealth-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AvailabilityHandler *availability.Handler
	BookingHandler      *workflow.Handler
	AdminBookings       *bookings.Handler
	CreditsHandler      *credits.Handler
	CheckoutHandler     *payments.Handler
	StripeWebhook       *payments.StripeWebhookHandler
	MetricsHandler      http.Handler
	AdminAuthSecret     string
	CORSAllowedOrigins  []string

	// Requests per second allowed per client IP on public routes.
	// Zero disables rate limiting.
	RateLimitPerSec float64
	RateLimitBurst  int
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		if cfg.RateLimitPerSec > 0 {
			public.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSec, cfg.RateLimitBurst))
		}

		public.Get("/health", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		if cfg.AvailabilityHandler != nil {
			public.Route("/therapists/{therapistID}/availability", func(r chi.Router) {
				r.Get("/dates", cfg.AvailabilityHandler.Dates)
				r.Get("/slots", cfg.AvailabilityHandler.Slots)
			})
		}

		if cfg.BookingHandler != nil {
			public.Post("/bookings", cfg.BookingHandler.AttemptBooking)
		}
		if cfg.AdminBookings != nil {
			public.Get("/bookings/{bookingID}", cfg.AdminBookings.GetBooking)
		}

		if cfg.CreditsHandler != nil {
			public.Get("/patients/{patientID}/credits", cfg.CreditsHandler.GetBalance)
			public.Get("/credit-packages", cfg.CreditsHandler.ListPackages)
		}

		if cfg.CheckoutHandler != nil {
			public.Post("/checkout", cfg.CheckoutHandler.CreateCheckout)
		}
		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
	})

	// Admin routes (protected by JWT)
	if cfg.AdminAuthSecret != "" && cfg.AdminBookings != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Route("/bookings/{bookingID}", func(r chi.Router) {
				r.Get("/", cfg.AdminBookings.GetBooking)
				r.Post("/cancel", cfg.AdminBookings.CancelBooking)
				r.Post("/complete", cfg.AdminBookings.CompleteBooking)
				r.Post("/no-show", cfg.AdminBookings.MarkNoShow)
			})
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
