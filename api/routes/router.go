package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sizif-22/eventy-back/api/controllers"
	"github.com/sizif-22/eventy-back/api/middleware"
	"github.com/sizif-22/eventy-back/internal/messages"
	"github.com/sizif-22/eventy-back/internal/scheduler"
	"github.com/sizif-22/eventy-back/internal/verification"
	"github.com/sizif-22/eventy-back/pkg/config"
	"github.com/sizif-22/eventy-back/pkg/logger"
)

// RouterParams collects everything the HTTP surface needs.
type RouterParams struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           controllers.Pinger
	Redis        controllers.Pinger
	Scheduler    scheduler.Service
	Verification verification.Service
	Messages     messages.Repository
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": params.DB,
			"redis":    params.Redis,
		}))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/test", controllers.PublicPing())

		r.Post("/event", controllers.ScheduleMessage(params.Scheduler, cfg.Scheduler.Timezone, logg))

		r.Post("/register", controllers.Register(params.Verification, logg))
		r.Post("/verify-email", controllers.VerifyEmail(params.Verification, logg))
		r.Post("/check-email", controllers.CheckEmail(params.Verification, logg))
		r.Post("/confirm-verification", controllers.ConfirmVerification(params.Verification, logg))

		r.Get("/events/{eventId}/messages", controllers.ListEventMessages(params.Messages, logg))
		r.Route("/messages/{messageId}", func(r chi.Router) {
			r.Get("/", controllers.GetMessage(params.Messages, logg))
			r.Post("/resend", controllers.ResendMessage(params.Scheduler, logg))
		})
	})

	return r
}
