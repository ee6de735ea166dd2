package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/GregMSThompson/household-ledger/internal/handlers"
	"github.com/GregMSThompson/household-ledger/internal/metrics"
	"github.com/GregMSThompson/household-ledger/internal/middleware"
)

// NewRouter wires every route. Everything except /healthz and /metrics sits
// behind mw.Auth. m may be nil, and the assistant is mounted only when
// deps.AssistantSvc is set. CORS preflights are answered before auth.
func NewRouter(deps *handlers.Deps, mw *middleware.Middleware, m *metrics.Metrics, allowedOrigins []string) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.TelegramInitDataHeader},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(m.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	ush := handlers.NewUserHandlers(deps)
	sph := handlers.NewSpaceHandlers(deps)
	cth := handlers.NewCategoryHandlers(deps)
	txh := handlers.NewTransactionHandlers(deps)
	smh := handlers.NewSummaryHandlers(deps)

	r.Group(func(r chi.Router) {
		r.Use(mw.Auth)

		r.Mount("/me", ush.UserRoutes())
		r.Mount("/invites", sph.JoinRoutes())
		// /spaces/my and /spaces/active are static, so they win over {spaceID}.
		spaces := sph.SpaceRoutes()
		spaces.Route("/{spaceID}", func(r chi.Router) {
			r.Mount("/members", sph.MemberRoutes())
			r.Mount("/invite", sph.InviteRoutes())
			r.Post("/owner", sph.TransferOwnership)

			r.Mount("/categories", cth.CategoryRoutes())
			r.Mount("/transactions", txh.TransactionRoutes())
			r.Delete("/data", txh.ClearSpace)
			r.Get("/export", txh.Export)

			r.Get("/summary", smh.Summary)
			r.Get("/pending", smh.Pending)
			r.Get("/balance", smh.Balance)
			r.Get("/calendar", smh.Calendar)
			r.Get("/on", smh.OnDate)

			if deps.AssistantSvc != nil {
				r.Mount("/assistant", handlers.NewAssistantHandlers(deps).AssistantRoutes())
			}
		})
		r.Mount("/spaces", spaces)
	})
	return r
}
