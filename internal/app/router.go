package app

import (
	"database/sql"
	"net/http"
	"time"

	"cbtscan/internal/app/observability"
	"cbtscan/internal/autosave"
	"cbtscan/internal/exam"
	"cbtscan/internal/question"
	"cbtscan/internal/report"
	"cbtscan/internal/textsource"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps are the long-lived resources the router wires into handlers. DB may
// be nil when sheets are kept in memory.
type Deps struct {
	Logger *zap.Logger
	DB     *sql.DB
	Store  autosave.Store
}

func NewRouter(cfg Config, deps Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	store := deps.Store
	if store == nil {
		store = autosave.NewMemoryStore()
	}

	collector := observability.NewCollector(deps.DB, log)
	limiter := NewIPRateLimiter(cfg.RateLimitPerMin, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(collector.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", csrfHeaderName},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	sheetSvc := exam.NewService(store, log.Named("sheets"))
	sheetSvc.OnEvent(collector.Count)
	extractors := textsource.NewRegistry(cfg.PDFToTextPath)
	sheetHandler := exam.NewHandler(sheetSvc, extractors, cfg.MaxUploadBytes(), log.Named("http"))
	textHandler := question.NewHandler(cfg.MaxUploadBytes())
	reportHandler := report.NewHandler(report.NewService(sheetSvc))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(CSRFMiddleware(cfg.CSRFEnforced))
		api.Get("/csrf", IssueCSRFToken(cfg.IsProduction()))

		// Group middleware runs after routing, so the limiter sees the
		// full route pattern.
		api.Group(func(limited chi.Router) {
			limited.Use(RateLimitMiddleware(limiter))

			limited.Post("/canonicalize", textHandler.Canonicalize)
			limited.Post("/parse", textHandler.Parse)

			limited.Post("/sheets", sheetHandler.LoadDocument)
			limited.Get("/sheets/{id}", sheetHandler.GetSheet)
			limited.Put("/sheets/{id}/answers/{questionID}", sheetHandler.SetAnswer)
			limited.Delete("/sheets/{id}/answers/{questionID}", sheetHandler.ClearAnswer)
			limited.Put("/sheets/{id}/key/{questionID}", sheetHandler.SetKey)
			limited.Delete("/sheets/{id}/key/{questionID}", sheetHandler.ClearKey)
			limited.Post("/sheets/{id}/key/import", sheetHandler.ImportKey)
			limited.Get("/sheets/{id}/key/export", sheetHandler.ExportKey)
			limited.Post("/sheets/{id}/submit", sheetHandler.Submit)
			limited.Post("/sheets/{id}/reset", sheetHandler.Reset)
			limited.Get("/sheets/{id}/result", sheetHandler.Result)
			limited.Get("/sheets/{id}/summary", reportHandler.Summary)
			limited.Get("/sheets/{id}/report.xlsx", reportHandler.ExportXLSX)
		})
	})

	return r
}
