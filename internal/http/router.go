package http

import (
	"net/http"

	"widgets/internal/autosave"
	"widgets/internal/config"
	"widgets/internal/db"
	"widgets/internal/http/handler"
	mw "widgets/internal/http/middleware"
	"widgets/internal/widget"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"gorm.io/gorm"
)

func NewRouter(cfg config.Config, gdb *gorm.DB, sessions *autosave.Manager) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context(), gdb); err != nil {
			http.Error(w, "db unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	svc := &widget.Service{DB: gdb}
	wh := &handler.WidgetHandler{Svc: svc, Sessions: sessions}
	eh := &handler.EditHandler{Svc: svc, Sessions: sessions}

	r.Route("/widgets", func(r chi.Router) {
		r.Get("/", wh.List)
		r.Post("/", wh.Create)

		r.Get("/{id}", wh.Get)
		r.Patch("/{id}", wh.Update)
		r.Delete("/{id}", wh.Delete)

		r.Get("/{id}/edit", eh.Edit)
	})

	return r
}
