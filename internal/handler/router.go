package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/savetrack-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware трекера накоплений.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/state", h.GetState)

			r.Post("/goals", h.CreateGoal)
			r.Delete("/goals/{goalID}", h.DeleteGoal)
			r.Post("/goals/{goalID}/image", h.UploadGoalImage)
			r.Post("/goals/{goalID}/savings", h.AddSaving)
			r.Post("/goals/{goalID}/borrows", h.Borrow)

			r.Post("/undo", h.Undo)
			r.Get("/chart/weekly", h.WeeklyChart)
			r.Put("/settings/darkmode", h.SetDarkMode)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
