package ledger

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ledger", func(r chi.Router) {
		r.Post("/transfers", h.Transfer)
		r.Post("/adjustments", h.Adjust)
		r.Get("/onhand", h.OnHand)
		r.Post("/onhand/batch", h.OnHandBatch)
		r.Get("/moves", h.History)
	})
}
