package masterdata

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes read-only master data endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/masterdata/warehouses", h.ListWarehouses)
	r.Get("/masterdata/items", h.ListItems)
}

func (h *Handler) ListWarehouses(w http.ResponseWriter, r *http.Request) {
	warehouses, err := h.service.Warehouses(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if warehouses == nil {
		warehouses = []Warehouse{}
	}
	httpx.JSON(w, http.StatusOK, warehouses)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	items, err := h.service.Items(r.Context(), limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if items == nil {
		items = []Item{}
	}
	httpx.JSON(w, http.StatusOK, items)
}
