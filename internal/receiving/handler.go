package receiving

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the goods receipt API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/receiving/receipts", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/{id}", h.Get)
		r.Post("/{id}/post", h.Post)
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReceiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	lines := make([]LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, LineInput{ItemID: l.ItemID, Qty: l.Qty, UnitCost: l.UnitCost})
	}
	receipt, err := h.service.Create(r.Context(), CreateInput{
		SupplierID:      req.SupplierID,
		WarehouseID:     req.WarehouseID,
		PurchaseOrderID: req.PurchaseOrderID,
		ReceiptDate:     req.ReceiptDate,
		Meta:            req.Meta,
		Lines:           lines,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create receipt failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid receipt id")
		return
	}
	receipt, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Status: ReceiptStatus(r.URL.Query().Get("status"))}
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 500 {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && n >= 0 {
		filter.Offset = n
	}

	receipts, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if receipts == nil {
		receipts = []Receipt{}
	}
	httpx.JSON(w, http.StatusOK, receipts)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid receipt id")
		return
	}
	receipt, err := h.service.Post(r.Context(), id)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "post receipt failed", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}
