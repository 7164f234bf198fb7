package documents

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Handler exposes the document API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// Route slugs accept both the plural resource form and the bare type.
var docTypeSlugs = map[string]DocType{
	"quote": DocTypeQuote, "quotes": DocTypeQuote,
	"award": DocTypeAward, "awards": DocTypeAward,
	"purchase_order": DocTypePurchaseOrder, "purchase-orders": DocTypePurchaseOrder,
	"invoice": DocTypeInvoice, "invoices": DocTypeInvoice,
}

func docTypeParam(r *http.Request, name string) (DocType, bool) {
	docType, ok := docTypeSlugs[chi.URLParam(r, name)]
	return docType, ok
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	docType, ok := docTypeParam(r, "type")
	if !ok {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "unknown document type")
		return
	}

	var req CreateDocumentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	lines := make([]DocumentLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, DocumentLine{
			ItemID:      l.ItemID,
			Description: l.Description,
			Qty:         l.Qty,
			Unit:        l.Unit,
			UnitPrice:   l.UnitPrice,
			DiscountPct: l.DiscountPct,
		})
	}

	doc, err := h.service.Create(r.Context(), docType, CreateInput{
		CustomerID:    req.CustomerID,
		SupplierID:    req.SupplierID,
		Currency:      req.Currency,
		IssueDate:     req.IssueDate,
		DiscountTotal: req.DiscountTotal,
		TaxTotal:      req.TaxTotal,
		ShippingTotal: req.ShippingTotal,
		Meta:          req.Meta,
		Lines:         lines,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "create document failed", slog.String("type", string(docType)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, doc)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	docType, ok := docTypeParam(r, "type")
	if !ok {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "unknown document type")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
		return
	}

	doc, err := h.service.Get(r.Context(), docType, id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	docType, ok := docTypeParam(r, "type")
	if !ok {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "unknown document type")
		return
	}

	filter := ListFilter{
		Status: Status(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("q"),
		Limit:  50,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			filter.Limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	docs, total, err := h.service.List(r.Context(), docType, filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if docs == nil {
		docs = []Document{}
	}
	httpx.JSON(w, http.StatusOK, ListResponse{Items: docs, Total: total})
}

func (h *Handler) Convert(w http.ResponseWriter, r *http.Request) {
	source, ok := docTypeParam(r, "type")
	if !ok {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "unknown source document type")
		return
	}
	target, ok := docTypeParam(r, "target")
	if !ok {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "unknown target document type")
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid document id")
		return
	}

	result, err := h.service.Convert(r.Context(), source, id, target)
	if err != nil {
		if !isClientError(err) {
			h.logger.ErrorContext(r.Context(), "conversion failed",
				slog.String("source", string(source)), slog.Int64("id", id),
				slog.String("target", string(target)), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	w.Header().Set("Location", fmt.Sprintf("/documents/%s/%d", result.TargetType, result.TargetID))
	httpx.JSON(w, status, result)
}

func isClientError(err error) bool {
	for _, sentinel := range []error{shared.ErrNotFound, shared.ErrValidation, shared.ErrConflict} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
