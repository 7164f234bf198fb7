package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
)

// Handler exposes the ledger API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	caps     *db.Capabilities
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate, caps *db.Capabilities) *Handler {
	return &Handler{logger: logger, service: service, validate: validate, caps: caps}
}

func (h *Handler) requireLedger(w http.ResponseWriter) bool {
	if !h.caps.Has(db.CapabilityInventory) {
		httpx.Problem(w, http.StatusServiceUnavailable, "Schema Unavailable", "inventory ledger not provisioned")
		return false
	}
	return true
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	if !h.requireLedger(w) {
		return
	}
	var req TransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	lines := make([]TransferLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, TransferLine{ItemID: l.ItemID, Qty: l.Qty, UnitCost: l.UnitCost})
	}
	result, err := h.service.Transfer(r.Context(), TransferInput{
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		MoveDate:        req.MoveDate,
		Reason:          req.Reason,
		Lines:           lines,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "transfer failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	if !h.requireLedger(w) {
		return
	}
	var req AdjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	lines := make([]AdjustLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, AdjustLine{ItemID: l.ItemID, Delta: l.Delta})
	}
	result, err := h.service.Adjust(r.Context(), AdjustInput{
		WarehouseID: req.WarehouseID,
		MoveDate:    req.MoveDate,
		Reason:      req.Reason,
		Lines:       lines,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "adjustment failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) OnHand(w http.ResponseWriter, r *http.Request) {
	if !h.requireLedger(w) {
		return
	}
	itemID, err := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", "item_id required")
		return
	}
	warehouseID, _ := strconv.ParseInt(r.URL.Query().Get("warehouse_id"), 10, 64)
	asOf := parseTime(r.URL.Query().Get("as_of"))

	read := h.service.OnHand
	if r.URL.Query().Get("fresh") == "true" {
		read = h.service.OnHandFresh
	}
	position, err := read(r.Context(), itemID, warehouseID, asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, position)
}

func (h *Handler) OnHandBatch(w http.ResponseWriter, r *http.Request) {
	if !h.requireLedger(w) {
		return
	}
	var req OnHandBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	positions, err := h.service.OnHandBatch(r.Context(), req.ItemIDs, req.WarehouseID, req.AsOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, positions)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if !h.requireLedger(w) {
		return
	}
	q := r.URL.Query()
	filter := HistoryFilter{
		Kind: Kind(q.Get("kind")),
		From: parseTime(q.Get("from")),
		To:   parseTime(q.Get("to")),
	}
	filter.ItemID, _ = strconv.ParseInt(q.Get("item_id"), 10, 64)
	filter.WarehouseID, _ = strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 && n <= 1000 {
		filter.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		filter.Offset = n
	}

	moves, err := h.service.History(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if moves == nil {
		moves = []Move{}
	}
	httpx.JSON(w, http.StatusOK, moves)
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		// Date-only bounds include the whole day.
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return time.Time{}
}
