package documents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

var docCapabilities = map[DocType]db.Capability{
	DocTypeQuote:         db.CapabilityQuotes,
	DocTypeAward:         db.CapabilityAwards,
	DocTypePurchaseOrder: db.CapabilityPurchaseOrders,
	DocTypeInvoice:       db.CapabilityInvoices,
}

// ConvertResult reports the outcome of a conversion. Created is false
// when the source had already been converted; the call still succeeds
// and returns the existing target.
type ConvertResult struct {
	TargetID   int64   `json:"target_id"`
	TargetType DocType `json:"target_type"`
	Number     string  `json:"number"`
	Created    bool    `json:"created"`
}

// Service implements document creation and derivation.
type Service struct {
	repo   RepositoryPort
	caps   *db.Capabilities
	audit  *shared.AuditLogger
	logger *slog.Logger
}

// NewService constructs Service.
func NewService(repo RepositoryPort, caps *db.Capabilities, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, caps: caps, audit: audit, logger: logger}
}

func (s *Service) requireCapability(docType DocType) error {
	capability, ok := docCapabilities[docType]
	if !ok {
		return fmt.Errorf("%w: unknown document type %q", shared.ErrValidation, docType)
	}
	if !s.caps.Has(capability) {
		return fmt.Errorf("%w: %s storage not provisioned", shared.ErrSchemaUnavailable, docType)
	}
	return nil
}

// Convert derives a target document from an existing source document.
// The operation is idempotent per source: converting an already
// converted source returns the existing target with Created=false.
func (s *Service) Convert(ctx context.Context, source DocType, sourceID int64, target DocType) (ConvertResult, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return ConvertResult{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}

	rule, ok := RuleFor(source, target)
	if !ok {
		return ConvertResult{}, fmt.Errorf("%w: %s to %s", ErrUnknownConversion, source, target)
	}
	if err := s.requireCapability(source); err != nil {
		return ConvertResult{}, err
	}
	if err := s.requireCapability(target); err != nil {
		return ConvertResult{}, err
	}
	if rule.Numbering == NumberingCounter && !s.caps.Has(db.CapabilityDocCounters) {
		return ConvertResult{}, fmt.Errorf("%w: doc_counters not provisioned", shared.ErrSchemaUnavailable)
	}

	result, err := s.convertTx(ctx, orgID, rule, sourceID)
	if errors.Is(err, ErrDuplicateDerivation) {
		// Lost a race against a concurrent conversion of the same
		// source. Resolve to the winner's target.
		result, err = s.findExisting(ctx, orgID, rule, sourceID)
	}
	if err != nil {
		return ConvertResult{}, err
	}

	if result.Created {
		s.recordAudit(ctx, orgID, "document.convert", target, result.TargetID, map[string]any{
			"source_type": string(source),
			"source_id":   sourceID,
			"number":      result.Number,
		})
		s.logger.InfoContext(ctx, "document converted",
			slog.String("source_type", string(source)),
			slog.Int64("source_id", sourceID),
			slog.String("target_type", string(target)),
			slog.Int64("target_id", result.TargetID),
			slog.String("number", result.Number))
	}
	return result, nil
}

func (s *Service) convertTx(ctx context.Context, orgID int64, rule Rule, sourceID int64) (ConvertResult, error) {
	var result ConvertResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		src, err := tx.GetDocument(ctx, rule.Source, orgID, sourceID)
		if err != nil {
			return err
		}

		existing, err := tx.FindByProvenance(ctx, rule.Target, orgID, rule.Source, sourceID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = ConvertResult{TargetID: existing.ID, TargetType: rule.Target, Number: existing.Number, Created: false}
			return nil
		}

		srcLines, err := tx.GetLines(ctx, rule.Source, orgID, sourceID)
		if err != nil {
			return err
		}
		lines := convertibleLines(srcLines)
		if len(lines) == 0 {
			return ErrNoConvertibleLines
		}

		now := time.Now().UTC()
		number, err := tx.NextNumber(ctx, orgID, rule.Target, rule.Numbering, rule.Prefix, now)
		if err != nil {
			return err
		}

		doc := deriveDocument(src, rule, number, now, lines)
		targetID, err := tx.InsertDocument(ctx, rule.Target, doc)
		if err != nil {
			return err
		}
		if err := tx.InsertLines(ctx, rule.Target, orgID, targetID, lines); err != nil {
			return err
		}

		if rule.SourceStatusAfter != "" && src.Status != rule.SourceStatusAfter {
			if err := tx.UpdateStatus(ctx, rule.Source, orgID, sourceID, rule.SourceStatusAfter); err != nil {
				return err
			}
		}

		result = ConvertResult{TargetID: targetID, TargetType: rule.Target, Number: number, Created: true}
		return nil
	})
	return result, err
}

func (s *Service) findExisting(ctx context.Context, orgID int64, rule Rule, sourceID int64) (ConvertResult, error) {
	var result ConvertResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.FindByProvenance(ctx, rule.Target, orgID, rule.Source, sourceID)
		if err != nil {
			return err
		}
		if existing == nil {
			return fmt.Errorf("%w: conversion target vanished", shared.ErrConflict)
		}
		result = ConvertResult{TargetID: existing.ID, TargetType: rule.Target, Number: existing.Number, Created: false}
		return nil
	})
	return result, err
}

// convertibleLines filters out zero-quantity lines and renumbers the
// survivors for the target document.
func convertibleLines(src []DocumentLine) []DocumentLine {
	var out []DocumentLine
	for _, line := range src {
		if line.Qty <= 0 {
			continue
		}
		total := line.LineTotal
		if total <= 0 {
			total = LineTotal(line.Qty, line.UnitPrice, line.DiscountPct)
		}
		out = append(out, DocumentLine{
			LineNo:      len(out) + 1,
			ItemID:      line.ItemID,
			Description: line.Description,
			Qty:         line.Qty,
			Unit:        line.Unit,
			UnitPrice:   line.UnitPrice,
			DiscountPct: line.DiscountPct,
			LineTotal:   total,
		})
	}
	return out
}

// deriveDocument builds the target header from the source snapshot.
// Stored totals carry over verbatim; each total is recomputed from the
// converted lines only when its own snapshot value is non-positive.
func deriveDocument(src Document, rule Rule, number string, now time.Time, lines []DocumentLine) Document {
	subtotal := src.Subtotal
	if subtotal <= 0 {
		subtotal = SubtotalFromLines(lines)
	}
	grand := src.GrandTotal
	if grand <= 0 {
		grand = GrandTotal(subtotal, src.DiscountTotal, src.TaxTotal, src.ShippingTotal)
	}

	meta := make(map[string]any, len(src.Meta)+3)
	for k, v := range src.Meta {
		meta[k] = v
	}
	meta["derived_from_type"] = string(rule.Source)
	meta["derived_from_id"] = src.ID
	meta["derived_from_number"] = src.Number

	return Document{
		OrgID:         src.OrgID,
		Number:        number,
		CustomerID:    src.CustomerID,
		SupplierID:    src.SupplierID,
		SourceType:    rule.Source,
		SourceID:      src.ID,
		Subtotal:      subtotal,
		DiscountTotal: src.DiscountTotal,
		TaxTotal:      src.TaxTotal,
		ShippingTotal: src.ShippingTotal,
		GrandTotal:    grand,
		Currency:      src.Currency,
		Status:        rule.TargetStatus,
		IssueDate:     now,
		Meta:          meta,
	}
}

// CreateInput describes a document entered directly rather than derived.
type CreateInput struct {
	CustomerID    int64
	SupplierID    int64
	Currency      string
	IssueDate     time.Time
	TaxTotal      float64
	ShippingTotal float64
	DiscountTotal float64
	Meta          map[string]any
	Lines         []DocumentLine
}

// Create enters a new document of a directly creatable type.
func (s *Service) Create(ctx context.Context, docType DocType, input CreateInput) (Document, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return Document{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	entry, ok := entryNumbering[docType]
	if !ok {
		return Document{}, fmt.Errorf("%w: %s is only created by conversion", shared.ErrValidation, docType)
	}
	if err := s.requireCapability(docType); err != nil {
		return Document{}, err
	}
	if len(input.Lines) == 0 {
		return Document{}, fmt.Errorf("%w: document requires at least one line", shared.ErrValidation)
	}

	issueDate := input.IssueDate
	if issueDate.IsZero() {
		issueDate = time.Now().UTC()
	}
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	lines := make([]DocumentLine, 0, len(input.Lines))
	for i, line := range input.Lines {
		line.LineNo = i + 1
		line.LineTotal = LineTotal(line.Qty, line.UnitPrice, line.DiscountPct)
		lines = append(lines, line)
	}
	subtotal := SubtotalFromLines(lines)

	var doc Document
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		number, err := tx.NextNumber(ctx, orgID, docType, entry.Numbering, entry.Prefix, issueDate)
		if err != nil {
			return err
		}
		doc = Document{
			OrgID:         orgID,
			Number:        number,
			CustomerID:    input.CustomerID,
			SupplierID:    input.SupplierID,
			Subtotal:      subtotal,
			DiscountTotal: input.DiscountTotal,
			TaxTotal:      input.TaxTotal,
			ShippingTotal: input.ShippingTotal,
			GrandTotal:    GrandTotal(subtotal, input.DiscountTotal, input.TaxTotal, input.ShippingTotal),
			Currency:      currency,
			Status:        StatusDraft,
			IssueDate:     issueDate,
			Meta:          input.Meta,
		}
		id, err := tx.InsertDocument(ctx, docType, doc)
		if err != nil {
			return err
		}
		doc.ID = id
		return tx.InsertLines(ctx, docType, orgID, id, lines)
	})
	if err != nil {
		return Document{}, err
	}
	doc.Lines = lines

	s.recordAudit(ctx, orgID, "document.create", docType, doc.ID, map[string]any{"number": doc.Number})
	return doc, nil
}

// Get returns one document with its lines.
func (s *Service) Get(ctx context.Context, docType DocType, id int64) (Document, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return Document{}, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	if err := s.requireCapability(docType); err != nil {
		return Document{}, err
	}
	return s.repo.Get(ctx, docType, orgID, id)
}

// List returns documents of one type for the calling organisation.
func (s *Service) List(ctx context.Context, docType DocType, filter ListFilter) ([]Document, int, error) {
	orgID := shared.OrgFromContext(ctx)
	if orgID == 0 {
		return nil, 0, fmt.Errorf("%w: organisation not resolved", shared.ErrValidation)
	}
	if err := s.requireCapability(docType); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, docType, orgID, filter)
}

func (s *Service) recordAudit(ctx context.Context, orgID int64, action string, docType DocType, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		OrgID:    orgID,
		Action:   action,
		Entity:   string(docType),
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
