package documents

// Numbering selects the sequence strategy for a document type.
type Numbering string

const (
	// NumberingScan derives the next number from the greatest existing
	// number. Kept as a migration compatibility mode; racy under
	// concurrent writers.
	NumberingScan Numbering = "scan"
	// NumberingCounter uses a locked counter row and is safe under
	// concurrency.
	NumberingCounter Numbering = "counter"
)

// Rule describes one supported conversion. The set is fixed; conversions
// are not user configurable.
type Rule struct {
	Source DocType
	Target DocType
	// Prefix and Numbering drive the target's document number.
	Prefix    string
	Numbering Numbering
	// TargetStatus is the initial status of the derived document.
	TargetStatus Status
	// SourceStatusAfter, when set, is written to the source inside the
	// conversion transaction. Empty means the source keeps its status,
	// as for an award that spawns both a purchase order and an invoice.
	SourceStatusAfter Status
}

var conversionRules = []Rule{
	{
		Source:            DocTypeQuote,
		Target:            DocTypeAward,
		Prefix:            "AW",
		Numbering:         NumberingCounter,
		TargetStatus:      StatusConfirmed,
		SourceStatusAfter: StatusApproved,
	},
	{
		Source:       DocTypeAward,
		Target:       DocTypePurchaseOrder,
		Prefix:       "PO",
		Numbering:    NumberingCounter,
		TargetStatus: StatusDraft,
	},
	{
		Source:       DocTypeAward,
		Target:       DocTypeInvoice,
		Prefix:       "INV",
		Numbering:    NumberingScan,
		TargetStatus: StatusDraft,
	},
}

// RuleFor returns the conversion rule for a source/target pair.
func RuleFor(source, target DocType) (Rule, bool) {
	for _, rule := range conversionRules {
		if rule.Source == source && rule.Target == target {
			return rule, true
		}
	}
	return Rule{}, false
}

// Entry numbering for documents created directly rather than derived.
var entryNumbering = map[DocType]struct {
	Prefix    string
	Numbering Numbering
}{
	DocTypeQuote:   {Prefix: "QT", Numbering: NumberingScan},
	DocTypeInvoice: {Prefix: "INV", Numbering: NumberingScan},
}
