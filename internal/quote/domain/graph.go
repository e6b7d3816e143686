package domain

// RecordMethod is the backend mutation verb for a graph record.
type RecordMethod string

const (
	MethodCreate RecordMethod = "POST"
	MethodUpdate RecordMethod = "PATCH"
)

// Backend entity names used by graph records.
const (
	EntityQuote            = "Quote"
	EntityQuoteLineGroup   = "QuoteLineGroup"
	EntityQuoteLine        = "QuoteLineItem"
	EntityLineRelationship = "QuoteLineRelationship"
)

// GraphRecord is one node of a composite transaction graph. Field
// values may be plain scalars or Ref values; Refs are resolved to the
// backend's forward-reference notation only at the transport edge.
type GraphRecord struct {
	ReferenceID string
	Entity      string
	Method      RecordMethod

	// Target is the record being updated. Only set for MethodUpdate.
	Target Ref

	Fields map[string]any
}

// IsCreate reports whether the record creates a new backend row.
func (r GraphRecord) IsCreate() bool {
	return r.Method == MethodCreate
}
