package model

import (
	"fmt"
	"strings"
)

// ValueKind is the declared kind of an ontology attribute value
type ValueKind string

const (
	KindString    ValueKind = "string"
	KindDate      ValueKind = "date"
	KindEnum      ValueKind = "enum"
	KindReference ValueKind = "reference" // Explicit cross-reference to another record id
)

// DateQualifier qualifies one end of a date range, following the source
// corpus conventions (SIMPLE is an exact year)
type DateQualifier string

const (
	QualifierSimple DateQualifier = "SIMPLE"
	QualifierBefore DateQualifier = "BEFORE"
	QualifierAfter  DateQualifier = "AFTER"
	QualifierNear   DateQualifier = "NEAR"
)

// DateRange is a year-granularity interval. A single year is Start == End.
type DateRange struct {
	Start          int           `json:"start"`
	End            int           `json:"end"`
	StartQualifier DateQualifier `json:"start_qualifier"`
	EndQualifier   DateQualifier `json:"end_qualifier"`
}

// Overlaps reports whether two ranges share at least one year. Qualified
// ends (BEFORE/AFTER/NEAR) are treated as open by one side so that
// near-misses do not register as contradictions.
func (d DateRange) Overlaps(o DateRange) bool {
	ds, de := d.effective()
	os, oe := o.effective()
	return ds <= oe && os <= de
}

// Union returns the envelope of two ranges. Qualifiers survive from
// whichever range contributes the endpoint.
func (d DateRange) Union(o DateRange) DateRange {
	out := d
	if o.Start < out.Start {
		out.Start = o.Start
		out.StartQualifier = o.StartQualifier
	}
	if o.End > out.End {
		out.End = o.End
		out.EndQualifier = o.EndQualifier
	}
	return out
}

func (d DateRange) effective() (int, int) {
	start, end := d.Start, d.End
	const slack = 5
	switch d.StartQualifier {
	case QualifierBefore:
		start -= slack
	case QualifierNear:
		start -= slack / 2
	}
	switch d.EndQualifier {
	case QualifierAfter:
		end += slack
	case QualifierNear:
		end += slack / 2
	}
	return start, end
}

func (d DateRange) String() string {
	if d.Start == d.End {
		return fmt.Sprintf("%d", d.Start)
	}
	return fmt.Sprintf("%d-%d", d.Start, d.End)
}

// AttrValue is a single attribute value coerced to its declared kind.
// Exactly one of Text/Date is meaningful depending on Kind.
type AttrValue struct {
	Kind      ValueKind  `json:"kind"`
	Text      string     `json:"text,omitempty"` // string, enum and reference kinds
	Date      *DateRange `json:"date,omitempty"` // date kind
	Uncertain bool       `json:"uncertain,omitempty"`
}

// Key returns a canonical comparison key for corroboration counting
func (v AttrValue) Key() string {
	if v.Kind == KindDate && v.Date != nil {
		return "date:" + v.Date.String()
	}
	return string(v.Kind) + ":" + strings.ToLower(strings.TrimSpace(v.Text))
}

// Mention is a RawFactoid after normalization: the type exists in the
// ontology and every surviving attribute value matches its declared kind.
// RecordID is provenance, never ownership.
type Mention struct {
	RecordID   string               `json:"record_id"`
	Type       string               `json:"type"`
	Name       string               `json:"name"` // Cleaned identifying attribute value
	Attributes map[string]AttrValue `json:"attributes"`
	Relations  []RelationClaim      `json:"relations,omitempty"`
	Uncertain  bool                 `json:"uncertain"`
	CrossRefs  []string             `json:"cross_refs,omitempty"` // Record ids named by reference attributes
}
