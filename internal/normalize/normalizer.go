// Package normalize converts raw extracted factoids into typed mentions
// validated against the ontology registry. Downstream stages never see
// raw untyped data.
package normalize

import (
	"fmt"
	"sort"

	"github.com/mbarbier/studium/internal/model"
	"github.com/mbarbier/studium/internal/schema"
)

// Warning is a dropped attribute value; the mention survives without it
type Warning struct {
	Attribute string
	Reason    string
}

// Rejection drops the whole factoid. It always names the original record
// and the violated constraint so nothing disappears silently.
type Rejection struct {
	RecordID   string
	Constraint string
}

func (r *Rejection) String() string {
	return fmt.Sprintf("%s: %s", r.RecordID, r.Constraint)
}

// Normalizer validates and coerces raw factoids against one registry
type Normalizer struct {
	registry *schema.Registry
}

// NewNormalizer creates a normalizer bound to a loaded registry
func NewNormalizer(registry *schema.Registry) *Normalizer {
	return &Normalizer{registry: registry}
}

// Normalize converts one raw factoid into a mention. Exactly one of the
// mention and the rejection is non-nil. Attribute coercion failures are
// warnings, not hard failures, unless the attribute identifies the type.
func (n *Normalizer) Normalize(raw model.RawFactoid) (*model.Mention, []Warning, *Rejection) {
	if raw.RecordID == "" {
		return nil, nil, &Rejection{RecordID: "(missing)", Constraint: "record_id is required"}
	}
	if !n.registry.HasType(raw.EntityTypeClaim) {
		return nil, nil, &Rejection{
			RecordID:   raw.RecordID,
			Constraint: fmt.Sprintf("entity_type_claim %q not in ontology", raw.EntityTypeClaim),
		}
	}

	identifying := n.registry.IdentifyingAttribute(raw.EntityTypeClaim)
	if identifying == "" {
		return nil, nil, &Rejection{
			RecordID:   raw.RecordID,
			Constraint: fmt.Sprintf("type %q declares no identifying attribute", raw.EntityTypeClaim),
		}
	}

	mention := &model.Mention{
		RecordID:   raw.RecordID,
		Type:       raw.EntityTypeClaim,
		Attributes: make(map[string]model.AttrValue, len(raw.Attributes)),
		Relations:  append([]model.RelationClaim(nil), raw.Relations...),
		Uncertain:  raw.Uncertainty == model.CertaintyUncertain,
	}

	// Deterministic processing order keeps warnings reproducible
	names := make([]string, 0, len(raw.Attributes))
	for name := range raw.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []Warning
	for _, name := range names {
		value, uncertain := StripUncertainty(raw.Attributes[name])
		spec, declared := n.registry.Attribute(raw.EntityTypeClaim, name)
		if !declared {
			warnings = append(warnings, Warning{Attribute: name, Reason: "not declared for type " + raw.EntityTypeClaim})
			continue
		}

		coerced, err := coerce(spec, value)
		if err != nil {
			if name == identifying {
				return nil, nil, &Rejection{
					RecordID:   raw.RecordID,
					Constraint: fmt.Sprintf("identifying attribute %q: %v", name, err),
				}
			}
			warnings = append(warnings, Warning{Attribute: name, Reason: err.Error()})
			continue
		}
		coerced.Uncertain = uncertain
		if uncertain {
			mention.Uncertain = true
		}
		mention.Attributes[name] = *coerced

		if spec.Kind == model.KindReference {
			mention.CrossRefs = append(mention.CrossRefs, coerced.Text)
		}
	}

	idValue, ok := mention.Attributes[identifying]
	if !ok {
		return nil, nil, &Rejection{
			RecordID:   raw.RecordID,
			Constraint: fmt.Sprintf("identifying attribute %q missing", identifying),
		}
	}
	mention.Name = idValue.Text

	return mention, warnings, nil
}

// coerce parses the cleaned raw value into the attribute's declared kind
func coerce(spec *schema.AttributeSpec, value string) (*model.AttrValue, error) {
	switch spec.Kind {
	case model.KindDate:
		r, err := ParseDate(value)
		if err != nil {
			return nil, err
		}
		return &model.AttrValue{Kind: model.KindDate, Date: r}, nil

	case model.KindEnum:
		v := Clean(value)
		if v == "" {
			return nil, fmt.Errorf("empty after cleaning")
		}
		if !spec.EnumAllows(v) {
			return nil, fmt.Errorf("value %q not among declared enum values", v)
		}
		return &model.AttrValue{Kind: model.KindEnum, Text: Fold(v)}, nil

	case model.KindReference:
		v := Clean(value)
		if v == "" {
			return nil, fmt.Errorf("empty reference")
		}
		return &model.AttrValue{Kind: model.KindReference, Text: v}, nil

	default: // string
		v := Clean(value)
		if v == "" {
			return nil, fmt.Errorf("empty after cleaning")
		}
		return &model.AttrValue{Kind: model.KindString, Text: v}, nil
	}
}
