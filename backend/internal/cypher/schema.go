package cypher

import (
	"fmt"
	"sort"
	"strings"

	apperrors "trajectory-analytics/backend/pkg/errors"
)

// RelationSpec declares one relation of the graph schema:
// (From)-[Label]->(To).
type RelationSpec struct {
	From         string       `json:"from"`
	Label        string       `json:"label"`
	To           string       `json:"to"`
	Multiplicity Multiplicity `json:"multiplicity"`
}

// Schema is the label registry of one builder.
//
// byLabel answers label lookups and is last-write-wins. allByID keeps every
// entity ever registered, including nodes that byLabel no longer points to
// (relation endpoints shadowed by a later registration of the same label).
// Variable names are unique across allByID.
type Schema struct {
	byLabel map[string]Entity
	allByID map[EntityID]Entity
	history []Entity
	used    map[string]struct{}
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		byLabel: make(map[string]Entity),
		allByID: make(map[EntityID]Entity),
		used:    make(map[string]struct{}),
	}
}

// AddNode registers a new node for label, replacing whatever byLabel held
// for it.
func (s *Schema) AddNode(label string) (*Node, error) {
	if label == "" {
		return nil, apperrors.NewBuilderUsage("AddNode", "empty label")
	}
	if !ValidIdentifier(label) {
		return nil, apperrors.NewBuilderUsage("AddNode", fmt.Sprintf("invalid label %q", label))
	}
	n := &Node{entity: newEntity(label, s.freshVariable(label))}
	s.register(n)
	return n, nil
}

// AddRelation registers (from)-[label]->(to). Both endpoints are registered
// as fresh nodes. For a self relation a third node is registered afterwards
// so that byLabel[from] is distinct from both endpoints.
func (s *Schema) AddRelation(from, label, to string, multiplicity Multiplicity) (*Relation, error) {
	if label == "" {
		return nil, apperrors.NewBuilderUsage("AddRelation", "empty relation label")
	}
	if !ValidIdentifier(label) {
		return nil, apperrors.NewBuilderUsage("AddRelation", fmt.Sprintf("invalid relation label %q", label))
	}
	if !multiplicity.Valid() {
		return nil, apperrors.NewBuilderUsage("AddRelation", "unknown multiplicity "+string(multiplicity))
	}

	a, err := s.AddNode(from)
	if err != nil {
		return nil, err
	}
	b, err := s.AddNode(to)
	if err != nil {
		return nil, err
	}

	r := &Relation{
		entity:       newEntity(label, s.freshVariable(label)),
		from:         a,
		to:           b,
		multiplicity: multiplicity,
	}
	s.register(r)

	if from == to {
		if _, err := s.AddNode(from); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Apply registers every relation, then every node label.
func (s *Schema) Apply(relations []RelationSpec, nodes []string) error {
	for _, rs := range relations {
		if _, err := s.AddRelation(rs.From, rs.Label, rs.To, rs.Multiplicity); err != nil {
			return err
		}
	}
	for _, label := range nodes {
		if _, err := s.AddNode(label); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the entity currently registered for label.
func (s *Schema) Lookup(label string) (Entity, bool) {
	e, ok := s.byLabel[label]
	return e, ok
}

// Node returns the node registered for label.
func (s *Schema) Node(label string) (*Node, error) {
	e, ok := s.byLabel[label]
	if !ok {
		return nil, apperrors.NewSchemaNotFound(label)
	}
	n, ok := e.(*Node)
	if !ok {
		return nil, apperrors.NewSchemaWrongKind(label, KindNode.String(), e.Kind().String())
	}
	return n, nil
}

// Relation returns the relation registered for label.
func (s *Schema) Relation(label string) (*Relation, error) {
	e, ok := s.byLabel[label]
	if !ok {
		return nil, apperrors.NewSchemaNotFound(label)
	}
	r, ok := e.(*Relation)
	if !ok {
		return nil, apperrors.NewSchemaWrongKind(label, KindRelation.String(), e.Kind().String())
	}
	return r, nil
}

// Contains reports whether e is an entity this schema created.
func (s *Schema) Contains(e Entity) bool {
	got, ok := s.allByID[e.ID()]
	return ok && got == e
}

// Labels returns the registered labels in sorted order.
func (s *Schema) Labels() []string {
	labels := make([]string, 0, len(s.byLabel))
	for l := range s.byLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Entities returns every registered entity in registration order.
func (s *Schema) Entities() []Entity {
	out := make([]Entity, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Schema) register(e Entity) {
	s.byLabel[e.Label()] = e
	s.allByID[e.ID()] = e
	s.history = append(s.history, e)
	s.used[e.Variable()] = struct{}{}
}

func (s *Schema) hasVariable(v string) bool {
	_, ok := s.used[v]
	return ok
}

// freshVariable derives a variable from the first letter of label and
// appends "1" until it is unused by any entity of this schema. Labels are
// valid identifiers, so the first rune is an ASCII letter or underscore.
func (s *Schema) freshVariable(label string) string {
	candidate := strings.ToLower(label[:1])
	for {
		if _, taken := s.used[candidate]; !taken {
			return candidate
		}
		candidate += "1"
	}
}

// ValidIdentifier reports whether s can be written into query text as a
// label, variable, attribute or parameter name without quoting:
// [A-Za-z_][A-Za-z0-9_]*.
func ValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// SanitizeName replaces every run of characters that is not an ASCII letter
// or digit with a single underscore, producing a usable label, relation
// type or attribute name from arbitrary input such as a trajectory name.
func SanitizeName(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			if pending {
				b.WriteByte('_')
				pending = false
			}
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if pending {
		b.WriteByte('_')
	}
	return b.String()
}
