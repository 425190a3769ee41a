package cypher

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	apperrors "trajectory-analytics/backend/pkg/errors"
	"trajectory-analytics/backend/pkg/logger"
)

// Order is the direction of an ORDER BY.
type Order string

const (
	Asc  Order = "ASC"
	Desc Order = "DESC"
)

// Builder composes one Cypher query at a time against a fixed schema.
//
// Every operation appends one statement and returns the entities it
// touched, so later operations can refer to them. Build renders the
// statements, resets the builder and keeps the schema for the next query.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	schema     *Schema
	aliases    map[EntityID]*Alias
	statements []*statement
	options    []string
	log        *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger built queries are reported to. A nil logger
// discards them.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l == nil {
			l = zap.NewNop()
		}
		b.log = l
	}
}

// WithSchema makes the builder use an existing schema instead of a new one.
func WithSchema(s *Schema) Option {
	return func(b *Builder) { b.schema = s }
}

// NewBuilder creates a builder and registers relations, then nodes.
func NewBuilder(relations []RelationSpec, nodes []string, opts ...Option) (*Builder, error) {
	b := &Builder{
		aliases: make(map[EntityID]*Alias),
		log:     logger.Named("cypher"),
	}
	for _, o := range opts {
		o(b)
	}
	if b.schema == nil {
		b.schema = NewSchema()
	}
	if err := b.schema.Apply(relations, nodes); err != nil {
		return nil, err
	}
	return b, nil
}

// Schema returns the builder's label registry.
func (b *Builder) Schema() *Schema { return b.schema }

// Len returns the number of statements waiting for Build.
func (b *Builder) Len() int { return len(b.statements) }

// AddOptions declares result-decoding tags for the query being composed.
// Tags are kept in first-declaration order without duplicates.
func (b *Builder) AddOptions(tags ...string) {
	for _, t := range tags {
		if !b.HasOption(t) {
			b.options = append(b.options, t)
		}
	}
}

// HasOption reports whether tag was declared for the current query.
func (b *Builder) HasOption(tag string) bool {
	for _, o := range b.options {
		if o == tag {
			return true
		}
	}
	return false
}

// MatchNode appends MATCH (n:Label).
func (b *Builder) MatchNode(label string) (*Node, error) {
	n, err := b.schema.Node(label)
	if err != nil {
		return nil, err
	}
	b.add(newStatement(matchStatement, []Entity{n}, func(sc scope) string {
		return "MATCH " + n.pattern(sc.bound(n))
	}))
	return n, nil
}

// MatchNodeWith appends MATCH (n:Label { attr:value }). The value is
// written into the text as a literal; pass "$name" to reference a query
// parameter instead.
func (b *Builder) MatchNodeWith(label, attr string, value any) (*Node, error) {
	if err := checkIdentifier("MatchNodeWith", "attribute", attr); err != nil {
		return nil, err
	}
	n, err := b.schema.Node(label)
	if err != nil {
		return nil, err
	}
	predicate := " { " + attr + ":" + Literal(value) + " }"
	b.add(newStatement(matchStatement, []Entity{n}, func(sc scope) string {
		v := ""
		if sc.bound(n) {
			v = n.variable
		}
		return "MATCH (" + v + ":" + n.label + predicate + ")"
	}))
	return n, nil
}

// MatchOption adjusts a relation match.
type MatchOption func(*relationMatch)

type relationMatch struct {
	from     *Node
	to       *Node
	optional bool
}

// From anchors the start of the relation to a node matched earlier.
func From(n *Node) MatchOption {
	return func(m *relationMatch) { m.from = n }
}

// To anchors the end of the relation to a node matched earlier.
func To(n *Node) MatchOption {
	return func(m *relationMatch) { m.to = n }
}

// Optional turns the match into an OPTIONAL MATCH.
func Optional() MatchOption {
	return func(m *relationMatch) { m.optional = true }
}

// MatchRelation appends MATCH (a)-[r:Label]->(b) and returns both endpoints
// and the relation. Anchored endpoints are printed by variable only.
func (b *Builder) MatchRelation(label string, opts ...MatchOption) (*Node, *Relation, *Node, error) {
	r, err := b.schema.Relation(label)
	if err != nil {
		return nil, nil, nil, err
	}

	var m relationMatch
	for _, o := range opts {
		o(&m)
	}
	for _, anchor := range []*Node{m.from, m.to} {
		if anchor != nil {
			if err := b.owns("MatchRelation", anchor); err != nil {
				return nil, nil, nil, err
			}
		}
	}

	from, to := r.from, r.to
	if m.from != nil {
		from = m.from
	}
	if m.to != nil {
		to = m.to
	}

	endpoint := func(sc scope, n *Node) string {
		if n == m.from || n == m.to {
			return "(" + n.variable + ")"
		}
		return n.pattern(sc.bound(n))
	}
	keyword := "MATCH "
	if m.optional {
		keyword = "OPTIONAL MATCH "
	}

	b.add(newStatement(matchStatement, []Entity{from, r, to}, func(sc scope) string {
		return keyword + endpoint(sc, from) + "-" + r.pattern(sc.bound(r)) + "->" + endpoint(sc, to)
	}))
	return from, r, to, nil
}

// WhereIn appends WHERE e.attr IN [values...].
func (b *Builder) WhereIn(e Entity, attr string, values any) error {
	if err := b.owns("WhereIn", e); err != nil {
		return err
	}
	if err := checkIdentifier("WhereIn", "attribute", attr); err != nil {
		return err
	}
	text := "WHERE " + attribute(e, attr) + " IN " + Literal(values)
	b.add(newStatement(plainStatement, []Entity{e}, constant(text)))
	return nil
}

// WhereBetween appends WHERE e.attr >= lo AND e.attr <= hi.
func (b *Builder) WhereBetween(e Entity, attr string, lo, hi any) error {
	if err := b.owns("WhereBetween", e); err != nil {
		return err
	}
	if err := checkIdentifier("WhereBetween", "attribute", attr); err != nil {
		return err
	}
	a := attribute(e, attr)
	text := "WHERE " + a + " >= " + Literal(lo) + " AND " + a + " <= " + Literal(hi)
	b.add(newStatement(plainStatement, []Entity{e}, constant(text)))
	return nil
}

// OrderBy appends ORDER BY e.attr. An empty attr orders by e itself, which
// is what aliases need.
func (b *Builder) OrderBy(e Entity, attr string, order Order) error {
	if err := b.owns("OrderBy", e); err != nil {
		return err
	}
	if order != Asc && order != Desc {
		return apperrors.NewBuilderUsage("OrderBy", "unknown order "+string(order))
	}
	key := e.Variable()
	if attr != "" {
		if err := checkIdentifier("OrderBy", "attribute", attr); err != nil {
			return err
		}
		key = attribute(e, attr)
	}
	b.add(newStatement(plainStatement, []Entity{e}, constant("ORDER BY "+key+" "+string(order))))
	return nil
}

// Set appends one SET clause made of assignments.
func (b *Builder) Set(assignments ...Assignment) error {
	if len(assignments) == 0 {
		return apperrors.NewBuilderUsage("Set", "no assignments")
	}
	var entities []Entity
	parts := make([]string, len(assignments))
	for i, a := range assignments {
		for _, e := range a.entities() {
			if err := b.owns("Set", e); err != nil {
				return err
			}
		}
		if err := checkIdentifier("Set", "attribute", a.attr); err != nil {
			return err
		}
		if a.parameter {
			if err := checkIdentifier("Set", "parameter", a.param); err != nil {
				return err
			}
		}
		entities = append(entities, a.entities()...)
		parts[i] = a.String()
	}
	b.add(newStatement(plainStatement, entities, constant("SET "+strings.Join(parts, ","))))
	return nil
}

// ReturnEntities appends RETURN a,b,...
func (b *Builder) ReturnEntities(entities ...Entity) error {
	if len(entities) == 0 {
		return apperrors.NewBuilderUsage("ReturnEntities", "no entities to return")
	}
	vars := make([]string, len(entities))
	for i, e := range entities {
		if err := b.owns("ReturnEntities", e); err != nil {
			return err
		}
		vars[i] = e.Variable()
	}
	b.add(newStatement(plainStatement, entities, constant("RETURN "+strings.Join(vars, ","))))
	return nil
}

// ReturnAttributes appends RETURN e.a AS a, e.b AS b, ...
func (b *Builder) ReturnAttributes(e Entity, attrs []string) error {
	if len(attrs) == 0 {
		return apperrors.NewBuilderUsage("ReturnAttributes", "no attributes to return")
	}
	if err := b.owns("ReturnAttributes", e); err != nil {
		return err
	}
	parts := make([]string, len(attrs))
	for i, attr := range attrs {
		if err := checkIdentifier("ReturnAttributes", "attribute", attr); err != nil {
			return err
		}
		parts[i] = attribute(e, attr) + " AS " + attr
	}
	b.add(newStatement(plainStatement, []Entity{e}, constant("RETURN "+strings.Join(parts, ", "))))
	return nil
}

// With appends a scope-narrowing WITH clause. The projections become the
// clause's own aliases, returned in the same order; every variable that is
// used both before and after the clause is re-listed after them. With no
// projections the clause only re-lists.
//
// Alias names must be unique within the query and must not reuse a schema
// variable. Carry is the exception: it re-lists an alias under its own name.
func (b *Builder) With(projections ...Projection) ([]*Alias, error) {
	var sources, carried []Entity
	own := make([]*Alias, 0, len(projections))
	names := make(map[string]struct{}, len(projections))

	for _, p := range projections {
		if p.source != nil {
			if err := b.owns("With", p.source); err != nil {
				return nil, err
			}
			sources = append(sources, p.source)
		} else if p.kind != projectObject {
			return nil, apperrors.NewBuilderUsage("With", "projection without a source entity")
		}
		if p.kind == projectAttribute {
			if err := checkIdentifier("With", "attribute", p.attr); err != nil {
				return nil, err
			}
		}
		for _, f := range p.fields {
			if err := checkIdentifier("With", "field", f.Key); err != nil {
				return nil, err
			}
		}

		name, init := p.realize()
		if name == "" {
			return nil, apperrors.NewBuilderUsage("With", "projection without a name")
		}
		if err := checkIdentifier("With", "alias", name); err != nil {
			return nil, err
		}
		if _, dup := names[name]; dup {
			return nil, apperrors.NewBuilderUsage("With", "duplicate alias "+name)
		}
		if p.kind == projectCarry {
			carried = append(carried, p.source)
		} else if b.nameTaken(name) {
			return nil, apperrors.NewBuilderUsage("With", "alias "+name+" is already a variable of this query")
		}
		names[name] = struct{}{}
		own = append(own, newAlias(name, init))
	}

	for _, a := range own {
		b.aliases[a.ID()] = a
	}

	b.add(newWithStatement(own, carried, sources, func(sc scope) string {
		parts := make([]string, 0, len(own))
		for _, a := range own {
			parts = append(parts, a.init)
		}
		for _, e := range sc.passthrough() {
			parts = append(parts, e.Variable())
		}
		return strings.TrimSpace("WITH " + strings.Join(parts, ","))
	}))
	return own, nil
}

// nameTaken reports whether name is the variable of a schema entity or of
// an alias introduced earlier in the current query.
func (b *Builder) nameTaken(name string) bool {
	if b.schema.hasVariable(name) {
		return true
	}
	for _, a := range b.aliases {
		if a.Variable() == name {
			return true
		}
	}
	return false
}

// Reset drops the statements, options and aliases of the current query.
// The schema is kept.
func (b *Builder) Reset() {
	b.statements = nil
	b.options = nil
	b.aliases = make(map[EntityID]*Alias)
}

func (b *Builder) add(st *statement) {
	b.statements = append(b.statements, st)
}

// owns rejects entities that were not created by this builder's schema or
// by a WITH of the query being composed.
func (b *Builder) owns(op string, e Entity) error {
	if isNil(e) {
		return apperrors.NewBuilderUsage(op, "nil entity")
	}
	if a, ok := e.(*Alias); ok {
		if b.aliases[a.ID()] == a {
			return nil
		}
		return apperrors.NewBuilderUsage(op, "alias "+a.Variable()+" does not belong to the current query")
	}
	if !b.schema.Contains(e) {
		return apperrors.NewBuilderUsage(op, "entity "+e.Variable()+" does not belong to this builder")
	}
	return nil
}

func isNil(e Entity) bool {
	switch v := e.(type) {
	case nil:
		return true
	case *Node:
		return v == nil
	case *Relation:
		return v == nil
	case *Alias:
		return v == nil
	}
	return false
}

// checkIdentifier rejects names that would not survive being written into
// query text unquoted.
func checkIdentifier(op, what, name string) error {
	if !ValidIdentifier(name) {
		return apperrors.NewBuilderUsage(op, fmt.Sprintf("invalid %s %q", what, name))
	}
	return nil
}

func constant(text string) func(scope) string {
	return func(scope) string { return text }
}
