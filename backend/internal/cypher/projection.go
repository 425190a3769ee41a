package cypher

import "strings"

type projectionKind int

const (
	projectAttribute projectionKind = iota
	projectCount
	projectCollect
	projectObject
	projectCarry
)

// Projection is one item of a WITH clause. Projections are plain values;
// a clause's shape is only fixed when With realises all of them together.
type Projection struct {
	kind   projectionKind
	source Entity
	attr   string
	name   string
	fields []Field
}

// Field is one key of a literal map expression.
type Field struct {
	Key  string
	Expr string
}

// As projects e.attr under name, defaulting to "<var>_<attr>".
func As(e Entity, attr, name string) Projection {
	return Projection{kind: projectAttribute, source: e, attr: attr, name: name}
}

// Count projects count(DISTINCT e), defaulting to "<var>_count".
func Count(e Entity, name string) Projection {
	return Projection{kind: projectCount, source: e, name: name}
}

// Collect projects collect(DISTINCT e), defaulting to "<var>_list".
func Collect(e Entity, name string) Projection {
	return Projection{kind: projectCollect, source: e, name: name}
}

// CollectObject projects collect({key: expr, ...}) under name. Field
// expressions are emitted verbatim and usually refer to aliases of an
// earlier WITH.
func CollectObject(name string, fields ...Field) Projection {
	return Projection{kind: projectObject, name: name, fields: fields}
}

// Carry re-lists an alias introduced by an earlier WITH. Aliases are not
// threaded through later WITH clauses automatically, so a query that needs
// one beyond the next clause carries it explicitly.
func Carry(a *Alias) Projection {
	return Projection{kind: projectCarry, source: a}
}

// Object renders a literal map, {key: expr, ...}, keeping field order.
func Object(fields ...Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Key + ": " + f.Expr
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// realize returns the alias name and its init text. source has already been
// checked to belong to the builder.
func (p Projection) realize() (name, init string) {
	name = p.name
	switch p.kind {
	case projectAttribute:
		if name == "" {
			name = p.source.Variable() + "_" + p.attr
		}
		return name, attribute(p.source, p.attr) + " AS " + name
	case projectCount:
		if name == "" {
			name = p.source.Variable() + "_count"
		}
		return name, "count(DISTINCT " + p.source.Variable() + ") AS " + name
	case projectCollect:
		if name == "" {
			name = p.source.Variable() + "_list"
		}
		return name, "collect(DISTINCT " + p.source.Variable() + ") AS " + name
	case projectObject:
		return name, "collect(" + Object(p.fields...) + ") AS " + name
	case projectCarry:
		return p.source.Variable(), p.source.Variable()
	}
	return name, ""
}
