package cypher

type statementKind int

const (
	// plainStatement renders verbatim.
	plainStatement statementKind = iota
	// matchStatement decides which of its entities are bound.
	matchStatement
	// withStatement narrows scope: only what it lists survives it.
	withStatement
)

func (k statementKind) String() string {
	switch k {
	case matchStatement:
		return "match"
	case withStatement:
		return "with"
	}
	return "plain"
}

// statement is one clause of a query under construction. Statements are
// immutable once appended; everything that depends on other statements
// is read from the scope handed to render.
type statement struct {
	kind     statementKind
	entities []Entity // referenced entities, deduplicated, in first-use order
	own      map[EntityID]struct{}
	ownNames map[string]struct{}
	render   func(sc scope) string
}

func newStatement(kind statementKind, entities []Entity, render func(sc scope) string) *statement {
	st := &statement{kind: kind, render: render}
	seen := make(map[EntityID]struct{}, len(entities))
	for _, e := range entities {
		if _, dup := seen[e.ID()]; dup {
			continue
		}
		seen[e.ID()] = struct{}{}
		st.entities = append(st.entities, e)
	}
	return st
}

// newWithStatement builds a scope-narrowing statement. own are the aliases
// the clause introduces and carried the earlier aliases it re-lists under
// their own name; both count as the clause's own and are never passed
// through again. sources are the entities its projections read, which must
// therefore be bound by the matches before it.
func newWithStatement(own []*Alias, carried []Entity, sources []Entity, render func(sc scope) string) *statement {
	entities := make([]Entity, 0, len(own)+len(sources))
	ownSet := make(map[EntityID]struct{}, len(own)+len(carried))
	names := make(map[string]struct{}, len(own))
	for _, a := range own {
		entities = append(entities, a)
		ownSet[a.ID()] = struct{}{}
		names[a.Variable()] = struct{}{}
	}
	for _, e := range carried {
		ownSet[e.ID()] = struct{}{}
	}
	entities = append(entities, sources...)

	st := newStatement(withStatement, entities, render)
	st.own = ownSet
	st.ownNames = names
	return st
}

func (st *statement) owns(id EntityID) bool {
	_, ok := st.own[id]
	return ok
}

// shadows reports whether the clause introduces a column named v, which a
// re-listed variable of the same name would collide with.
func (st *statement) shadows(v string) bool {
	_, ok := st.ownNames[v]
	return ok
}

// scope is the read-only view a statement gets of the resolution while it
// renders.
type scope struct {
	res   *resolution
	index int
}

func (sc scope) bound(e Entity) bool {
	return sc.res.bound[e.ID()]
}

func (sc scope) passthrough() []Entity {
	return sc.res.passthrough[sc.index]
}
