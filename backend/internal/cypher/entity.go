package cypher

import (
	"fmt"

	"github.com/google/uuid"
)

// EntityID identifies an entity for the lifetime of the schema (or, for
// aliases, the query) that created it.
type EntityID = uuid.UUID

// Kind distinguishes the three entity flavours a query can refer to.
type Kind int

const (
	KindNode Kind = iota
	KindRelation
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindRelation:
		return "relation"
	case KindAlias:
		return "alias"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Entity is anything a statement can reference by variable.
type Entity interface {
	ID() EntityID
	Label() string
	Variable() string
	Kind() Kind
}

type entity struct {
	id       EntityID
	label    string
	variable string
}

func newEntity(label, variable string) entity {
	return entity{id: uuid.New(), label: label, variable: variable}
}

func (e *entity) ID() EntityID     { return e.id }
func (e *entity) Label() string    { return e.label }
func (e *entity) Variable() string { return e.variable }

// Node is a labeled graph node.
type Node struct {
	entity
}

func (n *Node) Kind() Kind { return KindNode }

// pattern prints (n:Label) when bound and (:Label) when anonymous.
func (n *Node) pattern(bound bool) string {
	if bound {
		return "(" + n.variable + ":" + n.label + ")"
	}
	return "(:" + n.label + ")"
}

// Multiplicity describes how many endpoints a relation connects on each
// side. It is carried as schema metadata and does not affect rendering.
type Multiplicity string

const (
	ManyToOne  Multiplicity = "MANY-TO-ONE"
	OneToOne   Multiplicity = "ONE-TO-ONE"
	ManyToMany Multiplicity = "MANY-TO-MANY"
)

// Valid reports whether m is one of the known multiplicity tags.
func (m Multiplicity) Valid() bool {
	switch m {
	case ManyToOne, OneToOne, ManyToMany:
		return true
	}
	return false
}

// Relation is a directed, labeled edge between two nodes. The endpoints
// are references into the schema, not copies.
type Relation struct {
	entity
	from         *Node
	to           *Node
	multiplicity Multiplicity
}

func (r *Relation) Kind() Kind { return KindRelation }

// From returns the node the relation starts at.
func (r *Relation) From() *Node { return r.from }

// To returns the node the relation points to.
func (r *Relation) To() *Node { return r.to }

// Multiplicity returns the tag the relation was registered with.
func (r *Relation) Multiplicity() Multiplicity { return r.multiplicity }

// Neighbor returns the endpoint on the other side of n.
func (r *Relation) Neighbor(n *Node) *Node {
	if n == r.from {
		return r.to
	}
	return r.from
}

func (r *Relation) pattern(bound bool) string {
	if bound {
		return "[" + r.variable + ":" + r.label + "]"
	}
	return "[:" + r.label + "]"
}

// Alias is a name introduced by a WITH clause. The clause that defines it
// prints the init expression; every later statement prints the bare name.
type Alias struct {
	entity
	init string
}

func newAlias(name, init string) *Alias {
	return &Alias{entity: newEntity(name, name), init: init}
}

func (a *Alias) Kind() Kind { return KindAlias }

// Init returns the defining expression, e.g. "collect(DISTINCT a) AS a_list".
func (a *Alias) Init() string { return a.init }

func attribute(e Entity, attr string) string {
	return e.Variable() + "." + attr
}
