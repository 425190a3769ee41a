// Package trajectory composes the queries the visualisation front end runs
// against a database of simulation trajectories: states connected by one
// relation per run, with atoms attached to each state.
package trajectory

import (
	"sort"
	"strings"

	"trajectory-analytics/backend/internal/cypher"
	apperrors "trajectory-analytics/backend/pkg/errors"
)

// Result-decoding tags attached to built queries.
const (
	// OptionNode marks rows holding whole nodes.
	OptionNode = "NODE"
	// OptionDataFrame marks rows that tabulate into a data frame.
	OptionDataFrame = "DF"
	// OptionAtoms marks rows carrying collected atoms.
	OptionAtoms = "ASE"
)

// Labels every trajectory database contains.
const (
	StateLabel    = "State"
	AtomLabel     = "Atom"
	NEBLabel      = "NEB"
	MetadataLabel = "Metadata"
	PartOfLabel   = "PART_OF"
)

// Schema describes the labels a QueryBuilder knows about.
type Schema struct {
	Relations []cypher.RelationSpec `json:"relations"`
	Nodes     []string              `json:"nodes"`
}

// DefaultSchema is the schema of a database holding the given runs: atoms
// belong to states, and each run links consecutive states.
func DefaultSchema(runs []string) Schema {
	s := Schema{
		Relations: []cypher.RelationSpec{
			{From: AtomLabel, Label: PartOfLabel, To: StateLabel, Multiplicity: cypher.ManyToOne},
		},
		Nodes: []string{AtomLabel, StateLabel, NEBLabel, MetadataLabel},
	}
	for _, run := range runs {
		s.Relations = append(s.Relations, cypher.RelationSpec{
			From: StateLabel, Label: run, To: StateLabel, Multiplicity: cypher.OneToOne,
		})
	}
	return s
}

// QueryBuilder adds trajectory queries on top of the general builder.
// Like the builder it embeds, it is not safe for concurrent use.
type QueryBuilder struct {
	*cypher.Builder
}

// NewQueryBuilder registers s and the Metadata node, which every
// trajectory database has.
func NewQueryBuilder(s Schema, opts ...cypher.Option) (*QueryBuilder, error) {
	nodes := s.Nodes
	if !contains(nodes, MetadataLabel) {
		nodes = append(append([]string{}, nodes...), MetadataLabel)
	}
	b, err := cypher.NewBuilder(s.Relations, nodes, opts...)
	if err != nil {
		return nil, err
	}
	return &QueryBuilder{Builder: b}, nil
}

// StatesOptions controls what States returns for each state.
type StatesOptions struct {
	IncludeAtoms bool
	Attributes   []string
	// OrderBy is the atom attribute atoms are collected in order of.
	// Defaults to internal_id.
	OrderBy string
}

// PathOptions controls Path.
type PathOptions struct {
	// MatchOn is the relation attribute bounded by start and end.
	// Defaults to timestep.
	MatchOn      string
	IncludeAtoms bool
	// Order sorts the path by MatchOn. Defaults to ascending.
	Order    cypher.Order
	Optional bool
}

// DefaultPathOptions returns a timestep-ordered path with atoms.
func DefaultPathOptions() PathOptions {
	return PathOptions{MatchOn: "timestep", IncludeAtoms: true, Order: cypher.Asc}
}

// UpdateEntity builds a parameterised update of the node labelled label
// whose matchOn attribute equals $matchOn. Every key of attributes is set
// from the parameter of the same name; the values are supplied when the
// query runs.
func (q *QueryBuilder) UpdateEntity(attributes map[string]any, label, matchOn string) (cypher.Query, error) {
	q.AddOptions(OptionDataFrame)

	n, err := q.MatchNodeWith(label, matchOn, "$"+matchOn)
	if err != nil {
		return q.fail(err)
	}

	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	assignments := make([]cypher.Assignment, len(keys))
	for i, k := range keys {
		assignments[i] = cypher.SetParameter(n, k, k)
	}
	if err := q.Set(assignments...); err != nil {
		return q.fail(err)
	}
	return q.Build(), nil
}

// States returns the states with the given ids.
func (q *QueryBuilder) States(ids []int, opts StatesOptions) (cypher.Query, error) {
	q.AddOptions(OptionNode, OptionDataFrame)

	s, err := q.MatchNode(StateLabel)
	if err != nil {
		return q.fail(err)
	}
	if err := q.WhereIn(s, "id", ids); err != nil {
		return q.fail(err)
	}

	switch {
	case opts.IncludeAtoms:
		err = q.includeAtoms(s, opts.OrderBy)
	case len(opts.Attributes) == 0:
		err = q.ReturnEntities(s)
	default:
		err = q.ReturnAttributes(s, opts.Attributes)
	}
	if err != nil {
		return q.fail(err)
	}
	return q.Build(), nil
}

// Path returns the states of run relation whose transitions lie between
// start and end, inclusive.
func (q *QueryBuilder) Path(start, end int, relation string, opts PathOptions) (cypher.Query, error) {
	if opts.MatchOn == "" {
		opts.MatchOn = "timestep"
	}
	if opts.Order == "" {
		opts.Order = cypher.Asc
	}

	var matchOpts []cypher.MatchOption
	if opts.Optional {
		matchOpts = append(matchOpts, cypher.Optional())
	}
	s, r, _, err := q.MatchRelation(relation, matchOpts...)
	if err != nil {
		return q.fail(err)
	}
	if err := q.WhereBetween(r, opts.MatchOn, start, end); err != nil {
		return q.fail(err)
	}

	if opts.IncludeAtoms {
		err = q.includeAtoms(s, "")
	} else {
		err = q.ReturnEntities(s)
	}
	if err != nil {
		return q.fail(err)
	}
	if err := q.OrderBy(r, opts.MatchOn, opts.Order); err != nil {
		return q.fail(err)
	}
	return q.Build(), nil
}

// TransitionMatrix returns, for every state, the probability of moving to
// each successor along relation: the number of transitions divided by the
// state's occurrenceAttr count.
func (q *QueryBuilder) TransitionMatrix(relation, occurrenceAttr string) (cypher.Query, error) {
	s, r, s2, err := q.MatchRelation(relation)
	if err != nil {
		return q.fail(err)
	}
	w, err := q.With(
		cypher.As(s, "id", "s_id"),
		cypher.As(s2, "id", "s2_id"),
		cypher.Count(r, "transition_count"),
		cypher.As(s, occurrenceAttr, "occurrences"),
	)
	if err != nil {
		return q.fail(err)
	}
	w2, err := q.With(
		cypher.CollectObject("transitions",
			cypher.Field{Key: "id", Expr: "s2_id"},
			cypher.Field{Key: "p", Expr: "toFloat(transition_count) / occurrences"},
		),
		cypher.Carry(w[0]),
	)
	if err != nil {
		return q.fail(err)
	}
	if err := q.ReturnEntities(w2[1], w2[0]); err != nil {
		return q.fail(err)
	}
	return q.Build(), nil
}

// PotentialFile returns the name and contents of the potential file run
// was simulated with.
func (q *QueryBuilder) PotentialFile(run string) (cypher.Query, error) {
	m, err := q.MatchNodeWith(MetadataLabel, "run", run)
	if err != nil {
		return q.fail(err)
	}
	if err := q.ReturnAttributes(m, []string{"potentialFileName", "potentialFileRaw"}); err != nil {
		return q.fail(err)
	}
	return q.Build(), nil
}

// Occurrences counts how often each state is left along run, stores the
// count on the state as <run>_occurrences and flags the run's Metadata node
// as having it. The run must be a registered relation.
func (q *QueryBuilder) Occurrences(run string) (cypher.Query, error) {
	name := cypher.SanitizeName(run)
	if name == "" {
		return cypher.Query{}, apperrors.NewBuilderUsage("Occurrences", "empty run name")
	}
	if _, err := q.Schema().Relation(name); err != nil {
		return cypher.Query{}, err
	}

	attr := name + "_occurrences"
	lines := []string{
		"MATCH (s:" + StateLabel + ")-[r:" + name + "]->(:" + StateLabel + ")",
		"WITH count(DISTINCT r) AS r_count, s",
		"MATCH (m:" + MetadataLabel + " { run:" + cypher.Literal(run) + " })",
		"WITH r_count, s, m",
		"SET s." + attr + " = r_count, m." + attr + " = true",
		"RETURN s." + attr + " AS occurrences",
	}
	return cypher.Query{Text: strings.Join(lines, "\n") + ";", Options: []string{}}, nil
}

// includeAtoms collects the atoms of s, ordered by orderBy, and returns
// them alongside s.
func (q *QueryBuilder) includeAtoms(s *cypher.Node, orderBy string) error {
	if orderBy == "" {
		orderBy = "internal_id"
	}
	a, _, _, err := q.MatchRelation(PartOfLabel, cypher.To(s))
	if err != nil {
		return err
	}
	if _, err := q.With(); err != nil {
		return err
	}
	if err := q.OrderBy(a, orderBy, cypher.Asc); err != nil {
		return err
	}
	w, err := q.With(cypher.Collect(a, ""))
	if err != nil {
		return err
	}
	q.AddOptions(OptionAtoms)
	return q.ReturnEntities(s, w[0])
}

// fail drops the partly composed query so the next one starts clean.
func (q *QueryBuilder) fail(err error) (cypher.Query, error) {
	q.Reset()
	return cypher.Query{}, err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
