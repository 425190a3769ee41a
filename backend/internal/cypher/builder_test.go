package cypher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "trajectory-analytics/backend/pkg/errors"
)

// newTestBuilder registers the trajectory schema used across these tests.
// Variables come out as: State s, s1, s11; nano_pt n; Atom a; State s111;
// PART_OF p; Metadata m.
func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(
		[]RelationSpec{
			{From: "State", Label: "nano_pt", To: "State", Multiplicity: OneToOne},
			{From: "Atom", Label: "PART_OF", To: "State", Multiplicity: ManyToOne},
		},
		[]string{"Metadata"},
		WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	return b
}

func TestBuilder_SingleLabelSchemas(t *testing.T) {
	t.Run("anonymous match", func(t *testing.T) {
		b, err := NewBuilder(nil, []string{"State"}, WithLogger(zap.NewNop()))
		require.NoError(t, err)

		_, err = b.MatchNode("State")
		require.NoError(t, err)

		assert.Equal(t, "MATCH (:State);", b.Build().Text)
	})

	t.Run("filter binds the node", func(t *testing.T) {
		b, err := NewBuilder(nil, []string{"State"}, WithLogger(zap.NewNop()))
		require.NoError(t, err)

		s, err := b.MatchNode("State")
		require.NoError(t, err)
		require.NoError(t, b.WhereIn(s, "id", []int{1, 2, 3}))

		assert.Equal(t, "MATCH (s:State)\nWHERE s.id IN [1, 2, 3];", b.Build().Text)
	})

	t.Run("collect through a WITH", func(t *testing.T) {
		b, err := NewBuilder([]RelationSpec{{From: "Atom", Label: "PART_OF", To: "State", Multiplicity: ManyToOne}}, nil, WithLogger(zap.NewNop()))
		require.NoError(t, err)

		a, _, _, err := b.MatchRelation("PART_OF")
		require.NoError(t, err)
		w, err := b.With(Collect(a, "a_list"))
		require.NoError(t, err)
		require.NoError(t, b.ReturnEntities(w[0]))

		assert.Equal(t, "MATCH (a:Atom)-[:PART_OF]->(:State)\nWITH collect(DISTINCT a) AS a_list\nRETURN a_list;", b.Build().Text)
	})

	t.Run("parameterised set", func(t *testing.T) {
		b, err := NewBuilder(nil, []string{"State"}, WithLogger(zap.NewNop()))
		require.NoError(t, err)

		s, err := b.MatchNodeWith("State", "id", 4)
		require.NoError(t, err)
		require.NoError(t, b.Set(SetParameter(s, "prop1", "prop1"), SetParameter(s, "prop2", "prop2")))

		assert.Equal(t, "MATCH (s:State { id:4 })\nSET s.prop1 = $prop1,s.prop2 = $prop2;", b.Build().Text)
	})
}

func TestBuilder_MatchNode(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.MatchNode("State")
	require.NoError(t, err)

	assert.Equal(t, "MATCH (:State);", b.Build().Text)
}

func TestBuilder_MatchNodeBound(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.MatchNode("State")
	require.NoError(t, err)
	require.NoError(t, b.WhereIn(s, "foo", []string{"bar", "baz"}))

	assert.Equal(t, "MATCH (s111:State)\nWHERE s111.foo IN ['bar', 'baz'];", b.Build().Text)
}

func TestBuilder_MatchMissingNode(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.MatchNode("Bogus")

	var notFound *apperrors.ErrSchemaNotFound
	assert.True(t, errors.As(err, &notFound))
	assert.Zero(t, b.Len())
}

func TestBuilder_MatchNodeWithWrongKind(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.MatchNode("PART_OF")

	var wrongKind *apperrors.ErrSchemaWrongKind
	assert.True(t, errors.As(err, &wrongKind))

	_, _, _, err = b.MatchRelation("State")
	assert.True(t, errors.As(err, &wrongKind))
}

func TestBuilder_MatchNodeWith(t *testing.T) {
	b := newTestBuilder(t)
	_, err := b.MatchNodeWith("State", "id", 4)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (:State { id:4 });", b.Build().Text)

	_, err = b.MatchNodeWith("Metadata", "run", "nano_pt")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (:Metadata { run:'nano_pt' });", b.Build().Text)

	_, err = b.MatchNodeWith("State", "id", "$id")
	require.NoError(t, err)
	assert.Equal(t, "MATCH (:State { id:$id });", b.Build().Text)
}

func TestBuilder_MatchRelation(t *testing.T) {
	b := newTestBuilder(t)
	_, _, _, err := b.MatchRelation("nano_pt")
	require.NoError(t, err)

	assert.Equal(t, "MATCH (:State)-[:nano_pt]->(:State);", b.Build().Text)
}

func TestBuilder_MatchRelationAnchored(t *testing.T) {
	tests := []struct {
		name string
		opts func(n *Node) []MatchOption
		want string
	}{
		{
			name: "from",
			opts: func(n *Node) []MatchOption { return []MatchOption{From(n)} },
			want: "MATCH (s111:State)\nMATCH (s111)-[:nano_pt]->(:State);",
		},
		{
			name: "to",
			opts: func(n *Node) []MatchOption { return []MatchOption{To(n)} },
			want: "MATCH (s111:State)\nMATCH (:State)-[:nano_pt]->(s111);",
		},
		{
			name: "optional",
			opts: func(n *Node) []MatchOption { return []MatchOption{To(n), Optional()} },
			want: "MATCH (s111:State)\nOPTIONAL MATCH (:State)-[:nano_pt]->(s111);",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			n, err := b.MatchNode("State")
			require.NoError(t, err)
			_, _, _, err = b.MatchRelation("nano_pt", tt.opts(n)...)
			require.NoError(t, err)

			assert.Equal(t, tt.want, b.Build().Text)
		})
	}
}

func TestBuilder_WithPassesBoundNode(t *testing.T) {
	b := newTestBuilder(t)
	n, err := b.MatchNode("State")
	require.NoError(t, err)
	_, err = b.With()
	require.NoError(t, err)
	require.NoError(t, b.ReturnEntities(n))

	assert.Equal(t, "MATCH (s111:State)\nWITH s111\nRETURN s111;", b.Build().Text)
}

func TestBuilder_WithProjections(t *testing.T) {
	tests := []struct {
		name       string
		projection func(a *Node) Projection
		want       string
	}{
		{
			name:       "collect",
			projection: func(a *Node) Projection { return Collect(a, "") },
			want:       "MATCH (a:Atom)-[:PART_OF]->(:State)\nWITH collect(DISTINCT a) AS a_list\nRETURN a_list;",
		},
		{
			name:       "count",
			projection: func(a *Node) Projection { return Count(a, "") },
			want:       "MATCH (a:Atom)-[:PART_OF]->(:State)\nWITH count(DISTINCT a) AS a_count\nRETURN a_count;",
		},
		{
			name:       "attribute",
			projection: func(a *Node) Projection { return As(a, "foo", "") },
			want:       "MATCH (a:Atom)-[:PART_OF]->(:State)\nWITH a.foo AS a_foo\nRETURN a_foo;",
		},
		{
			name:       "custom name",
			projection: func(a *Node) Projection { return Count(a, "atoms") },
			want:       "MATCH (a:Atom)-[:PART_OF]->(:State)\nWITH count(DISTINCT a) AS atoms\nRETURN atoms;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			a, _, _, err := b.MatchRelation("PART_OF")
			require.NoError(t, err)
			w, err := b.With(tt.projection(a))
			require.NoError(t, err)
			require.NoError(t, b.ReturnEntities(w[0]))

			assert.Equal(t, tt.want, b.Build().Text)
		})
	}
}

func TestBuilder_WithAliasAndBinding(t *testing.T) {
	b := newTestBuilder(t)
	a, _, s, err := b.MatchRelation("PART_OF")
	require.NoError(t, err)
	w, err := b.With(As(a, "foo", ""))
	require.NoError(t, err)
	require.NoError(t, b.ReturnEntities(w[0], s))

	assert.Equal(t, "MATCH (a:Atom)-[:PART_OF]->(s111:State)\nWITH a.foo AS a_foo,s111\nRETURN a_foo,s111;", b.Build().Text)
}

func TestBuilder_CollectObjectAndCarry(t *testing.T) {
	b := newTestBuilder(t)
	s, n, s1, err := b.MatchRelation("nano_pt")
	require.NoError(t, err)
	w, err := b.With(
		As(s, "id", "s_id"),
		As(s1, "id", "s2_id"),
		Count(n, "transition_count"),
	)
	require.NoError(t, err)
	w2, err := b.With(
		CollectObject("transitions",
			Field{Key: "id", Expr: "s2_id"},
			Field{Key: "p", Expr: "transition_count"},
		),
		Carry(w[0]),
	)
	require.NoError(t, err)
	require.NoError(t, b.ReturnEntities(w2[1], w2[0]))

	assert.Equal(t,
		"MATCH (s:State)-[n:nano_pt]->(s1:State)\n"+
			"WITH s.id AS s_id,s1.id AS s2_id,count(DISTINCT n) AS transition_count\n"+
			"WITH collect({id: s2_id, p: transition_count}) AS transitions,s_id\n"+
			"RETURN s_id,transitions;",
		b.Build().Text)
}

func TestBuilder_ReturnEntitiesRequiresEntities(t *testing.T) {
	b := newTestBuilder(t)
	err := b.ReturnEntities()

	var usage *apperrors.ErrBuilderUsage
	require.True(t, errors.As(err, &usage))
	assert.Equal(t, "ReturnEntities", usage.Operation)
	assert.False(t, apperrors.IsRetryable(err))
}

func TestBuilder_ReturnAttributes(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.MatchNode("State")
	require.NoError(t, err)
	require.NoError(t, b.ReturnAttributes(s, []string{"foo", "bar"}))

	assert.Equal(t, "MATCH (s111:State)\nRETURN s111.foo AS foo, s111.bar AS bar;", b.Build().Text)
}

func TestBuilder_ReturnAttributesRequiresAttributes(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.MatchNode("State")
	require.NoError(t, err)

	err = b.ReturnAttributes(s, nil)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeBuilder))
}

func TestBuilder_WhereBetween(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.MatchNode("State")
	require.NoError(t, err)
	require.NoError(t, b.WhereBetween(s, "id", 1, 3))

	assert.Equal(t, "MATCH (s111:State)\nWHERE s111.id >= 1 AND s111.id <= 3;", b.Build().Text)
}

func TestBuilder_OrderBy(t *testing.T) {
	b := newTestBuilder(t)
	a, _, _, err := b.MatchRelation("PART_OF")
	require.NoError(t, err)
	require.NoError(t, b.OrderBy(a, "internal_id", Asc))
	w, err := b.With(Collect(a, ""))
	require.NoError(t, err)
	require.NoError(t, b.OrderBy(w[0], "", Desc))

	assert.Equal(t,
		"MATCH (a:Atom)-[:PART_OF]->(:State)\nORDER BY a.internal_id ASC\nWITH collect(DISTINCT a) AS a_list\nORDER BY a_list DESC;",
		b.Build().Text)

	err = b.OrderBy(a, "id", Order("SIDEWAYS"))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeBuilder))
}

func TestBuilder_SetValue(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.MatchNode("State")
	require.NoError(t, err)
	require.NoError(t, b.Set(SetLiteral(s, "foo", 5), SetLiteral(s, "flag", true)))

	assert.Equal(t, "MATCH (s111:State)\nSET s111.foo = 5,s111.flag = true;", b.Build().Text)
}

func TestBuilder_SetValueToAlias(t *testing.T) {
	b := newTestBuilder(t)
	a, r, _, err := b.MatchRelation("PART_OF")
	require.NoError(t, err)
	w, err := b.With(Collect(r, ""))
	require.NoError(t, err)
	require.NoError(t, b.Set(SetToAlias(a, "foo", w[0])))

	assert.Equal(t, "MATCH (a:Atom)-[p:PART_OF]->(:State)\nWITH collect(DISTINCT p) AS p_list,a\nSET a.foo = p_list;", b.Build().Text)
}

func TestBuilder_SetRequiresAssignments(t *testing.T) {
	b := newTestBuilder(t)
	assert.Error(t, b.Set())
}

func TestBuilder_RejectsForeignEntities(t *testing.T) {
	b := newTestBuilder(t)
	other := newTestBuilder(t)
	foreign, err := other.MatchNode("State")
	require.NoError(t, err)

	var usage *apperrors.ErrBuilderUsage
	assert.True(t, errors.As(b.WhereIn(foreign, "id", []int{1}), &usage))
	assert.True(t, errors.As(b.ReturnEntities(foreign), &usage))
	assert.True(t, errors.As(b.OrderBy(foreign, "id", Asc), &usage))
	_, err = b.With(Collect(foreign, ""))
	assert.True(t, errors.As(err, &usage))
	_, _, _, err = b.MatchRelation("nano_pt", From(foreign))
	assert.True(t, errors.As(err, &usage))
	assert.True(t, errors.As(b.ReturnEntities((*Node)(nil)), &usage))
	assert.Zero(t, b.Len())
}

func TestBuilder_AliasesDoNotOutliveTheirQuery(t *testing.T) {
	b := newTestBuilder(t)
	a, _, _, err := b.MatchRelation("PART_OF")
	require.NoError(t, err)
	w, err := b.With(Collect(a, ""))
	require.NoError(t, err)
	b.Build()

	err = b.ReturnEntities(w[0])
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeBuilder))
}

func TestBuilder_WithRejectsDuplicateAliases(t *testing.T) {
	b := newTestBuilder(t)
	a, _, _, err := b.MatchRelation("PART_OF")
	require.NoError(t, err)

	_, err = b.With(Count(a, "x"), Collect(a, "x"))
	assert.Error(t, err)
	_, err = b.With(CollectObject(""))
	assert.Error(t, err)
}

func TestBuilder_BuildResetsSessionButKeepsSchema(t *testing.T) {
	b := newTestBuilder(t)
	labels := b.Schema().Labels()

	s, err := b.MatchNode("State")
	require.NoError(t, err)
	b.AddOptions("NODE", "DF", "NODE")
	require.NoError(t, b.ReturnEntities(s))

	q := b.Build()
	assert.Equal(t, []string{"NODE", "DF"}, q.Options)
	assert.True(t, q.HasOption("DF"))
	assert.False(t, q.HasOption("ASE"))
	assert.Zero(t, b.Len())
	assert.False(t, b.HasOption("NODE"))
	assert.Equal(t, labels, b.Schema().Labels())

	// the node that was bound in the previous query starts anonymous again
	_, err = b.MatchNode("State")
	require.NoError(t, err)
	q = b.Build()
	assert.Equal(t, "MATCH (:State);", q.Text)
	assert.Empty(t, q.Options)
}

func TestBuilder_IdenticalSessionsRenderIdentically(t *testing.T) {
	compose := func() string {
		b := newTestBuilder(t)
		s, err := b.MatchNode("State")
		require.NoError(t, err)
		require.NoError(t, b.WhereIn(s, "id", []int{1, 2, 3}))
		a, _, _, err := b.MatchRelation("PART_OF", To(s))
		require.NoError(t, err)
		_, err = b.With()
		require.NoError(t, err)
		require.NoError(t, b.OrderBy(a, "internal_id", Asc))
		w, err := b.With(Collect(a, ""))
		require.NoError(t, err)
		require.NoError(t, b.ReturnEntities(s, w[0]))
		return b.Build().Text
	}

	want := "MATCH (s111:State)\nWHERE s111.id IN [1, 2, 3]\nMATCH (a:Atom)-[:PART_OF]->(s111)\nWITH s111,a\nORDER BY a.internal_id ASC\nWITH collect(DISTINCT a) AS a_list,s111\nRETURN s111,a_list;"
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, compose())
	}
}

func TestBuilder_EmptyBuild(t *testing.T) {
	b := newTestBuilder(t)
	assert.Equal(t, ";", b.Build().Text)
}

func TestBuilder_CarryDoesNotRepeatTheCarriedColumn(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.MatchNode("State")
	require.NoError(t, err)
	require.NoError(t, b.WhereIn(s, "id", []int{1}))
	w, err := b.With(Count(s, "c"))
	require.NoError(t, err)
	require.NoError(t, b.OrderBy(w[0], "", Desc))
	_, err = b.With(Carry(w[0]))
	require.NoError(t, err)
	require.NoError(t, b.ReturnEntities(w[0]))

	assert.Equal(t,
		"MATCH (s111:State)\nWHERE s111.id IN [1]\nWITH count(DISTINCT s111) AS c\nORDER BY c DESC\nWITH c\nRETURN c;",
		b.Build().Text)
}

func TestBuilder_WithRejectsNamesAlreadyInUse(t *testing.T) {
	b := newTestBuilder(t)
	s, err := b.MatchNode("State")
	require.NoError(t, err)
	require.NoError(t, b.WhereIn(s, "id", []int{1}))

	var usage *apperrors.ErrBuilderUsage
	_, err = b.With(As(s, "id", "s111"))
	require.True(t, errors.As(err, &usage))
	assert.Equal(t, "With", usage.Operation)

	_, err = b.With(Count(s, "c"))
	require.NoError(t, err)
	_, err = b.With(Collect(s, "c"))
	assert.True(t, errors.As(err, &usage))
	assert.Equal(t, 3, b.Len())
}

func TestBuilder_RejectsInvalidIdentifiers(t *testing.T) {
	const injected = "id AS id MATCH (z) DETACH DELETE z RETURN 1 AS x"

	tests := []struct {
		name string
		call func(b *Builder, s *Node) error
	}{
		{"match attribute", func(b *Builder, _ *Node) error {
			_, err := b.MatchNodeWith("State", "id} ) DETACH DELETE s //", 1)
			return err
		}},
		{"where in", func(b *Builder, s *Node) error { return b.WhereIn(s, injected, []int{1}) }},
		{"where between", func(b *Builder, s *Node) error { return b.WhereBetween(s, "1st", 0, 1) }},
		{"order by", func(b *Builder, s *Node) error { return b.OrderBy(s, "id DESC, x", Asc) }},
		{"return attributes", func(b *Builder, s *Node) error { return b.ReturnAttributes(s, []string{"id", injected}) }},
		{"set attribute", func(b *Builder, s *Node) error {
			return b.Set(SetParameter(s, "x = 1 DETACH DELETE s //", "x"))
		}},
		{"set parameter", func(b *Builder, s *Node) error { return b.Set(SetParameter(s, "x", "x; MATCH (z)")) }},
		{"projected attribute", func(b *Builder, s *Node) error {
			_, err := b.With(As(s, injected, "v"))
			return err
		}},
		{"alias name", func(b *Builder, s *Node) error {
			_, err := b.With(Count(s, "c RETURN 1"))
			return err
		}},
		{"object field", func(b *Builder, _ *Node) error {
			_, err := b.With(CollectObject("objs", Field{Key: "a: 1}) //", Expr: "1"}))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			s, err := b.MatchNode("State")
			require.NoError(t, err)

			err = tt.call(b, s)
			var usage *apperrors.ErrBuilderUsage
			require.True(t, errors.As(err, &usage))
			assert.Contains(t, usage.Reason, "invalid")
			assert.Equal(t, 1, b.Len())
		})
	}
}

func TestBuilder_NilLoggerDiscards(t *testing.T) {
	b, err := NewBuilder(nil, []string{"State"}, WithLogger(nil))
	require.NoError(t, err)
	_, err = b.MatchNode("State")
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		assert.Equal(t, "MATCH (:State);", b.Build().Text)
	})
}
