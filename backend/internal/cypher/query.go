package cypher

import (
	"strings"

	"go.uber.org/zap"
)

// Query is a composed Cypher text plus the tags telling the executor how
// to decode its rows.
type Query struct {
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// HasOption reports whether the query was tagged with tag.
func (q Query) HasOption(tag string) bool {
	for _, o := range q.Options {
		if o == tag {
			return true
		}
	}
	return false
}

// Build renders the pending statements into a Query and resets the builder
// for the next one. Scope analysis runs over the complete list first, so
// every statement renders against the same binding decisions.
func (b *Builder) Build() Query {
	res := resolve(b.statements)

	lines := make([]string, len(b.statements))
	for i, st := range b.statements {
		lines[i] = st.render(scope{res: res, index: i})
		if st.kind == withStatement && len(st.own) == 0 && len(res.passthrough[i]) == 0 {
			b.log.Warn("WITH clause keeps no variables", zap.Int("position", i))
		}
	}

	q := Query{
		Text:    strings.Join(lines, "\n") + ";",
		Options: append([]string{}, b.options...),
	}

	b.log.Debug("built query",
		zap.Int("statements", len(b.statements)),
		zap.Int("bound", len(res.bound)),
		zap.Strings("options", q.Options),
		zap.String("text", q.Text),
	)

	b.Reset()
	return q
}
