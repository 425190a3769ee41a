package cypher

// Assignment is one item of a SET clause: target.attr = value.
type Assignment struct {
	target    Entity
	attr      string
	value     string
	alias     *Alias
	param     string
	parameter bool
}

// SetLiteral assigns a literal value, formatted like any other literal in
// generated text.
func SetLiteral(target Entity, attr string, value any) Assignment {
	return Assignment{target: target, attr: attr, value: Literal(value)}
}

// SetParameter assigns the query parameter $param. The value itself is
// supplied to the driver at execution time and never appears in the text.
func SetParameter(target Entity, attr, param string) Assignment {
	return Assignment{target: target, attr: attr, value: "$" + param, param: param, parameter: true}
}

// SetToAlias assigns the value of an alias introduced by an earlier WITH.
func SetToAlias(target Entity, attr string, alias *Alias) Assignment {
	return Assignment{target: target, attr: attr, alias: alias}
}

func (a Assignment) entities() []Entity {
	if a.alias != nil {
		return []Entity{a.target, a.alias}
	}
	return []Entity{a.target}
}

func (a Assignment) String() string {
	value := a.value
	if a.alias != nil {
		value = a.alias.Variable()
	}
	return attribute(a.target, a.attr) + " = " + value
}
