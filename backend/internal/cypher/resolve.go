package cypher

// resolution is the outcome of scope analysis over a complete statement
// list. It is computed before any text is rendered and never modified
// afterwards, so rendering the same list twice gives the same text.
type resolution struct {
	// bound holds the entities whose variable has to be printed in the
	// match that introduces them.
	bound map[EntityID]bool
	// passthrough maps the position of each WITH clause to the variables
	// it must re-list, in first-use order.
	passthrough map[int][]Entity
}

// usage records where an entity is referenced. -1 means never.
type usage struct {
	entity     Entity
	firstMatch int // first match statement that references it
	lastAny    int // last statement of any kind that references it
	firstPlain int // first statement that is not a WITH
	lastPlain  int // last statement that is not a WITH
}

// resolve runs both binding rules over statements.
//
// A match statement binds an entity when some later statement references
// it. An entity is printed bound in every match if any match binds it,
// which is the same as its first match preceding its last reference.
//
// A WITH clause at position i must re-list every entity referenced by a
// non-WITH statement before i and by a non-WITH statement after i, unless
// the clause introduces it itself or already lists a column of the same
// name. WITH clauses are ignored on both sides
// so that chains of them see through to the earlier definitions and the
// final uses.
//
// Both rules reduce to first/last positions per entity, so resolution is
// linear in the total number of references.
func resolve(statements []*statement) *resolution {
	usages := make(map[EntityID]*usage)
	var order []*usage // first-appearance order across non-WITH statements

	for i, st := range statements {
		for _, e := range st.entities {
			u, ok := usages[e.ID()]
			if !ok {
				u = &usage{entity: e, firstMatch: -1, lastAny: -1, firstPlain: -1, lastPlain: -1}
				usages[e.ID()] = u
			}
			u.lastAny = i
			if st.kind == matchStatement && u.firstMatch < 0 {
				u.firstMatch = i
			}
			if st.kind != withStatement {
				if u.firstPlain < 0 {
					u.firstPlain = i
					order = append(order, u)
				}
				u.lastPlain = i
			}
		}
	}

	res := &resolution{
		bound:       make(map[EntityID]bool),
		passthrough: make(map[int][]Entity),
	}

	for id, u := range usages {
		if u.firstMatch >= 0 && u.lastAny > u.firstMatch {
			res.bound[id] = true
		}
	}

	for i, st := range statements {
		if st.kind != withStatement {
			continue
		}
		var keep []Entity
		for _, u := range order {
			if u.firstPlain >= i {
				// order is sorted by firstPlain, nothing further can qualify
				break
			}
			if u.lastPlain > i && !st.owns(u.entity.ID()) && !st.shadows(u.entity.Variable()) {
				keep = append(keep, u.entity)
			}
		}
		res.passthrough[i] = keep
	}

	return res
}
