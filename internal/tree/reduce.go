package tree

// Apply folds one operation into a tree snapshot and returns the new
// snapshot. The input tree is never mutated; unmodified elements are shared
// between snapshots. Operations targeting elements that do not exist yet
// (children or prop sets, removes of any kind) are silent no-ops: streaming
// delivers children before parents or vice versa, and a later set on the
// element supplies the rest. In the no-op case the input snapshot is
// returned unchanged.
func Apply(t *Tree, op Operation) *Tree {
	if t == nil {
		t = New()
	}
	switch op.Op {
	case OpSet:
		return applySet(t, op)
	case OpRemove:
		return applyRemove(t, op)
	}
	return t
}

func applySet(t *Tree, op Operation) *Tree {
	switch op.Path.Kind {
	case PathRoot:
		if t.Root == op.Root {
			return t
		}
		next := shallow(t)
		next.Root = op.Root
		return next

	case PathElement:
		el := op.Element
		if el == nil {
			return t
		}
		el = el.clone()
		// The key inside the value is trusted to match the path but is
		// normalized when it diverges, so the map invariant always holds.
		el.Key = op.Path.Key
		next := shallow(t)
		next.Elements[op.Path.Key] = el
		return next

	case PathChildren:
		cur, ok := t.Elements[op.Path.Key]
		if !ok {
			return t
		}
		el := cur.clone()
		el.Children = append([]string(nil), op.Children...)
		next := shallow(t)
		next.Elements[op.Path.Key] = el
		return next

	case PathProp:
		cur, ok := t.Elements[op.Path.Key]
		if !ok {
			return t
		}
		el := cur.clone()
		if el.Props == nil {
			el.Props = map[string]any{}
		}
		el.Props[op.Path.Prop] = op.Value
		next := shallow(t)
		next.Elements[op.Path.Key] = el
		return next
	}
	return t
}

func applyRemove(t *Tree, op Operation) *Tree {
	switch op.Path.Kind {
	case PathRoot:
		if t.Root == "" {
			return t
		}
		next := shallow(t)
		next.Root = ""
		return next

	case PathElement:
		if _, ok := t.Elements[op.Path.Key]; !ok {
			return t
		}
		next := shallow(t)
		delete(next.Elements, op.Path.Key)
		return next

	case PathChildren:
		cur, ok := t.Elements[op.Path.Key]
		if !ok || cur.Children == nil {
			return t
		}
		el := cur.clone()
		el.Children = nil
		next := shallow(t)
		next.Elements[op.Path.Key] = el
		return next

	case PathProp:
		cur, ok := t.Elements[op.Path.Key]
		if !ok {
			return t
		}
		if _, ok := cur.Props[op.Path.Prop]; !ok {
			return t
		}
		el := cur.clone()
		delete(el.Props, op.Path.Prop)
		next := shallow(t)
		next.Elements[op.Path.Key] = el
		return next
	}
	return t
}

// shallow copies the tree header and elements map; element values are shared
// until individually replaced.
func shallow(t *Tree) *Tree {
	next := &Tree{Root: t.Root, Elements: make(map[string]*Element, len(t.Elements))}
	for k, e := range t.Elements {
		next.Elements[k] = e
	}
	return next
}
