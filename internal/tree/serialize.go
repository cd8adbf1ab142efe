package tree

// Operations serializes a tree back into the set-operation form: one full
// element set per element (in sorted key order, for stable output) followed
// by the root set. Replaying the result against an empty tree reproduces
// this tree exactly, which is what persistence and delta seeding rely on.
// The root is emitted last so a consumer rendering incrementally never sees
// a root pointing at an element it does not have yet.
func (t *Tree) Operations() []Operation {
	if t == nil {
		return nil
	}
	ops := make([]Operation, 0, len(t.Elements)+1)
	for _, key := range t.Keys() {
		ops = append(ops, Operation{
			Op:      OpSet,
			Path:    Path{Kind: PathElement, Key: key},
			Element: t.Elements[key].clone(),
		})
	}
	if t.Root != "" {
		ops = append(ops, Operation{
			Op:   OpSet,
			Path: Path{Kind: PathRoot},
			Root: t.Root,
		})
	}
	return ops
}
