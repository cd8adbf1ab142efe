// Package tree defines the wireframe tree data model and the reducer that
// folds patch operations into it. A Tree is the full addressable collection
// of elements plus a root pointer; it is built incrementally from a stream of
// operations and handed to the frontend for rendering once committed.
package tree

import (
	"encoding/json"
	"sort"
)

// Element is one node in the wireframe tree. Type names a view in the
// frontend's component registry; this package treats it as opaque. Children,
// when present, is an ordered list of element keys in display order.
type Element struct {
	Key      string         `json:"key"`
	Type     string         `json:"type"`
	Props    map[string]any `json:"props,omitempty"`
	Children []string       `json:"children,omitempty"`
}

// clone returns a deep-enough copy for copy-on-write mutation: the props map
// and children slice are copied, prop values are shared (they are replaced
// wholesale, never mutated in place).
func (e *Element) clone() *Element {
	c := &Element{Key: e.Key, Type: e.Type}
	if e.Props != nil {
		c.Props = make(map[string]any, len(e.Props))
		for k, v := range e.Props {
			c.Props[k] = v
		}
	}
	if e.Children != nil {
		c.Children = append([]string(nil), e.Children...)
	}
	return c
}

// Tree is a snapshot of the wireframe being built. Root is the key to begin
// rendering from; the empty string means no root has been set yet. Elements
// may reference children that have not arrived yet, since streaming delivers
// parents and children in no guaranteed order, and referential integrity is
// a rendering-time concern.
type Tree struct {
	Root     string              `json:"root,omitempty"`
	Elements map[string]*Element `json:"elements"`
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{Elements: map[string]*Element{}}
}

// IsEmpty reports whether the tree has no root and no elements. An empty
// base tree makes a generation request a fresh build rather than a delta.
func (t *Tree) IsEmpty() bool {
	return t == nil || (t.Root == "" && len(t.Elements) == 0)
}

// Clone returns an independent copy of the tree. Element values are copied;
// prop values are shared (treated as immutable).
func (t *Tree) Clone() *Tree {
	if t == nil {
		return New()
	}
	c := &Tree{Root: t.Root, Elements: make(map[string]*Element, len(t.Elements))}
	for k, e := range t.Elements {
		c.Elements[k] = e.clone()
	}
	return c
}

// Keys returns the element keys in sorted order. Used for stable
// serialization and test output.
func (t *Tree) Keys() []string {
	keys := make([]string, 0, len(t.Elements))
	for k := range t.Elements {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON always emits the elements map, even when empty, so a saved
// document round-trips to a non-nil map.
func (t *Tree) MarshalJSON() ([]byte, error) {
	type wire struct {
		Root     string              `json:"root,omitempty"`
		Elements map[string]*Element `json:"elements"`
	}
	elems := t.Elements
	if elems == nil {
		elems = map[string]*Element{}
	}
	return json.Marshal(wire{Root: t.Root, Elements: elems})
}

// UnmarshalJSON accepts both a missing and a null elements map.
func (t *Tree) UnmarshalJSON(data []byte) error {
	type wire struct {
		Root     string              `json:"root"`
		Elements map[string]*Element `json:"elements"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Root = w.Root
	t.Elements = w.Elements
	if t.Elements == nil {
		t.Elements = map[string]*Element{}
	}
	return nil
}
