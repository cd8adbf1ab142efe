package tree

import (
	"errors"
	"fmt"
	"strings"
)

// Path validation errors.
var (
	ErrBadPath  = errors.New("unrecognized path")
	ErrEmptyKey = errors.New("empty element key in path")
)

// PathKind identifies one of the four recognized path forms.
type PathKind int

const (
	// PathRoot is /root.
	PathRoot PathKind = iota
	// PathElement is /elements/{key}.
	PathElement
	// PathChildren is /elements/{key}/children.
	PathChildren
	// PathProp is /elements/{key}/props/{propName}.
	PathProp
)

// Path is a parsed operation target.
type Path struct {
	Kind PathKind
	Key  string // element key, for all kinds except PathRoot
	Prop string // prop name, for PathProp only
}

// String renders the path back to its wire form.
func (p Path) String() string {
	switch p.Kind {
	case PathRoot:
		return "/root"
	case PathElement:
		return "/elements/" + p.Key
	case PathChildren:
		return "/elements/" + p.Key + "/children"
	case PathProp:
		return "/elements/" + p.Key + "/props/" + p.Prop
	}
	return ""
}

// ParsePath parses one of the four recognized path forms:
//
//	/root
//	/elements/{key}
//	/elements/{key}/children
//	/elements/{key}/props/{propName}
//
// Anything else is an error. Keys and prop names must be non-empty and
// cannot contain a slash (a slash would read as an extra path segment).
func ParsePath(raw string) (Path, error) {
	if raw == "/root" {
		return Path{Kind: PathRoot}, nil
	}
	rest, ok := strings.CutPrefix(raw, "/elements/")
	if !ok {
		return Path{}, fmt.Errorf("%w: %q", ErrBadPath, raw)
	}
	segs := strings.Split(rest, "/")
	if segs[0] == "" {
		return Path{}, fmt.Errorf("%w: %q", ErrEmptyKey, raw)
	}
	switch len(segs) {
	case 1:
		return Path{Kind: PathElement, Key: segs[0]}, nil
	case 2:
		if segs[1] != "children" {
			return Path{}, fmt.Errorf("%w: %q", ErrBadPath, raw)
		}
		return Path{Kind: PathChildren, Key: segs[0]}, nil
	case 3:
		if segs[1] != "props" || segs[2] == "" {
			return Path{}, fmt.Errorf("%w: %q", ErrBadPath, raw)
		}
		return Path{Kind: PathProp, Key: segs[0], Prop: segs[2]}, nil
	}
	return Path{}, fmt.Errorf("%w: %q", ErrBadPath, raw)
}

// OpKind is the operation vocabulary: set or remove. Nothing else.
type OpKind string

const (
	OpSet    OpKind = "set"
	OpRemove OpKind = "remove"
)

// Operation is one decoded patch instruction. For OpSet, exactly one of the
// value fields is populated according to Path.Kind:
//
//	PathRoot     -> Root ("" means null)
//	PathElement  -> Element
//	PathChildren -> Children
//	PathProp     -> Value
//
// For OpRemove all value fields are zero.
type Operation struct {
	Op       OpKind
	Path     Path
	Root     string
	Element  *Element
	Children []string
	Value    any
}
