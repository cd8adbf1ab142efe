// Package patch parses the line-delimited patch wire format. Each line of
// producer output is one JSON object {"op","path","value"?}; the producer is
// a best-effort text generator, so parsing is total: a line either yields an
// operation, is skipped as blank, or yields a *CodecError for the caller to
// log. ParseLine never panics and the codec never aborts a stream.
package patch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/youruser/wireframe/internal/tree"
)

// CodecError describes one unparseable line. It carries the raw line so it
// can be logged verbatim; it is never fatal to a session.
type CodecError struct {
	Line   string
	Reason string
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("codec: %s: %q", e.Reason, e.Line)
}

// wireOp is the raw JSON shape of one line before validation.
type wireOp struct {
	Op    string          `json:"op"`
	Path  string          `json:"path"`
	Value json.RawMessage `json:"value"`
}

// ParseLine parses one line into an operation. Returns (nil, nil) for lines
// that should be silently skipped: blank lines and stray fence markers that
// producers sometimes wrap their output in. Any other failure returns a
// *CodecError; no other error type is produced.
func ParseLine(line string) (*tree.Operation, error) {
	line = stripFences(line)
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}

	var w wireOp
	if err := json.Unmarshal([]byte(line), &w); err != nil {
		return nil, &CodecError{Line: line, Reason: "invalid JSON"}
	}

	var op tree.OpKind
	switch w.Op {
	case string(tree.OpSet):
		op = tree.OpSet
	case string(tree.OpRemove):
		op = tree.OpRemove
	default:
		return nil, &CodecError{Line: line, Reason: fmt.Sprintf("unrecognized op %q", w.Op)}
	}

	path, err := tree.ParsePath(w.Path)
	if err != nil {
		return nil, &CodecError{Line: line, Reason: err.Error()}
	}

	out := &tree.Operation{Op: op, Path: path}
	if op == tree.OpRemove {
		// Any value on a remove is ignored.
		return out, nil
	}

	if len(w.Value) == 0 {
		return nil, &CodecError{Line: line, Reason: "set requires a value"}
	}
	if err := decodeValue(out, w.Value); err != nil {
		return nil, &CodecError{Line: line, Reason: err.Error()}
	}
	return out, nil
}

// decodeValue decodes the raw value into the typed slot for the path form,
// so the reducer only ever sees well-typed operations.
func decodeValue(op *tree.Operation, raw json.RawMessage) error {
	switch op.Path.Kind {
	case tree.PathRoot:
		var key *string
		if err := json.Unmarshal(raw, &key); err != nil {
			return fmt.Errorf("root value must be an element key or null")
		}
		if key != nil {
			op.Root = *key
		}
	case tree.PathElement:
		var el tree.Element
		if err := json.Unmarshal(raw, &el); err != nil {
			return fmt.Errorf("element value must be an object")
		}
		op.Element = &el
	case tree.PathChildren:
		var kids []string
		if err := json.Unmarshal(raw, &kids); err != nil {
			return fmt.Errorf("children value must be a list of element keys")
		}
		op.Children = kids
	case tree.PathProp:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("invalid prop value")
		}
		op.Value = v
	}
	return nil
}

// EncodeLine renders an operation back to its wire form, one JSON object
// with no trailing newline. The inverse of ParseLine for valid operations.
func EncodeLine(op tree.Operation) (string, error) {
	out := map[string]any{
		"op":   string(op.Op),
		"path": op.Path.String(),
	}
	if op.Op == tree.OpSet {
		switch op.Path.Kind {
		case tree.PathRoot:
			if op.Root == "" {
				out["value"] = nil
			} else {
				out["value"] = op.Root
			}
		case tree.PathElement:
			out["value"] = op.Element
		case tree.PathChildren:
			kids := op.Children
			if kids == nil {
				kids = []string{}
			}
			out["value"] = kids
		case tree.PathProp:
			out["value"] = op.Value
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// stripFences removes markdown code-fence noise from a line: a line that is
// only a fence marker (with or without a language tag) becomes empty, and
// fence markers glued to the front or back of a payload are trimmed off.
func stripFences(line string) string {
	s := strings.TrimSpace(line)
	for strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop a leading language tag such as "json" or "jsonl".
		if i := strings.IndexAny(s, "{[\""); i > 0 {
			tag := strings.TrimSpace(s[:i])
			if tag != "" && !strings.ContainsAny(tag, "{}[]\"") {
				s = s[i:]
			}
		} else if !strings.ContainsAny(s, "{}[]\"") {
			// Fence plus bare tag and nothing else.
			return ""
		}
		s = strings.TrimSpace(s)
	}
	for strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}
