package patch

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/youruser/wireframe/internal/tree"
)

// foldLines parses each line and applies every operation it yields, skipping
// codec errors the way a session does.
func foldLines(t *testing.T, start *tree.Tree, lines ...string) *tree.Tree {
	t.Helper()
	cur := start
	for _, line := range lines {
		op, err := ParseLine(line)
		if err != nil || op == nil {
			continue
		}
		cur = tree.Apply(cur, *op)
	}
	return cur
}

func TestCardScenario(t *testing.T) {
	built := foldLines(t, tree.New(),
		`{"op":"set","path":"/root","value":"card-1"}`,
		`{"op":"set","path":"/elements/card-1","value":{"key":"card-1","type":"Card","props":{"title":"Hi"},"children":["text-1"]}}`,
		`{"op":"set","path":"/elements/text-1","value":{"key":"text-1","type":"Text","props":{"text":"Hello"}}}`,
	)

	want := &tree.Tree{
		Root: "card-1",
		Elements: map[string]*tree.Element{
			"card-1": {
				Key:      "card-1",
				Type:     "Card",
				Props:    map[string]any{"title": "Hi"},
				Children: []string{"text-1"},
			},
			"text-1": {
				Key:   "text-1",
				Type:  "Text",
				Props: map[string]any{"text": "Hello"},
			},
		},
	}
	if diff := cmp.Diff(want, built); diff != "" {
		t.Fatalf("built tree mismatch (-want +got):\n%s", diff)
	}

	t.Run("delta empties the card", func(t *testing.T) {
		got := foldLines(t, built,
			`{"op":"remove","path":"/elements/text-1"}`,
			`{"op":"set","path":"/elements/card-1/children","value":[]}`,
		)
		if len(got.Elements) != 1 {
			t.Errorf("len(Elements) = %d, want 1", len(got.Elements))
		}
		card, ok := got.Elements["card-1"]
		if !ok {
			t.Fatal("card-1 missing")
		}
		if len(card.Children) != 0 {
			t.Errorf("Children = %v, want empty", card.Children)
		}
	})

	t.Run("malformed line changes nothing", func(t *testing.T) {
		withNoise := foldLines(t, tree.New(),
			`{"op":"set","path":"/root","value":"card-1"}`,
			`oops, not JSON at all`,
			`{"op":"set","path":"/elements/card-1","value":{"key":"card-1","type":"Card","props":{"title":"Hi"},"children":["text-1"]}}`,
			`{"op":"set","path":"/elements/text-1","value":{"key":"text-1","type":"Text","props":{"text":"Hello"}}}`,
		)
		if diff := cmp.Diff(built, withNoise); diff != "" {
			t.Errorf("noisy stream diverged (-want +got):\n%s", diff)
		}
	})
}

func TestChildrenReplacementIsWholesale(t *testing.T) {
	got := foldLines(t, tree.New(),
		`{"op":"set","path":"/elements/x","value":{"key":"x","type":"row"}}`,
		`{"op":"set","path":"/elements/x/children","value":["a","b"]}`,
		`{"op":"set","path":"/elements/x/children","value":["b","a"]}`,
	)
	if diff := cmp.Diff([]string{"b", "a"}, got.Elements["x"].Children); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}
}
