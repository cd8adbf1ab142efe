package state

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/youruser/wireframe/internal/tree"
)

func initedStore(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	s := New()
	if err := s.ProjectInit(root); err != nil {
		t.Fatalf("ProjectInit: %v", err)
	}
	if err := s.Init(root); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(s.Cleanup)
	return s
}

func sampleTree() *tree.Tree {
	t := tree.New()
	t = tree.Apply(t, tree.Operation{
		Op:      tree.OpSet,
		Path:    tree.Path{Kind: tree.PathElement, Key: "screen"},
		Element: &tree.Element{Key: "screen", Type: "column", Children: []string{"title"}},
	})
	t = tree.Apply(t, tree.Operation{
		Op:      tree.OpSet,
		Path:    tree.Path{Kind: tree.PathElement, Key: "title"},
		Element: &tree.Element{Key: "title", Type: "heading", Props: map[string]any{"text": "Hi"}},
	})
	t = tree.Apply(t, tree.Operation{
		Op:   tree.OpSet,
		Path: tree.Path{Kind: tree.PathRoot},
		Root: "screen",
	})
	return t
}

func TestProjectInit(t *testing.T) {
	t.Run("creates layout", func(t *testing.T) {
		root := t.TempDir()
		s := New()
		if err := s.ProjectInit(root); err != nil {
			t.Fatalf("ProjectInit: %v", err)
		}
		if _, err := os.Stat(filepath.Join(root, ".wireframe", "documents")); err != nil {
			t.Errorf("documents dir missing: %v", err)
		}
	})

	t.Run("twice", func(t *testing.T) {
		root := t.TempDir()
		s := New()
		if err := s.ProjectInit(root); err != nil {
			t.Fatalf("ProjectInit: %v", err)
		}
		if err := s.ProjectInit(root); !errors.Is(err, ErrAlreadyInit) {
			t.Errorf("second ProjectInit = %v, want ErrAlreadyInit", err)
		}
	})
}

func TestInit(t *testing.T) {
	t.Run("without project init", func(t *testing.T) {
		s := New()
		if err := s.Init(t.TempDir()); !errors.Is(err, ErrNotProject) {
			t.Errorf("Init = %v, want ErrNotProject", err)
		}
	})

	t.Run("operations before init", func(t *testing.T) {
		s := New()
		if _, err := s.SaveDocument("x", sampleTree()); !errors.Is(err, ErrNotInitialized) {
			t.Errorf("SaveDocument = %v, want ErrNotInitialized", err)
		}
		if _, err := s.ListDocuments(); !errors.Is(err, ErrNotInitialized) {
			t.Errorf("ListDocuments = %v, want ErrNotInitialized", err)
		}
	})

	t.Run("second instance is locked out", func(t *testing.T) {
		root := t.TempDir()
		first := New()
		if err := first.ProjectInit(root); err != nil {
			t.Fatalf("ProjectInit: %v", err)
		}
		if err := first.Init(root); err != nil {
			t.Fatalf("Init: %v", err)
		}
		defer first.Cleanup()

		// Fake another live process holding the lock: our own PID is treated
		// as self, so plant the parent's, which is alive but not us.
		lockPath := filepath.Join(root, ".wireframe", "lock")
		if err := os.WriteFile(lockPath, []byte(strconv.Itoa(os.Getppid())), 0644); err != nil {
			t.Fatalf("plant lock: %v", err)
		}
		second := New()
		if err := second.Init(root); !errors.Is(err, ErrStoreLocked) {
			t.Errorf("second Init = %v, want ErrStoreLocked", err)
		}
	})
}

func TestDocumentCRUD(t *testing.T) {
	s := initedStore(t)

	t.Run("save and get", func(t *testing.T) {
		doc, err := s.SaveDocument("Login screen", sampleTree())
		if err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
		if doc.ID == "" {
			t.Fatal("empty document ID")
		}
		if doc.Version == "" {
			t.Fatal("empty document version")
		}

		got, err := s.GetDocument(doc.ID)
		if err != nil {
			t.Fatalf("GetDocument: %v", err)
		}
		if got.Name != "Login screen" {
			t.Errorf("Name = %q, want %q", got.Name, "Login screen")
		}
		if diff := cmp.Diff(sampleTree(), got.Tree); diff != "" {
			t.Errorf("tree mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty name", func(t *testing.T) {
		if _, err := s.SaveDocument("   ", sampleTree()); !errors.Is(err, ErrDocNameEmpty) {
			t.Errorf("SaveDocument = %v, want ErrDocNameEmpty", err)
		}
	})

	t.Run("list is newest first", func(t *testing.T) {
		a, err := s.SaveDocument("a", sampleTree())
		if err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
		b, err := s.SaveDocument("b", sampleTree())
		if err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
		if err := s.RenameDocument(a.ID, "a renamed"); err != nil {
			t.Fatalf("RenameDocument: %v", err)
		}

		docs, err := s.ListDocuments()
		if err != nil {
			t.Fatalf("ListDocuments: %v", err)
		}
		if len(docs) < 2 {
			t.Fatalf("len(docs) = %d, want >= 2", len(docs))
		}
		// The rename bumped a's updated time past b's.
		posA, posB := -1, -1
		for i, d := range docs {
			switch d.ID {
			case a.ID:
				posA = i
			case b.ID:
				posB = i
			}
		}
		if posA == -1 || posB == -1 {
			t.Fatal("saved documents missing from list")
		}
		if posA > posB {
			t.Errorf("a at %d, b at %d, want most recently updated first", posA, posB)
		}
	})

	t.Run("update bumps version", func(t *testing.T) {
		doc, err := s.SaveDocument("v", sampleTree())
		if err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
		changed := tree.Apply(doc.Tree, tree.Operation{
			Op:    tree.OpSet,
			Path:  tree.Path{Kind: tree.PathProp, Key: "title", Prop: "text"},
			Value: "Bye",
		})
		updated, err := s.UpdateDocument(doc.ID, changed)
		if err != nil {
			t.Fatalf("UpdateDocument: %v", err)
		}
		if updated.Version == doc.Version {
			t.Error("version did not change with content")
		}
	})

	t.Run("rename", func(t *testing.T) {
		doc, err := s.SaveDocument("before", sampleTree())
		if err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
		if err := s.RenameDocument(doc.ID, "after"); err != nil {
			t.Fatalf("RenameDocument: %v", err)
		}
		got, err := s.GetDocument(doc.ID)
		if err != nil {
			t.Fatalf("GetDocument: %v", err)
		}
		if got.Name != "after" {
			t.Errorf("Name = %q, want %q", got.Name, "after")
		}
		if got.Version != doc.Version {
			t.Error("rename should not change the content version")
		}
	})

	t.Run("delete", func(t *testing.T) {
		doc, err := s.SaveDocument("doomed", sampleTree())
		if err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
		if err := s.DeleteDocument(doc.ID); err != nil {
			t.Fatalf("DeleteDocument: %v", err)
		}
		if _, err := s.GetDocument(doc.ID); !errors.Is(err, ErrDocNotFound) {
			t.Errorf("GetDocument = %v, want ErrDocNotFound", err)
		}
		if err := s.DeleteDocument(doc.ID); !errors.Is(err, ErrDocNotFound) {
			t.Errorf("second DeleteDocument = %v, want ErrDocNotFound", err)
		}
	})

	t.Run("missing document", func(t *testing.T) {
		if _, err := s.GetDocument("no-such-id"); !errors.Is(err, ErrDocNotFound) {
			t.Errorf("GetDocument = %v, want ErrDocNotFound", err)
		}
	})

	t.Run("traversal id rejected", func(t *testing.T) {
		if _, err := s.GetDocument("../../etc/passwd"); !errors.Is(err, ErrPathEscape) {
			t.Errorf("GetDocument = %v, want ErrPathEscape", err)
		}
	})

	t.Run("saved tree is detached", func(t *testing.T) {
		src := sampleTree()
		doc, err := s.SaveDocument("detached", src)
		if err != nil {
			t.Fatalf("SaveDocument: %v", err)
		}
		src.Elements["screen"].Children[0] = "mutated"
		if doc.Tree.Elements["screen"].Children[0] != "title" {
			t.Error("document tree shares memory with the caller's tree")
		}
	})
}

func TestHashContent(t *testing.T) {
	a := HashContent("hello")
	b := HashContent("hello")
	if a != b {
		t.Errorf("same content hashed differently: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("len = %d, want 64 hex chars", len(a))
	}
	if HashContent("hello") == HashContent("world") {
		t.Error("different content hashed identically")
	}
}

func TestHashTreeVersion(t *testing.T) {
	t.Run("stable", func(t *testing.T) {
		a := HashTreeVersion(sampleTree())
		b := HashTreeVersion(sampleTree())
		if a != b {
			t.Errorf("same tree hashed differently: %q vs %q", a, b)
		}
		if len(a) != 8 {
			t.Errorf("len = %d, want 8", len(a))
		}
	})

	t.Run("content sensitive", func(t *testing.T) {
		base := sampleTree()
		changed := tree.Apply(base, tree.Operation{
			Op:    tree.OpSet,
			Path:  tree.Path{Kind: tree.PathProp, Key: "title", Prop: "text"},
			Value: "Other",
		})
		if HashTreeVersion(base) == HashTreeVersion(changed) {
			t.Error("different trees hashed identically")
		}
	})
}
