// Package state persists committed wireframe trees as documents, either
// under a project's .wireframe directory or in a global store in the user's
// home directory. A saved document can later seed a delta generation as its
// base tree.
package state

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/youruser/wireframe/internal/tree"
)

// Sentinel errors for expected conditions.
var (
	ErrNotInitialized = errors.New("wireframe not initialized: call init first")
	ErrNotProject     = errors.New("not a wireframe project: .wireframe directory not found")
	ErrAlreadyInit    = errors.New("wireframe already initialized")
	ErrDocNotFound    = errors.New("document not found")
	ErrDocNameEmpty   = errors.New("document name cannot be empty")
	ErrStoreLocked    = errors.New("document store is locked by another process")
)

// Store holds the runtime persistence state of the backend.
type Store struct {
	ProjectRoot string
	GlobalOnly  bool   // True when no project root is set (global-only mode)
	lockedDir   string // Store directory currently locked by this instance
}

// New creates a new Store. ProjectRoot must be set via Init.
func New() *Store {
	return &Store{}
}

// ProjectInit creates the .wireframe directory structure (like git init).
// Returns ErrAlreadyInit if already initialized.
func (s *Store) ProjectInit(projectRoot string) error {
	info, err := os.Stat(projectRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("project_root must be a directory")
	}

	wfDir := filepath.Join(projectRoot, ".wireframe")
	if _, err := os.Stat(wfDir); err == nil {
		return ErrAlreadyInit
	}

	return os.MkdirAll(filepath.Join(wfDir, "documents"), 0755)
}

// Init sets the project root. Requires the .wireframe directory to exist;
// call ProjectInit first to create it. An empty projectRoot enters
// global-only mode, storing documents under the home directory. Init
// acquires the store lock so two backend instances do not write the same
// documents concurrently.
func (s *Store) Init(projectRoot string) error {
	if projectRoot == "" {
		s.GlobalOnly = true
		if err := os.MkdirAll(s.docsDir(), 0755); err != nil {
			return err
		}
		return s.acquire()
	}

	info, err := os.Stat(projectRoot)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("project_root must be a directory")
	}

	if _, err := os.Stat(filepath.Join(projectRoot, ".wireframe")); os.IsNotExist(err) {
		return ErrNotProject
	}

	s.ProjectRoot = projectRoot
	if err := os.MkdirAll(s.docsDir(), 0755); err != nil {
		return err
	}
	return s.acquire()
}

// Initialized returns true once Init has succeeded.
func (s *Store) Initialized() bool {
	return s.ProjectRoot != "" || s.GlobalOnly
}

// Cleanup releases any lock held by this instance.
func (s *Store) Cleanup() {
	if s.lockedDir != "" {
		ReleaseLock(s.lockedDir)
		s.lockedDir = ""
	}
}

func (s *Store) acquire() error {
	dir := s.storeDir()
	if err := AcquireLock(dir); err != nil {
		return err
	}
	s.lockedDir = dir
	return nil
}

func (s *Store) storeDir() string {
	if s.GlobalOnly {
		return globalDir()
	}
	return filepath.Join(s.ProjectRoot, ".wireframe")
}

func (s *Store) docsDir() string {
	return filepath.Join(s.storeDir(), "documents")
}

func globalDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".wireframe")
	}
	return filepath.Join(home, ".wireframe")
}

func (s *Store) docPath(id string) (string, error) {
	if err := s.requireInit(); err != nil {
		return "", err
	}
	return SafeJoin(s.docsDir(), id+".json")
}

func (s *Store) requireInit() error {
	if !s.Initialized() {
		return ErrNotInitialized
	}
	return nil
}

// SaveDocument persists a committed tree as a new document and returns it.
func (s *Store) SaveDocument(name string, t *tree.Tree) (*Document, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrDocNameEmpty
	}

	now := time.Now().UTC()
	doc := &Document{
		ID:      uuid.NewString(),
		Name:    name,
		Created: now,
		Updated: now,
		Version: HashTreeVersion(t),
		Tree:    t.Clone(),
	}
	if err := s.writeDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// UpdateDocument replaces the tree of an existing document, bumping its
// version and updated timestamp.
func (s *Store) UpdateDocument(id string, t *tree.Tree) (*Document, error) {
	doc, err := s.GetDocument(id)
	if err != nil {
		return nil, err
	}
	doc.Tree = t.Clone()
	doc.Version = HashTreeVersion(t)
	doc.Updated = time.Now().UTC()
	if err := s.writeDocument(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument loads one document by ID.
func (s *Store) GetDocument(id string) (*Document, error) {
	path, err := s.docPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDocNotFound
		}
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Tree == nil {
		doc.Tree = tree.New()
	}
	return &doc, nil
}

// ListDocuments returns summaries of all saved documents, newest first.
func (s *Store) ListDocuments() ([]DocumentSummary, error) {
	if err := s.requireInit(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.docsDir())
	if err != nil {
		return nil, err
	}

	var out []DocumentSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		doc, err := s.GetDocument(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			// A corrupt document should not hide the rest of the list.
			continue
		}
		out = append(out, DocumentSummary{
			ID:       doc.ID,
			Name:     doc.Name,
			Created:  doc.Created,
			Updated:  doc.Updated,
			Version:  doc.Version,
			Elements: len(doc.Tree.Elements),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Updated.After(out[j].Updated)
	})
	return out, nil
}

// DeleteDocument removes a saved document. Deleting a missing document is
// an error so the frontend can report a stale list.
func (s *Store) DeleteDocument(id string) error {
	path, err := s.docPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrDocNotFound
		}
		return err
	}
	return nil
}

// RenameDocument changes a document's display name.
func (s *Store) RenameDocument(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrDocNameEmpty
	}
	doc, err := s.GetDocument(id)
	if err != nil {
		return err
	}
	doc.Name = name
	doc.Updated = time.Now().UTC()
	return s.writeDocument(doc)
}

// writeDocument writes atomically: temp file then rename, so a crash never
// leaves a half-written document.
func (s *Store) writeDocument(doc *Document) error {
	path, err := s.docPath(doc.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
