package state

import (
	"time"

	"github.com/youruser/wireframe/internal/tree"
)

// Document is a committed tree saved under a name. Version changes whenever
// the tree content changes, so the frontend can tell whether a reload is
// needed without comparing trees.
type Document struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Created time.Time  `json:"created"`
	Updated time.Time  `json:"updated"`
	Version string     `json:"version"`
	Tree    *tree.Tree `json:"tree"`
}

// DocumentSummary is the listing shape: everything but the tree itself.
type DocumentSummary struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	Version  string    `json:"version"`
	Elements int       `json:"elements"`
}
