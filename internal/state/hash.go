package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/youruser/wireframe/internal/tree"
)

// HashContent returns a stable hex-encoded SHA-256 hash for content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// HashTreeVersion returns a stable short id for a tree's content. Two trees
// with the same root, elements, and props hash identically regardless of how
// they were built; map iteration order does not leak in because the tree's
// JSON encoding sorts element keys.
func HashTreeVersion(t *tree.Tree) string {
	data, err := json.Marshal(t)
	if err != nil {
		// Trees of plain JSON values cannot fail to marshal; treat an
		// unexpected failure as an empty version rather than panicking.
		return ""
	}
	sum := sha256.Sum256(data)
	full := hex.EncodeToString(sum[:])
	// Use a short id for readability.
	return full[:8]
}
