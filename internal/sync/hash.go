package sync

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// GitBlobHash computes a content hash compatible with the git blob-hashing
// convention (SHA-1("blob " + len + NUL + content)), so local content
// changes can be detected against a remote blob id without re-fetching.
func GitBlobHash(content []byte) string {
	header := fmt.Sprintf("blob %d\x00", len(content))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
