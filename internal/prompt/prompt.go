// Package prompt turns free-form design requests into the canonical
// technical prompt that is sent to the generation backend. The canonical
// prompt doubles as the cache-key source, so Engineer must stay pure and
// deterministic: identical input always yields an identical prompt, and
// therefore an identical fingerprint.
package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Engineer expands raw user text into the full technical instruction for the
// image backend. Whitespace in the subject is collapsed so trivially
// different spellings of the same request share one cache entry.
func Engineer(raw string) string {
	subject := strings.Join(strings.Fields(raw), " ")
	return fmt.Sprintf(
		"Professional tattoo design of %s. Fine-line black and grey style, "+
			"bold high-contrast linework, stencil-ready, clean white background, "+
			"no lettering, centered composition, highly detailed.",
		subject,
	)
}

// Fingerprint returns the cache key for a canonical prompt: the SHA-256 of
// its bytes as a 64-character hex digest.
func Fingerprint(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
