package generate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// StubClient returns deterministic placeholder images (for development and
// testing when no provider key is configured).
type StubClient struct{}

func (s *StubClient) Generate(_ context.Context, canonicalPrompt string) (*Result, error) {
	sum := sha256.Sum256([]byte(canonicalPrompt))
	seed := hex.EncodeToString(sum[:8])
	return &Result{
		ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/1024", seed),
		Description: "[Stub] Placeholder design preview; configure an image provider for real generations.",
	}, nil
}
