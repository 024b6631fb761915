package rag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/polyrag/polyrag/engine/semantic"
)

// ErrNoContext means retrieval produced nothing usable; the caller should
// tell the user instead of letting the model answer from thin air.
var ErrNoContext = errors.New("rag: no relevant context found")

// DefaultMaxContextBytes bounds the assembled context block.
const DefaultMaxContextBytes = 8192

// BuildContext renders hits into numbered source blocks in fused order,
// stopping before the block that would exceed maxBytes. At least one block
// is always included so a single oversized chunk cannot starve the prompt.
func BuildContext(hits []semantic.Hit, maxBytes int) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxContextBytes
	}

	var b strings.Builder
	n := 0
	for _, h := range hits {
		text := h.Text
		if text == "" {
			continue
		}
		block := fmt.Sprintf("Source %d:\n%s\n\n", n+1, text)
		if n > 0 && b.Len()+len(block) > maxBytes {
			break
		}
		b.WriteString(block)
		n++
	}

	if n == 0 {
		return "", ErrNoContext
	}
	return strings.TrimSuffix(b.String(), "\n"), nil
}
