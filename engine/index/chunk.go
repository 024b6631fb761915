package index

import "strings"

// DefaultChunkSize is the word count per chunk.
const DefaultChunkSize = 500

// Chunks splits text into consecutive windows of exactly size words, the
// last one shorter. Tokenization is whitespace splitting; chunks are the
// words re-joined with single spaces, so original spacing is not preserved.
// Empty or whitespace-only text yields nil.
func Chunks(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	out := make([]string, 0, (len(words)+size-1)/size)
	for i := 0; i < len(words); i += size {
		end := i + size
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[i:end], " "))
	}
	return out
}
