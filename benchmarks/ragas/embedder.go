package ragas

import (
	"context"
	"hash/fnv"
)

const benchmarkEmbeddingDim = 32

// deterministicEmbedder is an offline stand-in for llm.Embedder: it hashes
// words into a fixed-dimension bag-of-words vector so RunTest can assemble
// context deterministically without a network call.
type deterministicEmbedder struct{}

func newDeterministicEmbedder() *deterministicEmbedder {
	return &deterministicEmbedder{}
}

func (e *deterministicEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	vec := make([]float32, benchmarkEmbeddingDim)
	word := make([]byte, 0, 16)
	flush := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		_, _ = h.Write(word)
		vec[int(h.Sum32())%benchmarkEmbeddingDim]++
		word = word[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\n' || c == '\t' {
			flush()
			continue
		}
		word = append(word, lower(c))
	}
	flush()
	return vec, nil
}

func (e *deterministicEmbedder) Probe(ctx context.Context, model string) (int, error) {
	return benchmarkEmbeddingDim, nil
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
