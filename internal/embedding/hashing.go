package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const hashingDimensions = 256

// HashingEmbedder is a deterministic, dependency-free embedder: a normalized
// bag-of-words vector with FNV-hashed buckets. Similar texts share buckets
// and score high under cosine, which is enough for offline development and
// tests where no model server is available.
type HashingEmbedder struct{}

func NewHashingEmbedder() *HashingEmbedder {
	return &HashingEmbedder{}
}

func (e *HashingEmbedder) Name() string {
	return "hashing"
}

func (e *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashingDimensions)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:()[]{}\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%hashingDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}
