package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"strings"

	"github.com/google/generative-ai-go/genai"
	chromem "github.com/philippgille/chromem-go"
	"google.golang.org/api/option"
)

const localDim = 256

// Provider generates embeddings for knowledge-base documents and queries.
// When a Gemini API key is configured it calls the embedding model and
// falls back to deterministic local embeddings on failure; without a key
// it uses local embeddings only.
type Provider struct {
	client *genai.Client
	model  string
}

// NewProvider creates an embedding provider. An empty apiKey disables the
// external service.
func NewProvider(ctx context.Context, apiKey, model string) (*Provider, error) {
	p := &Provider{model: model}
	if apiKey == "" {
		log.Println("⚠️  No embedding API key configured, using local embeddings")
		return p, nil
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	p.client = client
	return p, nil
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// Embed returns the embedding for one text, external first with local
// fallback.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.client != nil {
		em := p.client.EmbeddingModel(p.model)
		res, err := em.EmbedContent(ctx, genai.Text(text))
		if err == nil && res.Embedding != nil && len(res.Embedding.Values) > 0 {
			return res.Embedding.Values, nil
		}
		log.Printf("⚠️  External embedding failed (%v), falling back to local embeddings", err)
	}
	return localEmbedding(text), nil
}

// Func adapts the provider to chromem's embedding function signature.
func (p *Provider) Func() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return p.Embed(ctx, text)
	}
}

// localEmbedding produces a deterministic hashed bag-of-words embedding,
// L2-normalized so cosine similarity behaves. Quality is far below a real
// model but identical text always maps to the identical vector, which keeps
// the pipeline functional offline.
func localEmbedding(text string) []float32 {
	vec := make([]float32, localDim)
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		idx := int(h.Sum32()) % localDim
		if idx < 0 {
			idx += localDim
		}
		vec[idx]++
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
	return vec
}
