package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"srokagri.com/khmer-agri-chat/internal/config"
	"srokagri.com/khmer-agri-chat/internal/index"
)

const (
	defaultChatModelName      = "gemini-1.5-flash"
	defaultEmbeddingModelName = "text-embedding-004"

	embedBatchSize = 100 // API limit per BatchEmbedContents call
)

// LLMService wraps the Gemini client behind the Embedder and Completer seams.
// Embeddings are L2-normalized before leaving this type so they match the
// vector index convention.
type LLMService struct {
	client  *genai.Client
	timeout time.Duration
}

func NewLLMService() *LLMService {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &LLMService{
		client:  client,
		timeout: config.AppConfig.CompletionTimeout,
	}
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		}
	}
}

func (s *LLMService) Embed(ctx context.Context, text string) ([]float32, error) {
	em := s.client.EmbeddingModel(defaultEmbeddingModelName)
	res, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding request failed: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("no embedding data received from gemini")
	}
	return index.Normalize(res.Embedding.Values), nil
}

func (s *LLMService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	em := s.client.EmbeddingModel(defaultEmbeddingModelName)

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := em.NewBatch()
		for _, text := range texts[start:end] {
			batch.AddContent(genai.Text(text))
		}
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embedding request failed at offset %d: %w", start, err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), end-start)
		}
		for _, e := range res.Embeddings {
			vectors = append(vectors, index.Normalize(e.Values))
		}
	}
	return vectors, nil
}

// Complete sends the prompt to the chat model, bounded by the configured
// timeout. A deadline hit surfaces as ErrUpstreamTimeout, anything else as
// ErrUpstream.
func (s *LLMService) Complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	model := s.client.GenerativeModel(defaultChatModelName)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", classifyCompletionError(ctx, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: empty completion response", ErrUpstream)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			log.Printf("Gemini response part was not text: %T", part)
		}
	}

	if responseText.Len() == 0 {
		return "", fmt.Errorf("%w: completion contained no text parts", ErrUpstream)
	}
	return responseText.String(), nil
}

// classifyCompletionError maps a failed completion call onto the error
// taxonomy. The gRPC transport reports an expired context as a
// DeadlineExceeded status rather than the context error itself, so the
// status code and the context are checked alongside the plain error chain.
func classifyCompletionError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) ||
		ctx.Err() == context.DeadlineExceeded ||
		status.Code(err) == codes.DeadlineExceeded {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
