package ai

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/novalabs-ai/nova-chat/internal/config"
)

const (
	defaultChatModelName      = "gemini-1.5-flash-latest"
	defaultEmbeddingModelName = "text-embedding-004"

	chatTemperature    = 0.4
	completionAttempts = 3
)

// GeminiClient implements ModelClient and Embedder on top of the GenAI SDK.
type GeminiClient struct {
	client       *genai.Client
	modelTimeout time.Duration
	embedTimeout time.Duration
}

func NewGeminiClient() *GeminiClient {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.AppConfig.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create GenAI client: %v", err)
	}

	return &GeminiClient{
		client:       client,
		modelTimeout: time.Duration(config.AppConfig.ModelTimeoutSeconds) * time.Second,
		embedTimeout: time.Duration(config.AppConfig.EmbedTimeoutSeconds) * time.Second,
	}
}

func (c *GeminiClient) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			log.Printf("Error closing GenAI client: %v", err)
		} else {
			log.Println("GenAI client closed.")
		}
	}
}

func (c *GeminiClient) generativeModel() *genai.GenerativeModel {
	model := c.client.GenerativeModel(defaultChatModelName)
	temp := float32(chatTemperature)
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: &temp,
	}
	return model
}

// Complete performs a single-shot generation, retrying transient failures
// before giving up with ErrModelUnavailable.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (string, error) {
	model := c.generativeModel()

	var lastErr error
	for attempt := 1; attempt <= completionAttempts; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, c.modelTimeout)
		resp, err := model.GenerateContent(cctx, genai.Text(prompt))
		cancel()
		if err != nil {
			lastErr = err
			log.Printf("Gemini completion attempt %d/%d failed: %v", attempt, completionAttempts, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		text := responseText(resp)
		if text == "" {
			lastErr = fmt.Errorf("empty response from model")
			continue
		}
		return text, nil
	}

	return "", fmt.Errorf("%w: %v", ErrModelUnavailable, lastErr)
}

// Stream opens an incremental generation. Opening is retried until a first
// response arrives; once tokens flow there is no retry and a failure ends the
// stream with an error.
func (c *GeminiClient) Stream(ctx context.Context, prompt string) (TokenStream, error) {
	model := c.generativeModel()

	var lastErr error
	for attempt := 1; attempt <= completionAttempts; attempt++ {
		sctx, cancel := context.WithCancel(ctx)
		it := model.GenerateContentStream(sctx, genai.Text(prompt))

		first, err := it.Next()
		if err == iterator.Done {
			cancel()
			return &geminiStream{done: true, cancel: func() {}}, nil
		}
		if err != nil {
			cancel()
			lastErr = err
			log.Printf("Gemini stream attempt %d/%d failed: %v", attempt, completionAttempts, err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		return &geminiStream{
			it:         it,
			cancel:     cancel,
			pending:    responseText(first),
			hasPending: true,
		}, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, lastErr)
}

// Embed requests an embedding vector for the given text.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	cctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	em := c.client.EmbeddingModel(defaultEmbeddingModelName)
	res, err := em.EmbedContent(cctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: no embedding data received", ErrEmbedding)
	}
	return res.Embedding.Values, nil
}

type geminiStream struct {
	it         *genai.GenerateContentResponseIterator
	cancel     context.CancelFunc
	pending    string
	hasPending bool
	done       bool
}

func (s *geminiStream) Next() (string, error) {
	if s.hasPending {
		s.hasPending = false
		return s.pending, nil
	}
	if s.done {
		return "", io.EOF
	}

	resp, err := s.it.Next()
	if err == iterator.Done {
		s.done = true
		s.cancel()
		return "", io.EOF
	}
	if err != nil {
		s.done = true
		s.cancel()
		return "", fmt.Errorf("model stream failed: %w", err)
	}
	return responseText(resp), nil
}

func (s *geminiStream) Close() {
	s.done = true
	s.cancel()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
