package core

import (
	"context"

	"github.com/novalabs-ai/nova-chat/internal/ai"
)

const defaultRetrievalK = 4

// RAGService composes index retrieval, grounded prompt assembly and the model
// stream into one answer-producing chain. Retrieval completes before the
// first token is requested from the model.
type RAGService struct {
	index      *EmbeddingIndex
	model      ai.ModelClient
	retrievalK int
}

func NewRAGService(index *EmbeddingIndex, model ai.ModelClient, retrievalK int) *RAGService {
	if retrievalK <= 0 {
		retrievalK = defaultRetrievalK
	}
	return &RAGService{index: index, model: model, retrievalK: retrievalK}
}

// Ready reports whether grounding has been activated.
func (s *RAGService) Ready() bool {
	return s.index.Ready()
}

// Answer streams a grounded answer. Fails with ErrNotReady until a document
// has been ingested.
func (s *RAGService) Answer(ctx context.Context, question, history string) (ai.TokenStream, error) {
	if !s.index.Ready() {
		return nil, ErrNotReady
	}

	contexts, err := s.index.Query(ctx, question, s.retrievalK)
	if err != nil {
		return nil, err
	}

	prompt := AssembleGrounded(question, history, contexts)
	return s.model.Stream(ctx, prompt)
}
