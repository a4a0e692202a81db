package core

import (
	"context"

	"github.com/novalabs-ai/nova-chat/internal/ai"
)

// ChatService answers questions straight from the model, without retrieval.
type ChatService struct {
	model ai.ModelClient
}

func NewChatService(model ai.ModelClient) *ChatService {
	return &ChatService{model: model}
}

// AskStream starts an incremental answer for the given question and rendered
// conversation history.
func (s *ChatService) AskStream(ctx context.Context, question, history string) (ai.TokenStream, error) {
	prompt := AssemblePlain(question, history)
	return s.model.Stream(ctx, prompt)
}

// Ask blocks for the complete answer. Same prompt as AskStream, so the
// concatenated stream and the single-shot answer agree for a deterministic
// model.
func (s *ChatService) Ask(ctx context.Context, question, history string) (string, error) {
	prompt := AssemblePlain(question, history)
	return s.model.Complete(ctx, prompt)
}
