package core

import (
	"fmt"
	"strings"
)

// Prompt templates. The grounded variant always renders its context section,
// even when empty, so the model sees a stable document shape.

const plainTemplate = `You are Nova, a friendly and helpful AI assistant. Your responses should be conversational and direct.
Answer the user's message. Use the provided chat history for context if available.

Current conversation:
%s

User: %s
Nova:`

const groundedTemplate = `
You are a helpful assistant. Use the following context, conversation history and the user's question to provide an accurate and concise response.

Conversation History:
%s

Context:
%s


User's Question:
%s

Your Response:
`

// ContextSeparator joins retrieved chunks inside the context section.
const ContextSeparator = "\n\n"

// AssemblePlain builds the model input for an ungrounded question.
func AssemblePlain(question, history string) string {
	return fmt.Sprintf(plainTemplate, history, question)
}

// AssembleGrounded builds the model input for a grounded question from the
// retrieved chunk texts.
func AssembleGrounded(question, history string, contextChunks []string) string {
	context := strings.Join(contextChunks, ContextSeparator)
	return fmt.Sprintf(groundedTemplate, history, context, question)
}
