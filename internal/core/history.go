package core

import (
	"fmt"
	"strings"

	"github.com/novalabs-ai/nova-chat/internal/store"
)

// History is the transcript of one session. Appends go straight to the store,
// which serializes writes, so concurrent appends never lose a turn. Turns
// still pending or marked as errors are kept in the transcript but excluded
// from prompt rendering.
type History struct {
	dbStore   *store.SQLiteStore
	sessionID string
}

func NewHistory(dbStore *store.SQLiteStore, sessionID string) *History {
	return &History{dbStore: dbStore, sessionID: sessionID}
}

// Append records a new turn and returns it with its assigned ID.
func (h *History) Append(speaker, content, status string) (*store.Turn, error) {
	turn := store.Turn{
		SessionID: h.sessionID,
		Speaker:   speaker,
		Content:   content,
		Status:    status,
	}
	if err := h.dbStore.CreateTurn(&turn); err != nil {
		return nil, fmt.Errorf("failed to append turn: %w", err)
	}
	return &turn, nil
}

// Finalize marks a pending turn complete with its full content.
func (h *History) Finalize(turnID, content string) error {
	return h.dbStore.UpdateTurn(turnID, content, store.StatusFinal)
}

// MarkError flags a turn whose answer failed; errored turns are never
// rendered into prompts.
func (h *History) MarkError(turnID, partialContent string) error {
	return h.dbStore.UpdateTurn(turnID, partialContent, store.StatusError)
}

// Render formats the completed turns for prompt context, newest last.
func (h *History) Render() (string, error) {
	turns, err := h.dbStore.GetFinalTurnsBySessionID(h.sessionID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, turn := range turns {
		switch turn.Speaker {
		case store.SpeakerUser:
			b.WriteString("User: " + turn.Content + "\n")
		case store.SpeakerAssistant:
			b.WriteString("Nova: " + turn.Content + "\n")
		}
	}
	return b.String(), nil
}

// Turns returns the full transcript regardless of status.
func (h *History) Turns() ([]store.Turn, error) {
	return h.dbStore.GetTurnsBySessionID(h.sessionID)
}
