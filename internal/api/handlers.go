package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/novalabs-ai/nova-chat/internal/ai"
	"github.com/novalabs-ai/nova-chat/internal/core"
	"github.com/novalabs-ai/nova-chat/internal/extract"
	"github.com/novalabs-ai/nova-chat/internal/store"
)

const ragNotReadyMessage = "RAG not ready. Please add documents first via /add-document."

// sessionHeader identifies the caller's conversation scope. Callers that omit
// it share one default session.
const sessionHeader = "X-Session-ID"

type APIHandler struct {
	chatService    *core.ChatService
	ragService     *core.RAGService
	ingester       *core.IngestionPipeline
	sessions       *core.SessionManager
	maxUploadBytes int64
}

func NewAPIHandler(cs *core.ChatService, rs *core.RAGService, ingester *core.IngestionPipeline, sessions *core.SessionManager, maxUploadBytes int64) *APIHandler {
	return &APIHandler{
		chatService:    cs,
		ragService:     rs,
		ingester:       ingester,
		sessions:       sessions,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

type AskRequest struct {
	Question string `json:"question"`
}

func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if details := validateQuestion(req.Question); details != nil {
		writeValidationError(w, details)
		return
	}

	sess := h.sessions.Get(r.Header.Get(sessionHeader))
	history, err := sess.History.Render()
	if err != nil {
		log.Printf("Error rendering history for session %s: %v", sess.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load conversation history")
		return
	}

	ts, err := h.chatService.AskStream(r.Context(), req.Question, history)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.streamTurn(w, r, sess, req.Question, ts)
}

type RAGRequest struct {
	Question string  `json:"question"`
	History  *string `json:"history,omitempty"`
}

func (h *APIHandler) RAGHandler(w http.ResponseWriter, r *http.Request) {
	var req RAGRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if details := validateQuestion(req.Question); details != nil {
		writeValidationError(w, details)
		return
	}

	sess := h.sessions.Get(r.Header.Get(sessionHeader))

	// An explicit history string overrides the stored session transcript.
	var history string
	if req.History != nil {
		history = *req.History
	} else {
		var err error
		history, err = sess.History.Render()
		if err != nil {
			log.Printf("Error rendering history for session %s: %v", sess.ID, err)
			writeError(w, http.StatusInternalServerError, "Failed to load conversation history")
			return
		}
	}

	ts, err := h.ragService.Answer(r.Context(), req.Question, history)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.streamTurn(w, r, sess, req.Question, ts)
}

// streamTurn records the user turn, relays the token stream, and finalizes
// the assistant turn with the streamed answer (or marks it errored).
func (h *APIHandler) streamTurn(w http.ResponseWriter, r *http.Request, sess *core.Session, question string, ts ai.TokenStream) {
	if _, err := sess.History.Append(store.SpeakerUser, question, store.StatusFinal); err != nil {
		log.Printf("Error appending user turn for session %s: %v", sess.ID, err)
	}
	assistantTurn, err := sess.History.Append(store.SpeakerAssistant, "", store.StatusPending)
	if err != nil {
		log.Printf("Error appending assistant turn for session %s: %v", sess.ID, err)
	}

	answer, written, relayErr := relayStream(w, r, ts)

	if relayErr != nil {
		log.Printf("Stream for session %s ended after %d tokens: %v", sess.ID, written, relayErr)
		if assistantTurn != nil {
			if err := sess.History.MarkError(assistantTurn.ID, answer); err != nil {
				log.Printf("Error marking turn errored for session %s: %v", sess.ID, err)
			}
		}
		if written == 0 {
			// Nothing sent yet, a proper error response is still possible.
			h.writeServiceError(w, relayErr)
		}
		// Otherwise the response is already streaming; terminating it is the
		// caller's signal that the answer may be incomplete.
		return
	}

	if assistantTurn != nil {
		if err := sess.History.Finalize(assistantTurn.ID, answer); err != nil {
			log.Printf("Error finalizing turn for session %s: %v", sess.ID, err)
		}
	}
}

func (h *APIHandler) AddDocumentHandler(w http.ResponseWriter, r *http.Request) {
	// Slack on top of the limit so multipart framing does not count against
	// the document itself.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64*1024)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusBadRequest, tooLargeMessage(h.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "File upload error: "+err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded or file was rejected.")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		writeError(w, http.StatusBadRequest, tooLargeMessage(h.maxUploadBytes))
		return
	}

	mediaType := extract.ResolveMediaType(header.Header.Get("Content-Type"), header.Filename)
	if !extract.IsSupported(mediaType) {
		writeError(w, http.StatusBadRequest, "Invalid file type: "+header.Header.Get("Content-Type")+". Allowed types: PDF, DOCX, PPTX, TXT.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("Error reading upload %q: %v", header.Filename, err)
		writeError(w, http.StatusInternalServerError, "Failed to read uploaded file")
		return
	}

	doc := extract.Document{
		Name:      header.Filename,
		MediaType: mediaType,
		Data:      data,
	}
	if err := h.ingester.Ingest(r.Context(), doc); err != nil {
		log.Printf("Error processing document %q: %v", header.Filename, err)
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Document processed successfully.",
		"filename": header.Filename,
	})
}

// writeServiceError maps the error taxonomy onto HTTP responses.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotReady):
		writeError(w, http.StatusBadRequest, ragNotReadyMessage)
	case errors.Is(err, extract.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrEmptyDocument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ai.ErrModelUnavailable), errors.Is(err, ai.ErrEmbedding):
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
