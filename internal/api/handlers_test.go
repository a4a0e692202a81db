package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novalabs-ai/nova-chat/internal/ai"
	"github.com/novalabs-ai/nova-chat/internal/core"
	"github.com/novalabs-ai/nova-chat/internal/store"
)

type testEnv struct {
	router   http.Handler
	model    *ai.MockModel
	embedder *ai.MockEmbedder
	index    *core.EmbeddingIndex
	sessions *core.SessionManager
}

func newTestEnv(t *testing.T, model *ai.MockModel, maxUploadBytes int64) *testEnv {
	t.Helper()

	dbStore, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })

	embedder := &ai.MockEmbedder{}
	index, err := core.NewEmbeddingIndex(dbStore, embedder)
	require.NoError(t, err)

	ingester := core.NewIngestionPipeline(core.NewChunker(500, 0), index)
	sessions := core.NewSessionManager(dbStore)
	handler := NewAPIHandler(
		core.NewChatService(model),
		core.NewRAGService(index, model, 4),
		ingester,
		sessions,
		maxUploadBytes,
	)

	return &testEnv{
		router:   NewRouter(handler),
		model:    model,
		embedder: embedder,
		index:    index,
		sessions: sessions,
	}
}

func (env *testEnv) postJSON(t *testing.T, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) upload(t *testing.T, filename, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/add-document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{}, 10<<20)

	req := httptest.NewRequest(http.MethodGet, "/z", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestAskValidation(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{}, 10<<20)

	t.Run("empty question has no side effects", func(t *testing.T) {
		rec := env.postJSON(t, "/ask", `{"question":""}`, nil)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeJSON(t, rec)
		assert.Equal(t, "Validation failed", body["error"])
		details := body["details"].([]any)
		require.Len(t, details, 1)
		detail := details[0].(map[string]any)
		assert.Equal(t, "question", detail["path"])
		assert.Equal(t, "Input cannot be empty", detail["message"])

		// Rejected before reaching the model or the history.
		assert.Equal(t, 0, env.model.StreamCalls())
		turns, err := env.sessions.Get("").History.Turns()
		require.NoError(t, err)
		assert.Empty(t, turns)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := env.postJSON(t, "/ask", `{"question":`, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAskStreamsAnswer(t *testing.T) {
	const answer = "Hello there, friendly human."
	env := newTestEnv(t, &ai.MockModel{Response: answer}, 10<<20)

	rec := env.postJSON(t, "/ask", `{"question":"say hello"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, answer, rec.Body.String(), "streamed body is the token concatenation")

	// Both turns recorded in the shared default session.
	turns, err := env.sessions.Get("").History.Turns()
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, store.SpeakerUser, turns[0].Speaker)
	assert.Equal(t, "say hello", turns[0].Content)
	assert.Equal(t, store.SpeakerAssistant, turns[1].Speaker)
	assert.Equal(t, answer, turns[1].Content)
	assert.Equal(t, store.StatusFinal, turns[1].Status)
}

func TestAskSessionIsolation(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{Response: "ok."}, 10<<20)

	rec := env.postJSON(t, "/ask", `{"question":"hello from a"}`, map[string]string{"X-Session-ID": "a"})
	require.Equal(t, http.StatusOK, rec.Code)

	turnsA, err := env.sessions.Get("a").History.Turns()
	require.NoError(t, err)
	assert.Len(t, turnsA, 2)

	turnsB, err := env.sessions.Get("b").History.Turns()
	require.NoError(t, err)
	assert.Empty(t, turnsB)
}

func TestAskStreamFailureMidway(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{Response: "one two three four five", FailAfter: 2}, 10<<20)

	rec := env.postJSON(t, "/ask", `{"question":"will break"}`, nil)

	// The stream began, so the status cannot change; the body is truncated.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "one two ", rec.Body.String())

	turns, err := env.sessions.Get("").History.Turns()
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, store.StatusError, turns[1].Status)

	// Errored turns never reach later prompts.
	rendered, err := env.sessions.Get("").History.Render()
	require.NoError(t, err)
	assert.NotContains(t, rendered, "one two")
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestAskClientDisconnectStopsStream(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{Endless: true}, 10<<20)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodPost, "/ask", strings.NewReader(`{"question":"q"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		env.router.ServeHTTP(rec, req)
		close(done)
	}()

	// Let a few tokens flow before the client goes away.
	waitFor(t, func() bool { return env.model.TokenPulls() > 3 })
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	// The upstream stream is released and no further tokens are pulled.
	assert.Equal(t, 1, env.model.StreamCloses())
	pulls := env.model.TokenPulls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, pulls, env.model.TokenPulls())
}

func TestAskModelUnavailable(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{Err: ai.ErrModelUnavailable}, 10<<20)

	rec := env.postJSON(t, "/ask", `{"question":"q"}`, nil)

	// Failure before the first token still produces a JSON error response.
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeJSON(t, rec)
	assert.Contains(t, body["error"], "model unavailable")

	// The exchange never reached the history.
	turns, err := env.sessions.Get("").History.Turns()
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestRAGNotReady(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{}, 10<<20)

	rec := env.postJSON(t, "/rag", `{"question":"anything"}`, nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "RAG not ready. Please add documents first via /add-document.", body["error"])
	assert.Equal(t, 0, env.model.StreamCalls())
}

func TestAddDocumentThenGroundedAnswer(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{}, 10<<20)
	env.model.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "The capital of France is Paris.") {
			return "The capital of France is Paris.", nil
		}
		return "I don't have that information.", nil
	}

	rec := env.upload(t, "france.txt", "text/plain", []byte("The capital of France is Paris."))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "Document processed successfully.", body["message"])
	assert.Equal(t, "france.txt", body["filename"])
	assert.True(t, env.index.Ready())

	rec = env.postJSON(t, "/rag", `{"question":"What is the capital of France?","history":""}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Paris")
}

func TestAddDocumentOversized(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{}, 512)

	rec := env.upload(t, "big.txt", "text/plain", bytes.Repeat([]byte("a"), 600))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON(t, rec)
	assert.Contains(t, body["error"], "File too large")

	// No ingestion side effect.
	assert.Equal(t, 0, env.index.Len())
	assert.False(t, env.index.Ready())
	assert.Equal(t, 0, env.embedder.Calls())
}

func TestAddDocumentUnsupportedType(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{}, 10<<20)

	rec := env.upload(t, "image.png", "image/png", []byte{0x89, 0x50, 0x4e, 0x47})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeJSON(t, rec)
	assert.Contains(t, body["error"], "Invalid file type")
	assert.Equal(t, 0, env.index.Len())
}

func TestAddDocumentMissingFile(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{}, 10<<20)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/add-document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConcurrentAsksShareHistoryWithoutLoss(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{Response: "done."}, 10<<20)

	questions := []string{"first question", "second question"}
	var wg sync.WaitGroup
	for _, q := range questions {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			rec := env.postJSON(t, "/ask", fmt.Sprintf(`{"question":%q}`, q), nil)
			assert.Equal(t, http.StatusOK, rec.Code)
		}(q)
	}
	wg.Wait()

	// Shared default session: both exchanges appear exactly once each, in
	// some relative order. Callers observe each other's turns.
	turns, err := env.sessions.Get("").History.Turns()
	require.NoError(t, err)
	require.Len(t, turns, 4)

	counts := make(map[string]int)
	for _, turn := range turns {
		counts[turn.Content]++
	}
	assert.Equal(t, 1, counts["first question"])
	assert.Equal(t, 1, counts["second question"])
	assert.Equal(t, 2, counts["done."])
}

func TestRAGUsesExplicitHistoryOverride(t *testing.T) {
	env := newTestEnv(t, &ai.MockModel{}, 10<<20)

	rec := env.upload(t, "doc.txt", "text/plain", []byte("Some indexed content."))
	require.Equal(t, http.StatusOK, rec.Code)

	var gotPrompt string
	env.model.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "ok", nil
	}

	rec = env.postJSON(t, "/rag", `{"question":"q","history":"User: earlier exchange\n"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, gotPrompt, "User: earlier exchange")
}
