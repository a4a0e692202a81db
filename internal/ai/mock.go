package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"strings"
	"sync"
)

// MockModel is a deterministic ModelClient for tests. With no overrides it
// answers every prompt with a stable string derived from the prompt, and its
// streamed tokens always concatenate to the same text Complete returns.
type MockModel struct {
	// CompleteFunc overrides Complete if set.
	CompleteFunc func(ctx context.Context, prompt string) (string, error)
	// Response, if non-empty, is used as the answer for every prompt.
	Response string
	// Err, if set, is returned by Complete and by Stream before any token.
	Err error
	// FailAfter > 0 makes the stream fail after emitting that many tokens.
	FailAfter int
	// Endless makes streams produce tokens until they are closed. Used to
	// exercise consumer-side cancellation.
	Endless bool

	mu            sync.Mutex
	completeCalls int
	streamCalls   int
	tokenPulls    int
	streamCloses  int
}

func (m *MockModel) answer(prompt string) string {
	if m.Response != "" {
		return m.Response
	}
	h := fnv.New32a()
	h.Write([]byte(prompt))
	return fmt.Sprintf("mock answer %08x", h.Sum32())
}

func (m *MockModel) Complete(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.completeCalls++
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.answer(prompt), nil
}

func (m *MockModel) Stream(ctx context.Context, prompt string) (TokenStream, error) {
	m.mu.Lock()
	m.streamCalls++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	var text string
	if m.CompleteFunc != nil {
		var err error
		text, err = m.CompleteFunc(ctx, prompt)
		if err != nil {
			return nil, err
		}
	} else {
		text = m.answer(prompt)
	}

	return &sliceStream{
		model:     m,
		tokens:    strings.SplitAfter(text, " "),
		failAfter: m.FailAfter,
		endless:   m.Endless,
	}, nil
}

func (m *MockModel) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

func (m *MockModel) StreamCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCalls
}

// TokenPulls counts Next calls across every stream the model produced.
func (m *MockModel) TokenPulls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenPulls
}

// StreamCloses counts streams that were closed before reaching their natural
// end, i.e. releases triggered by the consumer rather than by exhaustion.
func (m *MockModel) StreamCloses() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCloses
}

func (m *MockModel) recordPull() {
	m.mu.Lock()
	m.tokenPulls++
	m.mu.Unlock()
}

func (m *MockModel) recordClose() {
	m.mu.Lock()
	m.streamCloses++
	m.mu.Unlock()
}

type sliceStream struct {
	model *MockModel

	mu        sync.Mutex
	tokens    []string
	i         int
	failAfter int
	endless   bool
	closed    bool
}

func (s *sliceStream) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", io.EOF
	}
	if s.model != nil {
		s.model.recordPull()
	}
	if s.failAfter > 0 && s.i >= s.failAfter {
		s.closed = true
		return "", fmt.Errorf("model stream failed: connection reset")
	}
	if s.endless {
		s.i++
		return "tick ", nil
	}
	if s.i >= len(s.tokens) {
		s.closed = true
		return "", io.EOF
	}
	tok := s.tokens[s.i]
	s.i++
	return tok, nil
}

func (s *sliceStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.model != nil {
		s.model.recordClose()
	}
}

// MockEmbedder is a deterministic Embedder for tests. The default behavior
// hashes words into a fixed-dimension bag-of-words vector, so texts sharing
// vocabulary score higher under cosine similarity than unrelated texts.
type MockEmbedder struct {
	// EmbedFunc overrides Embed if set.
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)
	// Dim is the vector dimensionality (default 64).
	Dim int

	mu    sync.Mutex
	calls int
}

func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}

	dim := m.Dim
	if dim <= 0 {
		dim = 64
	}

	vec := make([]float32, dim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(dim)]++
	}

	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(math.Sqrt(sumSquares))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
