package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/novalabs-ai/nova-chat/internal/ai"
)

// relayBuffer bounds how far the producer may run ahead of the client.
const relayBuffer = 16

// relayStream forwards a token stream to the client in arrival order,
// flushing after every token. A producer goroutine pulls from the stream into
// a bounded channel; the consumer drains it into the response. When the client
// disconnects the producer observes the cancelled context and stops issuing
// upstream reads.
//
// Returns the concatenated answer so far, the number of tokens written, and
// the first error. Response headers are only sent once the first token
// arrives, so a failure with zero tokens written still allows the caller to
// send a JSON error response.
func relayStream(w http.ResponseWriter, r *http.Request, ts ai.TokenStream) (string, int, error) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	defer ts.Close()

	tokens := make(chan string, relayBuffer)
	errc := make(chan error, 1)

	go func() {
		defer close(tokens)
		for {
			tok, err := ts.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				errc <- err
				return
			}
			if tok == "" {
				continue
			}
			select {
			case tokens <- tok:
			case <-ctx.Done():
				return
			}
		}
	}()

	flusher, _ := w.(http.Flusher)
	var answer strings.Builder
	written := 0
	for tok := range tokens {
		if written == 0 {
			setStreamHeaders(w)
		}
		if _, err := io.WriteString(w, tok); err != nil {
			cancel()
			return answer.String(), written, err
		}
		answer.WriteString(tok)
		written++
		if flusher != nil {
			flusher.Flush()
		}
	}

	select {
	case err := <-errc:
		return answer.String(), written, err
	default:
	}

	if written == 0 {
		// Complete but empty stream: still answer with the streaming shape.
		setStreamHeaders(w)
		w.WriteHeader(http.StatusOK)
	}
	return answer.String(), written, nil
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
}
