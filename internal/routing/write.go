package routing

import (
	"encoding/json"
	"io"
	"net/http"

	"ccfallback/internal/headers"
	"ccfallback/internal/models"
)

// writeResult writes a non-streamed result to w: sieved headers, original
// status code, and the buffered body verbatim.
func writeResult(w http.ResponseWriter, r result) {
	headers.CopyToResponse(w, r.header)
	w.WriteHeader(r.statusCode)
	if len(r.body) > 0 {
		_, _ = w.Write(r.body)
	}
}

// writeError synthesizes the canonical {error:{type,message}} body from
// spec.md section 6 and writes it as the response.
func writeError(w http.ResponseWriter, status int, errType, message string) {
	body, err := json.Marshal(models.NewErrorBody(errType, message))
	if err != nil {
		body = []byte(`{"error":{"type":"proxy_error","message":"failed to encode error body"}}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// streamPassthrough copies an already Anthropic-shaped SSE body straight
// through to the client, flushing after every read so no buffering
// accumulates mid-stream, per spec.md section 4.1's "piped to the client
// without materialization".
func streamPassthrough(w http.ResponseWriter, upstream io.Reader, upstreamHeaders http.Header) error {
	headers.CopyToResponse(w, upstreamHeaders)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	buf := make([]byte, 4096)
	for {
		n, err := upstream.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if canFlush {
				flusher.Flush()
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
