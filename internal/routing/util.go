package routing

import (
	"bytes"
	"io"
)

// newBodyReader wraps a byte slice as a fresh io.Reader; every dispatch
// attempt (primary, provider, and each retry) needs its own reader since
// http.NewRequestWithContext consumes it.
func newBodyReader(body []byte) io.Reader {
	return bytes.NewReader(body)
}
