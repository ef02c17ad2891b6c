package guard

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

// maxHintBodyBytes bounds how much of a request body is buffered to look
// for patient and branch hints. Larger bodies are left alone.
const maxHintBodyBytes = 1 << 20

// hints looks up caller-asserted values in the query string and then in a
// JSON object body. The body is parsed at most once, from a copy, and the
// request body is restored for the handler.
type hints struct {
	r      *http.Request
	body   map[string]any
	parsed bool
	err    error
}

func newHints(r *http.Request) *hints {
	return &hints{r: r}
}

// lookup returns the first non-empty value for keys. The only error it
// reports is a request body rejected as too large by the body limit.
func (h *hints) lookup(keys []string) (string, error) {
	q := h.r.URL.Query()
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return v, nil
		}
	}

	body := h.jsonBody()
	if h.err != nil {
		return "", h.err
	}
	for _, k := range keys {
		if v := hintString(body[k]); v != "" {
			return v, nil
		}
	}
	return "", nil
}

func (h *hints) jsonBody() map[string]any {
	if h.parsed {
		return h.body
	}
	h.parsed = true
	h.body = map[string]any{}

	r := h.r
	if r.Body == nil || r.Body == http.NoBody {
		return h.body
	}

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxHintBodyBytes+1))
	r.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), closer: r.Body}
	if isBodyTooLarge(err) {
		h.err = err
		return h.body
	}
	if err != nil || len(buf) == 0 || len(buf) > maxHintBodyBytes {
		return h.body
	}

	dec := json.NewDecoder(bytes.NewReader(buf))
	dec.UseNumber()
	var parsed map[string]any
	if err := dec.Decode(&parsed); err != nil || parsed == nil {
		return h.body
	}
	h.body = parsed
	return h.body
}

func isBodyTooLarge(err error) bool {
	var he *echo.HTTPError
	return errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge
}

// hintString accepts strings and numbers; anything else counts as absent.
func hintString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	}
	return ""
}

// replayBody serves the buffered prefix followed by the unread remainder and
// closes the original body.
type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error { return b.closer.Close() }
