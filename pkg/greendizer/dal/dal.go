// Package dal implements the generic data access layer every concrete
// Greendizer resource type is built on: lazily hydrated resource proxies,
// nodes that address sets of resources under a shared URI prefix, and
// paginated collections over those sets.
package dal

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
)

// Session is the transport capability a resource borrows from the client
// that owns it. Send issues one request against the API root and returns
// the response together with its drained body. One request in, one outcome
// out; retries are the caller's business.
type Session interface {
	Send(ctx context.Context, method, uri string, body io.Reader, headers map[string][]string) (*http.Response, []byte, error)
}

// Codec encodes commit payloads and decodes the representations the API
// serves.
type Codec interface {
	Encode(fields map[string]any) ([]byte, error)
	Decode(data []byte, into any) error
}

type jsonCodec struct{}

func (jsonCodec) Encode(fields map[string]any) ([]byte, error) { return json.Marshal(fields) }
func (jsonCodec) Decode(data []byte, into any) error           { return json.Unmarshal(data, into) }

// DefaultCodec handles the application/json representations the API serves
// by default.
var DefaultCodec Codec = jsonCodec{}

const (
	TraceAttributeResourceURI string = "resource-uri"
	TraceAttributeNodeURI     string = "node-uri"
)

var tracer = otel.Tracer("greendizer-dal")

func extractResultsCount(r *http.Response) (int64, bool) {
	val, ok := r.Header[http.CanonicalHeaderKey("X-Result-Count")]
	if !ok || len(val) == 0 {
		return -1, false
	}

	count, err := strconv.ParseInt(val[0], 10, 64)
	if err != nil {
		return -1, false
	}

	return count, true
}
