package dal

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Remote is the contract every concrete resource proxy fulfills, usually by
// embedding *Resource.
type Remote interface {
	ID() string
	URI() string
	Sync(attributes map[string]any, etag string)
}

// Node addresses the set of resources reachable under a shared URI prefix.
// It is parameterized over the concrete proxy type and holds the builder
// closure that replaces subclassing for URI derivation.
type Node[T Remote] struct {
	session Session
	codec   Codec
	baseURI string
	build   func(id string) T
}

func WithNodeCodec[T Remote](codec Codec) func(*Node[T]) {
	return func(n *Node[T]) {
		n.codec = codec
	}
}

func NewNode[T Remote](session Session, baseURI string, build func(id string) T, options ...func(*Node[T])) *Node[T] {
	n := &Node[T]{
		session: session,
		codec:   DefaultCodec,
		baseURI: baseURI,
		build:   build,
	}

	for _, option := range options {
		option(n)
	}

	return n
}

func (n *Node[T]) URI() string { return n.baseURI }

// Get returns a proxy for the member with the given identifier. No request
// is sent and repeated calls are side-effect free, but each call builds a
// fresh proxy: two proxies for the same member may diverge until committed.
func (n *Node[T]) Get(id string) T {
	return n.build(id)
}

// All returns the unfiltered collection over the node's members, in the
// server's order.
func (n *Node[T]) All() *Collection[T] {
	return newCollection(n, "")
}

// Search returns the collection of members matching the given filter
// expression. The expression is passed through verbatim; no client-side
// filtering takes place.
func (n *Node[T]) Search(query string) *Collection[T] {
	return newCollection(n, query)
}

// Create adds a member to the set. On a created response the new proxy is
// addressed from the location header and, when the response carries a
// representation, hydrated from it without a second round trip.
func (n *Node[T]) Create(ctx context.Context, fields map[string]any) (T, error) {
	var zero T
	var err error

	ctx, span := tracer.Start(ctx, "create-resource",
		trace.WithAttributes(attribute.String(TraceAttributeNodeURI, n.baseURI)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	payload, err := n.codec.Encode(fields)
	if err != nil {
		return zero, err
	}

	headers := map[string][]string{"Content-Type": {"application/json"}}

	response, responseBody, err := n.session.Send(ctx, http.MethodPost, n.baseURI, bytes.NewBuffer(payload), headers)
	if err != nil {
		return zero, err
	}

	if response.StatusCode != http.StatusCreated {
		contentType := response.Header.Get("Content-Type")
		err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
		return zero, err
	}

	var attributes map[string]any
	if len(responseBody) > 0 {
		attributes = map[string]any{}
		if err = n.codec.Decode(responseBody, &attributes); err != nil {
			err = errors.NewFormatError(fmt.Sprintf("failed to decode created representation under %s: %s", n.baseURI, err.Error()))
			return zero, err
		}
	}

	id := idFromLocation(response.Header.Get("Location"))
	if id == "" {
		log := logging.GetFromContext(ctx)
		log.Warn("created response carried no location header", "uri", n.baseURI)
		id = memberID(attributes)
	}

	if id == "" {
		err = errors.NewFormatError(fmt.Sprintf("created response under %s identifies no member", n.baseURI))
		return zero, err
	}

	member := n.Get(id)

	if attributes != nil {
		delete(attributes, "etag")
		member.Sync(attributes, response.Header.Get("Etag"))
	}

	return member, nil
}

func idFromLocation(location string) string {
	location = strings.TrimSuffix(location, "/")
	if idx := strings.LastIndex(location, "/"); idx >= 0 {
		return location[idx+1:]
	}

	return location
}

func memberID(fields map[string]any) string {
	switch value := fields["id"].(type) {
	case string:
		return value
	case float64:
		return strconv.FormatInt(int64(value), 10)
	}

	return ""
}
