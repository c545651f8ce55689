package dal

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Resource is a lazily hydrated proxy for one remote entity. It keeps the
// last known server state in an attribute cache, buffers local edits until
// an explicit commit, and carries the concurrency token from the last
// successful exchange. Instances are not safe for concurrent mutation.
type Resource struct {
	session Session
	codec   Codec

	id  string
	uri func() string

	attributes map[string]any
	pending    map[string]any
	etag       string
	loaded     bool
}

func WithCodec(codec Codec) func(*Resource) {
	return func(r *Resource) {
		r.codec = codec
	}
}

// NewResource constructs a proxy for the entity the uri closure points at.
// No request is sent; hydration happens on first use. The id may be empty
// for singleton resources addressed by a fixed path.
func NewResource(session Session, id string, uri func() string, options ...func(*Resource)) *Resource {
	r := &Resource{
		session:    session,
		codec:      DefaultCodec,
		id:         id,
		uri:        uri,
		attributes: map[string]any{},
		pending:    map[string]any{},
	}

	for _, option := range options {
		option(r)
	}

	return r
}

func (r *Resource) ID() string   { return r.id }
func (r *Resource) URI() string  { return r.uri() }
func (r *Resource) Etag() string { return r.etag }

// Loaded reports whether the proxy has ever been hydrated.
func (r *Resource) Loaded() bool { return r.loaded }

// Dirty reports whether uncommitted local edits exist.
func (r *Resource) Dirty() bool { return len(r.pending) > 0 }

// Attribute resolves a field by name: a pending local edit shadows the
// cached server value, and a proxy that has never been hydrated loads
// itself once before giving up on the name.
func (r *Resource) Attribute(ctx context.Context, name string) (any, error) {
	if value, ok := r.pending[name]; ok {
		return value, nil
	}

	if value, ok := r.attributes[name]; ok {
		return value, nil
	}

	if !r.loaded {
		if err := r.Load(ctx); err != nil {
			return nil, err
		}

		if value, ok := r.attributes[name]; ok {
			return value, nil
		}
	}

	return nil, errors.NewNotFoundError(fmt.Sprintf("%s has no attribute %q", r.uri(), name))
}

// DateAttribute resolves a field holding a timestamp, accepting the epoch
// millisecond numbers the API writes as well as RFC 3339 strings.
func (r *Resource) DateAttribute(ctx context.Context, name string) (time.Time, error) {
	raw, err := r.Attribute(ctx, name)
	if err != nil {
		return time.Time{}, err
	}

	return parseDate(name, raw)
}

func parseDate(name string, raw any) (time.Time, error) {
	switch value := raw.(type) {
	case float64:
		return time.UnixMilli(int64(value)).UTC(), nil
	case int64:
		return time.UnixMilli(value).UTC(), nil
	case time.Time:
		return value, nil
	case string:
		ts, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, errors.NewFormatError(fmt.Sprintf("attribute %q holds unparseable timestamp %q", name, value))
		}
		return ts, nil
	}

	return time.Time{}, errors.NewFormatError(fmt.Sprintf("attribute %q holds no parseable timestamp", name))
}

// RegisterUpdate buffers a local edit for the named field. Nothing is sent
// until Update commits the buffer.
func (r *Resource) RegisterUpdate(name string, value any) {
	r.pending[name] = value
}

// Load hydrates the proxy from the API. The attribute cache is replaced
// wholesale on success and left untouched on any failure. Pending edits
// survive a reload.
func (r *Resource) Load(ctx context.Context) error {
	var err error

	ctx, span := tracer.Start(ctx, "load-resource",
		trace.WithAttributes(attribute.String(TraceAttributeResourceURI, r.uri())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := r.session.Send(ctx, http.MethodGet, r.uri(), nil, nil)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusOK {
		contentType := response.Header.Get("Content-Type")
		err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
		return err
	}

	attributes := map[string]any{}
	if err = r.codec.Decode(responseBody, &attributes); err != nil {
		err = errors.NewFormatError(fmt.Sprintf("failed to decode representation of %s: %s", r.uri(), err.Error()))
		return err
	}

	r.attributes = attributes
	r.etag = response.Header.Get("Etag")
	r.loaded = true

	return nil
}

// Update commits the pending edits under optimistic concurrency control.
// An empty buffer is a no-op. On success the edits fold into the attribute
// cache and the buffer clears; on any failure the buffer is preserved so
// the caller may reload and retry.
func (r *Resource) Update(ctx context.Context) error {
	var err error

	if len(r.pending) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "commit-resource",
		trace.WithAttributes(attribute.String(TraceAttributeResourceURI, r.uri())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	payload, err := r.codec.Encode(r.pending)
	if err != nil {
		return err
	}

	headers := map[string][]string{"Content-Type": {"application/json"}}
	if r.etag != "" {
		headers["If-Match"] = []string{r.etag}
	}

	response, responseBody, err := r.session.Send(ctx, http.MethodPatch, r.uri(), bytes.NewBuffer(payload), headers)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusNoContent {
		contentType := response.Header.Get("Content-Type")
		err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
		return err
	}

	for name, value := range r.pending {
		r.attributes[name] = value
	}
	r.pending = map[string]any{}

	if etag := response.Header.Get("Etag"); etag != "" {
		r.etag = etag
	}

	return nil
}

// Sync hydrates the proxy from a representation already at hand, typically
// the body of a create response, saving the round trip a Load would cost.
// The proxy takes ownership of the map.
func (r *Resource) Sync(attributes map[string]any, etag string) {
	r.attributes = attributes
	r.etag = etag
	r.loaded = true
}
