package dal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/greendizer/client-go/pkg/greendizer/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultWindowSize is the window fetched per request when iteration or
// indexed access has to page on its own.
const DefaultWindowSize int = 50

// Collection is an ordered, lazily fetched, window-cached view over the
// members of a node matching a filter. Fetched windows are kept by absolute
// index and never fetched twice; members may shift server-side between two
// fetches of different windows, which the collection does not try to hide.
type Collection[T Remote] struct {
	node  *Node[T]
	query string

	items map[int]T
	end   int
	total int64
}

func newCollection[T Remote](node *Node[T], query string) *Collection[T] {
	return &Collection[T]{
		node:  node,
		query: query,
		items: map[int]T{},
		end:   -1,
		total: -1,
	}
}

// TotalCount returns the member count the server reported on the most
// recent window, or -1 before any fetch or when the server stays silent.
func (c *Collection[T]) TotalCount() int64 { return c.total }

// Populate fetches one window of members. A limit of zero or less fetches
// everything remaining from offset onwards. Windows already cached in full
// are not fetched again.
func (c *Collection[T]) Populate(ctx context.Context, offset, limit int) error {
	var err error

	if offset < 0 {
		return errors.NewValidationError("offset must not be negative")
	}

	if c.covered(offset, limit) {
		return nil
	}

	ctx, span := tracer.Start(ctx, "populate-collection",
		trace.WithAttributes(attribute.String(TraceAttributeNodeURI, c.node.baseURI)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	page, total, err := c.fetchWindow(ctx, offset, limit)
	if err != nil {
		return err
	}

	if total >= 0 {
		c.total = total
	}

	err = c.store(offset, limit, page)

	return err
}

// At returns the member at the given index, fetching the window containing
// it when needed. An index at or beyond the end of the sequence fails with
// a not found error.
func (c *Collection[T]) At(ctx context.Context, index int) (T, error) {
	var zero T

	if index < 0 {
		return zero, errors.NewValidationError("index must not be negative")
	}

	if member, ok := c.items[index]; ok {
		return member, nil
	}

	if c.end >= 0 && index >= c.end {
		return zero, errors.NewNotFoundError(fmt.Sprintf("index %d is beyond the end of the collection", index))
	}

	offset := (index / DefaultWindowSize) * DefaultWindowSize
	if err := c.Populate(ctx, offset, DefaultWindowSize); err != nil {
		return zero, err
	}

	if member, ok := c.items[index]; ok {
		return member, nil
	}

	return zero, errors.NewNotFoundError(fmt.Sprintf("index %d is beyond the end of the collection", index))
}

// Each walks the members in server order, paging through consecutive
// windows lazily and stopping when the server returns a short window or
// the callback returns false.
func (c *Collection[T]) Each(ctx context.Context, callback func(T) bool) error {
	for index := 0; ; index++ {
		if c.end >= 0 && index >= c.end {
			return nil
		}

		member, ok := c.items[index]
		if !ok {
			if err := c.Populate(ctx, index, DefaultWindowSize); err != nil {
				return err
			}

			if member, ok = c.items[index]; !ok {
				return nil
			}
		}

		if !callback(member) {
			return nil
		}
	}
}

// First returns the first member of the collection, fetching a minimal
// window when nothing is cached yet.
func (c *Collection[T]) First(ctx context.Context) (T, error) {
	var zero T

	if member, ok := c.items[0]; ok {
		return member, nil
	}

	if err := c.Populate(ctx, 0, 1); err != nil {
		return zero, err
	}

	if member, ok := c.items[0]; ok {
		return member, nil
	}

	return zero, errors.NewNotFoundError("the collection is empty")
}

func (c *Collection[T]) covered(offset, limit int) bool {
	if c.end >= 0 && offset >= c.end {
		return true
	}

	if limit <= 0 {
		if c.end < 0 {
			return false
		}
		limit = c.end - offset
	}

	for i := offset; i < offset+limit; i++ {
		if c.end >= 0 && i >= c.end {
			return true
		}

		if _, ok := c.items[i]; !ok {
			return false
		}
	}

	return true
}

func (c *Collection[T]) fetchWindow(ctx context.Context, offset, limit int) ([]map[string]any, int64, error) {
	params := make([]string, 0, 3)

	if c.query != "" {
		params = append(params, "q="+url.QueryEscape(c.query))
	}

	params = append(params, fmt.Sprintf("offset=%d", offset))

	if limit > 0 {
		params = append(params, fmt.Sprintf("limit=%d", limit))
	}

	endpoint := c.node.baseURI + "?" + strings.Join(params, "&")

	log := logging.GetFromContext(ctx)
	log.Debug("fetching collection window", "uri", endpoint)

	response, responseBody, err := c.node.session.Send(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		return nil, -1, err
	}

	if response.StatusCode != http.StatusOK {
		contentType := response.Header.Get("Content-Type")
		return nil, -1, errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
	}

	var page []map[string]any
	if err = c.node.codec.Decode(responseBody, &page); err != nil {
		return nil, -1, errors.NewFormatError(fmt.Sprintf("failed to decode collection window under %s: %s", c.node.baseURI, err.Error()))
	}

	total, _ := extractResultsCount(response)

	return page, total, nil
}

func (c *Collection[T]) store(offset, limit int, page []map[string]any) error {
	for i, fields := range page {
		id := memberID(fields)
		if id == "" {
			return errors.NewFormatError(fmt.Sprintf("collection window under %s holds a member without an id", c.node.baseURI))
		}

		etag, _ := fields["etag"].(string)
		delete(fields, "etag")

		member := c.node.Get(id)
		member.Sync(fields, etag)

		c.items[offset+i] = member
	}

	if limit <= 0 || len(page) < limit {
		c.end = offset + len(page)
	}

	return nil
}
