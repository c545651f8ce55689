package dal_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/greendizer/client-go/pkg/greendizer/dal"
	gderrors "github.com/greendizer/client-go/pkg/greendizer/errors"

	"github.com/matryer/is"
)

func TestPopulateFetchesOneWindow(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockWindowAPI(120)
	defer ts.Close()

	c := newTestNode(ts.URL, "emails/a/invoices/").All()

	is.NoErr(c.Populate(context.Background(), 10, 5))
	is.Equal(c.TotalCount(), int64(120))

	member, err := c.At(context.Background(), 12)
	is.NoErr(err)
	is.Equal(member.ID(), "inv-012")

	is.Equal(requests.Load(), int32(1)) // indexed reads inside the window stay local
}

func TestPopulateEverythingRemaining(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockWindowAPI(7)
	defer ts.Close()

	c := newTestNode(ts.URL, "emails/a/invoices/").All()

	is.NoErr(c.Populate(context.Background(), 0, 0))
	is.Equal(c.TotalCount(), int64(7))

	last, err := c.At(context.Background(), 6)
	is.NoErr(err)
	is.Equal(last.ID(), "inv-006")

	_, err = c.At(context.Background(), 7)
	is.True(errors.Is(err, gderrors.ErrNotFound)) // the end of the sequence is known

	is.Equal(requests.Load(), int32(1))
}

func TestEachPagesLazily(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockWindowAPI(120)
	defer ts.Close()

	c := newTestNode(ts.URL, "emails/a/invoices/").All()

	count := 0
	is.NoErr(c.Each(context.Background(), func(member *dal.Resource) bool {
		count++
		return true
	}))

	is.Equal(count, 120)
	is.Equal(requests.Load(), int32(3)) // three windows of fifty

	count = 0
	is.NoErr(c.Each(context.Background(), func(member *dal.Resource) bool {
		count++
		return true
	}))

	is.Equal(count, 120)
	is.Equal(requests.Load(), int32(3)) // the second walk should be served from cache
}

func TestEachStopsWhenTheCallbackDoes(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockWindowAPI(120)
	defer ts.Close()

	c := newTestNode(ts.URL, "emails/a/invoices/").All()

	count := 0
	is.NoErr(c.Each(context.Background(), func(member *dal.Resource) bool {
		count++
		return count < 10
	}))

	is.Equal(count, 10)
	is.Equal(requests.Load(), int32(1))
}

func TestPopulatedWindowsWalkEndToEndInOrder(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockWindowAPI(250)
	defer ts.Close()

	c := newTestNode(ts.URL, "emails/a/invoices/").Search("paid==0")

	is.NoErr(c.Populate(context.Background(), 0, 100))
	is.NoErr(c.Populate(context.Background(), 100, 100))
	is.NoErr(c.Populate(context.Background(), 200, 100))

	ids := make([]string, 0, 250)
	is.NoErr(c.Each(context.Background(), func(member *dal.Resource) bool {
		ids = append(ids, member.ID())
		return true
	}))

	expected := make([]string, 0, 250)
	for i := 0; i < 250; i++ {
		expected = append(expected, fmt.Sprintf("inv-%03d", i))
	}

	is.Equal(ids, expected)             // no duplicates, no gaps, server order
	is.Equal(requests.Load(), int32(3)) // the walk is served from the populated windows
}

func TestAtFetchesTheContainingWindow(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockWindowAPI(120)
	defer ts.Close()

	c := newTestNode(ts.URL, "emails/a/invoices/").All()

	member, err := c.At(context.Background(), 75)
	is.NoErr(err)
	is.Equal(member.ID(), "inv-075")

	neighbour, err := c.At(context.Background(), 60)
	is.NoErr(err)
	is.Equal(neighbour.ID(), "inv-060")

	is.Equal(requests.Load(), int32(1))
}

func TestNegativeIndexesAreRejected(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockWindowAPI(5)
	defer ts.Close()

	c := newTestNode(ts.URL, "emails/a/invoices/").All()

	_, err := c.At(context.Background(), -1)
	is.True(errors.Is(err, gderrors.ErrValidation))

	err = c.Populate(context.Background(), -1, 5)
	is.True(errors.Is(err, gderrors.ErrValidation))

	is.Equal(requests.Load(), int32(0))
}

func TestWindowMembersArriveHydrated(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockWindowAPI(3)
	defer ts.Close()

	c := newTestNode(ts.URL, "emails/a/invoices/").All()

	is.NoErr(c.Populate(context.Background(), 0, 0))

	member, err := c.At(context.Background(), 1)
	is.NoErr(err)
	is.True(member.Loaded())
	is.Equal(member.Etag(), "e-001") // the inline token moves onto the proxy

	rank, err := member.Attribute(context.Background(), "rank")
	is.NoErr(err)
	is.Equal(rank, float64(1))

	_, err = member.Attribute(context.Background(), "etag")
	is.True(errors.Is(err, gderrors.ErrNotFound))

	is.Equal(requests.Load(), int32(1))
}

func TestTheFilterAndWindowRideTheWire(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			QueryParamEquals("q", "read==0|location<<2"),
			QueryParamEquals("offset", "10"),
			QueryParamEquals("limit", "5"),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`[{"id":"a"}]`)),
		),
	)
	defer s.Close()

	c := newTestNode(s.URL(), "emails/a/invoices/").Search("read==0|location<<2")

	is.NoErr(c.Populate(context.Background(), 10, 5))
	is.Equal(s.RequestCount(), 1)
}

func TestAnUnfilteredCollectionSendsNoQueryParam(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, QueryParamAbsent("q")),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`[{"id":"a"}]`)),
		),
	)
	defer s.Close()

	c := newTestNode(s.URL(), "emails/a/invoices/").All()

	is.NoErr(c.Populate(context.Background(), 0, 1))
}

func TestFirstFetchesAMinimalWindow(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			QueryParamEquals("offset", "0"),
			QueryParamEquals("limit", "1"),
		),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`[{"id":"a"}]`)),
		),
	)
	defer s.Close()

	c := newTestNode(s.URL(), "emails/a/invoices/").All()

	member, err := c.First(context.Background())
	is.NoErr(err)
	is.Equal(member.ID(), "a")
}

func TestFirstOnAnEmptyCollectionIsNotFound(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, anyInput()),
		Returns(
			response.ContentType("application/json"),
			response.Code(http.StatusOK),
			response.Body([]byte(`[]`)),
		),
	)
	defer s.Close()

	c := newTestNode(s.URL(), "emails/a/invoices/").All()

	_, err := c.First(context.Background())
	is.True(errors.Is(err, gderrors.ErrNotFound))
}

func setupMockWindowAPI(memberCount int) (*httptest.Server, *atomic.Int32) {
	requests := &atomic.Int32{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		end := memberCount
		if limit > 0 && offset+limit < end {
			end = offset + limit
		}

		page := make([]map[string]any, 0, 16)
		for i := offset; i < end; i++ {
			page = append(page, map[string]any{
				"id":   fmt.Sprintf("inv-%03d", i),
				"rank": i,
				"etag": fmt.Sprintf("e-%03d", i),
			})
		}

		w.Header().Set("X-Result-Count", strconv.Itoa(memberCount))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(page)
	}))

	return ts, requests
}

func QueryParamEquals(name, value string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.True(r.URL.Query().Has(name))         // query param should exist
		is.Equal(r.URL.Query().Get(name), value) // query param should match
	}
}

func QueryParamAbsent(name string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.True(!r.URL.Query().Has(name)) // query param should be absent
	}
}
