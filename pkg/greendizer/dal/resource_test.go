package dal_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/greendizer/client-go/pkg/greendizer"
	"github.com/greendizer/client-go/pkg/greendizer/dal"
	gderrors "github.com/greendizer/client-go/pkg/greendizer/errors"

	"github.com/matryer/is"
)

func TestProxiesAreLazy(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockAPIResponse(http.StatusOK, nil, `{}`)
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")
	r.RegisterUpdate("read", true)

	is.Equal(r.ID(), "1")
	is.Equal(r.URI(), "emails/a/invoices/1/")
	is.True(r.Dirty())
	is.True(!r.Loaded())
	is.Equal(requests.Load(), int32(0)) // nothing should have been sent
}

func TestAttributeLoadsOnceAndCaches(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockAPIResponse(http.StatusOK,
		[][2]string{{"Etag", "e-1"}, {"Content-Type", "application/json"}},
		`{"name":"Support retainer","read":false}`,
	)
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")

	name, err := r.Attribute(context.Background(), "name")
	is.NoErr(err)
	is.Equal(name, "Support retainer")

	read, err := r.Attribute(context.Background(), "read")
	is.NoErr(err)
	is.Equal(read, false)

	is.True(r.Loaded())
	is.Equal(r.Etag(), "e-1")
	is.Equal(requests.Load(), int32(1)) // both reads should share one request
}

func TestPendingEditsShadowTheServerValue(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockAPIResponse(http.StatusOK, nil, `{}`)
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")
	r.Sync(map[string]any{"name": "server copy"}, "e-1")
	r.RegisterUpdate("name", "local edit")

	name, err := r.Attribute(context.Background(), "name")
	is.NoErr(err)
	is.Equal(name, "local edit")
	is.Equal(requests.Load(), int32(0))
}

func TestLoadReplacesTheCacheAndKeepsPendingEdits(t *testing.T) {
	is := is.New(t)

	ts, _ := setupMockAPIResponse(http.StatusOK,
		[][2]string{{"Etag", "e-2"}, {"Content-Type", "application/json"}},
		`{"name":"reloaded","total":961.5}`,
	)
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")
	r.Sync(map[string]any{"name": "old", "stale": true}, "e-1")
	r.RegisterUpdate("read", true)

	is.NoErr(r.Load(context.Background()))

	name, err := r.Attribute(context.Background(), "name")
	is.NoErr(err)
	is.Equal(name, "reloaded")

	_, err = r.Attribute(context.Background(), "stale")
	is.True(errors.Is(err, gderrors.ErrNotFound)) // the old cache should be gone

	read, err := r.Attribute(context.Background(), "read")
	is.NoErr(err)
	is.Equal(read, true) // the edit buffer should survive the reload

	is.True(r.Dirty())
	is.Equal(r.Etag(), "e-2")
}

func TestUpdateFoldsPendingIntoTheCache(t *testing.T) {
	is := is.New(t)

	var got struct {
		method  string
		ifMatch string
		body    []byte
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.ifMatch = r.Header.Get("If-Match")
		got.body, _ = io.ReadAll(r.Body)

		w.Header().Set("Etag", "e-2")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")
	r.Sync(map[string]any{"read": false}, "")
	r.RegisterUpdate("read", true)

	is.NoErr(r.Update(context.Background()))

	is.Equal(got.method, http.MethodPatch)
	is.Equal(string(got.body), `{"read":true}`)
	is.Equal(got.ifMatch, "") // no token held, no precondition sent

	is.True(!r.Dirty())
	is.Equal(r.Etag(), "e-2")

	read, err := r.Attribute(context.Background(), "read")
	is.NoErr(err)
	is.Equal(read, true)
}

func TestUpdateSendsThePreconditionItHolds(t *testing.T) {
	is := is.New(t)

	var gotIfMatch string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIfMatch = r.Header.Get("If-Match")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")
	r.Sync(map[string]any{}, "e-1")
	r.RegisterUpdate("read", true)

	is.NoErr(r.Update(context.Background()))
	is.Equal(gotIfMatch, "e-1")
}

func TestUpdateWithoutEditsIsLocal(t *testing.T) {
	is := is.New(t)

	ts, requests := setupMockAPIResponse(http.StatusOK, nil, `{}`)
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")

	is.NoErr(r.Update(context.Background()))
	is.Equal(requests.Load(), int32(0))
}

func TestAConflictKeepsTheEditBuffer(t *testing.T) {
	is := is.New(t)

	problem, _ := json.Marshal(gderrors.NewPreconditionFailed("stale etag", ""))
	ts, _ := setupMockAPIResponse(http.StatusPreconditionFailed,
		[][2]string{{"Content-Type", gderrors.ProblemReportContentType}},
		string(problem),
	)
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")
	r.Sync(map[string]any{}, "e-0")
	r.RegisterUpdate("read", true)

	err := r.Update(context.Background())

	is.True(errors.Is(err, gderrors.ErrConflict))
	is.Equal(err.Error(), "stale etag")
	is.True(r.Dirty()) // the edits should be waiting for a reload and retry
}

func TestHydrationFailuresAreNotFound(t *testing.T) {
	is := is.New(t)

	problem, _ := json.Marshal(gderrors.NewNotFound("no such invoice", ""))
	ts, _ := setupMockAPIResponse(http.StatusNotFound,
		[][2]string{{"Content-Type", gderrors.ProblemReportContentType}},
		string(problem),
	)
	defer ts.Close()

	r := newProxy(ts.URL, "1", "emails/a/invoices/1/")

	_, err := r.Attribute(context.Background(), "name")

	is.True(errors.Is(err, gderrors.ErrNotFound))
	is.Equal(err.Error(), "no such invoice")
	is.True(!r.Loaded())
}

func TestDateAttributesAcceptTheWireFormats(t *testing.T) {
	is := is.New(t)

	newYear := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	r := newProxy("http://localhost", "1", "emails/a/invoices/1/")
	r.Sync(map[string]any{
		"date":    float64(1767225600000),
		"dueDate": "2026-01-01T00:00:00Z",
		"garbage": "last tuesday",
	}, "")

	date, err := r.DateAttribute(context.Background(), "date")
	is.NoErr(err)
	is.Equal(date, newYear)

	dueDate, err := r.DateAttribute(context.Background(), "dueDate")
	is.NoErr(err)
	is.Equal(dueDate, newYear)

	_, err = r.DateAttribute(context.Background(), "garbage")
	is.True(errors.Is(err, gderrors.ErrFormat))

	_, err = r.DateAttribute(context.Background(), "missing")
	is.True(errors.Is(err, gderrors.ErrNotFound))
}

func newProxy(apiRoot, id, uri string) *dal.Resource {
	session := greendizer.New(apiRoot, greendizer.AccessToken("sometoken"))
	return dal.NewResource(session, id, func() string { return uri })
}

func setupMockAPIResponse(responseCode int, headers [][2]string, responseBody string) (*httptest.Server, *atomic.Int32) {
	requests := &atomic.Int32{}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		for _, hdr := range headers {
			w.Header().Add(hdr[0], hdr[1])
		}

		w.WriteHeader(responseCode)
		w.Write([]byte(responseBody))
	}))

	return ts, requests
}
